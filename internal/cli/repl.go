// Package cli implements the interactive search prompt and terminal output.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	prompt "github.com/c-bata/go-prompt"

	"github.com/hession/searchbridge/internal/history"
	"github.com/hession/searchbridge/internal/logger"
	"github.com/hession/searchbridge/internal/websearch"
)

const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"
)

// Searcher runs one search request and always returns an envelope.
type Searcher interface {
	Execute(ctx context.Context, req websearch.Request) websearch.Response
}

// Session holds the REPL's search settings between queries.
type Session struct {
	ctx      context.Context
	searcher Searcher
	history  history.Store
	defaults websearch.Request
	jsonOut  bool
	version  string
	out      io.Writer
	exiting  bool
}

// NewSession creates a REPL session. store may be nil. version is shown in
// the welcome banner.
func NewSession(ctx context.Context, searcher Searcher, store history.Store, engine, version string, out io.Writer) *Session {
	defaults := websearch.NewRequest("")
	if engine != "" {
		defaults.Engine = engine
	}
	if out == nil {
		out = os.Stdout
	}
	return &Session{
		ctx:      ctx,
		searcher: searcher,
		history:  store,
		defaults: defaults,
		version:  version,
		out:      out,
	}
}

// Run starts the interactive prompt and blocks until /exit or Ctrl+D.
func (s *Session) Run() {
	s.printWelcome()

	p := prompt.New(
		s.execute,
		s.complete,
		prompt.OptionPrefix("search> "),
		prompt.OptionPrefixTextColor(prompt.Green),
		prompt.OptionTitle("searchbridge"),
		prompt.OptionMaxSuggestion(12),
		prompt.OptionSetExitCheckerOnInput(func(string, bool) bool { return s.exiting }),
	)
	p.Run()
}

func (s *Session) printWelcome() {
	fmt.Fprintf(s.out, "\n%s🔎 SearchBridge v%s%s - Unified Web Search\n", colorCyan, s.version, colorReset)
	fmt.Fprintf(s.out, "%sType a query to search, /help for help, /exit to quit%s\n\n", colorGray, colorReset)
}

// execute is the prompt executor: one input line per call.
func (s *Session) execute(line string) {
	input := strings.TrimSpace(line)
	if input == "" {
		return
	}

	if strings.HasPrefix(input, "/") {
		if !s.handleCommand(input) {
			s.exiting = true
		}
		return
	}

	s.search(input)
}

// search runs query with the session defaults and prints the envelope.
func (s *Session) search(query string) websearch.Response {
	req := s.defaults
	req.Query = query
	req.AdditionalParams = map[string]any{}

	resp := s.searcher.Execute(s.ctx, req)
	if resp.Error != "" {
		logger.Warn("Search failed: '%s' on %s: %s", query, resp.Engine, resp.Error)
	} else {
		logger.Info("Search completed: '%s' with %d results in %.2fs", query, resp.TotalResults, resp.SearchTime)
	}

	if s.history != nil {
		if _, err := s.history.Record(resp); err != nil {
			logger.Warn("Failed to record search history: %v", err)
		}
	}

	fmt.Fprintln(s.out)
	if s.jsonOut {
		if err := PrintJSON(s.out, resp); err != nil {
			s.fail("failed to encode response: %v", err)
		}
	} else {
		PrintResponse(s.out, resp)
	}
	return resp
}

// complete suggests slash commands and engine names.
func (s *Session) complete(d prompt.Document) []prompt.Suggest {
	text := d.TextBeforeCursor()
	if !strings.HasPrefix(text, "/") {
		return nil
	}

	if rest, ok := strings.CutPrefix(text, "/engine "); ok {
		engines := make([]prompt.Suggest, 0, 3)
		for _, e := range websearch.Engines() {
			engines = append(engines, prompt.Suggest{Text: e})
		}
		return prompt.FilterHasPrefix(engines, rest, true)
	}
	if strings.Contains(text, " ") {
		return nil
	}

	commands := GetCommandSuggestions()
	suggests := make([]prompt.Suggest, 0, len(commands))
	for _, c := range commands {
		suggests = append(suggests, prompt.Suggest{Text: c.Text, Description: c.Description})
	}
	return prompt.FilterHasPrefix(suggests, d.GetWordBeforeCursor(), true)
}
