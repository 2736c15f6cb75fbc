package cli

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/hession/searchbridge/internal/config"
	"github.com/hession/searchbridge/internal/websearch"
)

// CommandSuggestion one completion entry for the prompt.
type CommandSuggestion struct {
	Text        string
	Description string
}

// GetCommandSuggestions lists the REPL's slash commands.
func GetCommandSuggestions() []CommandSuggestion {
	return []CommandSuggestion{
		{Text: "/help", Description: "Show help"},
		{Text: "/engine", Description: "Show or switch the search engine"},
		{Text: "/num", Description: "Set the number of results"},
		{Text: "/lang", Description: "Set the result language"},
		{Text: "/country", Description: "Set the result country"},
		{Text: "/safe", Description: "Turn safe search on or off"},
		{Text: "/settings", Description: "Show the current search settings"},
		{Text: "/json", Description: "Toggle raw JSON output"},
		{Text: "/history", Description: "Show recent searches"},
		{Text: "/config", Description: "Show current configuration"},
		{Text: "/exit", Description: "Exit program"},
	}
}

// handleCommand handles built-in commands, returns false on exit.
func (s *Session) handleCommand(input string) bool {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return true
	}
	args := parts[1:]

	switch strings.ToLower(parts[0]) {
	case "/help":
		s.printHelp()

	case "/exit", "/quit", "/q":
		fmt.Fprintf(s.out, "%sGoodbye! 👋%s\n", colorCyan, colorReset)
		return false

	case "/engine":
		if len(args) == 0 {
			fmt.Fprintf(s.out, "Engine: %s (available: %s)\n", s.defaults.Engine, strings.Join(websearch.Engines(), ", "))
			break
		}
		name := strings.ToLower(args[0])
		if !slices.Contains(websearch.Engines(), name) {
			s.fail("unsupported search engine: %s", args[0])
			break
		}
		s.defaults.Engine = name
		s.ok("Engine set to %s", name)

	case "/num":
		if len(args) == 0 {
			s.fail("usage: /num <count>")
			break
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			s.fail("result count must be a non-negative integer")
			break
		}
		s.defaults.NumResults = n
		s.ok("Result count set to %d", n)

	case "/lang":
		if len(args) == 0 {
			s.fail("usage: /lang <code>")
			break
		}
		s.defaults.Language = args[0]
		s.ok("Language set to %s", args[0])

	case "/country":
		if len(args) == 0 {
			s.fail("usage: /country <code>")
			break
		}
		s.defaults.Country = args[0]
		s.ok("Country set to %s", args[0])

	case "/safe":
		if len(args) == 0 {
			s.fail("usage: /safe on|off")
			break
		}
		switch strings.ToLower(args[0]) {
		case "on", "true":
			s.defaults.SafeSearch = true
		case "off", "false":
			s.defaults.SafeSearch = false
		default:
			s.fail("usage: /safe on|off")
			return true
		}
		s.ok("Safe search %s", onOff(s.defaults.SafeSearch))

	case "/settings":
		s.printSettings()

	case "/json":
		s.jsonOut = !s.jsonOut
		s.ok("JSON output %s", onOff(s.jsonOut))

	case "/history":
		if s.history == nil {
			s.fail("search history is disabled")
			break
		}
		limit := 10
		if len(args) > 0 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 1 {
				s.fail("usage: /history [count]")
				break
			}
			limit = n
		}
		entries, err := s.history.Recent(limit)
		if err != nil {
			s.fail("failed to read history: %v", err)
			break
		}
		PrintHistory(s.out, entries, time.Now())

	case "/config":
		cfg, err := config.Load()
		if err != nil {
			s.fail("failed to load config: %v", err)
			break
		}
		fmt.Fprintln(s.out, cfg.String())

	default:
		fmt.Fprintf(s.out, "%s❓ Unknown command: %s%s\n", colorYellow, input, colorReset)
		fmt.Fprintln(s.out, "Type /help for available commands")
	}
	return true
}

func (s *Session) ok(format string, args ...any) {
	fmt.Fprintf(s.out, "%s✅ %s%s\n", colorGreen, fmt.Sprintf(format, args...), colorReset)
}

func (s *Session) fail(format string, args ...any) {
	fmt.Fprintf(s.out, "%s❌ %s%s\n", colorRed, fmt.Sprintf(format, args...), colorReset)
}

func (s *Session) printSettings() {
	fmt.Fprintf(s.out, `Engine:      %s
Results:     %d
Language:    %s
Country:     %s
Safe search: %s
JSON output: %s
`, s.defaults.Engine, s.defaults.NumResults, s.defaults.Language, s.defaults.Country,
		onOff(s.defaults.SafeSearch), onOff(s.jsonOut))
}

func (s *Session) printHelp() {
	fmt.Fprintf(s.out, `
%s📚 SearchBridge Help%s

Type a query and press Enter to search.

%sBuilt-in Commands:%s
`, colorCyan, colorReset, colorYellow, colorReset)
	for _, c := range GetCommandSuggestions() {
		fmt.Fprintf(s.out, "  %-10s - %s\n", c.Text, c.Description)
	}
	fmt.Fprintf(s.out, `
%sExamples:%s
  golang generics
  /engine duckduckgo
  /num 25

`, colorYellow, colorReset)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
