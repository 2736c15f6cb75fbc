package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hession/searchbridge/internal/history"
	"github.com/hession/searchbridge/internal/websearch"
)

const snippetWidth = 160

// PrintResponse writes a human-readable rendering of resp.
func PrintResponse(w io.Writer, resp websearch.Response) {
	if resp.Error != "" {
		fmt.Fprintf(w, "%s❌ Search failed (%s): %s%s\n", colorRed, resp.Engine, resp.Error, colorReset)
		return
	}

	fmt.Fprintf(w, "%s%d results from %s in %.2fs%s\n\n",
		colorGray, resp.TotalResults, resp.Engine, resp.SearchTime, colorReset)

	for _, r := range resp.Results {
		fmt.Fprintf(w, "%s%2d. %s%s\n", colorCyan, r.Position, truncateForDisplay(r.Title, snippetWidth), colorReset)
		if r.Link != "" {
			fmt.Fprintf(w, "    %s%s%s\n", colorBlue, r.Link, colorReset)
		}
		if r.Snippet != "" {
			fmt.Fprintf(w, "    %s\n", truncateForDisplay(r.Snippet, snippetWidth))
		}
		fmt.Fprintln(w)
	}
}

// PrintJSON writes resp as indented JSON.
func PrintJSON(w io.Writer, resp websearch.Response) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// PrintHistory lists history entries with their age relative to now.
func PrintHistory(w io.Writer, entries []*history.Entry, now time.Time) {
	if len(entries) == 0 {
		fmt.Fprintf(w, "%sNo searches recorded yet%s\n", colorGray, colorReset)
		return
	}

	for _, e := range entries {
		status := fmt.Sprintf("%d results", e.TotalResults)
		if e.Error != "" {
			status = "error: " + truncateForDisplay(e.Error, 60)
		}
		fmt.Fprintf(w, "%s%s%s  %-10s %s  %s(%s, %s ago)%s\n",
			colorGray, e.ID[:min(8, len(e.ID))], colorReset,
			e.Engine,
			truncateForDisplay(e.Query, 50),
			colorGray, status, FormatDuration(now.Sub(e.CreatedAt)), colorReset)
	}
}

// truncateForDisplay flattens newlines and cuts text to maxLen runes.
func truncateForDisplay(text string, maxLen int) string {
	text = strings.ReplaceAll(text, "\r\n", " ")
	text = strings.ReplaceAll(text, "\n", " ")
	text = strings.ReplaceAll(text, "\r", "")
	text = strings.TrimSpace(text)

	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen]) + "..."
}

// FormatDuration renders d in its largest whole unit.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	return fmt.Sprintf("%dd", int(d.Hours()/24))
}
