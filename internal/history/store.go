// Package history keeps a log of executed searches.
package history

import (
	"time"

	"github.com/hession/searchbridge/internal/websearch"
)

// Store search history storage interface
type Store interface {
	// Record saves one executed search and returns the stored entry
	Record(resp websearch.Response) (*Entry, error)
	// Get returns the entry with the given ID, or nil when absent
	Get(id string) (*Entry, error)
	// Recent lists the newest entries first
	Recent(limit int) ([]*Entry, error)
	// Prune drops all but the newest keep entries
	Prune(keep int) (int64, error)
	Close() error
}

// Entry one executed search. Results are not stored.
type Entry struct {
	ID           string    `json:"id"`
	Query        string    `json:"query"`
	Engine       string    `json:"engine"`
	TotalResults int       `json:"total_results"`
	SearchTime   float64   `json:"search_time"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
