package main

import (
	"encoding/json"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/procasteam/procas/internal/config"
	"github.com/procasteam/procas/internal/docstore"
)

// openStore opens the document store named by --db, falling back to the
// configured database path.
func openStore(dbOverride string) (*docstore.Store, error) {
	path := dbOverride
	if path == "" {
		db, err := config.LoadDatabaseConfig()
		if err != nil {
			return nil, err
		}
		path = db.Path
	}
	return docstore.Open(path, docstore.Options{})
}

// printJSON marshals v to JSON and writes to the given writer.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newTabWriter returns a configured tabwriter for aligned columns.
func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func relTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}
