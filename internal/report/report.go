// Package report renders run results and snapshots as terminal tables.
package report

import (
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/sakondev/drg-inventory/internal/aggregate"
	"github.com/sakondev/drg-inventory/internal/db"
	"github.com/sakondev/drg-inventory/internal/pipeline"
	"github.com/sakondev/drg-inventory/internal/snapshot"
)

func NewTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	// footers carry paths and run ids; keep their case
	t.Style().Format.Footer = text.FormatDefault
	t.SetOutputMirror(w)
	return t
}

// Run prints what each source contributed and where the snapshot went.
func Run(w io.Writer, res *pipeline.Result) {
	t := NewTable(w)
	t.SetTitle("run " + res.RunID)
	t.AppendHeader(table.Row{"Source", "Records"})
	for _, s := range res.Sources {
		row := table.Row{s.Name, s.Records}
		if s.Records == 0 {
			row[1] = text.FgYellow.Sprint("0")
		}
		t.AppendRow(row)
	}
	t.AppendFooter(table.Row{"Items", res.Items})
	t.AppendFooter(table.Row{"Conflicts", res.Conflicts})
	if res.SnapshotPath != "" {
		t.AppendFooter(table.Row{"Snapshot", res.SnapshotPath})
	}
	t.Render()
}

// Snapshot prints one row per item with a column per branch.
// Branches missing for an item are left blank.
func Snapshot(w io.Writer, snap snapshot.Snapshot) {
	seen := map[string]bool{}
	var branches []string
	for _, it := range snap.Inventory {
		for b := range it.Branches {
			if !seen[b] {
				seen[b] = true
				branches = append(branches, b)
			}
		}
	}
	sort.Strings(branches)

	t := NewTable(w)
	t.SetTitle(snap.LastUpdated)
	header := table.Row{"Item", "SKU"}
	for _, b := range branches {
		header = append(header, b)
	}
	t.AppendHeader(header)

	for _, it := range snap.Inventory {
		row := table.Row{it.DisplayName, it.SKU}
		for _, b := range branches {
			if q, ok := it.Branches[b]; ok {
				row = append(row, q)
			} else {
				row = append(row, "")
			}
		}
		t.AppendRow(row)
	}
	t.AppendFooter(table.Row{"", "items", len(snap.Inventory)})
	t.Render()
}

func Index(w io.Writer, names []string) {
	t := NewTable(w)
	t.AppendHeader(table.Row{"#", "File"})
	for i, n := range names {
		t.AppendRow(table.Row{i + 1, n})
	}
	t.Render()
}

// Aggregate prints the branch table and the number of stamps replayed.
func Aggregate(w io.Writer, m *aggregate.Model) {
	t := NewTable(w)
	t.AppendHeader(table.Row{"ID", "Branch", "Only SKUs"})
	for _, b := range m.Branches {
		only := ""
		if n := len(b.OnlySKUs); n > 0 {
			only = text.FgCyan.Sprintf("%d", n)
		}
		t.AppendRow(table.Row{b.ID, b.Name, only})
	}
	t.AppendFooter(table.Row{"", "items", len(m.Items)})
	t.AppendFooter(table.Row{"", "stamps", len(m.Inventory)})
	t.Render()
}

var statusNames = map[int]string{db.StatusPending: "pending", db.StatusDone: "done", db.StatusError: "error"}

// History prints the snapshot registry kept in the database.
func History(w io.Writer, rows []db.SnapshotFile, lastRun, builtAt string) {
	t := NewTable(w)
	t.AppendHeader(table.Row{"File", "Last updated", "Items", "Run", "Status", "Error"})
	for _, r := range rows {
		status := statusNames[r.Status]
		if r.Status == db.StatusError {
			status = text.FgRed.Sprint(status)
		}
		t.AppendRow(table.Row{r.Filename, r.LastUpdated, r.Items, r.RunID, status, r.LastError})
	}
	t.AppendFooter(table.Row{"last run", lastRun})
	t.AppendFooter(table.Row{"aggregate built", builtAt})
	t.Render()
}
