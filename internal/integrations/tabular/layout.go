// internal/integrations/tabular/layout.go
package tabular

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sakondev/drg-inventory/internal/inventory"
)

// Column picks a cell by header text or, when Header is empty, by 0-based index.
type Column struct {
	Index  int    `json:"index"`
	Header string `json:"header,omitempty"`
}

func Idx(i int) Column          { return Column{Index: i} }
func Named(h string) Column     { return Column{Header: h} }
func (c Column) String() string { return fmt.Sprintf("%d/%q", c.Index, c.Header) }

// Layout describes where the item, SKU, quantity and (optionally) branch live in a sheet.
type Layout struct {
	HeaderRow int     `json:"header_row"` // 0-based row that holds column titles
	SkipRows  int     `json:"skip_rows"`  // data rows dropped right after the header
	Item      Column  `json:"item"`
	SKU       Column  `json:"sku"`
	Qty       Column  `json:"qty"`
	Branch    *Column `json:"branch,omitempty"` // nil: every row belongs to the fixed branch
}

// Project turns sheet rows into raw records. All-empty rows are dropped;
// rows whose quantity does not parse are logged and skipped. A header column
// that cannot be found fails the whole sheet.
func (l Layout) Project(log zerolog.Logger, rows [][]string, fixedBranch string) ([]inventory.RawRecord, error) {
	if len(rows) <= l.HeaderRow {
		return nil, fmt.Errorf("sheet has %d rows, header expected at row %d", len(rows), l.HeaderRow)
	}
	header := rows[l.HeaderRow]

	item, err := resolve(header, l.Item)
	if err != nil {
		return nil, err
	}
	sku, err := resolve(header, l.SKU)
	if err != nil {
		return nil, err
	}
	qty, err := resolve(header, l.Qty)
	if err != nil {
		return nil, err
	}
	branch := -1
	if l.Branch != nil {
		if branch, err = resolve(header, *l.Branch); err != nil {
			return nil, err
		}
	}

	start := l.HeaderRow + 1 + l.SkipRows
	out := make([]inventory.RawRecord, 0, max(len(rows)-start, 0))
	skipped := 0
	for n := start; n < len(rows); n++ {
		row := rows[n]
		if blank(row) {
			continue
		}
		rec := inventory.RawRecord{
			ItemName: cell(row, item),
			SKU:      cell(row, sku),
			Branch:   fixedBranch,
		}
		if branch >= 0 {
			rec.Branch = cell(row, branch)
		}

		q, err := ParseQuantity(cell(row, qty))
		if err != nil {
			skipped++
			log.Warn().
				Err(err).
				Str("kind", string(inventory.MalformedRow)).
				Int("row", n+1).
				Str("item", rec.ItemName).
				Str("sku", rec.SKU).
				Msg("bad quantity, skipping row")
			continue
		}
		if rec.Branch == "" {
			skipped++
			log.Warn().
				Str("kind", string(inventory.MalformedRow)).
				Int("row", n+1).
				Str("item", rec.ItemName).
				Msg("row has no branch, skipping")
			continue
		}
		rec.Quantity = q
		out = append(out, rec)
	}

	log.Debug().Int("rows", len(rows)-start).Int("records", len(out)).Int("skipped", skipped).Msg("sheet projected")
	return out, nil
}

func resolve(header []string, c Column) (int, error) {
	if c.Header == "" {
		if c.Index < 0 {
			return 0, fmt.Errorf("negative column index %d", c.Index)
		}
		return c.Index, nil
	}
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), strings.TrimSpace(c.Header)) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("column %q not found in header", c.Header)
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
