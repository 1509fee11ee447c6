// internal/integrations/sheets/remap.go
package sheets

import (
	"fmt"
	"os"
	"strings"

	"github.com/sakondev/drg-inventory/internal/integrations/tabular"
)

// Remap translates a branch-local product code into the canonical SKU.
// Codes without an entry pass through unchanged.
type Remap map[string]string

func (m Remap) Apply(code string) string {
	if sku, ok := m[strings.TrimSpace(code)]; ok {
		return sku
	}
	return code
}

// DefaultRemap is the built-in Saimai table.
func DefaultRemap() Remap {
	return Remap{
		"EW-VSD":   "P_EW-US",
		"EW-VD":    "P_EW-INT",
		"EW-ORTHO": "P_EW-PO",
		"EW-WJ180": "PEW-WJ180",
		"EW-GUM75": "P_EW-GUM75",
		"EW-TW75":  "P_EW-TW75",
		"EW-PL70":  "P_EW-FT70",
		"EW-SG2A":  "P_EW-Refill-DC",
		"EW-SG2B":  "P_EW-Refill-TF",
		"EW-SG2W":  "P_EW-Refill-WH",
		"EW-VW":    "P_EW-SE",
		"EW-XF50":  "P_EW-SF",
		"EW-SG8":   "P_EW-SG8",
		"EW-GUM12": "P_F_EW_CRF12",
		"EW-TW12":  "P_F_EW_WHT12",
		"EW-VSD2":  "PEW-US-Duo",
		"EW-SG8+":  "EW-SG8PLUS",
		"EW-PC70":  "P_EW-FTGR",
		"EW-SR75":  "P_EW-SR75",
		"EW-SR12":  "P_F_EW_STS12",
	}
}

// LoadRemap reads a two-column CSV (local code, SKU) with a header row.
func LoadRemap(path string) (Remap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sku mapping: %w", err)
	}
	defer f.Close()

	rows, err := tabular.ReadCSV(f, "")
	if err != nil {
		return nil, fmt.Errorf("sku mapping %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sku mapping %s is empty", path)
	}

	m := make(Remap, len(rows)-1)
	for n, row := range rows[1:] {
		if len(row) < 2 {
			return nil, fmt.Errorf("sku mapping %s line %d: want 2 columns, got %d", path, n+2, len(row))
		}
		code, sku := strings.TrimSpace(row[0]), strings.TrimSpace(row[1])
		if code == "" || sku == "" {
			continue
		}
		m[code] = sku
	}
	return m, nil
}
