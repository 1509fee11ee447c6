// internal/integrations/tabular/quantity.go
package tabular

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var thousands = regexp.MustCompile(`^-?\d{1,3}(,\d{3})+(\.\d+)?$`)

// ParseQuantity accepts "12", "12.5", "12,5", "1,234" and "1,234.50".
// A lone comma followed by exactly three digits is read as a thousands separator.
func ParseQuantity(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "\u00a0", "")
	if s == "" {
		return 0, fmt.Errorf("empty quantity")
	}

	switch {
	case thousands.MatchString(s):
		s = strings.ReplaceAll(s, ",", "")
	case strings.Contains(s, ","):
		s = strings.ReplaceAll(s, ",", ".")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("quantity %q: %w", s, err)
	}
	return d.InexactFloat64(), nil
}
