// internal/snapshot/snapshot.go
package snapshot

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/sakondev/drg-inventory/internal/inventory"
)

const (
	IndexFile  = "file_list.json"
	LatestFile = "inventory_data.json"

	// NameLayout sorts lexicographically in time order.
	NameLayout = "20060102_150405"
	// LegacyNameLayout is day-first and is only read, never written.
	LegacyNameLayout = "020106_150405"
	// StampLayout is the last_updated value inside a snapshot.
	StampLayout = "2006-01-02 15:04:05"
)

// Snapshot is one immutable, timestamped copy of the reconciled inventory.
type Snapshot struct {
	LastUpdated string                    `json:"last_updated"`
	Inventory   []inventory.CanonicalItem `json:"inventory"`
}

func FileName(t time.Time) string {
	return t.Format(NameLayout) + ".json"
}

// ParseName extracts the timestamp embedded in a snapshot file name, either layout.
func ParseName(name string, loc *time.Location) (time.Time, bool) {
	base := strings.TrimSuffix(filepath.Base(name), ".json")
	var layout string
	switch len(base) {
	case len(NameLayout):
		layout = NameLayout
	case len(LegacyNameLayout):
		layout = LegacyNameLayout
	default:
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(layout, base, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ParseStamp reads a last_updated value.
func ParseStamp(s string, loc *time.Location) (time.Time, bool) {
	t, err := time.ParseInLocation(StampLayout, strings.TrimSpace(s), loc)
	return t, err == nil
}
