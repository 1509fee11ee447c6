// internal/aggregate/model.go
package aggregate

import (
	"github.com/sakondev/drg-inventory/internal/snapshot"
)

// Model is the whole snapshot history folded into one database-like document.
type Model struct {
	Items     []Item             `json:"items"`
	Branches  []Branch           `json:"branches"`
	Inventory map[string][]Entry `json:"inventory"` // last_updated -> stock entries
}

type Item struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	SKU  string `json:"sku"`
}

type Branch struct {
	ID       int      `json:"id"`
	Name     string   `json:"name"`
	OnlySKUs []string `json:"onlySKUs,omitempty"`
}

type Entry struct {
	ItemID   int     `json:"item_id"`
	BranchID int     `json:"branch_id"`
	Stock    float64 `json:"stock"`
}

func NewModel() *Model {
	return &Model{Items: []Item{}, Branches: []Branch{}, Inventory: map[string][]Entry{}}
}

// Encode renders the model as compact JSON with non-ASCII left unescaped.
// Output is byte-identical for identical input.
func (m *Model) Encode() ([]byte, error) {
	return snapshot.Encode(m)
}

// WriteFile replaces path with the encoded model.
func (m *Model) WriteFile(path string) error {
	data, err := m.Encode()
	if err != nil {
		return err
	}
	return snapshot.WriteFileAtomic(path, data)
}
