package inventory

// RawRecord is one observation from one source.
type RawRecord struct {
	ItemName string
	SKU      string
	Branch   string
	Quantity float64
}

// SourceBatch is everything one source produced in a run.
// NameKeyed marks sources whose rows do not carry a reliable SKU; their records
// may attach to an existing item by display name even when they have a SKU.
type SourceBatch struct {
	Source    string
	NameKeyed bool
	Records   []RawRecord
}

// CanonicalItem is the reconciled view of one product across every source of a run.
// The JSON tags are the snapshot file layout.
type CanonicalItem struct {
	DisplayName string             `json:"Item"`
	SKU         string             `json:"SKU"`
	Branches    map[string]float64 `json:"Branch"`
}

func newItem(name, sku string) *CanonicalItem {
	return &CanonicalItem{DisplayName: name, SKU: sku, Branches: map[string]float64{}}
}

func (c CanonicalItem) clone() CanonicalItem {
	out := CanonicalItem{DisplayName: c.DisplayName, SKU: c.SKU, Branches: make(map[string]float64, len(c.Branches))}
	for k, v := range c.Branches {
		out.Branches[k] = v
	}
	return out
}

// Conflict records one identity disagreement seen during reconciliation.
type Conflict struct {
	Source string
	Reason string // "sku_two_names" or "name_two_skus"
	SKU    string
	Name   string
	Other  string // the losing name or SKU
}
