// internal/inventory/reconciler.go
package inventory

import (
	"strings"

	"github.com/antzucaro/matchr"
	"github.com/rs/zerolog"
)

// TotalBranch is the synthetic branch written by Inventory.AddTotals.
const TotalBranch = "Total"

// Names at or above this Jaro-Winkler similarity are reported as probable duplicates.
const nearDuplicateScore = 0.96

// Inventory is the canonical mapping built by one reconciliation run.
// Items keep creation order; bySKU and byName are the identity indexes.
type Inventory struct {
	items     []*CanonicalItem
	bySKU     map[string]*CanonicalItem
	byName    map[string]*CanonicalItem
	conflicts []Conflict
}

func NewInventory() *Inventory {
	return &Inventory{
		bySKU:  map[string]*CanonicalItem{},
		byName: map[string]*CanonicalItem{},
	}
}

func (inv *Inventory) Len() int { return len(inv.items) }

// Conflicts lists identity disagreements in the order they were met.
func (inv *Inventory) Conflicts() []Conflict {
	return append([]Conflict(nil), inv.conflicts...)
}

// Items returns copies of the canonical items in creation order.
func (inv *Inventory) Items() []CanonicalItem {
	out := make([]CanonicalItem, 0, len(inv.items))
	for _, it := range inv.items {
		out = append(out, it.clone())
	}
	return out
}

// lookup finds an item by SKU.
func (inv *Inventory) lookup(sku string) (CanonicalItem, bool) {
	it, ok := inv.bySKU[sku]
	if !ok {
		return CanonicalItem{}, false
	}
	return it.clone(), true
}

// AddTotals writes the sum of every branch into TotalBranch on each item.
func (inv *Inventory) AddTotals() {
	for _, it := range inv.items {
		delete(it.Branches, TotalBranch)
		var sum float64
		for _, q := range it.Branches {
			sum += q
		}
		it.Branches[TotalBranch] = sum
	}
}

type Reconciler struct {
	log zerolog.Logger
}

func NewReconciler(log zerolog.Logger) *Reconciler {
	return &Reconciler{log: log}
}

// Reconcile folds the batches, in the given priority order, into one Inventory.
// An empty batch (failed source) contributes nothing.
func (r *Reconciler) Reconcile(batches []SourceBatch) *Inventory {
	inv := NewInventory()
	for _, b := range batches {
		r.Apply(inv, b)
	}
	r.MergeBySKU(inv)
	return inv
}

// Apply folds one batch into inv without running the SKU merge pass.
func (r *Reconciler) Apply(inv *Inventory, b SourceBatch) {
	log := r.log.With().Str("source", b.Source).Logger()
	if len(b.Records) == 0 {
		log.Warn().Msg("source contributed no records")
		return
	}

	skipped := 0
	for _, rec := range b.Records {
		rec.ItemName = strings.TrimSpace(rec.ItemName)
		rec.SKU = strings.TrimSpace(rec.SKU)
		if rec.ItemName == "" && rec.SKU == "" {
			skipped++
			log.Warn().
				Str("kind", string(MalformedRow)).
				Str("branch", rec.Branch).
				Msg("record has neither name nor SKU, skipping")
			continue
		}

		it := r.resolve(inv, rec, b, log)
		it.Branches[rec.Branch] = rec.Quantity
	}

	log.Debug().
		Int("records", len(b.Records)).
		Int("skipped", skipped).
		Int("items_total", inv.Len()).
		Msg("source reconciled")
}

func (r *Reconciler) resolve(inv *Inventory, rec RawRecord, b SourceBatch, log zerolog.Logger) *CanonicalItem {
	if rec.SKU != "" {
		if it, ok := inv.bySKU[rec.SKU]; ok {
			if rec.ItemName != "" && it.DisplayName != rec.ItemName {
				log.Warn().
					Str("kind", string(IdentityConflict)).
					Str("sku", rec.SKU).
					Str("kept_name", it.DisplayName).
					Str("other_name", rec.ItemName).
					Msg("SKU claimed by two names, keeping first-seen name")
				inv.conflicts = append(inv.conflicts, Conflict{
					Source: b.Source, Reason: "sku_two_names", SKU: rec.SKU, Name: it.DisplayName, Other: rec.ItemName,
				})
				inv.indexName(rec.ItemName, it)
			}
			if b.NameKeyed {
				inv.adoptSKU(rec.ItemName, rec.SKU, it)
			}
			return it
		}
	}

	if rec.ItemName != "" && (rec.SKU == "" || b.NameKeyed) {
		if it, ok := inv.byName[rec.ItemName]; ok {
			switch {
			case it.SKU == "" && rec.SKU != "":
				it.SKU = rec.SKU
				inv.indexSKU(rec.SKU, it)
			case it.SKU != "" && rec.SKU != "" && it.SKU != rec.SKU:
				log.Warn().
					Str("kind", string(IdentityConflict)).
					Str("name", rec.ItemName).
					Str("kept_sku", it.SKU).
					Str("other_sku", rec.SKU).
					Msg("name matched an item with a different SKU")
				inv.conflicts = append(inv.conflicts, Conflict{
					Source: b.Source, Reason: "name_two_skus", SKU: it.SKU, Name: rec.ItemName, Other: rec.SKU,
				})
			}
			return it
		}
	}

	if rec.SKU == "" && rec.ItemName != "" {
		r.hintNearDuplicate(inv, rec.ItemName, log)
	}

	it := newItem(rec.ItemName, rec.SKU)
	inv.items = append(inv.items, it)
	inv.indexSKU(rec.SKU, it)
	inv.indexName(rec.ItemName, it)
	return it
}

// adoptSKU gives a SKU-less item named name the SKU already owned by owner,
// so MergeBySKU folds the two together.
func (inv *Inventory) adoptSKU(name, sku string, owner *CanonicalItem) {
	other, ok := inv.byName[name]
	if !ok || other == owner || other.SKU != "" {
		return
	}
	other.SKU = sku
}

// hintNearDuplicate only logs; identity is never decided by similarity.
func (r *Reconciler) hintNearDuplicate(inv *Inventory, name string, log zerolog.Logger) {
	for known := range inv.byName {
		if score := matchr.JaroWinkler(name, known, false); score >= nearDuplicateScore {
			log.Info().
				Str("name", name).
				Str("similar_to", known).
				Float64("score", score).
				Msg("new SKU-less item looks like an existing one")
			return
		}
	}
}

// MergeBySKU folds items that ended up sharing a SKU into the first one created.
// Branches are unioned; on a branch collision the later item's value wins.
func (r *Reconciler) MergeBySKU(inv *Inventory) {
	first := make(map[string]*CanonicalItem, len(inv.items))
	kept := inv.items[:0]
	merged := 0

	for _, it := range inv.items {
		if it.SKU == "" {
			kept = append(kept, it)
			continue
		}
		keep, ok := first[it.SKU]
		if !ok {
			first[it.SKU] = it
			kept = append(kept, it)
			continue
		}
		for branch, q := range it.Branches {
			keep.Branches[branch] = q
		}
		merged++
		r.log.Debug().
			Str("sku", it.SKU).
			Str("kept_name", keep.DisplayName).
			Str("merged_name", it.DisplayName).
			Msg("merged duplicate SKU")
	}
	inv.items = kept

	if merged > 0 {
		inv.reindex()
		r.log.Info().Int("merged", merged).Msg("SKU merge pass")
	}
}

func (inv *Inventory) indexSKU(sku string, it *CanonicalItem) {
	if sku == "" {
		return
	}
	if _, ok := inv.bySKU[sku]; !ok {
		inv.bySKU[sku] = it
	}
}

func (inv *Inventory) indexName(name string, it *CanonicalItem) {
	if name == "" {
		return
	}
	if _, ok := inv.byName[name]; !ok {
		inv.byName[name] = it
	}
}

func (inv *Inventory) reindex() {
	inv.bySKU = make(map[string]*CanonicalItem, len(inv.items))
	inv.byName = make(map[string]*CanonicalItem, len(inv.items))
	for _, it := range inv.items {
		inv.indexSKU(it.SKU, it)
		inv.indexName(it.DisplayName, it)
	}
}
