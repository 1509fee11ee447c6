// internal/aggregate/aggregate.go
package aggregate

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/sakondev/drg-inventory/internal/snapshot"
)

// OutputFile is the aggregate document written next to the snapshot store.
const OutputFile = "inventory_database.json"

type Aggregator struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Aggregator {
	return &Aggregator{log: log}
}

type dated struct {
	name string
	at   time.Time
	snap snapshot.Snapshot
}

// Aggregate loads every snapshot in the store and replays them in timestamp
// order. Unreadable files are logged and skipped.
func (a *Aggregator) Aggregate(ctx context.Context, store *snapshot.Store) (*Model, error) {
	entries, err := store.List()
	if err != nil {
		return nil, err
	}

	loaded := make([]dated, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		snap, err := store.Load(e.Name)
		if err != nil {
			a.log.Warn().Err(err).Str("file", e.Name).Msg("skipping invalid snapshot")
			continue
		}
		at := e.Time
		if at.IsZero() {
			t, ok := snapshot.ParseStamp(snap.LastUpdated, store.Location())
			if !ok {
				a.log.Warn().Str("file", e.Name).Str("last_updated", snap.LastUpdated).Msg("no usable timestamp, skipping")
				continue
			}
			at = t
		}
		loaded = append(loaded, dated{name: e.Name, at: at, snap: snap})
	}

	sort.SliceStable(loaded, func(i, j int) bool {
		if !loaded[i].at.Equal(loaded[j].at) {
			return loaded[i].at.Before(loaded[j].at)
		}
		return loaded[i].name < loaded[j].name
	})

	snaps := make([]snapshot.Snapshot, len(loaded))
	for i, d := range loaded {
		snaps[i] = d.snap
	}
	m := a.Replay(snaps)

	a.log.Info().
		Int("files", len(entries)).
		Int("replayed", len(snaps)).
		Int("items", len(m.Items)).
		Int("branches", len(m.Branches)).
		Msg("aggregate built")
	return m, nil
}

type cellKey struct {
	stamp  string
	item   int
	branch int
}

// Replay folds snapshots, in the given order, into a fresh Model. Items are
// matched by SKU, or by name when a record has no SKU. IDs are dense and
// assigned first-seen. Two observations of the same (timestamp, item, branch)
// are summed.
func (a *Aggregator) Replay(snaps []snapshot.Snapshot) *Model {
	m := NewModel()
	bySKU := map[string]int{}
	byName := map[string]int{}
	branchID := map[string]int{}
	sums := map[cellKey]decimal.Decimal{}
	pos := map[cellKey]int{}

	itemID := func(name, sku string) int {
		name, sku = strings.TrimSpace(name), strings.TrimSpace(sku)
		if sku != "" {
			if id, ok := bySKU[sku]; ok {
				return id
			}
		} else if id, ok := byName[name]; ok {
			return id
		}
		id := len(m.Items) + 1
		m.Items = append(m.Items, Item{ID: id, Name: name, SKU: sku})
		if sku != "" {
			bySKU[sku] = id
		}
		if _, ok := byName[name]; !ok && name != "" {
			byName[name] = id
		}
		return id
	}

	branch := func(name string) int {
		if id, ok := branchID[name]; ok {
			return id
		}
		id := len(m.Branches) + 1
		m.Branches = append(m.Branches, Branch{ID: id, Name: name})
		branchID[name] = id
		return id
	}

	for _, s := range snaps {
		stamp := s.LastUpdated
		for _, it := range s.Inventory {
			if strings.TrimSpace(it.SKU) == "" && strings.TrimSpace(it.DisplayName) == "" {
				a.log.Warn().Str("last_updated", stamp).Msg("snapshot item without name or SKU, skipping")
				continue
			}
			iid := itemID(it.DisplayName, it.SKU)

			names := make([]string, 0, len(it.Branches))
			for b := range it.Branches {
				names = append(names, b)
			}
			sort.Strings(names)

			for _, b := range names {
				k := cellKey{stamp: stamp, item: iid, branch: branch(b)}
				q := decimal.NewFromFloat(it.Branches[b])
				if i, ok := pos[k]; ok {
					sums[k] = sums[k].Add(q)
					m.Inventory[stamp][i].Stock = sums[k].InexactFloat64()
					continue
				}
				sums[k] = q
				pos[k] = len(m.Inventory[stamp])
				m.Inventory[stamp] = append(m.Inventory[stamp], Entry{ItemID: iid, BranchID: k.branch, Stock: q.InexactFloat64()})
			}
		}
	}
	return m
}
