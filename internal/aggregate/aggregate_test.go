package aggregate

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakondev/drg-inventory/internal/inventory"
	"github.com/sakondev/drg-inventory/internal/snapshot"
)

func write(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

// historyStore holds two snapshots written out of directory order (the legacy
// day-first name sorts after the new one lexicographically but is newer),
// a corrupt file and a stale index.
func historyStore(t *testing.T) *snapshot.Store {
	dir := t.TempDir()
	write(t, dir, "020124_090000.json", `{"last_updated":"2024-01-02 09:00:00","inventory":[`+
		`{"Item":"Water Jet (new)","SKU":"P_EW-US","Branch":{"Samyan":4}},`+
		`{"Item":"Floss","SKU":"","Branch":{"HQ":5}},`+
		`{"Item":"Gum","SKU":"G1","Branch":{"Mega":0}}]}`)
	write(t, dir, "20240101_090000.json", `{"last_updated":"2024-01-01 09:00:00","inventory":[`+
		`{"Item":"Water Jet","SKU":"P_EW-US","Branch":{"Samyan":3,"HQ":1}},`+
		`{"Item":"Floss","SKU":"","Branch":{"HQ":2}}]}`)
	write(t, dir, "20231231_000000.json", `{broken`)
	write(t, dir, snapshot.IndexFile, `["20240101_090000.json"]`)
	return snapshot.NewStore(zerolog.Nop(), dir, time.UTC)
}

func TestAggregate_Golden(t *testing.T) {
	m, err := New(zerolog.Nop()).Aggregate(context.Background(), historyStore(t))
	require.NoError(t, err)
	Annotate(zerolog.Nop(), m, map[int][]string{10: {"P_EW-US"}, 2: {"G1"}})

	out, err := m.Encode()
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "inventory_database", out)
}

func TestAggregate_RerunIsByteIdentical(t *testing.T) {
	store := historyStore(t)
	a := New(zerolog.Nop())

	first, err := a.Aggregate(context.Background(), store)
	require.NoError(t, err)
	second, err := a.Aggregate(context.Background(), store)
	require.NoError(t, err)

	b1, _ := first.Encode()
	b2, _ := second.Encode()
	assert.Equal(t, string(b1), string(b2))
}

func TestReplay_SumsCollisions(t *testing.T) {
	snaps := []snapshot.Snapshot{
		{LastUpdated: "2024-01-01 00:00:00", Inventory: []inventory.CanonicalItem{
			{DisplayName: "P", SKU: "P1", Branches: map[string]float64{"A": 3}},
		}},
		{LastUpdated: "2024-01-01 00:00:00", Inventory: []inventory.CanonicalItem{
			{DisplayName: "P", SKU: "P1", Branches: map[string]float64{"A": 4}},
		}},
	}

	m := New(zerolog.Nop()).Replay(snaps)
	assert.Equal(t, []Entry{{ItemID: 1, BranchID: 1, Stock: 7}}, m.Inventory["2024-01-01 00:00:00"])
}

func TestReplay_DecimalSums(t *testing.T) {
	var snaps []snapshot.Snapshot
	for i := 0; i < 3; i++ {
		snaps = append(snaps, snapshot.Snapshot{LastUpdated: "t", Inventory: []inventory.CanonicalItem{
			{DisplayName: "P", SKU: "P1", Branches: map[string]float64{"A": 0.1}},
		}})
	}
	m := New(zerolog.Nop()).Replay(snaps)
	assert.Equal(t, 0.3, m.Inventory["t"][0].Stock)
}

func TestReplay_IdentityAcrossHistory(t *testing.T) {
	m := New(zerolog.Nop()).Replay([]snapshot.Snapshot{
		{LastUpdated: "t1", Inventory: []inventory.CanonicalItem{
			{DisplayName: "Brush", SKU: "B1", Branches: map[string]float64{"A": 1}},
			{DisplayName: "Brush", SKU: "B2", Branches: map[string]float64{"A": 1}},
			{DisplayName: "Brush", SKU: "", Branches: map[string]float64{"A": 1}},
			{DisplayName: "", SKU: "", Branches: map[string]float64{"A": 1}},
		}},
	})
	assert.Equal(t, []Item{{ID: 1, Name: "Brush", SKU: "B1"}, {ID: 2, Name: "Brush", SKU: "B2"}}, m.Items)
	// the SKU-less "Brush" attaches to the first item named Brush
	assert.Equal(t, []Entry{
		{ItemID: 1, BranchID: 1, Stock: 2},
		{ItemID: 2, BranchID: 1, Stock: 1},
	}, m.Inventory["t1"])
}

func TestAnnotate(t *testing.T) {
	m := NewModel()
	m.Branches = []Branch{{ID: 1, Name: "Samyan"}, {ID: 2, Name: "HQ"}}
	m.Inventory["t"] = []Entry{{ItemID: 1, BranchID: 1, Stock: 2}}

	var logged bytes.Buffer
	Annotate(zerolog.New(&logged), m, map[int][]string{2: {"X"}, 12: {"V1"}, 11: {"V1"}})

	assert.Equal(t, []Branch{
		{ID: 1, Name: "Samyan"},
		{ID: 2, Name: "HQ", OnlySKUs: []string{"X"}},
		{ID: 11, Name: "Branch 11", OnlySKUs: []string{"V1"}},
		{ID: 12, Name: "Branch 12", OnlySKUs: []string{"V1"}},
	}, m.Branches)
	assert.Equal(t, []Entry{{ItemID: 1, BranchID: 1, Stock: 2}}, m.Inventory["t"])

	// the operator can see which observed branch ID 2 turned out to be
	assert.Contains(t, logged.String(), `"branch_id":2,"branch":"HQ"`)
	assert.NotContains(t, logged.String(), `"branch":"Samyan"`)
}

func TestAggregate_EmptyStore(t *testing.T) {
	store := snapshot.NewStore(zerolog.Nop(), filepath.Join(t.TempDir(), "missing"), time.UTC)
	m, err := New(zerolog.Nop()).Aggregate(context.Background(), store)
	require.NoError(t, err)

	out, err := m.Encode()
	require.NoError(t, err)
	assert.Equal(t, `{"items":[],"branches":[],"inventory":{}}`, string(out))
}

func TestAggregate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(zerolog.Nop()).Aggregate(ctx, historyStore(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWriteFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), OutputFile)
	m := NewModel()
	m.Items = append(m.Items, Item{ID: 1, Name: "ไหมขัดฟัน & co", SKU: "F1"})
	require.NoError(t, m.WriteFile(p))

	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, `{"items":[{"id":1,"name":"ไหมขัดฟัน & co","sku":"F1"}],"branches":[],"inventory":{}}`, string(data))
}
