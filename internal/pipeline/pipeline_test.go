package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakondev/drg-inventory/internal/aggregate"
	conf "github.com/sakondev/drg-inventory/internal/config"
	"github.com/sakondev/drg-inventory/internal/db"
	"github.com/sakondev/drg-inventory/internal/integrations"
	"github.com/sakondev/drg-inventory/internal/inventory"
	"github.com/sakondev/drg-inventory/internal/retry"
	"github.com/sakondev/drg-inventory/internal/snapshot"
)

type stubSource struct {
	name string
	recs []inventory.RawRecord
	err  error
}

func (s stubSource) Name() string    { return s.name }
func (s stubSource) NameKeyed() bool { return false }
func (s stubSource) Fetch(context.Context) ([]inventory.RawRecord, error) {
	return s.recs, s.err
}

func testEnv(t *testing.T) *conf.Env {
	root := t.TempDir()
	return &conf.Env{
		DataDir:       filepath.Join(root, "data"),
		OutputDir:     root,
		HoldingDir:    filepath.Join(root, "holding"),
		SnapshotTZ:    "Asia/Bangkok",
		RetryAttempts: 1,
	}
}

func sources() []integrations.Source {
	return []integrations.Source{
		stubSource{name: "loyalty", recs: []inventory.RawRecord{
			{ItemName: "Water Jet", SKU: "P_EW-US", Branch: "Samyan", Quantity: 5},
		}},
		stubSource{name: "vending", err: errors.New("portal down")},
		stubSource{name: "productapi", recs: []inventory.RawRecord{
			{ItemName: "Water Jet", SKU: "P_EW-US", Branch: "On Time", Quantity: 7},
		}},
	}
}

var fixedNow = func() time.Time { return time.Date(2024, 5, 1, 2, 0, 0, 0, time.UTC) }

func newPipeline(t *testing.T, env *conf.Env, h *db.Handle) *Pipeline {
	cfg := conf.Defaults()
	p, err := New(zerolog.Nop(), Options{Env: env, Config: cfg, DB: h, Now: fixedNow, Sources: sources()})
	require.NoError(t, err)
	return p
}

func TestFetch(t *testing.T) {
	env := testEnv(t)
	h, err := db.OpenAt(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, h.Migrate())
	defer h.Close()

	res, err := newPipeline(t, env, h).Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(env.DataDir, "20240501_090000.json"), res.SnapshotPath)
	assert.Equal(t, []SourceSummary{{"loyalty", 1}, {"vending", 0}, {"productapi", 1}}, res.Sources)
	assert.Equal(t, 1, res.Items)
	assert.Equal(t, []string{"20240501_090000.json"}, res.Index)
	assert.Equal(t, map[string]float64{"Samyan": 5, "On Time": 7}, res.Snapshot.Inventory[0].Branches)

	latest, err := os.ReadFile(filepath.Join(env.OutputDir, snapshot.LatestFile))
	require.NoError(t, err)
	written, err := os.ReadFile(res.SnapshotPath)
	require.NoError(t, err)
	assert.Equal(t, written, latest)

	_, err = os.Stat(filepath.Join(env.HoldingDir, res.RunID))
	assert.True(t, os.IsNotExist(err))

	rows, err := h.Snapshots()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, res.RunID, rows[0].RunID)
	assert.Equal(t, db.StatusDone, rows[0].Status)

	last, ok, err := h.GetKV(db.KVLastRun)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, res.RunID, last)
}

func TestFetch_SameSecondIsPersistenceFailure(t *testing.T) {
	env := testEnv(t)
	p := newPipeline(t, env, nil)

	_, err := p.Fetch(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(env.DataDir, snapshot.IndexFile)))
	res, err := p.Fetch(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, inventory.ErrPersistence)

	// index is rebuilt even though the run failed
	_, statErr := os.Stat(filepath.Join(env.DataDir, snapshot.IndexFile))
	assert.NoError(t, statErr)
	assert.Equal(t, []string{"20240501_090000.json"}, res.Index)
}

func TestFetch_IndexFailureIsNotFatal(t *testing.T) {
	env := testEnv(t)
	// a directory where the index file should go makes the rename fail
	require.NoError(t, os.MkdirAll(filepath.Join(env.DataDir, snapshot.IndexFile), 0o755))

	res, err := newPipeline(t, env, nil).Fetch(context.Background())
	require.NoError(t, err)
	assert.Nil(t, res.Index)
	_, statErr := os.Stat(res.SnapshotPath)
	assert.NoError(t, statErr)
}

func TestFetch_Cancelled(t *testing.T) {
	env := testEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newPipeline(t, env, nil).Fetch(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	entries, _ := os.ReadDir(env.DataDir)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{snapshot.IndexFile}, names)
}

func TestFetch_TotalBranch(t *testing.T) {
	env := testEnv(t)
	env.AddTotalBranch = true

	res, err := newPipeline(t, env, nil).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12.0, res.Snapshot.Inventory[0].Branches[inventory.TotalBranch])
}

func TestRun_WritesAggregate(t *testing.T) {
	env := testEnv(t)
	h, err := db.OpenAt(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, h.Migrate())
	defer h.Close()

	_, err = newPipeline(t, env, h).Run(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(env.OutputDir, aggregate.OutputFile))
	require.NoError(t, err)
	var m aggregate.Model
	require.NoError(t, json.Unmarshal(data, &m))

	assert.Equal(t, []aggregate.Item{{ID: 1, Name: "Water Jet", SKU: "P_EW-US"}}, m.Items)
	require.Len(t, m.Branches, 5) // On Time, Samyan, then placeholders 10, 11, 12
	assert.Equal(t, "On Time", m.Branches[0].Name)
	assert.Equal(t, "Branch 10", m.Branches[2].Name)
	assert.Len(t, m.Inventory["2024-05-01 09:00:00"], 2)

	var mirrored int64
	h.DB.Model(&db.StockEntry{}).Count(&mirrored)
	assert.Equal(t, int64(2), mirrored)
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(zerolog.Nop(), Options{})
	assert.Error(t, err)
}

func TestRegistryBuiltSources(t *testing.T) {
	env := testEnv(t)
	cfg := &conf.Config{
		Sources: []string{"hq"},
		Integrations: map[string]json.RawMessage{
			"hq": json.RawMessage(`{"file":"` + filepath.ToSlash(filepath.Join(env.OutputDir, "missing.csv")) + `"}`),
		},
	}
	p, err := New(zerolog.Nop(), Options{Env: env, Config: cfg, Now: fixedNow})
	require.NoError(t, err)
	assert.Equal(t, 1, p.env.Retry().MaxAttempts)
	assert.Equal(t, retry.BackoffFixed, p.env.Retry().Backoff)

	res, err := p.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []SourceSummary{{"hq", 0}}, res.Sources)
	assert.Equal(t, 0, res.Items)
}
