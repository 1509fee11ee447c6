package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakondev/drg-inventory/internal/integrations/loyalty"
	"github.com/sakondev/drg-inventory/internal/integrations/sheets"
	"github.com/sakondev/drg-inventory/internal/retry"
)

func TestLoadOrCreate_WritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "sources.json")

	cfg, created, err := LoadOrCreate(path)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, DefaultSourceOrder, cfg.Sources)
	assert.Len(t, cfg.BranchPolicy[10], 28)
	assert.Equal(t, cfg.BranchPolicy[11], cfg.BranchPolicy[12])

	again, created, err := LoadOrCreate(path)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, cfg.Sources, again.Sources)
	assert.Equal(t, cfg.BranchPolicy, again.BranchPolicy)

	var ly loyalty.Settings
	require.NoError(t, again.UnmarshalIntegration(loyalty.Name, &ly))
	assert.Equal(t, "Samyan", ly.Branches[0].Name)
	assert.Equal(t, 7485, ly.Branches[0].RestaurantID)

	var sm sheets.Settings
	require.NoError(t, again.UnmarshalIntegration(sheets.Saimai, &sm))
	assert.True(t, sm.Remap)
	assert.Error(t, again.UnmarshalIntegration("nope", &sm))
}

func TestLoadOrCreate_PartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"sources":["hq"],"branch_policy":{"3":["A"]}}`), 0o644))

	cfg, created, err := LoadOrCreate(path)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, []string{"hq"}, cfg.Sources)
	assert.Equal(t, map[int][]string{3: {"A"}}, cfg.BranchPolicy)
	assert.NotNil(t, cfg.Integrations)
}

func TestLoadOrCreate_BadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.json")
	require.NoError(t, os.WriteFile(path, []byte(`{`), 0o644))

	_, _, err := LoadOrCreate(path)
	assert.ErrorContains(t, err, "parse config")
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("MY_USERNAME", "choco")
	t.Setenv("APIKEY", "k")
	t.Setenv("RETRY_MAX_ATTEMPTS", "3")
	t.Setenv("RETRY_DELAY_SECONDS", "not-a-number")
	t.Setenv("ADD_TOTAL_BRANCH", "true")
	t.Setenv("DATA_DIR", "/srv/data")

	e := LoadEnv()
	assert.Equal(t, "choco", e.Credentials("loyalty").Username)
	assert.Equal(t, "k", e.Credentials("productapi").APIKey)
	assert.Empty(t, e.Credentials("hq"))
	assert.Equal(t, "/srv/data", e.DataDir)
	assert.True(t, e.AddTotalBranch)
	assert.Equal(t, retry.Policy{MaxAttempts: 3, Delay: 5 * time.Second}, e.Retry())

	loc, ok := e.Location()
	assert.True(t, ok)
	assert.Equal(t, "Asia/Bangkok", loc.String())

	e.SnapshotTZ = "Mars/Olympus"
	loc, ok = e.Location()
	assert.False(t, ok)
	assert.Equal(t, time.UTC, loc)
}
