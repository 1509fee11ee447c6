package sheets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakondev/drg-inventory/internal/integrations"
	"github.com/sakondev/drg-inventory/internal/integrations/tabular/tabulartest"
	"github.com/sakondev/drg-inventory/internal/inventory"
	"github.com/sakondev/drg-inventory/internal/retry"
)

var fastRetry = retry.Policy{MaxAttempts: 2, Delay: time.Millisecond}

func TestRemap(t *testing.T) {
	m := DefaultRemap()
	assert.Equal(t, "P_EW-US", m.Apply("EW-VSD"))
	assert.Equal(t, "UNKNOWN-1", m.Apply("UNKNOWN-1"))
	assert.Equal(t, "EW-SG8PLUS", m.Apply("EW-SG8+"))
	assert.Len(t, m, 20)
}

func TestLoadRemap(t *testing.T) {
	p := filepath.Join(t.TempDir(), "sku_mapping.csv")
	require.NoError(t, os.WriteFile(p, []byte("Saimai,SKU\nEW-VSD,P_EW-US-NEW\n,\nX1,Y1\n"), 0o644))

	m, err := LoadRemap(p)
	require.NoError(t, err)
	assert.Equal(t, Remap{"EW-VSD": "P_EW-US-NEW", "X1": "Y1"}, m)

	require.NoError(t, os.WriteFile(p, []byte("Saimai,SKU\nonly-one\n"), 0o644))
	_, err = LoadRemap(p)
	assert.ErrorContains(t, err, "line 2")
}

func TestSaimaiFetchAppliesRemap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		_, _ = w.Write([]byte("Code,Name,Group,Unit,Qty\n" +
			"EW-VSD,Water Jet Ultra,EW,pcs,3\n" +
			"UNKNOWN-1,Mystery,,pcs,1\n" +
			",,,,\n" +
			"EW-VD,Water Jet Int,EW,pcs,x\n"))
	}))
	defer srv.Close()

	cfg := SaimaiDefaults()
	cfg.URL = srv.URL
	s, err := New(Saimai, zerolog.Nop(), cfg, integrations.Runtime{Retry: fastRetry})
	require.NoError(t, err)

	recs, err := s.Fetch(context.Background())
	require.NoError(t, err)
	assert.True(t, s.NameKeyed())
	assert.Equal(t, []inventory.RawRecord{
		{ItemName: "Water Jet Ultra", SKU: "P_EW-US", Branch: "Saimai", Quantity: 3},
		{ItemName: "Mystery", SKU: "UNKNOWN-1", Branch: "Saimai", Quantity: 1},
	}, recs)
}

func TestSaimaiUsesMappingFile(t *testing.T) {
	mapping := filepath.Join(t.TempDir(), "map.csv")
	require.NoError(t, os.WriteFile(mapping, []byte("Saimai,SKU\nL-1,CANON-1\n"), 0o644))
	sheet := filepath.Join(t.TempDir(), "saimai.csv")
	require.NoError(t, os.WriteFile(sheet, []byte("Code,Name,,,Qty\nL-1,Thing,,,2\nEW-VSD,Jet,,,1\n"), 0o644))

	cfg := SaimaiDefaults()
	cfg.File = sheet
	s, err := New(Saimai, zerolog.Nop(), cfg, integrations.Runtime{Retry: fastRetry, SKUMappingFile: mapping})
	require.NoError(t, err)

	recs, err := s.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "CANON-1", recs[0].SKU)
	assert.Equal(t, "EW-VSD", recs[1].SKU)
}

func TestHQFromXLSXFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "hq.xlsx")
	require.NoError(t, os.WriteFile(p, tabulartest.XLSX(t, [][]any{
		{"No", "Group", "SKU", "Item", "", "", "", "Qty"},
		{"", "", "", "", "", "", "", "units"},
		{"", "", "", "", "", "", "", "sum"},
		{1, "EW", "P_EW-US", "Water Jet", "", "", "", 40},
	}), 0o644))

	cfg := HQDefaults()
	cfg.File = p
	s, err := New(HQ, zerolog.Nop(), cfg, integrations.Runtime{Retry: fastRetry})
	require.NoError(t, err)

	recs, err := s.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []inventory.RawRecord{{ItemName: "Water Jet", SKU: "P_EW-US", Branch: "HQ", Quantity: 40}}, recs)
	assert.False(t, s.NameKeyed())
}

func TestFetchDownErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	cfg := HQDefaults()
	cfg.URL = srv.URL
	s, err := New(HQ, zerolog.Nop(), cfg, integrations.Runtime{Retry: fastRetry})
	require.NoError(t, err)

	_, err = s.Fetch(context.Background())
	assert.ErrorIs(t, err, inventory.ErrSourceUnavailable)
}

func TestFactoriesRegistered(t *testing.T) {
	for _, name := range []string{HQ, Saimai} {
		f, ok := integrations.Get(name)
		require.True(t, ok, name)
		src, err := f(zerolog.Nop(), []byte(`{"branch":"Override"}`), integrations.Runtime{})
		require.NoError(t, err)
		assert.Equal(t, name, src.Name())
		assert.Equal(t, "Override", src.(*Sheet).cfg.Branch)
	}
}
