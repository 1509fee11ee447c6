package vending

import (
	"context"
	"net/http"
	"net/http/httptest"
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

func TestFetch(t *testing.T) {
	export := tabulartest.XLSX(t, [][]any{
		{"Inventory"},
		{"exported 2024-05-01"},
		{"No", "Machine", "Location", "Code", "Product", "Slot", "Capacity", "Stock"},
		{1, "VCM350CKC20090003", "Siam Vending", "P_EW-US", "Water Jet", "A1", 10, 6},
		{},
		{2, "VCM350CKC20120001", "Asok Vending", "F1", "Floss", "B2", 20, 0},
	})

	var gotMachines []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		switch r.URL.Path {
		case "/sys/login.do":
			if r.PostForm.Get("loginname") != "vend" || r.PostForm.Get("loginpwd") != "pw" {
				http.Error(w, "denied", http.StatusForbidden)
				return
			}
			http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "abc", Path: "/"})
		case "/op/export_inventory_batch.do":
			if c, err := r.Cookie("JSESSIONID"); err != nil || c.Value != "abc" {
				_, _ = w.Write([]byte("<html>login</html>"))
				return
			}
			gotMachines = r.PostForm["selectRow"]
			_, _ = w.Write(export)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	cfg := DefaultSettings()
	cfg.BaseURL = srv.URL
	p, err := New(zerolog.Nop(), cfg, integrations.Runtime{
		Retry: retry.Policy{MaxAttempts: 1},
		Creds: integrations.Credentials{Username: "vend", Password: "pw"},
	})
	require.NoError(t, err)

	recs, err := p.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"VCM350CKC20090003", "VCM350CKC20120001"}, gotMachines)
	assert.Equal(t, []inventory.RawRecord{
		{ItemName: "Water Jet", SKU: "P_EW-US", Branch: "Siam Vending", Quantity: 6},
		{ItemName: "Floss", SKU: "F1", Branch: "Asok Vending", Quantity: 0},
	}, recs)
}

func TestFetch_SessionLostIsRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/op/export_inventory_batch.do" {
			calls++
		}
		_, _ = w.Write([]byte("<html>login</html>"))
	}))
	defer srv.Close()

	cfg := DefaultSettings()
	cfg.BaseURL = srv.URL
	p, err := New(zerolog.Nop(), cfg, integrations.Runtime{Retry: retry.Policy{MaxAttempts: 2, Delay: time.Millisecond}})
	require.NoError(t, err)

	_, err = p.Fetch(context.Background())
	assert.ErrorIs(t, err, inventory.ErrSourceUnavailable)
	assert.Equal(t, 2, calls)
}
