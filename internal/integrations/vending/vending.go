// internal/integrations/vending/vending.go
package vending

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/sakondev/drg-inventory/internal/integrations"
	"github.com/sakondev/drg-inventory/internal/integrations/tabular"
	"github.com/sakondev/drg-inventory/internal/inventory"
	"github.com/sakondev/drg-inventory/internal/retry"
)

const Name = "vending"

type Settings struct {
	BaseURL    string         `json:"base_url"`
	LoginPath  string         `json:"login_path"`
	ExportPath string         `json:"export_path"`
	MachineIDs []string       `json:"machine_ids"`
	TimeoutSec int            `json:"timeout_sec"`
	Layout     tabular.Layout `json:"layout"`
}

func DefaultSettings() Settings {
	branch := tabular.Idx(2)
	return Settings{
		BaseURL:    "https://www.worldwidevending-vms.com",
		LoginPath:  "/sys/login.do",
		ExportPath: "/op/export_inventory_batch.do",
		MachineIDs: []string{"VCM350CKC20090003", "VCM350CKC20120001"},
		TimeoutSec: 60,
		Layout: tabular.Layout{
			HeaderRow: 2,
			Branch:    &branch,
			SKU:       tabular.Idx(3),
			Item:      tabular.Idx(4),
			Qty:       tabular.Idx(7),
		},
	}
}

// Portal exports the inventory of the configured machines as one workbook.
// The branch of each row comes from the sheet itself.
type Portal struct {
	log  zerolog.Logger
	cfg  Settings
	rt   integrations.Runtime
	http *resty.Client
}

func New(log zerolog.Logger, cfg Settings, rt integrations.Runtime) (*Portal, error) {
	if len(cfg.MachineIDs) == 0 {
		return nil, fmt.Errorf("vending: no machine ids configured")
	}
	c, err := integrations.NewHTTPClient(cfg.BaseURL, time.Duration(cfg.TimeoutSec)*time.Second)
	if err != nil {
		return nil, err
	}
	return &Portal{log: log, cfg: cfg, rt: rt, http: c}, nil
}

func (p *Portal) Name() string    { return Name }
func (p *Portal) NameKeyed() bool { return false }

func (p *Portal) Fetch(ctx context.Context) ([]inventory.RawRecord, error) {
	res := retry.Do(ctx, p.log, p.rt.Retry, "vending export", p.fetchOnce)
	if !res.OK() {
		return nil, inventory.E(inventory.SourceUnavailable, "vending export", res.Err)
	}
	return res.Value, nil
}

func (p *Portal) fetchOnce(ctx context.Context) ([]inventory.RawRecord, error) {
	res, err := p.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"loginname": p.rt.Creds.Username,
			"loginpwd":  p.rt.Creds.Password,
		}).
		Post(p.cfg.LoginPath)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if err := integrations.CheckResponse(res, "login"); err != nil {
		return nil, err
	}
	p.log.Debug().Msg("login ok")

	res, err = p.http.R().
		SetContext(ctx).
		SetFormDataFromValues(url.Values{"selectRow": p.cfg.MachineIDs}).
		Post(p.cfg.ExportPath)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	if err := integrations.CheckResponse(res, "export"); err != nil {
		return nil, err
	}

	if _, err := integrations.Hold(p.rt.HoldingDir, "vending_export.xlsx", res.Body()); err != nil {
		p.log.Warn().Err(err).Msg("could not keep export")
	}

	rows, err := tabular.ReadXLSX(bytes.NewReader(res.Body()), "")
	if err != nil {
		// a lapsed session comes back as an HTML page instead of a workbook
		return nil, fmt.Errorf("export is not a workbook: %w", err)
	}
	return p.cfg.Layout.Project(p.log, rows, "")
}

func factory(log zerolog.Logger, raw json.RawMessage, rt integrations.Runtime) (integrations.Source, error) {
	cfg := DefaultSettings()
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("vending settings: %w", err)
		}
	}
	return New(log, cfg, rt)
}

func init() {
	integrations.Register(Name, factory)
}
