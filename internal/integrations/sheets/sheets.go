// internal/integrations/sheets/sheets.go
package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/sakondev/drg-inventory/internal/integrations"
	"github.com/sakondev/drg-inventory/internal/integrations/tabular"
	"github.com/sakondev/drg-inventory/internal/inventory"
	"github.com/sakondev/drg-inventory/internal/retry"
)

const (
	HQ     = "hq"
	Saimai = "saimai"
)

// Settings describes one spreadsheet: a CSV export URL or a local file
// (.csv or .xlsx), the branch its rows belong to and where the columns are.
type Settings struct {
	URL        string         `json:"url,omitempty"`
	File       string         `json:"file,omitempty"`
	Branch     string         `json:"branch"`
	NameKeyed  bool           `json:"name_keyed"`
	Remap      bool           `json:"remap"`
	TimeoutSec int            `json:"timeout_sec"`
	Layout     tabular.Layout `json:"layout"`
}

func HQDefaults() Settings {
	return Settings{
		URL:        "https://docs.google.com/spreadsheets/d/1jGJw7N9fYjFZtVtvGQc7dyeCdjQRXNzr/export?format=csv&gid=1922842361",
		Branch:     "HQ",
		TimeoutSec: 60,
		Layout: tabular.Layout{
			SkipRows: 2,
			SKU:      tabular.Idx(2),
			Item:     tabular.Idx(3),
			Qty:      tabular.Idx(7),
		},
	}
}

func SaimaiDefaults() Settings {
	return Settings{
		URL:        "https://docs.google.com/spreadsheets/d/1E5RCU9ZwZurC0KhQ49YangnLDiE0qInP5EPusIxyTsI/export?format=csv&gid=1646174814",
		Branch:     "Saimai",
		NameKeyed:  true,
		Remap:      true,
		TimeoutSec: 60,
		Layout: tabular.Layout{
			SKU:  tabular.Idx(0),
			Item: tabular.Idx(1),
			Qty:  tabular.Idx(4),
		},
	}
}

type Sheet struct {
	name  string
	log   zerolog.Logger
	cfg   Settings
	rt    integrations.Runtime
	remap Remap
	http  *resty.Client
}

func New(name string, log zerolog.Logger, cfg Settings, rt integrations.Runtime) (*Sheet, error) {
	if cfg.URL == "" && cfg.File == "" {
		return nil, fmt.Errorf("%s: neither url nor file configured", name)
	}
	if cfg.Branch == "" {
		return nil, fmt.Errorf("%s: branch is empty", name)
	}
	c, err := integrations.NewHTTPClient("", time.Duration(cfg.TimeoutSec)*time.Second)
	if err != nil {
		return nil, err
	}

	s := &Sheet{name: name, log: log, cfg: cfg, rt: rt, http: c}
	if cfg.Remap {
		s.remap = loadRemap(log, rt.SKUMappingFile)
	}
	return s, nil
}

func loadRemap(log zerolog.Logger, path string) Remap {
	if path == "" {
		return DefaultRemap()
	}
	m, err := LoadRemap(path)
	if err != nil {
		log.Error().Err(err).Str("file", path).Msg("sku mapping unreadable, using built-in table")
		return DefaultRemap()
	}
	log.Info().Str("file", path).Int("entries", len(m)).Msg("sku mapping loaded")
	return m
}

func (s *Sheet) Name() string    { return s.name }
func (s *Sheet) NameKeyed() bool { return s.cfg.NameKeyed }

func (s *Sheet) Fetch(ctx context.Context) ([]inventory.RawRecord, error) {
	res := retry.Do(ctx, s.log, s.rt.Retry, s.name+" sheet", s.rows)
	if !res.OK() {
		return nil, inventory.E(inventory.SourceUnavailable, s.name+" sheet", res.Err)
	}

	recs, err := s.cfg.Layout.Project(s.log, res.Value, s.cfg.Branch)
	if err != nil {
		return nil, inventory.E(inventory.SourceUnavailable, s.name+" layout", err)
	}
	if s.remap != nil {
		for i := range recs {
			recs[i].SKU = s.remap.Apply(recs[i].SKU)
		}
	}
	return recs, nil
}

func (s *Sheet) rows(ctx context.Context) ([][]string, error) {
	if s.cfg.File != "" {
		return readFile(s.cfg.File)
	}

	res, err := s.http.R().SetContext(ctx).Get(s.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	if err := integrations.CheckResponse(res, "download"); err != nil {
		return nil, err
	}
	if _, err := integrations.Hold(s.rt.HoldingDir, s.name+".csv", res.Body()); err != nil {
		s.log.Warn().Err(err).Msg("could not keep download")
	}
	return tabular.ReadCSV(bytes.NewReader(res.Body()), res.Header().Get("Content-Type"))
}

func readFile(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return tabular.ReadXLSX(f, "")
	}
	return tabular.ReadCSV(f, "")
}

func factoryFor(name string, defaults func() Settings) integrations.Factory {
	return func(log zerolog.Logger, raw json.RawMessage, rt integrations.Runtime) (integrations.Source, error) {
		cfg := defaults()
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &cfg); err != nil {
				return nil, fmt.Errorf("%s settings: %w", name, err)
			}
		}
		return New(name, log, cfg, rt)
	}
}

func init() {
	integrations.Register(HQ, factoryFor(HQ, HQDefaults))
	integrations.Register(Saimai, factoryFor(Saimai, SaimaiDefaults))
}
