// internal/config/config.go
package conf

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sakondev/drg-inventory/internal/integrations/loyalty"
	"github.com/sakondev/drg-inventory/internal/integrations/productapi"
	"github.com/sakondev/drg-inventory/internal/integrations/sheets"
	"github.com/sakondev/drg-inventory/internal/integrations/vending"
)

// Config is sources.json: which sources run, in which priority order, with
// their own settings, plus the branch policy applied to the aggregate.
type Config struct {
	AutoStart           bool                       `json:"auto_start"`
	SyncIntervalSeconds int                        `json:"sync_interval_seconds,omitempty"`
	Sources             []string                   `json:"sources"`      // priority order
	Integrations        map[string]json.RawMessage `json:"integrations"` // source name -> raw settings
	BranchPolicy        map[int][]string           `json:"branch_policy"`
}

// DefaultSourceOrder is loyalty first, then the online store, vending, HQ, Saimai.
var DefaultSourceOrder = []string{loyalty.Name, productapi.Name, vending.Name, sheets.HQ, sheets.Saimai}

var onlineSKUs = []string{
	"PEW-US-Duo", "P_EW-US", "P_EW-SE", "P_EW-INT", "P_EW-Refill-DC",
	"EW-CC", "P_EW-TW75", "P_EW-GUM75", "P_EW-PO", "EW-USF",
	"P_F_EW_WHT12", "P_EW-Refill-TF", "P_EW-SF", "PEW-WJ180",
	"P_EW-Refill-WH", "EW-WJR2", "P_F_EW_CRF12", "EW-PC70", "P_EW-FT70",
	"EW-SG8PLUS", "EW-PL5", "P_EW-FTGR", "P_EW-OT75", "P_EW-SG8",
	"P_EW-SR75", "P_EW-US-P3", "P_F_EW_OSM12", "P_F_EW_STS12",
}

var vendingSKUs = []string{
	"19373711215", "19373911219", "40716449742", "40716491772", "40716542052",
	"4510908387", "45109429598", "45109457385", "45109458633", "45109474742",
	"45109488265", "45109547856", "45109548871", "45109552552", "45109554814",
	"45109567697", "4571471280063", "4571471281015", "5016221012406", "5016221012420",
	"6971285409", "7612412070002", "7612412423129", "7612412423686", "7612412428599",
	"7612412428964", "7612412429503", "7612412429510", "7612412429534", "7612412429879",
	"7612412430332", "7640131971072", "7640131971133", "7640131971317", "7640131971713",
	"7640131975100", "7640131975117", "7640131978309", "85178003367", "9555038904338",
}

// DefaultBranchPolicy restricts branch 10 to the online catalogue and the
// two vending machines (11, 12) to what they can stock. Aggregate branch IDs
// are assigned in replay order, so these keys only fit a deployment whose
// history numbers those branches 10-12; adjust branch_policy in sources.json
// otherwise.
func DefaultBranchPolicy() map[int][]string {
	return map[int][]string{
		10: append([]string(nil), onlineSKUs...),
		11: append([]string(nil), vendingSKUs...),
		12: append([]string(nil), vendingSKUs...),
	}
}

func Defaults() *Config {
	raw := func(v any) json.RawMessage {
		b, _ := json.Marshal(v)
		return b
	}
	return &Config{
		AutoStart: false,
		Sources:   append([]string(nil), DefaultSourceOrder...),
		Integrations: map[string]json.RawMessage{
			loyalty.Name:    raw(loyalty.DefaultSettings()),
			productapi.Name: raw(productapi.DefaultSettings()),
			vending.Name:    raw(vending.DefaultSettings()),
			sheets.HQ:       raw(sheets.HQDefaults()),
			sheets.Saimai:   raw(sheets.SaimaiDefaults()),
		},
		BranchPolicy: DefaultBranchPolicy(),
	}
}

// LoadOrCreate reads path, writing the defaults there first when it does not
// exist. The bool reports whether the file was created.
func LoadOrCreate(path string) (*Config, bool, error) {
	_ = os.MkdirAll(filepath.Dir(path), 0o755)

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := Defaults()
			if err := Save(path, cfg); err != nil {
				return nil, false, fmt.Errorf("write default config: %w", err)
			}
			return cfg, true, nil
		}
		return nil, false, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	var cfg Config
	if err := json.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, false, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Integrations == nil {
		cfg.Integrations = map[string]json.RawMessage{}
	}
	if cfg.Sources == nil {
		cfg.Sources = append([]string(nil), DefaultSourceOrder...)
	}
	if cfg.BranchPolicy == nil {
		cfg.BranchPolicy = map[int][]string{}
	}
	return &cfg, false, nil
}

func Save(path string, cfg *Config) error {
	_ = os.MkdirAll(filepath.Dir(path), 0o755)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(cfg)
}

// UnmarshalIntegration decodes the raw settings of one source into v.
func (c *Config) UnmarshalIntegration(name string, v any) error {
	raw, ok := c.Integrations[name]
	if !ok {
		return fmt.Errorf("no settings for %q in config", name)
	}
	return json.Unmarshal(raw, v)
}
