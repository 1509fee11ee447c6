// internal/integrations/loyalty/loyalty.go
package loyalty

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/sakondev/drg-inventory/internal/integrations"
	"github.com/sakondev/drg-inventory/internal/integrations/tabular"
	"github.com/sakondev/drg-inventory/internal/inventory"
	"github.com/sakondev/drg-inventory/internal/retry"
)

const Name = "loyalty"

// Branch maps a display name to the portal's restaurant and template ids.
type Branch struct {
	Name         string `json:"name"`
	RestaurantID int    `json:"restaurant_id"`
	TemplateID   int    `json:"template_id"`
}

type Settings struct {
	BaseURL      string         `json:"base_url"`
	LoginPath    string         `json:"login_path"`
	DownloadPath string         `json:"download_path"` // two %d verbs: restaurant id, template id
	TimeoutSec   int            `json:"timeout_sec"`
	Branches     []Branch       `json:"branches"`
	Layout       tabular.Layout `json:"layout"`
}

func DefaultSettings() Settings {
	return Settings{
		BaseURL:      "https://mychococard.com",
		LoginPath:    "/Account/Login",
		DownloadPath: "/CRM/v2/Restaurant/%d/Inventory/DownloadTemplate/%d",
		TimeoutSec:   60,
		Branches: []Branch{
			{Name: "Samyan", RestaurantID: 7485, TemplateID: 2209},
			{Name: "Circle", RestaurantID: 7487, TemplateID: 2207},
			{Name: "Rama 9", RestaurantID: 7484, TemplateID: 2206},
			{Name: "Eastville", RestaurantID: 7483, TemplateID: 2205},
			{Name: "Mega", RestaurantID: 7482, TemplateID: 2204},
			{Name: "Embassy", RestaurantID: 7481, TemplateID: 2203},
			{Name: "EmQuartier", RestaurantID: 7480, TemplateID: 2202},
		},
		Layout: tabular.Layout{
			Item: tabular.Named("Item"),
			SKU:  tabular.Named("SKU"),
			Qty:  tabular.Named("Available Qty."),
		},
	}
}

var ErrLoginFailed = errors.New("loyalty portal login failed")

// Portal downloads one inventory template per branch after a form login.
type Portal struct {
	log  zerolog.Logger
	cfg  Settings
	rt   integrations.Runtime
	http *resty.Client
}

func New(log zerolog.Logger, cfg Settings, rt integrations.Runtime) (*Portal, error) {
	if len(cfg.Branches) == 0 {
		return nil, fmt.Errorf("loyalty: no branches configured")
	}
	c, err := integrations.NewHTTPClient(cfg.BaseURL, time.Duration(cfg.TimeoutSec)*time.Second)
	if err != nil {
		return nil, err
	}
	return &Portal{log: log, cfg: cfg, rt: rt, http: c}, nil
}

func (p *Portal) Name() string    { return Name }
func (p *Portal) NameKeyed() bool { return false }

// Fetch logs in once, then downloads every branch with its own retry budget.
// It fails only when login fails or no branch could be read.
func (p *Portal) Fetch(ctx context.Context) ([]inventory.RawRecord, error) {
	login := retry.Do(ctx, p.log, p.rt.Retry, "loyalty login", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, p.login(ctx)
	})
	if !login.OK() {
		return nil, inventory.E(inventory.SourceUnavailable, "loyalty login", login.Err)
	}
	p.log.Info().Int("attempts", login.Attempts).Msg("login ok")

	var out []inventory.RawRecord
	ok := 0
	for _, b := range p.cfg.Branches {
		res := retry.Do(ctx, p.log, p.rt.Retry, "loyalty branch "+b.Name, func(ctx context.Context) ([]inventory.RawRecord, error) {
			return p.branch(ctx, b)
		})
		if !res.OK() {
			p.log.Error().
				Err(res.Err).
				Str("branch", b.Name).
				Str("kind", string(inventory.SourceUnavailable)).
				Msg("branch dropped from this run")
			continue
		}
		ok++
		out = append(out, res.Value...)
		p.log.Info().Str("branch", b.Name).Int("records", len(res.Value)).Msg("branch processed")
	}

	if ok == 0 {
		return nil, inventory.E(inventory.SourceUnavailable, "loyalty download", errors.New("no branch could be read"))
	}
	return out, nil
}

func (p *Portal) login(ctx context.Context) error {
	res, err := p.http.R().SetContext(ctx).Get(p.cfg.LoginPath)
	if err != nil {
		return fmt.Errorf("get login page: %w", err)
	}
	if err := integrations.CheckResponse(res, "get login page"); err != nil {
		return err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return fmt.Errorf("parse login page: %w", err)
	}
	token := doc.Find("input[name=__RequestVerificationToken]").AttrOr("value", "")
	if token == "" {
		return fmt.Errorf("anti-forgery token not found on login page")
	}

	res, err = p.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"username":                   p.rt.Creds.Username,
			"password":                   p.rt.Creds.Password,
			"__RequestVerificationToken": token,
		}).
		Post(p.cfg.LoginPath)
	if err != nil {
		return fmt.Errorf("post login: %w", err)
	}
	if err := integrations.CheckResponse(res, "post login"); err != nil {
		return err
	}

	// the portal answers a bad login with the login form again
	doc, err = goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err == nil && doc.Find("input[name=password]").Length() > 0 {
		return ErrLoginFailed
	}
	return nil
}

func (p *Portal) branch(ctx context.Context, b Branch) ([]inventory.RawRecord, error) {
	res, err := p.http.R().
		SetContext(ctx).
		Get(fmt.Sprintf(p.cfg.DownloadPath, b.RestaurantID, b.TemplateID))
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", b.Name, err)
	}
	if err := integrations.CheckResponse(res, "download "+b.Name); err != nil {
		return nil, err
	}

	if path, err := integrations.Hold(p.rt.HoldingDir, "loyalty_"+b.Name+".xlsx", res.Body()); err != nil {
		p.log.Warn().Err(err).Str("branch", b.Name).Msg("could not keep download")
	} else if path != "" {
		p.log.Debug().Str("path", path).Msg("download kept")
	}

	rows, err := tabular.ReadXLSX(bytes.NewReader(res.Body()), "")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name, err)
	}
	return p.cfg.Layout.Project(p.log.With().Str("branch", b.Name).Logger(), rows, b.Name)
}

func factory(log zerolog.Logger, raw json.RawMessage, rt integrations.Runtime) (integrations.Source, error) {
	cfg := DefaultSettings()
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("loyalty settings: %w", err)
		}
	}
	return New(log, cfg, rt)
}

func init() {
	integrations.Register(Name, factory)
}
