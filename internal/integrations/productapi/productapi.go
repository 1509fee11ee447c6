// internal/integrations/productapi/productapi.go
package productapi

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/sakondev/drg-inventory/internal/integrations"
	"github.com/sakondev/drg-inventory/internal/integrations/tabular"
	"github.com/sakondev/drg-inventory/internal/inventory"
	"github.com/sakondev/drg-inventory/internal/retry"
)

const Name = "productapi"

type Settings struct {
	URL        string `json:"url"`
	Branch     string `json:"branch"`
	TimeoutSec int    `json:"timeout_sec"`
	PageSize   int    `json:"page_size"` // 0: one request, no paging
	MaxPages   int    `json:"max_pages"`
}

func DefaultSettings() Settings {
	return Settings{
		URL:        "https://open-api.zortout.com/v4/Product/GetProducts",
		Branch:     "On Time",
		TimeoutSec: 60,
		MaxPages:   100,
	}
}

type product struct {
	Name           string          `json:"name"`
	SKU            string          `json:"sku"`
	AvailableStock json.RawMessage `json:"availablestock"` // number or string, coerced per row
}

type productsResponse struct {
	Res  json.RawMessage `json:"res,omitempty"`
	List []product       `json:"list"`
}

// Client reads the product catalogue of the online store, stock included.
type Client struct {
	log  zerolog.Logger
	cfg  Settings
	rt   integrations.Runtime
	http *resty.Client
}

func New(log zerolog.Logger, cfg Settings, rt integrations.Runtime) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("productapi: url is empty")
	}
	if cfg.Branch == "" {
		cfg.Branch = DefaultSettings().Branch
	}
	c, err := integrations.NewHTTPClient("", time.Duration(cfg.TimeoutSec)*time.Second)
	if err != nil {
		return nil, err
	}
	c.SetHeaders(map[string]string{
		"storename": rt.Creds.StoreName,
		"apikey":    rt.Creds.APIKey,
		"apisecret": rt.Creds.APISecret,
	})
	return &Client{log: log, cfg: cfg, rt: rt, http: c}, nil
}

func (c *Client) Name() string    { return Name }
func (c *Client) NameKeyed() bool { return false }

func (c *Client) Fetch(ctx context.Context) ([]inventory.RawRecord, error) {
	res := retry.Do(ctx, c.log, c.rt.Retry, "productapi fetch", c.fetchAll)
	if !res.OK() {
		return nil, inventory.E(inventory.SourceUnavailable, "productapi fetch", res.Err)
	}
	return res.Value, nil
}

func (c *Client) fetchAll(ctx context.Context) ([]inventory.RawRecord, error) {
	if c.cfg.PageSize <= 0 {
		list, err := c.page(ctx, 0)
		if err != nil {
			return nil, err
		}
		return c.records(list), nil
	}

	var out []inventory.RawRecord
	for page := 1; page <= c.cfg.MaxPages; page++ {
		list, err := c.page(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		out = append(out, c.records(list)...)
		if len(list) < c.cfg.PageSize {
			return out, nil
		}
	}
	c.log.Warn().Int("max_pages", c.cfg.MaxPages).Msg("page limit reached, result may be truncated")
	return out, nil
}

func (c *Client) page(ctx context.Context, page int) ([]product, error) {
	req := c.http.R().SetContext(ctx)
	if page > 0 {
		req.SetQueryParams(map[string]string{
			"page":  strconv.Itoa(page),
			"limit": strconv.Itoa(c.cfg.PageSize),
		})
	}
	res, err := req.Get(c.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	if err := integrations.CheckResponse(res, "get products"); err != nil {
		return nil, err
	}

	var body productsResponse
	if err := json.Unmarshal(res.Body(), &body); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	if body.List == nil {
		return nil, fmt.Errorf("response has no list (res=%s)", strings.TrimSpace(string(body.Res)))
	}
	return body.List, nil
}

// records maps products to raw records; a product whose stock does not parse
// is logged and skipped.
func (c *Client) records(list []product) []inventory.RawRecord {
	out := make([]inventory.RawRecord, 0, len(list))
	for i, p := range list {
		q, err := stock(p.AvailableStock)
		if err != nil {
			c.log.Warn().
				Err(err).
				Str("kind", string(inventory.MalformedRow)).
				Int("row", i+1).
				Str("item", p.Name).
				Str("sku", p.SKU).
				Msg("bad availablestock, skipping product")
			continue
		}
		out = append(out, inventory.RawRecord{
			ItemName: p.Name,
			SKU:      p.SKU,
			Branch:   c.cfg.Branch,
			Quantity: q,
		})
	}
	return out
}

func stock(raw json.RawMessage) (float64, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0, fmt.Errorf("availablestock missing")
	}
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, fmt.Errorf("availablestock %s: %w", raw, err)
		}
	}
	return tabular.ParseQuantity(s)
}

func factory(log zerolog.Logger, raw json.RawMessage, rt integrations.Runtime) (integrations.Source, error) {
	cfg := DefaultSettings()
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("productapi settings: %w", err)
		}
	}
	return New(log, cfg, rt)
}

func init() {
	integrations.Register(Name, factory)
}
