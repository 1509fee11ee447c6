// internal/integrations/types.go
package integrations

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/sakondev/drg-inventory/internal/inventory"
	"github.com/sakondev/drg-inventory/internal/retry"
)

// Source is one upstream system that reports stock per branch.
type Source interface {
	Name() string
	// NameKeyed sources may attach to existing items by display name even when they carry a SKU.
	NameKeyed() bool
	Fetch(ctx context.Context) ([]inventory.RawRecord, error)
}

// Credentials come from the environment, never from sources.json.
type Credentials struct {
	Username  string
	Password  string
	StoreName string
	APIKey    string
	APISecret string
}

// Runtime is what every factory gets besides its own raw settings.
type Runtime struct {
	Retry          retry.Policy
	HoldingDir     string // per-run scratch dir for downloaded spreadsheets
	Creds          Credentials
	SKUMappingFile string
}

type Factory func(log zerolog.Logger, raw json.RawMessage, rt Runtime) (Source, error)
