// internal/integrations/collect.go
package integrations

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/sakondev/drg-inventory/internal/inventory"
)

// Build instantiates the named sources in the given order. rt gives each
// source its runtime (credentials differ per source). Unknown names and
// factory errors are logged and skipped.
func Build(log zerolog.Logger, order []string, settings map[string]json.RawMessage, rt func(name string) Runtime) []Source {
	var out []Source
	for _, name := range order {
		f, ok := Get(name)
		if !ok {
			log.Warn().Str("integration", name).Msg("no factory registered, skipping")
			continue
		}
		src, err := f(log.With().Str("integration", name).Logger(), settings[name], rt(name))
		if err != nil {
			log.Error().Err(err).Str("integration", name).Msg("init failed")
			continue
		}
		out = append(out, src)
	}
	log.Info().Int("requested", len(order)).Int("built", len(out)).Msg("sources built")
	return out
}

// Collect runs one source. A failed source yields an empty batch, never an error.
func Collect(ctx context.Context, log zerolog.Logger, src Source) inventory.SourceBatch {
	b := inventory.SourceBatch{Source: src.Name(), NameKeyed: src.NameKeyed()}
	start := time.Now()

	recs, err := src.Fetch(ctx)
	if err != nil {
		log.Error().
			Err(err).
			Str("integration", src.Name()).
			Str("kind", string(inventory.SourceUnavailable)).
			Dur("took", time.Since(start)).
			Msg("source unavailable, contributing nothing")
		return b
	}

	b.Records = recs
	log.Info().
		Str("integration", src.Name()).
		Int("records", len(recs)).
		Dur("took", time.Since(start)).
		Msg("source fetched")
	return b
}

// CollectAll runs sources one after another in priority order.
func CollectAll(ctx context.Context, log zerolog.Logger, srcs []Source) []inventory.SourceBatch {
	out := make([]inventory.SourceBatch, 0, len(srcs))
	for _, src := range srcs {
		if ctx.Err() != nil {
			log.Warn().Str("integration", src.Name()).Msg("run cancelled, skipping remaining sources")
			out = append(out, inventory.SourceBatch{Source: src.Name(), NameKeyed: src.NameKeyed()})
			continue
		}
		out = append(out, Collect(ctx, log, src))
	}
	return out
}
