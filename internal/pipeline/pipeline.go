// internal/pipeline/pipeline.go
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sakondev/drg-inventory/internal/aggregate"
	conf "github.com/sakondev/drg-inventory/internal/config"
	"github.com/sakondev/drg-inventory/internal/db"
	"github.com/sakondev/drg-inventory/internal/integrations"
	"github.com/sakondev/drg-inventory/internal/inventory"
	"github.com/sakondev/drg-inventory/internal/snapshot"

	// source registration
	_ "github.com/sakondev/drg-inventory/internal/integrations/loyalty"
	_ "github.com/sakondev/drg-inventory/internal/integrations/productapi"
	_ "github.com/sakondev/drg-inventory/internal/integrations/sheets"
	_ "github.com/sakondev/drg-inventory/internal/integrations/vending"
)

type Options struct {
	Env    *conf.Env
	Config *conf.Config
	DB     *db.Handle // optional mirror; nil disables it
	Now    func() time.Time
	// Sources replaces the registry-built sources when non-nil.
	Sources []integrations.Source
}

type Pipeline struct {
	log     zerolog.Logger
	env     *conf.Env
	cfg     *conf.Config
	db      *db.Handle
	now     func() time.Time
	sources []integrations.Source
	store   *snapshot.Store
}

// SourceSummary is what one source contributed to a run.
type SourceSummary struct {
	Name    string
	Records int
}

type Result struct {
	RunID        string
	Sources      []SourceSummary
	Items        int
	Conflicts    int
	Snapshot     snapshot.Snapshot
	SnapshotPath string
	Index        []string
}

func New(log zerolog.Logger, opts Options) (*Pipeline, error) {
	if opts.Env == nil || opts.Config == nil {
		return nil, fmt.Errorf("pipeline: env and config are required")
	}
	loc, ok := opts.Env.Location()
	if !ok {
		log.Warn().Str("tz", opts.Env.SnapshotTZ).Msg("unknown snapshot time zone, using UTC")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		log:     log,
		env:     opts.Env,
		cfg:     opts.Config,
		db:      opts.DB,
		now:     now,
		sources: opts.Sources,
		store:   snapshot.NewStore(log, opts.Env.DataDir, loc),
	}, nil
}

func (p *Pipeline) Store() *snapshot.Store { return p.store }

func (p *Pipeline) runtime(holding string) func(string) integrations.Runtime {
	return func(name string) integrations.Runtime {
		return integrations.Runtime{
			Retry:          p.env.Retry(),
			HoldingDir:     holding,
			Creds:          p.env.Credentials(name),
			SKUMappingFile: p.env.SKUMappingFile,
		}
	}
}

// Fetch pulls every source, reconciles and writes one snapshot plus the
// latest copy. The index is regenerated on every exit path. Only a
// persistence failure (or cancellation) is returned as an error; failed
// sources simply contribute nothing.
func (p *Pipeline) Fetch(ctx context.Context) (res *Result, err error) {
	runID := uuid.NewString()
	log := p.log.With().Str("run_id", runID).Logger()
	res = &Result{RunID: runID}
	start := time.Now()

	holding := filepath.Join(p.env.HoldingDir, runID)
	defer func() {
		if rmErr := os.RemoveAll(holding); rmErr != nil {
			log.Warn().Err(rmErr).Str("dir", holding).Msg("holding dir not removed")
		}
	}()
	defer func() {
		names, ierr := p.store.WriteIndex()
		if ierr != nil {
			// the index is advisory; a written snapshot still counts
			log.Error().Err(ierr).Msg("index not regenerated")
			return
		}
		res.Index = names
	}()

	sources := p.sources
	if sources == nil {
		sources = integrations.Build(log, p.cfg.Sources, p.cfg.Integrations, p.runtime(holding))
	}
	batches := integrations.CollectAll(ctx, log, sources)
	for _, b := range batches {
		res.Sources = append(res.Sources, SourceSummary{Name: b.Source, Records: len(b.Records)})
	}
	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("run cancelled before writing: %w", err)
	}

	inv := inventory.NewReconciler(log).Reconcile(batches)
	if p.env.AddTotalBranch {
		inv.AddTotals()
	}
	res.Items = inv.Len()
	res.Conflicts = len(inv.Conflicts())

	snap, path, err := p.store.Write(inv.Items(), p.now())
	if err != nil {
		return res, err
	}
	res.Snapshot, res.SnapshotPath = snap, path

	if err := snapshot.WriteLatest(filepath.Join(p.env.OutputDir, snapshot.LatestFile), snap); err != nil {
		return res, err
	}

	p.record(log, runID, path, snap, inv.Conflicts())

	log.Info().
		Int("sources", len(sources)).
		Int("items", res.Items).
		Int("conflicts", res.Conflicts).
		Str("file", filepath.Base(path)).
		Dur("took", time.Since(start)).
		Msg("fetch run complete")
	return res, nil
}

// record mirrors run metadata into the database. Failures are logged only.
func (p *Pipeline) record(log zerolog.Logger, runID, path string, snap snapshot.Snapshot, conflicts []inventory.Conflict) {
	if p.db == nil {
		return
	}
	id, _, err := p.db.RegisterSnapshot(path, runID, snap.LastUpdated, len(snap.Inventory))
	if err != nil {
		log.Error().Err(err).Msg("snapshot not registered in db")
		return
	}
	status := db.StatusDone
	if err := p.db.SaveIdentityIssues(runID, conflicts); err != nil {
		log.Error().Err(err).Msg("identity issues not saved")
		status = db.StatusError
		_ = p.db.MarkSnapshot(id, status, err)
		return
	}
	if err := p.db.MarkSnapshot(id, status, nil); err != nil {
		log.Error().Err(err).Msg("snapshot status not updated")
	}
	if err := p.db.SetKV(db.KVLastRun, runID); err != nil {
		log.Error().Err(err).Msg("last run not recorded")
	}
}

// Aggregate rebuilds the aggregate document from the whole store, applies
// the branch policy and writes it to the output dir (and the db mirror).
func (p *Pipeline) Aggregate(ctx context.Context) (*aggregate.Model, string, error) {
	m, err := aggregate.New(p.log).Aggregate(ctx, p.store)
	if err != nil {
		return nil, "", err
	}
	aggregate.Annotate(p.log, m, p.cfg.BranchPolicy)

	out := filepath.Join(p.env.OutputDir, aggregate.OutputFile)
	if err := m.WriteFile(out); err != nil {
		return nil, "", inventory.E(inventory.PersistenceFailure, "write "+aggregate.OutputFile, err)
	}
	p.log.Info().Str("file", out).Msg("aggregate written")

	if p.db != nil {
		if err := p.db.MirrorAggregate(m); err != nil {
			p.log.Error().Err(err).Msg("aggregate not mirrored to db")
		}
	}
	return m, out, nil
}

// Run is Fetch followed by Aggregate. A failed fetch skips aggregation.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	res, err := p.Fetch(ctx)
	if err != nil {
		return res, err
	}
	if _, _, err := p.Aggregate(ctx); err != nil {
		return res, err
	}
	return res, nil
}

// Index regenerates file_list.json on its own.
func (p *Pipeline) Index() ([]string, error) {
	return p.store.WriteIndex()
}
