// internal/syncer/syncer.go
package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	conf "github.com/sakondev/drg-inventory/internal/config"
	"github.com/sakondev/drg-inventory/internal/inventory"
	"github.com/sakondev/drg-inventory/internal/pipeline"
)

// Runner is one full fetch+aggregate pass.
type Runner interface {
	Run(ctx context.Context) (*pipeline.Result, error)
}

// Builder makes a Runner for a configuration; it is called again on UpdateConfig.
type Builder func(cfg *conf.Config) (Runner, error)

// Status describes the last finished run.
type Status struct {
	At       time.Time
	Items    int
	Err      error
	Fatal    bool // persistence failure
	Attempts uint64
}

type Syncer struct {
	log      zerolog.Logger
	build    Builder
	fallback time.Duration // used when the config has no interval

	mu      sync.Mutex // guards everything below
	cfg     *conf.Config
	runner  Runner
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	ticks   uint64
	last    Status

	runMu sync.Mutex // one run at a time, scheduled or manual
}

func New(log zerolog.Logger, cfg *conf.Config, fallback time.Duration, build Builder) (*Syncer, error) {
	r, err := build(cfg)
	if err != nil {
		return nil, err
	}
	if fallback <= 0 {
		fallback = time.Hour
	}
	return &Syncer{log: log, cfg: cfg, build: build, runner: r, fallback: fallback}, nil
}

// Start launches the schedule. The first run happens immediately.
func (s *Syncer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.ticks = 0
	s.wg.Add(1)
	s.mu.Unlock()

	s.log.Info().Dur("interval", s.interval()).Msg("syncer: start")
	go s.loop(ctx)
	return nil
}

// Stop cancels the schedule and waits for an in-flight run to return.
func (s *Syncer) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	s.log.Info().Msg("syncer: stop")
}

// UpdateConfig swaps the configuration and rebuilds the runner. A running
// schedule picks the new interval up on its next tick.
func (s *Syncer) UpdateConfig(cfg *conf.Config) error {
	r, err := s.build(cfg)
	if err != nil {
		return err
	}
	s.runMu.Lock()
	s.mu.Lock()
	s.cfg = cfg
	s.runner = r
	s.mu.Unlock()
	s.runMu.Unlock()

	s.log.Info().Msg("syncer: config updated")
	return nil
}

func (s *Syncer) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Syncer) Last() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// RunNow runs the pipeline once, waiting for any scheduled run to finish first.
func (s *Syncer) RunNow(ctx context.Context) (*pipeline.Result, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	s.mu.Lock()
	r := s.runner
	s.ticks++
	n := s.ticks
	s.mu.Unlock()

	res, err := r.Run(ctx)

	st := Status{At: time.Now(), Err: err, Fatal: inventory.KindOf(err) == inventory.PersistenceFailure, Attempts: n}
	if res != nil {
		st.Items = res.Items
	}
	s.mu.Lock()
	s.last = st
	s.mu.Unlock()

	switch {
	case st.Fatal:
		s.log.Error().Err(err).Uint64("run", n).Msg("syncer: run failed to persist")
	case err != nil:
		s.log.Warn().Err(err).Uint64("run", n).Msg("syncer: run ended early")
	default:
		s.log.Info().Uint64("run", n).Int("items", st.Items).Msg("syncer: run done")
	}
	return res, err
}

func (s *Syncer) interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg != nil && s.cfg.SyncIntervalSeconds > 0 {
		return time.Duration(s.cfg.SyncIntervalSeconds) * time.Second
	}
	return s.fallback
}

func (s *Syncer) loop(ctx context.Context) {
	defer s.wg.Done()

	_, _ = s.RunNow(ctx)

	cur := s.interval()
	ticker := time.NewTicker(cur)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Debug().Msg("syncer: loop exit")
			return
		case <-ticker.C:
			if next := s.interval(); next != cur {
				cur = next
				ticker.Reset(cur)
			}
			_, _ = s.RunNow(ctx)
		}
	}
}
