package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	conf "github.com/sakondev/drg-inventory/internal/config"
	"github.com/sakondev/drg-inventory/internal/db"
	"github.com/sakondev/drg-inventory/internal/inventory"
	logs "github.com/sakondev/drg-inventory/internal/logs"
	"github.com/sakondev/drg-inventory/internal/pipeline"
	syncer "github.com/sakondev/drg-inventory/internal/syncer"
)

// override with -ldflags "-X main.ver=1.0.1"
var ver = "1.0.0"

// app holds what every front-end (CLI, tray) needs.
type app struct {
	log     zerolog.Logger
	env     *conf.Env
	cfg     *conf.Config
	cfgPath string
	db      *db.Handle // nil when DB_DRIVER=none or the open failed
}

func bootstrap(envFile string, withConsole bool) (*app, error) {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}
	env := conf.LoadEnv()
	log := logs.New(env.LogFile, withConsole, env.LogLevel)

	cfg, firstRun, err := conf.LoadOrCreate(env.SourcesFile)
	if err != nil {
		return nil, err
	}
	if firstRun {
		log.Info().Str("file", env.SourcesFile).Msg("default sources config written")
	}

	a := &app{log: log, env: env, cfg: cfg, cfgPath: env.SourcesFile}
	a.db = openDB(log, env)
	return a, nil
}

// openDB returns nil instead of failing; the database is only a mirror.
func openDB(log zerolog.Logger, env *conf.Env) *db.Handle {
	if env.DBDriver == "none" {
		return nil
	}
	sqliteFile := env.DBDriver == "" || env.DBDriver == "sqlite" || env.DBDriver == "sqlite3"
	var (
		h   *db.Handle
		err error
	)
	if env.DBDSN == "" && (env.DBDriver == "" || env.DBDriver == "sqlite") {
		_ = os.MkdirAll(env.OutputDir, 0o755)
		h, err = db.OpenAt(env.OutputDir)
	} else {
		if sqliteFile {
			_ = os.MkdirAll(filepath.Dir(env.DBDSN), 0o755)
		}
		h, err = db.Open(env.DBDriver, env.DBDSN)
	}
	if err != nil {
		log.Error().Err(err).Str("driver", env.DBDriver).Msg("db open failed, running without mirror")
		return nil
	}
	if err := h.Migrate(); err != nil {
		log.Error().Err(err).Msg("db migrate failed, running without mirror")
		_ = h.Close()
		return nil
	}
	log.Info().Str("driver", h.Driver).Msg("db ready")
	return h
}

func (a *app) pipelineFor(cfg *conf.Config) (*pipeline.Pipeline, error) {
	return pipeline.New(a.log, pipeline.Options{Env: a.env, Config: cfg, DB: a.db})
}

func (a *app) pipeline() (*pipeline.Pipeline, error) { return a.pipelineFor(a.cfg) }

func (a *app) syncer() (*syncer.Syncer, error) {
	return syncer.New(a.log, a.cfg, a.env.SyncInterval, func(cfg *conf.Config) (syncer.Runner, error) {
		return a.pipelineFor(cfg)
	})
}

// reload re-reads sources.json.
func (a *app) reload() (*conf.Config, error) {
	cfg, _, err := conf.LoadOrCreate(a.cfgPath)
	if err != nil {
		return nil, err
	}
	a.cfg = cfg
	return cfg, nil
}

func (a *app) close() {
	if a.db != nil {
		_ = a.db.Close()
	}
	// let the log writer flush
	time.Sleep(50 * time.Millisecond)
}

// exitCode is 2 for a persistence failure and 1 for anything else.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case inventory.KindOf(err) == inventory.PersistenceFailure:
		return 2
	default:
		return 1
	}
}
