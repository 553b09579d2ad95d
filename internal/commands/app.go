package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/fintrack-dev/fintrack/internal/accounts"
	"github.com/fintrack-dev/fintrack/internal/config"
	"github.com/fintrack-dev/fintrack/internal/importer"
	"github.com/fintrack-dev/fintrack/internal/ledger"
	"github.com/fintrack-dev/fintrack/internal/logger"
	"github.com/fintrack-dev/fintrack/internal/rules"
	"github.com/fintrack-dev/fintrack/internal/store/memory"
	"github.com/fintrack-dev/fintrack/internal/store/postgres"
	"github.com/fintrack-dev/fintrack/internal/store/sqlite"
)

// app is everything a command needs from an initialized repository.
type app struct {
	root     string
	cfg      *config.Config
	accounts *accounts.Service
	rules    *rules.Set
	profiles *importer.Registry
	store    importer.Store
	log      zerolog.Logger
	closers  []func()
}

// openApp loads the repository named by --repo. fallback is the log format
// used when neither --log-format nor the config choose one.
func openApp(cmd *cobra.Command, fallback logger.Format) (*app, error) {
	root, err := filepath.Abs(repoFlag(cmd))
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	cfg, err := config.Load(filepath.Join(root, config.FileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s is not a fintrack repository (run `fintrack init`)", root)
		}
		return nil, err
	}

	log, err := commandLogger(cmd, cfg, fallback)
	if err != nil {
		return nil, err
	}

	accts, err := accounts.Load(root)
	if err != nil {
		return nil, err
	}

	rulesPath := cfg.Import.RulesFile
	if rulesPath == "" {
		rulesPath = rules.DefaultPath
	}
	ruleSet, err := rules.Load(filepath.Join(root, rulesPath))
	if err != nil {
		return nil, err
	}

	profiles := importer.DefaultRegistry()
	if cfg.Import.ProfilesFile != "" {
		if err := profiles.LoadFile(filepath.Join(root, cfg.Import.ProfilesFile)); err != nil {
			return nil, err
		}
	}

	a := &app{
		root:     root,
		cfg:      cfg,
		accounts: accts,
		rules:    ruleSet,
		profiles: profiles,
		log:      log,
	}
	if err := a.openStore(cmd.Context()); err != nil {
		return nil, err
	}
	cmd.SetContext(logger.WithContext(cmd.Context(), log))
	return a, nil
}

func (a *app) openStore(ctx context.Context) error {
	switch a.cfg.Store.Driver {
	case "", config.DriverLedger:
		a.store = ledger.NewStore(a.root, a.accounts)
	case config.DriverMemory:
		a.store = memory.New()
	case config.DriverSQLite:
		path := a.cfg.Store.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(a.root, path)
		}
		s, err := sqlite.Open(path, a.cfg.Store.LogSQL)
		if err != nil {
			return fmt.Errorf("opening sqlite store: %w", err)
		}
		a.store = s
		a.closers = append(a.closers, func() { _ = s.Close() })
	case config.DriverPostgres:
		s, err := postgres.Connect(ctx, a.cfg.Store.DSN)
		if err != nil {
			return fmt.Errorf("opening postgres store: %w", err)
		}
		if err := s.EnsureSchema(ctx); err != nil {
			s.Close()
			return err
		}
		a.store = s
		a.closers = append(a.closers, s.Close)
	default:
		return fmt.Errorf("unknown store driver %q", a.cfg.Store.Driver)
	}
	a.log.Debug().Str("driver", a.driver()).Msg("store opened")
	return nil
}

func (a *app) driver() string {
	if a.cfg.Store.Driver == "" {
		return config.DriverLedger
	}
	return a.cfg.Store.Driver
}

func (a *app) Close() {
	for _, c := range a.closers {
		c()
	}
}

// commandLogger builds the logger: flags win over config.
func commandLogger(cmd *cobra.Command, cfg *config.Config, fallback logger.Format) (zerolog.Logger, error) {
	opts := logger.Options{Format: fallback, Out: cmd.ErrOrStderr()}
	if cfg != nil {
		opts.Level = cfg.Log.Level
		if cfg.Log.Format != "" {
			opts.Format = logger.Format(cfg.Log.Format)
		}
	}
	if f := cmd.Flags().Lookup("log-level"); f != nil && f.Changed {
		opts.Level = f.Value.String()
	}
	if f := cmd.Flags().Lookup("log-format"); f != nil && f.Changed {
		opts.Format = logger.Format(f.Value.String())
	}
	return logger.New(opts)
}
