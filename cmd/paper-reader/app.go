// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/paper-reader/internal/acquire"
	"github.com/pdiddy/paper-reader/internal/auth"
	"github.com/pdiddy/paper-reader/internal/cache"
	"github.com/pdiddy/paper-reader/internal/container"
	"github.com/pdiddy/paper-reader/internal/convert"
	"github.com/pdiddy/paper-reader/internal/logger"
	"github.com/pdiddy/paper-reader/internal/metrics"
	"github.com/pdiddy/paper-reader/internal/reader"
	"github.com/pdiddy/paper-reader/internal/search"
	"github.com/pdiddy/paper-reader/pkg/types"
)

// app holds the components shared by the subcommands of one invocation.
type app struct {
	cfg     types.Config
	log     zerolog.Logger
	metrics *metrics.Metrics
	store   *cache.Store
	service *reader.Service
	token   string
}

// current is the app opened by the running subcommand, closed after it.
var current *app

// openStore builds the logger, metrics, and cache. Cache-only commands
// stop here.
func openStore(cmd *cobra.Command) (*app, error) {
	if current != nil {
		return current, nil
	}
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, Output: cmd.ErrOrStderr()})
	m := metrics.New()

	store, err := cache.Open(cache.ConfigFrom(cfg),
		cache.WithLogger(logger.Component(log, "cache")),
		cache.WithMetrics(m))
	if err != nil {
		return nil, err
	}

	current = &app{
		cfg:     cfg,
		log:     log,
		metrics: m,
		store:   store,
		token:   viper.GetString("token"),
	}
	return current, nil
}

// openApp additionally wires the retrieval service.
func openApp(cmd *cobra.Command) (*app, error) {
	a, err := openStore(cmd)
	if err != nil {
		return nil, err
	}
	if a.service != nil {
		return a, nil
	}

	authorizer, err := newAuthorizer(a.cfg, a.log)
	if err != nil {
		return nil, err
	}

	a.service = reader.New(reader.Options{
		Provider: search.NewArxivProvider(a.cfg.HTTP, logger.Component(a.log, "search")),
		Cache:    a.store,
		Fetcher:  acquire.NewFetcher(a.cfg.HTTP, logger.Component(a.log, "fetch"), a.metrics),
		Extractor: &convert.Extractor{
			Primary:  newPrimaryConverter(cmd.Context(), a.cfg.Conversion.Primary, a.log),
			Fallback: convert.PdfcpuPages{},
			Log:      logger.Component(a.log, "convert"),
			Metrics:  a.metrics,
		},
		Auth:    authorizer,
		Config:  a.cfg,
		Log:     logger.Component(a.log, "reader"),
		Metrics: a.metrics,
	})
	return a, nil
}

func newAuthorizer(cfg types.Config, log zerolog.Logger) (auth.Authorizer, error) {
	if !cfg.Auth.Enabled {
		return auth.AllowAll{}, nil
	}
	ts, err := auth.LoadTokenSet(cfg.SecretsDir, log)
	if err != nil {
		return nil, err
	}
	log.Debug().Int("tokens", ts.Len()).Msg("token authorization enabled")
	return ts, nil
}

// newPrimaryConverter returns the configured primary engine, or nil when
// it is disabled or unavailable. Extraction then relies on the fallback.
func newPrimaryConverter(ctx context.Context, backend types.ConversionBackend, log zerolog.Logger) convert.Converter {
	switch backend {
	case types.BackendMarkitdown:
		rt, err := container.DetectRuntime(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("markitdown unavailable, using page extraction only")
			return nil
		}
		c, err := convert.NewMarkitdownConverter(ctx, rt)
		if err != nil {
			log.Warn().Err(err).Msg("markitdown unavailable, using page extraction only")
			return nil
		}
		return c
	case types.BackendPdftotext:
		c, err := convert.NewPdftotextConverter()
		if err != nil {
			log.Warn().Err(err).Msg("pdftotext unavailable, using page extraction only")
			return nil
		}
		return c
	default:
		return nil
	}
}

// closeApp writes metrics and closes the cache. It is safe to call when
// no app was opened.
func closeApp() error {
	a := current
	if a == nil {
		return nil
	}
	current = nil

	if st, err := a.store.Stats(context.Background()); err == nil {
		a.metrics.CacheSize(st.Count, st.TotalBytes)
	}
	var errs []error
	if path := viper.GetString("metrics_file"); path != "" {
		errs = append(errs, a.metrics.WriteTextfile(path))
	}
	errs = append(errs, a.store.Close())
	return errors.Join(errs...)
}
