package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rushteam/shoprec/catalog"
	"github.com/rushteam/shoprec/config"
	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/feedback"
	"github.com/rushteam/shoprec/pkg/logging"
	"github.com/rushteam/shoprec/resolver"
	"github.com/rushteam/shoprec/store"
)

// app 持有按配置组装好的组件。
type app struct {
	cfg       *config.Config
	resolver  *resolver.Resolver
	collector feedback.Collector

	closers []func() error
}

// catalogBackend 是可写入且可读取的 catalog。
type catalogBackend interface {
	core.CatalogReader
	catalog.Writer
}

// newApp 组装所有组件；任一步失败时释放已打开的资源。
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}
	if err := a.init(ctx); err != nil {
		if cerr := a.Close(); cerr != nil {
			logging.Warn().Err(cerr).Msg("release resources after startup failure")
		}
		return nil, err
	}
	return a, nil
}

func (a *app) init(ctx context.Context) error {
	cfg := a.cfg

	backend, err := a.openCatalog()
	if err != nil {
		return err
	}
	if cfg.Catalog.Fixtures != "" {
		np, no, err := catalog.LoadFixtures(ctx, backend, cfg.Catalog.Fixtures)
		if err != nil {
			return err
		}
		logging.Info().Int("products", np).Int("orders", no).Str("path", cfg.Catalog.Fixtures).Msg("fixtures loaded")
	}
	reader := catalog.NewBreakerReader(backend, cfg.Catalog.Breaker)

	cache, err := store.Open(ctx, cfg.StoreOptions())
	if err != nil {
		return err
	}
	a.closers = append(a.closers, cache.Close)

	opts, err := cfg.ResolverOptions()
	if err != nil {
		return err
	}
	if a.resolver, err = resolver.New(reader, cache, opts...); err != nil {
		return err
	}

	if a.collector, err = a.openCollectors(cache); err != nil {
		return err
	}
	return nil
}

func (a *app) openCatalog() (catalogBackend, error) {
	switch a.cfg.Catalog.Backend {
	case "sqlite":
		c, err := catalog.OpenSQLite(a.cfg.Catalog.SQLite)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, c.Close)
		return c, nil
	default:
		return catalog.NewMemoryCatalog(), nil
	}
}

func (a *app) openCollectors(cache core.Store) (feedback.Collector, error) {
	var collectors feedback.MultiCollector
	for _, name := range a.cfg.Feedback.Collectors {
		switch name {
		case "store":
			kv, ok := cache.(core.KeyValueStore)
			if !ok {
				return nil, fmt.Errorf("feedback: cache backend %s does not support counters", a.cfg.Cache.Backend)
			}
			collectors = append(collectors, feedback.NewStoreCollector(kv))
		case "metrics":
			collectors = append(collectors, feedback.MetricsCollector{})
		case "kafka":
			kc, err := feedback.NewKafkaCollector(a.cfg.Feedback.Kafka)
			if err != nil {
				return nil, err
			}
			collectors = append(collectors, kc)
		}
	}
	a.closers = append(a.closers, collectors.Close)
	return collectors, nil
}

// Close 按依赖逆序释放资源。
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
