package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/rushteam/shoprec/api"
	"github.com/rushteam/shoprec/config"
	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pkg/logging"
)

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logging.Init(cfg.Log)
	return cfg, nil
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP recommendation service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logging.Error().Err(err).Msg("shutdown: release resources")
		}
	}()

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.NewRouter(a.resolver, a.collector, api.Options{RateLimit: cfg.Server.RateLimit}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logging.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newResolveCmd(configPath *string) *cobra.Command {
	req := &core.RecommendationRequest{}
	var subjectType, strategy string

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve one recommendation request and print the result as JSON",
		Example: `  shoprec resolve --subject-type USER --subject-id u1
  shoprec resolve --subject-type PRODUCT --subject-id p1 --strategy ITEM_BASED --limit 5`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			req.SubjectType = core.SubjectType(strings.ToUpper(subjectType))
			req.Strategy = core.Strategy(strings.ToUpper(strategy))
			result, err := a.resolver.Resolve(cmd.Context(), req)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}

	cmd.Flags().StringVar(&subjectType, "subject-type", string(core.SubjectUser), "USER or PRODUCT")
	cmd.Flags().StringVar(&req.SubjectID, "subject-id", "", "user or product id")
	cmd.Flags().StringVar(&strategy, "strategy", "", "HYBRID, COLLABORATIVE, CONTENT, ITEM_BASED or TRENDING")
	cmd.Flags().IntVar(&req.Limit, "limit", 0, "number of products (default from config)")
	cmd.Flags().BoolVar(&req.IncludeAlreadyInteracted, "include-interacted", false, "keep products the user already bought")
	cmd.Flags().StringSliceVar(&req.CategoryFilter, "category", nil, "restrict to categories")
	_ = cmd.MarkFlagRequired("subject-id")
	return cmd
}

func newConfigCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			out, err := cfg.YAML()
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), string(out))
			return err
		},
	}
}
