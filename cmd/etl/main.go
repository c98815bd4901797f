package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"investassist/internal/batch"
	"investassist/internal/config"
	cronrunner "investassist/internal/cron"
	"investassist/internal/db"
	"investassist/internal/handler"
	"investassist/internal/history"
	"investassist/internal/indicator"
	"investassist/internal/ingest"
	"investassist/internal/logger"
	"investassist/internal/market"
	"investassist/internal/models"
	"investassist/internal/notify"
	"investassist/internal/pipeline"
	gormrepository "investassist/internal/repository/gorm"
	"investassist/internal/retry"
)

// app holds everything the subcommands share, built once per invocation.
type app struct {
	cfg    config.Config
	logger *zap.Logger
	db     *db.DB
	store  *gormrepository.Store
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfgPath string
		envOnly bool
		a       app
	)

	root := &cobra.Command{
		Use:           "etl",
		Short:         "Portfolio ETL: stage market prices, compute indicators, mail the summary",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath, envOnly)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			log, err := logger.New(cfg.Log)
			if err != nil {
				return fmt.Errorf("build logger: %w", err)
			}
			dbConn, err := db.Open(cfg.DB)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
				log.Warn("failed to set timezone", zap.Error(err))
			}
			if err := db.AutoMigrate(dbConn); err != nil {
				return fmt.Errorf("auto-migrate: %w", err)
			}
			a = app{cfg: cfg, logger: log, db: dbConn, store: gormrepository.New(dbConn.Gorm)}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
			_ = db.Close(a.db)
		},
	}

	defaultCfg := os.Getenv("IA_CONFIG")
	if defaultCfg == "" {
		defaultCfg = "config/config.yaml"
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", defaultCfg, "path to the yaml config file")
	root.PersistentFlags().BoolVar(&envOnly, "env-only", false, "skip the config file and read IA_* environment variables only")

	root.AddCommand(
		newPricesCmd(&a),
		newIndicatorsCmd(&a),
		newTransactionsCmd(&a),
		newEmailCmd(&a),
		newRunCmd(&a),
		newServeCmd(&a),
	)
	return root
}

func newPricesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "prices",
		Short: "Fetch daily bars per ticker, stage them as CSV, and load the price table",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrices(cmd.Context(), a)
		},
	}
}

func newIndicatorsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "indicators",
		Short: "Compute RSI and SMA indicators from stored prices and load the indicator table",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndicators(cmd.Context(), a)
		},
	}
}

func newTransactionsCmd(a *app) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "transactions",
		Short: "Ingest the broker transaction CSV export",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := file
			if path == "" {
				path = a.cfg.Market.TransactionsCSV
			}
			loader := &ingest.TransactionLoader{Repo: a.store, Logger: a.logger}
			inserted, err := loader.LoadFile(cmd.Context(), path)
			recordRun(cmd.Context(), a, "transactions", err, map[string]any{
				"file": path, "inserted": inserted,
			})
			if err != nil {
				return err
			}
			a.logger.Info("transactions ingested",
				zap.String("file", path), zap.Int64("inserted", inserted))
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "broker export to ingest (defaults to market.transactions_csv)")
	return cmd
}

func newEmailCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "email",
		Short: "Mail the latest indicator summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEmail(cmd.Context(), a, true)
		},
	}
}

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Full daily batch: prices, indicators, then the summary mail",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaily(cmd.Context(), a)
		},
	}
}

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the read API, with the daily batch on a cron schedule when enabled",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(a)
		},
	}
}

// recordRun upserts the per-scope bookkeeping row. Bookkeeping failures
// are logged, not propagated.
func recordRun(ctx context.Context, a *app, scope string, runErr error, stats any) {
	now := db.NowUTC()
	state := &models.EtlRunState{Scope: scope, LastAttemptAt: &now}
	if runErr == nil {
		state.LastSuccessAt = &now
	} else {
		msg := runErr.Error()
		state.LastError = &msg
	}
	if stats != nil {
		if raw, err := json.Marshal(stats); err == nil {
			state.StatsJSON = datatypes.JSON(raw)
		}
	}
	if err := a.store.SaveRunState(ctx, state); err != nil {
		a.logger.Warn("saving run state failed",
			zap.String("scope", scope), zap.Error(err))
	}
}

func runPrices(ctx context.Context, a *app) error {
	stager := &market.Stager{
		Client: market.NewClient(&http.Client{Timeout: a.cfg.Market.Timeout}, a.cfg.Market.Endpoint),
		Logger: a.logger,
		Repo:   a.store,
		Dir:    a.cfg.App.StagingDir,
		Period: a.cfg.Market.Period,
		Retry: retry.Policy{
			MaxAttempts: a.cfg.Market.MaxAttempts,
			Delay:       a.cfg.Market.RetryDelay,
		},
	}
	staged, skipped := stager.Run(ctx, a.cfg.Market.Tickers)
	for ticker, reason := range skipped {
		a.logger.Warn("ticker not staged",
			zap.String("ticker", ticker), zap.String("reason", reason))
	}
	if len(staged) == 0 && len(skipped) > 0 {
		err := errors.New("no ticker could be staged")
		recordRun(ctx, a, "prices", err, map[string]any{"skipped": skipped})
		return err
	}

	loader := &pipeline.PriceLoader{
		Repo:       a.store,
		Logger:     a.logger,
		StagingDir: a.cfg.App.StagingDir,
		Unresolved: pipeline.UnresolvedPolicy(a.cfg.Pipeline.UnresolvedPolicy),
	}
	inserted, err := loader.LoadDir(ctx)
	recordRun(ctx, a, "prices", err, map[string]any{
		"staged_tickers": len(staged),
		"skipped":        len(skipped),
		"inserted":       inserted,
	})
	if err != nil {
		return err
	}
	a.logger.Info("price batch done",
		zap.Int("staged_tickers", len(staged)),
		zap.Int64("inserted", inserted))
	return nil
}

func runIndicators(ctx context.Context, a *app) error {
	engine := indicator.Engine{
		RSIWindow:      a.cfg.Indicators.RSIWindow,
		SMAShortWindow: a.cfg.Indicators.ShortSMAWindow,
		SMALongWindow:  a.cfg.Indicators.LongSMAWindow,
	}
	runner := &batch.Runner{
		Reader: &history.Reader{
			Repo:         a.store,
			Logger:       a.logger,
			LookbackDays: history.LookbackDays(engine.MinSessions()),
			Retry: retry.Policy{
				MaxAttempts: a.cfg.Indicators.MaxAttempts,
				Delay:       a.cfg.Indicators.RetryDelay,
			},
		},
		Engine: engine,
		Loader: &pipeline.IndicatorLoader{
			Repo:       a.store,
			Logger:     a.logger,
			Unresolved: pipeline.UnresolvedPolicy(a.cfg.Pipeline.UnresolvedPolicy),
		},
		Repo:    a.store,
		Logger:  a.logger,
		Tickers: a.cfg.Market.Tickers,
		DataDir: a.cfg.App.DataDir,
	}
	_, err := runner.Run(ctx)
	return err
}

// runEmail sends the summary. When forced (the explicit subcommand) a
// disabled mailer is an error; inside the daily batch it is a silent no-op.
func runEmail(ctx context.Context, a *app, forced bool) error {
	if !a.cfg.Email.Enabled {
		if forced {
			return errors.New("email disabled in config")
		}
		return nil
	}
	notifier := &notify.Notifier{
		Repo: a.store,
		Mail: &notify.Mailer{
			Host:     a.cfg.Email.SMTPHost,
			Port:     a.cfg.Email.SMTPPort,
			Sender:   a.cfg.Email.Sender,
			Receiver: a.cfg.Email.Receiver,
			Password: a.cfg.Email.Password,
		},
		Logger: a.logger,
	}
	return notifier.Run(ctx)
}

func runDaily(ctx context.Context, a *app) error {
	if err := runPrices(ctx, a); err != nil {
		return fmt.Errorf("prices: %w", err)
	}
	if err := runIndicators(ctx, a); err != nil {
		return fmt.Errorf("indicators: %w", err)
	}
	if err := runEmail(ctx, a, false); err != nil {
		return fmt.Errorf("email: %w", err)
	}
	return nil
}

func serve(a *app) error {
	if strings.EqualFold(a.cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())

	(&handler.HealthHandler{DB: a.db.Gorm}).Register(engine)
	(&handler.IndicatorHandler{Repo: a.store}).Register(engine)
	(&handler.RunHandler{Repo: a.store}).Register(engine)

	srv := &http.Server{
		Addr:    a.cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cronRunner *cronrunner.Runner
	if a.cfg.Cron.Enabled {
		cronRunner = cronrunner.New(a.logger, ctx)
		_, err := cronRunner.Add(a.cfg.Cron.Batch, "daily-batch", func(ctx context.Context) {
			if err := runDaily(ctx, a); err != nil {
				a.logger.Warn("cron daily batch failed", zap.Error(err))
			}
		})
		if err != nil {
			return fmt.Errorf("schedule daily batch: %w", err)
		}
		cronRunner.Start()
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	if cronRunner != nil {
		cronRunner.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("http shutdown failed", zap.Error(err))
	}
	a.logger.Info("shutdown complete")
	return nil
}
