package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"golang.org/x/sync/errgroup"

	"github.com/Spok95/panel-bom/internal/bot"
	"github.com/Spok95/panel-bom/internal/config"
	"github.com/Spok95/panel-bom/internal/dialog"
	"github.com/Spok95/panel-bom/internal/domain/bom"
	"github.com/Spok95/panel-bom/internal/domain/cable"
	"github.com/Spok95/panel-bom/internal/domain/catalog"
	"github.com/Spok95/panel-bom/internal/domain/pricing"
	"github.com/Spok95/panel-bom/internal/infra/db"
	httpx "github.com/Spok95/panel-bom/internal/infra/http"
	"github.com/Spok95/panel-bom/internal/infra/logger"
	"github.com/Spok95/panel-bom/internal/refresh"
	"github.com/Spok95/panel-bom/internal/selection"
)

func runMigrations(dsn, dir string) error {
	sqlDB, err := goose.OpenDBWithDriver("postgres", dsn)
	if err != nil {
		return err
	}
	defer func() { _ = sqlDB.Close() }()
	return goose.Up(sqlDB, dir)
}

func main() {
	cfgPath := flag.String("config", "config/example.yaml", "path to config file")
	migrations := flag.String("migrations", "migrations", "goose migrations dir")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		panic(err)
	}
	if cfg.App.Timezone != "" {
		loc, err := time.LoadLocation(cfg.App.Timezone)
		if err != nil {
			panic(err)
		}
		// время в именах файлов спецификаций
		time.Local = loc
	}
	if err := run(cfg, *migrations, log); err != nil {
		log.Error("panel-bom stopped", "err", err)
		os.Exit(1)
	}
	log.Info("graceful shutdown complete")
}

func run(cfg config.Config, migrationsDir string, log *slog.Logger) error {
	if err := runMigrations(cfg.Postgres.DSN, migrationsDir); err != nil {
		return err
	}
	log.Info("migrations applied")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.Postgres.DSN)
	if err != nil {
		return err
	}
	defer pool.Close()
	log.Info("db connected")

	store, err := catalog.NewStore(ctx, catalog.NewRepo(pool))
	if err != nil {
		return err
	}

	opts, err := cfg.BOMOptions()
	if err != nil {
		return err
	}
	usages, err := cfg.Usages()
	if err != nil {
		return err
	}

	engine := selection.NewEngine(store, pricing.NewLedger(store), log)
	agg := bom.NewAggregator(engine, cable.NewCalculator(store, cfg.Cable), opts, log)

	var refresher *refresh.Refresher
	if cfg.Refresh.URL != "" {
		fetcher := refresh.NewHTTPFetcher(&http.Client{}, cfg.Refresh.URL, cfg.Refresh.Retries, cfg.Refresh.Backoff)
		refresher = refresh.New(fetcher, store, refresh.Config{
			Supplier: cfg.Refresh.Supplier,
			Currency: cfg.Refresh.Currency,
			Timeout:  cfg.Refresh.Timeout,
		}, log)
	} else {
		log.Warn("refresh.url is empty, price refresh disabled")
	}

	var runner httpx.RefreshRunner
	if refresher != nil {
		runner = refresher
	}
	api := httpx.NewAPI(agg, usages, runner, httpx.Defaults{
		CableLengthM: cfg.BOM.DefaultLengthM,
		Voltage:      cfg.BOM.DefaultVoltage,
	}, log).WithCatalog(store)
	srv := httpx.New(httpx.Options{
		Addr:          cfg.HTTP.Addr,
		ExposeMetrics: cfg.Metrics.Enabled,
		API:           api,
		Ready:         pool.Ping,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("HTTP server started", "addr", cfg.HTTP.Addr)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.Telegram.Token != "" {
		botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			return err
		}
		log.Info("telegram bot authorized", "username", botAPI.Self.UserName)

		var br bot.Refresher
		if refresher != nil {
			br = refresher
		}
		b := bot.New(botAPI, log, dialog.NewRepo(pool), agg, usages, br,
			cfg.Telegram.AdminChatID, dialog.Settings{
				CableLengthM: cfg.BOM.DefaultLengthM,
				Voltage:      cfg.BOM.DefaultVoltage,
			})
		g.Go(func() error {
			if err := b.Run(gctx, cfg.Telegram.Timeout); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	} else {
		log.Warn("telegram.token is empty, bot disabled")
	}

	return g.Wait()
}
