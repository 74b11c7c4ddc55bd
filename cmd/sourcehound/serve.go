package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/sourcehound/sourcehound/internal/bot"
	"github.com/sourcehound/sourcehound/internal/config"
	"github.com/sourcehound/sourcehound/internal/fuzzysearch"
	"github.com/sourcehound/sourcehound/internal/locales"
	"github.com/sourcehound/sourcehound/internal/logger"
	"github.com/sourcehound/sourcehound/internal/sites"
	"github.com/sourcehound/sourcehound/internal/source"
	"github.com/sourcehound/sourcehound/internal/store"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideDBPool,
			provideCredentials,
			provideGroupConfig,
			provideFuzzySearch,
			provideLocales,
			provideTelegramAPI,
			bot.NewTransport,
			provideRegistry,
			provideSourceService,
			provideBot,
		),
		fx.Invoke(startBot),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideConfig() (config.Config, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBPool(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	if err := store.Migrate(cfg.Postgres.DSN()); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	pool, err := store.Open(context.Background(), cfg.Postgres.DSN())
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { pool.Close(); return nil }})
	return pool, nil
}

func provideCredentials(log *slog.Logger, pool *pgxpool.Pool) *store.Credentials {
	return store.NewCredentials(log, pool)
}

func provideGroupConfig(log *slog.Logger, pool *pgxpool.Pool) *store.GroupConfig {
	return store.NewGroupConfig(log, pool)
}

func provideFuzzySearch(log *slog.Logger, cfg config.Config) *fuzzysearch.Client {
	return fuzzysearch.NewClient(log, cfg.FuzzySearch.APIKey)
}

func provideLocales(log *slog.Logger) (*locales.Renderer, error) {
	return locales.New(log)
}

func provideTelegramAPI(cfg config.Config) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return api, nil
}

// provideRegistry assembles the resolvers in priority order: anchored host
// matchers first, the direct-link catch-all last.
func provideRegistry(log *slog.Logger, cfg config.Config, fuzzy *fuzzysearch.Client, creds *store.Credentials) *sites.Registry {
	solver := sites.NewFlareSolver(log, cfg.FurAffinity.SolverURL)
	return sites.NewRegistry(log,
		sites.NewE621(log),
		sites.NewTwitter(log, cfg.Twitter.BearerToken, creds),
		sites.NewFurAffinity(log, cfg.FurAffinity.CookieA, cfg.FurAffinity.CookieB, fuzzy, solver),
		sites.NewMastodon(log),
		sites.NewWeasyl(log, cfg.Weasyl.APIKey),
		sites.NewInkbunny(log, cfg.Inkbunny.Username, cfg.Inkbunny.Password),
		sites.NewDirect(log, fuzzy),
	)
}

func provideSourceService(log *slog.Logger, fuzzy *fuzzysearch.Client, transport *bot.Transport, groups *store.GroupConfig, renderer *locales.Renderer) *source.Service {
	return source.NewService(log, fuzzy, transport, groups, source.DistanceRanker{}, renderer)
}

func provideBot(log *slog.Logger, api *tgbotapi.BotAPI, transport *bot.Transport, registry *sites.Registry, src *source.Service, creds *store.Credentials, renderer *locales.Renderer) *bot.Bot {
	return bot.New(log, api, transport, registry, src, creds, renderer)
}

func startBot(lc fx.Lifecycle, b *bot.Bot, log *slog.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := b.Run(ctx); err != nil && ctx.Err() == nil {
					log.Error("bot stopped", slog.Any("error", err))
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
