package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/m3rciful/aviabot/core/bootstrap"
	"github.com/m3rciful/aviabot/core/logger"
	"github.com/m3rciful/aviabot/core/status"
	tg "github.com/m3rciful/aviabot/core/telegram"
	"github.com/m3rciful/aviabot/core/telegram/middleware"
	"github.com/m3rciful/aviabot/core/telegram/state"
	"github.com/m3rciful/aviabot/internal/airlines"
	"github.com/m3rciful/aviabot/internal/bot"
	"github.com/m3rciful/aviabot/internal/conversation"
	"github.com/m3rciful/aviabot/internal/flights"
	"github.com/m3rciful/aviabot/internal/i18n"
	"github.com/m3rciful/aviabot/internal/location"
	"github.com/m3rciful/aviabot/internal/prefs"
	"github.com/m3rciful/aviabot/internal/results"
	"github.com/m3rciful/aviabot/internal/travelpayouts"

	tele "gopkg.in/telebot.v4"
)

const (
	redisPingTimeout      = 5 * time.Second
	statusShutdownTimeout = 5 * time.Second
)

// App holds the wired bot and the resources it must release.
type App struct {
	cfg      *Config
	infra    *bootstrap.Result
	redis    *redis.Client
	outbox   *bot.Outbox
	handlers *bot.Handlers
	stats    *middleware.Stats
	status   *status.Server
}

// Bootstrap initializes logging and storage and builds the handler graph.
func Bootstrap(cfg *Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config")
	}
	infra, err := bootstrap.Run(bootstrap.Options{
		Config:   &cfg.Config,
		Database: cfg.Database,
	})
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, infra: infra, stats: &middleware.Stats{}}
	ctx := logger.Background()

	sessions, err := a.sessionStore(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	var langs prefs.Store = prefs.NewMemoryStore()
	if infra.DB != nil {
		langs = prefs.NewSQLStore(infra.DB)
	}

	catalog, err := i18n.Default()
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("app: locale catalog: %w", err)
	}

	api := travelpayouts.New(cfg.Travelpayouts)
	directory := airlines.NewDirectory(api, cfg.Search.AirlinesTimeout)
	aggregator := flights.NewAggregator(api, directory, flights.Options{
		PageSize:     cfg.Search.PageSize,
		MaxPages:     cfg.Search.MaxPages,
		NearestLimit: cfg.Search.NearestLimit,
		Location:     cfg.Search.Location(),
		Market: func(lang string) (string, string) {
			l := catalog.Language(lang)
			return l.Currency, l.Locale
		},
	})
	resolver := location.NewResolver(api, func(lang string) string {
		return catalog.Language(lang).Locale
	}, cfg.Search.MaxCandidates)

	a.outbox = bot.NewOutbox()
	machine := conversation.New(conversation.Deps{
		Sessions:  sessions,
		Prefs:     langs,
		Resolver:  resolver,
		Searcher:  aggregator,
		Formatter: results.NewFormatter(catalog, cfg.Search.MessageBudget),
		Texts:     catalog,
		Outbox:    a.outbox,
		Location:  cfg.Search.Location(),
	})
	a.handlers = bot.New(bot.Options{
		Machine:   machine,
		Texts:     catalog,
		Directory: directory,
		Stats:     a.stats,
		AdminID:   cfg.Telegram.AdminID,
	})

	logger.Info(ctx, logger.CompApp, "app.wired",
		slog.String("sessions", cfg.Sessions.Backend),
		slog.Bool("db", infra.DB != nil),
		slog.String("timezone", cfg.Search.Timezone),
		slog.Int("page_size", cfg.Search.PageSize),
		slog.Int("max_pages", cfg.Search.MaxPages),
	)
	return a, nil
}

func (a *App) sessionStore(ctx context.Context) (state.Store[conversation.Session], error) {
	if a.cfg.Sessions.Backend != SessionsRedis {
		return state.NewMemory[conversation.Session](), nil
	}
	rc := a.cfg.Sessions.Redis
	a.redis = redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := a.redis.Ping(pingCtx).Err(); err != nil {
		logger.Error(ctx, logger.CompApp, "redis.connect",
			slog.String("status", "fail"),
			slog.String("addr", rc.Addr),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("app: redis ping: %w", err)
	}
	logger.Info(ctx, logger.CompApp, "redis.connect",
		slog.String("status", "ok"),
		slog.String("addr", rc.Addr),
	)
	return state.NewRedis[conversation.Session](a.redis, state.RedisOptions{
		Prefix: rc.Prefix,
		TTL:    rc.TTL,
	}), nil
}

// TelegramRunOptions implements cmd.TelegramApp.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	reg, err := a.handlers.Registry()
	if err != nil {
		return tg.RunOptions{}, err
	}
	return tg.RunOptions{
		Config:      &a.cfg.Config,
		Registry:    reg,
		Middlewares: tg.DefaultMiddlewares(&a.cfg.Config, a.stats, a.handlers.RateLimited()),
		Routes:      a.handlers.Routes(reg),
		OnBot: func(b *tele.Bot) {
			a.outbox.Attach(b)
		},
		OnStart: a.onStart,
		OnStop:  a.onStop,
	}, nil
}

func (a *App) onStart(ctx context.Context, rt tg.Runtime) error {
	a.handlers.SetDispatcher(rt.Dispatcher)
	if a.cfg.Status.Listen == "" {
		return nil
	}
	srv, err := status.Listen(a.cfg.Status.Listen, a.handlers)
	if err != nil {
		return fmt.Errorf("app: status listen: %w", err)
	}
	a.status = srv
	go func() {
		if err := srv.Serve(); err != nil {
			logger.Error(ctx, logger.CompStatus, "serve",
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
			)
		}
	}()
	return nil
}

func (a *App) onStop(ctx context.Context, _ tg.Runtime) error {
	if a.status == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, statusShutdownTimeout)
	defer cancel()
	return a.status.Shutdown(ctx)
}

// Close implements cmd.TelegramApp.
func (a *App) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	errs = append(errs, a.infra.Close())
	return errors.Join(errs...)
}
