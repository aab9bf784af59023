// Package bot assembles the application: session store, scheduler,
// discovery engine, resolver, storage adapters and the Telegram wiring.
package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/magbot/bot/discovery"
	"github.com/m3rciful/magbot/bot/handlers"
	"github.com/m3rciful/magbot/bot/scheduler"
	"github.com/m3rciful/magbot/bot/seedr"
	"github.com/m3rciful/magbot/bot/session"
	"github.com/m3rciful/magbot/bot/setup"
	"github.com/m3rciful/magbot/bot/vault"
	coreconfig "github.com/m3rciful/magbot/core/config"
	"github.com/m3rciful/magbot/core/health"
	coretelegram "github.com/m3rciful/magbot/core/telegram"
	tghelpers "github.com/m3rciful/magbot/core/telegram/helpers"
	"github.com/m3rciful/magbot/core/telegram/router"
	"github.com/m3rciful/magbot/core/telegram/state"
)

// App holds the assembled application.
type App struct {
	cfg *coreconfig.Config

	store     session.Store
	ttl       time.Duration
	sched     *scheduler.Scheduler
	lifecycle *session.Lifecycle
	notifier  *chatNotifier
	health    *health.Server
}

// CoreConfig exposes the loaded configuration to the command runner.
func (a *App) CoreConfig() *coreconfig.Config { return a.cfg }

// New wires all components together. The session store and TTL come from
// the bootstrap pipeline so that the storage driver stays a config choice.
func New(cfg *coreconfig.Config, store session.Store, ttl time.Duration) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bot: nil config")
	}
	if store == nil {
		return nil, fmt.Errorf("bot: nil session store")
	}
	if ttl <= 0 {
		ttl = time.Duration(cfg.Session.TTLHours) * time.Hour
	}
	return &App{
		cfg:      cfg,
		store:    store,
		ttl:      ttl,
		sched:    scheduler.New(),
		notifier: &chatNotifier{},
	}, nil
}

// TelegramRunOptions builds the complete run configuration for the bot.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	cfg := a.cfg

	a.lifecycle = session.NewLifecycle(a.store, a.sched, a.notifier, a.ttl)

	engine, err := discovery.New(discovery.Config{
		Mirrors:    cfg.Discovery.Mirrors,
		Timeout:    time.Duration(cfg.Discovery.TimeoutSeconds) * time.Second,
		MaxResults: cfg.Discovery.MaxResults,
		CacheSize:  cfg.Discovery.CacheSize,
	})
	if err != nil {
		return coretelegram.RunOptions{}, err
	}

	seedrClient := seedr.NewClient(cfg.Seedr.BaseURL, nil)
	resolver := seedr.NewResolver(
		seedrClient,
		cfg.Seedr.PollAttempts,
		time.Duration(cfg.Seedr.PollIntervalSeconds)*time.Second,
	)

	dropbox := vault.NewDropbox("", nil)
	mega := vault.NewMega("", nil)
	webdav := vault.NewWebdav(nil)
	channel := vault.NewChannel(a.notifier)

	validators := map[session.Provider]vault.Validator{
		session.ProviderDropbox:    dropbox,
		session.ProviderMega:       mega,
		session.ProviderSeedrLocal: seedrValidator{client: seedrClient},
		session.ProviderSeedrCloud: seedrValidator{client: seedrClient},
	}
	uploaders := map[session.Provider]vault.Uploader{
		session.ProviderDropbox: dropbox,
		session.ProviderMega:    mega,
		session.ProviderWebdav:  webdav,
		session.ProviderChannel: channel,
	}

	states := state.NewMemoryManager()
	machine := setup.NewMachine(a.store, a.lifecycle, validators)
	flow := setup.NewFlow(machine, states)

	reg := handlers.BuildRegistry(handlers.Deps{
		Store:     a.store,
		States:    states,
		Lifecycle: a.lifecycle,
		Engine:    engine,
		Resolver:  resolver,
		Flow:      flow,
		Uploaders: uploaders,
		Scheduler: a.sched,
		Notifier:  a.notifier,
		ServiceAccount: seedr.Credentials{
			Email:    cfg.Seedr.Email,
			Password: cfg.Seedr.Password,
			Token:    cfg.Seedr.Token,
		},
	})

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID: cfg.Telegram.AdminID,
	})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	routes = append(routes, router.TextRoutes(states, reg, router.TextOptions{
		UnknownText: func(c tele.Context) error {
			return tghelpers.SendText(c, "I only understand commands. Try /help.")
		},
	})...)

	opts := coretelegram.RunOptions{
		Config:      cfg,
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(cfg, nil),
		Routes:      routes,
		OnStart:     a.onStart,
		OnStop:      a.onStop,
	}
	return opts, nil
}

func (a *App) onStart(_ context.Context, rt coretelegram.Runtime) error {
	a.notifier.bind(rt.Bot)
	if a.cfg.Health.Port > 0 {
		a.health = health.New(a.cfg.Health.Port)
		a.health.Start()
	}
	return nil
}

func (a *App) onStop(ctx context.Context, _ coretelegram.Runtime) error {
	if a.health != nil {
		stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		_ = a.health.Stop(stopCtx)
	}
	a.sched.Close()
	return a.store.Close()
}

// chatNotifier sends plain text straight to a chat id. The bot handle
// arrives only once the Telegram runtime is up, so it binds late.
type chatNotifier struct {
	mu  sync.RWMutex
	bot *tele.Bot
}

func (n *chatNotifier) bind(bot *tele.Bot) {
	n.mu.Lock()
	n.bot = bot
	n.mu.Unlock()
}

// Notify implements session.Notifier.
func (n *chatNotifier) Notify(chatID int64, text string) error {
	n.mu.RLock()
	bot := n.bot
	n.mu.RUnlock()
	if bot == nil {
		return fmt.Errorf("notifier: bot not started")
	}
	_, err := bot.Send(tele.ChatID(chatID), text)
	return err
}

// Post implements vault.Poster.
func (n *chatNotifier) Post(chatID int64, text string) error {
	return n.Notify(chatID, text)
}

// seedrValidator checks Seedr credentials by performing a real login.
type seedrValidator struct {
	client *seedr.Client
}

func (v seedrValidator) Validate(ctx context.Context, creds map[string]string) error {
	_, err := v.client.Login(ctx, creds[session.FieldEmail], creds[session.FieldPassword])
	return err
}
