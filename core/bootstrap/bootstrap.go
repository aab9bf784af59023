package bootstrap

import (
	"fmt"
	"time"

	"github.com/m3rciful/magbot/bot/session"
	coreconfig "github.com/m3rciful/magbot/core/config"
	coredatabase "github.com/m3rciful/magbot/core/database"
	"github.com/m3rciful/magbot/core/logger"
)

// Options control the bootstrap pipeline.
type Options struct {
	Config *coreconfig.Config

	LoggerInit func(*coreconfig.Config) error
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result struct {
	Store      session.Store
	SessionTTL time.Duration
}

// Run initializes the logger and opens the session store selected by
// session.driver. The postgres driver connects and applies migrations
// before the store is handed out.
func Run(opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}
	cfg := opts.Config

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(cfg); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: session store init failed: %w", err)
	}

	return &Result{
		Store:      store,
		SessionTTL: time.Duration(cfg.Session.TTLHours) * time.Hour,
	}, nil
}

func openStore(cfg *coreconfig.Config) (session.Store, error) {
	switch cfg.Session.Driver {
	case coreconfig.SessionDriverMemory:
		return session.NewMemoryStore(), nil
	case coreconfig.SessionDriverFile:
		return session.NewFileStore(cfg.Session.File)
	case coreconfig.SessionDriverPostgres:
		dbCfg := databaseConfig(cfg)
		db, err := coredatabase.Connect(dbCfg)
		if err != nil {
			return nil, err
		}
		if err := coredatabase.RunMigrations(dbCfg); err != nil {
			_ = db.Close()
			return nil, err
		}
		return session.NewSQLStore(db), nil
	default:
		return nil, fmt.Errorf("unknown session driver %q", cfg.Session.Driver)
	}
}

func databaseConfig(cfg *coreconfig.Config) coredatabase.Config {
	return coredatabase.Config{
		Host:           cfg.Database.Host,
		Port:           cfg.Database.Port,
		User:           cfg.Database.User,
		Password:       cfg.Database.Password,
		Name:           cfg.Database.Name,
		SSLMode:        cfg.Database.SSLMode,
		MaxConnections: cfg.Database.MaxConnections,
	}
}
