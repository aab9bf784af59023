package main

import (
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/m3rciful/magbot/bot"
	"github.com/m3rciful/magbot/core/bootstrap"
	"github.com/m3rciful/magbot/core/cmd"
	coreconfig "github.com/m3rciful/magbot/core/config"
)

func main() {
	// Optional .env for local runs; real deployments set the environment.
	_ = godotenv.Load()

	err := cmd.Run(cmd.Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (cmd.ConfigCarrier, error) {
			cfg, err := coreconfig.Load(path)
			if err != nil {
				return nil, err
			}
			return configCarrier{cfg: cfg}, nil
		},
		Bootstrap: func(carrier cmd.ConfigCarrier) (cmd.TelegramApp, error) {
			cfg := carrier.CoreConfig()
			res, err := bootstrap.Run(bootstrap.Options{Config: cfg})
			if err != nil {
				return nil, err
			}
			ttl := res.SessionTTL
			if ttl <= 0 {
				ttl = 8 * time.Hour
			}
			app, err := bot.New(cfg, res.Store, ttl)
			if err != nil {
				return nil, err
			}
			return app, nil
		},
	})
	if err != nil {
		log.Fatalf("magbot: %v", err)
	}
}

type configCarrier struct {
	cfg *coreconfig.Config
}

func (c configCarrier) CoreConfig() *coreconfig.Config { return c.cfg }
