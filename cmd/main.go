package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"storefront.local/checkout-api/pkg/global"
)

func main() {
	var cfg global.Config

	app := &cli.App{
		Name:  "checkout-api",
		Usage: "storefront cart, checkout and order API",
		Before: func(c *cli.Context) error {
			loaded, err := global.LoadConfig()
			if err != nil {
				return err
			}
			cfg = loaded
			configureLogging(cfg)
			return nil
		},
		Action: func(c *cli.Context) error {
			return serve(c, cfg)
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the HTTP API",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "memory", Usage: "use the in-memory store instead of MongoDB and Redis"},
				},
				Action: func(c *cli.Context) error {
					return serve(c, cfg)
				},
			},
			{
				Name:  "ensure-indexes",
				Usage: "create the MongoDB indexes",
				Action: func(c *cli.Context) error {
					return ensureIndexes(c, cfg)
				},
			},
			{
				Name:  "create-user",
				Usage: "create a user account",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "password", Required: true},
					&cli.StringFlag{Name: "role", Value: "user", Usage: "user or admin"},
				},
				Action: func(c *cli.Context) error {
					return createUser(c, cfg)
				},
			},
			{
				Name:  "issue-token",
				Usage: "print an access token for an existing user",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Required: true},
				},
				Action: func(c *cli.Context) error {
					return issueToken(c, cfg)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("checkout-api failed")
	}
}

func configureLogging(cfg global.Config) {
	if cfg.IsProduction() {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("Unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)
}
