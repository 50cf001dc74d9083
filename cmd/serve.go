package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"storefront.local/checkout-api/internal/router"
	"storefront.local/checkout-api/pkg/auth"
	"storefront.local/checkout-api/pkg/cart"
	"storefront.local/checkout-api/pkg/checkout"
	"storefront.local/checkout-api/pkg/events"
	"storefront.local/checkout-api/pkg/gateway"
	"storefront.local/checkout-api/pkg/global"
	"storefront.local/checkout-api/pkg/memstore"
	"storefront.local/checkout-api/pkg/mongo"
	"storefront.local/checkout-api/pkg/notify"
	"storefront.local/checkout-api/pkg/order"
	"storefront.local/checkout-api/pkg/pricing"
	"storefront.local/checkout-api/pkg/redis"
	"storefront.local/checkout-api/pkg/settings"
	"storefront.local/checkout-api/pkg/store"
	"storefront.local/checkout-api/pkg/zones"
)

const shutdownTimeout = 15 * time.Second

// backend is the set of stores the services run on.
type backend struct {
	stores   checkout.Stores
	products store.Products
	pinger   router.Pinger
	locker   checkout.Locker
	closers  []func()
}

func (b *backend) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func openMemory() *backend {
	log.Warn("Running on the in-memory store; data is lost on exit")
	db := memstore.New()
	return &backend{
		stores: checkout.Stores{
			Carts: db, Catalog: db, Inventory: db, Orders: db,
			Zones: db, Users: db, Settings: db, Tx: db,
		},
		products: db,
		pinger:   db,
	}
}

func openMongo(ctx context.Context, cfg global.Config) (*backend, error) {
	db, err := mongo.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := db.EnsureIndexes(ctx); err != nil {
		log.WithError(err).Warn("Index creation failed, continuing")
	}

	rdb := redis.NewClient(cfg)
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.WithError(err).Warn("Redis is unreachable; product cache and webhook lock will degrade")
	}
	// The cache fronts product reads only; checkout and cart stock checks go to Mongo.
	catalog := redis.NewCachedCatalog(db, rdb, cfg.CacheTTL)

	return &backend{
		stores: checkout.Stores{
			Carts: db, Catalog: db, Inventory: catalog, Orders: db,
			Zones: db, Users: db, Settings: db, Tx: db,
		},
		products: catalog,
		pinger:   db,
		locker:   redis.NewWebhookLocker(rdb, cfg.WebhookLockTTL),
		closers: []func(){
			func() { _ = db.Close(context.Background()) },
			func() { _ = rdb.Close() },
		},
	}, nil
}

func buildNotifier(cfg global.Config, b *backend) notify.Fanout {
	var fanout notify.Fanout
	if cfg.Mail.Host != "" {
		fanout = append(fanout, notify.NewMailer(cfg.Mail))
	}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher := events.NewPublisher(cfg.Kafka)
		fanout = append(fanout, publisher)
		b.closers = append(b.closers, func() {
			if err := publisher.Close(); err != nil {
				log.WithError(err).Warn("Closing Kafka writer failed")
			}
		})
	}
	if len(fanout) == 0 {
		log.Warn("No notification channel configured; order confirmations are not sent")
	}
	return fanout
}

func serve(c *cli.Context, cfg global.Config) error {
	policy, err := pricing.ParsePolicy(cfg.InstallationPolicy)
	if err != nil {
		return err
	}
	gw, err := gateway.New(cfg)
	if err != nil {
		return err
	}

	var b *backend
	if c.Bool("memory") {
		b = openMemory()
	} else {
		connectCtx, cancel := global.GetDefaultTimer()
		b, err = openMongo(connectCtx, cfg)
		cancel()
		if err != nil {
			return errors.Wrap(err, "open stores")
		}
	}
	defer b.close()

	orchestrator := checkout.New(b.stores, gw, buildNotifier(cfg, b), checkout.Config{
		Policy:        policy,
		Currency:      cfg.Currency,
		NotifyTimeout: cfg.NotifyTimeout,
	})
	if b.locker != nil {
		orchestrator.WithLocker(b.locker)
	}

	h := &router.Handler{
		Carts:    cart.NewService(b.stores.Carts, b.stores.Catalog),
		Checkout: orchestrator,
		Orders:   order.NewService(b.stores.Orders),
		Zones:    zones.NewService(b.stores.Zones),
		Settings: settings.NewService(b.stores.Settings),
		Products: b.products,
		Tokens:   auth.NewIssuer(cfg.JWTSecret, cfg.JWTTTL),
		DB:       b.pinger,
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.NewEngine(cfg, h),
		ReadHeaderTimeout: 10 * time.Second,
	}

	killSignalChan := getKillSignalChan()
	go func() {
		log.WithFields(log.Fields{
			"port":    cfg.Port,
			"env":     cfg.Env,
			"gateway": gw.Name(),
			"policy":  policy,
		}).Info("Server is running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Failed to run server")
		}
	}()

	waitForKillSignal(killSignalChan)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("Graceful shutdown failed")
	}
	orchestrator.Wait()
	log.Info("Server stopped")
	return nil
}

func getKillSignalChan() chan os.Signal {
	osKillSignalChan := make(chan os.Signal, 1)
	signal.Notify(osKillSignalChan, os.Interrupt, syscall.SIGTERM)
	return osKillSignalChan
}

func waitForKillSignal(killSignalChan <-chan os.Signal) {
	killSignal := <-killSignalChan
	switch killSignal {
	case os.Interrupt:
		log.Info("Got SIGINT...")
	case syscall.SIGTERM:
		log.Info("Got SIGTERM...")
	}
}
