package mongo

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"storefront.local/checkout-api/pkg/apperror"
	"storefront.local/checkout-api/pkg/global"
	"storefront.local/checkout-api/pkg/store"
)

const (
	colProducts  = "products"
	colInventory = "inventory_logs"
	colCarts     = "carts"
	colOrders    = "orders"
	colZones     = "shipping_zones"
	colUsers     = "users"
	colSettings  = "payment_settings"
)

// Store implements every persistence port on one MongoDB database.
type Store struct {
	client       *mongo.Client
	db           *mongo.Database
	timeout      time.Duration
	transactions bool
}

var (
	_ store.Products   = (*Store)(nil)
	_ store.Inventory  = (*Store)(nil)
	_ store.Carts      = (*Store)(nil)
	_ store.Orders     = (*Store)(nil)
	_ store.Zones      = (*Store)(nil)
	_ store.Users      = (*Store)(nil)
	_ store.Settings   = (*Store)(nil)
	_ store.Transactor = (*Store)(nil)
)

// Connect opens the client and verifies the deployment is reachable.
func Connect(ctx context.Context, cfg global.Config) (*Store, error) {
	serverAPI := options.ServerAPI(options.ServerAPIVersion1)

	clientOptions := options.Client().
		ApplyURI(cfg.MongoURI).
		SetServerAPIOptions(serverAPI).
		SetRegistry(NewRegistry())
	client, err := mongo.Connect(clientOptions)
	if err != nil {
		return nil, errors.Wrap(err, "create MongoDB client")
	}

	s := &Store{
		client:       client,
		db:           client.Database(cfg.MongoDatabase),
		timeout:      cfg.UpstreamTimeout,
		transactions: cfg.MongoTransactions,
	}
	if err := s.Ping(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	log.WithFields(log.Fields{
		"database":     cfg.MongoDatabase,
		"transactions": cfg.MongoTransactions,
	}).Info("Connected to MongoDB successfully")
	return s, nil
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := global.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.client.Ping(ctx, nil); err != nil {
		return apperror.Upstream(errors.Wrap(err, "ping MongoDB"))
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) collection(name string) *mongo.Collection {
	return s.db.Collection(name)
}

// WithinTransaction runs fn in a multi-document transaction when enabled.
// Standalone servers do not support transactions, so fn then runs directly.
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if !s.transactions {
		return fn(ctx)
	}
	session, err := s.client.StartSession()
	if err != nil {
		return apperror.Upstream(errors.Wrap(err, "start session"))
	}
	defer session.EndSession(context.Background())

	_, err = session.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		return nil, fn(ctx)
	})
	return err
}

// classify maps driver errors onto the store sentinels.
func classify(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return store.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return store.ErrDuplicate
	default:
		return apperror.Upstream(errors.Wrap(err, op))
	}
}
