package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	redisclient "github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/v2/bson"

	"storefront.local/checkout-api/pkg/models"
	"storefront.local/checkout-api/pkg/store"
)

const recentProductsKey = "products:recent"

// backing is the store the cache sits in front of.
type backing interface {
	store.Products
	store.Inventory
}

// CachedCatalog is a cache-aside decorator over the product store. Redis
// failures degrade to the backing store and are only logged.
type CachedCatalog struct {
	next   backing
	client *redisclient.Client
	ttl    time.Duration
}

var (
	_ store.Products  = (*CachedCatalog)(nil)
	_ store.Inventory = (*CachedCatalog)(nil)
)

func NewCachedCatalog(next backing, client *redisclient.Client, ttl time.Duration) *CachedCatalog {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CachedCatalog{next: next, client: client, ttl: ttl}
}

func productKey(id bson.ObjectID) string {
	return fmt.Sprintf("product:%s", id.Hex())
}

func skuKey(sku string) string {
	return fmt.Sprintf("sku:%s", sku)
}

func (c *CachedCatalog) GetProduct(ctx context.Context, id bson.ObjectID) (*models.Product, error) {
	p, _, err := c.LookupProduct(ctx, id)
	return p, err
}

// LookupProduct is GetProduct that also reports whether the cache answered.
func (c *CachedCatalog) LookupProduct(ctx context.Context, id bson.ObjectID) (*models.Product, bool, error) {
	if p, err := c.cached(ctx, id); err == nil {
		return p, true, nil
	} else if !errors.Is(err, redisclient.Nil) {
		log.WithError(err).WithField("product_id", id.Hex()).Warn("Product cache read failed")
	}

	p, err := c.next.GetProduct(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if err := c.put(ctx, p); err != nil {
		log.WithError(err).WithField("product_id", id.Hex()).Warn("Product cache write failed")
	}
	return p, false, nil
}

func (c *CachedCatalog) ListProducts(ctx context.Context, page, limit int64) ([]models.Product, int64, error) {
	return c.next.ListProducts(ctx, page, limit)
}

func (c *CachedCatalog) CreateProduct(ctx context.Context, p *models.Product) error {
	if err := c.next.CreateProduct(ctx, p); err != nil {
		return err
	}
	if err := c.put(ctx, p); err != nil {
		log.WithError(err).WithField("product_id", p.ID.Hex()).Warn("Product cache write failed")
	}
	return nil
}

func (c *CachedCatalog) UpdateProduct(ctx context.Context, p *models.Product) error {
	if err := c.next.UpdateProduct(ctx, p); err != nil {
		return err
	}
	c.invalidate(ctx, p.ID)
	return nil
}

// DecrementStock forwards to the store and evicts every product the order touched.
func (c *CachedCatalog) DecrementStock(ctx context.Context, order *models.Order) error {
	if err := c.next.DecrementStock(ctx, order); err != nil {
		return err
	}
	c.EvictOrder(ctx, order)
	return nil
}

// EvictOrder drops the cached products of an order. Inside a transaction the
// eviction in DecrementStock runs before commit, so callers repeat it after.
func (c *CachedCatalog) EvictOrder(ctx context.Context, order *models.Order) {
	ids := make([]bson.ObjectID, 0, len(order.CartItems))
	for _, item := range order.CartItems {
		ids = append(ids, item.ProductID)
	}
	c.invalidate(ctx, ids...)
}

// RecentProducts returns the ids of the most recently cached products.
func (c *CachedCatalog) RecentProducts(ctx context.Context, n int64) ([]string, error) {
	return c.client.LRange(ctx, recentProductsKey, 0, n-1).Result()
}

func (c *CachedCatalog) cached(ctx context.Context, id bson.ObjectID) (*models.Product, error) {
	raw, err := c.client.Get(ctx, productKey(id)).Bytes()
	if err != nil {
		return nil, err
	}
	var product models.Product
	if err := json.Unmarshal(raw, &product); err != nil {
		return nil, errors.Wrap(err, "unmarshal cached product")
	}
	return &product, nil
}

func (c *CachedCatalog) put(ctx context.Context, p *models.Product) error {
	productJSON, err := json.Marshal(p)
	if err != nil {
		return errors.Wrapf(err, "marshal product %s", p.ID.Hex())
	}

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, productKey(p.ID), productJSON, c.ttl)
	pipe.Set(ctx, skuKey(p.SKU), p.ID.Hex(), c.ttl)
	pipe.LRem(ctx, recentProductsKey, 0, p.ID.Hex())
	pipe.LPush(ctx, recentProductsKey, p.ID.Hex())
	pipe.LTrim(ctx, recentProductsKey, 0, 99)
	pipe.Expire(ctx, recentProductsKey, c.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrapf(err, "cache product %s", p.ID.Hex())
	}
	return nil
}

func (c *CachedCatalog) invalidate(ctx context.Context, ids ...bson.ObjectID) {
	if len(ids) == 0 {
		return
	}
	pipe := c.client.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, productKey(id))
		pipe.LRem(ctx, recentProductsKey, 0, id.Hex())
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.WithError(err).WithField("products", len(ids)).Warn("Product cache invalidation failed")
	}
}
