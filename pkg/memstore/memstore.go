// Package memstore is an in-process implementation of the store ports. It
// backs the --memory serve mode and the service tests. Documents are copied
// on the way in and out so callers observe whole-document semantics.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"

	"storefront.local/checkout-api/pkg/models"
	"storefront.local/checkout-api/pkg/store"
)

type Store struct {
	mu        sync.RWMutex
	products  map[bson.ObjectID]models.Product
	carts     map[bson.ObjectID]models.Cart
	orders    map[bson.ObjectID]models.Order
	zones     map[bson.ObjectID]models.ShippingZone
	users     map[bson.ObjectID]models.User
	setting   *models.PaymentSetting
	movements []models.InventoryMovement
	failures  map[string]error
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

func New() *Store {
	return &Store{
		products: map[bson.ObjectID]models.Product{},
		carts:    map[bson.ObjectID]models.Cart{},
		orders:   map[bson.ObjectID]models.Order{},
		zones:    map[bson.ObjectID]models.ShippingZone{},
		users:    map[bson.ObjectID]models.User{},
		failures: map[string]error{},
	}
}

// FailNext makes the next call of the named operation return err.
func (s *Store) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

func (s *Store) fail(op string) error {
	if err, ok := s.failures[op]; ok {
		delete(s.failures, op)
		return err
	}
	return nil
}

// WithinTransaction runs fn directly; the in-memory store has no rollback.
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (s *Store) Ping(context.Context) error {
	return nil
}

// Products

func (s *Store) GetProduct(_ context.Context, id bson.ObjectID) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("GetProduct"); err != nil {
		return nil, err
	}
	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) ListProducts(_ context.Context, page, limit int64) ([]models.Product, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]models.Product, 0, len(s.products))
	for _, p := range s.products {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return paginate(all, page, limit), int64(len(all)), nil
}

func (s *Store) CreateProduct(_ context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.products {
		if existing.Slug == p.Slug || existing.SKU == p.SKU {
			return store.ErrDuplicate
		}
	}
	s.products[p.ID] = *p
	return nil
}

func (s *Store) UpdateProduct(_ context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[p.ID]; !ok {
		return store.ErrNotFound
	}
	s.products[p.ID] = *p
	return nil
}

// DecrementStock applies every line of the order under one lock.
func (s *Store) DecrementStock(_ context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("DecrementStock"); err != nil {
		return err
	}
	for _, item := range order.CartItems {
		p, ok := s.products[item.ProductID]
		if !ok {
			continue
		}
		p.Quantity -= item.Quantity
		p.Sold += item.Quantity
		s.products[p.ID] = p
	}
	s.movements = append(s.movements, models.SaleMovements(order)...)
	return nil
}

func (s *Store) Movements() []models.InventoryMovement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.InventoryMovement(nil), s.movements...)
}

// Carts

func (s *Store) FindCartByUser(_ context.Context, userID bson.ObjectID) (*models.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("FindCart"); err != nil {
		return nil, err
	}
	for _, c := range s.carts {
		if c.UserID == userID {
			return copyCart(c), nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) FindCart(_ context.Context, id bson.ObjectID) (*models.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("FindCart"); err != nil {
		return nil, err
	}
	c, ok := s.carts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyCart(c), nil
}

func (s *Store) SaveCart(_ context.Context, cart *models.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("SaveCart"); err != nil {
		return err
	}
	for id, c := range s.carts {
		if c.UserID == cart.UserID && id != cart.ID {
			return store.ErrDuplicate
		}
	}
	s.carts[cart.ID] = *copyCart(*cart)
	return nil
}

// Orders

func (s *Store) CreateOrder(_ context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CreateOrder"); err != nil {
		return err
	}
	if order.TransactionRef != "" {
		for _, o := range s.orders {
			if o.TransactionRef == order.TransactionRef {
				return store.ErrDuplicate
			}
		}
	}
	s.orders[order.ID] = *copyOrder(*order)
	return nil
}

func (s *Store) FindOrder(_ context.Context, id bson.ObjectID) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyOrder(o), nil
}

func (s *Store) FindOrderByTransactionRef(_ context.Context, ref string) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.orders {
		if o.TransactionRef == ref {
			return copyOrder(o), nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) UpdateOrder(_ context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[order.ID]; !ok {
		return store.ErrNotFound
	}
	s.orders[order.ID] = *copyOrder(*order)
	return nil
}

func (s *Store) ListOrders(_ context.Context, filter store.OrderFilter) ([]models.Order, int64, error) {
	filter.Normalize()
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := make([]models.Order, 0)
	for _, o := range s.orders {
		if matches(o, filter) {
			matched = append(matched, *copyOrder(o))
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	return paginate(matched, filter.Page, filter.Limit), int64(len(matched)), nil
}

// OrderStats mirrors the aggregation run by the MongoDB store.
func (s *Store) OrderStats(context.Context) (*models.OrderStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byStatus := map[string]*models.StatusSummary{}
	segments := map[string]*models.ValueSegment{}
	stats := &models.OrderStats{}
	for _, o := range s.orders {
		stats.TotalOrders++
		key := o.StatsStatus()
		row, ok := byStatus[key]
		if !ok {
			row = &models.StatusSummary{Status: key, Revenue: decimal.Zero}
			byStatus[key] = row
		}
		row.Orders++
		if o.IsPaid {
			row.PaidOrders++
			row.Revenue = row.Revenue.Add(o.Total)
		}
		if o.IsCanceled {
			continue
		}
		label := models.SegmentFor(o.Total)
		seg, ok := segments[label]
		if !ok {
			seg = &models.ValueSegment{Segment: label, Revenue: decimal.Zero, MinOrder: o.Total, MaxOrder: o.Total}
			segments[label] = seg
		}
		seg.Orders++
		seg.Revenue = seg.Revenue.Add(o.Total)
		seg.MinOrder = decimal.Min(seg.MinOrder, o.Total)
		seg.MaxOrder = decimal.Max(seg.MaxOrder, o.Total)
	}
	for _, row := range byStatus {
		stats.ByStatus = append(stats.ByStatus, *row)
	}
	sort.Slice(stats.ByStatus, func(i, j int) bool { return stats.ByStatus[i].Status < stats.ByStatus[j].Status })
	for _, seg := range segments {
		seg.AvgOrder = seg.Revenue.Div(decimal.NewFromInt(seg.Orders)).Round(2)
		stats.Segments = append(stats.Segments, *seg)
	}
	sort.Slice(stats.Segments, func(i, j int) bool { return stats.Segments[i].MinOrder.LessThan(stats.Segments[j].MinOrder) })
	return stats, nil
}

func matches(o models.Order, f store.OrderFilter) bool {
	if f.UserID != nil && o.UserID != *f.UserID {
		return false
	}
	if f.IsPaid != nil && o.IsPaid != *f.IsPaid {
		return false
	}
	if f.IsDelivered != nil && o.IsDelivered != *f.IsDelivered {
		return false
	}
	if f.IsCanceled != nil && o.IsCanceled != *f.IsCanceled {
		return false
	}
	return true
}

// Zones

func (s *Store) FindZone(_ context.Context, id bson.ObjectID) (*models.ShippingZone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("FindZone"); err != nil {
		return nil, err
	}
	z, ok := s.zones[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &z, nil
}

func (s *Store) FindZoneByKey(_ context.Context, key string) (*models.ShippingZone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, z := range s.zones {
		if z.Key == key {
			return &z, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListZones(context.Context) ([]models.ShippingZone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	zones := make([]models.ShippingZone, 0, len(s.zones))
	for _, z := range s.zones {
		zones = append(zones, z)
	}
	sort.Slice(zones, func(i, j int) bool { return zones[i].Key < zones[j].Key })
	return zones, nil
}

func (s *Store) CreateZone(_ context.Context, zone *models.ShippingZone) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, z := range s.zones {
		if z.Key == zone.Key {
			return store.ErrDuplicate
		}
	}
	s.zones[zone.ID] = *zone
	return nil
}

func (s *Store) UpdateZone(_ context.Context, zone *models.ShippingZone) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.zones[zone.ID]; !ok {
		return store.ErrNotFound
	}
	for id, z := range s.zones {
		if z.Key == zone.Key && id != zone.ID {
			return store.ErrDuplicate
		}
	}
	s.zones[zone.ID] = *zone
	return nil
}

func (s *Store) DeleteZone(_ context.Context, id bson.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.zones[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.zones, id)
	return nil
}

// Users

func (s *Store) FindUser(_ context.Context, id bson.ObjectID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if u.ShippingAddress != nil {
		addr := *u.ShippingAddress
		u.ShippingAddress = &addr
	}
	return &u, nil
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return store.ErrDuplicate
		}
	}
	s.users[user.ID] = *user
	return nil
}

func (s *Store) SaveShippingAddress(_ context.Context, userID bson.ObjectID, address models.ShippingAddress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	u.ShippingAddress = &address
	u.SetTimestamps()
	s.users[userID] = u
	return nil
}

// Settings

func (s *Store) GetPaymentSetting(context.Context) (*models.PaymentSetting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("GetPaymentSetting"); err != nil {
		return nil, err
	}
	if s.setting == nil {
		return models.DefaultPaymentSetting(), nil
	}
	cp := *s.setting
	return &cp, nil
}

func (s *Store) SavePaymentSetting(_ context.Context, setting *models.PaymentSetting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *setting
	s.setting = &cp
	return nil
}

func copyCart(c models.Cart) *models.Cart {
	c.Items = append([]models.CartItem{}, c.Items...)
	return &c
}

func copyOrder(o models.Order) *models.Order {
	o.CartItems = append([]models.CartItem{}, o.CartItems...)
	return &o
}

func paginate[T any](all []T, page, limit int64) []T {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = int64(len(all))
	}
	start := (page - 1) * limit
	if start >= int64(len(all)) {
		return []T{}
	}
	end := start + limit
	if end > int64(len(all)) {
		end = int64(len(all))
	}
	return all[start:end]
}
