package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Product is the catalog entry checkout reads prices and stock from.
type Product struct {
	ID                bson.ObjectID   `json:"id" bson:"_id,omitempty"`
	SKU               string          `json:"sku" bson:"sku"`
	Name              string          `json:"name" bson:"name"`
	Title             string          `json:"title" bson:"title"`
	Slug              string          `json:"slug" bson:"slug"`
	Description       string          `json:"description" bson:"description"`
	Price             decimal.Decimal `json:"price" bson:"price"`
	InstallationPrice decimal.Decimal `json:"installation_price" bson:"installation_price"`
	Quantity          int             `json:"quantity" bson:"quantity"`
	Sold              int             `json:"sold" bson:"sold"`
	CreatedAt         time.Time       `json:"created_at" bson:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" bson:"updated_at"`
}

type CreateProductRequest struct {
	Name              string          `json:"name" binding:"required,min=2,max=200"`
	Title             string          `json:"title" binding:"required,min=2,max=200"`
	Description       string          `json:"description" binding:"max=2000"`
	Price             decimal.Decimal `json:"price"`
	InstallationPrice decimal.Decimal `json:"installation_price"`
	Quantity          int             `json:"quantity" binding:"gte=0"`
}

// UpdateProductRequest carries a partial update; nil fields are left alone.
type UpdateProductRequest struct {
	Title             *string          `json:"title" binding:"omitempty,min=2,max=200"`
	Description       *string          `json:"description" binding:"omitempty,max=2000"`
	Price             *decimal.Decimal `json:"price"`
	InstallationPrice *decimal.Decimal `json:"installation_price"`
	Quantity          *int             `json:"quantity" binding:"omitempty,gte=0"`
}

func (req *CreateProductRequest) GenerateSKU() string {
	prefix := strings.ToUpper(strings.ReplaceAll(req.Name, " ", ""))
	prefix = prefix[:min(3, len(prefix))]
	now := time.Now()
	return fmt.Sprintf("%s-%s-%06d", prefix, now.Format("20060102150405"), now.Nanosecond()/1000)
}

// ToProduct builds a new catalog entry with its derived slug and SKU.
func (req *CreateProductRequest) ToProduct() (*Product, error) {
	if !req.Price.IsPositive() {
		return nil, ErrInvalidPrice
	}
	if req.InstallationPrice.IsNegative() {
		return nil, ErrInvalidPrice.WithField("installation_price")
	}
	product := &Product{
		ID:                bson.NewObjectID(),
		SKU:               req.GenerateSKU(),
		Name:              req.Name,
		Title:             req.Title,
		Slug:              slug.Make(req.Title),
		Description:       req.Description,
		Price:             req.Price,
		InstallationPrice: req.InstallationPrice,
		Quantity:          req.Quantity,
	}
	product.SetTimestamps()
	return product, nil
}

// Apply merges a partial update into p.
func (req *UpdateProductRequest) Apply(p *Product) error {
	if req.Price != nil {
		if !req.Price.IsPositive() {
			return ErrInvalidPrice
		}
		p.Price = *req.Price
	}
	if req.InstallationPrice != nil {
		if req.InstallationPrice.IsNegative() {
			return ErrInvalidPrice.WithField("installation_price")
		}
		p.InstallationPrice = *req.InstallationPrice
	}
	if req.Title != nil {
		p.Title = *req.Title
		p.Slug = slug.Make(*req.Title)
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.Quantity != nil {
		p.Quantity = *req.Quantity
	}
	p.SetTimestamps()
	return nil
}

func (p *Product) IsInStock() bool {
	return p.Quantity > 0
}

func (p *Product) SetTimestamps() {
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
}
