package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is the minimal account view needed by checkout: ownership, role and
// the shipping address remembered for card payments.
type User struct {
	ID              bson.ObjectID    `bson:"_id,omitempty" json:"id"`
	Name            string           `bson:"name" json:"name"`
	Email           string           `bson:"email" json:"email"`
	Phone           string           `bson:"phone,omitempty" json:"phone,omitempty"`
	Password        string           `bson:"password" json:"-"` // Never expose in JSON
	Role            string           `bson:"role" json:"role"`
	Active          bool             `bson:"active" json:"active"`
	ShippingAddress *ShippingAddress `bson:"shipping_address,omitempty" json:"shipping_address,omitempty"`
	CreatedAt       time.Time        `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time        `bson:"updated_at" json:"updated_at"`
}

func NewUser(name, email, passwordHash, role string) *User {
	if role != RoleAdmin {
		role = RoleUser
	}
	u := &User{
		ID:       bson.NewObjectID(),
		Name:     name,
		Email:    strings.ToLower(strings.TrimSpace(email)),
		Password: passwordHash,
		Role:     role,
		Active:   true,
	}
	u.SetTimestamps()
	return u
}

// SetTimestamps sets created_at on first call and always updates updated_at
func (u *User) SetTimestamps() {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID bson.ObjectID
	Role   string
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}
