// Package auth issues and verifies the HS256 access tokens carried by API
// requests. The subject is the user id and the role claim drives admin access.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/v2/bson"

	"storefront.local/checkout-api/pkg/apperror"
	"storefront.local/checkout-api/pkg/models"
)

var ErrInvalidToken = apperror.New(apperror.KindUnauthorized, "invalid_token", "Invalid or expired token")

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs an access token for user.
func (i *Issuer) Issue(user *models.User) (string, error) {
	now := i.now()
	claims := Claims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.Hex(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// Parse verifies token and returns the caller it identifies.
func (i *Issuer) Parse(token string) (models.Principal, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))
	if err != nil || !parsed.Valid {
		return models.Principal{}, ErrInvalidToken.Wrap(err)
	}
	userID, err := bson.ObjectIDFromHex(claims.Subject)
	if err != nil {
		return models.Principal{}, ErrInvalidToken.Wrap(err)
	}
	role := claims.Role
	if role != models.RoleAdmin {
		role = models.RoleUser
	}
	return models.Principal{UserID: userID, Role: role}, nil
}
