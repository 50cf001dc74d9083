package main

import (
	"fmt"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/crypto/bcrypt"

	"storefront.local/checkout-api/pkg/auth"
	"storefront.local/checkout-api/pkg/global"
	"storefront.local/checkout-api/pkg/models"
	"storefront.local/checkout-api/pkg/mongo"
	"storefront.local/checkout-api/pkg/store"
)

func ensureIndexes(c *cli.Context, cfg global.Config) error {
	ctx, cancel := global.GetDefaultTimer()
	defer cancel()

	db, err := mongo.Connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close(ctx)

	return db.EnsureIndexes(ctx)
}

func createUser(c *cli.Context, cfg global.Config) error {
	password := c.String("password")
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return errors.Wrap(err, "hash password")
	}

	ctx, cancel := global.GetDefaultTimer()
	defer cancel()
	db, err := mongo.Connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close(ctx)

	user := models.NewUser(c.String("name"), c.String("email"), string(hash), c.String("role"))
	if err := db.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return errors.Errorf("a user with email %s already exists", user.Email)
		}
		return err
	}

	log.WithFields(log.Fields{"user_id": user.ID.Hex(), "email": user.Email, "role": user.Role}).Info("User created")
	return nil
}

func issueToken(c *cli.Context, cfg global.Config) error {
	ctx, cancel := global.GetDefaultTimer()
	defer cancel()
	db, err := mongo.Connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close(ctx)

	user, err := db.FindUserByEmail(ctx, c.String("email"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errors.Errorf("no user with email %s", c.String("email"))
		}
		return err
	}

	token, err := auth.NewIssuer(cfg.JWTSecret, cfg.JWTTTL).Issue(user)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, token)
	return nil
}
