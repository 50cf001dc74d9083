package router

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"storefront.local/checkout-api/pkg/apperror"
	"storefront.local/checkout-api/pkg/auth"
	"storefront.local/checkout-api/pkg/global"
	"storefront.local/checkout-api/pkg/models"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	principalKey    = "principal"
	accessCookie    = "accessToken"
)

var (
	ErrUnauthenticated = apperror.New(apperror.KindUnauthorized, "unauthenticated", "You are not logged in, please log in to get access")
	ErrAdminOnly       = apperror.New(apperror.KindForbidden, "admin_only", "You are not allowed to access this route")
	ErrInvalidBody     = apperror.New(apperror.KindValidation, "invalid_body", "Request body is not valid").WithField("body")
)

// RequestID tags every request with an id, reusing the caller's when present.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(log.Fields{
			"request_id": c.GetString(requestIDKey),
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     c.Writer.Status(),
			"latency":    time.Since(start).String(),
			"client_ip":  c.ClientIP(),
		})
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			entry.Error("Request failed")
		case c.Writer.Status() >= http.StatusBadRequest:
			entry.Warn("Request rejected")
		default:
			entry.Info("Request handled")
		}
	}
}

// ErrorHandler renders the last error attached with c.Error in the response
// envelope.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err

		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			c.JSON(http.StatusBadRequest, global.ErrorResponse("Validation failed", validationErrors(verrs)))
			return
		}

		appErr := apperror.From(err)
		status := appErr.HTTPStatus()
		entry := log.WithFields(log.Fields{
			"request_id": c.GetString(requestIDKey),
			"code":       appErr.Code,
		}).WithError(err)

		switch appErr.Kind {
		case apperror.KindInternal:
			entry.Error("Unhandled error")
		case apperror.KindUpstream:
			entry.Warn("Upstream failure")
		}

		c.JSON(status, global.ErrorResponse(appErr.Message, []global.ValidationError{
			{Field: appErr.Field, Message: appErr.Message, Code: appErr.Code},
		}))
	}
}

func validationErrors(verrs validator.ValidationErrors) []global.ValidationError {
	out := make([]global.ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, global.ValidationError{
			Field:   jsonPath(fe.Namespace()),
			Message: fmt.Sprintf("%s failed on the '%s' rule", fe.Field(), fe.Tag()),
			Code:    fe.Tag(),
		})
	}
	return out
}

// jsonPath turns "CheckoutRequest.ShippingAddress.Phone" into
// "shipping_address.phone".
func jsonPath(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		parts[i] = snake(p)
	}
	return strings.Join(parts, ".")
}

func snake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && !(s[i-1] >= 'A' && s[i-1] <= 'Z') {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Authenticate accepts a bearer token or the access cookie.
func Authenticate(issuer *auth.Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token, _ = c.Cookie(accessCookie)
		}
		if token == "" {
			_ = c.Error(ErrUnauthenticated)
			c.Abort()
			return
		}

		principal, err := issuer.Parse(token)
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}
		c.Set(principalKey, principal)
		c.Next()
	}
}

func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !currentPrincipal(c).IsAdmin() {
			_ = c.Error(ErrAdminOnly)
			c.Abort()
			return
		}
		c.Next()
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

func currentPrincipal(c *gin.Context) models.Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(models.Principal); ok {
			return p
		}
	}
	return models.Principal{}
}
