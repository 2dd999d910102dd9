package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mjs/cacophony-api/pkg/auth"
	"github.com/mjs/cacophony-api/pkg/common"
)

// IdentityKey is the gin context key holding the resolved request identity
const IdentityKey = "identity"

var errNoIdentity = errors.New("no identity in context")

// AuthMiddleware requires a valid identity token (device or user)
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := identityFromHeader(c, secret)
		if err != nil {
			common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
			c.Abort()
			return
		}
		c.Set(IdentityKey, identity)
		c.Next()
	}
}

// DeviceAuthMiddleware requires a valid token that resolves to a device.
// Upload endpoints use this: ownership of new recordings derives from the
// device context, never from request fields.
func DeviceAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := identityFromHeader(c, secret)
		if err != nil || identity.Device == nil {
			common.ErrorResponse(c, http.StatusUnauthorized, "device authentication required")
			c.Abort()
			return
		}
		c.Set(IdentityKey, identity)
		c.Next()
	}
}

// OptionalAuthMiddleware resolves an identity when a token is supplied and
// falls back to the anonymous identity otherwise. Query endpoints use this;
// anonymous callers see only public recordings.
func OptionalAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.Set(IdentityKey, auth.AnonymousIdentity())
			c.Next()
			return
		}
		identity, err := identityFromHeader(c, secret)
		if err != nil {
			common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
			c.Abort()
			return
		}
		c.Set(IdentityKey, identity)
		c.Next()
	}
}

// GetIdentity extracts the resolved identity from the gin context
func GetIdentity(c *gin.Context) (*auth.Identity, error) {
	v, exists := c.Get(IdentityKey)
	if !exists {
		return nil, errNoIdentity
	}
	identity, ok := v.(*auth.Identity)
	if !ok {
		return nil, errNoIdentity
	}
	return identity, nil
}

// GetDevice extracts the authenticated device context from the gin context
func GetDevice(c *gin.Context) (*auth.DeviceContext, error) {
	identity, err := GetIdentity(c)
	if err != nil {
		return nil, err
	}
	if identity.Device == nil {
		return nil, errNoIdentity
	}
	return identity.Device, nil
}

func identityFromHeader(c *gin.Context, secret string) (*auth.Identity, error) {
	header := c.GetHeader("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return nil, auth.ErrInvalidToken
	}
	return auth.ParseIdentity(token, []byte(secret))
}
