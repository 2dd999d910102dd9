package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Identity token discriminators
const (
	TokenTypeDevice = "device"
	TokenTypeUser   = "user"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrUnknownType  = errors.New("unknown token type")
)

// Claims carries an identity token's claims. Type distinguishes device
// tokens from user tokens; a file download token uses a different
// discriminator and never parses as an identity.
type Claims struct {
	jwt.RegisteredClaims
	Type     string   `json:"_type"`
	GroupID  string   `json:"groupId,omitempty"`
	GroupIDs []string `json:"groupIds,omitempty"`
	Public   *bool    `json:"public,omitempty"`
}

// GenerateDeviceToken signs a token identifying a device.
func GenerateDeviceToken(device *DeviceContext, secret []byte, validity time.Duration) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   device.ID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validity)),
		},
		Type:    TokenTypeDevice,
		GroupID: device.GroupID.String(),
		Public:  device.Public,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// GenerateUserToken signs a token identifying a user with rights over the
// given groups.
func GenerateUserToken(userID uuid.UUID, groupIDs []uuid.UUID, secret []byte, validity time.Duration) (string, error) {
	groups := make([]string, len(groupIDs))
	for i, g := range groupIDs {
		groups[i] = g.String()
	}
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validity)),
		},
		Type:     TokenTypeUser,
		GroupIDs: groups,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseIdentity verifies a token and resolves it to an Identity.
func ParseIdentity(tokenString string, secret []byte) (*Identity, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	subject, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrInvalidToken
	}

	switch claims.Type {
	case TokenTypeDevice:
		groupID, err := uuid.Parse(claims.GroupID)
		if err != nil {
			return nil, ErrInvalidToken
		}
		return &Identity{
			Device: &DeviceContext{
				ID:      subject,
				GroupID: groupID,
				Public:  claims.Public,
			},
		}, nil
	case TokenTypeUser:
		groups := make([]uuid.UUID, 0, len(claims.GroupIDs))
		for _, g := range claims.GroupIDs {
			id, err := uuid.Parse(g)
			if err != nil {
				return nil, ErrInvalidToken
			}
			groups = append(groups, id)
		}
		return &Identity{UserID: subject, GroupIDs: groups}, nil
	default:
		return nil, ErrUnknownType
	}
}
