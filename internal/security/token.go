package security

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"homehub/internal/domain"
)

// Identity is the decoded bearer credential: who is calling and their
// household role. The identity provider lives outside this service; the
// claims are trusted as decoded.
type Identity struct {
	UserID int64
	Role   domain.Role
}

// TokenService wraps JWT creation and validation.
type TokenService struct {
	secret    []byte
	expiresIn time.Duration
}

func NewTokenService(secret string, expiresIn time.Duration) *TokenService {
	return &TokenService{
		secret:    []byte(secret),
		expiresIn: expiresIn,
	}
}

// CreateForUser creates a JWT carrying the user id and role. Production
// tokens come from the identity provider; this is used by tests and local
// tooling.
func (t *TokenService) CreateForUser(userID int64, role domain.Role) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  strconv.FormatInt(userID, 10),
		"role": string(role),
		"iat":  now.Unix(),
		"exp":  now.Add(t.expiresIn).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Parse validates a token and returns the identity it carries.
func (t *TokenService) Parse(tokenStr string) (*Identity, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return t.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrSignatureInvalid
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, jwt.ErrTokenMalformed
	}

	sub, _ := claims["sub"].(string)
	userID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || userID <= 0 {
		return nil, fmt.Errorf("invalid token subject: %w", jwt.ErrTokenMalformed)
	}

	role, _ := claims["role"].(string)
	switch domain.Role(role) {
	case domain.RoleTenant, domain.RoleLandlord, domain.RoleAdmin:
	default:
		return nil, fmt.Errorf("invalid token role: %w", jwt.ErrTokenMalformed)
	}

	return &Identity{UserID: userID, Role: domain.Role(role)}, nil
}
