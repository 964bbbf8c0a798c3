// Package middleware provides authentication, logging, rate limiting and
// tracing middleware for the application.
package middleware

import (
	"context"
	"errors"
	"strings"
	"time"

	"devconnector/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// AuthTokenHeader is the header the web client sends its token in.
const AuthTokenHeader = "x-auth-token"

// TokenConfig describes how identity tokens are signed and checked.
type TokenConfig struct {
	Secret   string
	Issuer   string
	Audience string
}

var (
	errInvalidToken  = errors.New("token is not valid")
	errInvalidClaims = errors.New("invalid token claims")
)

// IssueToken signs an HS256 token whose subject is userID.
func IssueToken(cfg TokenConfig, userID string, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("user id is required")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    cfg.Issuer,
		Audience:  jwt.ClaimStrings{cfg.Audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
}

// ParseToken validates tokenString and returns the user id in its subject.
func ParseToken(cfg TokenConfig, tokenString string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	}, opts...)
	if err != nil || !token.Valid {
		return "", errInvalidToken
	}

	sub := strings.TrimSpace(claims.Subject)
	if sub == "" {
		return "", errInvalidClaims
	}
	return sub, nil
}

// tokenFromRequest reads a bearer token or the x-auth-token header.
func tokenFromRequest(c *fiber.Ctx) string {
	if authHeader := c.Get(fiber.HeaderAuthorization); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return strings.TrimSpace(c.Get(AuthTokenHeader))
}

// AuthRequired rejects requests without a valid identity token. On success
// the user id is stored in c.Locals(UserIDLocal) and in the user context.
func AuthRequired(cfg TokenConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := tokenFromRequest(c)
		if tokenString == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("No token, authorization denied"))
		}

		userID, err := ParseToken(cfg, tokenString)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Token is not valid"))
		}

		setUserID(c, userID)
		return c.Next()
	}
}

func setUserID(c *fiber.Ctx, userID string) {
	c.Locals(UserIDLocal, userID)
	// Sync to UserContext for logging and downstream services
	ctx := context.WithValue(c.UserContext(), UserIDKey, userID)
	c.SetUserContext(ctx)
}

// WSTicketPrefix namespaces websocket tickets in Redis.
const WSTicketPrefix = "ws_ticket:"

// WSTicketTTL is how long a websocket ticket stays redeemable.
const WSTicketTTL = 30 * time.Second

// IssueWSTicket stores a single-use ticket for userID. Browsers cannot set
// headers on a websocket upgrade, so the ticket travels as ?ticket=.
func IssueWSTicket(ctx context.Context, rdb *redis.Client, userID string) (string, error) {
	if rdb == nil {
		return "", errNilRedis
	}
	ticket := uuid.NewString()
	if err := rdb.Set(ctx, WSTicketPrefix+ticket, userID, WSTicketTTL).Err(); err != nil {
		return "", err
	}
	return ticket, nil
}

// TicketAuth redeems ?ticket= when present and otherwise falls back to
// AuthRequired. A ticket works once.
func TicketAuth(cfg TokenConfig, rdb *redis.Client) fiber.Handler {
	tokenAuth := AuthRequired(cfg)
	return func(c *fiber.Ctx) error {
		ticket := c.Query("ticket")
		if ticket == "" {
			return tokenAuth(c)
		}
		if rdb == nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Ticket is not valid"))
		}

		userID, err := rdb.GetDel(c.UserContext(), WSTicketPrefix+ticket).Result()
		if err != nil || userID == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Ticket is not valid"))
		}

		setUserID(c, userID)
		return c.Next()
	}
}

// UserID returns the authenticated user id set by AuthRequired.
func UserID(c *fiber.Ctx) (string, bool) {
	id, ok := c.Locals(UserIDLocal).(string)
	return id, ok && id != ""
}
