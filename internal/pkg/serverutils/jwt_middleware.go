package serverutils

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const (
	LocalUserID = "user_id"
	LocalRole   = "role"

	// RoleAdmin matches the administrator role id of the document management system.
	RoleAdmin = 1

	claimNameIdentifierURI = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/nameidentifier"
	claimRoleURI           = "http://schemas.microsoft.com/ws/2008/06/identity/claims/role"
)

var (
	userIDClaims = []string{"user_id", "nameid", "sub", claimNameIdentifierURI}
	roleClaims   = []string{"role", claimRoleURI}
)

type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience string
}

// JwtMiddleware accepts HS256 tokens issued by the document management system and
// stores the numeric user id (and role, when present) in ctx.Locals.
func JwtMiddleware(cfg JWTConfig) fiber.Handler {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	parser := jwt.NewParser(opts...)

	return func(ctx *fiber.Ctx) error {
		authHeader := ctx.Get("Authorization")
		if len(authHeader) < 7 || authHeader[:7] != "Bearer " {
			return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Missing token"})
		}
		tokenStr := authHeader[7:]

		claims := jwt.MapClaims{}
		token, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			return []byte(cfg.Secret), nil
		})
		if err != nil || !token.Valid {
			return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Invalid token"})
		}

		userID, err := userIDFromClaims(claims)
		if err != nil {
			return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Invalid claims"})
		}

		ctx.Locals(LocalUserID, userID)
		ctx.Locals(LocalRole, roleFromClaims(claims))
		return ctx.Next()
	}
}

// AdminOnly must run after JwtMiddleware.
func AdminOnly(ctx *fiber.Ctx) error {
	if role, _ := ctx.Locals(LocalRole).(int); role != RoleAdmin {
		return ctx.Status(fiber.StatusForbidden).JSON(ErrorResponse(fiber.StatusForbidden, "Administrator role required"))
	}
	return ctx.Next()
}

// UserID returns the authenticated user id stored by JwtMiddleware.
func UserID(ctx *fiber.Ctx) (int64, bool) {
	id, ok := ctx.Locals(LocalUserID).(int64)
	return id, ok
}

func userIDFromClaims(claims jwt.MapClaims) (int64, error) {
	for _, key := range userIDClaims {
		raw, ok := claims[key]
		if !ok {
			continue
		}
		id, err := toInt64(raw)
		if err != nil {
			return 0, fmt.Errorf("claim %s: %w", key, err)
		}
		return id, nil
	}
	return 0, fmt.Errorf("no user id claim")
}

// roleFromClaims returns 0 when the token carries no recognisable role.
func roleFromClaims(claims jwt.MapClaims) int {
	for _, key := range roleClaims {
		raw, ok := claims[key]
		if !ok {
			continue
		}
		if s, isString := raw.(string); isString && strings.EqualFold(s, "admin") {
			return RoleAdmin
		}
		if role, err := toInt64(raw); err == nil {
			return int(role)
		}
	}
	return 0
}

func toInt64(raw interface{}) (int64, error) {
	switch v := raw.(type) {
	case float64:
		if v != float64(int64(v)) {
			return 0, fmt.Errorf("not an integer: %v", v)
		}
		return int64(v), nil
	case string:
		return strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	default:
		return 0, fmt.Errorf("unsupported type %T", raw)
	}
}
