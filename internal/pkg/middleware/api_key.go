package middleware

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/ManuelReschke/PayDemo/internal/pkg/env"
	"github.com/ManuelReschke/PayDemo/internal/pkg/usercontext"
)

const (
	RoleAdmin  = "admin"
	RoleViewer = "viewer"
)

// OperatorKey is one configured operator credential. Hash is a bcrypt hash
// of the API key.
type OperatorKey struct {
	Name string
	Role string
	Hash []byte
}

// ParseOperatorKeys parses "name:role:bcrypthash" entries separated by commas.
func ParseOperatorKeys(raw string) ([]OperatorKey, error) {
	var keys []OperatorKey
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
			return nil, fmt.Errorf("invalid operator key entry %q", truncateEntry(entry))
		}
		role := strings.ToLower(strings.TrimSpace(parts[1]))
		if role != RoleAdmin && role != RoleViewer {
			return nil, fmt.Errorf("operator %q has unknown role %q", parts[0], role)
		}
		if _, err := bcrypt.Cost([]byte(parts[2])); err != nil {
			return nil, fmt.Errorf("operator %q: %w", parts[0], err)
		}
		keys = append(keys, OperatorKey{Name: strings.TrimSpace(parts[0]), Role: role, Hash: []byte(parts[2])})
	}
	return keys, nil
}

// OperatorKeysFromEnv reads OPERATOR_KEYS. Broken entries are logged and
// leave the operator surface closed.
func OperatorKeysFromEnv() []OperatorKey {
	keys, err := ParseOperatorKeys(env.GetEnv("OPERATOR_KEYS", ""))
	if err != nil {
		log.Errorf("[Auth] OPERATOR_KEYS ignored: %v", err)
		return nil
	}
	if len(keys) == 0 {
		log.Warn("[Auth] No operator keys configured, operator API is closed")
	}
	return keys
}

// OperatorKeyAuthMiddleware authenticates requests carrying an operator API
// key and stores the resulting capability on the request.
func OperatorKeyAuthMiddleware(keys []OperatorKey) fiber.Handler {
	return func(c *fiber.Ctx) error {
		apiKey := extractAPIKeyFromHeader(c)
		if apiKey == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing API key"})
		}

		key, err := matchOperatorKey(keys, apiKey)
		if err != nil {
			log.Warnf("[Auth] Rejected operator key from %s", c.IP())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid API key"})
		}

		usercontext.SetCapability(c, usercontext.Capability{
			Operator:   key.Name,
			Privileged: key.Role == RoleAdmin,
		})
		return c.Next()
	}
}

var errNoMatch = errors.New("no matching operator key")

func matchOperatorKey(keys []OperatorKey, apiKey string) (*OperatorKey, error) {
	for i := range keys {
		if bcrypt.CompareHashAndPassword(keys[i].Hash, []byte(apiKey)) == nil {
			return &keys[i], nil
		}
	}
	return nil, errNoMatch
}

func extractAPIKeyFromHeader(c *fiber.Ctx) string {
	apiKey := strings.TrimSpace(c.Get("X-API-Key"))
	if apiKey != "" {
		return apiKey
	}
	auth := strings.TrimSpace(c.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

func truncateEntry(s string) string {
	if i := strings.Index(s, ":"); i >= 0 {
		return s[:i] + ":..."
	}
	return "..."
}
