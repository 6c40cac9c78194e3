package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sector-mail-desk/internal/domain"
	apperrors "github.com/spec-kit/sector-mail-desk/pkg/util/errorutil"
)

const (
	principalKey       = "auth_principal"
	SchedulerKeyHeader = "X-Scheduler-Key"
)

// Principal represents the authenticated caller.
type Principal struct {
	SubjectType domain.SubjectType
	ID          string
	Role        *domain.StaffRole
	Sectors     []domain.Sector
}

// CanAccess reports whether the principal may act on the sector.
func (p *Principal) CanAccess(sector domain.Sector) bool {
	if p == nil {
		return false
	}
	if len(p.Sectors) == 0 {
		return true
	}
	for _, s := range p.Sectors {
		if s == sector {
			return true
		}
	}
	return false
}

// AuthMiddleware validates bearer tokens or the scheduler key.
type AuthMiddleware struct {
	tokens           *TokenManager
	schedulerKeyHash string
}

// NewAuthMiddleware constructs middleware. An empty scheduler key hash
// disables key authentication.
func NewAuthMiddleware(tokens *TokenManager, schedulerKeyHash string) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, schedulerKeyHash: strings.TrimSpace(schedulerKeyHash)}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	if key := c.Get(SchedulerKeyHeader); key != "" {
		if m.schedulerKeyHash == "" || CompareSecret(m.schedulerKeyHash, key) != nil {
			return apperrors.NewUnauthorized("invalid scheduler key")
		}
		c.Locals(principalKey, &Principal{SubjectType: domain.SubjectTypeScheduler, ID: "scheduler-key"})
		return c.Next()
	}

	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	c.Locals(principalKey, &Principal{
		SubjectType: claims.Subject,
		ID:          claims.SubjectID,
		Role:        claims.Role,
		Sectors:     claims.Sectors,
	})
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
