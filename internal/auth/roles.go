package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sector-mail-desk/internal/domain"
)

// RequireScheduler admits the scheduler and administrators.
func RequireScheduler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		if principal.SubjectType == domain.SubjectTypeScheduler {
			return c.Next()
		}
		if principal.Role != nil && *principal.Role == domain.StaffRoleAdmin {
			return c.Next()
		}
		return fiber.NewError(http.StatusForbidden, "scheduler required")
	}
}

// RequireStaffRole ensures the staff principal has one of the allowed roles.
func RequireStaffRole(allowed ...domain.StaffRole) fiber.Handler {
	allowedSet := make(map[domain.StaffRole]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.SubjectType != domain.SubjectTypeStaff || principal.Role == nil {
			return fiber.NewError(http.StatusForbidden, "staff role required")
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[*principal.Role]; !exists {
			return fiber.NewError(http.StatusForbidden, "insufficient role")
		}
		return c.Next()
	}
}

// RequireSectorAccess rejects staff whose token does not cover the :sector
// route parameter.
func RequireSectorAccess() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		sector, err := domain.ParseSector(c.Params("sector"))
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		if !principal.CanAccess(sector) {
			return fiber.NewError(http.StatusForbidden, "sector not granted")
		}
		return c.Next()
	}
}
