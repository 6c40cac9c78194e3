package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sector-mail-desk/internal/domain"
	"github.com/spec-kit/sector-mail-desk/internal/service"
	apperrors "github.com/spec-kit/sector-mail-desk/pkg/util/errorutil"
)

// IngestionHandler exposes the scheduler trigger and manual sweeps.
type IngestionHandler struct {
	service *service.IngestionService
}

// NewIngestionHandler constructs handler.
func NewIngestionHandler(ingestionService *service.IngestionService) *IngestionHandler {
	return &IngestionHandler{service: ingestionService}
}

// Run POST /ingestion/runs. A sector abort answers with the error and the
// partial report.
func (h *IngestionHandler) Run(c *fiber.Ctx) error {
	report, err := h.service.Run(c.UserContext())
	if err != nil {
		if report == nil {
			return err
		}
		domainErr := apperrors.ToDomainError(err)
		return c.Status(domainErr.HTTPStatus).JSON(fiber.Map{
			"error": fiber.Map{"code": domainErr.Code, "message": domainErr.Message},
			"data":  report,
		})
	}
	return c.JSON(fiber.Map{"data": report})
}

// Sweep POST /ingestion/sectors/:sector/sweep.
func (h *IngestionHandler) Sweep(c *fiber.Ctx) error {
	sector, err := domain.ParseSector(c.Params("sector"))
	if err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}
	result, err := h.service.Sweep(c.UserContext(), sector)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": result})
}
