package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sector-mail-desk/internal/api/dto"
	"github.com/spec-kit/sector-mail-desk/internal/auth"
	"github.com/spec-kit/sector-mail-desk/internal/domain"
	"github.com/spec-kit/sector-mail-desk/internal/service"
	apperrors "github.com/spec-kit/sector-mail-desk/pkg/util/errorutil"
)

// TicketsHandler manages staff ticket actions.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// List GET /sectors/:sector/tickets.
func (h *TicketsHandler) List(c *fiber.Ctx) error {
	sector, err := sectorParam(c)
	if err != nil {
		return err
	}
	tickets, err := h.service.List(c.UserContext(), sector)
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.TicketFromDomain(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// UpdateStatus PATCH /sectors/:sector/tickets/:id/status.
func (h *TicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	sector, err := sectorParam(c)
	if err != nil {
		return err
	}
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	status, err := domain.ParseTicketStatus(strings.TrimSpace(req.Status))
	if err != nil {
		return apperrors.NewValidationError(err.Error(), map[string]any{"status": req.Status})
	}

	result, err := h.service.UpdateStatus(c.UserContext(), sector, c.Params("id"), service.StatusUpdate{
		Status:       status,
		ResponseHTML: req.ResponseHTML,
		Comment:      req.Comment,
		Actor:        actorID(c),
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.StatusUpdateResponse{
		Ticket:        dto.TicketFromDomain(result.Ticket),
		SentMessageID: result.SentMessageID,
		Archived:      result.Archived,
	}})
}

// Reply POST /sectors/:sector/tickets/:id/replies.
func (h *TicketsHandler) Reply(c *fiber.Ctx) error {
	sector, err := sectorParam(c)
	if err != nil {
		return err
	}
	var req dto.ReplyRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.BodyHTML) == "" {
		return apperrors.NewValidationError("body_html required", nil)
	}
	sentID, err := h.service.Reply(c.UserContext(), sector, c.Params("id"), req.BodyHTML, actorID(c))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.ReplyResponse{SentMessageID: sentID}})
}

// History GET /sectors/:sector/tickets/:id/history.
func (h *TicketsHandler) History(c *fiber.Ctx) error {
	sector, err := sectorParam(c)
	if err != nil {
		return err
	}
	entries, err := h.service.History(c.UserContext(), sector, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.HistoryFromDomain(entries)})
}

func sectorParam(c *fiber.Ctx) (domain.Sector, error) {
	sector, err := domain.ParseSector(c.Params("sector"))
	if err != nil {
		return "", apperrors.NewValidationError(err.Error(), nil)
	}
	return sector, nil
}

func actorID(c *fiber.Ctx) string {
	if principal, ok := auth.PrincipalFromContext(c); ok {
		return principal.ID
	}
	return ""
}
