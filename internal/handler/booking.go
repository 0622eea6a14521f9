package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/podium-scheduler/internal/authz"
	"github.com/iliyamo/podium-scheduler/internal/model"
	"github.com/iliyamo/podium-scheduler/internal/service"
)

// BookingService is the part of service.BookingService the HTTP layer uses.
type BookingService interface {
	Create(ctx context.Context, id authz.Identity, slotID, childID uint64) (model.BookingDetail, error)
	Cancel(ctx context.Context, id authz.Identity, bookingID uint64) error
	Get(ctx context.Context, id authz.Identity, bookingID uint64) (model.BookingDetail, error)
	ListMine(ctx context.Context, id authz.Identity) ([]model.BookingDetail, error)
	Roster(ctx context.Context, id authz.Identity, slotID uint64) (service.Roster, error)
}

// BookingHandler serves parent bookings and the trainer's slot roster.
type BookingHandler struct {
	Svc BookingService
}

func NewBookingHandler(svc BookingService) *BookingHandler {
	if svc == nil {
		panic("nil service passed to NewBookingHandler")
	}
	return &BookingHandler{Svc: svc}
}

type createBookingReq struct {
	SlotID  uint64 `json:"slot_id" validate:"required"`
	ChildID uint64 `json:"child_id" validate:"required"`
}

// Create handles POST /v1/bookings.
func (h *BookingHandler) Create(c echo.Context) error {
	var req createBookingReq
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	b, err := h.Svc.Create(c.Request().Context(), identity(c), req.SlotID, req.ChildID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, b)
}

// Cancel handles DELETE /v1/bookings/:id.
func (h *BookingHandler) Cancel(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := h.Svc.Cancel(c.Request().Context(), identity(c), id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "booking cancelled"})
}

// Get handles GET /v1/bookings/:id.
func (h *BookingHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	b, err := h.Svc.Get(c.Request().Context(), identity(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// List handles GET /v1/bookings.
func (h *BookingHandler) List(c echo.Context) error {
	items, err := h.Svc.ListMine(c.Request().Context(), identity(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Roster handles GET /v1/slots/:id/bookings.
func (h *BookingHandler) Roster(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	r, err := h.Svc.Roster(c.Request().Context(), identity(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, r)
}
