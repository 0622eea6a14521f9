package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/podium-scheduler/internal/apperr"
	"github.com/iliyamo/podium-scheduler/internal/authz"
	"github.com/iliyamo/podium-scheduler/internal/model"
	"github.com/iliyamo/podium-scheduler/internal/service"
)

// ScheduleService is the part of service.ScheduleService the HTTP layer uses.
type ScheduleService interface {
	CreateSlots(ctx context.Context, id authz.Identity, in service.CreateSlotsInput) (service.CreateSlotsResult, error)
	ListSlots(ctx context.Context, q service.ListSlotsQuery) ([]model.SlotDetail, error)
	GetSlot(ctx context.Context, slotID uint64) (model.SlotDetail, error)
	DeleteSlot(ctx context.Context, id authz.Identity, slotID uint64) error
	ListSessionTypes(ctx context.Context, id authz.Identity, includeInactive bool) ([]model.SessionType, error)
	CreateSessionType(ctx context.Context, id authz.Identity, in service.SessionTypeInput) (model.SessionType, error)
	UpdateSessionType(ctx context.Context, id authz.Identity, typeID uint64, in service.SessionTypeInput) (model.SessionType, error)
	DeactivateSessionType(ctx context.Context, id authz.Identity, typeID uint64) error
}

// ScheduleHandler serves slots and session types.
type ScheduleHandler struct {
	Svc ScheduleService
}

func NewScheduleHandler(svc ScheduleService) *ScheduleHandler {
	if svc == nil {
		panic("nil service passed to NewScheduleHandler")
	}
	return &ScheduleHandler{Svc: svc}
}

type createSlotsReq struct {
	SessionTypeID uint64 `json:"session_type_id" validate:"required"`
	StartDate     string `json:"start_date" validate:"required"`
	StartTime     string `json:"start_time" validate:"required"`
	Recurrence    string `json:"recurrence" validate:"omitempty,oneof=single weekly"`
	Weekdays      []int  `json:"weekdays" validate:"omitempty,dive,min=0,max=6"`
	Weeks         int    `json:"weeks" validate:"min=0,max=52"`
}

// CreateSlots handles POST /v1/slots.
func (h *ScheduleHandler) CreateSlots(c echo.Context) error {
	var req createSlotsReq
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	res, err := h.Svc.CreateSlots(c.Request().Context(), identity(c), service.CreateSlotsInput{
		SessionTypeID: req.SessionTypeID,
		StartDate:     req.StartDate,
		StartTime:     req.StartTime,
		Recurrence:    req.Recurrence,
		Weekdays:      req.Weekdays,
		Weeks:         req.Weeks,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"items":   res.Items,
		"count":   len(res.Items),
		"skipped": res.Skipped,
	})
}

// ListSlots handles GET /v1/slots?start_date&end_date&session_type_id.
func (h *ScheduleHandler) ListSlots(c echo.Context) error {
	q := service.ListSlotsQuery{
		StartDate: c.QueryParam("start_date"),
		EndDate:   c.QueryParam("end_date"),
	}
	if raw := c.QueryParam("session_type_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return respondError(c, apperr.Invalid("session_type_id", "must be a positive integer"))
		}
		q.SessionTypeID = id
	}
	items, err := h.Svc.ListSlots(c.Request().Context(), q)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// GetSlot handles GET /v1/slots/:id.
func (h *ScheduleHandler) GetSlot(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	slot, err := h.Svc.GetSlot(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, slot)
}

// DeleteSlot handles DELETE /v1/slots/:id.
func (h *ScheduleHandler) DeleteSlot(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := h.Svc.DeleteSlot(c.Request().Context(), identity(c), id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "slot deleted"})
}

type sessionTypeReq struct {
	Name            string           `json:"name" validate:"required,max=120"`
	Description     *string          `json:"description" validate:"omitempty,max=2000"`
	DurationMinutes int              `json:"duration_minutes" validate:"required,gt=0,lte=1440"`
	MaxParticipants int              `json:"max_participants" validate:"required,gt=0"`
	Credits         *int             `json:"credits" validate:"omitempty,gte=0"`
	Price           *decimal.Decimal `json:"price"`
	IsActive        *bool            `json:"is_active"`
}

func (r sessionTypeReq) input() service.SessionTypeInput {
	return service.SessionTypeInput{
		Name:            r.Name,
		Description:     r.Description,
		DurationMinutes: r.DurationMinutes,
		MaxParticipants: r.MaxParticipants,
		Credits:         r.Credits,
		Price:           r.Price,
		IsActive:        r.IsActive,
	}
}

// ListSessionTypes handles GET /v1/session-types. Trainers may pass
// include_inactive=true on GET /v1/trainer/session-types.
func (h *ScheduleHandler) ListSessionTypes(c echo.Context) error {
	all := c.QueryParam("include_inactive") == "true"
	items, err := h.Svc.ListSessionTypes(c.Request().Context(), identity(c), all)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// CreateSessionType handles POST /v1/session-types.
func (h *ScheduleHandler) CreateSessionType(c echo.Context) error {
	var req sessionTypeReq
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	st, err := h.Svc.CreateSessionType(c.Request().Context(), identity(c), req.input())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, st)
}

// UpdateSessionType handles PUT /v1/session-types/:id.
func (h *ScheduleHandler) UpdateSessionType(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req sessionTypeReq
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	st, err := h.Svc.UpdateSessionType(c.Request().Context(), identity(c), id, req.input())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, st)
}

// DeleteSessionType handles DELETE /v1/session-types/:id (deactivation).
func (h *ScheduleHandler) DeleteSessionType(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := h.Svc.DeactivateSessionType(c.Request().Context(), identity(c), id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "session type deactivated"})
}
