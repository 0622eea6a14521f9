package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/podium-scheduler/internal/authz"
	"github.com/iliyamo/podium-scheduler/internal/model"
	"github.com/iliyamo/podium-scheduler/internal/service"
)

type ChildService interface {
	List(ctx context.Context, id authz.Identity) ([]model.Child, error)
	Create(ctx context.Context, id authz.Identity, in service.ChildInput) (model.Child, error)
	Update(ctx context.Context, id authz.Identity, childID uint64, in service.ChildInput) (model.Child, error)
	Remove(ctx context.Context, id authz.Identity, childID uint64) error
}

type ChildHandler struct {
	Svc ChildService
}

func NewChildHandler(svc ChildService) *ChildHandler {
	if svc == nil {
		panic("nil service passed to NewChildHandler")
	}
	return &ChildHandler{Svc: svc}
}

type childReq struct {
	FirstName   string  `json:"first_name" validate:"required,max=80"`
	LastName    string  `json:"last_name" validate:"required,max=80"`
	DateOfBirth string  `json:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
	Notes       *string `json:"notes" validate:"omitempty,max=1000"`
}

func (r childReq) input() service.ChildInput {
	return service.ChildInput{FirstName: r.FirstName, LastName: r.LastName, DateOfBirth: r.DateOfBirth, Notes: r.Notes}
}

func (h *ChildHandler) List(c echo.Context) error {
	items, err := h.Svc.List(c.Request().Context(), identity(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

func (h *ChildHandler) Create(c echo.Context) error {
	var req childReq
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	child, err := h.Svc.Create(c.Request().Context(), identity(c), req.input())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, child)
}

func (h *ChildHandler) Update(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req childReq
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	child, err := h.Svc.Update(c.Request().Context(), identity(c), id, req.input())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, child)
}

func (h *ChildHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := h.Svc.Remove(c.Request().Context(), identity(c), id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "child removed"})
}
