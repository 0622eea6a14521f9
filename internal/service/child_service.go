package service

import (
	"context"
	"strings"
	"time"

	"github.com/iliyamo/podium-scheduler/internal/apperr"
	"github.com/iliyamo/podium-scheduler/internal/authz"
	"github.com/iliyamo/podium-scheduler/internal/model"
)

// ChildService lets parents keep the list of children they book for.
type ChildService struct {
	children ChildStore
	now      func() time.Time
}

func NewChildService(children ChildStore) *ChildService {
	return &ChildService{children: children, now: time.Now}
}

// ChildInput holds the editable fields of a child.
type ChildInput struct {
	FirstName   string
	LastName    string
	DateOfBirth string // YYYY-MM-DD, optional
	Notes       *string
}

func (in ChildInput) apply(c *model.Child, today time.Time) error {
	c.FirstName = strings.TrimSpace(in.FirstName)
	c.LastName = strings.TrimSpace(in.LastName)
	if c.FirstName == "" {
		return apperr.Invalid("first_name", "is required")
	}
	if c.LastName == "" {
		return apperr.Invalid("last_name", "is required")
	}
	c.DateOfBirth = nil
	if dob := strings.TrimSpace(in.DateOfBirth); dob != "" {
		t, err := time.Parse("2006-01-02", dob)
		if err != nil {
			return apperr.Invalid("date_of_birth", "expected YYYY-MM-DD")
		}
		if t.After(today) {
			return apperr.Invalid("date_of_birth", "must not be in the future")
		}
		c.DateOfBirth = &t
	}
	c.Notes = nil
	if in.Notes != nil {
		if n := strings.TrimSpace(*in.Notes); n != "" {
			c.Notes = &n
		}
	}
	return nil
}

func (s *ChildService) List(ctx context.Context, id authz.Identity) ([]model.Child, error) {
	if err := authz.Authorize(id, authz.ManageChildren); err != nil {
		return nil, err
	}
	out, err := s.children.ListByParent(ctx, id.UserID)
	return out, apperr.Storage(err)
}

func (s *ChildService) Create(ctx context.Context, id authz.Identity, in ChildInput) (model.Child, error) {
	if err := authz.Authorize(id, authz.ManageChildren); err != nil {
		return model.Child{}, err
	}
	c := model.Child{ParentID: id.UserID, IsActive: true}
	if err := in.apply(&c, s.now().UTC()); err != nil {
		return model.Child{}, err
	}
	if err := s.children.Create(ctx, &c); err != nil {
		return model.Child{}, apperr.Storage(err)
	}
	return c, nil
}

func (s *ChildService) Update(ctx context.Context, id authz.Identity, childID uint64, in ChildInput) (model.Child, error) {
	if err := authz.Authorize(id, authz.ManageChildren); err != nil {
		return model.Child{}, err
	}
	c, err := s.children.GetForParent(ctx, childID, id.UserID)
	if err != nil {
		return model.Child{}, apperr.Storage(err)
	}
	if err := in.apply(&c, s.now().UTC()); err != nil {
		return model.Child{}, err
	}
	if err := s.children.Update(ctx, &c); err != nil {
		return model.Child{}, apperr.Storage(err)
	}
	return c, nil
}

// Remove soft-deletes a child. Existing bookings keep referencing it.
func (s *ChildService) Remove(ctx context.Context, id authz.Identity, childID uint64) error {
	if err := authz.Authorize(id, authz.ManageChildren); err != nil {
		return err
	}
	return apperr.Storage(s.children.Deactivate(ctx, childID, id.UserID))
}
