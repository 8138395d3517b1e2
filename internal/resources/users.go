package resources

import (
	"context"
	"strings"

	"github.com/pitabwire/crmconsole/internal/querycache"
	"github.com/pitabwire/crmconsole/internal/validation"
	"github.com/pitabwire/crmconsole/model"
)

// Users covers /users.
type Users struct {
	base
}

// List reads every console user.
func (s *Users) List(ctx context.Context) ([]model.UserRecord, error) {
	return read(ctx, s.base, querycache.Key{Resource: ResourceUsers, Operation: "list"}, func(ctx context.Context) ([]model.UserRecord, error) {
		var out model.DataResponse[model.UserRecord]
		if err := s.api.Get(ctx, "/users", nil, &out); err != nil {
			return nil, err
		}
		return out.Data, nil
	})
}

// Create adds a user.
func (s *Users) Create(ctx context.Context, p model.CreateUserPayload) (*model.UserRecord, error) {
	p.FullName = strings.TrimSpace(p.FullName)
	p.Email = strings.TrimSpace(p.Email)
	p.Phone = strings.TrimSpace(p.Phone)
	if err := validation.Struct(p); err != nil {
		return nil, err
	}
	var out model.UserRecord
	if err := s.api.Post(ctx, "/users", p, &out); err != nil {
		return nil, err
	}
	s.invalidate(ResourceUsers)
	return &out, nil
}

// Update changes a user.
func (s *Users) Update(ctx context.Context, id string, p model.UpdateUserPayload) (*model.UserRecord, error) {
	var out model.UserRecord
	if err := s.api.Patch(ctx, "/users/"+escape(id), p, &out); err != nil {
		return nil, err
	}
	s.invalidate(ResourceUsers)
	return &out, nil
}
