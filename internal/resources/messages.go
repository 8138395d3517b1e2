package resources

import (
	"context"
	"net/url"
	"strings"

	"github.com/pitabwire/crmconsole/internal/querycache"
	"github.com/pitabwire/crmconsole/internal/validation"
	"github.com/pitabwire/crmconsole/model"
)

func threadKey(toUserID string) querycache.Key {
	return querycache.Key{Resource: ResourceMessages, Operation: "thread", ID: toUserID}
}

// Messages covers /messages.
type Messages struct {
	base
}

// Thread reads the messages exchanged with a user.
func (s *Messages) Thread(ctx context.Context, toUserID string) ([]model.MessageRecord, error) {
	if strings.TrimSpace(toUserID) == "" {
		return nil, model.NewValidationError([]model.FieldError{{Field: "toUserId", Code: "notblank", Message: "To user id is required"}})
	}
	return read(ctx, s.base, threadKey(toUserID), func(ctx context.Context) ([]model.MessageRecord, error) {
		var out model.DataResponse[model.MessageRecord]
		if err := s.api.Get(ctx, "/messages", url.Values{"toUserId": {toUserID}}, &out); err != nil {
			return nil, err
		}
		return out.Data, nil
	})
}

// Send posts a message and refreshes only that thread.
func (s *Messages) Send(ctx context.Context, p model.SendMessagePayload) (*model.MessageRecord, error) {
	p.Body = strings.TrimSpace(p.Body)
	if err := validation.Struct(p); err != nil {
		return nil, err
	}
	var out model.MessageRecord
	if err := s.api.Post(ctx, "/messages/send", p, &out); err != nil {
		return nil, err
	}
	s.invalidate(threadKey(p.ToUserID).String())
	return &out, nil
}
