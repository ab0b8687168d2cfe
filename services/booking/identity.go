package booking

import (
	"context"

	"homeserve/utils"
)

type requesterKey struct{}
type adminKey struct{}

// WithRequester attaches an authenticated requester id to ctx.
func WithRequester(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requesterKey{}, id)
}

// WithAdminCapability marks the requester on ctx as holding the admin
// capability, e.g. from a verified token claim.
func WithAdminCapability(ctx context.Context) context.Context {
	return context.WithValue(ctx, adminKey{}, true)
}

// ContextIdentity reads the requester placed on the context by the transport
// layer. AdminIDs grants the admin capability by configuration as well.
type ContextIdentity struct {
	AdminIDs map[string]bool
}

func NewContextIdentity(adminIDs []string) *ContextIdentity {
	m := make(map[string]bool, len(adminIDs))
	for _, id := range adminIDs {
		m[id] = true
	}
	return &ContextIdentity{AdminIDs: m}
}

func (ci *ContextIdentity) CurrentRequesterID(ctx context.Context) (string, error) {
	id, _ := ctx.Value(requesterKey{}).(string)
	if id == "" {
		return "", utils.NewForbiddenError("no authenticated requester")
	}
	return id, nil
}

func (ci *ContextIdentity) HasAdminCapability(ctx context.Context, id string) bool {
	if ci.AdminIDs[id] {
		return true
	}
	current, _ := ctx.Value(requesterKey{}).(string)
	flagged, _ := ctx.Value(adminKey{}).(bool)
	return flagged && current == id
}
