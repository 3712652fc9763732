// Package endpoint is the tenant lifecycle service: it owns the
// Endpoint entity, resolves its config flags with defaults, and carries a
// request-scoped tenant id through context for downstream components.
package endpoint

import (
	"context"
	"fmt"
	"strings"

	"github.com/pranems/scimserver/internal/storage"
	"github.com/pranems/scimserver/scim"
)

// Flags are the recognized Entra-compatibility config keys. Unknown keys in
// an Endpoint's config map are preserved verbatim but have no behavioral
// effect.
type Flags struct {
	VerbosePatchSupported                           bool
	MultiOpPatchRequestAddMultipleMembersToGroup     bool
	MultiOpPatchRequestRemoveMultipleMembersFromGroup bool
	PatchOpAllowRemoveAllMembers                     bool
}

// defaultFlags: only PatchOpAllowRemoveAllMembers defaults to true; the
// rest default to false for Entra compatibility.
func defaultFlags() Flags {
	return Flags{PatchOpAllowRemoveAllMembers: true}
}

// ResolveFlags reads the recognized keys out of a raw config map, accepting
// bool or case-insensitive "true"/"false" string values, and falls back to
// the defaults for anything absent or unrecognized.
func ResolveFlags(config map[string]any) Flags {
	f := defaultFlags()
	if config == nil {
		return f
	}
	apply := func(key string, dest *bool) {
		v, ok := config[key]
		if !ok {
			return
		}
		*dest = coerceBool(v, *dest)
	}
	apply("VerbosePatchSupported", &f.VerbosePatchSupported)
	apply("MultiOpPatchRequestAddMultipleMembersToGroup", &f.MultiOpPatchRequestAddMultipleMembersToGroup)
	apply("MultiOpPatchRequestRemoveMultipleMembersFromGroup", &f.MultiOpPatchRequestRemoveMultipleMembersFromGroup)
	apply("PatchOpAllowRemoveAllMembers", &f.PatchOpAllowRemoveAllMembers)
	return f
}

func coerceBool(v any, fallback bool) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true":
			return true
		case "false":
			return false
		}
	}
	return fallback
}

// Stats summarizes an endpoint's owned resources for GET /admin/endpoints/{id}/stats.
type Stats struct {
	EndpointID   string `json:"endpointId"`
	UserCount    int    `json:"userCount"`
	GroupCount   int    `json:"groupCount"`
	RequestCount int    `json:"requestCount"`
}

// Service implements the tenant lifecycle operations over a storage.Store.
type Service struct {
	store *storage.Store
}

func New(store *storage.Store) *Service {
	return &Service{store: store}
}

// Create registers a new tenant. name must be unique; config defaults to an
// empty map when nil.
func (s *Service) Create(ctx context.Context, name, displayName, description string, config map[string]any) (*storage.Endpoint, error) {
	if strings.TrimSpace(name) == "" {
		return nil, scim.ErrInvalidValue("endpoint name is required")
	}
	if config == nil {
		config = map[string]any{}
	}
	ep := &storage.Endpoint{
		Name:        name,
		DisplayName: displayName,
		Description: description,
		Config:      config,
		Active:      true,
	}
	if err := s.store.CreateEndpoint(ctx, ep); err != nil {
		return nil, err
	}
	return ep, nil
}

// Update applies a partial patch (any of name/displayName/description/config/active).
func (s *Service) Update(ctx context.Context, id string, patch map[string]any) (*storage.Endpoint, error) {
	ep, err := s.store.GetEndpoint(ctx, id)
	if err != nil {
		return nil, err
	}
	if v, ok := patch["name"].(string); ok && v != "" {
		ep.Name = v
	}
	if v, ok := patch["displayName"].(string); ok {
		ep.DisplayName = v
	}
	if v, ok := patch["description"].(string); ok {
		ep.Description = v
	}
	if v, ok := patch["config"].(map[string]any); ok {
		ep.Config = v
	}
	if v, ok := patch["active"]; ok {
		ep.Active = coerceBool(v, ep.Active)
	}
	if err := s.store.UpdateEndpoint(ctx, ep); err != nil {
		return nil, err
	}
	return ep, nil
}

// Delete removes the tenant and, via ON DELETE CASCADE, every User, Group,
// and group membership it owns. Request log rows are kept.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.DeleteEndpoint(ctx, id)
}

func (s *Service) Get(ctx context.Context, id string) (*storage.Endpoint, error) {
	return s.store.GetEndpoint(ctx, id)
}

func (s *Service) GetByName(ctx context.Context, name string) (*storage.Endpoint, error) {
	return s.store.GetEndpointByName(ctx, name)
}

func (s *Service) List(ctx context.Context) ([]*storage.Endpoint, error) {
	return s.store.ListEndpoints(ctx)
}

// Flags resolves the endpoint's config flags, falling back to defaults.
func (s *Service) Flags(ctx context.Context, id string) (Flags, error) {
	ep, err := s.store.GetEndpoint(ctx, id)
	if err != nil {
		return Flags{}, err
	}
	return ResolveFlags(ep.Config), nil
}

// Stats returns resource counts for the admin dashboard.
func (s *Service) Stats(ctx context.Context, id string) (*Stats, error) {
	if _, err := s.store.GetEndpoint(ctx, id); err != nil {
		return nil, err
	}
	userCount, groupCount, requestCount, err := s.store.CountEndpointResources(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("count endpoint resources: %w", err)
	}
	return &Stats{
		EndpointID:   id,
		UserCount:    userCount,
		GroupCount:   groupCount,
		RequestCount: requestCount,
	}, nil
}

type contextKey int

const endpointIDKey contextKey = iota

// RunWithContext installs the endpoint id into ctx and runs fn;
// IDFromContext reads it back.
func RunWithContext(ctx context.Context, endpointID string, fn func(ctx context.Context) error) error {
	return fn(context.WithValue(ctx, endpointIDKey, endpointID))
}

// IDFromContext returns "" if no tenant has been resolved on ctx.
func IDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(endpointIDKey).(string)
	return id
}
