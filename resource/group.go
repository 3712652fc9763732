package resource

import (
	"context"
	"fmt"

	"github.com/pranems/scimserver/internal/filter"
	"github.com/pranems/scimserver/internal/patch"
	"github.com/pranems/scimserver/internal/storage"
	"github.com/pranems/scimserver/scim"
)

// GroupService implements the Group state machine. Member resolution
// happens inside internal/storage, outside any write transaction.
type GroupService struct {
	store     *storage.Store
	validator *scim.Validator
}

func NewGroupService(store *storage.Store) *GroupService {
	return &GroupService{store: store, validator: scim.NewValidator()}
}

func (s *GroupService) Create(ctx context.Context, endpointID string, body map[string]any) (map[string]any, error) {
	if err := requireSchema(body, scim.SchemaGroup); err != nil {
		return nil, err
	}
	delete(body, "id")
	delete(body, "meta")

	if err := s.validator.ValidateGroup(body); err != nil {
		return nil, err
	}
	dedupeMembers(body)

	if existing, _ := s.store.GetGroupByDisplayName(ctx, endpointID, stringField(body, "displayName")); existing != nil {
		return nil, scim.ErrUniqueness(fmt.Sprintf("displayName %q already exists", stringField(body, "displayName")))
	}

	return s.store.CreateGroup(ctx, endpointID, body)
}

func (s *GroupService) Get(ctx context.Context, endpointID, scimID string, loc *scim.Handler) (map[string]any, error) {
	res, err := s.store.GetGroup(ctx, endpointID, scimID)
	if err != nil {
		return nil, err
	}
	setLocation(res, loc, endpointID, "Groups", scimID)
	return res, nil
}

func (s *GroupService) List(ctx context.Context, endpointID string, params scim.QueryParams, loc *scim.Handler) (*scim.ListResponse[map[string]any], error) {
	if err := scim.ValidateQueryParams(&params); err != nil {
		return nil, err
	}

	var hint *filter.PushdownHint
	if params.Filter != "" {
		_, h, err := filter.ParseWithPushdown(params.Filter)
		if err != nil {
			return nil, scim.ErrInvalidFilter(err.Error())
		}
		hint = h
	}

	all, err := s.store.ListGroups(ctx, endpointID, hint)
	if err != nil {
		return nil, err
	}

	resp, err := ProcessListQuery(all, params)
	if err != nil {
		return nil, err
	}
	for _, res := range resp.Resources {
		setLocation(res, loc, endpointID, "Groups", stringField(res, "id"))
	}
	return resp, nil
}

// Replace performs a full PUT, always returning 200 with the canonical
// resource.
func (s *GroupService) Replace(ctx context.Context, endpointID, scimID string, body map[string]any, loc *scim.Handler) (map[string]any, error) {
	if err := requireSchema(body, scim.SchemaGroup); err != nil {
		return nil, err
	}
	delete(body, "id")
	delete(body, "meta")

	if err := s.validator.ValidateGroup(body); err != nil {
		return nil, err
	}
	dedupeMembers(body)

	if err := s.assertDisplayNameUnique(ctx, endpointID, scimID, stringField(body, "displayName")); err != nil {
		return nil, err
	}

	res, err := s.store.ReplaceGroup(ctx, endpointID, scimID, body)
	if err != nil {
		return nil, err
	}
	setLocation(res, loc, endpointID, "Groups", scimID)
	return res, nil
}

// Patch applies PATCH operations through the resolver, enforcing the
// multi-member-op and remove-all-members gates via opts, then returns the
// canonical resource (200 OK, not 204).
func (s *GroupService) Patch(ctx context.Context, endpointID, scimID string, ops []scim.PatchOperation, opts patch.Options, loc *scim.Handler) (map[string]any, error) {
	proc := patch.NewProcessor(opts)

	var uniqueErr error
	res, err := s.store.MutateGroup(ctx, endpointID, scimID, func(current map[string]any) error {
		if err := proc.Apply(current, ops); err != nil {
			return err
		}
		dedupeMembers(current)
		if err := s.assertDisplayNameUnique(ctx, endpointID, scimID, stringField(current, "displayName")); err != nil {
			uniqueErr = err
			return err
		}
		return nil
	})
	if uniqueErr != nil {
		return nil, uniqueErr
	}
	if err != nil {
		return nil, err
	}
	setLocation(res, loc, endpointID, "Groups", scimID)
	return res, nil
}

func (s *GroupService) Delete(ctx context.Context, endpointID, scimID string) error {
	return s.store.DeleteGroup(ctx, endpointID, scimID)
}

func (s *GroupService) assertDisplayNameUnique(ctx context.Context, endpointID, scimID, displayName string) error {
	if displayName == "" {
		return nil
	}
	existing, _ := s.store.GetGroupByDisplayName(ctx, endpointID, displayName)
	if existing != nil && stringField(existing, "id") != scimID {
		return scim.ErrUniqueness(fmt.Sprintf("displayName %q already exists", displayName))
	}
	return nil
}

// dedupeMembers collapses members with the same value to a single entry,
// preserving first-seen order.
func dedupeMembers(body map[string]any) {
	members, ok := body["members"].([]any)
	if !ok {
		return
	}
	seen := make(map[string]bool, len(members))
	out := make([]any, 0, len(members))
	for _, m := range members {
		entry, ok := m.(map[string]any)
		if !ok {
			continue
		}
		value, _ := entry["value"].(string)
		if seen[value] {
			continue
		}
		seen[value] = true
		out = append(out, entry)
	}
	body["members"] = out
}
