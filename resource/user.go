package resource

import (
	"context"
	"fmt"

	"github.com/pranems/scimserver/internal/filter"
	"github.com/pranems/scimserver/internal/patch"
	"github.com/pranems/scimserver/internal/storage"
	"github.com/pranems/scimserver/scim"
)

// UserService implements the User state machine over a storage.Store.
type UserService struct {
	store     *storage.Store
	validator *scim.Validator
}

func NewUserService(store *storage.Store) *UserService {
	return &UserService{store: store, validator: scim.NewValidator()}
}

// Create validates the incoming body, strips any client-supplied id, and
// persists it with a freshly assigned scimId.
func (s *UserService) Create(ctx context.Context, endpointID string, body map[string]any) (map[string]any, error) {
	if err := requireSchema(body, scim.SchemaUser); err != nil {
		return nil, err
	}
	delete(body, "id")
	delete(body, "meta")

	if err := s.validator.ValidateUser(body); err != nil {
		return nil, err
	}

	if existing, _ := s.store.GetUserByUserName(ctx, endpointID, stringField(body, "userName")); existing != nil {
		return nil, scim.ErrUniqueness(fmt.Sprintf("userName %q already exists", stringField(body, "userName")))
	}
	if ext := stringField(body, "externalId"); ext != "" {
		if _, err := s.findByExternalID(ctx, endpointID, ext); err == nil {
			return nil, scim.ErrUniqueness(fmt.Sprintf("externalId %q already exists", ext))
		}
	}

	return s.store.CreateUser(ctx, endpointID, body)
}

// Get returns the resource assembled from storage. meta.location is set
// here rather than in the storage layer, since it needs the request's base
// URL and tenant routing.
func (s *UserService) Get(ctx context.Context, endpointID, scimID string, loc *scim.Handler) (map[string]any, error) {
	res, err := s.store.GetUser(ctx, endpointID, scimID)
	if err != nil {
		return nil, err
	}
	setLocation(res, loc, endpointID, "Users", scimID)
	return res, nil
}

// List applies filter pushdown, fetches the endpoint's users ordered by
// creation, and defers filter/sort/paginate/project to ProcessListQuery.
func (s *UserService) List(ctx context.Context, endpointID string, params scim.QueryParams, loc *scim.Handler) (*scim.ListResponse[map[string]any], error) {
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

	all, err := s.store.ListUsers(ctx, endpointID, hint)
	if err != nil {
		return nil, err
	}

	resp, err := ProcessListQuery(all, params)
	if err != nil {
		return nil, err
	}
	for _, res := range resp.Resources {
		setLocation(res, loc, endpointID, "Users", stringField(res, "id"))
	}
	return resp, nil
}

// Replace performs a full PUT replacement, re-asserting uniqueness against
// every other user in the endpoint.
func (s *UserService) Replace(ctx context.Context, endpointID, scimID string, body map[string]any, loc *scim.Handler) (map[string]any, error) {
	if err := requireSchema(body, scim.SchemaUser); err != nil {
		return nil, err
	}
	delete(body, "id")
	delete(body, "meta")

	if err := s.validator.ValidateUser(body); err != nil {
		return nil, err
	}

	if err := s.assertUniqueExcluding(ctx, endpointID, scimID, stringField(body, "userName"), stringField(body, "externalId")); err != nil {
		return nil, err
	}

	res, err := s.store.ReplaceUser(ctx, endpointID, scimID, body)
	if err != nil {
		return nil, err
	}
	setLocation(res, loc, endpointID, "Users", scimID)
	return res, nil
}

// Patch applies a PATCH request through the patch resolver, then re-asserts
// uniqueness before persisting.
func (s *UserService) Patch(ctx context.Context, endpointID, scimID string, ops []scim.PatchOperation, opts patch.Options, loc *scim.Handler) (map[string]any, error) {
	proc := patch.NewProcessor(opts)

	var uniqueErr error
	res, err := s.store.MutateUser(ctx, endpointID, scimID, func(current map[string]any) error {
		if err := proc.Apply(current, ops); err != nil {
			return err
		}
		if err := s.assertUniqueExcluding(ctx, endpointID, scimID, stringField(current, "userName"), stringField(current, "externalId")); err != nil {
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
	setLocation(res, loc, endpointID, "Users", scimID)
	return res, nil
}

func (s *UserService) Delete(ctx context.Context, endpointID, scimID string) error {
	return s.store.DeleteUser(ctx, endpointID, scimID)
}

func (s *UserService) assertUniqueExcluding(ctx context.Context, endpointID, scimID, userName, externalID string) error {
	if userName != "" {
		if existing, _ := s.store.GetUserByUserName(ctx, endpointID, userName); existing != nil {
			if stringField(existing, "id") != scimID {
				return scim.ErrUniqueness(fmt.Sprintf("userName %q already exists", userName))
			}
		}
	}
	if externalID != "" {
		if existing, err := s.findByExternalID(ctx, endpointID, externalID); err == nil && existing != nil {
			if stringField(existing, "id") != scimID {
				return scim.ErrUniqueness(fmt.Sprintf("externalId %q already exists", externalID))
			}
		}
	}
	return nil
}

func (s *UserService) findByExternalID(ctx context.Context, endpointID, externalID string) (map[string]any, error) {
	hint := &filter.PushdownHint{Attribute: "externalid", Value: externalID}
	all, err := s.store.ListUsers(ctx, endpointID, hint)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, scim.ErrNotFound("User", externalID)
	}
	return all[0], nil
}

func requireSchema(body map[string]any, wantURN string) error {
	schemas, ok := body["schemas"].([]any)
	if !ok {
		return nil
	}
	for _, s := range schemas {
		if str, ok := s.(string); ok && equalFoldURN(str, wantURN) {
			return nil
		}
	}
	return scim.ErrInvalidSyntax(fmt.Sprintf("schemas must include %s", wantURN))
}

func equalFoldURN(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ca, cb := a[i], b[i]
		if ca >= 'A' && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if cb >= 'A' && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	v, _ := m[key].(string)
	return v
}

func setLocation(res map[string]any, h *scim.Handler, endpointID, resourceType, id string) {
	if h == nil || res == nil {
		return
	}
	meta, ok := res["meta"].(map[string]any)
	if !ok {
		meta = map[string]any{}
		res["meta"] = meta
	}
	meta["location"] = h.ResourceLocation(endpointID, resourceType, id)
}
