package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pranems/scimserver/internal/endpoint"
	"github.com/pranems/scimserver/internal/patch"
	"github.com/pranems/scimserver/resource"
	"github.com/pranems/scimserver/scim"
)

// Router builds the full HTTP routing table: default-tenant SCIM endpoints,
// tenant-scoped equivalents under /scim/endpoints/{id}/, discovery, and
// (via admin.go) the tenant/log-config/observability admin surface.
type Router struct {
	mux      *http.ServeMux
	pipeline *Pipeline
	handler  *scim.Handler
	validator *scim.Validator

	users     *resource.UserService
	groups    *resource.GroupService
	endpoints *endpoint.Service

	spConfig      *scim.ServiceProviderConfig
	schemas       []*scim.SchemaDefinition
	resourceTypes []scim.ResourceTypeDefinition

	admin *Admin
}

func NewRouter(pipeline *Pipeline, baseURL string, users *resource.UserService, groups *resource.GroupService, endpoints *endpoint.Service, admin *Admin) *Router {
	rt := &Router{
		mux:           http.NewServeMux(),
		pipeline:      pipeline,
		handler:       scim.NewHandler(baseURL),
		validator:     scim.NewValidator(),
		users:         users,
		groups:        groups,
		endpoints:     endpoints,
		spConfig:      scim.GetServiceProviderConfig(nil),
		schemas:       []*scim.SchemaDefinition{scim.GetUserSchema(), scim.GetGroupSchema(), scim.GetEnterpriseExtensionSchema()},
		resourceTypes: scim.GetResourceTypes(),
		admin:         admin,
	}
	rt.setupRoutes()
	return rt
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.pipeline.Wrap(rt.mux).ServeHTTP(w, r)
}

func (rt *Router) setupRoutes() {
	rt.registerResourceRoutes("")
	rt.registerResourceRoutes("/scim/endpoints/{endpointId}")

	rt.mux.HandleFunc("GET /health", rt.handleHealth)
	rt.mux.HandleFunc("GET /healthz", rt.handleHealth)

	rt.admin.Register(rt.mux)
}

func (rt *Router) registerResourceRoutes(prefix string) {
	rt.mux.HandleFunc("GET "+prefix+"/ServiceProviderConfig", rt.handleServiceProviderConfig)
	rt.mux.HandleFunc("GET "+prefix+"/Schemas", rt.handleSchemas)
	rt.mux.HandleFunc("GET "+prefix+"/ResourceTypes", rt.handleResourceTypes)

	rt.mux.HandleFunc("GET "+prefix+"/Users", rt.withTenant(rt.handleListUsers))
	rt.mux.HandleFunc("POST "+prefix+"/Users", rt.withTenant(rt.handleCreateUser))
	rt.mux.HandleFunc("POST "+prefix+"/Users/.search", rt.withTenant(rt.handleSearchUsers))
	rt.mux.HandleFunc("GET "+prefix+"/Users/{id}", rt.withTenant(rt.handleGetUser))
	rt.mux.HandleFunc("PUT "+prefix+"/Users/{id}", rt.withTenant(rt.handleReplaceUser))
	rt.mux.HandleFunc("PATCH "+prefix+"/Users/{id}", rt.withTenant(rt.handlePatchUser))
	rt.mux.HandleFunc("DELETE "+prefix+"/Users/{id}", rt.withTenant(rt.handleDeleteUser))

	rt.mux.HandleFunc("GET "+prefix+"/Groups", rt.withTenant(rt.handleListGroups))
	rt.mux.HandleFunc("POST "+prefix+"/Groups", rt.withTenant(rt.handleCreateGroup))
	rt.mux.HandleFunc("POST "+prefix+"/Groups/.search", rt.withTenant(rt.handleSearchGroups))
	rt.mux.HandleFunc("GET "+prefix+"/Groups/{id}", rt.withTenant(rt.handleGetGroup))
	rt.mux.HandleFunc("PUT "+prefix+"/Groups/{id}", rt.withTenant(rt.handleReplaceGroup))
	rt.mux.HandleFunc("PATCH "+prefix+"/Groups/{id}", rt.withTenant(rt.handlePatchGroup))
	rt.mux.HandleFunc("DELETE "+prefix+"/Groups/{id}", rt.withTenant(rt.handleDeleteGroup))
}

// withTenant resolves {endpointId} when present in the path (tenant-scoped
// routes) before calling through to next; default-tenant routes pass an
// empty endpointId straight through.
func (rt *Router) withTenant(next func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		endpointID := r.PathValue("endpointId")
		if endpointID == "" {
			next(w, r)
			return
		}
		req, ok := rt.pipeline.WithTenant(w, r, endpointID)
		if !ok {
			return
		}
		next(w, req)
	}
}

func (rt *Router) patchOptions(r *http.Request) patch.Options {
	cfg := EndpointConfigFromContext(r.Context())
	flags := endpoint.ResolveFlags(cfg)
	return patch.Options{
		VerbosePatchSupported:                      flags.VerbosePatchSupported,
		AllowRemoveAllMembers:                      flags.PatchOpAllowRemoveAllMembers,
		AllowAddMultipleMembers:                    flags.MultiOpPatchRequestAddMultipleMembersToGroup,
		AllowRemoveMultipleMembers:                 flags.MultiOpPatchRequestRemoveMultipleMembersFromGroup,
	}
}

func (rt *Router) handleListUsers(w http.ResponseWriter, r *http.Request) {
	params, err := rt.handler.ParseQueryParams(r)
	if err != nil {
		rt.handler.WriteError(w, http.StatusBadRequest, err.Error(), scim.ScimTypeInvalidFilter)
		return
	}
	resp, err := rt.users.List(r.Context(), EndpointIDFromContext(r.Context()), params, rt.handler)
	if err != nil {
		WriteSCIMError(rt.handler, w, err)
		return
	}
	rt.handler.WriteJSON(w, http.StatusOK, resp)
}

// decodeSearchRequest reads a .search POST body into scim.QueryParams.
func (rt *Router) decodeSearchRequest(w http.ResponseWriter, r *http.Request) (scim.QueryParams, bool) {
	var req scim.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rt.handler.WriteError(w, http.StatusBadRequest, "invalid JSON body", scim.ScimTypeInvalidSyntax)
		return scim.QueryParams{}, false
	}
	return req.ToQueryParams(), true
}

func (rt *Router) handleSearchUsers(w http.ResponseWriter, r *http.Request) {
	params, ok := rt.decodeSearchRequest(w, r)
	if !ok {
		return
	}
	resp, err := rt.users.List(r.Context(), EndpointIDFromContext(r.Context()), params, rt.handler)
	if err != nil {
		WriteSCIMError(rt.handler, w, err)
		return
	}
	rt.handler.WriteJSON(w, http.StatusOK, resp)
}

func (rt *Router) handleSearchGroups(w http.ResponseWriter, r *http.Request) {
	params, ok := rt.decodeSearchRequest(w, r)
	if !ok {
		return
	}
	resp, err := rt.groups.List(r.Context(), EndpointIDFromContext(r.Context()), params, rt.handler)
	if err != nil {
		WriteSCIMError(rt.handler, w, err)
		return
	}
	rt.handler.WriteJSON(w, http.StatusOK, resp)
}

func (rt *Router) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		rt.handler.WriteError(w, http.StatusBadRequest, "invalid JSON body", scim.ScimTypeInvalidSyntax)
		return
	}
	res, err := rt.users.Create(r.Context(), EndpointIDFromContext(r.Context()), body)
	if err != nil {
		WriteSCIMError(rt.handler, w, err)
		return
	}
	rt.handler.WriteJSON(w, http.StatusCreated, res)
}

func (rt *Router) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	res, err := rt.users.Get(r.Context(), EndpointIDFromContext(r.Context()), id, rt.handler)
	if err != nil {
		WriteSCIMError(rt.handler, w, err)
		return
	}
	rt.writeWithConditionalGet(w, r, rt.projectSingle(r, res))
}

func (rt *Router) handleReplaceUser(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		rt.handler.WriteError(w, http.StatusBadRequest, "invalid JSON body", scim.ScimTypeInvalidSyntax)
		return
	}
	id := r.PathValue("id")
	res, err := rt.users.Replace(r.Context(), EndpointIDFromContext(r.Context()), id, body, rt.handler)
	if err != nil {
		WriteSCIMError(rt.handler, w, err)
		return
	}
	rt.handler.WriteJSON(w, http.StatusOK, res)
}

func (rt *Router) handlePatchUser(w http.ResponseWriter, r *http.Request) {
	var op scim.PatchOp
	if err := json.NewDecoder(r.Body).Decode(&op); err != nil {
		rt.handler.WriteError(w, http.StatusBadRequest, "invalid JSON body", scim.ScimTypeInvalidSyntax)
		return
	}
	if err := rt.validator.ValidatePatchOp(&op); err != nil {
		WriteSCIMError(rt.handler, w, err)
		return
	}
	id := r.PathValue("id")
	res, err := rt.users.Patch(r.Context(), EndpointIDFromContext(r.Context()), id, op.Operations, rt.patchOptions(r), rt.handler)
	if err != nil {
		WriteSCIMError(rt.handler, w, err)
		return
	}
	rt.handler.WriteJSON(w, http.StatusOK, res)
}

func (rt *Router) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := rt.users.Delete(r.Context(), EndpointIDFromContext(r.Context()), id); err != nil {
		WriteSCIMError(rt.handler, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) handleListGroups(w http.ResponseWriter, r *http.Request) {
	params, err := rt.handler.ParseQueryParams(r)
	if err != nil {
		rt.handler.WriteError(w, http.StatusBadRequest, err.Error(), scim.ScimTypeInvalidFilter)
		return
	}
	resp, err := rt.groups.List(r.Context(), EndpointIDFromContext(r.Context()), params, rt.handler)
	if err != nil {
		WriteSCIMError(rt.handler, w, err)
		return
	}
	rt.handler.WriteJSON(w, http.StatusOK, resp)
}

func (rt *Router) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		rt.handler.WriteError(w, http.StatusBadRequest, "invalid JSON body", scim.ScimTypeInvalidSyntax)
		return
	}
	res, err := rt.groups.Create(r.Context(), EndpointIDFromContext(r.Context()), body)
	if err != nil {
		WriteSCIMError(rt.handler, w, err)
		return
	}
	rt.handler.WriteJSON(w, http.StatusCreated, res)
}

func (rt *Router) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	res, err := rt.groups.Get(r.Context(), EndpointIDFromContext(r.Context()), id, rt.handler)
	if err != nil {
		WriteSCIMError(rt.handler, w, err)
		return
	}
	rt.writeWithConditionalGet(w, r, rt.projectSingle(r, res))
}

// projectSingle applies the attributes/excludedAttributes query parameters
// to a single-resource GET response the same way List does for collections.
func (rt *Router) projectSingle(r *http.Request, res map[string]any) map[string]any {
	q := r.URL.Query()
	attributes := splitQueryAttrs(q.Get("attributes"))
	excluded := splitQueryAttrs(q.Get("excludedAttributes"))
	if len(attributes) == 0 && len(excluded) == 0 {
		return res
	}
	return resource.NewAttributeSelector(attributes, excluded).Project(res)
}

func splitQueryAttrs(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func (rt *Router) handleReplaceGroup(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		rt.handler.WriteError(w, http.StatusBadRequest, "invalid JSON body", scim.ScimTypeInvalidSyntax)
		return
	}
	id := r.PathValue("id")
	res, err := rt.groups.Replace(r.Context(), EndpointIDFromContext(r.Context()), id, body, rt.handler)
	if err != nil {
		WriteSCIMError(rt.handler, w, err)
		return
	}
	rt.handler.WriteJSON(w, http.StatusOK, res)
}

func (rt *Router) handlePatchGroup(w http.ResponseWriter, r *http.Request) {
	var op scim.PatchOp
	if err := json.NewDecoder(r.Body).Decode(&op); err != nil {
		rt.handler.WriteError(w, http.StatusBadRequest, "invalid JSON body", scim.ScimTypeInvalidSyntax)
		return
	}
	if err := rt.validator.ValidatePatchOp(&op); err != nil {
		WriteSCIMError(rt.handler, w, err)
		return
	}
	id := r.PathValue("id")
	res, err := rt.groups.Patch(r.Context(), EndpointIDFromContext(r.Context()), id, op.Operations, rt.patchOptions(r), rt.handler)
	if err != nil {
		WriteSCIMError(rt.handler, w, err)
		return
	}
	rt.handler.WriteJSON(w, http.StatusOK, res)
}

func (rt *Router) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := rt.groups.Delete(r.Context(), EndpointIDFromContext(r.Context()), id); err != nil {
		WriteSCIMError(rt.handler, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeWithConditionalGet applies the ETag short-circuit: If-None-Match
// matching the resource's current version returns 304 with no body instead
// of re-serializing it.
func (rt *Router) writeWithConditionalGet(w http.ResponseWriter, r *http.Request, res map[string]any) {
	meta, _ := res["meta"].(map[string]any)
	version, _ := meta["version"].(string)

	gen := scim.NewETagGenerator()
	if status, _ := gen.CheckPreconditions(r, version); status == http.StatusNotModified {
		gen.SetETag(w, version)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	gen.SetETag(w, version)
	rt.handler.WriteJSON(w, http.StatusOK, res)
}

func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
