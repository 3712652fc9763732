package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pranems/scimserver/internal/endpoint"
	"github.com/pranems/scimserver/internal/logging"
	"github.com/pranems/scimserver/internal/storage"
)

// buildVersion is overridden via -ldflags at release build time.
var buildVersion = "dev"

// Admin implements the tenant-admin and observability endpoints.
type Admin struct {
	endpoints *endpoint.Service
	logger    *logging.Logger
	store     *storage.Store
	dsn       string
}

func NewAdmin(endpoints *endpoint.Service, logger *logging.Logger, store *storage.Store, dsn string) *Admin {
	return &Admin{endpoints: endpoints, logger: logger, store: store, dsn: dsn}
}

func (a *Admin) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /scim/admin/endpoints", a.handleCreateEndpoint)
	mux.HandleFunc("GET /scim/admin/endpoints", a.handleListEndpoints)
	mux.HandleFunc("GET /scim/admin/endpoints/{id}", a.handleGetEndpoint)
	mux.HandleFunc("PATCH /scim/admin/endpoints/{id}", a.handleUpdateEndpoint)
	mux.HandleFunc("DELETE /scim/admin/endpoints/{id}", a.handleDeleteEndpoint)
	mux.HandleFunc("GET /scim/admin/endpoints/by-name/{name}", a.handleGetEndpointByName)
	mux.HandleFunc("GET /scim/admin/endpoints/{id}/stats", a.handleEndpointStats)

	mux.HandleFunc("GET /scim/admin/activity", a.handleQueryActivity)
	mux.HandleFunc("DELETE /scim/admin/activity", a.handlePurgeActivity)
	mux.HandleFunc("GET /scim/admin/logs", a.handleQueryActivity)

	mux.HandleFunc("GET /scim/admin/log-config", a.handleGetLogConfig)
	mux.HandleFunc("PUT /scim/admin/log-config", a.handlePutLogConfig)
	mux.HandleFunc("PUT /scim/admin/log-config/level/{level}", a.handleSetGlobalLevel)
	mux.HandleFunc("PUT /scim/admin/log-config/category/{cat}/{level}", a.handleSetCategoryLevel)
	mux.HandleFunc("PUT /scim/admin/log-config/endpoint/{id}/{level}", a.handleSetEndpointLevel)
	mux.HandleFunc("DELETE /scim/admin/log-config/endpoint/{id}", a.handleClearEndpointLevel)

	mux.HandleFunc("GET /scim/admin/log-config/recent", a.handleRecentLogs)
	mux.HandleFunc("DELETE /scim/admin/log-config/recent", a.handleClearRecentLogs)
	mux.HandleFunc("GET /scim/admin/log-config/stream", a.handleStream)
	mux.HandleFunc("GET /scim/admin/log-config/download", a.handleDownload)

	mux.HandleFunc("GET /scim/admin/version", a.handleVersion)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeAdminError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"error": detail})
}

func (a *Admin) handleCreateEndpoint(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name        string         `json:"name"`
		DisplayName string         `json:"displayName"`
		Description string         `json:"description"`
		Config      map[string]any `json:"config"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeAdminError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	ep, err := a.endpoints.Create(r.Context(), body.Name, body.DisplayName, body.Description, body.Config)
	if err != nil {
		writeAdminError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, ep)
}

func (a *Admin) handleListEndpoints(w http.ResponseWriter, r *http.Request) {
	list, err := a.endpoints.List(r.Context())
	if err != nil {
		writeAdminError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *Admin) handleGetEndpoint(w http.ResponseWriter, r *http.Request) {
	ep, err := a.endpoints.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeAdminError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ep)
}

func (a *Admin) handleGetEndpointByName(w http.ResponseWriter, r *http.Request) {
	ep, err := a.endpoints.GetByName(r.Context(), r.PathValue("name"))
	if err != nil {
		writeAdminError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ep)
}

func (a *Admin) handleUpdateEndpoint(w http.ResponseWriter, r *http.Request) {
	var patch map[string]any
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeAdminError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	ep, err := a.endpoints.Update(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeAdminError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ep)
}

func (a *Admin) handleDeleteEndpoint(w http.ResponseWriter, r *http.Request) {
	if err := a.endpoints.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeAdminError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *Admin) handleEndpointStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.endpoints.Stats(r.Context(), r.PathValue("id"))
	if err != nil {
		writeAdminError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func configToJSON(cfg logging.Config) map[string]any {
	categoryLevels := make(map[string]string, len(cfg.CategoryLevels))
	for k, v := range cfg.CategoryLevels {
		categoryLevels[string(k)] = v.String()
	}
	endpointLevels := make(map[string]string, len(cfg.EndpointLevels))
	for k, v := range cfg.EndpointLevels {
		endpointLevels[k] = v.String()
	}
	return map[string]any{
		"globalLevel":        cfg.GlobalLevel.String(),
		"categoryLevels":     categoryLevels,
		"endpointLevels":     endpointLevels,
		"format":             string(cfg.Format),
		"includePayloads":    cfg.IncludePayloads,
		"includeStackTraces": cfg.IncludeStackTraces,
		"maxPayloadSizeBytes": cfg.MaxPayloadSize,
	}
}

func (a *Admin) handleGetLogConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, configToJSON(a.logger.Config()))
}

func (a *Admin) handlePutLogConfig(w http.ResponseWriter, r *http.Request) {
	var body struct {
		GlobalLevel        string            `json:"globalLevel"`
		CategoryLevels     map[string]string `json:"categoryLevels"`
		EndpointLevels     map[string]string `json:"endpointLevels"`
		Format             string            `json:"format"`
		IncludePayloads    *bool             `json:"includePayloads"`
		IncludeStackTraces *bool             `json:"includeStackTraces"`
		MaxPayloadSizeBytes *int             `json:"maxPayloadSizeBytes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeAdminError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	cfg := a.logger.Config()
	if body.GlobalLevel != "" {
		cfg.GlobalLevel = logging.ParseLevel(body.GlobalLevel)
	}
	if body.CategoryLevels != nil {
		cfg.CategoryLevels = map[logging.Category]logging.Level{}
		for k, v := range body.CategoryLevels {
			cfg.CategoryLevels[logging.Category(k)] = logging.ParseLevel(v)
		}
	}
	if body.EndpointLevels != nil {
		cfg.EndpointLevels = map[string]logging.Level{}
		for k, v := range body.EndpointLevels {
			cfg.EndpointLevels[k] = logging.ParseLevel(v)
		}
	}
	if body.Format != "" {
		cfg.Format = logging.Format(body.Format)
	}
	if body.IncludePayloads != nil {
		cfg.IncludePayloads = *body.IncludePayloads
	}
	if body.IncludeStackTraces != nil {
		cfg.IncludeStackTraces = *body.IncludeStackTraces
	}
	if body.MaxPayloadSizeBytes != nil {
		cfg.MaxPayloadSize = *body.MaxPayloadSizeBytes
	}

	a.logger.Reconfigure(cfg)
	writeJSON(w, http.StatusOK, configToJSON(cfg))
}

func (a *Admin) handleSetGlobalLevel(w http.ResponseWriter, r *http.Request) {
	cfg := a.logger.Config()
	cfg.GlobalLevel = logging.ParseLevel(r.PathValue("level"))
	a.logger.Reconfigure(cfg)
	writeJSON(w, http.StatusOK, configToJSON(cfg))
}

func (a *Admin) handleSetCategoryLevel(w http.ResponseWriter, r *http.Request) {
	cfg := a.logger.Config()
	if cfg.CategoryLevels == nil {
		cfg.CategoryLevels = map[logging.Category]logging.Level{}
	}
	cfg.CategoryLevels[logging.Category(r.PathValue("cat"))] = logging.ParseLevel(r.PathValue("level"))
	a.logger.Reconfigure(cfg)
	writeJSON(w, http.StatusOK, configToJSON(cfg))
}

func (a *Admin) handleSetEndpointLevel(w http.ResponseWriter, r *http.Request) {
	cfg := a.logger.Config()
	if cfg.EndpointLevels == nil {
		cfg.EndpointLevels = map[string]logging.Level{}
	}
	cfg.EndpointLevels[r.PathValue("id")] = logging.ParseLevel(r.PathValue("level"))
	a.logger.Reconfigure(cfg)
	writeJSON(w, http.StatusOK, configToJSON(cfg))
}

func (a *Admin) handleClearEndpointLevel(w http.ResponseWriter, r *http.Request) {
	cfg := a.logger.Config()
	delete(cfg.EndpointLevels, r.PathValue("id"))
	a.logger.Reconfigure(cfg)
	writeJSON(w, http.StatusOK, configToJSON(cfg))
}

func (a *Admin) handleRecentLogs(w http.ResponseWriter, r *http.Request) {
	entries := a.logger.Ring().Snapshot()
	entries = filterEntries(entries, r)
	writeJSON(w, http.StatusOK, entries)
}

func (a *Admin) handleClearRecentLogs(w http.ResponseWriter, r *http.Request) {
	a.logger.Ring().Resize(500)
	w.WriteHeader(http.StatusNoContent)
}

func filterEntries(entries []logging.Entry, r *http.Request) []logging.Entry {
	q := r.URL.Query()
	limit := 100
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	level := q.Get("level")
	category := q.Get("category")
	requestID := q.Get("requestId")
	endpointID := q.Get("endpointId")

	out := make([]logging.Entry, 0, limit)
	for i := len(entries) - 1; i >= 0 && len(out) < limit; i-- {
		e := entries[i]
		if level != "" && e.LevelName != level {
			continue
		}
		if category != "" && string(e.Category) != category {
			continue
		}
		if requestID != "" && e.RequestID != requestID {
			continue
		}
		if endpointID != "" && e.EndpointID != endpointID {
			continue
		}
		out = append(out, e)
	}
	return out
}

func (a *Admin) handleStream(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	a.logger.ServeSSE(ctx, w)
}

func (a *Admin) handleDownload(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	entries := filterEntries(a.logger.Ring().Snapshot(), r)

	ext := "json"
	if format == "ndjson" {
		ext = "ndjson"
	}
	filename := fmt.Sprintf("scim-logs-%s.%s", time.Now().UTC().Format("20060102T150405Z"), ext)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))

	if format == "ndjson" {
		w.Header().Set("Content-Type", "application/x-ndjson")
		enc := json.NewEncoder(w)
		for _, e := range entries {
			enc.Encode(e)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

// parseRequestLogFilter builds a storage.RequestLogFilter from the query
// string shared by GET /admin/activity and GET /admin/logs.
func parseRequestLogFilter(r *http.Request) storage.RequestLogFilter {
	q := r.URL.Query()
	f := storage.RequestLogFilter{
		Method:        q.Get("method"),
		URLContains:   q.Get("urlContains"),
		Search:        q.Get("search"),
		IncludeAdmin:  q.Get("includeAdmin") == "true",
		HideKeepalive: q.Get("hideKeepalive") == "true",
	}
	if v := q.Get("status"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			f.Status = n
		}
	}
	if v := q.Get("since"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			f.Since = &t
		}
	}
	if v := q.Get("until"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			f.Until = &t
		}
	}
	if v := q.Get("hasError"); v != "" {
		b := strings.EqualFold(v, "true")
		f.HasError = &b
	}
	if v := q.Get("startIndex"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			f.StartIndex = n
		}
	}
	if v := q.Get("count"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			f.Count = n
		}
	}
	return f
}

func (a *Admin) handleQueryActivity(w http.ResponseWriter, r *http.Request) {
	entries, total, err := a.store.QueryRequestLogs(r.Context(), parseRequestLogFilter(r))
	if err != nil {
		writeAdminError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"totalResults": total,
		"entries":      entries,
	})
}

func (a *Admin) handlePurgeActivity(w http.ResponseWriter, r *http.Request) {
	cutoff := time.Now().UTC()
	if v := r.URL.Query().Get("before"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeAdminError(w, http.StatusBadRequest, "before must be RFC3339")
			return
		}
		cutoff = t.UTC()
	}
	if err := a.store.PurgeRequestLogsBefore(r.Context(), cutoff); err != nil {
		writeAdminError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *Admin) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"version":   buildVersion,
		"goVersion": runtime.Version(),
		"os":        runtime.GOOS,
		"arch":      runtime.GOARCH,
		"storage":   maskDSN(a.dsn),
	})
}

// maskDSN strips query parameters (which may carry pragmas or credentials)
// from a storage DSN before it's ever exposed over an admin endpoint.
func maskDSN(dsn string) string {
	for i, c := range dsn {
		if c == '?' {
			return dsn[:i]
		}
	}
	return dsn
}
