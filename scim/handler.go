package scim

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

const (
	DefaultCount = 100
	MaxCount     = 200
)

// Handler owns the low-level HTTP response helpers shared by every SCIM and
// admin endpoint: consistent content-type, error envelope, and query-param
// parsing.
type Handler struct {
	baseURL string
}

func NewHandler(baseURL string) *Handler {
	return &Handler{baseURL: strings.TrimRight(baseURL, "/")}
}

// WriteError writes a SCIM error response.
func (h *Handler) WriteError(w http.ResponseWriter, status int, detail string, scimType string) {
	w.Header().Set("Content-Type", "application/scim+json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Error{
		Schemas:  []string{SchemaError},
		Status:   strconv.Itoa(status),
		Detail:   detail,
		ScimType: scimType,
	})
}

// WriteJSON writes a successful JSON response.
func (h *Handler) WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/scim+json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// ParseQueryParams extracts the SCIM list/search query parameters from the
// request. attributes and excludedAttributes may both be present at once;
// AttributeSelector.Project honors excludedAttributes over attributes for
// any key named in both.
func (h *Handler) ParseQueryParams(r *http.Request) (QueryParams, error) {
	params := QueryParams{
		StartIndex: 1,
		Count:      DefaultCount,
		SortOrder:  "ascending",
	}

	q := r.URL.Query()

	if filter := q.Get("filter"); filter != "" {
		params.Filter = filter
	}

	if q.Get("attributes") != "" {
		params.Attributes = splitTrim(q.Get("attributes"))
	}

	if q.Get("excludedAttributes") != "" {
		params.ExcludedAttr = splitTrim(q.Get("excludedAttributes"))
	}

	if v := q.Get("startIndex"); v != "" {
		if idx, err := strconv.Atoi(v); err == nil && idx > 0 {
			params.StartIndex = idx
		}
	}

	if v := q.Get("count"); v != "" {
		if c, err := strconv.Atoi(v); err == nil && c >= 0 {
			params.Count = c
		}
	}
	if params.Count > MaxCount {
		params.Count = MaxCount
	}

	if v := q.Get("sortBy"); v != "" {
		params.SortBy = v
	}
	if v := q.Get("sortOrder"); v != "" {
		params.SortOrder = strings.ToLower(v)
	}

	return params, nil
}

func splitTrim(s string) []string {
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// ResourceLocation builds the canonical Location URL for a resource,
// honoring tenant-scoped routing (/scim/endpoints/{endpointId}/...) when
// endpointID is non-empty, and the default-tenant routing otherwise.
func (h *Handler) ResourceLocation(endpointID, resourceType, id string) string {
	if endpointID == "" {
		return fmt.Sprintf("%s/scim/v2/%s/%s", h.baseURL, resourceType, id)
	}
	return fmt.Sprintf("%s/scim/endpoints/%s/%s/%s", h.baseURL, endpointID, resourceType, id)
}
