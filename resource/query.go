// Package resource implements the SCIM User and Group state machines:
// create/get/list/replace/patch/delete, uniqueness enforcement, schema
// validation, attribute projection, and ETag assignment. Resources are
// carried as map[string]any end to end, the union of a handful of
// first-class, storage-backed columns and an open rawPayload tree.
package resource

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/pranems/scimserver/internal/filter"
	"github.com/pranems/scimserver/scim"
)

// AttributeSelector applies RFC 7644 §3.9 attribute projection
// (`attributes`/`excludedAttributes`) to a resource map.
type AttributeSelector struct {
	attributes            map[string]bool
	excluded              map[string]bool
	subAttributes         map[string][]string
	excludedSubAttributes map[string][]string
	includeAll            bool
	excludeAny            bool
}

func NewAttributeSelector(attributes, excluded []string) *AttributeSelector {
	as := &AttributeSelector{
		attributes:            make(map[string]bool),
		excluded:              make(map[string]bool),
		subAttributes:         make(map[string][]string),
		excludedSubAttributes: make(map[string][]string),
		includeAll:            len(attributes) == 0,
		excludeAny:            len(excluded) > 0,
	}

	for _, attr := range attributes {
		lowerAttr := strings.ToLower(attr)
		as.attributes[lowerAttr] = true
		if strings.Contains(lowerAttr, ".") {
			parts := strings.SplitN(lowerAttr, ".", 2)
			as.subAttributes[parts[0]] = append(as.subAttributes[parts[0]], parts[1])
		}
	}

	for _, attr := range excluded {
		lowerAttr := strings.ToLower(attr)
		as.excluded[lowerAttr] = true
		if strings.Contains(lowerAttr, ".") {
			parts := strings.SplitN(lowerAttr, ".", 2)
			as.excludedSubAttributes[parts[0]] = append(as.excludedSubAttributes[parts[0]], parts[1])
		}
	}

	return as
}

// coreAttributes are always returned regardless of projection, per RFC 7643
// §3.1 (id, schemas, meta are mandatory in every representation).
var coreAttributes = map[string]bool{"id": true, "schemas": true, "meta": true}

// Project filters a resource map down to the requested/excluded attributes.
func (as *AttributeSelector) Project(res map[string]any) map[string]any {
	if as.includeAll && !as.excludeAny {
		return res
	}

	filtered := make(map[string]any)
	for key, value := range res {
		lowerKey := strings.ToLower(key)

		if coreAttributes[lowerKey] {
			filtered[key] = value
			continue
		}
		if as.excluded[lowerKey] {
			continue
		}

		if !as.includeAll {
			if as.attributes[lowerKey] {
				filtered[key] = value
			} else if subs, ok := as.subAttributes[lowerKey]; ok {
				if v := as.filterSubAttributes(value, subs); v != nil {
					filtered[key] = v
				}
			}
			continue
		}

		if excludedSubs, ok := as.excludedSubAttributes[lowerKey]; ok {
			if v := as.excludeSubAttributes(value, excludedSubs); v != nil {
				filtered[key] = v
			}
		} else {
			filtered[key] = value
		}
	}

	return filtered
}

// ProjectAll applies Project across a slice of resources.
func (as *AttributeSelector) ProjectAll(resources []map[string]any) []map[string]any {
	if as.includeAll && !as.excludeAny {
		return resources
	}
	out := make([]map[string]any, len(resources))
	for i, res := range resources {
		out[i] = as.Project(res)
	}
	return out
}

func (as *AttributeSelector) filterSubAttributes(value any, requestedSubs []string) any {
	children := groupByImmediateChild(requestedSubs)

	if arr, ok := value.([]any); ok {
		filtered := make([]any, 0, len(arr))
		for _, item := range arr {
			if itemMap, ok := item.(map[string]any); ok {
				if f := as.filterMapBySubAttributes(itemMap, children); len(f) > 0 {
					filtered = append(filtered, f)
				}
			}
		}
		if len(filtered) == 0 {
			return nil
		}
		return filtered
	}

	if objMap, ok := value.(map[string]any); ok {
		if f := as.filterMapBySubAttributes(objMap, children); len(f) > 0 {
			return f
		}
		return nil
	}

	return value
}

func (as *AttributeSelector) filterMapBySubAttributes(objMap map[string]any, children map[string][]string) map[string]any {
	out := make(map[string]any)
	for k, v := range objMap {
		lowerK := strings.ToLower(k)
		if sub, ok := children[lowerK]; ok {
			if len(sub) == 0 {
				out[k] = v
			} else if f := as.filterSubAttributes(v, sub); f != nil {
				out[k] = f
			}
		}
	}
	return out
}

func (as *AttributeSelector) excludeSubAttributes(value any, excludedSubs []string) any {
	exclusions := groupByImmediateChild(excludedSubs)

	if arr, ok := value.([]any); ok {
		filtered := make([]any, 0, len(arr))
		for _, item := range arr {
			if itemMap, ok := item.(map[string]any); ok {
				if f := as.excludeFromMap(itemMap, exclusions); len(f) > 0 {
					filtered = append(filtered, f)
				}
			} else {
				filtered = append(filtered, item)
			}
		}
		return filtered
	}

	if objMap, ok := value.(map[string]any); ok {
		return as.excludeFromMap(objMap, exclusions)
	}

	return value
}

func (as *AttributeSelector) excludeFromMap(objMap map[string]any, exclusions map[string][]string) map[string]any {
	out := make(map[string]any)
	for k, v := range objMap {
		lowerK := strings.ToLower(k)
		if children, exists := exclusions[lowerK]; exists {
			if len(children) == 0 {
				continue
			}
			if f := as.excludeSubAttributes(v, children); f != nil {
				out[k] = f
			}
		} else {
			out[k] = v
		}
	}
	return out
}

func groupByImmediateChild(subs []string) map[string][]string {
	children := make(map[string][]string)
	for _, sub := range subs {
		if strings.Contains(sub, ".") {
			parts := strings.SplitN(sub, ".", 2)
			parent := strings.ToLower(parts[0])
			children[parent] = append(children[parent], parts[1])
		} else {
			children[strings.ToLower(sub)] = []string{}
		}
	}
	return children
}

// SortResources orders a slice of resource maps by a dotted attribute path.
func SortResources(resources []map[string]any, sortBy, sortOrder string) []map[string]any {
	if sortBy == "" || len(resources) == 0 {
		return resources
	}

	sorted := make([]map[string]any, len(resources))
	copy(sorted, resources)
	ascending := strings.ToLower(sortOrder) != "descending"

	sort.SliceStable(sorted, func(i, j int) bool {
		cmp := compareForSort(attrValue(sorted[i], sortBy), attrValue(sorted[j], sortBy))
		if ascending {
			return cmp < 0
		}
		return cmp > 0
	})

	return sorted
}

func attrValue(res map[string]any, path string) any {
	parts := strings.Split(path, ".")
	var current any = res
	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		found := false
		for k, v := range m {
			if strings.EqualFold(k, part) {
				current = v
				found = true
				break
			}
		}
		if !found {
			return nil
		}
	}
	return current
}

func compareForSort(a, b any) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}

	if aStr, ok := a.(string); ok {
		if bStr, ok := b.(string); ok {
			if t1, err1 := time.Parse(time.RFC3339, aStr); err1 == nil {
				if t2, err2 := time.Parse(time.RFC3339, bStr); err2 == nil {
					switch {
					case t1.Before(t2):
						return -1
					case t1.After(t2):
						return 1
					default:
						return 0
					}
				}
			}
			switch {
			case aStr < bStr:
				return -1
			case aStr > bStr:
				return 1
			default:
				return 0
			}
		}
	}

	if aNum, ok := toFloat64(a); ok {
		if bNum, ok := toFloat64(b); ok {
			switch {
			case aNum < bNum:
				return -1
			case aNum > bNum:
				return 1
			default:
				return 0
			}
		}
	}

	if aBool, ok := a.(bool); ok {
		if bBool, ok := b.(bool); ok {
			switch {
			case !aBool && bBool:
				return -1
			case aBool && !bBool:
				return 1
			default:
				return 0
			}
		}
	}

	return 0
}

func toFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	default:
		return 0, false
	}
}

// ApplyPagination slices resources per RFC 7644 §3.4.2 (1-based startIndex).
func ApplyPagination(resources []map[string]any, startIndex, count int) ([]map[string]any, int, int) {
	total := len(resources)
	if startIndex < 1 {
		startIndex = 1
	}

	start := startIndex - 1
	if start >= total {
		return []map[string]any{}, startIndex, 0
	}

	end := min(start+count, total)
	paged := resources[start:end]
	return paged, startIndex, len(paged)
}

// FilterResources applies a SCIM filter string to a slice of resource maps.
func FilterResources(resources []map[string]any, filterStr string) ([]map[string]any, error) {
	if filterStr == "" {
		return resources, nil
	}

	expr, err := filter.NewParser(filterStr).Parse()
	if err != nil {
		return nil, scim.ErrInvalidFilter(err.Error())
	}
	if expr == nil {
		return resources, nil
	}

	out := make([]map[string]any, 0, len(resources))
	for _, res := range resources {
		if expr.Matches(res) {
			out = append(out, res)
		}
	}
	return out, nil
}

// ProcessListQuery runs filter -> sort -> paginate -> project and wraps the
// result in a SCIM ListResponse envelope.
func ProcessListQuery(all []map[string]any, params scim.QueryParams) (*scim.ListResponse[map[string]any], error) {
	filtered, err := FilterResources(all, params.Filter)
	if err != nil {
		return nil, err
	}

	totalResults := len(filtered)
	sorted := SortResources(filtered, params.SortBy, params.SortOrder)
	paged, startIndex, itemsPerPage := ApplyPagination(sorted, params.StartIndex, params.Count)

	selector := NewAttributeSelector(params.Attributes, params.ExcludedAttr)
	projected := selector.ProjectAll(paged)

	return &scim.ListResponse[map[string]any]{
		Schemas:      []string{scim.SchemaListResponse},
		TotalResults: totalResults,
		StartIndex:   startIndex,
		ItemsPerPage: itemsPerPage,
		Resources:    projected,
	}, nil
}

// cloneJSON deep-copies a resource map via a JSON round trip.
func cloneJSON(res map[string]any) (map[string]any, error) {
	data, err := json.Marshal(res)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
