// Package patch implements the SCIM PATCH path resolver: it applies
// add/replace/remove operations to a resource's open JSON tree, honoring
// Entra's dot-notation and multi-member-op compatibility quirks.
package patch

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pranems/scimserver/internal/filter"
	"github.com/pranems/scimserver/scim"
)

// Options gates the Entra-compatibility behaviors that vary per endpoint.
type Options struct {
	// VerbosePatchSupported enables dot-notation path segments
	// (name.givenName) to be routed into nested objects. When false,
	// dot-notated keys are stored verbatim as flat keys.
	VerbosePatchSupported bool
	// AllowRemoveAllMembers permits `remove path=members` with no filter
	// to clear every membership in one operation.
	AllowRemoveAllMembers bool
	// AllowAddMultipleMembers permits `add members` with more than one
	// value in a single operation.
	AllowAddMultipleMembers bool
	// AllowRemoveMultipleMembers permits `remove members` matching more
	// than one value in a single operation.
	AllowRemoveMultipleMembers bool
}

// Processor applies SCIM PATCH operations to a map[string]any resource.
type Processor struct {
	opts Options
}

func NewProcessor(opts Options) *Processor {
	return &Processor{opts: opts}
}

// Apply runs every operation in order against resource, mutating it in
// place. Operations are applied in array order; later operations observe
// earlier effects, per spec.
func (p *Processor) Apply(resource map[string]any, ops []scim.PatchOperation) error {
	for _, op := range ops {
		if err := p.applyOperation(resource, op); err != nil {
			return err
		}
	}
	return nil
}

func (p *Processor) applyOperation(resource map[string]any, op scim.PatchOperation) error {
	switch strings.ToLower(op.Op) {
	case "add":
		return p.applyAdd(resource, op)
	case "remove":
		return p.applyRemove(resource, op)
	case "replace":
		return p.applyReplace(resource, op)
	default:
		return scim.ErrInvalidValue(fmt.Sprintf("invalid op: %s", op.Op))
	}
}

func (p *Processor) applyAdd(resource map[string]any, op scim.PatchOperation) error {
	if op.Path == "" {
		return p.mergeRoot(resource, op.Value)
	}
	return p.applyAtPath(resource, op.Path, "add", op.Value)
}

func (p *Processor) applyReplace(resource map[string]any, op scim.PatchOperation) error {
	if op.Path == "" {
		return p.mergeRoot(resource, op.Value)
	}
	return p.applyAtPath(resource, op.Path, "replace", op.Value)
}

func (p *Processor) applyRemove(resource map[string]any, op scim.PatchOperation) error {
	if op.Path == "" {
		return scim.ErrNoTarget("path is required for remove operation")
	}
	return p.applyAtPath(resource, op.Path, "remove", nil)
}

// mergeRoot merges a no-path add/replace operand's keys into the resource,
// normalizing keys case-insensitively and recognizing dot-notated and
// extension-URN keys.
func (p *Processor) mergeRoot(resource map[string]any, value any) error {
	valueMap, ok := value.(map[string]any)
	if !ok {
		return scim.ErrInvalidValue("value must be a complex object for a no-path operation")
	}

	for key, val := range valueMap {
		if err := p.setByKey(resource, key, val); err != nil {
			return err
		}
	}
	return nil
}

// setByKey routes a single root-level key from a no-path merge: extension
// URN keys (`urn:...:User:manager`) land in the extension sub-object;
// dot-notated keys route to a nested object only when VerbosePatchSupported
// is set; everything else is a direct key set, with the server-managed
// `id` field always stripped.
func (p *Processor) setByKey(resource map[string]any, key string, val any) error {
	if strings.EqualFold(key, "id") || strings.EqualFold(key, "meta") {
		return nil
	}

	if urn, attr, ok := splitExtensionKey(key); ok {
		ext, _ := resource[urn].(map[string]any)
		if ext == nil {
			ext = map[string]any{}
		}
		ext[attr] = scim.CoerceBool(val)
		resource[urn] = ext
		return nil
	}

	if p.opts.VerbosePatchSupported && strings.Contains(key, ".") {
		return setNested(resource, strings.Split(key, "."), scim.CoerceBool(val))
	}

	resource[canonicalKey(key)] = scim.CoerceBool(val)
	return nil
}

var extensionKeyRe = regexp.MustCompile(`^(urn:[\w:.\-]+):([\w.]+)$`)

func splitExtensionKey(key string) (urn, attr string, ok bool) {
	m := extensionKeyRe.FindStringSubmatch(key)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// canonicalKey normalizes first-class attribute names to their canonical
// SCIM casing; anything unrecognized passes through as given.
func canonicalKey(key string) string {
	switch strings.ToLower(key) {
	case "username":
		return "userName"
	case "externalid":
		return "externalId"
	case "active":
		return "active"
	case "displayname":
		return "displayName"
	case "nickname":
		return "nickName"
	default:
		return key
	}
}

func setNested(resource map[string]any, segments []string, value any) error {
	current := resource
	for i, seg := range segments {
		if i == len(segments)-1 {
			current[seg] = value
			return nil
		}
		next, ok := current[seg].(map[string]any)
		if !ok {
			next = map[string]any{}
			current[seg] = next
		}
		current = next
	}
	return nil
}

// applyAtPath dispatches a pathed operation: valuePath (array filter),
// extension URN, dot-notation, or a simple scalar path.
func (p *Processor) applyAtPath(resource map[string]any, pathStr, verb string, value any) error {
	if strings.Contains(pathStr, "[") {
		return p.applyValuePath(resource, pathStr, verb, value)
	}

	if urn, attr, ok := splitExtensionKey(pathStr); ok {
		ext, _ := resource[urn].(map[string]any)
		if ext == nil {
			if verb == "remove" {
				return nil
			}
			ext = map[string]any{}
		}
		if err := p.applyScalar(ext, attr, verb, value); err != nil {
			return err
		}
		resource[urn] = ext
		return nil
	}

	if strings.Contains(pathStr, ".") {
		if !p.opts.VerbosePatchSupported {
			return p.applyScalar(resource, pathStr, verb, value)
		}
		return p.applyNestedScalar(resource, strings.Split(pathStr, "."), verb, value)
	}

	if strings.EqualFold(pathStr, "members") {
		return p.applyMembersPath(resource, verb, value, nil)
	}

	return p.applyScalar(resource, pathStr, verb, value)
}

func (p *Processor) applyScalar(resource map[string]any, key, verb string, value any) error {
	switch verb {
	case "remove":
		delete(resource, canonicalKey(key))
		return nil
	default:
		if isEmptyStringRemoval(value) {
			delete(resource, canonicalKey(key))
			return nil
		}
		resource[canonicalKey(key)] = scim.CoerceBool(value)
		return nil
	}
}

func (p *Processor) applyNestedScalar(resource map[string]any, segments []string, verb string, value any) error {
	if verb == "remove" {
		current := resource
		for i, seg := range segments {
			if i == len(segments)-1 {
				delete(current, seg)
				return nil
			}
			next, ok := current[seg].(map[string]any)
			if !ok {
				return nil
			}
			current = next
		}
		return nil
	}
	return setNested(resource, segments, scim.CoerceBool(value))
}

// isEmptyStringRemoval implements RFC 7644 §3.5.2.3: replacing a value with
// an empty string is treated as removing that attribute.
func isEmptyStringRemoval(value any) bool {
	s, ok := value.(string)
	return ok && s == ""
}

var valuePathRe = regexp.MustCompile(`^([\w.:]+)\[(.+?)\]\.?(.*)$`)

// applyValuePath handles emails[type eq "work"].value / members[value eq "X"]
// style paths: find the matching array element(s), then update/add/remove.
func (p *Processor) applyValuePath(resource map[string]any, pathStr, verb string, value any) error {
	m := valuePathRe.FindStringSubmatch(pathStr)
	if m == nil {
		return scim.ErrInvalidPath(fmt.Sprintf("unparseable path: %s", pathStr))
	}

	arrayAttr, filterExpr, subAttr := m[1], m[2], m[3]

	expr, err := filter.NewParser(filterExpr).Parse()
	if err != nil || expr == nil {
		return scim.ErrInvalidFilter(fmt.Sprintf("invalid valuePath filter: %s", filterExpr))
	}

	if strings.EqualFold(arrayAttr, "members") {
		return p.applyMembersPath(resource, verb, value, expr)
	}

	arr, _ := resource[arrayAttr].([]any)

	switch verb {
	case "remove":
		out := make([]any, 0, len(arr))
		for _, item := range arr {
			if !expr.Matches(item) {
				out = append(out, item)
			}
		}
		resource[arrayAttr] = out
		return nil

	case "replace", "add":
		found := false
		for i, item := range arr {
			itemMap, ok := item.(map[string]any)
			if !ok || !expr.Matches(item) {
				continue
			}
			found = true
			if subAttr != "" {
				itemMap[subAttr] = scim.CoerceBool(value)
			} else if vm, ok := value.(map[string]any); ok {
				for k, v := range vm {
					itemMap[k] = scim.CoerceBool(v)
				}
			}
			arr[i] = itemMap
		}
		if !found && verb == "add" {
			item := map[string]any{}
			if subAttr != "" {
				item[subAttr] = scim.CoerceBool(value)
			} else if vm, ok := value.(map[string]any); ok {
				for k, v := range vm {
					item[k] = scim.CoerceBool(v)
				}
			}
			arr = append(arr, item)
		}
		resource[arrayAttr] = arr
		return nil
	}

	return nil
}

// applyMembersPath implements the group-membership gating rules: removing
// every member requires AllowRemoveAllMembers; adding or removing more
// than one member in a single op requires the matching multi-op flag.
func (p *Processor) applyMembersPath(resource map[string]any, verb string, value any, matchExpr filter.Expr) error {
	members, _ := resource["members"].([]any)

	switch verb {
	case "remove":
		if matchExpr == nil {
			if !p.opts.AllowRemoveAllMembers {
				return scim.ErrInvalidValue("removing all members is not permitted for this endpoint")
			}
			resource["members"] = []any{}
			return nil
		}
		matched := 0
		out := make([]any, 0, len(members))
		for _, m := range members {
			if matchExpr.Matches(m) {
				matched++
				continue
			}
			out = append(out, m)
		}
		if matched > 1 && !p.opts.AllowRemoveMultipleMembers {
			return scim.ErrInvalidValue("removing multiple members in one operation is not permitted for this endpoint")
		}
		resource["members"] = out
		return nil

	case "add":
		additions := valueAsSlice(value)
		if len(additions) > 1 && !p.opts.AllowAddMultipleMembers {
			return scim.ErrInvalidValue("adding multiple members in one operation is not permitted for this endpoint")
		}
		members = append(members, additions...)
		resource["members"] = members
		return nil

	case "replace":
		resource["members"] = valueAsSlice(value)
		return nil
	}

	return nil
}

func valueAsSlice(value any) []any {
	switch v := value.(type) {
	case []any:
		return v
	case nil:
		return nil
	default:
		return []any{v}
	}
}
