package server

import "encoding/json"

// identifierHint best-effort extracts a human identifier from a SCIM
// request/response body for request-log correlation: userName, then
// primary/first email, then externalId, then displayName.
func identifierHint(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return ""
	}

	if v, ok := m["userName"].(string); ok && v != "" {
		return v
	}

	if emails, ok := m["emails"].([]any); ok {
		first := ""
		for _, e := range emails {
			if em, ok := e.(map[string]any); ok {
				if v, ok := em["value"].(string); ok && v != "" {
					if primary, _ := em["primary"].(bool); primary {
						return v
					}
					if first == "" {
						first = v
					}
				}
			}
		}
		if first != "" {
			return first
		}
	}

	if v, ok := m["externalId"].(string); ok && v != "" {
		return v
	}

	if v, ok := m["displayName"].(string); ok && v != "" {
		return v
	}

	return ""
}
