package scim

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// Validator validates SCIM resources. Resources are open JSON trees
// (map[string]any) rather than fixed structs, so validation walks the map
// directly instead of touching typed fields.
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateUser validates a User resource body. It mutates the map in place
// to default the schemas list when absent.
func (v *Validator) ValidateUser(user map[string]any) error {
	if user == nil {
		return ErrInvalidValue("user cannot be nil")
	}

	userName, _ := user["userName"].(string)
	if strings.TrimSpace(userName) == "" {
		return ErrInvalidValue("userName is required")
	}
	if !isValidUserName(userName) {
		return ErrInvalidValue("userName contains invalid characters")
	}

	if emails, ok := user["emails"].([]any); ok {
		for _, e := range emails {
			em, ok := e.(map[string]any)
			if !ok {
				continue
			}
			value, _ := em["value"].(string)
			if err := v.validateEmail(value); err != nil {
				return err
			}
		}
	}

	if _, ok := user["schemas"]; !ok {
		user["schemas"] = []string{SchemaUser}
	}

	return nil
}

// ValidateGroup validates a Group resource body.
func (v *Validator) ValidateGroup(group map[string]any) error {
	if group == nil {
		return ErrInvalidValue("group cannot be nil")
	}

	displayName, _ := group["displayName"].(string)
	if strings.TrimSpace(displayName) == "" {
		return ErrInvalidValue("displayName is required")
	}

	if _, ok := group["schemas"]; !ok {
		group["schemas"] = []string{SchemaGroup}
	}

	return nil
}

// ValidatePatchOp validates a PATCH operation
func (v *Validator) ValidatePatchOp(patch *PatchOp) error {
	if patch == nil {
		return ErrInvalidSyntax("patch operation cannot be nil")
	}

	if !slices.Contains(patch.Schemas, SchemaPatchOp) {
		return ErrInvalidValue(fmt.Sprintf("invalid schema, expected %s", SchemaPatchOp))
	}

	if len(patch.Operations) == 0 {
		return ErrInvalidValue("at least one operation is required")
	}

	for i, op := range patch.Operations {
		if err := v.validatePatchOperation(op); err != nil {
			return fmt.Errorf("operation %d: %w", i, err)
		}
	}

	return nil
}

// validatePatchOperation validates a single patch operation
func (v *Validator) validatePatchOperation(op PatchOperation) error {
	opLower := strings.ToLower(op.Op)
	if opLower != "add" && opLower != "remove" && opLower != "replace" {
		return ErrInvalidValue(fmt.Sprintf("invalid op: %s", op.Op))
	}

	if opLower == "remove" && op.Path == "" {
		return ErrNoTarget("path is required for remove operation")
	}

	if (opLower == "add" || opLower == "replace") && op.Value == nil && op.Path == "" {
		return ErrInvalidValue(fmt.Sprintf("value is required for %s operation", op.Op))
	}

	return nil
}

// validateEmail validates an email address
func (v *Validator) validateEmail(email string) error {
	if email == "" {
		return nil
	}

	emailRegex := regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	if !emailRegex.MatchString(email) {
		return ErrInvalidValue(fmt.Sprintf("invalid email format: %s", email))
	}

	return nil
}

// isValidUserName checks if a userName is valid
func isValidUserName(userName string) bool {
	validUserNameRegex := regexp.MustCompile(`^[a-zA-Z0-9._@\-]+$`)
	return validUserNameRegex.MatchString(userName)
}

// SanitizeInput sanitizes user input to prevent injection attacks
func SanitizeInput(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")
	input = strings.TrimSpace(input)
	return input
}

// ValidateQueryParams validates and clamps list-query parameters, mirroring
// the bounds Handler.ParseQueryParams applies: default page 100, hard cap
// 200.
func ValidateQueryParams(params *QueryParams) error {
	if params.StartIndex < 1 {
		params.StartIndex = 1
	}

	if params.Count < 0 {
		params.Count = DefaultCount
	}
	if params.Count > MaxCount {
		params.Count = MaxCount
	}

	if params.SortOrder != "" {
		sortOrder := strings.ToLower(params.SortOrder)
		if sortOrder != "ascending" && sortOrder != "descending" {
			return ErrInvalidValue(fmt.Sprintf("invalid sortOrder: %s", params.SortOrder))
		}
		params.SortOrder = sortOrder
	}

	return nil
}
