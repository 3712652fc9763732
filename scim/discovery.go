package scim

// ServiceProviderConfig represents the SCIM service provider configuration
type ServiceProviderConfig struct {
	Schemas               []string               `json:"schemas"`
	DocumentationURI      string                 `json:"documentationUri,omitempty"`
	Patch                 SupportedFeature       `json:"patch"`
	Bulk                  BulkFeature            `json:"bulk"`
	Filter                FilterFeature          `json:"filter"`
	ChangePassword        SupportedFeature       `json:"changePassword"`
	Sort                  SupportedFeature       `json:"sort"`
	Etag                  SupportedFeature       `json:"etag"`
	AuthenticationSchemes []AuthenticationScheme `json:"authenticationSchemes"`
}

// SupportedFeature indicates if a feature is supported
type SupportedFeature struct {
	Supported bool `json:"supported"`
}

// BulkFeature describes bulk operation capabilities
type BulkFeature struct {
	Supported      bool `json:"supported"`
	MaxOperations  int  `json:"maxOperations"`
	MaxPayloadSize int  `json:"maxPayloadSize"`
}

// FilterFeature describes filter capabilities
type FilterFeature struct {
	Supported  bool `json:"supported"`
	MaxResults int  `json:"maxResults"`
}

// AuthenticationScheme describes an authentication scheme
type AuthenticationScheme struct {
	Type             string `json:"type"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	SpecURI          string `json:"specUri,omitempty"`
	DocumentationURI string `json:"documentationUri,omitempty"`
	Primary          bool   `json:"primary,omitempty"`
}

// SchemaDefinition represents a SCIM schema definition
type SchemaDefinition struct {
	ID          string                `json:"id"`
	Name        string                `json:"name,omitempty"`
	Description string                `json:"description,omitempty"`
	Attributes  []AttributeDefinition `json:"attributes,omitempty"`
}

// AttributeDefinition describes a SCIM attribute
type AttributeDefinition struct {
	Name            string                `json:"name"`
	Type            string                `json:"type"`
	SubAttributes   []AttributeDefinition `json:"subAttributes,omitempty"`
	MultiValued     bool                  `json:"multiValued"`
	Description     string                `json:"description,omitempty"`
	Required        bool                  `json:"required"`
	CaseExact       bool                  `json:"caseExact"`
	Mutability      string                `json:"mutability"`
	Returned        string                `json:"returned"`
	Uniqueness      string                `json:"uniqueness"`
	ReferenceTypes  []string              `json:"referenceTypes,omitempty"`
	CanonicalValues []string              `json:"canonicalValues,omitempty"`
}

// ResourceTypeDefinition represents a resource type
type ResourceTypeDefinition struct {
	Schemas          []string             `json:"schemas"`
	ID               string               `json:"id"`
	Name             string               `json:"name,omitempty"`
	Endpoint         string               `json:"endpoint"`
	Description      string               `json:"description,omitempty"`
	Schema           string               `json:"schema"`
	SchemaExtensions []SchemaExtensionRef `json:"schemaExtensions,omitempty"`
}

// SchemaExtensionRef references a schema extension
type SchemaExtensionRef struct {
	Schema   string `json:"schema"`
	Required bool   `json:"required"`
}

// GetServiceProviderConfig returns the service provider configuration.
// Bulk and changePassword are not implemented and are declared
// unsupported. Sort is also declared unsupported, although list queries
// do apply sortBy/sortOrder.
func GetServiceProviderConfig(authSchemes []AuthenticationScheme) *ServiceProviderConfig {
	if len(authSchemes) == 0 {
		authSchemes = []AuthenticationScheme{
			{
				Type:        "oauthbearertoken",
				Name:        "OAuth Bearer Token",
				Description: "Authentication scheme using the OAuth Bearer Token Standard",
				SpecURI:     "http://www.rfc-editor.org/info/rfc6750",
				Primary:     true,
			},
		}
	}

	return &ServiceProviderConfig{
		Schemas:          []string{"urn:ietf:params:scim:schemas:core:2.0:ServiceProviderConfig"},
		DocumentationURI: "https://github.com/pranems/scimserver",
		Patch: SupportedFeature{
			Supported: true,
		},
		Bulk: BulkFeature{
			Supported: false,
		},
		Filter: FilterFeature{
			Supported:  true,
			MaxResults: 1000,
		},
		ChangePassword: SupportedFeature{
			Supported: false,
		},
		Sort: SupportedFeature{
			Supported: false,
		},
		Etag: SupportedFeature{
			Supported: true,
		},
		AuthenticationSchemes: authSchemes,
	}
}

// GetUserSchema returns the User schema definition
func GetUserSchema() *SchemaDefinition {
	return &SchemaDefinition{
		ID:          SchemaUser,
		Name:        "User",
		Description: "User Account",
		Attributes: []AttributeDefinition{
			{
				Name:        "userName",
				Type:        "string",
				MultiValued: false,
				Required:    true,
				CaseExact:   false,
				Mutability:  "readWrite",
				Returned:    "default",
				Uniqueness:  "server",
			},
			{
				Name:        "name",
				Type:        "complex",
				MultiValued: false,
				Required:    false,
				Mutability:  "readWrite",
				Returned:    "default",
				SubAttributes: []AttributeDefinition{
					{Name: "formatted", Type: "string", MultiValued: false, Mutability: "readWrite", Returned: "default"},
					{Name: "familyName", Type: "string", MultiValued: false, Mutability: "readWrite", Returned: "default"},
					{Name: "givenName", Type: "string", MultiValued: false, Mutability: "readWrite", Returned: "default"},
					{Name: "middleName", Type: "string", MultiValued: false, Mutability: "readWrite", Returned: "default"},
					{Name: "honorificPrefix", Type: "string", MultiValued: false, Mutability: "readWrite", Returned: "default"},
					{Name: "honorificSuffix", Type: "string", MultiValued: false, Mutability: "readWrite", Returned: "default"},
				},
			},
			{
				Name:        "displayName",
				Type:        "string",
				MultiValued: false,
				Required:    false,
				Mutability:  "readWrite",
				Returned:    "default",
			},
			{
				Name:        "nickName",
				Type:        "string",
				MultiValued: false,
				Required:    false,
				Mutability:  "readWrite",
				Returned:    "default",
			},
			{
				Name:        "externalId",
				Type:        "string",
				MultiValued: false,
				Required:    false,
				Mutability:  "readWrite",
				Returned:    "default",
				Uniqueness:  "global",
			},
			{
				Name:        "emails",
				Type:        "complex",
				MultiValued: true,
				Required:    false,
				Mutability:  "readWrite",
				Returned:    "default",
				SubAttributes: []AttributeDefinition{
					{Name: "value", Type: "string", MultiValued: false, Mutability: "readWrite", Returned: "default"},
					{Name: "display", Type: "string", MultiValued: false, Mutability: "readWrite", Returned: "default"},
					{Name: "type", Type: "string", MultiValued: false, Mutability: "readWrite", Returned: "default", CanonicalValues: []string{"work", "home", "other"}},
					{Name: "primary", Type: "boolean", MultiValued: false, Mutability: "readWrite", Returned: "default"},
				},
			},
			{
				Name:        "groups",
				Type:        "complex",
				MultiValued: true,
				Required:    false,
				Mutability:  "readOnly",
				Returned:    "default",
				SubAttributes: []AttributeDefinition{
					{Name: "value", Type: "string", MultiValued: false, Mutability: "readOnly", Returned: "default"},
					{Name: "display", Type: "string", MultiValued: false, Mutability: "readOnly", Returned: "default"},
				},
			},
			{
				Name:        "active",
				Type:        "boolean",
				MultiValued: false,
				Required:    false,
				Mutability:  "readWrite",
				Returned:    "default",
			},
		},
	}
}

// GetGroupSchema returns the Group schema definition
func GetGroupSchema() *SchemaDefinition {
	return &SchemaDefinition{
		ID:          SchemaGroup,
		Name:        "Group",
		Description: "Group",
		Attributes: []AttributeDefinition{
			{
				Name:        "displayName",
				Type:        "string",
				MultiValued: false,
				Required:    true,
				CaseExact:   false,
				Mutability:  "readWrite",
				Returned:    "default",
				Uniqueness:  "server",
			},
			{
				Name:        "externalId",
				Type:        "string",
				MultiValued: false,
				Required:    false,
				Mutability:  "readWrite",
				Returned:    "default",
				Uniqueness:  "global",
			},
			{
				Name:        "members",
				Type:        "complex",
				MultiValued: true,
				Required:    false,
				Mutability:  "readWrite",
				Returned:    "default",
				SubAttributes: []AttributeDefinition{
					{Name: "value", Type: "string", MultiValued: false, Mutability: "immutable", Returned: "default"},
					{Name: "$ref", Type: "reference", MultiValued: false, Mutability: "immutable", Returned: "default", ReferenceTypes: []string{"User", "Group"}},
					{Name: "type", Type: "string", MultiValued: false, Mutability: "immutable", Returned: "default", CanonicalValues: []string{"User", "Group"}},
					{Name: "display", Type: "string", MultiValued: false, Mutability: "immutable", Returned: "default"},
				},
			},
		},
	}
}

// GetEnterpriseExtensionSchema returns the enterprise User extension schema.
func GetEnterpriseExtensionSchema() *SchemaDefinition {
	return &SchemaDefinition{
		ID:          SchemaEnterprise,
		Name:        "EnterpriseUser",
		Description: "Enterprise User extension",
		Attributes: []AttributeDefinition{
			{Name: "employeeNumber", Type: "string", Mutability: "readWrite", Returned: "default"},
			{Name: "department", Type: "string", Mutability: "readWrite", Returned: "default"},
			{Name: "organization", Type: "string", Mutability: "readWrite", Returned: "default"},
			{
				Name:       "manager",
				Type:       "complex",
				Mutability: "readWrite",
				Returned:   "default",
				SubAttributes: []AttributeDefinition{
					{Name: "value", Type: "string", Mutability: "readWrite", Returned: "default"},
					{Name: "$ref", Type: "reference", Mutability: "readWrite", Returned: "default"},
					{Name: "displayName", Type: "string", Mutability: "readOnly", Returned: "default"},
				},
			},
		},
	}
}

// GetResourceTypes returns all resource type definitions
func GetResourceTypes() []ResourceTypeDefinition {
	return []ResourceTypeDefinition{
		{
			Schemas:     []string{"urn:ietf:params:scim:schemas:core:2.0:ResourceType"},
			ID:          "User",
			Name:        "User",
			Endpoint:    "/Users",
			Description: "User Account",
			Schema:      SchemaUser,
			SchemaExtensions: []SchemaExtensionRef{
				{
					Schema:   SchemaEnterprise,
					Required: false,
				},
			},
		},
		{
			Schemas:     []string{"urn:ietf:params:scim:schemas:core:2.0:ResourceType"},
			ID:          "Group",
			Name:        "Group",
			Endpoint:    "/Groups",
			Description: "Group",
			Schema:      SchemaGroup,
		},
	}
}
