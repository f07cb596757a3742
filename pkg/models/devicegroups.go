package models

// GroupDefinitionSpec pairs a device selector expression with the policy the
// matching devices are granted. Selector grammar: "attributeName: pattern",
// where a trailing '*' makes the pattern a case-sensitive prefix match.
type GroupDefinitionSpec struct {
	SelectionRule string `json:"selectionRule" mapstructure:"selectionRule"`
	PolicyName    string `json:"policyName" mapstructure:"policyName"`
}

// GroupPolicy is a named set of statements; each statement grants a set of
// operations over a set of resources.
type GroupPolicy map[string]PolicyStatement

type PolicyStatement struct {
	Operations []string `json:"operations" mapstructure:"operations"`
	Resources  []string `json:"resources" mapstructure:"resources"`
}

// Permission is a flattened (group, operation, resource) grant.
type Permission struct {
	Principal string `json:"principal"`
	Operation string `json:"operation"`
	Resource  string `json:"resource"`
}

// DeviceGroupsSettings is the deviceGroups slice of the configuration
// snapshot, exactly as delivered by the host runtime.
type DeviceGroupsSettings struct {
	FormatVersion string                         `json:"formatVersion" mapstructure:"formatVersion"`
	Definitions   map[string]GroupDefinitionSpec `json:"definitions" mapstructure:"definitions"`
	Policies      map[string]GroupPolicy         `json:"policies" mapstructure:"policies"`
}
