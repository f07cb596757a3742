package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/trustedge/trustedge/pkg/errs"
	"github.com/trustedge/trustedge/pkg/helpers"
	"github.com/trustedge/trustedge/pkg/models"
)

// GroupDefinition is a parsed device selector bound to a policy name. The
// selector is parsed once at configuration load; evaluation never fails.
type GroupDefinition struct {
	GroupName     string
	AttributeName string
	Pattern       string
	PrefixMatch   bool
	PolicyName    string
}

// NewGroupDefinition parses a "attributeName: pattern" selector. A trailing
// '*' in the pattern selects case-sensitive prefix matching.
func NewGroupDefinition(groupName string, spec models.GroupDefinitionSpec) (*GroupDefinition, error) {
	attribute, pattern, found := strings.Cut(spec.SelectionRule, ":")
	if !found {
		return nil, fmt.Errorf("%w: %q", errs.ErrGroupSelectorSyntax, spec.SelectionRule)
	}

	attribute = strings.TrimSpace(attribute)
	pattern = strings.TrimSpace(pattern)
	if attribute == "" || pattern == "" {
		return nil, fmt.Errorf("%w: %q", errs.ErrGroupSelectorSyntax, spec.SelectionRule)
	}

	definition := &GroupDefinition{
		GroupName:     groupName,
		AttributeName: attribute,
		Pattern:       pattern,
		PolicyName:    spec.PolicyName,
	}

	if strings.HasSuffix(pattern, "*") {
		definition.Pattern = strings.TrimSuffix(pattern, "*")
		definition.PrefixMatch = true
	}

	return definition, nil
}

// ContainsClientDevice reports whether the session's resolved attributes
// match this group's selector. A session lacking the attribute never matches.
func (def *GroupDefinition) ContainsClientDevice(session *models.Session) bool {
	attribute := session.Attribute(def.AttributeName)
	if attribute == nil {
		return false
	}

	if def.PrefixMatch {
		return strings.HasPrefix(attribute.Value, def.Pattern)
	}

	return attribute.Value == def.Pattern
}

// GroupConfiguration is the immutable result of a device-group configuration
// load: parsed definitions, policies, and the principal permission index
// computed once per load.
type GroupConfiguration struct {
	Definitions map[string]*GroupDefinition
	Policies    map[string]models.GroupPolicy
	permissions map[string][]models.Permission
}

// NewGroupConfiguration parses and cross-checks a deviceGroups snapshot.
// Malformed selectors and unknown policy references are rejected here, before
// any device is served.
func NewGroupConfiguration(settings models.DeviceGroupsSettings) (*GroupConfiguration, error) {
	config := &GroupConfiguration{
		Definitions: map[string]*GroupDefinition{},
		Policies:    map[string]models.GroupPolicy{},
		permissions: map[string][]models.Permission{},
	}

	for policyName, policy := range settings.Policies {
		config.Policies[policyName] = policy
	}

	for groupName, spec := range settings.Definitions {
		definition, err := NewGroupDefinition(groupName, spec)
		if err != nil {
			return nil, fmt.Errorf("group %q: %w", groupName, err)
		}

		policy, ok := config.Policies[definition.PolicyName]
		if !ok {
			return nil, fmt.Errorf("group %q: %w: %q", groupName, errs.ErrUnknownPolicy, definition.PolicyName)
		}

		config.Definitions[groupName] = definition
		config.permissions[groupName] = flattenPolicy(groupName, policy)
	}

	return config, nil
}

func flattenPolicy(groupName string, policy models.GroupPolicy) []models.Permission {
	permissions := []models.Permission{}
	for _, statement := range policy {
		for _, operation := range statement.Operations {
			for _, resource := range statement.Resources {
				permissions = append(permissions, models.Permission{
					Principal: groupName,
					Operation: operation,
					Resource:  resource,
				})
			}
		}
	}

	return permissions
}

// PermissionsFor returns the flattened permission set of a group.
func (config *GroupConfiguration) PermissionsFor(groupName string) []models.Permission {
	return config.permissions[groupName]
}

// GroupPolicyEngine evaluates sessions against the currently loaded group
// configuration. The configuration is recomputed wholesale on every change;
// group sets are small and change rarely, so correctness wins over
// incremental updates.
type GroupPolicyEngine struct {
	logger *logrus.Entry

	mu     sync.RWMutex
	config *GroupConfiguration
}

func NewGroupPolicyEngine(logger *logrus.Entry) *GroupPolicyEngine {
	// An engine without configuration denies everything.
	empty, _ := NewGroupConfiguration(models.DeviceGroupsSettings{})

	return &GroupPolicyEngine{
		logger: logger,
		config: empty,
	}
}

// LoadConfiguration replaces the active group configuration. On error the
// previous valid configuration stays in effect.
func (svc *GroupPolicyEngine) LoadConfiguration(ctx context.Context, settings models.DeviceGroupsSettings) error {
	lFunc := helpers.ConfigureLogger(ctx, svc.logger)

	config, err := NewGroupConfiguration(settings)
	if err != nil {
		lFunc.Errorf("rejecting device group configuration: %s", err)
		return fmt.Errorf("%w: %s", errs.ErrGroupConfiguration, err)
	}

	svc.mu.Lock()
	svc.config = config
	svc.mu.Unlock()

	lFunc.Infof("loaded %d device groups and %d policies", len(config.Definitions), len(config.Policies))
	return nil
}

// Configuration returns the active group configuration.
func (svc *GroupPolicyEngine) Configuration() *GroupConfiguration {
	svc.mu.RLock()
	defer svc.mu.RUnlock()

	return svc.config
}

// Authorize unions the permissions of every group containing the session and
// tests the requested pair. Absence is deny, never an error.
func (svc *GroupPolicyEngine) Authorize(session *models.Session, operation string, resource string) bool {
	config := svc.Configuration()

	for groupName, definition := range config.Definitions {
		if !definition.ContainsClientDevice(session) {
			continue
		}

		for _, permission := range config.permissions[groupName] {
			if permission.Operation == operation && permission.Resource == resource {
				return true
			}
		}
	}

	return false
}
