package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trustedge/trustedge/pkg/errs"
	"github.com/trustedge/trustedge/pkg/helpers"
	"github.com/trustedge/trustedge/pkg/models"
)

func sessionWithThingName(value string) *models.Session {
	return &models.Session{
		ID: "test-session",
		Attributes: map[string]models.DeviceAttribute{
			"thingName": {
				Namespace: models.AttributeNamespaceThing,
				Name:      "thingName",
				Value:     value,
			},
		},
	}
}

func TestGroupDefinitionSelectorParsing(t *testing.T) {
	cases := []struct {
		name        string
		rule        string
		expectErr   bool
		prefixMatch bool
		pattern     string
	}{
		{name: "exact", rule: "thingName: thing", pattern: "thing"},
		{name: "prefix", rule: "thingName: thing*", pattern: "thing", prefixMatch: true},
		{name: "no separator", rule: "thingName thing", expectErr: true},
		{name: "empty attribute", rule: ": thing", expectErr: true},
		{name: "empty pattern", rule: "thingName:   ", expectErr: true},
		{name: "empty rule", rule: "", expectErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			def, err := NewGroupDefinition("g1", models.GroupDefinitionSpec{
				SelectionRule: tc.rule,
				PolicyName:    "p1",
			})

			if tc.expectErr {
				assert.ErrorIs(t, err, errs.ErrGroupSelectorSyntax)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, "thingName", def.AttributeName)
			assert.Equal(t, tc.pattern, def.Pattern)
			assert.Equal(t, tc.prefixMatch, def.PrefixMatch)
		})
	}
}

func TestGroupDefinitionContainsClientDevice(t *testing.T) {
	prefixDef, err := NewGroupDefinition("g1", models.GroupDefinitionSpec{
		SelectionRule: "thingName: thing*",
		PolicyName:    "p1",
	})
	require.NoError(t, err)

	assert.True(t, prefixDef.ContainsClientDevice(sessionWithThingName("thing-A")))
	assert.True(t, prefixDef.ContainsClientDevice(sessionWithThingName("thing")))
	assert.False(t, prefixDef.ContainsClientDevice(sessionWithThingName("other")))
	assert.False(t, prefixDef.ContainsClientDevice(sessionWithThingName("Thing-A")), "prefix match is case sensitive")

	exactDef, err := NewGroupDefinition("g1", models.GroupDefinitionSpec{
		SelectionRule: "thingName: thing",
		PolicyName:    "p1",
	})
	require.NoError(t, err)

	assert.True(t, exactDef.ContainsClientDevice(sessionWithThingName("thing")))
	assert.False(t, exactDef.ContainsClientDevice(sessionWithThingName("thing-A")))

	// A session lacking the attribute never matches.
	assert.False(t, exactDef.ContainsClientDevice(&models.Session{ID: "empty"}))
}

func TestNewGroupConfigurationRejectsUnknownPolicy(t *testing.T) {
	_, err := NewGroupConfiguration(models.DeviceGroupsSettings{
		Definitions: map[string]models.GroupDefinitionSpec{
			"g1": {SelectionRule: "thingName: thing*", PolicyName: "missing"},
		},
	})
	assert.ErrorIs(t, err, errs.ErrUnknownPolicy)
}

func testGroupSettings() models.DeviceGroupsSettings {
	return models.DeviceGroupsSettings{
		FormatVersion: "2021-03-05",
		Definitions: map[string]models.GroupDefinitionSpec{
			"G1": {SelectionRule: "thingName: thing*", PolicyName: "P1"},
		},
		Policies: map[string]models.GroupPolicy{
			"P1": {
				"statement1": models.PolicyStatement{
					Operations: []string{"mqtt:connect"},
					Resources:  []string{"mqtt:clientId:foo"},
				},
			},
		},
	}
}

func TestAuthorize(t *testing.T) {
	ctx := helpers.InitContext()
	engine := NewGroupPolicyEngine(newTestLogger())
	require.NoError(t, engine.LoadConfiguration(ctx, testGroupSettings()))

	matching := sessionWithThingName("thing-A")
	assert.True(t, engine.Authorize(matching, "mqtt:connect", "mqtt:clientId:foo"))
	assert.False(t, engine.Authorize(matching, "mqtt:publish", "mqtt:topic:x"))
	assert.False(t, engine.Authorize(matching, "mqtt:connect", "mqtt:clientId:bar"))

	outsider := sessionWithThingName("other")
	assert.False(t, engine.Authorize(outsider, "mqtt:connect", "mqtt:clientId:foo"))
}

func TestAuthorizeWithEmptyConfigurationDeniesEverything(t *testing.T) {
	engine := NewGroupPolicyEngine(newTestLogger())

	assert.False(t, engine.Authorize(sessionWithThingName("thing-A"), "mqtt:connect", "mqtt:clientId:foo"))
}

func TestLoadConfigurationKeepsPreviousOnError(t *testing.T) {
	ctx := helpers.InitContext()
	engine := NewGroupPolicyEngine(newTestLogger())
	require.NoError(t, engine.LoadConfiguration(ctx, testGroupSettings()))

	err := engine.LoadConfiguration(ctx, models.DeviceGroupsSettings{
		Definitions: map[string]models.GroupDefinitionSpec{
			"broken": {SelectionRule: "no separator", PolicyName: "P1"},
		},
	})
	assert.ErrorIs(t, err, errs.ErrGroupConfiguration)

	// The previous valid configuration must still be in effect.
	assert.True(t, engine.Authorize(sessionWithThingName("thing-A"), "mqtt:connect", "mqtt:clientId:foo"))
}

func TestPermissionsForFlattensStatements(t *testing.T) {
	config, err := NewGroupConfiguration(models.DeviceGroupsSettings{
		Definitions: map[string]models.GroupDefinitionSpec{
			"G1": {SelectionRule: "thingName: thing*", PolicyName: "P1"},
		},
		Policies: map[string]models.GroupPolicy{
			"P1": {
				"statement1": models.PolicyStatement{
					Operations: []string{"mqtt:connect", "mqtt:publish"},
					Resources:  []string{"mqtt:topic:a", "mqtt:topic:b"},
				},
			},
		},
	})
	require.NoError(t, err)

	permissions := config.PermissionsFor("G1")
	assert.Len(t, permissions, 4)
	assert.Empty(t, config.PermissionsFor("unknown"))
}
