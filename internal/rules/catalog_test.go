package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/mcpsentry/internal/detection"
	"github.com/giantswarm/mcpsentry/internal/storage"
)

func customRule(id string) detection.Rule {
	return detection.Rule{
		ID:         id,
		Name:       "custom rule " + id,
		Pattern:    `foo\d+`,
		ThreatType: "custom_marker",
		RiskLevel:  detection.RiskMedium,
		Scope:      detection.ScopeBoth,
		Enabled:    true,
	}
}

func TestNew_LoadsBuiltinCorpus(t *testing.T) {
	cat, err := New(nil, detection.NewEngine())
	require.NoError(t, err)

	all := cat.All()
	assert.NotEmpty(t, all)
	for _, r := range all {
		assert.True(t, r.IsBuiltin)
	}
}

func TestCatalog_AddValidatesRequiredFields(t *testing.T) {
	cat, err := New(nil, detection.NewEngine())
	require.NoError(t, err)

	_, err = cat.Add(detection.Rule{Pattern: `x`, ThreatType: "t"})
	assert.Error(t, err, "missing name should be rejected")

	_, err = cat.Add(detection.Rule{Name: "n", ThreatType: "t"})
	assert.Error(t, err, "missing pattern should be rejected")

	_, err = cat.Add(detection.Rule{Name: "n", Pattern: `x`})
	assert.Error(t, err, "missing threatType should be rejected")

	_, err = cat.Add(detection.Rule{Name: "n", Pattern: `(`, ThreatType: "t"})
	assert.Error(t, err, "uncompilable pattern should be rejected")
}

func TestCatalog_AddAssignsIDAndRejectsBuiltinCollision(t *testing.T) {
	cat, err := New(nil, detection.NewEngine())
	require.NoError(t, err)

	added, err := cat.Add(customRule(""))
	require.NoError(t, err)
	assert.NotEmpty(t, added.ID)
	assert.False(t, added.IsBuiltin)

	builtinID := cat.All()[0].ID
	_, err = cat.Add(customRule(builtinID))
	assert.Error(t, err, "a custom rule cannot reuse a builtin's id")
}

func TestCatalog_SetEnabled(t *testing.T) {
	cat, err := New(nil, detection.NewEngine())
	require.NoError(t, err)

	added, err := cat.Add(customRule("custom-1"))
	require.NoError(t, err)
	require.True(t, added.Enabled)

	require.NoError(t, cat.SetEnabled(added.ID, false))
	got, ok := cat.Get(added.ID)
	require.True(t, ok)
	assert.False(t, got.Enabled)

	err = cat.SetEnabled("does-not-exist", true)
	assert.Error(t, err)
}

func TestCatalog_UpdateRejectsBuiltinEdit(t *testing.T) {
	cat, err := New(nil, detection.NewEngine())
	require.NoError(t, err)

	builtin := cat.All()[0]
	builtin.Description = "modified"
	_, err = cat.Update(builtin)
	assert.Error(t, err, "builtin rules cannot be edited")
}

func TestCatalog_UpdateAndRemoveCustomRule(t *testing.T) {
	cat, err := New(nil, detection.NewEngine())
	require.NoError(t, err)

	added, err := cat.Add(customRule("custom-1"))
	require.NoError(t, err)

	added.Description = "updated description"
	updated, err := cat.Update(added)
	require.NoError(t, err)
	assert.Equal(t, "updated description", updated.Description)
	assert.Equal(t, added.CreatedAt, updated.CreatedAt, "CreatedAt must survive an update")

	require.NoError(t, cat.Remove(added.ID))
	_, ok := cat.Get(added.ID)
	assert.False(t, ok)

	err = cat.Remove(added.ID)
	assert.Error(t, err, "removing an already-removed rule should fail")
}

func TestCatalog_RemoveRejectsBuiltin(t *testing.T) {
	cat, err := New(nil, detection.NewEngine())
	require.NoError(t, err)

	builtinID := cat.All()[0].ID
	err = cat.Remove(builtinID)
	assert.Error(t, err)
}

func TestCatalog_ResetToDefaults(t *testing.T) {
	cat, err := New(nil, detection.NewEngine())
	require.NoError(t, err)

	_, err = cat.Add(customRule("custom-1"))
	require.NoError(t, err)
	builtinID := cat.All()[0].ID
	require.NoError(t, cat.SetEnabled(builtinID, false))

	require.NoError(t, cat.ResetToDefaults())

	_, ok := cat.Get("custom-1")
	assert.False(t, ok, "custom rules must be discarded on reset")

	got, ok := cat.Get(builtinID)
	require.True(t, ok)
	assert.True(t, got.Enabled, "builtins must be re-enabled on reset")
}

func TestCatalog_ExportImportRoundtrip(t *testing.T) {
	src, err := New(nil, detection.NewEngine())
	require.NoError(t, err)
	_, err = src.Add(customRule("custom-1"))
	require.NoError(t, err)

	data, err := src.ExportCustom()
	require.NoError(t, err)

	dst, err := New(nil, detection.NewEngine())
	require.NoError(t, err)
	imported, errs := dst.ImportCustom(data)
	assert.Empty(t, errs)
	assert.Equal(t, 1, imported)

	rule, ok := dst.Get("custom-1")
	require.True(t, ok)
	assert.Equal(t, "custom rule custom-1", rule.Name)
}

func TestCatalog_PersistsCustomRulesThroughStore(t *testing.T) {
	store := storage.NewMemoryStore()
	engine := detection.NewEngine()

	cat, err := New(store, engine)
	require.NoError(t, err)
	added, err := cat.Add(customRule(""))
	require.NoError(t, err)

	reopened, err := New(store, detection.NewEngine())
	require.NoError(t, err)
	got, ok := reopened.Get(added.ID)
	require.True(t, ok, "custom rule should survive reopening the same store")
	assert.Equal(t, added.Name, got.Name)
}
