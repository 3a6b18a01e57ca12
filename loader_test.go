package plotforge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeModuleSource writes module source to a temp entry file and returns
// its path.
func writeModuleSource(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "module.go")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

const newStylePlotSource = `package main

import "fmt"

func GetModuleMetadata() map[string]any {
	return map[string]any{
		"name":     "scatter",
		"version":  "2.0",
		"requires": []any{"themes"},
	}
}

func GetAvailablePlots() []string {
	return []string{"scatter_basic", "scatter_density"}
}

func GeneratePlot(plotType string, data map[string]any, outputDir string) (string, error) {
	return fmt.Sprintf("%s/%s.png", outputDir, plotType), nil
}
`

const oldStylePlotSource = `package main

func GenerateVariants(data map[string]any, outputDir string) (int, int, error) {
	return 2, 0, nil
}

func GetModuleInfo() map[string]any {
	return map[string]any{"name": "legacy_hist"}
}

func ValidateConfig(config map[string]any) error {
	return nil
}

func GetDefaultConfig() map[string]any {
	return map[string]any{"bins": 10}
}
`

const domainModuleSource = `package main

func ModuleInit(config map[string]any) (map[string]any, error) {
	return map[string]any{"ready": true}, nil
}

func ModuleCleanup(state map[string]any) error {
	return nil
}
`

func TestNewModuleContextMissingFile(t *testing.T) {
	_, err := NewModuleContext(filepath.Join(t.TempDir(), "absent.go"))
	require.ErrorIs(t, err, ErrContextBuildFailed)
}

func TestNewModuleContextBadSource(t *testing.T) {
	path := writeModuleSource(t, "package main\n\nfunc Broken( {")
	_, err := NewModuleContext(path)
	require.ErrorIs(t, err, ErrContextBuildFailed)
}

func TestModuleContextLookup(t *testing.T) {
	path := writeModuleSource(t, newStylePlotSource)
	ctx, err := NewModuleContext(path)
	require.NoError(t, err)

	assert.Equal(t, path, ctx.Path())
	assert.True(t, ctx.Has("GetAvailablePlots"))
	assert.False(t, ctx.Has("Nonexistent"))

	_, err = ctx.Lookup("Nonexistent")
	require.ErrorIs(t, err, ErrSymbolNotFound)
}

func TestModuleContextsAreIsolated(t *testing.T) {
	first, err := NewModuleContext(writeModuleSource(t, newStylePlotSource))
	require.NoError(t, err)
	second, err := NewModuleContext(writeModuleSource(t, domainModuleSource))
	require.NoError(t, err)

	assert.True(t, first.Has("GeneratePlot"))
	assert.False(t, second.Has("GeneratePlot"))
	assert.True(t, second.Has("ModuleInit"))
	assert.False(t, first.Has("ModuleInit"))
}

func TestSymbolWithWrongSignature(t *testing.T) {
	// GetAvailablePlots returns an int here, not []string.
	src := `package main

func GetAvailablePlots() int { return 3 }
`
	ctx, err := NewModuleContext(writeModuleSource(t, src))
	require.NoError(t, err)

	_, err = symbolAs[func() []string](ctx, "GetAvailablePlots")
	require.ErrorIs(t, err, ErrSymbolWrongType)
}

func TestValidateInterfaceNewStyle(t *testing.T) {
	ctx, err := NewModuleContext(writeModuleSource(t, newStylePlotSource))
	require.NoError(t, err)

	profile := ValidateInterface(ctx, CategoryPlot)
	require.Equal(t, StyleNew, profile.Style)
	require.NotNil(t, profile.V2)

	plots := profile.V2.GetAvailablePlots()
	assert.Equal(t, []string{"scatter_basic", "scatter_density"}, plots)

	path, err := profile.V2.GeneratePlot("scatter_basic", nil, "/tmp/out")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/out/scatter_basic.png", path)
}

func TestValidateInterfaceOldStyle(t *testing.T) {
	ctx, err := NewModuleContext(writeModuleSource(t, oldStylePlotSource))
	require.NoError(t, err)

	profile := ValidateInterface(ctx, CategoryPlot)
	require.Equal(t, StyleOld, profile.Style)
	require.NotNil(t, profile.V1)

	generated, failed, err := profile.V1.GenerateVariants(nil, "/tmp/out")
	require.NoError(t, err)
	assert.Equal(t, 2, generated)
	assert.Equal(t, 0, failed)
}

func TestValidateInterfaceNewStyleWinsOverOld(t *testing.T) {
	ctx, err := NewModuleContext(writeModuleSource(t, newStylePlotSource+`
func GenerateVariants(data map[string]any, outputDir string) (int, int, error) {
	return 0, 0, nil
}

func GetModuleInfo() map[string]any { return nil }

func ValidateConfig(config map[string]any) error { return nil }

func GetDefaultConfig() map[string]any { return nil }
`))
	require.NoError(t, err)

	profile := ValidateInterface(ctx, CategoryPlot)
	assert.Equal(t, StyleNew, profile.Style)
	assert.NotNil(t, profile.V2)
	assert.Nil(t, profile.V1)
}

func TestValidateInterfaceDomain(t *testing.T) {
	ctx, err := NewModuleContext(writeModuleSource(t, domainModuleSource))
	require.NoError(t, err)

	profile := ValidateInterface(ctx, CategoryDomain)
	require.Equal(t, StyleDomain, profile.Style)
	require.NotNil(t, profile.Domain)

	state, err := profile.Domain.ModuleInit(nil)
	require.NoError(t, err)
	assert.Equal(t, true, state["ready"])
}

func TestValidateInterfaceInvalidListsMissing(t *testing.T) {
	// Satisfies neither contract: only one new-style symbol present.
	src := `package main

func GetAvailablePlots() []string { return nil }
`
	ctx, err := NewModuleContext(writeModuleSource(t, src))
	require.NoError(t, err)

	profile := ValidateInterface(ctx, CategoryPlot)
	assert.Equal(t, StyleInvalid, profile.Style)
	assert.Contains(t, profile.Missing, "GetModuleMetadata")
	assert.Contains(t, profile.Missing, "GeneratePlot")
	assert.Contains(t, profile.Missing, "GenerateVariants")
	assert.NotContains(t, profile.Missing, "GetAvailablePlots")
}

func TestValidateInterfaceWrongSignatureCountsAsMissing(t *testing.T) {
	src := `package main

func ModuleInit(config map[string]any) bool { return true }
`
	ctx, err := NewModuleContext(writeModuleSource(t, src))
	require.NoError(t, err)

	profile := ValidateInterface(ctx, CategoryDomain)
	assert.Equal(t, StyleInvalid, profile.Style)
	assert.Equal(t, []string{"ModuleInit"}, profile.Missing)
}

func TestHooksFromModuleScope(t *testing.T) {
	ctx, err := NewModuleContext(writeModuleSource(t, domainModuleSource))
	require.NoError(t, err)

	hooks := ctx.Hooks()
	require.NotNil(t, hooks.Init)
	assert.Nil(t, hooks.Reset)
	require.NotNil(t, hooks.Cleanup)

	state, err := hooks.Init(nil)
	require.NoError(t, err)
	assert.Equal(t, true, state["ready"])
	require.NoError(t, hooks.Cleanup(state))
}

func TestPackageClauseOtherThanMain(t *testing.T) {
	src := `package analysis

func ModuleInit(config map[string]any) (map[string]any, error) {
	return map[string]any{}, nil
}
`
	ctx, err := NewModuleContext(writeModuleSource(t, src))
	require.NoError(t, err)
	assert.True(t, ctx.Has("ModuleInit"))
}
