package plotforge

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// ModuleContext is the isolated execution context of one loaded module: a
// dedicated interpreter holding the evaluated entry file. Modules cannot
// see each other's scopes; each context owns its own interpreter instance.
type ModuleContext struct {
	path        string
	packageName string
	interpreter *interp.Interpreter
}

// NewModuleContext constructs an execution context from a module entry
// file. The source is evaluated in a fresh interpreter with standard
// library symbols available; evaluation failures are load errors.
func NewModuleContext(entryFile string) (*ModuleContext, error) {
	src, err := os.ReadFile(entryFile)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrContextBuildFailed, entryFile, err)
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("%w: loading stdlib symbols: %v", ErrContextBuildFailed, err)
	}
	if _, err := i.Eval(string(src)); err != nil {
		return nil, fmt.Errorf("%w: evaluating %s: %v", ErrContextBuildFailed, entryFile, err)
	}

	return &ModuleContext{
		path:        entryFile,
		packageName: packageName(src),
		interpreter: i,
	}, nil
}

// Path returns the entry file this context was constructed from.
func (c *ModuleContext) Path() string {
	return c.path
}

// Lookup resolves a top-level symbol from the module's scope.
func (c *ModuleContext) Lookup(symbol string) (reflect.Value, error) {
	v, err := c.interpreter.Eval(c.packageName + "." + symbol)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}
	return v, nil
}

// Has reports whether the module's scope defines the symbol.
func (c *ModuleContext) Has(symbol string) bool {
	_, err := c.Lookup(symbol)
	return err == nil
}

// symbolAs resolves a symbol and asserts its signature. A present symbol
// with the wrong signature is reported distinctly from an absent one.
func symbolAs[T any](c *ModuleContext, symbol string) (T, error) {
	var zero T
	v, err := c.Lookup(symbol)
	if err != nil {
		return zero, err
	}
	fn, ok := v.Interface().(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s is %T", ErrSymbolWrongType, symbol, v.Interface())
	}
	return fn, nil
}

// Hooks assembles the module's optional lifecycle hooks from its scope.
// Absent or wrongly-typed hook symbols simply leave the hook nil.
func (c *ModuleContext) Hooks() LifecycleHooks {
	hooks := LifecycleHooks{}
	if fn, err := symbolAs[func(map[string]any) (map[string]any, error)](c, "ModuleInit"); err == nil {
		hooks.Init = fn
	}
	if fn, err := symbolAs[func(map[string]any) (map[string]any, error)](c, "ModuleReset"); err == nil {
		hooks.Reset = fn
	}
	if fn, err := symbolAs[func(map[string]any) error](c, "ModuleCleanup"); err == nil {
		hooks.Cleanup = fn
	}
	return hooks
}

// Capability names of the recognized contracts, used in rejection
// diagnostics.
var (
	newStyleCapabilities = []string{"GetModuleMetadata", "GetAvailablePlots", "GeneratePlot"}
	oldStyleCapabilities = []string{"GenerateVariants", "GetModuleInfo", "ValidateConfig", "GetDefaultConfig"}
	domainCapabilities   = []string{"ModuleInit"}
)

// ValidateInterface classifies which capability contract the loaded scope
// satisfies, checking the closed sets in priority order. A plot module that
// fully satisfies the new-style set is classified StyleNew even when it
// also satisfies the old-style set. A module satisfying no required set for
// its category is StyleInvalid, carrying the list of missing capabilities.
//
// Validation is a construction step: each contract's operations are
// resolved into typed function fields, so a symbol with the wrong
// signature fails exactly like an absent one.
func ValidateInterface(c *ModuleContext, category ModuleCategory) *CapabilityProfile {
	switch category {
	case CategoryPlot:
		v2, missingNew := resolveNewStyle(c)
		if len(missingNew) == 0 {
			return &CapabilityProfile{Style: StyleNew, V2: v2}
		}
		v1, missingOld := resolveOldStyle(c)
		if len(missingOld) == 0 {
			return &CapabilityProfile{Style: StyleOld, V1: v1}
		}
		return &CapabilityProfile{
			Style:   StyleInvalid,
			Missing: append(missingNew, missingOld...),
		}
	case CategoryDomain:
		domain, missing := resolveDomain(c)
		if len(missing) == 0 {
			return &CapabilityProfile{Style: StyleDomain, Domain: domain}
		}
		return &CapabilityProfile{Style: StyleInvalid, Missing: missing}
	default:
		return &CapabilityProfile{
			Style:   StyleInvalid,
			Missing: []string{fmt.Sprintf("unknown category %q", category)},
		}
	}
}

func resolveNewStyle(c *ModuleContext) (*PlotModuleV2, []string) {
	var missing []string
	v2 := &PlotModuleV2{}

	if fn, err := symbolAs[func() map[string]any](c, "GetModuleMetadata"); err == nil {
		v2.GetModuleMetadata = fn
	} else {
		missing = append(missing, "GetModuleMetadata")
	}
	if fn, err := symbolAs[func() []string](c, "GetAvailablePlots"); err == nil {
		v2.GetAvailablePlots = fn
	} else {
		missing = append(missing, "GetAvailablePlots")
	}
	if fn, err := symbolAs[func(string, map[string]any, string) (string, error)](c, "GeneratePlot"); err == nil {
		v2.GeneratePlot = fn
	} else {
		missing = append(missing, "GeneratePlot")
	}

	if len(missing) > 0 {
		return nil, missing
	}
	return v2, nil
}

func resolveOldStyle(c *ModuleContext) (*PlotModuleV1, []string) {
	var missing []string
	v1 := &PlotModuleV1{}

	if fn, err := symbolAs[func(map[string]any, string) (int, int, error)](c, "GenerateVariants"); err == nil {
		v1.GenerateVariants = fn
	} else {
		missing = append(missing, "GenerateVariants")
	}
	if fn, err := symbolAs[func() map[string]any](c, "GetModuleInfo"); err == nil {
		v1.GetModuleInfo = fn
	} else {
		missing = append(missing, "GetModuleInfo")
	}
	if fn, err := symbolAs[func(map[string]any) error](c, "ValidateConfig"); err == nil {
		v1.ValidateConfig = fn
	} else {
		missing = append(missing, "ValidateConfig")
	}
	if fn, err := symbolAs[func() map[string]any](c, "GetDefaultConfig"); err == nil {
		v1.GetDefaultConfig = fn
	} else {
		missing = append(missing, "GetDefaultConfig")
	}

	if len(missing) > 0 {
		return nil, missing
	}
	return v1, nil
}

func resolveDomain(c *ModuleContext) (*DomainModule, []string) {
	fn, err := symbolAs[func(map[string]any) (map[string]any, error)](c, "ModuleInit")
	if err != nil {
		return nil, []string{"ModuleInit"}
	}
	return &DomainModule{ModuleInit: fn}, nil
}

// packageName extracts the package clause from module source, defaulting to
// "main" when none is present.
func packageName(src []byte) string {
	scanner := bufio.NewScanner(bytes.NewReader(src))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "package ") {
			name := strings.TrimSpace(strings.TrimPrefix(line, "package "))
			if i := strings.IndexAny(name, " \t/"); i >= 0 {
				name = name[:i]
			}
			return name
		}
	}
	return "main"
}
