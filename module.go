// Package plotforge provides the module orchestration core of the plotforge
// scientific data pipeline. It discovers plot and domain modules on disk,
// loads each one into an isolated execution context, validates the loaded
// scope against one of the recognized capability contracts, orders modules
// by their declared dependencies, and orchestrates batch execution with a
// uniform success/partial/failed result envelope.
//
// The engine is an explicit object owned by the caller; there are no
// process-wide registries, so multiple independent engine instances can
// coexist (useful for isolated test runs).
//
// Basic usage:
//
//	engine := plotforge.NewEngine(logger)
//	result := engine.OrchestratePlotGeneration(ctx, data, baseDir, outDir, true)
//	if !result.IsSuccessful() {
//		log.Printf("plot generation degraded: %v", result.Errors)
//	}
package plotforge

// ModuleCategory identifies the two recognized module kinds, each with its
// own discovery root and capability contracts.
type ModuleCategory string

const (
	// CategoryPlot marks plot-generator modules discovered under the
	// plot_modules root.
	CategoryPlot ModuleCategory = "plot"

	// CategoryDomain marks domain-analysis modules discovered under the
	// domain_modules root.
	CategoryDomain ModuleCategory = "domain"
)

// InterfaceStyle classifies which capability contract a loaded module
// satisfies. Classification is performed in priority order: a module that
// fully satisfies the new-style plot contract is classified StyleNew even
// when it also happens to satisfy the old-style set.
type InterfaceStyle string

const (
	// StyleNew is the current plot contract:
	// GetModuleMetadata, GetAvailablePlots, GeneratePlot.
	StyleNew InterfaceStyle = "new"

	// StyleOld is the legacy plot contract:
	// GenerateVariants, GetModuleInfo, ValidateConfig, GetDefaultConfig.
	StyleOld InterfaceStyle = "old"

	// StyleDomain is the domain-analysis contract: ModuleInit.
	StyleDomain InterfaceStyle = "domain"

	// StyleInvalid marks a module that satisfies no required set for its
	// category. The descriptor carries the list of missing capabilities.
	StyleInvalid InterfaceStyle = "invalid"
)

// ModuleState tracks a module through the per-module pipeline:
// DISCOVERED -> LOADED -> VALIDATED | REJECTED -> REGISTERED.
// REJECTED is terminal; a rejected module cannot be registered without
// being re-discovered.
type ModuleState string

const (
	StateDiscovered ModuleState = "DISCOVERED"
	StateLoaded     ModuleState = "LOADED"
	StateValidated  ModuleState = "VALIDATED"
	StateRejected   ModuleState = "REJECTED"
	StateRegistered ModuleState = "REGISTERED"
)

// ModuleDescriptor describes a module from discovery through registration.
// It is created at discovery time, mutated at load and validation time, and
// lives in the engine registry for the lifetime of the engine.
type ModuleDescriptor struct {
	// Name is the module's directory name, unique within its category.
	Name string

	// Category is the module kind (plot or domain).
	Category ModuleCategory

	// Path is the module's directory on disk.
	Path string

	// EntryFile is the resolved entry source file, set at load time.
	EntryFile string

	// Style is the capability contract the module satisfies, set at
	// validation time.
	Style InterfaceStyle

	// State is the module's position in the per-module pipeline.
	State ModuleState

	// Loaded reports whether an execution context was constructed.
	Loaded bool

	// Requires lists the names of modules this module declares as
	// dependencies, from its manifest or metadata.
	Requires []string

	// MissingCapabilities lists the capability names that were absent when
	// Style is StyleInvalid.
	MissingCapabilities []string

	// Context is the module's isolated execution context, set at load time.
	Context *ModuleContext

	// Profile carries the typed capability set resolved at validation time.
	Profile *CapabilityProfile
}

// PlotModuleV2 carries the typed operations of the new-style plot contract.
// Validation resolves each field from the module's execution context;
// construction fails (StyleInvalid) when any symbol is absent or has the
// wrong signature.
type PlotModuleV2 struct {
	// GetModuleMetadata returns descriptive metadata: name, version,
	// description and an optional "requires" list.
	GetModuleMetadata func() map[string]any

	// GetAvailablePlots returns the plot variant names this module can
	// generate.
	GetAvailablePlots func() []string

	// GeneratePlot renders one named variant into outputDir and returns the
	// produced artifact path.
	GeneratePlot func(name string, data map[string]any, outputDir string) (string, error)
}

// PlotModuleV1 carries the typed operations of the legacy plot contract.
type PlotModuleV1 struct {
	// GenerateVariants renders every variant the module knows about and
	// returns the produced and failed counts.
	GenerateVariants func(data map[string]any, outputDir string) (generated int, failed int, err error)

	// GetModuleInfo returns descriptive metadata for the module.
	GetModuleInfo func() map[string]any

	// ValidateConfig checks a proposed module configuration.
	ValidateConfig func(config map[string]any) error

	// GetDefaultConfig returns the module's default configuration.
	GetDefaultConfig func() map[string]any
}

// DomainModule carries the typed operations of the domain-analysis contract.
type DomainModule struct {
	// ModuleInit prepares the domain analysis and returns its initial
	// opaque state.
	ModuleInit func(config map[string]any) (map[string]any, error)
}

// CapabilityProfile is the tagged result of interface validation: exactly
// one of the variant fields is non-nil for a valid module, matching Style.
type CapabilityProfile struct {
	Style InterfaceStyle

	V2     *PlotModuleV2
	V1     *PlotModuleV1
	Domain *DomainModule

	// Missing lists absent capability names when Style is StyleInvalid.
	Missing []string
}

// registryKey keys the engine registry by (category, name).
type registryKey struct {
	category ModuleCategory
	name     string
}

// ModuleRequirement is the minimal input to dependency graph construction:
// a module name plus its declared requires list, in discovery order.
type ModuleRequirement struct {
	Name     string
	Requires []string
}
