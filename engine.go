package plotforge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Fixed discovery roots, one per module category.
const (
	plotModulesDir   = "plot_modules"
	domainModulesDir = "domain_modules"
)

// Candidate entry files searched at load time, in order; first match wins.
var (
	plotEntryCandidates   = []string{"module.go", "plots.go", "main.go"}
	domainEntryCandidates = []string{"module.go", "analysis.go", "main.go"}
)

// Marker files that make a domain module directory discoverable.
var domainMarkerFiles = []string{"config.yaml", "README.md"}

// Engine is the module orchestration core. It owns its registry, event
// bus, lifecycle manager, and artifact registrar explicitly — there are no
// process-wide singletons — so independent engines can coexist.
//
// No engine operation is transactional: a failure partway through a batch
// does not roll back registry mutations that happened before it.
type Engine struct {
	mu        sync.Mutex
	logger    Logger
	bus       *EventBus
	lifecycle *LifecycleManager
	artifacts ArtifactRegistrar
	registry  map[registryKey]*ModuleDescriptor
	regOrder  []registryKey
	outputDir string
}

// EngineOption customizes an Engine at construction time.
type EngineOption func(*Engine)

// WithEventBus substitutes a caller-owned event bus.
func WithEventBus(bus *EventBus) EngineOption {
	return func(e *Engine) { e.bus = bus }
}

// WithArtifactRegistrar substitutes the artifact persistence collaborator.
func WithArtifactRegistrar(r ArtifactRegistrar) EngineOption {
	return func(e *Engine) { e.artifacts = r }
}

// NewEngine creates an engine with its own event bus, lifecycle manager,
// and in-memory artifact index unless options substitute them.
func NewEngine(logger Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		logger:   logger,
		registry: make(map[registryKey]*ModuleDescriptor),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.bus == nil {
		e.bus = NewEventBus(logger)
	}
	if e.artifacts == nil {
		e.artifacts = NewMemoryArtifactIndex()
	}
	e.lifecycle = NewLifecycleManager(logger, e.bus)
	return e
}

// Bus returns the engine's event bus.
func (e *Engine) Bus() *EventBus { return e.bus }

// Lifecycle returns the engine's lifecycle manager.
func (e *Engine) Lifecycle() *LifecycleManager { return e.lifecycle }

// Artifacts returns the engine's artifact registrar.
func (e *Engine) Artifacts() ArtifactRegistrar { return e.artifacts }

func categoryDir(category ModuleCategory) (string, error) {
	switch category {
	case CategoryPlot:
		return plotModulesDir, nil
	case CategoryDomain:
		return domainModulesDir, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
}

func entryCandidates(category ModuleCategory) []string {
	if category == CategoryDomain {
		return domainEntryCandidates
	}
	return plotEntryCandidates
}

// Discover scans the fixed category roots under baseDir for module
// directories. A directory is a module only when it carries a recognized
// marker file: a candidate entry file or a manifest for plot modules, a
// config descriptor or readme for domain modules. Descriptors are returned
// in directory order, which defines discovery order for everything
// downstream. When no categories are given, both are scanned.
func (e *Engine) Discover(ctx context.Context, baseDir string, categories ...ModuleCategory) ([]*ModuleDescriptor, error) {
	if _, err := os.Stat(baseDir); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBaseDirNotFound, baseDir)
	}
	if len(categories) == 0 {
		categories = []ModuleCategory{CategoryPlot, CategoryDomain}
	}

	var discovered []*ModuleDescriptor
	for _, category := range categories {
		dir, err := categoryDir(category)
		if err != nil {
			return nil, err
		}
		root := filepath.Join(baseDir, dir)
		entries, err := os.ReadDir(root)
		if err != nil {
			e.logger.Debug("Category root not present, skipping", "root", root)
			continue
		}

		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			moduleDir := filepath.Join(root, entry.Name())
			if !isModuleDir(moduleDir, category) {
				e.logger.Debug("Directory lacks marker files, skipping", "dir", moduleDir)
				continue
			}

			desc := &ModuleDescriptor{
				Name:     entry.Name(),
				Category: category,
				Path:     moduleDir,
				State:    StateDiscovered,
			}
			if manifest, err := LoadManifest(moduleDir); err == nil {
				desc.Requires = manifest.Requires
			}
			discovered = append(discovered, desc)

			e.bus.Emit(ctx, EventTypeModuleDiscovered, map[string]any{
				"module":   desc.Name,
				"category": string(category),
				"path":     moduleDir,
			}, desc.Name)
			e.logger.Info("Discovered module", "module", desc.Name, "category", category)
		}
	}

	return discovered, nil
}

// isModuleDir applies the per-category marker file convention.
func isModuleDir(moduleDir string, category ModuleCategory) bool {
	if category == CategoryDomain {
		for _, marker := range domainMarkerFiles {
			if _, err := os.Stat(filepath.Join(moduleDir, marker)); err == nil {
				return true
			}
		}
		return false
	}
	for _, candidate := range plotEntryCandidates {
		if _, err := os.Stat(filepath.Join(moduleDir, candidate)); err == nil {
			return true
		}
	}
	return HasManifest(moduleDir)
}

// Load searches the module's directory for the ordered candidate entry
// files and constructs an isolated execution context from the first match.
// On failure the returned descriptor reports Loaded=false and the error
// names the filenames searched.
func (e *Engine) Load(ctx context.Context, name string, category ModuleCategory, baseDir string) (*ModuleDescriptor, error) {
	dir, err := categoryDir(category)
	if err != nil {
		return nil, err
	}
	moduleDir := filepath.Join(baseDir, dir, name)

	desc := &ModuleDescriptor{
		Name:     name,
		Category: category,
		Path:     moduleDir,
		State:    StateDiscovered,
	}
	if manifest, merr := LoadManifest(moduleDir); merr == nil {
		desc.Requires = manifest.Requires
	}

	if _, err := os.Stat(moduleDir); err != nil {
		return desc, fmt.Errorf("%w: %s", ErrModuleDirNotFound, moduleDir)
	}

	candidates := entryCandidates(category)
	var entryFile string
	for _, candidate := range candidates {
		path := filepath.Join(moduleDir, candidate)
		if _, err := os.Stat(path); err == nil {
			entryFile = path
			break
		}
	}
	if entryFile == "" {
		return desc, fmt.Errorf("%w: searched %v in %s", ErrEntryFileNotFound, candidates, moduleDir)
	}

	moduleCtx, err := NewModuleContext(entryFile)
	if err != nil {
		return desc, fmt.Errorf("loading module %s: %w", name, err)
	}

	desc.EntryFile = entryFile
	desc.Context = moduleCtx
	desc.Loaded = true
	desc.State = StateLoaded

	e.bus.Emit(ctx, EventTypeModuleLoaded, map[string]any{
		"module":    name,
		"category":  string(category),
		"entryFile": entryFile,
	}, name)
	e.logger.Info("Loaded module", "module", name, "entryFile", entryFile)

	return desc, nil
}

// ValidateModule classifies the loaded module's capability contract and
// moves the descriptor to VALIDATED or REJECTED. REJECTED is terminal: the
// module cannot be registered without re-discovery.
func (e *Engine) ValidateModule(ctx context.Context, desc *ModuleDescriptor) *CapabilityProfile {
	if !desc.Loaded || desc.Context == nil {
		profile := &CapabilityProfile{Style: StyleInvalid, Missing: []string{"<module not loaded>"}}
		desc.Style = StyleInvalid
		desc.State = StateRejected
		desc.Profile = profile
		return profile
	}

	profile := ValidateInterface(desc.Context, desc.Category)
	desc.Profile = profile
	desc.Style = profile.Style

	if profile.Style == StyleInvalid {
		desc.State = StateRejected
		desc.MissingCapabilities = profile.Missing
		e.bus.Emit(ctx, EventTypeModuleRejected, map[string]any{
			"module":  desc.Name,
			"missing": profile.Missing,
		}, desc.Name)
		e.logger.Warn("Module rejected", "module", desc.Name, "missing", profile.Missing)
		return profile
	}

	// New-style metadata may declare dependencies the manifest did not.
	if profile.V2 != nil && len(desc.Requires) == 0 {
		if meta := callMetadata(profile.V2.GetModuleMetadata); meta != nil {
			desc.Requires = requiresFromMetadata(meta)
		}
	}

	desc.State = StateValidated
	e.bus.Emit(ctx, EventTypeModuleValidated, map[string]any{
		"module": desc.Name,
		"style":  string(profile.Style),
	}, desc.Name)
	e.logger.Info("Validated module", "module", desc.Name, "style", profile.Style)
	return profile
}

// Register adds a validated module to the registry keyed by (category,
// name). Re-registration under the same key overwrites while keeping the
// original registration-order position. Unvalidated and rejected modules
// are refused.
func (e *Engine) Register(ctx context.Context, desc *ModuleDescriptor) error {
	switch desc.State {
	case StateValidated, StateRegistered:
	case StateRejected:
		return fmt.Errorf("%w: %s", ErrModuleRejected, desc.Name)
	default:
		return fmt.Errorf("%w: %s in state %s", ErrModuleNotValidated, desc.Name, desc.State)
	}

	key := registryKey{category: desc.Category, name: desc.Name}

	e.mu.Lock()
	if _, exists := e.registry[key]; !exists {
		e.regOrder = append(e.regOrder, key)
	}
	e.registry[key] = desc
	e.mu.Unlock()

	desc.State = StateRegistered

	e.bus.Emit(ctx, EventTypeModuleRegistered, map[string]any{
		"module":   desc.Name,
		"category": string(desc.Category),
		"style":    string(desc.Style),
	}, desc.Name)
	e.logger.Info("Registered module", "module", desc.Name, "category", desc.Category)
	return nil
}

// Module returns a registered module by category and name.
func (e *Engine) Module(category ModuleCategory, name string) (*ModuleDescriptor, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	desc, ok := e.registry[registryKey{category: category, name: name}]
	return desc, ok
}

// Modules returns the registered modules of a category in registration
// order.
func (e *Engine) Modules(category ModuleCategory) []*ModuleDescriptor {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []*ModuleDescriptor
	for _, key := range e.regOrder {
		if key.category == category {
			out = append(out, e.registry[key])
		}
	}
	return out
}

// ResolveLoadOrder computes the dependency-respecting load order for a set
// of discovered modules. A cycle fails only this resolution request; the
// registry is untouched.
func (e *Engine) ResolveLoadOrder(descs []*ModuleDescriptor) ([]string, error) {
	requirements := make([]ModuleRequirement, 0, len(descs))
	for _, desc := range descs {
		requirements = append(requirements, ModuleRequirement{
			Name:     desc.Name,
			Requires: desc.Requires,
		})
	}
	graph := BuildGraph(requirements)
	order, err := graph.TopologicalSort()
	if err != nil {
		return nil, fmt.Errorf("resolving load order: %w", err)
	}
	return order, nil
}

// InitializePipeline creates the expected output directory layout and
// returns a failed result when directory creation fails.
func (e *Engine) InitializePipeline(ctx context.Context, outputDir string) *Result {
	result, _ := NewResult("initialize_pipeline")
	subdirs := []string{"plots", "reports", "data"}

	for _, sub := range subdirs {
		dir := filepath.Join(outputDir, sub)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			result.AddError(fmt.Sprintf("%v: %s: %v", ErrOutputDirCreate, dir, err))
			return result
		}
	}

	e.mu.Lock()
	e.outputDir = outputDir
	e.mu.Unlock()

	result.Metadata["outputDir"] = outputDir
	result.Metadata["subdirs"] = subdirs
	e.bus.Emit(ctx, EventTypePipelineInitialized, map[string]any{"outputDir": outputDir}, "engine")
	e.logger.Info("Pipeline initialized", "outputDir", outputDir)
	return result
}

// RunAnalysis initializes the pipeline, loads the named domain module,
// registers it, and runs its init hook through the lifecycle manager.
// The aggregated result carries the elapsed duration.
func (e *Engine) RunAnalysis(ctx context.Context, domainName, baseDir, outputDir string, config map[string]any) *Result {
	start := time.Now()
	result, _ := NewResult("run_analysis", WithModule(domainName), WithParams(map[string]any{
		"baseDir":   baseDir,
		"outputDir": outputDir,
	}))
	defer result.Finalize(start)

	if setup := e.InitializePipeline(ctx, outputDir); !setup.IsSuccessful() {
		result.Errors = append(result.Errors, setup.Errors...)
		result.Status = maxStatus(result.Status, setup.Status)
		return result
	}

	desc, err := e.Load(ctx, domainName, CategoryDomain, baseDir)
	if err != nil {
		result.AddError(fmt.Sprintf("loading domain module: %v", err))
		return result
	}

	profile := e.ValidateModule(ctx, desc)
	if profile.Style == StyleInvalid {
		result.AddError(fmt.Sprintf("%v: missing %v", ErrInterfaceUnsatisfied, profile.Missing))
		return result
	}

	if err := e.Register(ctx, desc); err != nil {
		result.AddError(fmt.Sprintf("registering domain module: %v", err))
		return result
	}

	state, err := e.lifecycle.Init(ctx, domainName, desc.Context.Hooks(), config)
	if err != nil {
		result.AddError(fmt.Sprintf("initializing domain module: %v", err))
		return result
	}
	result.Data = state.State

	e.bus.Emit(ctx, EventTypeAnalysisCompleted, map[string]any{"module": domainName}, domainName)
	return result
}

// OrchestratePlotGeneration discovers every plot module under baseDir,
// orders them by declared dependencies (falling back to plain discovery
// order when nothing declares any), and for each one loads, validates,
// registers, and invokes its generation entry point, folding per-call
// success/failure counts into running totals.
//
// Overall status is failed when zero modules load or zero plots are
// produced, partial when any module or plot failed, success otherwise.
// With continueOnError=false the whole operation aborts on the first
// module failure instead of skipping it.
func (e *Engine) OrchestratePlotGeneration(ctx context.Context, data map[string]any, baseDir, outputBase string, continueOnError bool) *Result {
	start := time.Now()
	result, _ := NewResult("orchestrate_plot_generation", WithParams(map[string]any{
		"baseDir":         baseDir,
		"outputBase":      outputBase,
		"continueOnError": continueOnError,
	}))
	defer result.Finalize(start)

	var modulesLoaded, modulesFailed, plotsGenerated, plotsFailed int
	defer func() {
		result.Metadata["modulesLoaded"] = modulesLoaded
		result.Metadata["modulesFailed"] = modulesFailed
		result.Metadata["plotsGenerated"] = plotsGenerated
		result.Metadata["plotsFailed"] = plotsFailed
		e.bus.Emit(ctx, EventTypeOrchestrationCompleted, map[string]any{
			"status":         string(result.Status),
			"modulesLoaded":  modulesLoaded,
			"plotsGenerated": plotsGenerated,
		}, "engine")
	}()

	if setup := e.InitializePipeline(ctx, outputBase); !setup.IsSuccessful() {
		result.Errors = append(result.Errors, setup.Errors...)
		result.Status = maxStatus(result.Status, setup.Status)
		return result
	}
	plotsDir := filepath.Join(outputBase, "plots")

	discovered, err := e.Discover(ctx, baseDir, CategoryPlot)
	if err != nil {
		result.AddError(fmt.Sprintf("discovering plot modules: %v", err))
		return result
	}
	if len(discovered) == 0 {
		result.AddError("no plot modules discovered")
		return result
	}

	order, err := e.ResolveLoadOrder(discovered)
	if err != nil {
		result.AddError(err.Error())
		return result
	}
	byName := make(map[string]*ModuleDescriptor, len(discovered))
	for _, desc := range discovered {
		byName[desc.Name] = desc
	}

	for _, name := range order {
		desc := byName[name]

		loaded, err := e.Load(ctx, name, CategoryPlot, baseDir)
		if err != nil {
			modulesFailed++
			if !continueOnError {
				result.AddError(fmt.Sprintf("module %s: %v", name, err))
				return result
			}
			result.AddWarning(fmt.Sprintf("module %s: %v", name, err), SeverityHigh)
			continue
		}
		*desc = *loaded

		profile := e.ValidateModule(ctx, desc)
		if profile.Style == StyleInvalid {
			modulesFailed++
			if !continueOnError {
				result.AddError(fmt.Sprintf("module %s: %v: missing %v", name, ErrInterfaceUnsatisfied, profile.Missing))
				return result
			}
			result.AddWarning(fmt.Sprintf("module %s rejected: missing %v", name, profile.Missing), SeverityHigh)
			continue
		}

		if err := e.Register(ctx, desc); err != nil {
			modulesFailed++
			if !continueOnError {
				result.AddError(fmt.Sprintf("module %s: %v", name, err))
				return result
			}
			result.AddWarning(fmt.Sprintf("module %s: %v", name, err), SeverityHigh)
			continue
		}
		modulesLoaded++

		generated, failed := e.generateFromModule(ctx, desc, data, plotsDir, result)
		plotsGenerated += generated
		plotsFailed += failed
	}

	if modulesLoaded == 0 {
		result.AddError("no plot modules loaded")
		return result
	}
	if plotsGenerated == 0 {
		result.AddError("no plots produced")
		return result
	}
	return result
}

// generateFromModule invokes the module's generation entry point according
// to its capability style. Panics from module code are caught and counted
// as failures of the call, never of the engine.
func (e *Engine) generateFromModule(ctx context.Context, desc *ModuleDescriptor, data map[string]any, plotsDir string, result *Result) (generated, failed int) {
	switch desc.Style {
	case StyleNew:
		plots := callAvailablePlots(desc.Profile.V2.GetAvailablePlots)
		for _, plot := range plots {
			path, err := callGeneratePlot(desc.Profile.V2.GeneratePlot, plot, data, plotsDir)
			if err != nil {
				failed++
				result.AddWarning(fmt.Sprintf("module %s plot %s: %v", desc.Name, plot, err))
				e.bus.Emit(ctx, EventTypePlotFailed, map[string]any{
					"module": desc.Name, "plot": plot, "error": err.Error(),
				}, desc.Name)
				continue
			}
			generated++
			e.bus.Emit(ctx, EventTypePlotGenerated, map[string]any{
				"module": desc.Name, "plot": plot, "path": path,
			}, desc.Name)
			e.registerPlotArtifact(ctx, desc.Name, path, result)
		}
	case StyleOld:
		ok, bad, err := callGenerateVariants(desc.Profile.V1.GenerateVariants, data, plotsDir)
		if err != nil {
			failed++
			result.AddWarning(fmt.Sprintf("module %s: generate_variants: %v", desc.Name, err))
			e.bus.Emit(ctx, EventTypePlotFailed, map[string]any{
				"module": desc.Name, "error": err.Error(),
			}, desc.Name)
			return generated, failed
		}
		generated += ok
		failed += bad
		if ok > 0 {
			e.bus.Emit(ctx, EventTypePlotGenerated, map[string]any{
				"module": desc.Name, "count": ok,
			}, desc.Name)
		}
		if bad > 0 {
			result.AddWarning(fmt.Sprintf("module %s: %d variant(s) failed", desc.Name, bad))
		}
	}
	return generated, failed
}

// registerPlotArtifact records a produced plot with the artifact
// registrar. Registration problems degrade the result but never fail the
// plot that was already produced.
func (e *Engine) registerPlotArtifact(ctx context.Context, module, path string, result *Result) {
	artifact, err := e.artifacts.RegisterArtifact(path, "plot")
	if err != nil {
		result.AddWarning(fmt.Sprintf("module %s: registering artifact %s: %v", module, path, err), SeverityLow)
		return
	}
	e.bus.Emit(ctx, EventTypeArtifactRegistered, map[string]any{
		"module":   module,
		"artifact": artifact.ID,
		"checksum": artifact.Checksum,
	}, module)
}

// Panic-isolating wrappers around module-supplied functions. A module
// invocation that throws is a per-call failure, not an engine crash.

func callMetadata(fn func() map[string]any) (meta map[string]any) {
	defer func() { _ = recover() }()
	return fn()
}

func callAvailablePlots(fn func() []string) (plots []string) {
	defer func() { _ = recover() }()
	return fn()
}

func callGeneratePlot(fn func(string, map[string]any, string) (string, error), plot string, data map[string]any, outputDir string) (path string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("module panic: %v", r)
		}
	}()
	return fn(plot, data, outputDir)
}

func callGenerateVariants(fn func(map[string]any, string) (int, int, error), data map[string]any, outputDir string) (generated, failed int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("module panic: %v", r)
		}
	}()
	return fn(data, outputDir)
}

// requiresFromMetadata extracts a declared requires list from new-style
// module metadata.
func requiresFromMetadata(meta map[string]any) []string {
	raw, ok := meta["requires"]
	if !ok {
		return nil
	}
	switch deps := raw.(type) {
	case []string:
		return deps
	case []any:
		out := make([]string, 0, len(deps))
		for _, d := range deps {
			if s, ok := d.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
