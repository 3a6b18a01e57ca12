package plotforge

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// LifecycleHooks carries a module's optional init/reset/cleanup hooks.
// Any field may be nil; a nil hook is a passthrough.
type LifecycleHooks struct {
	// Init prepares the module and returns its initial opaque state.
	Init func(config map[string]any) (map[string]any, error)

	// Reset produces a fresh state between runs.
	Reset func(state map[string]any) (map[string]any, error)

	// Cleanup releases module resources. Side effect only.
	Cleanup func(state map[string]any) error
}

// LifecycleState is the per-module state tracked by the manager. It is
// created at Init, updated at Reset, read at Cleanup, and never
// auto-expires.
type LifecycleState struct {
	Module        string
	Initialized   bool
	State         map[string]any
	InitializedAt time.Time
}

// LifecycleManager runs optional per-module lifecycle hooks and tracks the
// opaque state each module keeps between runs. Hook panics are recovered
// and surface as errors or warnings; they never crash the manager.
type LifecycleManager struct {
	mu     sync.Mutex
	states map[string]*LifecycleState
	logger Logger
	bus    *EventBus // optional; lifecycle notifications are skipped when nil
}

// NewLifecycleManager creates a manager. The bus may be nil when lifecycle
// notifications are not wanted.
func NewLifecycleManager(logger Logger, bus *EventBus) *LifecycleManager {
	return &LifecycleManager{
		states: make(map[string]*LifecycleState),
		logger: logger,
		bus:    bus,
	}
}

// Init runs the module's init hook with the given config and stores the
// returned state. Modules without an init hook get a default state with an
// empty map. The state is stored only on success.
func (m *LifecycleManager) Init(ctx context.Context, module string, hooks LifecycleHooks, config map[string]any) (*LifecycleState, error) {
	state := &LifecycleState{
		Module:        module,
		Initialized:   true,
		State:         map[string]any{},
		InitializedAt: time.Now(),
	}

	if hooks.Init != nil {
		out, err := m.callInit(hooks.Init, config)
		if err != nil {
			m.logger.Error("Module init hook failed", "module", module, "error", err)
			return nil, fmt.Errorf("init hook for module %s: %w", module, err)
		}
		if out != nil {
			state.State = out
		}
	} else {
		m.logger.Debug("Module has no init hook, using default state", "module", module)
	}

	m.mu.Lock()
	m.states[module] = state
	m.mu.Unlock()

	m.emit(ctx, EventTypeLifecycleInitialized, module)
	return state, nil
}

// Reset runs the module's reset hook against its stored state and replaces
// the state with the hook's output. A module without a reset hook keeps its
// state unchanged.
func (m *LifecycleManager) Reset(ctx context.Context, module string, hooks LifecycleHooks) (*LifecycleState, error) {
	m.mu.Lock()
	state, ok := m.states[module]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModuleNotInitialized, module)
	}

	if hooks.Reset == nil {
		m.logger.Debug("Module has no reset hook, passthrough", "module", module)
		return state, nil
	}

	out, err := m.callReset(hooks.Reset, state.State)
	if err != nil {
		return nil, fmt.Errorf("reset hook for module %s: %w", module, err)
	}

	m.mu.Lock()
	state.State = out
	m.mu.Unlock()

	m.emit(ctx, EventTypeLifecycleReset, module)
	return state, nil
}

// Cleanup runs the module's cleanup hook against its stored state. The
// state itself is kept; lifecycle states never auto-expire.
func (m *LifecycleManager) Cleanup(ctx context.Context, module string, hooks LifecycleHooks) error {
	m.mu.Lock()
	state, ok := m.states[module]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrModuleNotInitialized, module)
	}

	if hooks.Cleanup == nil {
		return nil
	}

	if err := m.callCleanup(hooks.Cleanup, state.State); err != nil {
		return fmt.Errorf("cleanup hook for module %s: %w", module, err)
	}

	m.emit(ctx, EventTypeLifecycleCleaned, module)
	return nil
}

// State returns the stored lifecycle state for a module.
func (m *LifecycleManager) State(module string) (*LifecycleState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.states[module]
	return state, ok
}

// InitAll initializes every module in the collection (iterated in name
// order) with a shared config. A failing init hook produces an explicit
// failure record on the result without halting the batch.
func (m *LifecycleManager) InitAll(ctx context.Context, modules map[string]LifecycleHooks, config map[string]any) *Result {
	result, _ := NewResult("lifecycle.init_all")
	initialized := 0

	for _, name := range sortedNames(modules) {
		if _, err := m.Init(ctx, name, modules[name], config); err != nil {
			result.AddError(fmt.Sprintf("module %s: %v", name, err))
			continue
		}
		initialized++
	}

	result.Metadata["initialized"] = initialized
	result.Metadata["total"] = len(modules)
	return result
}

// ResetAll resets every module in the collection. Hook failures are
// downgraded to warnings; the batch always runs to completion.
func (m *LifecycleManager) ResetAll(ctx context.Context, modules map[string]LifecycleHooks) *Result {
	result, _ := NewResult("lifecycle.reset_all")
	reset := 0

	for _, name := range sortedNames(modules) {
		if _, err := m.Reset(ctx, name, modules[name]); err != nil {
			result.AddWarning(fmt.Sprintf("module %s: %v", name, err))
			continue
		}
		reset++
	}

	result.Metadata["reset"] = reset
	result.Metadata["total"] = len(modules)
	return result
}

// CleanupAll cleans up every module in the collection. Hook failures are
// downgraded to warnings; the batch always runs to completion.
func (m *LifecycleManager) CleanupAll(ctx context.Context, modules map[string]LifecycleHooks) *Result {
	result, _ := NewResult("lifecycle.cleanup_all")
	cleaned := 0

	for _, name := range sortedNames(modules) {
		if err := m.Cleanup(ctx, name, modules[name]); err != nil {
			result.AddWarning(fmt.Sprintf("module %s: %v", name, err))
			continue
		}
		cleaned++
	}

	result.Metadata["cleaned"] = cleaned
	result.Metadata["total"] = len(modules)
	return result
}

func (m *LifecycleManager) callInit(hook func(map[string]any) (map[string]any, error), config map[string]any) (out map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHookPanicked, r)
		}
	}()
	return hook(config)
}

func (m *LifecycleManager) callReset(hook func(map[string]any) (map[string]any, error), state map[string]any) (out map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHookPanicked, r)
		}
	}()
	return hook(state)
}

func (m *LifecycleManager) callCleanup(hook func(map[string]any) error, state map[string]any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHookPanicked, r)
		}
	}()
	return hook(state)
}

func (m *LifecycleManager) emit(ctx context.Context, eventType, module string) {
	if m.bus == nil {
		return
	}
	m.bus.Emit(ctx, eventType, map[string]any{"module": module}, module)
}

func sortedNames(modules map[string]LifecycleHooks) []string {
	names := make([]string, 0, len(modules))
	for name := range modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
