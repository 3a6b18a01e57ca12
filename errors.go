package plotforge

import (
	"errors"
)

// Package errors, grouped by the failure taxonomy used across the engine.
var (
	// Result contract errors
	ErrOperationEmpty = errors.New("operation name cannot be empty")
	ErrInvalidStatus  = errors.New("invalid result status")
	ErrNoResults      = errors.New("no results to combine")

	// Configuration / schema errors
	ErrSchemaNil          = errors.New("schema is nil")
	ErrInvalidPattern     = errors.New("invalid constraint pattern")
	ErrPipelineConfigRead = errors.New("failed to read pipeline config")

	// Event bus errors
	ErrCallbackNil       = errors.New("event callback cannot be nil")
	ErrEventTypeEmpty    = errors.New("event type cannot be empty")
	ErrListenerNameEmpty = errors.New("listener name cannot be empty")

	// Discovery errors
	ErrBaseDirNotFound   = errors.New("module base directory not found")
	ErrUnknownCategory   = errors.New("unknown module category")
	ErrModuleDirNotFound = errors.New("module directory not found")

	// Load errors
	ErrEntryFileNotFound  = errors.New("no candidate entry file found")
	ErrContextBuildFailed = errors.New("execution context construction failed")
	ErrSymbolNotFound     = errors.New("symbol not found in module scope")
	ErrSymbolWrongType    = errors.New("symbol has wrong signature")

	// Interface validation errors
	ErrInterfaceUnsatisfied = errors.New("module satisfies no recognized capability set")
	ErrModuleNotValidated   = errors.New("module has not passed interface validation")
	ErrModuleRejected       = errors.New("module was rejected and cannot be registered")

	// Registry errors
	ErrModuleNotFound = errors.New("module not found in registry")

	// Dependency resolution errors
	ErrCircularDependency = errors.New("circular dependency detected")
	ErrDependencyMissing  = errors.New("module depends on non-existent module")
	ErrIncompleteOrder    = errors.New("topological order does not cover all modules")

	// Lifecycle errors
	ErrHookPanicked         = errors.New("lifecycle hook panicked")
	ErrModuleNotInitialized = errors.New("module lifecycle state not initialized")

	// Pipeline errors
	ErrOutputDirCreate = errors.New("failed to create output directory")

	// Artifact registrar errors
	ErrArtifactNotFound = errors.New("artifact file not found")

	// Manifest errors
	ErrManifestNotFound = errors.New("module manifest not found")
	ErrManifestParse    = errors.New("failed to parse module manifest")
)
