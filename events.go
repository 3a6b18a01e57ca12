package plotforge

// Event type constants for the engine's lifecycle notifications.
// Following the CloudEvents specification, these use reverse domain
// notation.
const (
	// Per-module pipeline events
	EventTypeModuleDiscovered = "com.plotforge.module.discovered"
	EventTypeModuleLoaded     = "com.plotforge.module.loaded"
	EventTypeModuleValidated  = "com.plotforge.module.validated"
	EventTypeModuleRejected   = "com.plotforge.module.rejected"
	EventTypeModuleRegistered = "com.plotforge.module.registered"

	// Pipeline and orchestration events
	EventTypePipelineInitialized    = "com.plotforge.pipeline.initialized"
	EventTypeAnalysisCompleted      = "com.plotforge.analysis.completed"
	EventTypePlotGenerated          = "com.plotforge.plot.generated"
	EventTypePlotFailed             = "com.plotforge.plot.failed"
	EventTypeOrchestrationCompleted = "com.plotforge.orchestration.completed"

	// Lifecycle hook events
	EventTypeLifecycleInitialized = "com.plotforge.lifecycle.initialized"
	EventTypeLifecycleReset       = "com.plotforge.lifecycle.reset"
	EventTypeLifecycleCleaned     = "com.plotforge.lifecycle.cleaned"

	// Collaborator events
	EventTypeArtifactRegistered = "com.plotforge.artifact.registered"
	EventTypeModuleDirChanged   = "com.plotforge.moduledir.changed"
)
