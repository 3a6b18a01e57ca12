package plotforge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cucumber/godog"
)

// plotOrchestrationBDDContext holds the test context for plot orchestration
// BDD scenarios.
type plotOrchestrationBDDContext struct {
	engine    *Engine
	baseDir   string
	outputDir string
	result    *Result
	logger    Logger
}

func (c *plotOrchestrationBDDContext) iHaveAPlotGenerationEngine() error {
	base, err := os.MkdirTemp("", "plotforge-bdd-modules-")
	if err != nil {
		return err
	}
	out, err := os.MkdirTemp("", "plotforge-bdd-output-")
	if err != nil {
		return err
	}
	c.baseDir = base
	c.outputDir = out
	c.engine = NewEngine(c.logger)
	c.result = nil
	return nil
}

func (c *plotOrchestrationBDDContext) writePlotModule(name string, files map[string]string) error {
	dir := filepath.Join(c.baseDir, plotModulesDir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for file, content := range files {
		if err := os.WriteFile(filepath.Join(dir, file), []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func (c *plotOrchestrationBDDContext) iHaveAModuleDirectoryWithAWorkingPlotModule() error {
	return c.writePlotModule("scatter", map[string]string{"module.go": writingPlotSource})
}

func (c *plotOrchestrationBDDContext) iHaveTwoPlotModulesWhereOneRequiresTheOther(dependent, dependency string) error {
	if err := c.writePlotModule(dependent, map[string]string{
		"module.go":      writingPlotSource,
		ManifestFileName: fmt.Sprintf("name = %q\nrequires = [%q]\n", dependent, dependency),
	}); err != nil {
		return err
	}
	return c.writePlotModule(dependency, map[string]string{"module.go": writingPlotSource})
}

func (c *plotOrchestrationBDDContext) theDirectoryAlsoContainsAModuleWithoutAnEntryFile() error {
	return c.writePlotModule("broken", map[string]string{
		ManifestFileName: "name = \"broken\"\n",
	})
}

func (c *plotOrchestrationBDDContext) iHaveTwoPlotModulesThatRequireEachOther() error {
	if err := c.writePlotModule("ring_a", map[string]string{
		"module.go":      writingPlotSource,
		ManifestFileName: "name = \"ring_a\"\nrequires = [\"ring_b\"]\n",
	}); err != nil {
		return err
	}
	return c.writePlotModule("ring_b", map[string]string{
		"module.go":      writingPlotSource,
		ManifestFileName: "name = \"ring_b\"\nrequires = [\"ring_a\"]\n",
	})
}

func (c *plotOrchestrationBDDContext) iOrchestratePlotGenerationToleratingFailures() error {
	c.result = c.engine.OrchestratePlotGeneration(context.Background(), nil, c.baseDir, c.outputDir, true)
	return nil
}

func (c *plotOrchestrationBDDContext) iOrchestratePlotGenerationAbortingOnFailure() error {
	c.result = c.engine.OrchestratePlotGeneration(context.Background(), nil, c.baseDir, c.outputDir, false)
	return nil
}

func (c *plotOrchestrationBDDContext) theOrchestrationShouldSucceed() error {
	if c.result == nil {
		return fmt.Errorf("orchestration was never run")
	}
	if c.result.Status != StatusSuccess {
		return fmt.Errorf("expected success, got %s (errors: %v, warnings: %v)",
			c.result.Status, c.result.ErrorMessages(), c.result.WarningMessages())
	}
	return nil
}

func (c *plotOrchestrationBDDContext) theOrchestrationShouldReportAPartialStatus() error {
	if c.result == nil {
		return fmt.Errorf("orchestration was never run")
	}
	if c.result.Status != StatusPartial {
		return fmt.Errorf("expected partial, got %s", c.result.Status)
	}
	return nil
}

func (c *plotOrchestrationBDDContext) theOrchestrationShouldReportAFailedStatus() error {
	if c.result == nil {
		return fmt.Errorf("orchestration was never run")
	}
	if c.result.Status != StatusFailed {
		return fmt.Errorf("expected failed, got %s", c.result.Status)
	}
	return nil
}

func (c *plotOrchestrationBDDContext) theProducedPlotsShouldBeRegisteredAsArtifacts() error {
	index, ok := c.engine.Artifacts().(*MemoryArtifactIndex)
	if !ok {
		return fmt.Errorf("engine is not using the in-memory artifact index")
	}
	artifacts := index.Artifacts()
	if len(artifacts) == 0 {
		return fmt.Errorf("no artifacts registered")
	}
	for _, artifact := range artifacts {
		if artifact.Checksum == "" {
			return fmt.Errorf("artifact %s has no checksum", artifact.Path)
		}
	}
	return nil
}

func (c *plotOrchestrationBDDContext) anOrchestrationCompletedEventShouldBeLogged() error {
	events := c.engine.Bus().EventLog(&EventFilter{Type: EventTypeOrchestrationCompleted})
	if len(events) != 1 {
		return fmt.Errorf("expected one orchestration completed event, got %d", len(events))
	}
	return nil
}

func (c *plotOrchestrationBDDContext) oneModuleShouldBeRegisteredBeforeAnother(first, second string) error {
	events := c.engine.Bus().EventLog(&EventFilter{Type: EventTypeModuleRegistered})
	firstIdx, secondIdx := -1, -1
	for i, event := range events {
		switch event.Source() {
		case first:
			firstIdx = i
		case second:
			secondIdx = i
		}
	}
	if firstIdx < 0 || secondIdx < 0 {
		return fmt.Errorf("registration events missing: %s at %d, %s at %d", first, firstIdx, second, secondIdx)
	}
	if firstIdx >= secondIdx {
		return fmt.Errorf("%s was registered at %d, after %s at %d", first, firstIdx, second, secondIdx)
	}
	return nil
}

func (c *plotOrchestrationBDDContext) aHighSeverityWarningShouldNameTheBrokenModule() error {
	for _, warning := range c.result.Warnings {
		if warning.Severity == SeverityHigh && strings.Contains(warning.Message, "broken") {
			return nil
		}
	}
	return fmt.Errorf("no high severity warning names the broken module, warnings: %v", c.result.WarningMessages())
}

func (c *plotOrchestrationBDDContext) theFailureShouldMentionACircularDependency() error {
	for _, msg := range c.result.ErrorMessages() {
		if strings.Contains(msg, "circular") {
			return nil
		}
	}
	return fmt.Errorf("no error mentions a circular dependency, errors: %v", c.result.ErrorMessages())
}

// Test runner
func TestPlotOrchestrationBDD(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: func(ctx *godog.ScenarioContext) {
			testContext := &plotOrchestrationBDDContext{logger: newTestLogger(t)}

			// Background
			ctx.Step(`^I have a plot generation engine$`, testContext.iHaveAPlotGenerationEngine)

			// Module directory setup
			ctx.Step(`^I have a module directory with a working plot module$`, testContext.iHaveAModuleDirectoryWithAWorkingPlotModule)
			ctx.Step(`^I have two plot modules where "([^"]*)" requires "([^"]*)"$`, testContext.iHaveTwoPlotModulesWhereOneRequiresTheOther)
			ctx.Step(`^the directory also contains a module without an entry file$`, testContext.theDirectoryAlsoContainsAModuleWithoutAnEntryFile)
			ctx.Step(`^I have two plot modules that require each other$`, testContext.iHaveTwoPlotModulesThatRequireEachOther)

			// Orchestration
			ctx.Step(`^I orchestrate plot generation tolerating failures$`, testContext.iOrchestratePlotGenerationToleratingFailures)
			ctx.Step(`^I orchestrate plot generation aborting on failure$`, testContext.iOrchestratePlotGenerationAbortingOnFailure)

			// Outcomes
			ctx.Step(`^the orchestration should succeed$`, testContext.theOrchestrationShouldSucceed)
			ctx.Step(`^the orchestration should report a partial status$`, testContext.theOrchestrationShouldReportAPartialStatus)
			ctx.Step(`^the orchestration should report a failed status$`, testContext.theOrchestrationShouldReportAFailedStatus)
			ctx.Step(`^the produced plots should be registered as artifacts$`, testContext.theProducedPlotsShouldBeRegisteredAsArtifacts)
			ctx.Step(`^an orchestration completed event should be logged$`, testContext.anOrchestrationCompletedEventShouldBeLogged)
			ctx.Step(`^"([^"]*)" should be registered before "([^"]*)"$`, testContext.oneModuleShouldBeRegisteredBeforeAnother)
			ctx.Step(`^a high severity warning should name the broken module$`, testContext.aHighSeverityWarningShouldNameTheBrokenModule)
			ctx.Step(`^the failure should mention a circular dependency$`, testContext.theFailureShouldMentionACircularDependency)
		},
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features/plot_orchestration.feature"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run BDD tests")
	}
}
