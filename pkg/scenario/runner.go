package scenario

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/log"

	"dev/bravebird/ui-harness/pkg/finder"
	"dev/bravebird/ui-harness/pkg/models"
)

// Hooks run around scenarios and on failed steps. Any hook may be nil.
type Hooks struct {
	BeforeScenario func(ctx context.Context, w *World, sc models.Scenario) error
	AfterScenario  func(ctx context.Context, w *World, sc models.Scenario, result *models.ScenarioResult)
	// OnStepFailure returns the path of a saved screenshot, or "".
	OnStepFailure func(ctx context.Context, w *World, runID string, index int, err error) string
}

// DefaultHooks clears browsing data before each scenario when configured and
// saves a screenshot of every failed step
func DefaultHooks() Hooks {
	return Hooks{
		BeforeScenario: func(ctx context.Context, w *World, sc models.Scenario) error {
			if !w.Config.Browser.ClearCache {
				return nil
			}
			if err := w.Driver.ClearBrowsingData(ctx); err != nil {
				return fmt.Errorf("failed to clear browsing data: %w", err)
			}
			return nil
		},
		OnStepFailure: func(ctx context.Context, w *World, runID string, index int, err error) string {
			path, shotErr := SaveScreenshot(ctx, w, StepScreenshotName(runID, index))
			if shotErr != nil {
				w.Logger.Warn("Failed to capture failure screenshot", "error", shotErr)
				return ""
			}
			return path
		},
	}
}

// StepScreenshotName is the file name used for the screenshot of a failed step
func StepScreenshotName(runID string, index int) string {
	return fmt.Sprintf("%s_step_%d.png", runID, index)
}

// SaveScreenshot writes a PNG of the current page to the screenshot directory
func SaveScreenshot(ctx context.Context, w *World, filename string) (string, error) {
	if err := os.MkdirAll(w.Config.ScreenshotDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create screenshot dir: %w", err)
	}

	data, err := w.Driver.Screenshot(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to take screenshot: %w", err)
	}

	path := filepath.Join(w.Config.ScreenshotDir, filename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to save screenshot: %w", err)
	}
	return path, nil
}

// Opener starts a fresh browser session for one scenario. The returned
// function releases it.
type Opener func(ctx context.Context) (*World, func(), error)

// Runner executes scenarios step by step
type Runner struct {
	registry *Registry
	hooks    Hooks
	logger   log.Logger
}

// NewRunner creates a runner
func NewRunner(registry *Registry, hooks Hooks, logger log.Logger) *Runner {
	return &Runner{
		registry: registry,
		hooks:    hooks,
		logger:   logger,
	}
}

// RunFeature runs every scenario of f, each in its own session
func (r *Runner) RunFeature(ctx context.Context, open Opener, f *models.Feature) models.FeatureResult {
	result := models.FeatureResult{
		Feature: f.Name,
		Status:  models.StatusSuccess,
	}

	for _, sc := range f.Scenarios {
		var scResult models.ScenarioResult

		w, release, err := open(ctx)
		if err != nil {
			scResult = models.ScenarioResult{
				RunID:        uuid.New().String(),
				Feature:      f.Name,
				Scenario:     sc.Name,
				Status:       models.StatusFailed,
				ErrorMessage: fmt.Sprintf("failed to open browser session: %v", err),
			}
		} else {
			scResult = r.RunScenario(ctx, w, uuid.New().String(), f.Name, sc)
			release()
		}

		if scResult.Status != models.StatusSuccess {
			result.Status = models.StatusFailed
		}
		result.Scenarios = append(result.Scenarios, scResult)
	}
	return result
}

// RunScenario runs the steps of sc in order. The first failing step fails the
// scenario; later steps are reported as skipped.
func (r *Runner) RunScenario(ctx context.Context, w *World, runID, feature string, sc models.Scenario) models.ScenarioResult {
	start := time.Now()
	logger := log.With(r.logger, "run_id", runID, "scenario", sc.Name)

	result := models.ScenarioResult{
		RunID:    runID,
		Feature:  feature,
		Scenario: sc.Name,
		Status:   models.StatusRunning,
		Steps:    make([]models.StepResult, 0, len(sc.Steps)),
	}

	var failed error
	if r.hooks.BeforeScenario != nil {
		if err := r.hooks.BeforeScenario(ctx, w, sc); err != nil {
			failed = fmt.Errorf("before scenario hook: %w", err)
			result.ErrorMessage = failed.Error()
		}
	}

	logger.Info("Starting scenario", "steps", len(sc.Steps))
	for i, step := range sc.Steps {
		stepResult := models.StepResult{
			ID:      uuid.New().String(),
			RunID:   runID,
			Index:   i,
			Keyword: step.Keyword,
			Text:    step.Text,
			Status:  models.StatusSkipped,
		}
		if failed != nil {
			result.Steps = append(result.Steps, stepResult)
			continue
		}

		stepStart := time.Now()
		err := r.registry.Run(ctx, w, step)
		stepResult.Duration = time.Since(stepStart).Milliseconds()

		if err != nil {
			failed = err
			stepResult.Status = models.StatusFailed
			stepResult.ErrorKind = ErrorKind(err)
			stepResult.ErrorMessage = err.Error()
			result.ErrorMessage = fmt.Sprintf("step %d (%s) failed: %v", i+1, step, err)
			logger.Error("Step failed", "step", step.String(), "error", err)

			if r.hooks.OnStepFailure != nil {
				stepResult.ScreenshotPath = r.hooks.OnStepFailure(ctx, w, runID, i, err)
			}
		} else {
			stepResult.Status = models.StatusSuccess
			logger.Debug("Step passed", "step", step.String(), "duration_ms", stepResult.Duration)
		}
		result.Steps = append(result.Steps, stepResult)
	}

	switch {
	case failed == nil:
		result.Status = models.StatusSuccess
	case errors.Is(failed, context.Canceled):
		result.Status = models.StatusCanceled
	default:
		result.Status = models.StatusFailed
	}
	result.TotalDuration = time.Since(start).Milliseconds()

	if r.hooks.AfterScenario != nil {
		r.hooks.AfterScenario(ctx, w, sc, &result)
	}
	logger.Info("Scenario finished", "status", string(result.Status), "duration_ms", result.TotalDuration)
	return result
}

// ErrorKind classifies a step error for reports: a domain error kind, an
// assertion, an undefined step, or a generic step failure
func ErrorKind(err error) string {
	if kind := finder.KindName(err); kind != "" {
		return kind
	}
	var assertErr interface{ AssertionFailed() bool }
	switch {
	case errors.As(err, &assertErr) && assertErr.AssertionFailed():
		return "AssertionFailed"
	case errors.Is(err, ErrUndefinedStep):
		return "UndefinedStep"
	case errors.Is(err, context.Canceled):
		return "Canceled"
	}
	return "StepFailed"
}
