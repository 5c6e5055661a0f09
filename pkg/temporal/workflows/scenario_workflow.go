package workflows

import (
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"dev/bravebird/ui-harness/pkg/models"
	"dev/bravebird/ui-harness/pkg/scenario"
)

const (
	// ProgressQuery returns the ScenarioResult built so far
	ProgressQuery = "getProgress"

	defaultTimeoutSeconds = 300
)

// NonRetryableErrorTypes are step failures that a retry cannot fix: the
// lookup already waited out its own timeout
var NonRetryableErrorTypes = []string{
	"ElementNotFound",
	"ElementNotClickable",
	"ElementNotVisible",
	"PageLoadTimeout",
	"AssertionFailed",
	"UndefinedStep",
	"StepFailed",
}

// ScenarioWorkflow runs one scenario in its own browser session
func ScenarioWorkflow(ctx workflow.Context, input models.ScenarioInput) (models.ScenarioResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting scenario workflow", "runID", input.RunID, "scenario", input.Scenario.Name)

	result := models.ScenarioResult{
		RunID:    input.RunID,
		Feature:  input.Feature,
		Scenario: input.Scenario.Name,
		Status:   models.StatusRunning,
		Steps:    make([]models.StepResult, 0, len(input.Scenario.Steps)),
	}

	// Register query handler for real-time progress
	err := workflow.SetQueryHandler(ctx, ProgressQuery, func() (models.ScenarioResult, error) {
		return result, nil
	})
	if err != nil {
		logger.Error("Failed to register query handler", "error", err)
	}

	startTime := workflow.Now(ctx)

	ctx = workflow.WithActivityOptions(ctx, activityOptions(input.Timeout))

	var session BrowserSession
	err = workflow.ExecuteActivity(ctx, "InitializeBrowserActivity", BrowserInitInput{
		RunID:    input.RunID,
		Headless: input.Headless,
	}).Get(ctx, &session)
	if err != nil {
		result.Status = models.StatusFailed
		result.ErrorMessage = "Failed to initialize browser: " + err.Error()
		record(ctx, &result)
		return result, nil
	}

	defer func() {
		// Cleanup must run even when the workflow is canceled
		cleanupCtx, _ := workflow.NewDisconnectedContext(ctx)
		_ = workflow.ExecuteActivity(cleanupCtx, "CloseBrowserActivity", session.SessionID).Get(cleanupCtx, nil)
	}()

	var failed error
	for i, step := range input.Scenario.Steps {
		stepResult := models.StepResult{
			RunID:   input.RunID,
			Index:   i,
			Keyword: step.Keyword,
			Text:    step.Text,
			Status:  models.StatusSkipped,
		}
		if failed != nil {
			result.Steps = append(result.Steps, stepResult)
			continue
		}

		logger.Info("Executing step", "index", i, "step", step.String())
		err := workflow.ExecuteActivity(ctx, "ExecuteStepActivity", StepInput{
			SessionID: session.SessionID,
			RunID:     input.RunID,
			Index:     i,
			Step:      step,
		}).Get(ctx, &stepResult)
		if err != nil {
			failed = err
			stepResult.Status = models.StatusFailed
			stepResult.ErrorKind = errorKind(err)
			stepResult.ErrorMessage = errorMessage(err)
			stepResult.Duration = errorDuration(err)
			result.ErrorMessage = fmt.Sprintf("step %d (%s) failed: %s", i+1, step, stepResult.ErrorMessage)

			if !temporal.IsCanceledError(err) {
				// Take screenshot on failure
				var screenshotPath string
				_ = workflow.ExecuteActivity(ctx, "TakeScreenshotActivity", ScreenshotInput{
					SessionID: session.SessionID,
					Filename:  scenario.StepScreenshotName(input.RunID, i),
				}).Get(ctx, &screenshotPath)
				stepResult.ScreenshotPath = screenshotPath
			}
		}
		result.Steps = append(result.Steps, stepResult)
	}

	switch {
	case failed == nil:
		result.Status = models.StatusSuccess
	case temporal.IsCanceledError(failed):
		result.Status = models.StatusCanceled
	default:
		result.Status = models.StatusFailed
	}
	result.TotalDuration = workflow.Now(ctx).Sub(startTime).Milliseconds()

	record(ctx, &result)
	logger.Info("Scenario workflow completed", "status", result.Status, "duration", result.TotalDuration)
	return result, nil
}

// activityOptions are shared by every activity of a run. timeoutSeconds <= 0
// selects the default.
func activityOptions(timeoutSeconds int) workflow.ActivityOptions {
	if timeoutSeconds <= 0 {
		timeoutSeconds = defaultTimeoutSeconds
	}
	return workflow.ActivityOptions{
		StartToCloseTimeout: time.Duration(timeoutSeconds) * time.Second,
		HeartbeatTimeout:    30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        time.Second,
			BackoffCoefficient:     2.0,
			MaximumInterval:        time.Minute,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: NonRetryableErrorTypes,
		},
	}
}

// record persists the result; a store outage does not fail the scenario
func record(ctx workflow.Context, result *models.ScenarioResult) {
	recordCtx, _ := workflow.NewDisconnectedContext(ctx)
	err := workflow.ExecuteActivity(recordCtx, "RecordScenarioResultActivity", *result).Get(recordCtx, nil)
	if err != nil {
		workflow.GetLogger(ctx).Warn("Failed to record scenario result", "runID", result.RunID, "error", err)
	}
}

func errorKind(err error) string {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) && appErr.Type() != "" {
		return appErr.Type()
	}
	if temporal.IsCanceledError(err) {
		return "Canceled"
	}
	return "StepFailed"
}

// errorDuration reads the step duration carried in a failed step's details
func errorDuration(err error) int64 {
	var appErr *temporal.ApplicationError
	if !errors.As(err, &appErr) || !appErr.HasDetails() {
		return 0
	}
	var duration int64
	if appErr.Details(&duration) != nil {
		return 0
	}
	return duration
}

func errorMessage(err error) string {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Error()
	}
	return err.Error()
}

// BrowserSession holds browser session information
type BrowserSession struct {
	SessionID string `json:"session_id"`
}

// BrowserInitInput is the input for browser initialization
type BrowserInitInput struct {
	RunID    string `json:"run_id"`
	Headless bool   `json:"headless"`
}

// StepInput is the input for executing one scenario step
type StepInput struct {
	SessionID string      `json:"session_id"`
	RunID     string      `json:"run_id"`
	Index     int         `json:"index"`
	Step      models.Step `json:"step"`
}

// ScreenshotInput is the input for taking a screenshot
type ScreenshotInput struct {
	SessionID string `json:"session_id"`
	Filename  string `json:"filename"`
}

// WorkflowID returns the Temporal workflow ID of a run. Scenario runs started
// by a feature run follow the same scheme, so any run id can be canceled or
// queried directly.
func WorkflowID(runID string) string {
	return "ui-harness-" + runID
}

// ChildRunID is the run id of the index-th scenario of a feature run
func ChildRunID(runID string, index int) string {
	return fmt.Sprintf("%s-%d", runID, index)
}

// FeatureWorkflow runs every scenario of a feature in parallel child workflows
func FeatureWorkflow(ctx workflow.Context, input models.FeatureInput) (models.FeatureResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting feature workflow", "feature", input.Feature.Name, "scenarioCount", len(input.Feature.Scenarios))

	result := models.FeatureResult{
		Feature:   input.Feature.Name,
		Status:    models.StatusSuccess,
		Scenarios: make([]models.ScenarioResult, len(input.Feature.Scenarios)),
	}

	progress := models.ScenarioResult{
		RunID:   input.RunID,
		Feature: input.Feature.Name,
		Status:  models.StatusRunning,
	}
	err := workflow.SetQueryHandler(ctx, ProgressQuery, func() (models.ScenarioResult, error) {
		return progress, nil
	})
	if err != nil {
		logger.Error("Failed to register query handler", "error", err)
	}

	// Execute child workflows in parallel using selectors
	selector := workflow.NewSelector(ctx)
	for i, sc := range input.Feature.Scenarios {
		childRunID := ChildRunID(input.RunID, i)
		childCtx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{
			WorkflowID: WorkflowID(childRunID),
		})

		future := workflow.ExecuteChildWorkflow(childCtx, ScenarioWorkflow, models.ScenarioInput{
			RunID:    childRunID,
			Feature:  input.Feature.Name,
			Scenario: sc,
			Headless: input.Headless,
			Timeout:  input.Timeout,
		})

		idx, name := i, sc.Name
		selector.AddFuture(future, func(f workflow.Future) {
			var childResult models.ScenarioResult
			if err := f.Get(ctx, &childResult); err != nil {
				childResult = models.ScenarioResult{
					RunID:        childRunID,
					Feature:      input.Feature.Name,
					Scenario:     name,
					Status:       models.StatusFailed,
					ErrorMessage: err.Error(),
				}
			}
			result.Scenarios[idx] = childResult
		})
	}

	// Wait for all child workflows to complete
	for range input.Feature.Scenarios {
		selector.Select(ctx)
	}

	failed := 0
	for _, sc := range result.Scenarios {
		if sc.Status != models.StatusSuccess {
			failed++
		}
	}
	if failed > 0 {
		result.Status = models.StatusFailed
		progress.ErrorMessage = fmt.Sprintf("%d of %d scenarios failed", failed, len(result.Scenarios))
	}

	// The feature run itself has no steps; only its status is recorded
	progress.Status = result.Status
	record(workflow.WithActivityOptions(ctx, activityOptions(input.Timeout)), &progress)

	logger.Info("Feature workflow completed", "feature", input.Feature.Name, "status", result.Status)
	return result, nil
}
