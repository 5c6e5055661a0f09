package workflows_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"dev/bravebird/ui-harness/pkg/driver"
	"dev/bravebird/ui-harness/pkg/logging"
	"dev/bravebird/ui-harness/pkg/models"
	"dev/bravebird/ui-harness/pkg/pages/pagestest"
	"dev/bravebird/ui-harness/pkg/steps"
	"dev/bravebird/ui-harness/pkg/temporal/activities"
	"dev/bravebird/ui-harness/pkg/temporal/workflows"
)

var searchScenario = models.Scenario{
	Name: "Open the IR Tanger season from a player search",
	Steps: []models.Step{
		{Keyword: "Given", Text: "User navigate to Wikipedia"},
		{Keyword: "When", Text: "User validate the wikipedia logo"},
		{Keyword: "And", Text: `User search for "Khalid Bahaj"`},
		{Keyword: "And", Text: "User click the link"},
		{Keyword: "Then", Text: "User validate the header text"},
	},
}

var missingLinkScenario = models.Scenario{
	Name: "Click a link that does not exist",
	Steps: []models.Step{
		{Keyword: "Given", Text: "User navigate to Wikipedia"},
		{Keyword: "When", Text: `User search for "Khalid Bahaj"`},
		{Keyword: "And", Text: `User click the link "2099–00 Imaginary season"`},
		{Keyword: "Then", Text: "User validate the header text"},
	},
}

type recordingStore struct {
	mu       sync.Mutex
	statuses map[string]models.RunStatus
}

func (s *recordingStore) UpdateRunStatus(ctx context.Context, id string, status models.RunStatus, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[id] = status
	return nil
}

func (s *recordingStore) SaveStepResults(ctx context.Context, runID string, steps []models.StepResult) error {
	return nil
}

func newEnv(t *testing.T, launch activities.Launcher) (*testsuite.TestWorkflowEnvironment, *activities.Activities, *recordingStore) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()

	cfg := pagestest.Config()
	cfg.ScreenshotDir = t.TempDir()
	store := &recordingStore{statuses: make(map[string]models.RunStatus)}

	acts := activities.NewActivities(cfg, steps.NewRegistry(), launch, store, logging.NewRecorder())
	env.RegisterActivity(acts)
	env.RegisterWorkflow(workflows.ScenarioWorkflow)
	env.RegisterWorkflow(workflows.FeatureWorkflow)
	return env, acts, store
}

func freshSite(ctx context.Context, opts driver.BrowserOptions) (driver.Driver, error) {
	return pagestest.NewWikipedia(), nil
}

func TestScenarioWorkflowSuccess(t *testing.T) {
	env, acts, store := newEnv(t, freshSite)

	env.ExecuteWorkflow(workflows.ScenarioWorkflow, models.ScenarioInput{
		RunID:    "run-1",
		Feature:  "Wikipedia search",
		Scenario: searchScenario,
		Headless: true,
	})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result models.ScenarioResult
	require.NoError(t, env.GetWorkflowResult(&result))

	assert.Equal(t, models.StatusSuccess, result.Status, result.ErrorMessage)
	require.Len(t, result.Steps, 5)
	for _, step := range result.Steps {
		assert.Equal(t, models.StatusSuccess, step.Status, step.Text)
	}
	assert.Equal(t, models.StatusSuccess, store.statuses["run-1"])
	assert.Equal(t, 0, acts.Sessions.Len(), "browser session must be closed")

	val, err := env.QueryWorkflow(workflows.ProgressQuery)
	require.NoError(t, err)
	var progress models.ScenarioResult
	require.NoError(t, val.Get(&progress))
	assert.Equal(t, models.StatusSuccess, progress.Status)
}

func TestScenarioWorkflowStepFailure(t *testing.T) {
	env, acts, store := newEnv(t, freshSite)

	env.ExecuteWorkflow(workflows.ScenarioWorkflow, models.ScenarioInput{
		RunID:    "run-2",
		Feature:  "Wikipedia search",
		Scenario: missingLinkScenario,
	})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result models.ScenarioResult
	require.NoError(t, env.GetWorkflowResult(&result))

	assert.Equal(t, models.StatusFailed, result.Status)
	require.Len(t, result.Steps, 4)
	assert.Equal(t, models.StatusSuccess, result.Steps[1].Status)

	failed := result.Steps[2]
	assert.Equal(t, models.StatusFailed, failed.Status)
	assert.Equal(t, "ElementNotClickable", failed.ErrorKind)
	assert.Positive(t, failed.Duration, "failed steps keep their duration")
	assert.Contains(t, failed.ErrorMessage, "2099–00 Imaginary season")
	assert.NotEmpty(t, failed.ScreenshotPath)
	assert.Contains(t, result.ErrorMessage, "step 3")

	assert.Equal(t, models.StatusSkipped, result.Steps[3].Status)
	assert.Equal(t, models.StatusFailed, store.statuses["run-2"])
	assert.Equal(t, 0, acts.Sessions.Len())
}

func TestScenarioWorkflowBrowserLaunchFailure(t *testing.T) {
	env, _, store := newEnv(t, func(ctx context.Context, opts driver.BrowserOptions) (driver.Driver, error) {
		return nil, errors.New("chrome not found")
	})

	env.ExecuteWorkflow(workflows.ScenarioWorkflow, models.ScenarioInput{
		RunID:    "run-3",
		Scenario: searchScenario,
	})
	require.True(t, env.IsWorkflowCompleted())

	var result models.ScenarioResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, models.StatusFailed, result.Status)
	assert.Contains(t, result.ErrorMessage, "Failed to initialize browser")
	assert.Empty(t, result.Steps)
	assert.Equal(t, models.StatusFailed, store.statuses["run-3"])
}

func TestFeatureWorkflow(t *testing.T) {
	env, _, store := newEnv(t, freshSite)

	env.ExecuteWorkflow(workflows.FeatureWorkflow, models.FeatureInput{
		RunID: "run-4",
		Feature: models.Feature{
			Name:      "Wikipedia search",
			Scenarios: []models.Scenario{searchScenario, missingLinkScenario},
		},
	})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result models.FeatureResult
	require.NoError(t, env.GetWorkflowResult(&result))

	assert.Equal(t, models.StatusFailed, result.Status)
	require.Len(t, result.Scenarios, 2)
	assert.Equal(t, "run-4-0", result.Scenarios[0].RunID)
	assert.Equal(t, models.StatusSuccess, result.Scenarios[0].Status)
	assert.Equal(t, models.StatusFailed, result.Scenarios[1].Status)

	assert.Equal(t, models.StatusFailed, store.statuses["run-4"])
	assert.Equal(t, models.StatusSuccess, store.statuses["run-4-0"])

	val, err := env.QueryWorkflow(workflows.ProgressQuery)
	require.NoError(t, err)
	var progress models.ScenarioResult
	require.NoError(t, val.Get(&progress))
	assert.Equal(t, models.StatusFailed, progress.Status)
	assert.Equal(t, "1 of 2 scenarios failed", progress.ErrorMessage)
}
