package activities

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"dev/bravebird/ui-harness/pkg/driver"
	"dev/bravebird/ui-harness/pkg/logging"
	"dev/bravebird/ui-harness/pkg/models"
	"dev/bravebird/ui-harness/pkg/pages/pagestest"
	"dev/bravebird/ui-harness/pkg/steps"
	"dev/bravebird/ui-harness/pkg/temporal/workflows"
)

type fakeStore struct {
	mu       sync.Mutex
	statuses map[string]models.RunStatus
	steps    map[string][]models.StepResult
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		statuses: make(map[string]models.RunStatus),
		steps:    make(map[string][]models.StepResult),
	}
}

func (s *fakeStore) UpdateRunStatus(ctx context.Context, id string, status models.RunStatus, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[id] = status
	return nil
}

func (s *fakeStore) SaveStepResults(ctx context.Context, runID string, steps []models.StepResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps[runID] = steps
	return nil
}

type fixture struct {
	env   *testsuite.TestActivityEnvironment
	acts  *Activities
	site  *pagestest.Wikipedia
	store *fakeStore
}

func newFixture(t *testing.T) *fixture {
	var suite testsuite.WorkflowTestSuite
	site := pagestest.NewWikipedia()
	store := newFakeStore()

	cfg := pagestest.Config()
	cfg.ScreenshotDir = t.TempDir()
	launch := func(ctx context.Context, opts driver.BrowserOptions) (driver.Driver, error) {
		return site, nil
	}

	acts := NewActivities(cfg, steps.NewRegistry(), launch, store, logging.NewRecorder())
	env := suite.NewTestActivityEnvironment()
	env.RegisterActivity(acts)
	return &fixture{env: env, acts: acts, site: site, store: store}
}

func (f *fixture) open(t *testing.T) string {
	val, err := f.env.ExecuteActivity(f.acts.InitializeBrowserActivity, workflows.BrowserInitInput{RunID: "run-1", Headless: true})
	require.NoError(t, err)
	var session workflows.BrowserSession
	require.NoError(t, val.Get(&session))
	require.NotEmpty(t, session.SessionID)
	return session.SessionID
}

func (f *fixture) step(sessionID string, index int, text string) (models.StepResult, error) {
	var result models.StepResult
	val, err := f.env.ExecuteActivity(f.acts.ExecuteStepActivity, workflows.StepInput{
		SessionID: sessionID,
		RunID:     "run-1",
		Index:     index,
		Step:      models.Step{Keyword: "Given", Text: text},
	})
	if err != nil {
		return result, err
	}
	return result, val.Get(&result)
}

func TestBrowserSessionLifecycle(t *testing.T) {
	f := newFixture(t)
	sessionID := f.open(t)

	assert.Equal(t, 1, f.acts.Sessions.Len())
	assert.Equal(t, 1, f.site.Cleared())

	_, err := f.env.ExecuteActivity(f.acts.CloseBrowserActivity, sessionID)
	require.NoError(t, err)
	assert.Equal(t, 0, f.acts.Sessions.Len())
	assert.True(t, f.site.Closed())

	// Closing twice is a no-op.
	_, err = f.env.ExecuteActivity(f.acts.CloseBrowserActivity, sessionID)
	assert.NoError(t, err)
}

func TestExecuteStepActivity(t *testing.T) {
	f := newFixture(t)
	sessionID := f.open(t)

	result, err := f.step(sessionID, 0, "User navigate to Wikipedia")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, result.Status)
	assert.Equal(t, "run-1", result.RunID)
	assert.NotEmpty(t, result.ID)

	result, err = f.step(sessionID, 1, `User search for "Khalid Bahaj"`)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, result.Status)
}

func TestExecuteStepActivityFailureIsTyped(t *testing.T) {
	f := newFixture(t)
	sessionID := f.open(t)

	_, err := f.step(sessionID, 0, "User navigate to Wikipedia")
	require.NoError(t, err)

	_, err = f.step(sessionID, 1, `User click the link "2099–00 Imaginary season"`)
	require.Error(t, err)

	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "ElementNotClickable", appErr.Type())
	assert.True(t, appErr.NonRetryable())
	assert.Contains(t, err.Error(), "2099–00 Imaginary season")

	// The clickable lookup waited out its timeout before failing
	require.True(t, appErr.HasDetails())
	var duration int64
	require.NoError(t, appErr.Details(&duration))
	assert.GreaterOrEqual(t, duration, f.acts.Config.Wait.Timeout.Milliseconds())
}

func TestExecuteStepActivityUnknownSession(t *testing.T) {
	f := newFixture(t)

	_, err := f.step("missing", 0, "User navigate to Wikipedia")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "browser session not found")
}

func TestTakeScreenshotActivity(t *testing.T) {
	f := newFixture(t)
	sessionID := f.open(t)

	val, err := f.env.ExecuteActivity(f.acts.TakeScreenshotActivity, workflows.ScreenshotInput{
		SessionID: sessionID,
		Filename:  "run-1_step_3.png",
	})
	require.NoError(t, err)

	var path string
	require.NoError(t, val.Get(&path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestRecordScenarioResultActivity(t *testing.T) {
	f := newFixture(t)

	_, err := f.env.ExecuteActivity(f.acts.RecordScenarioResultActivity, models.ScenarioResult{
		RunID:  "run-9",
		Status: models.StatusFailed,
		Steps: []models.StepResult{
			{ID: "s1", Index: 0, Status: models.StatusFailed},
			{Index: 1, Status: models.StatusSkipped},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusFailed, f.store.statuses["run-9"])
	saved := f.store.steps["run-9"]
	require.Len(t, saved, 2)
	assert.Equal(t, "s1", saved[0].ID)
	assert.NotEmpty(t, saved[1].ID)
}

func TestRecordWithoutStore(t *testing.T) {
	f := newFixture(t)
	f.acts.Store = nil

	_, err := f.env.ExecuteActivity(f.acts.RecordScenarioResultActivity, models.ScenarioResult{RunID: "run-9"})
	assert.NoError(t, err)
}

func TestInitializeBrowserLaunchFailure(t *testing.T) {
	f := newFixture(t)
	f.acts.Launch = func(ctx context.Context, opts driver.BrowserOptions) (driver.Driver, error) {
		return nil, errors.New("chrome not found")
	}

	_, err := f.env.ExecuteActivity(f.acts.InitializeBrowserActivity, workflows.BrowserInitInput{RunID: "run-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chrome not found")
	assert.Equal(t, 0, f.acts.Sessions.Len())
}

func TestStepMetrics(t *testing.T) {
	f := newFixture(t)
	failed := metricStepsTotal.WithLabelValues("failed", "ElementNotClickable")
	passed := metricStepsTotal.WithLabelValues("success", "")
	failedBefore, passedBefore := testutil.ToFloat64(failed), testutil.ToFloat64(passed)
	activeBefore := testutil.ToFloat64(metricSessionsActive)

	sessionID := f.open(t)
	assert.Equal(t, activeBefore+1, testutil.ToFloat64(metricSessionsActive))

	_, err := f.step(sessionID, 0, "User navigate to Wikipedia")
	require.NoError(t, err)
	_, err = f.step(sessionID, 1, `User click the link "2099–00 Imaginary season"`)
	require.Error(t, err)

	assert.Equal(t, passedBefore+1, testutil.ToFloat64(passed))
	assert.Equal(t, failedBefore+1, testutil.ToFloat64(failed))

	_, err = f.env.ExecuteActivity(f.acts.CloseBrowserActivity, sessionID)
	require.NoError(t, err)
	assert.Equal(t, activeBefore, testutil.ToFloat64(metricSessionsActive))
}
