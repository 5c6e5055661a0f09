package activities

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/log"
	"go.temporal.io/sdk/temporal"

	"dev/bravebird/ui-harness/pkg/config"
	"dev/bravebird/ui-harness/pkg/driver"
	"dev/bravebird/ui-harness/pkg/logging"
	"dev/bravebird/ui-harness/pkg/models"
	"dev/bravebird/ui-harness/pkg/scenario"
	"dev/bravebird/ui-harness/pkg/temporal/workflows"
)

// ErrSessionNotFound is returned for an unknown or already closed session
var ErrSessionNotFound = errors.New("browser session not found")

// Launcher starts a browser
type Launcher func(ctx context.Context, opts driver.BrowserOptions) (driver.Driver, error)

// RunStore persists scenario results
type RunStore interface {
	UpdateRunStatus(ctx context.Context, id string, status models.RunStatus, errorMsg string) error
	SaveStepResults(ctx context.Context, runID string, steps []models.StepResult) error
}

// BrowserPool manages browser sessions
type BrowserPool struct {
	sessions map[string]*BrowserSessionData
	mu       sync.RWMutex
}

// BrowserSessionData holds data for a browser session
type BrowserSessionData struct {
	World     *scenario.World
	RunID     string
	CreatedAt time.Time
}

// NewBrowserPool returns an empty pool
func NewBrowserPool() *BrowserPool {
	return &BrowserPool{sessions: make(map[string]*BrowserSessionData)}
}

func (p *BrowserPool) get(id string) (*BrowserSessionData, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	session, ok := p.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return session, nil
}

// Len returns the number of open sessions
func (p *BrowserPool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.sessions)
}

// Activities holds activity implementations
type Activities struct {
	Config   *config.Config
	Registry *scenario.Registry
	Launch   Launcher
	Store    RunStore
	Logger   log.Logger
	Sessions *BrowserPool
}

// NewActivities creates new activities. store may be nil, in which case
// results are only logged.
func NewActivities(cfg *config.Config, registry *scenario.Registry, launch Launcher, store RunStore, logger log.Logger) *Activities {
	return &Activities{
		Config:   cfg,
		Registry: registry,
		Launch:   launch,
		Store:    store,
		Logger:   logger,
		Sessions: NewBrowserPool(),
	}
}

// InitializeBrowserActivity launches a browser and prepares it for a scenario
func (a *Activities) InitializeBrowserActivity(ctx context.Context, input workflows.BrowserInitInput) (workflows.BrowserSession, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Initializing browser session", "headless", input.Headless, "runID", input.RunID)

	drv, err := a.Launch(ctx, driver.BrowserOptions{
		Headless: input.Headless,
		Bin:      a.Config.Browser.Bin,
	})
	if err != nil {
		return workflows.BrowserSession{}, fmt.Errorf("failed to launch browser: %w", err)
	}

	world := scenario.NewWorld(drv, a.Config, logging.ForRun(a.Logger, input.RunID))
	if a.Config.Browser.ClearCache {
		if err := drv.ClearBrowsingData(ctx); err != nil {
			drv.Close()
			return workflows.BrowserSession{}, fmt.Errorf("failed to clear browsing data: %w", err)
		}
	}

	// Store session
	sessionID := uuid.New().String()
	a.Sessions.mu.Lock()
	a.Sessions.sessions[sessionID] = &BrowserSessionData{
		World:     world,
		RunID:     input.RunID,
		CreatedAt: time.Now(),
	}
	a.Sessions.mu.Unlock()
	metricSessionsActive.Inc()

	logger.Info("Browser session created", "sessionID", sessionID)
	return workflows.BrowserSession{SessionID: sessionID}, nil
}

// CloseBrowserActivity closes a browser session
func (a *Activities) CloseBrowserActivity(ctx context.Context, sessionID string) error {
	logger := activity.GetLogger(ctx)
	logger.Info("Closing browser session", "sessionID", sessionID)

	a.Sessions.mu.Lock()
	session, ok := a.Sessions.sessions[sessionID]
	delete(a.Sessions.sessions, sessionID)
	a.Sessions.mu.Unlock()

	if !ok {
		return nil // Already closed
	}
	metricSessionsActive.Dec()
	if err := session.World.Driver.Close(); err != nil {
		logger.Warn("Failed to close browser", "sessionID", sessionID, "error", err)
	}
	return nil
}

// ExecuteStepActivity runs one scenario step in an open session. Step
// failures are non-retryable application errors typed by their error kind.
func (a *Activities) ExecuteStepActivity(ctx context.Context, input workflows.StepInput) (models.StepResult, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Executing step", "index", input.Index, "step", input.Step.String())

	result := models.StepResult{
		ID:      uuid.New().String(),
		RunID:   input.RunID,
		Index:   input.Index,
		Keyword: input.Step.Keyword,
		Text:    input.Step.Text,
		Status:  models.StatusRunning,
	}

	session, err := a.Sessions.get(input.SessionID)
	if err != nil {
		return result, err
	}

	startTime := time.Now()
	err = a.Registry.Run(ctx, session.World, input.Step)
	took := time.Since(startTime)
	result.Duration = took.Milliseconds()
	if err != nil {
		kind := scenario.ErrorKind(err)
		recordStep(string(models.StatusFailed), kind, took)
		logger.Error("Step failed", "index", input.Index, "kind", kind, "error", err)
		// The result is dropped with the error, so the duration travels as a detail
		return result, temporal.NewNonRetryableApplicationError(err.Error(), kind, nil, result.Duration)
	}

	result.Status = models.StatusSuccess
	recordStep(string(models.StatusSuccess), "", took)
	activity.RecordHeartbeat(ctx, fmt.Sprintf("Completed step %d", input.Index))
	return result, nil
}

// TakeScreenshotActivity saves a screenshot of the session's current page
func (a *Activities) TakeScreenshotActivity(ctx context.Context, input workflows.ScreenshotInput) (string, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Taking screenshot", "sessionID", input.SessionID)

	session, err := a.Sessions.get(input.SessionID)
	if err != nil {
		return "", err
	}
	return scenario.SaveScreenshot(ctx, session.World, input.Filename)
}

// RecordScenarioResultActivity persists the final result of a scenario
func (a *Activities) RecordScenarioResultActivity(ctx context.Context, result models.ScenarioResult) error {
	logger := activity.GetLogger(ctx)
	logger.Info("Recording scenario result", "runID", result.RunID, "status", result.Status)
	recordScenario(string(result.Status))

	if a.Store == nil {
		return nil
	}

	for i := range result.Steps {
		if result.Steps[i].ID == "" {
			result.Steps[i].ID = uuid.New().String()
		}
	}
	if err := a.Store.SaveStepResults(ctx, result.RunID, result.Steps); err != nil {
		return fmt.Errorf("failed to save step results: %w", err)
	}
	if err := a.Store.UpdateRunStatus(ctx, result.RunID, result.Status, result.ErrorMessage); err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	return nil
}

// RodLauncher launches a local Chrome through rod. The browser outlives the
// activity that launched it, so it is not bound to the activity's context.
func RodLauncher(ctx context.Context, opts driver.BrowserOptions) (driver.Driver, error) {
	drv, err := driver.LaunchRod(context.WithoutCancel(ctx), opts)
	if err != nil {
		return nil, err
	}
	return drv, nil
}
