package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.temporal.io/sdk/client"

	"dev/bravebird/ui-harness/pkg/models"
	"dev/bravebird/ui-harness/pkg/scenario"
	"dev/bravebird/ui-harness/pkg/temporal/workflows"
)

const TaskQueue = "ui-harness"

// RunStore is the persistence the API reads runs from
type RunStore interface {
	CreateScenarioRun(ctx context.Context, run *models.ScenarioRun) error
	GetScenarioRun(ctx context.Context, id string) (*models.ScenarioRun, error)
	ListScenarioRuns(ctx context.Context, limit int) ([]models.ScenarioRun, error)
	UpdateRunStatus(ctx context.Context, id string, status models.RunStatus, errorMsg string) error
}

// Handlers contains API handlers
type Handlers struct {
	store          RunStore
	temporalClient client.Client
	featuresDir    string
	screenshotDir  string
	pollInterval   time.Duration
	upgrader       websocket.Upgrader
}

// NewHandlers creates new API handlers. store may be nil, in which case runs
// can be started and streamed but not listed.
func NewHandlers(store RunStore, temporalClient client.Client, featuresDir, screenshotDir string) *Handlers {
	return &Handlers{
		store:          store,
		temporalClient: temporalClient,
		featuresDir:    featuresDir,
		screenshotDir:  screenshotDir,
		pollInterval:   500 * time.Millisecond,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Router registers every route on a new mux router
func (h *Handlers) Router() *mux.Router {
	router := mux.NewRouter()

	// Health check
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, map[string]string{"status": "ok"})
	}).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	apiRouter := router.PathPrefix("/api").Subrouter()

	// Features
	apiRouter.HandleFunc("/features", h.ListFeatures).Methods("GET")

	// Runs
	apiRouter.HandleFunc("/runs", h.RunScenario).Methods("POST")
	apiRouter.HandleFunc("/runs", h.ListRuns).Methods("GET")
	apiRouter.HandleFunc("/runs/{id}", h.GetRun).Methods("GET")
	apiRouter.HandleFunc("/runs/{id}/cancel", h.CancelRun).Methods("POST")

	// WebSocket for real-time updates
	apiRouter.HandleFunc("/runs/{id}/stream", h.StreamRunUpdates).Methods("GET")

	// Screenshots
	apiRouter.HandleFunc("/screenshots/{filename}", h.ServeScreenshot).Methods("GET")

	return router
}

// ==================== Feature Handlers ====================

type featureSummary struct {
	Name      string   `json:"name"`
	Path      string   `json:"path"`
	Scenarios []string `json:"scenarios"`
}

// ListFeatures lists the feature files and their scenarios
func (h *Handlers) ListFeatures(w http.ResponseWriter, r *http.Request) {
	features, err := scenario.LoadDir(h.featuresDir)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	summaries := make([]featureSummary, 0, len(features))
	for _, f := range features {
		names := make([]string, 0, len(f.Scenarios))
		for _, sc := range f.Scenarios {
			names = append(names, sc.Name)
		}
		summaries = append(summaries, featureSummary{Name: f.Name, Path: f.Path, Scenarios: names})
	}
	respondJSON(w, summaries)
}

func (h *Handlers) findFeature(name string) (*models.Feature, error) {
	features, err := scenario.LoadDir(h.featuresDir)
	if err != nil {
		return nil, err
	}
	for _, f := range features {
		if f.Name == name {
			return f, nil
		}
	}
	return nil, nil
}

// ==================== Run Handlers ====================

// RunScenario starts a scenario workflow, or a feature workflow when no
// scenario is named
func (h *Handlers) RunScenario(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	feature, err := h.findFeature(req.Feature)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if feature == nil {
		http.Error(w, "Feature not found", http.StatusNotFound)
		return
	}

	runID := uuid.New().String()
	var (
		workflowName string
		input        interface{}
	)
	if req.Scenario == "" {
		workflowName = "FeatureWorkflow"
		input = models.FeatureInput{RunID: runID, Feature: *feature, Headless: req.Headless}
	} else {
		sc, ok := scenario.FindScenario(feature, req.Scenario)
		if !ok {
			http.Error(w, "Scenario not found", http.StatusNotFound)
			return
		}
		workflowName = "ScenarioWorkflow"
		input = models.ScenarioInput{RunID: runID, Feature: feature.Name, Scenario: sc, Headless: req.Headless}
	}

	run := &models.ScenarioRun{
		ID:                 runID,
		Feature:            feature.Name,
		Scenario:           req.Scenario,
		TemporalWorkflowID: workflows.WorkflowID(runID),
		Status:             models.StatusPending,
	}
	if h.store != nil {
		if err := h.createRuns(ctx, run, feature, req.Scenario == ""); err != nil {
			http.Error(w, "Failed to create run: "+err.Error(), http.StatusInternalServerError)
			return
		}
	}

	workflowOptions := client.StartWorkflowOptions{
		ID:        workflows.WorkflowID(runID),
		TaskQueue: TaskQueue,
	}

	we, err := h.temporalClient.ExecuteWorkflow(ctx, workflowOptions, workflowName, input)
	if err != nil {
		if h.store != nil {
			h.store.UpdateRunStatus(ctx, runID, models.StatusFailed, err.Error())
		}
		http.Error(w, "Failed to start workflow: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if h.store != nil {
		h.store.UpdateRunStatus(ctx, runID, models.StatusRunning, "")
	}

	respondJSON(w, map[string]interface{}{
		"run_id":               runID,
		"temporal_workflow_id": we.GetID(),
		"temporal_run_id":      we.GetRunID(),
		"status":               models.StatusRunning,
	})
}

// createRuns stores the run and, for a whole feature, one child run per
// scenario so their step results have a parent row
func (h *Handlers) createRuns(ctx context.Context, run *models.ScenarioRun, feature *models.Feature, wholeFeature bool) error {
	if err := h.store.CreateScenarioRun(ctx, run); err != nil {
		return err
	}
	if !wholeFeature {
		return nil
	}
	for i, sc := range feature.Scenarios {
		child := &models.ScenarioRun{
			ID:                 workflows.ChildRunID(run.ID, i),
			Feature:            feature.Name,
			Scenario:           sc.Name,
			TemporalWorkflowID: workflows.WorkflowID(workflows.ChildRunID(run.ID, i)),
			Status:             models.StatusPending,
		}
		if err := h.store.CreateScenarioRun(ctx, child); err != nil {
			return err
		}
	}
	return nil
}

// ListRuns lists recent scenario runs
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.store == nil {
		http.Error(w, "Database not available", http.StatusServiceUnavailable)
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := h.store.ListScenarioRuns(ctx, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, runs)
}

// GetRun retrieves a scenario run with its step results
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	if h.store == nil {
		http.Error(w, "Database not available", http.StatusServiceUnavailable)
		return
	}

	run, err := h.store.GetScenarioRun(ctx, id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if run == nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	respondJSON(w, run)
}

// CancelRun cancels a running scenario workflow
func (h *Handlers) CancelRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	if err := h.temporalClient.CancelWorkflow(ctx, workflows.WorkflowID(id), ""); err != nil {
		http.Error(w, "Failed to cancel workflow: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if h.store != nil {
		h.store.UpdateRunStatus(ctx, id, models.StatusCanceled, "Cancelled by user")
	}

	respondJSON(w, map[string]string{"status": "canceled"})
}

// StreamRunUpdates streams run progress via WebSocket until the run ends
func (h *Handlers) StreamRunUpdates(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["id"]

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx := r.Context()

	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	lastStatus := models.RunStatus("")
	lastStepCount := -1

	for {
		status, stepResults, err := h.progress(ctx, runID)
		if err == nil && (status != lastStatus || len(stepResults) != lastStepCount) {
			msg := models.WSMessage{
				Type: "run_update",
				Payload: map[string]interface{}{
					"run_id":       runID,
					"status":       status,
					"step_results": stepResults,
				},
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}

			lastStatus = status
			lastStepCount = len(stepResults)

			// Close if completed
			if status.Terminal() {
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

var errNoProgress = errors.New("no progress available")

// progress asks the running workflow first and falls back to the store
func (h *Handlers) progress(ctx context.Context, runID string) (models.RunStatus, []models.StepResult, error) {
	if h.temporalClient != nil {
		resp, err := h.temporalClient.QueryWorkflow(ctx, workflows.WorkflowID(runID), "", workflows.ProgressQuery)
		if err == nil {
			var result models.ScenarioResult
			if resp.Get(&result) == nil && result.Status != "" {
				return result.Status, result.Steps, nil
			}
		}
	}

	if h.store != nil {
		run, err := h.store.GetScenarioRun(ctx, runID)
		if err == nil && run != nil {
			return run.Status, run.Steps, nil
		}
	}
	return "", nil, errNoProgress
}

// ==================== Screenshot Handlers ====================

// ServeScreenshot serves a screenshot file
func (h *Handlers) ServeScreenshot(w http.ResponseWriter, r *http.Request) {
	filename := mux.Vars(r)["filename"]

	// Only files directly inside the screenshot directory are served
	filePath := filepath.Join(h.screenshotDir, filepath.Base(filename))

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		http.Error(w, "Screenshot not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeFile(w, r, filePath)
}

// ==================== Helpers ====================

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, fmt.Sprintf("failed to encode response: %v", err), http.StatusInternalServerError)
	}
}
