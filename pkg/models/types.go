package models

import (
	"fmt"
	"time"
)

// ==================== Locator Types ====================

// By is a locator strategy
type By string

const (
	ByID              By = "id"
	ByName            By = "name"
	ByClassName       By = "class name"
	ByCSSSelector     By = "css selector"
	ByXPath           By = "xpath"
	ByLinkText        By = "link text"
	ByPartialLinkText By = "partial link text"
	ByTagName         By = "tag name"
)

// Locator identifies zero or more elements in the current document
type Locator struct {
	By    By     `json:"by" yaml:"by"`
	Value string `json:"value" yaml:"value"`
}

// String renders the locator the way it appears in log lines and error messages
func (l Locator) String() string {
	return fmt.Sprintf("(%s, %q)", l.By, l.Value)
}

// Valid reports whether the strategy is known and the value is non-empty
func (l Locator) Valid() bool {
	if l.Value == "" {
		return false
	}
	switch l.By {
	case ByID, ByName, ByClassName, ByCSSSelector, ByXPath, ByLinkText, ByPartialLinkText, ByTagName:
		return true
	}
	return false
}

// Size is the rendered size of an element in CSS pixels
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ==================== Feature Types ====================

// Feature is a parsed feature file
type Feature struct {
	Name      string     `json:"name"`
	Path      string     `json:"path,omitempty"`
	Scenarios []Scenario `json:"scenarios"`
}

// Scenario is a named sequence of steps
type Scenario struct {
	Name  string `json:"name"`
	Line  int    `json:"line,omitempty"`
	Steps []Step `json:"steps"`
}

// Step is a single given/when/then line
type Step struct {
	Keyword string `json:"keyword"`
	Text    string `json:"text"`
	Line    int    `json:"line,omitempty"`
}

// String renders the step as written in the feature file
func (s Step) String() string {
	return s.Keyword + " " + s.Text
}

// ==================== Run Types ====================

// RunStatus represents the status of a scenario run or a step
type RunStatus string

const (
	StatusPending  RunStatus = "pending"
	StatusRunning  RunStatus = "running"
	StatusSuccess  RunStatus = "success"
	StatusFailed   RunStatus = "failed"
	StatusSkipped  RunStatus = "skipped"
	StatusCanceled RunStatus = "canceled"
)

// Terminal reports whether no further updates are expected for the status
func (s RunStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusCanceled
}

// StepResult is the outcome of executing a single step
type StepResult struct {
	ID             string    `json:"id" db:"id"`
	RunID          string    `json:"run_id" db:"run_id"`
	Index          int       `json:"index" db:"step_index"`
	Keyword        string    `json:"keyword" db:"keyword"`
	Text           string    `json:"text" db:"text"`
	Status         RunStatus `json:"status" db:"status"`
	ErrorKind      string    `json:"error_kind,omitempty" db:"error_kind"`
	ErrorMessage   string    `json:"error_message,omitempty" db:"error_message"`
	ScreenshotPath string    `json:"screenshot_path,omitempty" db:"screenshot_path"`
	Duration       int64     `json:"duration_ms" db:"duration_ms"`
}

// ScenarioResult is the outcome of running one scenario
type ScenarioResult struct {
	RunID         string       `json:"run_id"`
	Feature       string       `json:"feature"`
	Scenario      string       `json:"scenario"`
	Status        RunStatus    `json:"status"`
	Steps         []StepResult `json:"steps"`
	TotalDuration int64        `json:"total_duration_ms"`
	ErrorMessage  string       `json:"error_message,omitempty"`
}

// FeatureResult is the outcome of running every scenario of a feature
type FeatureResult struct {
	Feature   string           `json:"feature"`
	Status    RunStatus        `json:"status"`
	Scenarios []ScenarioResult `json:"scenarios"`
}

// ScenarioRun represents a persisted execution of a scenario
type ScenarioRun struct {
	ID                 string     `json:"id" db:"id"`
	Feature            string     `json:"feature" db:"feature"`
	Scenario           string     `json:"scenario" db:"scenario"`
	TemporalWorkflowID string     `json:"temporal_workflow_id" db:"temporal_workflow_id"`
	TemporalRunID      string     `json:"temporal_run_id" db:"temporal_run_id"`
	Status             RunStatus  `json:"status" db:"status"`
	StartedAt          *time.Time `json:"started_at" db:"started_at"`
	CompletedAt        *time.Time `json:"completed_at" db:"completed_at"`
	ErrorMessage       string     `json:"error_message,omitempty" db:"error_message"`

	// Computed fields
	Steps []StepResult `json:"steps,omitempty"`
}

// ==================== Workflow Types ====================

// ScenarioInput is the input of a scenario workflow
type ScenarioInput struct {
	RunID    string   `json:"run_id"`
	Feature  string   `json:"feature"`
	Scenario Scenario `json:"scenario"`
	Headless bool     `json:"headless"`
	Timeout  int      `json:"timeout_seconds"`
}

// FeatureInput is the input of a feature workflow
type FeatureInput struct {
	RunID    string  `json:"run_id"`
	Feature  Feature `json:"feature"`
	Headless bool    `json:"headless"`
	Timeout  int     `json:"timeout_seconds"`
}

// ==================== API Request/Response Types ====================

// RunRequest represents a request to run a scenario
type RunRequest struct {
	Feature  string `json:"feature"`
	Scenario string `json:"scenario"`
	Headless bool   `json:"headless"`
}

// WSMessage represents a WebSocket message for real-time updates
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}
