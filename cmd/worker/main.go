package main

import (
	"log"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"dev/bravebird/ui-harness/pkg/api"
	"dev/bravebird/ui-harness/pkg/config"
	"dev/bravebird/ui-harness/pkg/database"
	"dev/bravebird/ui-harness/pkg/logging"
	"dev/bravebird/ui-harness/pkg/steps"
	"dev/bravebird/ui-harness/pkg/temporal/activities"
	"dev/bravebird/ui-harness/pkg/temporal/workflows"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger := logging.New(cfg.Log.Level, os.Stderr)

	temporalHost := getEnvOrDefault("TEMPORAL_HOST", "localhost:7233")
	mysqlDSN := getEnvOrDefault("MYSQL_DSN", "harness:harness@tcp(localhost:3306)/harness?parseTime=true")

	// Create Temporal client
	c, err := client.Dial(client.Options{
		HostPort: temporalHost,
		Logger:   logger,
	})
	if err != nil {
		log.Fatalf("Failed to create Temporal client: %v", err)
	}
	defer c.Close()

	// Results are only logged when the database is unreachable
	var store activities.RunStore
	db, err := database.New(mysqlDSN)
	if err != nil {
		log.Printf("Warning: Failed to connect to database: %v", err)
	} else {
		defer db.Close()
		store = db
	}

	// Create activities
	acts := activities.NewActivities(cfg, steps.NewRegistry(), activities.RodLauncher, store, logger)

	// Create worker
	w := worker.New(c, api.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     5,
		MaxConcurrentWorkflowTaskExecutionSize: 10,
	})

	// Register workflows
	w.RegisterWorkflow(workflows.ScenarioWorkflow)
	w.RegisterWorkflow(workflows.FeatureWorkflow)

	// Register activities
	w.RegisterActivity(acts.InitializeBrowserActivity)
	w.RegisterActivity(acts.CloseBrowserActivity)
	w.RegisterActivity(acts.ExecuteStepActivity)
	w.RegisterActivity(acts.TakeScreenshotActivity)
	w.RegisterActivity(acts.RecordScenarioResultActivity)

	// Step and session metrics
	metricsAddr := getEnvOrDefault("METRICS_ADDR", ":9090")
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			log.Printf("Warning: metrics server stopped: %v", err)
		}
	}()

	log.Printf("Starting Temporal worker on task queue: %s", api.TaskQueue)
	log.Printf("Temporal host: %s", temporalHost)

	// Start worker
	err = w.Run(worker.InterruptCh())
	if err != nil {
		log.Fatalf("Worker failed: %v", err)
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
