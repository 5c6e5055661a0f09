package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"dev/bravebird/ui-harness/pkg/config"
	"dev/bravebird/ui-harness/pkg/driver"
	"dev/bravebird/ui-harness/pkg/logging"
	"dev/bravebird/ui-harness/pkg/models"
	"dev/bravebird/ui-harness/pkg/scenario"
	"dev/bravebird/ui-harness/pkg/steps"
)

var (
	configPath   = flag.String("config", "", "Path to the YAML config file")
	featureName  = flag.String("feature", "", "Only run the feature with this name")
	scenarioName = flag.String("scenario", "", "Only run the scenario with this name")
	headed       = flag.Bool("headed", false, "Show the browser window")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *headed {
		cfg.Browser.Headless = false
	}
	logger := logging.New(cfg.Log.Level, os.Stderr)

	features, err := scenario.LoadDir(cfg.FeaturesDir)
	if err != nil {
		log.Fatalf("Failed to load features: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	open := func(ctx context.Context) (*scenario.World, func(), error) {
		drv, err := driver.LaunchRod(ctx, driver.BrowserOptions{
			Headless: cfg.Browser.Headless,
			Bin:      cfg.Browser.Bin,
		})
		if err != nil {
			return nil, nil, err
		}
		release := func() {
			if err := drv.Close(); err != nil {
				logger.Warn("Failed to close browser", "error", err)
			}
		}
		return scenario.NewWorld(drv, cfg, logger), release, nil
	}

	runner := scenario.NewRunner(steps.NewRegistry(), scenario.DefaultHooks(), logger)

	ran, failed := 0, 0
	for _, f := range features {
		if *featureName != "" && f.Name != *featureName {
			continue
		}
		if *scenarioName != "" {
			sc, ok := scenario.FindScenario(f, *scenarioName)
			if !ok {
				continue
			}
			f = &models.Feature{Name: f.Name, Path: f.Path, Scenarios: []models.Scenario{sc}}
		}

		result := runner.RunFeature(ctx, open, f)
		for _, sc := range result.Scenarios {
			ran++
			fmt.Printf("%-8s %s: %s\n", sc.Status, f.Name, sc.Scenario)
			if sc.Status != models.StatusSuccess {
				failed++
				fmt.Printf("         %s\n", sc.ErrorMessage)
			}
		}
	}

	if ran == 0 {
		log.Fatalf("No scenarios matched in %s", cfg.FeaturesDir)
	}
	fmt.Printf("%d scenarios, %d failed\n", ran, failed)
	if failed > 0 {
		os.Exit(1)
	}
}
