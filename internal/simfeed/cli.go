package simfeed

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/okian/kestrel/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string) error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "simfeed_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	multiWriter := io.MultiWriter(os.Stdout, file)
	log.SetOutput(multiWriter)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ListScenarios prints the scenario names and what each one scripts.
func ListScenarios() {
	for _, scn := range DefaultScenarios() {
		fmt.Printf("  %-16s %s\n", scn.Name, scn.Summary)
	}
}

// ShowHelp prints usage information for the simfeed tool.
func ShowHelp() {
	os.Stdout.WriteString(`Kestrel Scenario Feeder
=======================

Drives a running kestrel service with scripted perimeter scenarios and
verifies the assessments it produces: zone classification, behavior
patterns, camera trust and fused risk scores.

Usage:
  go run cmd/simfeed/main.go [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -scenario string
        Comma-separated scenario names to run (default: all)
  -interval duration
        Delay between batches on each stream (default 20ms)
  -settle duration
        Wait after submission before verification (default 2s)
  -timeout duration
        HTTP request timeout (default 30s)
  -top int
        Riskboard entries to fetch (default 20)
  -reset
        Reset service state before the run
  -log string
        Log file for run output (default: simfeed_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -list
        List available scenarios
  -help
        Show this help message

Scenarios:
  steady-patrol     guard on the outer road, healthy feed, stays LOW
  fence-pacer       paces the danger strip, raises HIGH with pacing
  gate-loiterer     dwells by the gate, raises MEDIUM with loitering
  sprint-probe      walk-sprint-walk run, transient sudden_movement
  approach-prober   repeated approach and retreat, raises CRITICAL
  wire-breach       steady advance into the intrusion strip
  frozen-feed       camera freezes mid-run, feed goes suspicious
  blackout-feed     camera blacked out, trust collapses

Examples:
  # Run the full suite with defaults
  go run cmd/simfeed/main.go

  # Run a single scenario against a remote service
  go run cmd/simfeed/main.go -scenario fence-pacer -url http://10.0.0.5:9080

  # Faster pacing with a clean slate and verbose output
  go run cmd/simfeed/main.go -reset -interval 5ms -verbose
`)
}
