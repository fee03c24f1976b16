package main

import (
	"context"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/okian/kestrel/internal/simfeed"
)

// Default configuration constants.
const (
	defaultInterval   = 20 * time.Millisecond
	defaultSettle     = 2 * time.Second
	defaultTimeout    = 30 * time.Second
	defaultTopN       = 20
	defaultRunTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:9080", "Base URL of the service")
		scenarios = flag.String("scenario", "", "Comma-separated scenario names to run (default: all)")
		interval  = flag.Duration("interval", defaultInterval, "Delay between batches on each stream")
		settle    = flag.Duration("settle", defaultSettle, "Wait after submission before verification")
		timeout   = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		topN      = flag.Int("top", defaultTopN, "Riskboard entries to fetch")
		reset     = flag.Bool("reset", false, "Reset service state before the run")
		logFile   = flag.String("log", "", "Log file for run output (default: simfeed_TIMESTAMP.log)")
		verbose   = flag.Bool("verbose", false, "Enable verbose logging")
		list      = flag.Bool("list", false, "List available scenarios")
		help      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simfeed.ShowHelp()
		return
	}
	if *list {
		simfeed.ListScenarios()
		return
	}

	// Setup logging
	if err := simfeed.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return
	}

	// Create context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	var names []string
	if *scenarios != "" {
		names = strings.Split(*scenarios, ",")
	}

	// Create run configuration
	config := &simfeed.Config{
		BaseURL:   *baseURL,
		Scenarios: names,
		Interval:  *interval,
		Settle:    *settle,
		Timeout:   *timeout,
		TopN:      *topN,
		Reset:     *reset,
		LogFile:   *logFile,
		Verbose:   *verbose,
	}

	// Run the scenario suite
	if err := simfeed.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Scenario run failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
