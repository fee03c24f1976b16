// Package simfeed drives a running kestrel service with scripted perimeter
// scenarios and verifies the assessments it produces: zone classification,
// behavior patterns, camera trust and fused risk scores.
package simfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/okian/kestrel/pkg/logger"
)

// Run executes the scenario suite end to end against a live service.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{StartTime: time.Now()}

	scenarios, err := selectScenarios(config.Scenarios)
	if err != nil {
		return err
	}
	stats.ScenariosRun = len(scenarios)

	logger.Get().Info(ctx, "starting kestrel scenario run",
		logger.String("baseURL", config.BaseURL),
		logger.Int("scenarios", len(scenarios)),
		logger.Duration("interval", config.Interval),
		logger.Duration("settle", config.Settle),
		logger.String("logFile", config.LogFile),
		logger.Bool("verbose", config.Verbose))

	// Step 1: the service must be up before anything is scripted.
	if err := checkServiceHealth(ctx, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: optionally clear state left over from earlier runs.
	if config.Reset {
		if err := resetService(ctx, config); err != nil {
			return fmt.Errorf("service reset failed: %w", err)
		}
	}

	// Step 3: subscribe to the live socket before the first batch goes out so
	// no transient pattern event is missed.
	watch, err := newWatcher(ctx, config.BaseURL)
	if err != nil {
		return fmt.Errorf("socket subscription failed: %w", err)
	}
	defer watch.stop()

	// Step 4: drive every scenario.
	if err := submitScenarios(ctx, config, scenarios, time.Now().UTC(), stats); err != nil {
		return fmt.Errorf("scenario submission failed: %w", err)
	}

	// Step 5: let the pipeline drain.
	logger.Get().Info(ctx, "waiting for the pipeline to settle", logger.Duration("settle", config.Settle))
	time.Sleep(config.Settle)

	// Step 6: pull the final assessments.
	found, err := retrieveFindings(ctx, config, scenarios, stats)
	if err != nil {
		return fmt.Errorf("assessment retrieval failed: %w", err)
	}

	// Step 7: check every scenario against its expectation.
	verr := verifyScenarios(ctx, scenarios, found, watch, stats)

	// Step 8: exercise the per-stream reset path on the first scenario.
	if err := resetStream(ctx, config, &scenarios[0]); err != nil {
		logger.Get().Warn(ctx, "stream reset check failed", logger.Error(err))
	}

	stats.FrameResults = watch.resultCount()
	stats.FeedAlerts = watch.alertTotal()
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	if verr != nil {
		return verr
	}

	logger.Get().Info(ctx, "scenario run completed successfully")
	return nil
}

// selectScenarios resolves the configured scenario names, defaulting to the
// whole suite.
func selectScenarios(names []string) ([]Scenario, error) {
	all := DefaultScenarios()
	if len(names) == 0 {
		return all, nil
	}

	byName := make(map[string]Scenario, len(all))
	for _, scn := range all {
		byName[scn.Name] = scn
	}

	picked := make([]Scenario, 0, len(names))
	for _, name := range names {
		scn, ok := byName[strings.TrimSpace(name)]
		if !ok {
			return nil, fmt.Errorf("unknown scenario %q", name)
		}
		picked = append(picked, scn)
	}
	return picked, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	client := newHTTPClient(config.Timeout)
	resp, err := client.Get(ctx, config.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// resetService drops all scored state so the run starts from a clean slate.
func resetService(ctx context.Context, config *Config) error {
	client := newHTTPClient(config.Timeout)
	resp, err := client.Post(ctx, config.BaseURL+"/v1/reset", nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("reset returned status %d", resp.StatusCode)
	}

	var out ResetResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return err
	}
	logger.Get().Info(ctx, "service state reset", logger.Int("subjectsDropped", out.SubjectsDropped))
	return nil
}

// findings snapshot the service state used for verification.
type findings struct {
	riskboard []RiskEntry
	streams   map[string]StreamStatus
	subjects  map[string]RiskEntry
}

// retrieveFindings pulls the riskboard, the stream statuses and every
// scenario subject's current entry.
func retrieveFindings(ctx context.Context, config *Config, scenarios []Scenario, stats *Stats) (*findings, error) {
	client := newHTTPClient(config.Timeout)

	out := &findings{
		streams:  make(map[string]StreamStatus),
		subjects: make(map[string]RiskEntry),
	}

	limit := config.TopN
	if limit < len(scenarios) {
		limit = len(scenarios)
	}
	risksURL := fmt.Sprintf("%s/v1/risks?limit=%d", config.BaseURL, limit)
	if err := client.getJSON(ctx, risksURL, &out.riskboard); err != nil {
		return nil, fmt.Errorf("riskboard fetch failed: %w", err)
	}

	var streams []StreamStatus
	if err := client.getJSON(ctx, config.BaseURL+"/v1/streams", &streams); err != nil {
		return nil, fmt.Errorf("stream status fetch failed: %w", err)
	}
	for _, st := range streams {
		out.streams[st.Feed.StreamID] = st
	}

	for i := range scenarios {
		var entry RiskEntry
		subjectURL := config.BaseURL + "/v1/subjects/" + scenarios[i].SubjectID
		if err := client.getJSON(ctx, subjectURL, &entry); err != nil {
			return nil, fmt.Errorf("subject %s fetch failed: %w", scenarios[i].SubjectID, err)
		}
		out.subjects[entry.SubjectID] = entry
	}

	stats.RiskEntries = len(out.riskboard)
	stats.StreamsTracked = len(out.streams)

	logger.Get().Info(ctx, "retrieved final assessments",
		logger.Int("riskEntries", len(out.riskboard)),
		logger.Int("streams", len(out.streams)),
		logger.Int("subjects", len(out.subjects)))
	return out, nil
}

// resetStream clears one scenario's stream and confirms its subject is gone,
// covering the per-stream reset path end to end.
func resetStream(ctx context.Context, config *Config, scn *Scenario) error {
	client := newHTTPClient(config.Timeout)

	resp, err := client.Post(ctx, config.BaseURL+"/v1/streams/"+scn.StreamID+"/reset", nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stream reset returned status %d", resp.StatusCode)
	}

	var out ResetResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return err
	}

	check, err := client.Get(ctx, config.BaseURL+"/v1/subjects/"+scn.SubjectID)
	if err != nil {
		return err
	}
	defer func() { _ = check.Body.Close() }()

	if check.StatusCode != http.StatusNotFound {
		return fmt.Errorf("subject %s still present after stream reset (status %d)", scn.SubjectID, check.StatusCode)
	}

	logger.Get().Info(ctx, "stream reset verified",
		logger.String("stream", scn.StreamID),
		logger.Int("subjectsDropped", out.SubjectsDropped))
	return nil
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var successRate, batchesPerSecond float64
	if stats.BatchesSubmitted > 0 {
		successRate = float64(stats.BatchesAccepted) / float64(stats.BatchesSubmitted) * 100
	}
	if stats.Duration > 0 {
		batchesPerSecond = float64(stats.BatchesSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("scenariosRun", stats.ScenariosRun),
		logger.Int("batchesSubmitted", stats.BatchesSubmitted),
		logger.Int("batchesAccepted", stats.BatchesAccepted),
		logger.Int("batchesDuplicate", stats.BatchesDuplicate),
		logger.Int("batchesFailed", stats.BatchesFailed),
		logger.Int("riskEntries", stats.RiskEntries),
		logger.Int("streamsTracked", stats.StreamsTracked),
		logger.Int("frameResults", stats.FrameResults),
		logger.Int("feedAlerts", stats.FeedAlerts),
		logger.Int("checksPassed", stats.ChecksPassed),
		logger.Int("checksFailed", stats.ChecksFailed),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("successRate", successRate),
		logger.Float64("batchesPerSecond", batchesPerSecond))
}
