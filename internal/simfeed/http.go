package simfeed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/kestrel/pkg/logger"
)

// backpressureRetryDelay is how long to back off before retrying a batch the
// service shed under load.
const backpressureRetryDelay = 50 * time.Millisecond

// HTTPClient wraps http.Client with request building and JSON decoding.
type HTTPClient struct {
	client *http.Client
}

// newHTTPClient creates a new HTTP client with a request timeout.
func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{client: &http.Client{Timeout: timeout}}
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with an optional JSON body.
func (c *HTTPClient) Post(ctx context.Context, url string, body interface{}) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// getJSON performs a GET and decodes the JSON response into out.
func (c *HTTPClient) getJSON(ctx context.Context, url string, out interface{}) error {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// submitOutcome classifies one batch submission.
type submitOutcome int

const (
	outcomeAccepted submitOutcome = iota
	outcomeDuplicate
	outcomeFailed
)

// submitScenarios drives every scenario concurrently, one goroutine per
// stream. Batches within a scenario go out in order so per-stream frame
// sequencing holds; the opening batch is posted a second time to confirm
// ingestion dedupe.
func submitScenarios(ctx context.Context, config *Config, scenarios []Scenario, start time.Time, stats *Stats) error {
	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/v1/observations"

	var (
		accepted  int64
		duplicate int64
		failed    int64
		submitted int64
	)

	var wg sync.WaitGroup
	for i := range scenarios {
		scn := &scenarios[i]
		wg.Add(1)
		go func() {
			defer wg.Done()

			batches := buildBatches(scn, start)
			for j := range batches {
				select {
				case <-ctx.Done():
					return
				default:
				}

				outcome := postBatch(ctx, client, url, &batches[j])
				atomic.AddInt64(&submitted, 1)
				switch outcome {
				case outcomeAccepted:
					atomic.AddInt64(&accepted, 1)
				case outcomeDuplicate:
					atomic.AddInt64(&duplicate, 1)
				default:
					atomic.AddInt64(&failed, 1)
				}

				if j == 0 {
					// Replay the opening batch. The service must ack it as a
					// duplicate without processing it twice.
					atomic.AddInt64(&submitted, 1)
					if postBatch(ctx, client, url, &batches[0]) == outcomeDuplicate {
						atomic.AddInt64(&duplicate, 1)
					} else {
						atomic.AddInt64(&failed, 1)
					}
				}

				if config.Interval > 0 {
					time.Sleep(config.Interval)
				}
			}

			if config.Verbose {
				logger.Get().Info(ctx, "scenario submitted",
					logger.String("scenario", scn.Name),
					logger.String("stream", scn.StreamID),
					logger.Int("batches", len(batches)))
			}
		}()
	}
	wg.Wait()

	stats.BatchesSubmitted = int(atomic.LoadInt64(&submitted))
	stats.BatchesAccepted = int(atomic.LoadInt64(&accepted))
	stats.BatchesDuplicate = int(atomic.LoadInt64(&duplicate))
	stats.BatchesFailed = int(atomic.LoadInt64(&failed))

	logger.Get().Info(ctx, "submission completed",
		logger.Int("submitted", stats.BatchesSubmitted),
		logger.Int("accepted", stats.BatchesAccepted),
		logger.Int("duplicate", stats.BatchesDuplicate),
		logger.Int("failed", stats.BatchesFailed))

	if stats.BatchesFailed > 0 {
		return fmt.Errorf("%d of %d batches failed", stats.BatchesFailed, stats.BatchesSubmitted)
	}
	return nil
}

// postBatch submits one batch and classifies the ack. A shed batch is retried
// once after a short pause.
func postBatch(ctx context.Context, client *HTTPClient, url string, batch *ObservationBatch) submitOutcome {
	resp, err := client.Post(ctx, url, batch)
	if err != nil {
		logger.Get().Warn(ctx, "batch post failed",
			logger.String("stream", batch.StreamID),
			logger.Uint64("seq", batch.FrameSeq),
			logger.Error(err))
		return outcomeFailed
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return outcomeFailed
	}

	switch resp.StatusCode {
	case http.StatusAccepted:
		return outcomeAccepted
	case http.StatusOK:
		var ack AckResponse
		if err := json.Unmarshal(body, &ack); err == nil && !ack.Duplicate {
			logger.Get().Warn(ctx, "unexpected non-duplicate 200 ack",
				logger.String("stream", batch.StreamID),
				logger.Uint64("seq", batch.FrameSeq))
		}
		return outcomeDuplicate
	case http.StatusTooManyRequests:
		time.Sleep(backpressureRetryDelay)
		retry, err := client.Post(ctx, url, batch)
		if err != nil {
			return outcomeFailed
		}
		defer func() { _ = retry.Body.Close() }()
		if retry.StatusCode == http.StatusAccepted {
			return outcomeAccepted
		}
		return outcomeFailed
	default:
		logger.Get().Warn(ctx, "batch rejected",
			logger.String("stream", batch.StreamID),
			logger.Uint64("seq", batch.FrameSeq),
			logger.Int("status", resp.StatusCode),
			logger.String("body", string(body)))
		return outcomeFailed
	}
}
