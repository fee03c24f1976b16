package simfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/kestrel/pkg/logger"
)

// Socket message types, as broadcast by the service.
const (
	messageFrameResult = "frame_result"
	messageFeedAlert   = "feed_alert"
)

const (
	handshakeTimeout = 10 * time.Second
	drainTimeout     = 2 * time.Second
)

// watcher subscribes to the live assessment socket and folds every broadcast
// into per-subject and per-stream tallies. Transient pattern events only
// exist on the socket, so verification reads them from here rather than from
// the riskboard.
type watcher struct {
	conn *websocket.Conn

	mu       sync.Mutex
	patterns map[string]map[string]int // subject id -> pattern kind -> count
	peaks    map[string]float64        // subject id -> highest score seen
	alerts   map[string]int            // stream id -> feed alert count
	results  int

	done chan struct{}
}

// wsEnvelope frames every socket broadcast.
type wsEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// frameResultData carries one processed batch's assessments.
type frameResultData struct {
	StreamID string       `json:"stream_id"`
	FrameSeq uint64       `json:"frame_seq"`
	Results  []riskResult `json:"results"`
	Feed     FeedStatus   `json:"feed"`
}

// riskResult is the slice of one assessment the watcher cares about.
type riskResult struct {
	SubjectID string         `json:"subject_id"`
	Score     float64        `json:"score"`
	Level     string         `json:"level"`
	Zone      string         `json:"zone"`
	Events    []patternEvent `json:"events"`
}

type patternEvent struct {
	Kind       string  `json:"kind"`
	Confidence float64 `json:"confidence"`
}

// feedAlertData reports a stream flipping its suspicious flag.
type feedAlertData struct {
	StreamID   string    `json:"stream_id"`
	Suspicious bool      `json:"suspicious"`
	TrustScore float64   `json:"trust_score"`
	At         time.Time `json:"at"`
}

// newWatcher dials the socket and starts the read loop. The watcher must be
// running before the first batch goes out or early pattern events are lost.
func newWatcher(ctx context.Context, baseURL string) (*watcher, error) {
	wsURL, err := socketURL(baseURL)
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
		}
		return nil, fmt.Errorf("failed to dial %s: %w", wsURL, err)
	}

	w := &watcher{
		conn:     conn,
		patterns: make(map[string]map[string]int),
		peaks:    make(map[string]float64),
		alerts:   make(map[string]int),
		done:     make(chan struct{}),
	}
	go w.loop(ctx)

	logger.Get().Info(ctx, "subscribed to assessment socket", logger.String("url", wsURL))
	return w, nil
}

// socketURL derives the websocket endpoint from the service base URL.
func socketURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported base URL scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}

// loop reads broadcasts until the connection closes.
func (w *watcher) loop(ctx context.Context) {
	defer close(w.done)
	for {
		_, payload, err := w.conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Get().Debug(ctx, "socket read ended", logger.Error(err))
			}
			return
		}
		w.ingest(ctx, payload)
	}
}

// ingest decodes one broadcast and updates the tallies.
func (w *watcher) ingest(ctx context.Context, payload []byte) {
	var envelope wsEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		logger.Get().Warn(ctx, "undecodable socket message", logger.Error(err))
		return
	}

	switch envelope.Type {
	case messageFrameResult:
		var data frameResultData
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			logger.Get().Warn(ctx, "bad frame_result payload", logger.Error(err))
			return
		}
		w.recordResults(&data)
	case messageFeedAlert:
		var data feedAlertData
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			logger.Get().Warn(ctx, "bad feed_alert payload", logger.Error(err))
			return
		}
		w.recordAlert(&data)
	default:
		// Keepalive and future message types are fine to skip.
	}
}

func (w *watcher) recordResults(data *frameResultData) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.results += len(data.Results)
	for i := range data.Results {
		res := &data.Results[i]
		if res.Score > w.peaks[res.SubjectID] {
			w.peaks[res.SubjectID] = res.Score
		}
		for _, ev := range res.Events {
			kinds, ok := w.patterns[res.SubjectID]
			if !ok {
				kinds = make(map[string]int)
				w.patterns[res.SubjectID] = kinds
			}
			kinds[ev.Kind]++
		}
	}
}

func (w *watcher) recordAlert(data *feedAlertData) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.alerts[data.StreamID]++
}

// patternsSeen returns a copy of the pattern tallies for one subject.
func (w *watcher) patternsSeen(subjectID string) map[string]int {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make(map[string]int, len(w.patterns[subjectID]))
	for kind, n := range w.patterns[subjectID] {
		out[kind] = n
	}
	return out
}

// peakScore returns the highest score broadcast for one subject.
func (w *watcher) peakScore(subjectID string) float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.peaks[subjectID]
}

// alertCount returns the feed alerts broadcast for one stream.
func (w *watcher) alertCount(streamID string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.alerts[streamID]
}

// alertTotal returns the feed alerts broadcast across all streams.
func (w *watcher) alertTotal() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	total := 0
	for _, n := range w.alerts {
		total += n
	}
	return total
}

// resultCount returns how many per-subject assessments arrived.
func (w *watcher) resultCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.results
}

// stop closes the connection politely and waits for the read loop to drain.
func (w *watcher) stop() {
	deadline := time.Now().Add(time.Second)
	_ = w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"), deadline)
	_ = w.conn.Close()

	select {
	case <-w.done:
	case <-time.After(drainTimeout):
	}
}
