package simfeed

import "time"

// Config holds the scenario run configuration.
type Config struct {
	BaseURL   string        // Base URL of the service
	Scenarios []string      // Scenario names to run; empty runs the whole suite
	Interval  time.Duration // Delay between batches on each stream
	Settle    time.Duration // Wait after submission before verification
	Timeout   time.Duration // HTTP request timeout
	TopN      int           // Riskboard entries to fetch
	Reset     bool          // Reset service state before the run
	LogFile   string        // Log file for run output
	Verbose   bool          // Enable verbose logging
}

// ObservationBatch is the ingestion payload posted to /v1/observations.
type ObservationBatch struct {
	StreamID     string        `json:"stream_id"`
	BatchID      string        `json:"batch_id"`
	FrameSeq     uint64        `json:"frame_seq"`
	TS           string        `json:"ts"`
	Frame        *Frame        `json:"frame,omitempty"`
	Observations []Observation `json:"observations"`
}

// Frame carries raw sensor pixels for feed trust analysis.
type Frame struct {
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Channels int    `json:"channels"`
	Pixels   []byte `json:"pixels"`
}

// Observation is one tracked subject position inside a batch.
type Observation struct {
	SubjectID string  `json:"subject_id"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	TS        string  `json:"ts,omitempty"`
}

// AckResponse is returned by the ingestion endpoint.
type AckResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// RiskEntry mirrors one riskboard row.
type RiskEntry struct {
	Rank           int       `json:"rank"`
	StreamID       string    `json:"stream_id"`
	SubjectID      string    `json:"subject_id"`
	Score          float64   `json:"score"`
	Level          string    `json:"level"`
	Zone           string    `json:"zone"`
	BehaviorRisk   float64   `json:"behavior_risk"`
	TrustFactor    float64   `json:"trust_factor"`
	SuspiciousFeed bool      `json:"suspicious_feed"`
	At             time.Time `json:"at"`
}

// FeedStatus mirrors one stream's trust snapshot.
type FeedStatus struct {
	StreamID   string    `json:"stream_id"`
	TrustScore float64   `json:"trust_score"`
	Suspicious bool      `json:"suspicious"`
	Liveness   float64   `json:"liveness"`
	Entropy    float64   `json:"entropy"`
	Motion     float64   `json:"motion"`
	FrameSeq   uint64    `json:"frame_seq"`
	At         time.Time `json:"at"`
}

// StreamStatus mirrors one /v1/streams row.
type StreamStatus struct {
	Feed     FeedStatus `json:"feed"`
	Subjects int        `json:"subjects"`
	Cycles   uint64     `json:"cycles"`
}

// ResetResponse is returned by the reset endpoints.
type ResetResponse struct {
	Status          string `json:"status"`
	SubjectsDropped int    `json:"subjects_dropped"`
}

// Stats holds scenario run statistics.
type Stats struct {
	ScenariosRun     int
	BatchesSubmitted int
	BatchesAccepted  int
	BatchesDuplicate int
	BatchesFailed    int
	RiskEntries      int
	StreamsTracked   int
	FrameResults     int
	FeedAlerts       int
	ChecksPassed     int
	ChecksFailed     int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}
