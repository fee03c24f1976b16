// Package model contains domain models passed between layers.
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Zone is a perimeter proximity band ordered by severity.
type Zone int

// Perimeter zones from least to most severe.
const (
	ZoneSafe Zone = iota
	ZoneWarning
	ZoneDanger
	ZoneIntrusion
)

var zoneNames = map[Zone]string{
	ZoneSafe:      "SAFE",
	ZoneWarning:   "WARNING",
	ZoneDanger:    "DANGER",
	ZoneIntrusion: "INTRUSION",
}

// String returns the canonical zone name.
func (z Zone) String() string {
	if name, ok := zoneNames[z]; ok {
		return name
	}
	return fmt.Sprintf("Zone(%d)", int(z))
}

// MarshalJSON encodes the zone as its canonical name.
func (z Zone) MarshalJSON() ([]byte, error) {
	return json.Marshal(z.String())
}

// UnmarshalJSON decodes a canonical zone name.
func (z *Zone) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for zone, n := range zoneNames {
		if n == name {
			*z = zone
			return nil
		}
	}
	return fmt.Errorf("unknown zone %q", name)
}

// AlertLevel is the categorical severity of an intent risk score.
type AlertLevel int

// Alert levels from least to most severe.
const (
	LevelLow AlertLevel = iota
	LevelMedium
	LevelHigh
	LevelCritical
)

var levelNames = map[AlertLevel]string{
	LevelLow:      "LOW",
	LevelMedium:   "MEDIUM",
	LevelHigh:     "HIGH",
	LevelCritical: "CRITICAL",
}

// String returns the canonical level name.
func (l AlertLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("AlertLevel(%d)", int(l))
}

// MarshalJSON encodes the level as its canonical name.
func (l AlertLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON decodes a canonical level name.
func (l *AlertLevel) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for level, n := range levelNames {
		if n == name {
			*l = level
			return nil
		}
	}
	return fmt.Errorf("unknown alert level %q", name)
}

// PatternKind names a detected movement pattern.
type PatternKind string

// Movement patterns recognized by the behavior tracker.
const (
	PatternPacing          PatternKind = "pacing"
	PatternApproachRetreat PatternKind = "approach_retreat"
	PatternLoitering       PatternKind = "loitering"
	PatternSuddenMovement  PatternKind = "sudden_movement"
)

// BehaviorEvent is one detected movement pattern with its confidence.
type BehaviorEvent struct {
	Kind       PatternKind   `json:"kind"`
	Confidence float64       `json:"confidence"` // [0,1]
	WindowSpan time.Duration `json:"window_span"`
}

// IntentRiskResult is the per-subject, per-frame assessment, carrying every
// factor that produced the final score so downstream consumers can explain it.
type IntentRiskResult struct {
	StreamID       string          `json:"stream_id"`
	SubjectID      string          `json:"subject_id"`
	Score          float64         `json:"score"` // [0,100]
	Level          AlertLevel      `json:"level"`
	BehaviorRisk   float64         `json:"behavior_risk"` // [0,100], pre-fusion
	ZoneMultiplier float64         `json:"zone_multiplier"`
	TrustFactor    float64         `json:"trust_factor"` // [0,1]
	Zone           Zone            `json:"zone"`
	Events         []BehaviorEvent `json:"events,omitempty"`
	SuspiciousFeed bool            `json:"suspicious_feed"`
	At             time.Time       `json:"at"`
}

// FeedStatus is the per-stream camera trust assessment after a frame cycle.
type FeedStatus struct {
	StreamID   string    `json:"stream_id"`
	TrustScore float64   `json:"trust_score"` // [0,100]
	Suspicious bool      `json:"suspicious"`
	Liveness   float64   `json:"liveness"`
	Entropy    float64   `json:"entropy"`
	Motion     float64   `json:"motion"`
	FrameSeq   uint64    `json:"frame_seq"`
	At         time.Time `json:"at"`
}
