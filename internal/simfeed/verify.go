package simfeed

import (
	"context"
	"fmt"
	"strings"

	"github.com/okian/kestrel/pkg/logger"
)

// verifyScenarios checks every scenario's final assessment against its
// expectation and logs each finding. All scenarios are checked even when an
// early one fails, so a broken run reports everything at once.
func verifyScenarios(ctx context.Context, scenarios []Scenario, found *findings, watch *watcher, stats *Stats) error {
	logger.Get().Info(ctx, "verifying scenario outcomes")

	var failures []string
	for i := range scenarios {
		scn := &scenarios[i]
		problems := checkScenario(scn, found, watch)
		if len(problems) == 0 {
			stats.ChecksPassed++
			entry := found.subjects[scn.SubjectID]
			logger.Get().Info(ctx, "scenario passed",
				logger.String("scenario", scn.Name),
				logger.Float64("finalScore", entry.Score),
				logger.Float64("peakScore", watch.peakScore(scn.SubjectID)),
				logger.String("level", entry.Level),
				logger.String("zone", entry.Zone))
			continue
		}

		stats.ChecksFailed++
		for _, p := range problems {
			failures = append(failures, scn.Name+": "+p)
			logger.Get().Warn(ctx, "scenario check failed",
				logger.String("scenario", scn.Name),
				logger.String("problem", p))
		}
	}

	if len(failures) > 0 {
		return fmt.Errorf("%w: %s", ErrVerification, strings.Join(failures, "; "))
	}
	return nil
}

// checkScenario compares one scenario's riskboard entry, stream status and
// socket tallies against its expectation.
func checkScenario(scn *Scenario, found *findings, watch *watcher) []string {
	var problems []string
	expect := scn.Expect

	entry, ok := found.subjects[scn.SubjectID]
	if !ok {
		return []string{"no riskboard entry for subject " + scn.SubjectID}
	}

	if expect.Zone != "" && entry.Zone != expect.Zone {
		problems = append(problems, fmt.Sprintf("zone %s, want %s", entry.Zone, expect.Zone))
	}
	if expect.Level != "" && entry.Level != expect.Level {
		problems = append(problems, fmt.Sprintf("level %s, want %s", entry.Level, expect.Level))
	}
	if entry.Score < expect.MinScore || entry.Score > expect.MaxScore {
		problems = append(problems, fmt.Sprintf("score %.1f outside [%.1f, %.1f]",
			entry.Score, expect.MinScore, expect.MaxScore))
	}
	if entry.SuspiciousFeed != expect.Suspicious {
		problems = append(problems, fmt.Sprintf("suspicious_feed %v, want %v",
			entry.SuspiciousFeed, expect.Suspicious))
	}

	stream, ok := found.streams[scn.StreamID]
	if !ok {
		problems = append(problems, "no stream status for "+scn.StreamID)
	} else {
		trust := stream.Feed.TrustScore
		if trust < expect.MinTrust || (expect.MaxTrust > 0 && trust > expect.MaxTrust) {
			problems = append(problems, fmt.Sprintf("trust %.1f outside [%.1f, %.1f]",
				trust, expect.MinTrust, expect.MaxTrust))
		}
		if stream.Feed.Suspicious != expect.Suspicious {
			problems = append(problems, fmt.Sprintf("stream suspicious %v, want %v",
				stream.Feed.Suspicious, expect.Suspicious))
		}
	}

	seen := watch.patternsSeen(scn.SubjectID)
	for _, kind := range expect.Patterns {
		if seen[kind] == 0 {
			problems = append(problems, "pattern "+kind+" never observed on the socket")
		}
	}

	if expect.FeedAlerts > 0 && watch.alertCount(scn.StreamID) < expect.FeedAlerts {
		problems = append(problems, fmt.Sprintf("feed alerts %d, want at least %d",
			watch.alertCount(scn.StreamID), expect.FeedAlerts))
	}

	return problems
}
