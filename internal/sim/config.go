// Package sim drives randomized matches through the ladder service and
// validates the rank permutation after every application. It is the
// soak-testing companion to the ranking engine: any staging bug shows
// up as an integrity violation within a few hundred matches.
package sim

import "time"

// Config holds configuration for a simulation run.
type Config struct {
	Members  int           // number of members to seed
	Matches  int           // number of matches to apply; 0 = until ctx is done
	Interval time.Duration // pause between matches
	Seed     int64         // RNG seed for reproducible runs
}

// Stats holds simulation statistics.
type Stats struct {
	MembersSeeded   int
	MatchesApplied  int
	MatchesNoChange int
	MatchesMoved    int
	Duplicates      int
	Failures        int
	IntegrityFails  int
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
}
