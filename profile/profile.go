// Package profile builds statistical motility profiles over collections of
// cell tracks: threshold filtering with per-stage exclusion reporting,
// population-level collation of kinematics, detection of anomalous track
// appearances and disappearances ("teleports"), and cross-profile mean
// squared displacement and displacement-autocorrelation statistics.
package profile

import (
	"fmt"
	"math"

	"github.com/marknormanread/motility-analysis/internal/monitoring"
	"github.com/marknormanread/motility-analysis/track"
)

// Error sentinels, aliased from package track so errors.Is matches across
// both layers.
var (
	ErrInsufficientData = track.ErrInsufficientData
	ErrConfiguration    = track.ErrConfiguration
)

// SetLogger replaces the diagnostic logger shared by the analysis packages.
// Passing nil mutes it. Every count narrated through the logger is also
// available as structured data on Profile, TeleportReport and the quality
// reports.
func SetLogger(f func(format string, v ...interface{})) {
	monitoring.SetLogger(f)
}

// FilterStep records one stage of the construction pipeline: how many tracks
// the stage saw and how many it excluded. Threshold is zero for the two
// definedness stages, which carry no numeric threshold.
type FilterStep struct {
	Name      string  `json:"name"`
	Threshold float64 `json:"threshold,omitempty"`
	Excluded  int     `json:"excluded"`
	Before    int     `json:"before"`
}

// Profile is a filtered collection of tracks with summary statistics
// computed once at construction. Aside from the teleport fields, which an
// explicit AnalyseTeleports call may populate later, a Profile is read-only
// after Build.
type Profile struct {
	// Tracks retained after filtering, in input order. Referenced, never
	// mutated.
	Tracks []*track.Track

	// FilterSteps records every pipeline stage applied during construction,
	// in order.
	FilterSteps []FilterStep

	// PercentBroken is the percentage of retained tracks flagged broken, or
	// -1 when no tracks remain. The sentinel keeps an empty profile
	// distinguishable from one with no broken tracks.
	PercentBroken float64

	// Whole-track summary lists, one entry per retained track. Entries may
	// be NaN where the underlying statistic is undefined.
	Durations     []float64 // minutes
	Lengths       []float64
	Displacements []float64
	Meanders      []float64

	// Median/IQR summary lists drop undefined entries, so each may be
	// shorter than the track count.
	MedianSpeeds []float64
	IQRSpeeds    []float64
	MedianTurns  []float64
	IQRTurns     []float64
	MedianRolls  []float64
	IQRRolls     []float64

	// Teleport analysis results. Populated when requested at construction
	// or by a later AnalyseTeleports call; each run replaces them.
	TeleportStarts []TeleportPoint
	TeleportEnds   []TeleportPoint
	TeleportTracks []*track.Track
}

// Build filters tracks through the construction pipeline and computes the
// profile's summary statistics.
//
// The four threshold stages run in a fixed order, each over the survivors of
// the previous, and only when configured: net displacement at or above the
// threshold, observation count at or above the threshold, duration at or
// above the threshold, then arrest coefficient strictly below the threshold.
// Two unconditional stages follow, dropping tracks whose median speed or
// median turn is undefined. Each stage logs its exclusions and appends a
// FilterStep.
//
// When cfg requests teleport analysis it runs immediately after
// construction with the configured margin; its error, if any, is returned
// alongside the otherwise complete profile.
func Build(tracks []*track.Track, cfg Config) (*Profile, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Profile{Tracks: make([]*track.Track, len(tracks))}
	copy(p.Tracks, tracks)

	if cfg.TrimDisplacement != nil {
		threshold := *cfg.TrimDisplacement
		p.filterStep("displacement", threshold,
			fmt.Sprintf("that failed to meet displacement threshold of %f", threshold),
			func(t *track.Track) bool { return t.Displacement >= threshold })
	}
	if cfg.TrimObservations != nil {
		threshold := *cfg.TrimObservations
		p.filterStep("observations", float64(threshold),
			"on the basis of insufficient observations",
			func(t *track.Track) bool { return len(t.Positions) >= threshold })
	}
	if cfg.TrimDuration != nil {
		threshold := *cfg.TrimDuration
		p.filterStep("duration", threshold,
			"on the basis of insufficient duration",
			func(t *track.Track) bool { return t.DurationMin >= threshold })
	}
	if cfg.TrimArrestCoefficient != nil {
		threshold := *cfg.TrimArrestCoefficient
		p.filterStep("arrest-coefficient", threshold,
			"on the basis of high arrest coefficient",
			func(t *track.Track) bool { return t.ArrestCoefficient < threshold })
	}

	// Tracks without enough observations for a median speed or turn cannot
	// contribute to the summary statistics and are always dropped.
	p.filterStep("median-speed-defined", 0,
		"with undefined median speed",
		func(t *track.Track) bool { return !math.IsNaN(t.MedianSpeed) })
	p.filterStep("median-turn-defined", 0,
		"with undefined median turn",
		func(t *track.Track) bool { return !math.IsNaN(t.MedianTurn) })

	broken := 0
	for _, t := range p.Tracks {
		if t.Broken {
			broken++
		}
	}
	p.PercentBroken = -1.0
	if len(p.Tracks) > 0 {
		p.PercentBroken = 100.0 * float64(broken) / float64(len(p.Tracks))
	}
	monitoring.Logf("%d broken tracks in profile, out of %d, = %.2f percent",
		broken, len(p.Tracks), p.PercentBroken)

	p.Durations = make([]float64, 0, len(p.Tracks))
	p.Lengths = make([]float64, 0, len(p.Tracks))
	p.Displacements = make([]float64, 0, len(p.Tracks))
	p.Meanders = make([]float64, 0, len(p.Tracks))
	for _, t := range p.Tracks {
		p.Durations = append(p.Durations, t.DurationMin)
		p.Lengths = append(p.Lengths, t.Length)
		p.Displacements = append(p.Displacements, t.Displacement)
		p.Meanders = append(p.Meanders, t.Meander)

		if !math.IsNaN(t.MedianSpeed) {
			p.MedianSpeeds = append(p.MedianSpeeds, t.MedianSpeed)
		}
		if !math.IsNaN(t.IQRSpeed) {
			p.IQRSpeeds = append(p.IQRSpeeds, t.IQRSpeed)
		}
		if !math.IsNaN(t.MedianTurn) {
			p.MedianTurns = append(p.MedianTurns, t.MedianTurn)
		}
		if !math.IsNaN(t.IQRTurn) {
			p.IQRTurns = append(p.IQRTurns, t.IQRTurn)
		}
		if !math.IsNaN(t.MedianRoll) {
			p.MedianRolls = append(p.MedianRolls, t.MedianRoll)
		}
		if !math.IsNaN(t.IQRRoll) {
			p.IQRRolls = append(p.IQRRolls, t.IQRRoll)
		}
	}

	if cfg.GetAnalyseTeleports() {
		if _, err := p.AnalyseTeleports(cfg.GetTeleportMargin()); err != nil {
			return p, fmt.Errorf("teleport analysis: %w", err)
		}
	}
	return p, nil
}

// filterStep retains the tracks satisfying keep, logs the exclusion and
// records it as a FilterStep.
func (p *Profile) filterStep(name string, threshold float64, reason string, keep func(*track.Track) bool) {
	before := len(p.Tracks)
	kept := make([]*track.Track, 0, before)
	for _, t := range p.Tracks {
		if keep(t) {
			kept = append(kept, t)
		}
	}
	p.Tracks = kept

	excluded := before - len(kept)
	p.FilterSteps = append(p.FilterSteps, FilterStep{
		Name:      name,
		Threshold: threshold,
		Excluded:  excluded,
		Before:    before,
	})
	monitoring.Logf("excluding %d tracks, out of %d, %s", excluded, before, reason)
}
