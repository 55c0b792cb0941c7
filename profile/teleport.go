package profile

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/marknormanread/motility-analysis/geometry"
	"github.com/marknormanread/motility-analysis/internal/monitoring"
	"github.com/marknormanread/motility-analysis/track"
)

// TeleportPoint records a track beginning or ending inside the interior of
// the imaging volume at a non-boundary time, which suggests the instrument
// lost or regained the cell's signal rather than observing genuine entry or
// exit. Track is a non-owning back-reference used for reporting and for
// joining candidate segments; the point never outlives the profile that
// produced it.
type TeleportPoint struct {
	X     float64
	Y     float64
	Z     float64
	TimeS float64
	Track *track.Track
	Start bool // true for a track's first observation, false for its last
}

// AxisBounds is the estimated extent of the imaging volume along one axis
// after the margin shrink.
type AxisBounds struct {
	Low  float64
	High float64
}

// VolumeBounds is the margin-shrunk axis-aligned box inside which track
// appearances and disappearances are treated as suspicious.
type VolumeBounds struct {
	X AxisBounds
	Y AxisBounds
	Z AxisBounds
}

// contains reports whether a position lies inside the box, boundaries
// included. A position with any undefined coordinate is never inside: there
// is no evidence it sat in the interior.
func (b VolumeBounds) contains(p track.Position) bool {
	return p.X >= b.X.Low && p.X <= b.X.High &&
		p.Y >= b.Y.Low && p.Y <= b.Y.High &&
		p.Z >= b.Z.Low && p.Z <= b.Z.High
}

// TeleportReport carries the structured results of one teleport analysis: the
// merged points in chronological order, the spatial and temporal gap from
// each point to the next, and the affected-track census.
type TeleportReport struct {
	// Points holds every start and end teleport, merged and sorted by
	// ascending time.
	Points []TeleportPoint

	// GapDistances[i] is the Euclidean distance from Points[i] to
	// Points[i+1]; GapMinutes[i] the time between them in minutes. Both are
	// one shorter than Points. Small gaps suggest two segments of the same
	// physical cell.
	GapDistances []float64
	GapMinutes   []float64

	// TrackCount tracks were involved in at least one teleport, out of
	// TotalTracks retained in the profile.
	TrackCount  int
	TotalTracks int
	Fraction    float64

	// Bounds is the margin-shrunk imaging volume estimate the analysis
	// used.
	Bounds VolumeBounds
}

// AnalyseTeleports scans the profile's retained tracks for appearances and
// disappearances inside the estimated imaging volume at non-boundary times.
//
// The volume is estimated from the min/max of every defined coordinate
// across all retained positions, then shrunk inward by margin times the
// range on each axis; cells vanishing near the true edge are assumed to have
// migrated out of view and are not flagged. A track whose first observation
// is at a time other than zero and inside the shrunk box yields a start
// point; a track whose last observation precedes the experiment's final
// timestamp and lies inside the box yields an end point.
//
// A start point carries the first position's x, y and time but the last
// position's z. That asymmetry is inherited from the original analysis and
// is preserved until confirmed to be a defect; see DESIGN.md.
//
// The results replace any previous run's on the profile. Returns
// ErrConfiguration when the profile retains no tracks and
// ErrInsufficientData when no position defines a coordinate on some axis.
func (p *Profile) AnalyseTeleports(margin float64) (*TeleportReport, error) {
	if math.IsNaN(margin) || margin < 0 || margin >= 0.5 {
		return nil, fmt.Errorf("%w: teleport margin must be in [0, 0.5), got %v", ErrConfiguration, margin)
	}
	if len(p.Tracks) == 0 {
		return nil, fmt.Errorf("%w: teleport analysis requires a profile with retained tracks", ErrConfiguration)
	}

	monitoring.Logf("analysing tracks that appear and disappear in the middle of the imaging volume")

	var xs, ys, zs []float64
	for _, t := range p.Tracks {
		for _, pos := range t.Positions {
			if !math.IsNaN(pos.X) {
				xs = append(xs, pos.X)
			}
			if !math.IsNaN(pos.Y) {
				ys = append(ys, pos.Y)
			}
			if !math.IsNaN(pos.Z) {
				zs = append(zs, pos.Z)
			}
		}
	}
	if len(xs) == 0 || len(ys) == 0 || len(zs) == 0 {
		return nil, fmt.Errorf("%w: no defined coordinates to estimate the imaging volume from", ErrInsufficientData)
	}

	bounds := VolumeBounds{
		X: shrunkBounds(xs, margin),
		Y: shrunkBounds(ys, margin),
		Z: shrunkBounds(zs, margin),
	}
	monitoring.Logf("the following boundaries are assumed to outline the imaging volume")
	monitoring.Logf("  x: from %v to %v", bounds.X.Low, bounds.X.High)
	monitoring.Logf("  y: from %v to %v", bounds.Y.Low, bounds.Y.High)
	monitoring.Logf("  z: from %v to %v", bounds.Z.Low, bounds.Z.High)

	endTime := p.Tracks[0].Positions[len(p.Tracks[0].Positions)-1].TimeS
	for _, t := range p.Tracks[1:] {
		if last := t.Positions[len(t.Positions)-1].TimeS; last > endTime {
			endTime = last
		}
	}
	monitoring.Logf("assuming end time was %.2f seconds (%.2f minutes), based on largest time stamp in supplied track data",
		endTime, endTime/60.0)

	p.TeleportStarts = nil
	p.TeleportEnds = nil
	p.TeleportTracks = nil
	for _, t := range p.Tracks {
		pStart := t.Positions[0]
		pEnd := t.Positions[len(t.Positions)-1]
		if pStart.TimeS != 0.0 && bounds.contains(pStart) {
			p.TeleportStarts = append(p.TeleportStarts, TeleportPoint{
				X: pStart.X, Y: pStart.Y, Z: pEnd.Z,
				TimeS: pStart.TimeS, Track: t, Start: true,
			})
		}
		if pEnd.TimeS < endTime && bounds.contains(pEnd) {
			p.TeleportEnds = append(p.TeleportEnds, TeleportPoint{
				X: pEnd.X, Y: pEnd.Y, Z: pEnd.Z,
				TimeS: pEnd.TimeS, Track: t, Start: false,
			})
		}
	}

	// Deduplicate by track identity; a track may contribute both a start
	// and an end point.
	seen := make(map[*track.Track]bool)
	for _, pt := range p.TeleportStarts {
		if !seen[pt.Track] {
			seen[pt.Track] = true
			p.TeleportTracks = append(p.TeleportTracks, pt.Track)
		}
	}
	for _, pt := range p.TeleportEnds {
		if !seen[pt.Track] {
			seen[pt.Track] = true
			p.TeleportTracks = append(p.TeleportTracks, pt.Track)
		}
	}

	report := &TeleportReport{
		TrackCount:  len(p.TeleportTracks),
		TotalTracks: len(p.Tracks),
		Fraction:    float64(len(p.TeleportTracks)) / float64(len(p.Tracks)),
		Bounds:      bounds,
	}
	monitoring.Logf("%d tracks either appeared or disappeared in the middle of the tissue volume", report.TrackCount)
	monitoring.Logf("there were %d tracks in total", report.TotalTracks)
	monitoring.Logf("hence, %.2f of all tracks", report.Fraction)

	report.Points = make([]TeleportPoint, 0, len(p.TeleportStarts)+len(p.TeleportEnds))
	report.Points = append(report.Points, p.TeleportStarts...)
	report.Points = append(report.Points, p.TeleportEnds...)
	sort.SliceStable(report.Points, func(i, j int) bool {
		return report.Points[i].TimeS < report.Points[j].TimeS
	})

	for i, pt := range report.Points {
		kind := "start"
		if !pt.Start {
			kind = "end"
		}
		monitoring.Logf("%s; time = %f; x = %f; y = %f; z = %f", kind, pt.TimeS, pt.X, pt.Y, pt.Z)
		if i == len(report.Points)-1 {
			break
		}
		next := report.Points[i+1]
		dist := geometry.Distance(pt.X, pt.Y, pt.Z, next.X, next.Y, next.Z)
		gapMin := (next.TimeS - pt.TimeS) / 60.0
		report.GapDistances = append(report.GapDistances, dist)
		report.GapMinutes = append(report.GapMinutes, gapMin)
		monitoring.Logf("   euclidean distance to next = %f", dist)
		monitoring.Logf("   time distance to next = %v", gapMin)
	}

	return report, nil
}

// shrunkBounds estimates one axis of the imaging volume from the observed
// coordinates, pulled inward by margin times the observed range.
func shrunkBounds(values []float64, margin float64) AxisBounds {
	lo, hi := floats.Min(values), floats.Max(values)
	span := hi - lo
	return AxisBounds{
		Low:  lo + margin*span,
		High: hi - margin*span,
	}
}
