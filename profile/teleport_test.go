package profile

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marknormanread/motility-analysis/internal/monitoring"
	"github.com/marknormanread/motility-analysis/track"
)

// cornerTrack pins one corner of the estimated imaging volume: a short walk
// near (x, y, z) beginning at time zero, so it can never register as a
// teleport start and its endpoint stays within the margin of the volume edge.
func cornerTrack(t *testing.T, id string, x, y, z float64) *track.Track {
	t.Helper()
	return mustTrack(t, id, []track.Position{
		pos(x, y, z, 0),
		pos(x+2, y, z, 30),
		pos(x+2, y+2, z, 60),
		pos(x+4, y+2, z, 90),
		pos(x+4, y+4, z, 120),
	})
}

// edgeRunner walks along the y = 0 boundary until endTime, anchoring the
// experiment's end without ever entering the shrunk volume.
func edgeRunner(t *testing.T, endTime float64) *track.Track {
	t.Helper()
	n := int(endTime/30) + 1
	positions := make([]track.Position, n)
	for i := range positions {
		positions[i] = pos(float64(i)*2, 0, 50, float64(i)*30)
	}
	return mustTrack(t, "runner", positions)
}

// TestAnalyseTeleportsInteriorTrack covers a track that both appears and
// disappears in the interior of the volume mid-experiment.
func TestAnalyseTeleportsInteriorTrack(t *testing.T) {
	// Corners span the volume to roughly (0..104)^2 x (0..100); the runner
	// pushes the experiment end out to 600 s. The suspect track appears at
	// 60 s and vanishes at 150 s, well inside the shrunk box, descending
	// from z=50 to z=30 as it goes.
	suspect := mustTrack(t, "suspect", []track.Position{
		pos(50, 50, 50, 60),
		pos(52, 50, 42, 90),
		pos(54, 50, 36, 120),
		pos(56, 50, 30, 150),
	})
	tracks := []*track.Track{
		cornerTrack(t, "c1", 0, 0, 0),
		cornerTrack(t, "c2", 100, 100, 100),
		edgeRunner(t, 600),
		suspect,
	}

	p, err := Build(tracks, Config{})
	require.NoError(t, err)
	require.Len(t, p.Tracks, 4, "all fixture tracks should survive filtering")

	report, err := p.AnalyseTeleports(0.1)
	require.NoError(t, err)

	require.Len(t, p.TeleportStarts, 1)
	start := p.TeleportStarts[0]
	assert.Equal(t, 50.0, start.X)
	assert.Equal(t, 50.0, start.Y)
	// The start point carries the track's final z, not its first: the
	// inherited asymmetry this analysis preserves.
	assert.Equal(t, 30.0, start.Z)
	assert.Equal(t, 60.0, start.TimeS)
	assert.Same(t, suspect, start.Track)
	assert.True(t, start.Start)

	require.Len(t, p.TeleportEnds, 1)
	end := p.TeleportEnds[0]
	assert.Equal(t, 56.0, end.X)
	assert.Equal(t, 30.0, end.Z)
	assert.Equal(t, 150.0, end.TimeS)
	assert.False(t, end.Start)

	// One physical track behind both events.
	require.Len(t, p.TeleportTracks, 1)
	assert.Same(t, suspect, p.TeleportTracks[0])
	assert.Equal(t, 1, report.TrackCount)
	assert.Equal(t, 4, report.TotalTracks)
	assert.Equal(t, 0.25, report.Fraction)

	// Merged points come out in time order with the gap to each successor.
	require.Len(t, report.Points, 2)
	assert.Equal(t, 60.0, report.Points[0].TimeS)
	assert.Equal(t, 150.0, report.Points[1].TimeS)
	require.Len(t, report.GapDistances, 1)
	assert.InDelta(t, 6.0, report.GapDistances[0], 1e-12) // (50,50,30) to (56,50,30)
	require.Len(t, report.GapMinutes, 1)
	assert.InDelta(t, 1.5, report.GapMinutes[0], 1e-12)
}

// TestAnalyseTeleportsTimeZeroInterior verifies that a track present from the
// very first frame is never a teleport start, however deep in the volume it
// sits.
func TestAnalyseTeleportsTimeZeroInterior(t *testing.T) {
	center := mustTrack(t, "center", []track.Position{
		pos(50, 50, 50, 0),
		pos(52, 50, 50, 30),
		pos(54, 50, 50, 60),
		pos(56, 50, 50, 600),
	})
	tracks := []*track.Track{
		cornerTrack(t, "c1", 0, 0, 0),
		cornerTrack(t, "c2", 100, 100, 100),
		center,
	}

	p, err := Build(tracks, Config{})
	require.NoError(t, err)

	report, err := p.AnalyseTeleports(0.1)
	require.NoError(t, err)

	// The center track starts at time zero and ends at the experiment's
	// final timestamp, so neither endpoint is suspicious; the corner tracks
	// end early but outside the shrunk box.
	assert.Empty(t, p.TeleportStarts)
	assert.Empty(t, p.TeleportEnds)
	assert.Empty(t, p.TeleportTracks)
	assert.Equal(t, 0, report.TrackCount)
	assert.Equal(t, 0.0, report.Fraction)
	assert.Empty(t, report.Points)
}

// TestAnalyseTeleportsMarginGeometry checks the shrunk-box arithmetic and
// that inclusion is decided against it.
func TestAnalyseTeleportsMarginGeometry(t *testing.T) {
	spanA := mustTrack(t, "spanA", []track.Position{
		pos(0, 0, 0, 0),
		pos(100, 100, 100, 600),
	})
	spanB := mustTrack(t, "spanB", []track.Position{
		pos(100, 100, 100, 0),
		pos(0, 0, 0, 600),
	})
	// Appears at 30 s inside the 20% margin box, leaves it before ending.
	interior := mustTrack(t, "interior", []track.Position{
		pos(25, 25, 25, 30),
		pos(15, 25, 25, 60),
	})
	// Appears at 30 s but outside the box on the x axis.
	exterior := mustTrack(t, "exterior", []track.Position{
		pos(15, 25, 25, 30),
		pos(5, 25, 25, 60),
	})

	// Spanning and candidate tracks are too short to carry median statistics,
	// so they are assembled into a profile directly; teleport analysis only
	// depends on the retained track list.
	p := &Profile{Tracks: []*track.Track{spanA, spanB, interior, exterior}}
	report, err := p.AnalyseTeleports(0.2)
	require.NoError(t, err)

	wantBounds := VolumeBounds{
		X: AxisBounds{Low: 20, High: 80},
		Y: AxisBounds{Low: 20, High: 80},
		Z: AxisBounds{Low: 20, High: 80},
	}
	if diff := cmp.Diff(wantBounds, report.Bounds); diff != "" {
		t.Errorf("Bounds mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, p.TeleportStarts, 1)
	assert.Same(t, interior, p.TeleportStarts[0].Track)
	// Both candidates end outside the box, so no end events.
	assert.Empty(t, p.TeleportEnds)
}

// TestAnalyseTeleportsBoundaryInclusive: the shrunk box includes its faces,
// so a track materialising exactly on a boundary plane is still flagged.
func TestAnalyseTeleportsBoundaryInclusive(t *testing.T) {
	spanA := mustTrack(t, "spanA", []track.Position{
		pos(0, 0, 0, 0),
		pos(100, 100, 100, 600),
	})
	spanB := mustTrack(t, "spanB", []track.Position{
		pos(100, 100, 100, 0),
		pos(0, 0, 0, 600),
	})
	// First observation sits exactly on the 20% box faces: x and z on the
	// low bound, y on the high bound. It then leaves the box, so only the
	// start is suspicious.
	onFace := mustTrack(t, "onFace", []track.Position{
		pos(20, 80, 20, 30),
		pos(5, 80, 20, 60),
	})

	p := &Profile{Tracks: []*track.Track{spanA, spanB, onFace}}
	_, err := p.AnalyseTeleports(0.2)
	require.NoError(t, err)

	require.Len(t, p.TeleportStarts, 1)
	assert.Same(t, onFace, p.TeleportStarts[0].Track)
	assert.Empty(t, p.TeleportEnds)
}

func TestAnalyseTeleportsErrors(t *testing.T) {
	t.Run("no retained tracks", func(t *testing.T) {
		p := &Profile{}
		_, err := p.AnalyseTeleports(0.1)
		assert.ErrorIs(t, err, ErrConfiguration)
	})

	t.Run("margin out of range", func(t *testing.T) {
		p := &Profile{Tracks: []*track.Track{mover(t, "m", 5, 5, 0)}}
		for _, margin := range []float64{-0.01, 0.5, math.NaN()} {
			_, err := p.AnalyseTeleports(margin)
			assert.ErrorIs(t, err, ErrConfiguration, "margin %v", margin)
		}
	})

	t.Run("no defined coordinates on an axis", func(t *testing.T) {
		// Every z is undefined, so the volume cannot be estimated.
		flat := mustTrack(t, "flat", []track.Position{
			pos(0, 0, math.NaN(), 0),
			pos(5, 5, math.NaN(), 30),
		})
		p := &Profile{Tracks: []*track.Track{flat}}
		_, err := p.AnalyseTeleports(0.1)
		assert.ErrorIs(t, err, ErrInsufficientData)
	})
}

func TestAnalyseTeleportsRerunReplaces(t *testing.T) {
	suspect := mustTrack(t, "suspect", []track.Position{
		pos(50, 50, 50, 60),
		pos(52, 50, 50, 90),
		pos(54, 50, 50, 120),
		pos(56, 50, 50, 600),
	})
	tracks := []*track.Track{
		cornerTrack(t, "c1", 0, 0, 0),
		cornerTrack(t, "c2", 100, 100, 100),
		suspect,
	}
	p, err := Build(tracks, Config{})
	require.NoError(t, err)

	_, err = p.AnalyseTeleports(0.1)
	require.NoError(t, err)
	_, err = p.AnalyseTeleports(0.1)
	require.NoError(t, err)

	assert.Len(t, p.TeleportStarts, 1, "re-running must replace, not append")
	assert.Len(t, p.TeleportTracks, 1)
}

// TestAnalyseTeleportsUndefinedCoordinateNeverInside: a position with a NaN
// coordinate provides no evidence of being in the interior.
func TestAnalyseTeleportsUndefinedCoordinateNeverInside(t *testing.T) {
	ghost := mustTrack(t, "ghost", []track.Position{
		pos(50, 50, math.NaN(), 60),
		pos(52, 50, 50, 90),
	})
	spanA := mustTrack(t, "spanA", []track.Position{
		pos(0, 0, 0, 0),
		pos(100, 100, 100, 600),
	})

	p := &Profile{Tracks: []*track.Track{spanA, ghost}}
	_, err := p.AnalyseTeleports(0.1)
	require.NoError(t, err)

	// The ghost's first observation is mid-experiment and spatially central
	// on x and y, but its undefined z keeps it out of the interior.
	assert.Empty(t, p.TeleportStarts)
}

func TestAnalyseTeleportsNarration(t *testing.T) {
	buf, restore := monitoring.Capture()
	defer restore()

	tracks := []*track.Track{
		cornerTrack(t, "c1", 0, 0, 0),
		cornerTrack(t, "c2", 100, 100, 100),
	}
	p, err := Build(tracks, Config{})
	require.NoError(t, err)
	_, err = p.AnalyseTeleports(0.1)
	require.NoError(t, err)

	assert.True(t, buf.Contains("the following boundaries are assumed to outline the imaging volume"))
	assert.True(t, buf.Contains("tracks either appeared or disappeared in the middle of the tissue volume"))
}
