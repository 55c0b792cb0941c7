package profile

import (
	"github.com/marknormanread/motility-analysis/internal/monitoring"
	"github.com/marknormanread/motility-analysis/track"
)

// DuplicatePosition records one coordinate shared verbatim by two distinct
// tracks, evidence that the instrument exported the same object twice.
type DuplicatePosition struct {
	X     float64
	Y     float64
	Z     float64
	TimeS float64 // timestamp of the occurrence on TrackA

	// TrackA and TrackB are non-owning back-references to the two tracks
	// sharing the coordinate.
	TrackA *track.Track
	TrackB *track.Track
}

// CheckForDuplicates scans every pair of retained tracks for positions with
// identical defined x, y and z coordinates, which indicates the same object
// was exported twice under different track identities. Times are not
// compared: two tracks genuinely crossing the same point at different times
// are also flagged, and a human decides.
//
// The scan compares every position against every position of every other
// track, so its cost grows with the square of both track and position
// counts. It is a diagnostic for curating suspect exports, not part of
// profile construction; do not run it routinely on large datasets.
func (p *Profile) CheckForDuplicates() []DuplicatePosition {
	monitoring.Logf("checking for duplicate track data")

	var duplicates []DuplicatePosition
	for i := 0; i < len(p.Tracks); i++ {
		for _, posI := range p.Tracks[i].Positions {
			if !posI.Defined() {
				continue
			}
			for j := i + 1; j < len(p.Tracks); j++ {
				for _, posJ := range p.Tracks[j].Positions {
					if posI.X == posJ.X && posI.Y == posJ.Y && posI.Z == posJ.Z {
						duplicates = append(duplicates, DuplicatePosition{
							X: posI.X, Y: posI.Y, Z: posI.Z,
							TimeS:  posI.TimeS,
							TrackA: p.Tracks[i],
							TrackB: p.Tracks[j],
						})
						monitoring.Logf("duplicate track position found:")
						monitoring.Logf("   x = %v", posI.X)
						monitoring.Logf("   y = %v", posI.Y)
						monitoring.Logf("   z = %v", posI.Z)
						monitoring.Logf("   time = %v", posI.TimeS)
						monitoring.Logf("   tracks %s and %s", p.Tracks[i].ID, p.Tracks[j].ID)
					}
				}
			}
		}
	}

	monitoring.Logf("finished checking for duplicates, %d found", len(duplicates))
	return duplicates
}

// VolumeEntries partitions the profile's retained tracks by whether they
// were already present when imaging began.
type VolumeEntries struct {
	// Starters were present in the imaging volume at time zero.
	Starters int
	// Entries appeared only after time zero, which for cellular imaging
	// likely reflects cells migrating into the volume.
	Entries int
	Total   int
}

// CountVolumeEntries reports how many retained tracks were present at the
// experiment's start versus appearing later.
func (p *Profile) CountVolumeEntries() VolumeEntries {
	entries := VolumeEntries{Total: len(p.Tracks)}
	for _, t := range p.Tracks {
		if t.Positions[0].TimeS == 0.0 {
			entries.Starters++
		}
	}
	entries.Entries = entries.Total - entries.Starters

	monitoring.Logf("calculating cell entries into the imaging volume...")
	monitoring.Logf("%d cells resided in the imaging volume at time 0", entries.Starters)
	monitoring.Logf("%d cells subsequently entered the imaging volume thereafter", entries.Entries)
	monitoring.Logf("%d cells in total", entries.Total)
	return entries
}
