package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"trackexport/internal/project"
)

// DemoProject returns a project with three audible instrument tracks, a
// muted sample track, an automation track and one audible pattern track.
func DemoProject() *project.Project {
	return &project.Project{
		Name:  "Demo",
		Tempo: 140,
		Tracks: project.TrackSet{
			Main: []*project.Track{
				project.NewTrack("Lead 1", project.KindInstrument, false),
				project.NewTrack("Bass!!", project.KindInstrument, false),
				project.NewTrack("Drums_99", project.KindInstrument, false),
				project.NewTrack("Vocals", project.KindSample, true),
				project.NewTrack("Filter Sweep", project.KindAutomation, false),
			},
			Patterns: []*project.Track{
				project.NewTrack("Pattern A", project.KindPattern, false),
			},
		},
	}
}

// WriteProject saves p as a YAML project file in dir and returns its path.
func WriteProject(t testing.TB, dir string, p *project.Project) string {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir for project: %v", err)
	}
	path := filepath.Join(dir, "project.yaml")
	if err := p.Save(path); err != nil {
		t.Fatalf("save project %s: %v", path, err)
	}
	return path
}

// MuteStates returns the mute flag of every track in s, keyed by track name.
func MuteStates(s project.TrackSet) map[string]bool {
	states := make(map[string]bool)
	for _, track := range s.All() {
		states[track.Name()] = track.Muted()
	}
	return states
}
