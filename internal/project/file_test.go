package project_test

import (
	"path/filepath"
	"testing"

	"trackexport/internal/project"
)

const demoProject = `
name: Demo
tempo: 140
tracks:
  - name: Lead 1
    kind: instrument
  - name: Kick
    kind: sample
    muted: true
  - name: Filter sweep
    kind: automation
  - name: Mystery
patterns:
  - name: Pattern A
  - name: Hats
    muted: true
`

func TestParseProject(t *testing.T) {
	proj, err := project.Parse([]byte(demoProject))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if proj.Name != "Demo" || proj.Tempo != 140 {
		t.Fatalf("unexpected header: %+v", proj)
	}
	if len(proj.Tracks.Main) != 4 {
		t.Fatalf("expected 4 main tracks, got %d", len(proj.Tracks.Main))
	}
	wantKinds := []project.Kind{project.KindInstrument, project.KindSample, project.KindAutomation, project.KindOther}
	for i, want := range wantKinds {
		if got := proj.Tracks.Main[i].Kind(); got != want {
			t.Fatalf("track %d: kind %s, want %s", i, got, want)
		}
	}
	if !proj.Tracks.Main[1].Muted() {
		t.Fatal("expected Kick to be muted")
	}
	if len(proj.Tracks.Patterns) != 2 {
		t.Fatalf("expected 2 pattern tracks, got %d", len(proj.Tracks.Patterns))
	}
	if proj.Tracks.Patterns[0].Kind() != project.KindPattern {
		t.Fatalf("expected pattern kind default, got %s", proj.Tracks.Patterns[0].Kind())
	}
}

func TestParseRejectsUnnamedTrack(t *testing.T) {
	if _, err := project.Parse([]byte("tracks:\n  - kind: sample\n")); err == nil {
		t.Fatal("expected error for unnamed track")
	}
}

func TestSaveKeepsCurrentMuteState(t *testing.T) {
	proj, err := project.Parse([]byte(demoProject))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	proj.Tracks.Main[0].SetMuted(true)

	path := filepath.Join(t.TempDir(), "nested", "demo.yaml")
	if err := proj.Save(path); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	loaded, err := project.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !loaded.Tracks.Main[0].Muted() {
		t.Fatal("expected saved mute flag to persist")
	}
	if loaded.Tracks.Main[0].Kind() != project.KindInstrument {
		t.Fatalf("expected kind to persist, got %s", loaded.Tracks.Main[0].Kind())
	}
}

func TestParseKind(t *testing.T) {
	cases := map[string]project.Kind{
		"Instrument": project.KindInstrument,
		" sample ":   project.KindSample,
		"automation": project.KindAutomation,
		"bb":         project.KindPattern,
		"midi":       project.KindOther,
		"":           project.KindOther,
	}
	for input, want := range cases {
		if got := project.ParseKind(input); got != want {
			t.Errorf("ParseKind(%q) = %s, want %s", input, got, want)
		}
	}
}
