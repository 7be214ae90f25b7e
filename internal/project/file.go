package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Project is a loaded project document.
type Project struct {
	Name   string
	Tempo  int
	Tracks TrackSet
}

type trackDoc struct {
	Name  string `yaml:"name"`
	Kind  Kind   `yaml:"kind,omitempty"`
	Muted bool   `yaml:"muted"`
}

type projectDoc struct {
	Name     string     `yaml:"name"`
	Tempo    int        `yaml:"tempo,omitempty"`
	Tracks   []trackDoc `yaml:"tracks"`
	Patterns []trackDoc `yaml:"patterns,omitempty"`
}

// Load reads a YAML project document.
func Load(path string) (*Project, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("project path required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read project: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML project document. Pattern container tracks without an
// explicit kind are tagged KindPattern.
func Parse(data []byte) (*Project, error) {
	var doc projectDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse project: %w", err)
	}
	proj := &Project{Name: strings.TrimSpace(doc.Name), Tempo: doc.Tempo}
	for i, td := range doc.Tracks {
		if strings.TrimSpace(td.Name) == "" {
			return nil, fmt.Errorf("parse project: track %d has no name", i+1)
		}
		proj.Tracks.Main = append(proj.Tracks.Main, NewTrack(td.Name, td.Kind, td.Muted))
	}
	for i, td := range doc.Patterns {
		if strings.TrimSpace(td.Name) == "" {
			return nil, fmt.Errorf("parse project: pattern track %d has no name", i+1)
		}
		kind := td.Kind
		if kind == KindOther {
			kind = KindPattern
		}
		proj.Tracks.Patterns = append(proj.Tracks.Patterns, NewTrack(td.Name, kind, td.Muted))
	}
	return proj, nil
}

// Marshal encodes the project, including each track's current mute flag.
func (p *Project) Marshal() ([]byte, error) {
	doc := projectDoc{Name: p.Name, Tempo: p.Tempo}
	for _, t := range p.Tracks.Main {
		doc.Tracks = append(doc.Tracks, trackDoc{Name: t.Name(), Kind: t.Kind(), Muted: t.Muted()})
	}
	for _, t := range p.Tracks.Patterns {
		doc.Patterns = append(doc.Patterns, trackDoc{Name: t.Name(), Kind: t.Kind(), Muted: t.Muted()})
	}
	data, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("encode project: %w", err)
	}
	return data, nil
}

// Save writes the project document to path.
func (p *Project) Save(path string) error {
	data, err := p.Marshal()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create project directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write project: %w", err)
	}
	return nil
}
