// Package project models the parts of a composed audio project that track
// export cares about: named tracks with a kind tag and a mutable mute flag,
// grouped into the main timeline and the beat/bassline pattern container.
//
// Projects are read from and written to YAML documents. The export core only
// borrows *Track values from a TrackSet; ownership stays with the project.
package project
