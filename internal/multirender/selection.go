package multirender

import "trackexport/internal/project"

// Job is one track queued for isolated rendering.
type Job struct {
	Seq   int
	Track *project.Track
	Path  string
}

// Eligible reports whether a main-list track takes part in a stem export.
// Automation and ancillary tracks carry no audio of their own.
func Eligible(track *project.Track) bool {
	if track == nil || track.Muted() {
		return false
	}
	switch track.Kind() {
	case project.KindInstrument, project.KindSample:
		return true
	default:
		return false
	}
}

// Plan lists the jobs a stem export of set would run, without touching any
// mute state. Main-list tracks come first, then unmuted pattern tracks
// regardless of kind. Jobs are numbered from 1 in that order; paths are left
// empty.
func Plan(set project.TrackSet) []Job {
	var jobs []Job
	add := func(track *project.Track) {
		jobs = append(jobs, Job{Seq: len(jobs) + 1, Track: track})
	}
	for _, track := range set.Main {
		if Eligible(track) {
			add(track)
		}
	}
	for _, track := range set.Patterns {
		if track != nil && !track.Muted() {
			add(track)
		}
	}
	return jobs
}

// SelectTracks plans the jobs for set and mutes every selected track.
func SelectTracks(set project.TrackSet) []Job {
	jobs := Plan(set)
	for _, job := range jobs {
		job.Track.SetMuted(true)
	}
	return jobs
}
