package render

import (
	"path/filepath"
	"strings"
)

// Format identifies an export file format. The zero value is FormatNone, the
// sentinel for "no format resolved".
type Format int

const (
	FormatNone Format = iota
	FormatWAV
	FormatOGG
	FormatMP3
	FormatFLAC
)

type formatInfo struct {
	name        string
	extension   string
	description string
	lossy       bool
}

var formatTable = map[Format]formatInfo{
	FormatWAV:  {name: "wav", extension: ".wav", description: "Uncompressed WAV-File (*.wav)"},
	FormatOGG:  {name: "ogg", extension: ".ogg", description: "Compressed OGG-File (*.ogg)", lossy: true},
	FormatMP3:  {name: "mp3", extension: ".mp3", description: "Compressed MP3-File (*.mp3)", lossy: true},
	FormatFLAC: {name: "flac", extension: ".flac", description: "FLAC-File (*.flac)"},
}

// Formats lists the supported formats in presentation order.
func Formats() []Format {
	return []Format{FormatWAV, FormatOGG, FormatMP3, FormatFLAC}
}

// Valid reports whether f names a supported format.
func (f Format) Valid() bool {
	_, ok := formatTable[f]
	return ok
}

func (f Format) String() string {
	if info, ok := formatTable[f]; ok {
		return info.name
	}
	return "none"
}

// Extension returns the file extension including the leading dot, or "" for
// FormatNone.
func (f Format) Extension() string {
	return formatTable[f].extension
}

// Description returns the human readable format label.
func (f Format) Description() string {
	if info, ok := formatTable[f]; ok {
		return info.description
	}
	return "No format"
}

// Lossy reports whether the format is bitrate-driven rather than bit-depth driven.
func (f Format) Lossy() bool {
	return formatTable[f].lossy
}

// ParseFormat resolves a format by name or extension. Unknown values yield
// FormatNone.
func ParseFormat(value string) Format {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return FormatNone
	}
	for _, f := range Formats() {
		if formatTable[f].name == value {
			return f
		}
	}
	return FormatFromExtension(value)
}

// FormatFromExtension matches an extension case-insensitively, with or
// without the leading dot.
func FormatFromExtension(ext string) Format {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return FormatNone
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	for _, f := range Formats() {
		if formatTable[f].extension == ext {
			return f
		}
	}
	return FormatNone
}

// FormatFromPath derives the format from a file name's extension.
func FormatFromPath(path string) Format {
	return FormatFromExtension(filepath.Ext(path))
}
