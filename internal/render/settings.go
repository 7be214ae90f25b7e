package render

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// SampleRates lists the output sample rates an export may use.
var SampleRates = []int{44100, 48000, 88200, 96000, 192000}

// Bitrates lists the encoder bitrates (kbps) an export may use.
var Bitrates = []int{64, 128, 160, 192, 256, 320}

// Interpolation selects the resampling interpolator.
type Interpolation int

const (
	InterpolationNone Interpolation = iota
	InterpolationSincFastest
	InterpolationSincMedium
	InterpolationSincBest
)

var interpolationNames = []string{"none", "sinc_fastest", "sinc_medium", "sinc_best"}

func (i Interpolation) String() string {
	if i < 0 || int(i) >= len(interpolationNames) {
		return "unknown"
	}
	return interpolationNames[i]
}

// ParseInterpolation resolves an interpolation mode by name.
func ParseInterpolation(value string) (Interpolation, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	for i, name := range interpolationNames {
		if name == value {
			return Interpolation(i), nil
		}
	}
	return 0, fmt.Errorf("unknown interpolation %q (want one of %s)", value, strings.Join(interpolationNames, ", "))
}

// Oversampling selects the oversampling factor.
type Oversampling int

const (
	Oversampling1x Oversampling = iota
	Oversampling2x
	Oversampling4x
	Oversampling8x
)

var oversamplingNames = []string{"1x", "2x", "4x", "8x"}

func (o Oversampling) String() string {
	if o < 0 || int(o) >= len(oversamplingNames) {
		return "unknown"
	}
	return oversamplingNames[o]
}

// ParseOversampling resolves an oversampling mode such as "2x" or "2".
func ParseOversampling(value string) (Oversampling, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if !strings.HasSuffix(value, "x") {
		value += "x"
	}
	for i, name := range oversamplingNames {
		if name == value {
			return Oversampling(i), nil
		}
	}
	return 0, fmt.Errorf("unknown oversampling %q (want one of %s)", value, strings.Join(oversamplingNames, ", "))
}

// Depth selects the sample format of uncompressed outputs.
type Depth int

const (
	Depth16 Depth = iota
	Depth24
	Depth32F
)

var depthNames = []string{"16", "24", "32f"}

func (d Depth) String() string {
	if d < 0 || int(d) >= len(depthNames) {
		return "unknown"
	}
	return depthNames[d]
}

// ParseDepth resolves a bit depth such as "16", "24bit" or "32f".
func ParseDepth(value string) (Depth, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	value = strings.TrimSuffix(value, "bit")
	value = strings.TrimSuffix(value, "-")
	if value == "32" || value == "32float" {
		value = "32f"
	}
	for i, name := range depthNames {
		if name == value {
			return Depth(i), nil
		}
	}
	return 0, fmt.Errorf("unknown bit depth %q (want one of %s)", value, strings.Join(depthNames, ", "))
}

// Quality holds render fidelity settings, independent of output encoding.
type Quality struct {
	Interpolation Interpolation
	Oversampling  Oversampling
}

// Output holds the encoded file's technical parameters.
type Output struct {
	SampleRate  int
	Stereo      bool
	BitrateKbps int
	Depth       Depth
}

// Settings bundles everything a render job needs besides its output path.
// Settings is passed by value and never mutated during a run.
type Settings struct {
	Quality              Quality
	Output               Output
	Format               Format
	ExportLoop           bool
	RenderBetweenMarkers bool
}

// DefaultSettings mirrors the export dialog defaults.
func DefaultSettings() Settings {
	return Settings{
		Quality: Quality{Interpolation: InterpolationSincFastest, Oversampling: Oversampling1x},
		Output:  Output{SampleRate: 44100, Stereo: true, BitrateKbps: 160, Depth: Depth16},
		Format:  FormatWAV,
	}
}

// Validate checks quality and output values against the allowed sets. The
// format is checked separately because an unresolved format is its own
// failure mode.
func (s Settings) Validate() error {
	var errs []error
	if !slices.Contains(SampleRates, s.Output.SampleRate) {
		errs = append(errs, fmt.Errorf("sample rate %d not in %s", s.Output.SampleRate, joinInts(SampleRates)))
	}
	if !slices.Contains(Bitrates, s.Output.BitrateKbps) {
		errs = append(errs, fmt.Errorf("bitrate %d not in %s", s.Output.BitrateKbps, joinInts(Bitrates)))
	}
	if s.Output.Depth < Depth16 || s.Output.Depth > Depth32F {
		errs = append(errs, fmt.Errorf("bit depth %d out of range", int(s.Output.Depth)))
	}
	if s.Quality.Interpolation < InterpolationNone || s.Quality.Interpolation > InterpolationSincBest {
		errs = append(errs, fmt.Errorf("interpolation %d out of range", int(s.Quality.Interpolation)))
	}
	if s.Quality.Oversampling < Oversampling1x || s.Quality.Oversampling > Oversampling8x {
		errs = append(errs, fmt.Errorf("oversampling %d out of range", int(s.Quality.Oversampling)))
	}
	return errors.Join(errs...)
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
