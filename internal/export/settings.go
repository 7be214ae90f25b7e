package export

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"trackexport/internal/config"
	"trackexport/internal/multirender"
	"trackexport/internal/render"
)

// SettingsFromConfig converts the configured render defaults into typed
// settings. An empty format yields render.FormatNone, to be resolved per run.
func SettingsFromConfig(cfg config.Render) (render.Settings, error) {
	settings := render.DefaultSettings()
	var errs []error

	settings.Format = render.FormatNone
	if strings.TrimSpace(cfg.Format) != "" {
		settings.Format = render.ParseFormat(cfg.Format)
		if !settings.Format.Valid() {
			errs = append(errs, fmt.Errorf("%w: %q", multirender.ErrInvalidFormat, cfg.Format))
		}
	}
	if cfg.SampleRate != 0 {
		settings.Output.SampleRate = cfg.SampleRate
	}
	if cfg.Bitrate != 0 {
		settings.Output.BitrateKbps = cfg.Bitrate
	}
	settings.Output.Stereo = cfg.Stereo
	if cfg.Depth != "" {
		depth, err := render.ParseDepth(cfg.Depth)
		if err != nil {
			errs = append(errs, err)
		}
		settings.Output.Depth = depth
	}
	if cfg.Interpolation != "" {
		interpolation, err := render.ParseInterpolation(cfg.Interpolation)
		if err != nil {
			errs = append(errs, err)
		}
		settings.Quality.Interpolation = interpolation
	}
	if cfg.Oversampling != "" {
		oversampling, err := render.ParseOversampling(cfg.Oversampling)
		if err != nil {
			errs = append(errs, err)
		}
		settings.Quality.Oversampling = oversampling
	}
	settings.ExportLoop = cfg.ExportLoop
	settings.RenderBetweenMarkers = cfg.RenderMarkers

	if err := errors.Join(errs...); err != nil {
		return render.Settings{}, err
	}
	if err := settings.Validate(); err != nil {
		return render.Settings{}, fmt.Errorf("%w: %w", multirender.ErrInvalidSettings, err)
	}
	return settings, nil
}

// ResolveFormat picks the export format for a run: an explicit name wins,
// then the extension of a single-file target, then the fallback.
func ResolveFormat(explicit, target string, multi bool, fallback render.Format) (render.Format, error) {
	if name := strings.TrimSpace(explicit); name != "" {
		format := render.ParseFormat(name)
		if !format.Valid() {
			return render.FormatNone, fmt.Errorf("%w: %q", multirender.ErrInvalidFormat, name)
		}
		return format, nil
	}
	if !multi {
		if format := render.FormatFromPath(target); format.Valid() {
			return format, nil
		}
	}
	if fallback.Valid() {
		return fallback, nil
	}
	return render.FormatNone, fmt.Errorf("%w: no format given and none could be derived from %q", multirender.ErrInvalidFormat, target)
}

// SingleTarget appends the format's extension to a file name that has none.
func SingleTarget(target string, format render.Format) string {
	if filepath.Ext(target) == "" && format.Valid() {
		return target + format.Extension()
	}
	return target
}
