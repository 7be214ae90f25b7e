package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"trackexport/internal/config"
	"trackexport/internal/export"
	"trackexport/internal/metrics"
	"trackexport/internal/multirender"
	"trackexport/internal/notifications"
	"trackexport/internal/project"
)

// errIncomplete marks a run that finished with per-track failures.
var errIncomplete = errors.New("export incomplete")

type exportFlags struct {
	format        string
	sampleRate    int
	bitrate       int
	depth         string
	mono          bool
	interpolation string
	oversampling  string
	loop          bool
	markers       bool
	wait          bool
	json          bool
}

func (f *exportFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&f.format, "format", "f", "", "Output format (wav, ogg, mp3, flac)")
	flags.IntVar(&f.sampleRate, "samplerate", 0, "Sample rate in Hz")
	flags.IntVar(&f.bitrate, "bitrate", 0, "Bitrate in kbps for ogg and mp3")
	flags.StringVar(&f.depth, "depth", "", "Bit depth for wav and flac (16, 24, 32f)")
	flags.BoolVar(&f.mono, "mono", false, "Render a single channel")
	flags.StringVar(&f.interpolation, "interpolation", "", "Interpolation (none, sinc_fastest, sinc_medium, sinc_best)")
	flags.StringVar(&f.oversampling, "oversampling", "", "Oversampling factor (1x, 2x, 4x, 8x)")
	flags.BoolVar(&f.loop, "loop", false, "Render the loop region")
	flags.BoolVar(&f.markers, "markers", false, "Render only between the loop markers")
	flags.BoolVar(&f.wait, "wait", false, "Block on each render instead of waiting for completion events")
	flags.BoolVar(&f.json, "json", false, "Print the run result as JSON")
}

// renderConfig overlays the flags the user set on the configured defaults.
func (f *exportFlags) renderConfig(cmd *cobra.Command, base config.Render) config.Render {
	r := base
	flags := cmd.Flags()
	if flags.Changed("samplerate") {
		r.SampleRate = f.sampleRate
	}
	if flags.Changed("bitrate") {
		r.Bitrate = f.bitrate
	}
	if flags.Changed("depth") {
		r.Depth = f.depth
	}
	if flags.Changed("mono") {
		r.Stereo = !f.mono
	}
	if flags.Changed("interpolation") {
		r.Interpolation = f.interpolation
	}
	if flags.Changed("oversampling") {
		r.Oversampling = f.oversampling
	}
	if flags.Changed("loop") {
		r.ExportLoop = f.loop
	}
	if flags.Changed("markers") {
		r.RenderMarkers = f.markers
	}
	return r
}

func newRenderCommand(ctx *commandContext) *cobra.Command {
	flags := &exportFlags{}
	cmd := &cobra.Command{
		Use:   "render <project> [output-file]",
		Short: "Render the whole project to one file",
		Long: "Render the whole project to one file.\n\n" +
			"The format comes from --format, then the output file's extension, then the\n" +
			"configured default. Without an output file the mixdown is written to the\n" +
			"configured output directory, named after the project file.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, ctx, flags, args, false)
		},
	}
	flags.register(cmd)
	return cmd
}

func newStemsCommand(ctx *commandContext) *cobra.Command {
	flags := &exportFlags{}
	cmd := &cobra.Command{
		Use:   "stems <project> [directory]",
		Short: "Render every audible track to its own file",
		Long: "Render every audible track to its own file.\n\n" +
			"Unmuted instrument and sample tracks are exported first, then unmuted\n" +
			"pattern tracks. Files are named <n>_<letters of the track name>.<ext>.\n" +
			"The destination directory must already exist.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, ctx, flags, args, true)
		},
	}
	flags.register(cmd)
	return cmd
}

func runExport(cmd *cobra.Command, ctx *commandContext, flags *exportFlags, args []string, multi bool) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}

	projectPath, err := config.ExpandPath(args[0])
	if err != nil {
		return fmt.Errorf("resolve project path: %w", err)
	}
	proj, err := project.Load(projectPath)
	if err != nil {
		return err
	}
	target, err := exportTarget(cfg, projectPath, args, multi)
	if err != nil {
		return err
	}

	settings, err := export.SettingsFromConfig(flags.renderConfig(cmd, cfg.Render))
	if err != nil {
		return err
	}

	store, err := ctx.openHistory()
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	opts := []export.Option{
		export.WithHistory(store),
		export.WithMetrics(metrics.New()),
		export.WithNotifier(notifications.NewService(cfg)),
	}
	if !flags.json {
		opts = append(opts, export.WithObserver(newProgressPresenter(cmd.OutOrStdout())))
	}
	coord := export.NewCoordinator(cfg, logger, opts...)

	result, runErr := coord.Run(cmd.Context(), export.Request{
		Project:     proj,
		Settings:    settings,
		Format:      flags.format,
		Target:      target,
		Multi:       multi,
		Synchronous: flags.wait,
	})
	if runErr != nil && result.RunID == "" {
		return runErr
	}
	if flags.json {
		if err := writeJSON(cmd, newExportOutput(proj.Name, multi, result)); err != nil {
			return err
		}
	}
	if runErr != nil {
		return runErr
	}
	if n := len(result.Summary.Failures); n > 0 {
		return fmt.Errorf("%w: %d of %d tracks failed", errIncomplete, n, result.Summary.Total)
	}
	return nil
}

// exportTarget resolves the output file (single) or directory (stems), using
// the configured output directory when none is given.
func exportTarget(cfg *config.Config, projectPath string, args []string, multi bool) (string, error) {
	if len(args) > 1 && strings.TrimSpace(args[1]) != "" {
		return config.ExpandPath(args[1])
	}
	if strings.TrimSpace(cfg.Paths.OutputDir) == "" {
		return "", errors.New("no destination given and paths.output_dir is not configured")
	}
	if multi {
		return cfg.Paths.OutputDir, nil
	}
	base := filepath.Base(projectPath)
	return filepath.Join(cfg.Paths.OutputDir, strings.TrimSuffix(base, filepath.Ext(base))), nil
}

type failureOutput struct {
	Seq   int    `json:"seq"`
	Track string `json:"track"`
	Path  string `json:"path"`
	Error string `json:"error"`
}

type exportOutput struct {
	RunID     string          `json:"run_id"`
	Project   string          `json:"project"`
	Mode      string          `json:"mode"`
	Format    string          `json:"format"`
	Target    string          `json:"target"`
	State     string          `json:"state"`
	Total     int             `json:"total"`
	Completed int             `json:"completed"`
	Exported  int             `json:"exported"`
	Failures  []failureOutput `json:"failures,omitempty"`
	Reason    string          `json:"reason,omitempty"`
}

func newExportOutput(projectName string, multi bool, result export.Result) exportOutput {
	mode := "single"
	if multi {
		mode = "stems"
	}
	s := result.Summary
	out := exportOutput{
		RunID:     result.RunID,
		Project:   projectName,
		Mode:      mode,
		Format:    result.Format.String(),
		Target:    result.Target,
		State:     s.State.String(),
		Total:     s.Total,
		Completed: s.Completed,
		Exported:  s.Exported,
		Reason:    s.Reason,
	}
	for _, f := range s.Failures {
		out.Failures = append(out.Failures, failureOutput{Seq: f.Seq, Track: f.Track, Path: f.Path, Error: errorText(f.Err)})
	}
	return out
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

var _ multirender.Observer = (*progressPresenter)(nil)
