package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"trackexport/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The output directory exists; the log directory and history database do not.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.HistoryDB = filepath.Join(base, "state", "history.db")
	cfgVal.Paths.OutputDir = filepath.Join(base, "exports")
	cfgVal.Logging.Format = "json"
	if err := os.MkdirAll(cfgVal.Paths.OutputDir, 0o755); err != nil {
		t.Fatalf("mkdir output dir: %v", err)
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithEngineBinary overrides the render engine binary on the test config.
func WithEngineBinary(binary string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Render.EngineBinary = binary
	}
}

// WithoutHistory disables the export history database.
func WithoutHistory() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.HistoryDB = ""
	}
}

// WithMetricsTextfile enables the metrics textfile under the base directory.
func WithMetricsTextfile() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Metrics.Textfile = filepath.Join(b.baseDir, "metrics", "trackexport.prom")
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the render engine binary is
// stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{b.cfg.Render.EngineBinary}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// fakeEngineScript mimics the engine's command line: it reports progress as
// JSON lines and writes a stub file to the --output path. Outputs whose base
// name contains "fail" exit non-zero; "slow" ones hang until killed.
const fakeEngineScript = `#!/bin/sh
out=""
while [ $# -gt 0 ]; do
	case "$1" in
	--output) out="$2"; shift ;;
	esac
	shift
done
case "$(basename "$out")" in
*fail*) echo "encoder crashed" >&2; exit 3 ;;
*slow*) echo '{"percent": 10, "stage": "render"}'; exec sleep 30 ;;
esac
echo '{"percent": 50, "stage": "render"}'
printf 'RIFF' > "$out"
echo '{"percent": 100, "stage": "done"}'
`

// WithFakeEngine installs a scripted render engine under the base directory
// and points the config at it.
func WithFakeEngine() ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		target := filepath.Join(binDir, "fake-engine")
		if err := os.WriteFile(target, []byte(fakeEngineScript), 0o755); err != nil {
			b.t.Fatalf("write fake engine: %v", err)
		}
		b.cfg.Render.EngineBinary = target
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.LogDir)
}
