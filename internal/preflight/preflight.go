package preflight

import (
	"trackexport/internal/config"
	"trackexport/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the checks relevant to the given config. The default output
// directory is only checked when configured.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results, CheckEngine(cfg.Render.EngineBinary))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	if cfg.Paths.OutputDir != "" {
		results = append(results, CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir))
	}
	return results
}

// CheckEngine verifies the render engine binary is on PATH.
func CheckEngine(binary string) Result {
	statuses := deps.CheckBinaries([]deps.Requirement{{
		Name:        "Render engine",
		Command:     binary,
		Description: "Required to render project audio",
	}})
	status := statuses[0]
	if !status.Available {
		return Result{Name: status.Name, Detail: status.Detail}
	}
	return Result{Name: status.Name, Passed: true, Detail: status.Command}
}
