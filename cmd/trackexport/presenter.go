package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"sync"

	"trackexport/internal/logging"
	"trackexport/internal/multirender"
)

// progressPresenter prints run progress for humans. On a terminal the
// "Rendering" line is redrawn in place; otherwise progress is printed in
// 25% steps.
type progressPresenter struct {
	out      io.Writer
	tty      bool
	mu       sync.Mutex
	sampler  *logging.ProgressSampler
	lineOpen bool
}

func newProgressPresenter(out io.Writer) *progressPresenter {
	return &progressPresenter{
		out:     out,
		tty:     isTerminal(out),
		sampler: logging.NewProgressSampler(25),
	}
}

func (p *progressPresenter) Progress(pr multirender.Progress) {
	overall := pr.Overall()
	label := "Rendering"
	if pr.Current != "" && pr.Total > 1 {
		label = fmt.Sprintf("Rendering %d/%d %s", pr.Seq, pr.Total, pr.Current)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tty {
		fmt.Fprintf(p.out, "%s%s: %d%%", ansiClearLine, label, overall)
		p.lineOpen = true
		return
	}
	if p.sampler.ShouldLog(pr.Seq, pr.Percent) {
		fmt.Fprintf(p.out, "%s: %d%%\n", label, overall)
	}
}

func (p *progressPresenter) JobStarted(multirender.Job) {}

func (p *progressPresenter) JobFinished(job multirender.Job, err error) {
	label := filepath.Base(job.Path)
	kind, message := statusOK, "exported"
	switch {
	case err == nil:
	case errors.Is(err, multirender.ErrAborted):
		kind, message = statusWarn, "aborted"
	case errors.Is(err, multirender.ErrRendererNotReady):
		kind, message = statusWarn, "skipped: "+err.Error()
	default:
		kind, message = statusError, err.Error()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLine()
	fmt.Fprintln(p.out, renderStatusLine(label, kind, message, p.tty))
}

func (p *progressPresenter) Finished(s multirender.Summary) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLine()
	line := fmt.Sprintf("%s: %s", titleLabel(s.State.String()), s)
	if s.Reason != "" && s.Exported == 0 {
		line += " (" + s.Reason + ")"
	}
	fmt.Fprintln(p.out, line)
	if len(s.Failures) > 0 {
		fmt.Fprintln(p.out, failuresTable(s.Failures))
	}
}

func (p *progressPresenter) Aborted(reason string, s multirender.Summary) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLine()
	fmt.Fprintf(p.out, "%s: %s; %s\n", titleLabel(s.State.String()), reason, s)
	if len(s.Failures) > 0 {
		fmt.Fprintln(p.out, failuresTable(s.Failures))
	}
}

func failuresTable(failures []multirender.Failure) string {
	rows := make([][]string, 0, len(failures))
	for _, f := range failures {
		errText := ""
		if f.Err != nil {
			errText = f.Err.Error()
		}
		rows = append(rows, []string{strconv.Itoa(f.Seq), f.Track, filepath.Base(f.Path), errText})
	}
	return renderTable([]string{"#", "Track", "File", "Error"}, rows, []columnAlignment{alignRight})
}

func (p *progressPresenter) closeLine() {
	if p.lineOpen {
		fmt.Fprintln(p.out)
		p.lineOpen = false
	}
}
