package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"trackexport/internal/config"
)

const userAgent = "trackexport/0.1.0"

// Report summarizes one export run for a notification.
type Report struct {
	Project     string
	Mode        string
	Format      string
	Destination string
	Total       int
	Exported    int
	Failed      int
	Reason      string
	Duration    time.Duration
}

// Service sends export notifications.
type Service interface {
	NotifyExportFinished(ctx context.Context, report Report) error
	NotifyExportAborted(ctx context.Context, report Report) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyExportFinished(ctx context.Context, r Report) error {
	data := payload{
		title:   "trackexport - Export Complete",
		message: fmt.Sprintf("%s: %s in %s", projectLabel(r), exportedText(r), durationText(r.Duration)),
		tags:    []string{"trackexport", "export", modeLabel(r.Mode)},
	}
	if r.Failed > 0 {
		data.title = "trackexport - Export Complete (with errors)"
		data.message = fmt.Sprintf("%s: %s, %d failed in %s", projectLabel(r), exportedText(r), r.Failed, durationText(r.Duration))
		data.priority = "high"
	}
	if dest := strings.TrimSpace(r.Destination); dest != "" {
		data.message += "\nDestination: " + dest
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyExportAborted(ctx context.Context, r Report) error {
	reason := strings.TrimSpace(r.Reason)
	if reason == "" {
		reason = "aborted"
	}
	data := payload{
		title:   "trackexport - Export Aborted",
		message: fmt.Sprintf("%s: export stopped (%s) after %s", projectLabel(r), reason, exportedText(r)),
		tags:    []string{"trackexport", "export", "aborted"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "trackexport - Test",
		message:  "Notification system test",
		tags:     []string{"trackexport", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func projectLabel(r Report) string {
	name := strings.TrimSpace(r.Project)
	if name == "" {
		name = "Untitled project"
	}
	if format := strings.TrimSpace(r.Format); format != "" {
		return fmt.Sprintf("%s (%s)", name, format)
	}
	return name
}

func exportedText(r Report) string {
	if r.Mode == "stems" {
		return fmt.Sprintf("%d of %d stems exported", r.Exported, r.Total)
	}
	if r.Exported > 0 {
		return "mixdown exported"
	}
	return "no mixdown written"
}

func modeLabel(mode string) string {
	if mode == "" {
		return "single"
	}
	return mode
}

func durationText(d time.Duration) string {
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	return d.String()
}

type noopService struct{}

func (noopService) NotifyExportFinished(context.Context, Report) error { return nil }

func (noopService) NotifyExportAborted(context.Context, Report) error { return nil }

func (noopService) TestNotification(context.Context) error { return nil }
