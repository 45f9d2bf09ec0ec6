package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"overdub/internal/config"
	"overdub/internal/jobs"
)

const userAgent = "Overdub-Go/0.1.0"

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	NotifyJobQueued(ctx context.Context, job *jobs.Job) error
	NotifyTranscriptReady(ctx context.Context, job *jobs.Job) error
	NotifyJobCompleted(ctx context.Context, job *jobs.Job) error
	NotifyJobFailed(ctx context.Context, job *jobs.Job, cause string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent).
		SetHeader("Content-Type", "text/plain; charset=utf-8")

	return &ntfyService{
		endpoint:   topic,
		client:     client,
		completion: cfg.Notifications.Completion,
		errors:     cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint   string
	client     *resty.Client
	completion bool
	errors     bool
}

func (n *ntfyService) NotifyJobQueued(ctx context.Context, job *jobs.Job) error {
	if !n.completion {
		return nil
	}
	data := payload{
		title:   "Overdub - Job Queued",
		message: fmt.Sprintf("Queued %s for dubbing (%s)", jobLabel(job), job.MediaType),
		tags:    []string{"overdub", "job", "queued"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyTranscriptReady(ctx context.Context, job *jobs.Job) error {
	if !n.completion {
		return nil
	}
	data := payload{
		title:   "Overdub - Transcript Ready",
		message: fmt.Sprintf("Transcript ready for review: %s\nRun overdub show and overdub start to continue", jobLabel(job)),
		tags:    []string{"overdub", "transcript", "review"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobCompleted(ctx context.Context, job *jobs.Job) error {
	if !n.completion {
		return nil
	}
	message := fmt.Sprintf("Dub complete: %s", jobLabel(job))
	if job.Output != nil && strings.TrimSpace(job.Output.FinalMediaPath) != "" {
		message = fmt.Sprintf("%s\nFile: %s", message, job.Output.FinalMediaPath)
	}
	data := payload{
		title:    "Overdub - Complete",
		message:  message,
		tags:     []string{"overdub", "job", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, job *jobs.Job, cause string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Dub failed: ")
	builder.WriteString(jobLabel(job))
	if cause = strings.TrimSpace(cause); cause != "" {
		builder.WriteString("\n")
		builder.WriteString(cause)
	}
	data := payload{
		title:    "Overdub - Failed",
		message:  builder.String(),
		tags:     []string{"overdub", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Overdub - Test",
		message:  "Notification system test",
		tags:     []string{"overdub", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req := n.client.R().
		SetContext(ctx).
		SetBody(data.message)
	if data.title != "" {
		req.SetHeader("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.SetHeader("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.SetHeader("Priority", data.priority)
	}

	resp, err := req.Post(n.endpoint)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	if resp.StatusCode() >= 300 {
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return nil
}

func jobLabel(job *jobs.Job) string {
	if job == nil {
		return "unknown job"
	}
	if name := strings.TrimSpace(job.SourceName()); name != "" {
		return name
	}
	return job.ID
}

type noopService struct{}

func (noopService) NotifyJobQueued(context.Context, *jobs.Job) error           { return nil }
func (noopService) NotifyTranscriptReady(context.Context, *jobs.Job) error     { return nil }
func (noopService) NotifyJobCompleted(context.Context, *jobs.Job) error        { return nil }
func (noopService) NotifyJobFailed(context.Context, *jobs.Job, string) error   { return nil }
func (noopService) TestNotification(context.Context) error                     { return nil }
