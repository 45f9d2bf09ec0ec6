package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"overdub/internal/config"
	"overdub/internal/credits"
	"overdub/internal/jobs"
	"overdub/internal/notifications"
	"overdub/internal/stage"
)

// Ledger is the credit surface the pipeline needs: releasing a reservation
// when a job fails terminally or is removed.
type Ledger interface {
	Release(ctx context.Context, jobID string) error
}

var _ Ledger = (*credits.Ledger)(nil)

// StageSet bundles the concrete stage handlers the manager orchestrates.
type StageSet struct {
	Ingester    stage.Handler
	Extractor   stage.Handler
	Transcriber stage.Handler
	Clusterer   stage.Handler
	Translator  stage.Handler
	Cloner      stage.Handler
	Merger      stage.Handler
}

type pipelineStage struct {
	name        string
	handler     stage.Handler
	startStatus jobs.Status
	doneStatus  jobs.Status
}

// Manager coordinates job processing using registered stage handlers.
type Manager struct {
	cfg          *config.Config
	store        *jobs.Store
	logger       *slog.Logger
	notifier     notifications.Service
	ledger       Ledger
	pollInterval time.Duration

	heartbeat *HeartbeatMonitor

	stages       []pipelineStage
	stageByStart map[jobs.Status]pipelineStage
	statusOrder  []jobs.Status

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
	lastJob *jobs.Job
}

// NewManager constructs a pipeline manager with the default notifier.
func NewManager(cfg *config.Config, store *jobs.Store, logger *slog.Logger, ledger Ledger) *Manager {
	return NewManagerWithNotifier(cfg, store, logger, ledger, notifications.NewService(cfg))
}

// NewManagerWithNotifier constructs a pipeline manager with a custom notifier
// (used in tests).
func NewManagerWithNotifier(cfg *config.Config, store *jobs.Store, logger *slog.Logger, ledger Ledger, notifier notifications.Service) *Manager {
	return &Manager{
		cfg:          cfg,
		store:        store,
		logger:       logger,
		notifier:     notifier,
		ledger:       ledger,
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		heartbeat: NewHeartbeatMonitor(
			store,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
		),
	}
}

// ConfigureStages registers the concrete stage handlers the pipeline will run.
// Stage order mirrors the job lifecycle; transcribing_done carries no handler
// because the pipeline waits there for user review.
func (m *Manager) ConfigureStages(set StageSet) {
	var stages []pipelineStage

	if set.Ingester != nil {
		stages = append(stages, pipelineStage{
			name:        "ingest",
			handler:     set.Ingester,
			startStatus: jobs.StatusUploading,
			doneStatus:  jobs.StatusExtracting,
		})
	}
	if set.Extractor != nil {
		stages = append(stages, pipelineStage{
			name:        "extract",
			handler:     set.Extractor,
			startStatus: jobs.StatusExtracting,
			doneStatus:  jobs.StatusTranscribing,
		})
	}
	if set.Transcriber != nil {
		stages = append(stages, pipelineStage{
			name:        "transcribe",
			handler:     set.Transcriber,
			startStatus: jobs.StatusTranscribing,
			doneStatus:  jobs.StatusTranscribingDone,
		})
	}
	if set.Clusterer != nil {
		stages = append(stages, pipelineStage{
			name:        "cluster",
			handler:     set.Clusterer,
			startStatus: jobs.StatusClustering,
			doneStatus:  jobs.StatusTranslating,
		})
	}
	if set.Translator != nil {
		stages = append(stages, pipelineStage{
			name:        "translate",
			handler:     set.Translator,
			startStatus: jobs.StatusTranslating,
			doneStatus:  jobs.StatusCloning,
		})
	}
	if set.Cloner != nil {
		stages = append(stages, pipelineStage{
			name:        "clone",
			handler:     set.Cloner,
			startStatus: jobs.StatusCloning,
			doneStatus:  jobs.StatusMerging,
		})
	}
	if set.Merger != nil {
		stages = append(stages, pipelineStage{
			name:        "merge",
			handler:     set.Merger,
			startStatus: jobs.StatusMerging,
			doneStatus:  jobs.StatusCompleted,
		})
	}

	byStart := make(map[jobs.Status]pipelineStage, len(stages))
	order := make([]jobs.Status, 0, len(stages))
	for _, stg := range stages {
		byStart[stg.startStatus] = stg
		order = append(order, stg.startStatus)
	}

	m.mu.Lock()
	m.stages = stages
	m.stageByStart = byStart
	m.statusOrder = order
	m.mu.Unlock()
}

func (m *Manager) stageForStatus(status jobs.Status) (pipelineStage, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stg, ok := m.stageByStart[status]
	return stg, ok
}
