// internal/common/camunda/worker.go
package camunda

import (
	"sync"
	"time"

	"registration-workflow/internal/common/config"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"go.uber.org/zap"
)

// JobHandlerFunc is the signature every registration worker exposes as Handle.
type JobHandlerFunc func(client worker.JobClient, job entities.Job)

// WorkerGroup opens job workers and closes them together on shutdown.
type WorkerGroup struct {
	client  zbc.Client
	logger  *zap.Logger
	mu      sync.Mutex
	workers map[string]worker.JobWorker
}

func NewWorkerGroup(client zbc.Client, logger *zap.Logger) *WorkerGroup {
	return &WorkerGroup{
		client:  client,
		logger:  logger,
		workers: make(map[string]worker.JobWorker),
	}
}

// Start opens a job worker for taskType unless it is disabled in config.
func (g *WorkerGroup) Start(taskType string, wcfg config.WorkerConfig, handler JobHandlerFunc) {
	if !wcfg.Enabled {
		g.logger.Info("worker disabled", zap.String("taskType", taskType))
		return
	}

	jobWorker := g.client.NewJobWorker().
		JobType(taskType).
		Handler(worker.JobHandler(handler)).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(config.GetDuration(wcfg.Timeout)).
		Open()

	g.mu.Lock()
	g.workers[taskType] = jobWorker
	g.mu.Unlock()

	g.logger.Info("worker started",
		zap.String("taskType", taskType),
		zap.Int("maxJobsActive", wcfg.MaxJobsActive),
		zap.Int("timeout_ms", wcfg.Timeout),
	)
}

// Running returns the task types with an open worker.
func (g *WorkerGroup) Running() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, 0, len(g.workers))
	for taskType := range g.workers {
		out = append(out, taskType)
	}
	return out
}

// Stop closes every worker and waits up to timeout for in-flight jobs.
func (g *WorkerGroup) Stop(timeout time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var wg sync.WaitGroup
	for taskType, w := range g.workers {
		wg.Add(1)
		go func(taskType string, w worker.JobWorker) {
			defer wg.Done()
			w.Close()
			w.AwaitClose()
			g.logger.Info("worker stopped", zap.String("taskType", taskType))
		}(taskType, w)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		g.logger.Warn("timed out waiting for workers to stop", zap.Duration("timeout", timeout))
	}
	g.workers = make(map[string]worker.JobWorker)
}
