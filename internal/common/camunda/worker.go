// internal/common/camunda/worker.go
package camunda

import (
	"sync"
	"time"

	"petcare-workers/internal/common/config"
	"petcare-workers/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// Workers tracks opened job workers so they can be closed together.
type Workers struct {
	mu      sync.Mutex
	client  zbc.Client
	logger  logger.Logger
	workers map[string]worker.JobWorker
}

func NewWorkers(client zbc.Client, log logger.Logger) *Workers {
	return &Workers{
		client:  client,
		logger:  log,
		workers: make(map[string]worker.JobWorker),
	}
}

// Start opens a job worker for taskType unless it is disabled in config.
func (w *Workers) Start(taskType string, wcfg config.WorkerConfig, handler worker.JobHandler) {
	if !wcfg.Enabled {
		w.logger.Info("worker disabled", map[string]interface{}{"taskType": taskType})
		return
	}

	jw := w.client.NewJobWorker().
		JobType(taskType).
		Handler(handler).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(config.GetDuration(wcfg.Timeout)).
		Open()

	w.mu.Lock()
	w.workers[taskType] = jw
	w.mu.Unlock()

	w.logger.Info("worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": wcfg.MaxJobsActive,
		"timeout_ms":    wcfg.Timeout,
	})
}

// Running returns the task types with an open worker.
func (w *Workers) Running() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	types := make([]string, 0, len(w.workers))
	for t := range w.workers {
		types = append(types, t)
	}
	return types
}

// CloseAll stops polling and waits for in-flight jobs of every worker.
func (w *Workers) CloseAll(timeout time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		var wg sync.WaitGroup
		for taskType, jw := range w.workers {
			wg.Add(1)
			go func(taskType string, jw worker.JobWorker) {
				defer wg.Done()
				jw.Close()
				jw.AwaitClose()
				w.logger.Info("worker stopped", map[string]interface{}{"taskType": taskType})
			}(taskType, jw)
		}
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		w.logger.Warn("timed out waiting for workers to stop", map[string]interface{}{"timeout": timeout.String()})
	}
	w.workers = make(map[string]worker.JobWorker)
}
