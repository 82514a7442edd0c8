// internal/common/camunda/worker.go
package camunda

import (
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"

	"github.com/50mmer/statusai/internal/common/config"
	"github.com/50mmer/statusai/internal/common/logger"
	"github.com/50mmer/statusai/internal/common/metrics"
)

// Worker is one opened job worker.
type Worker struct {
	worker   worker.JobWorker
	logger   logger.Logger
	taskType string
}

// StartWorker opens a job worker for taskType. It returns nil when the worker
// is disabled in config.
func StartWorker(client zbc.Client, taskType string, wcfg config.WorkerConfig, handler worker.JobHandler, log logger.Logger) *Worker {
	log = log.With(map[string]interface{}{"taskType": taskType})
	if !wcfg.Enabled {
		log.Info("worker disabled", nil)
		return nil
	}

	jobWorker := client.NewJobWorker().
		JobType(taskType).
		Handler(Instrument(taskType, handler)).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(config.GetDuration(wcfg.Timeout)).
		Open()

	log.Info("worker started", map[string]interface{}{
		"maxJobsActive": wcfg.MaxJobsActive,
		"timeout_ms":    wcfg.Timeout,
	})

	return &Worker{
		worker:   jobWorker,
		logger:   log,
		taskType: taskType,
	}
}

// Instrument records the duration of every job handled by h.
func Instrument(taskType string, h worker.JobHandler) worker.JobHandler {
	return func(client worker.JobClient, job entities.Job) {
		start := time.Now()
		defer func() {
			metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(time.Since(start).Seconds())
		}()
		h(client, job)
	}
}

// Close stops activating new jobs and waits for running handlers.
func (w *Worker) Close() {
	if w == nil {
		return
	}
	w.logger.Info("stopping worker", nil)
	w.worker.Close()
	w.worker.AwaitClose()
}
