// internal/common/errors/handler.go
package errors

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

// ==========================
// Error report subscription
// ==========================

// Report is one unhandled error delivered to Hub subscribers.
type Report struct {
	Err     error
	Class   FailureClass
	Source  string
	Context map[string]interface{}
	Time    time.Time
}

// ReportFunc receives error reports. It must not block.
type ReportFunc func(Report)

// Hub fans error reports out to explicit subscribers. The application root
// subscribes its sinks at startup and calls the returned unsubscribe func on
// shutdown; nothing is registered globally.
type Hub struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]ReportFunc
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]ReportFunc)}
}

// Subscribe registers fn and returns a func that removes it. Calling the
// returned func more than once is harmless.
func (h *Hub) Subscribe(fn ReportFunc) (unsubscribe func()) {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

// Report delivers err to every current subscriber. Nil errors are ignored.
func (h *Hub) Report(err error, source string, ctx map[string]interface{}) {
	if err == nil {
		return
	}

	h.mu.RLock()
	fns := make([]ReportFunc, 0, len(h.subs))
	for _, fn := range h.subs {
		fns = append(fns, fn)
	}
	h.mu.RUnlock()

	r := Report{
		Err:     err,
		Class:   ClassOf(err),
		Source:  source,
		Context: ctx,
		Time:    time.Now().UTC(),
	}
	for _, fn := range fns {
		fn(r)
	}
}

// Subscribers returns the number of registered subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// ==========================
// Job error handling
// ==========================

// ErrorHandler fails or throws Zeebe jobs from pipeline errors.
type ErrorHandler struct {
	logger Logger
	hub    *Hub
}

// NewErrorHandler builds an ErrorHandler. hub may be nil.
func NewErrorHandler(logger Logger, hub *Hub) *ErrorHandler {
	return &ErrorHandler{logger: logger, hub: hub}
}

// HandleJobError fails the job with retries when the class allows it, and
// throws a BPMN error otherwise.
func (h *ErrorHandler) HandleJobError(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	pErr := AsPipelineError(err)
	bpmnErr := ConvertToBPMNError(pErr)

	h.logError(job, pErr, bpmnErr)
	if h.hub != nil {
		h.hub.Report(pErr, "job:"+job.Type, map[string]interface{}{
			"jobKey":             job.Key,
			"processInstanceKey": job.ProcessInstanceKey,
		})
	}

	if bpmnErr.Retries > 0 && job.Retries > 1 {
		h.failJobWithRetries(ctx, client, job, bpmnErr)
		return
	}
	h.throwBPMNError(ctx, client, job, bpmnErr)
}

func (h *ErrorHandler) failJobWithRetries(ctx context.Context, client worker.JobClient, job entities.Job, bpmnErr *BPMNError) {
	retries := int(job.Retries) - 1
	if retries > bpmnErr.Retries {
		retries = bpmnErr.Retries
	}

	cmd := client.NewFailJobCommand().
		JobKey(job.Key).
		Retries(int32(retries)).
		ErrorMessage(bpmnErr.Message)

	if varsJSON, err := json.Marshal(bpmnErr.ToErrorVariables()); err == nil {
		if withVars, err := cmd.VariablesFromString(string(varsJSON)); err == nil {
			_, _ = withVars.Send(ctx)
			return
		}
	}
	_, _ = cmd.Send(ctx)
}

func (h *ErrorHandler) throwBPMNError(ctx context.Context, client worker.JobClient, job entities.Job, bpmnErr *BPMNError) {
	cmd := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(bpmnErr.Code).
		ErrorMessage(bpmnErr.Message)

	if varsJSON, err := json.Marshal(bpmnErr.ToErrorVariables()); err == nil {
		if withVars, err := cmd.VariablesFromString(string(varsJSON)); err == nil {
			_, _ = withVars.Send(ctx)
			return
		}
	}
	_, _ = cmd.Send(ctx)
}

func (h *ErrorHandler) logError(job entities.Job, pErr *PipelineError, bpmnErr *BPMNError) {
	h.logger.Error("Job failed", map[string]interface{}{
		"jobKey":           job.Key,
		"jobType":          job.Type,
		"failureClass":     string(pErr.Class),
		"bpmnErrorCode":    bpmnErr.Code,
		"message":          pErr.Message,
		"details":          pErr.Details,
		"attempts":         pErr.Attempts,
		"retryable":        pErr.Retryable,
		"retries":          bpmnErr.Retries,
		"errorCategory":    GetErrorCategory(pErr.Class),
		"workflowInstance": job.ProcessInstanceKey,
	})
}
