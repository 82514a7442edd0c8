// Package telemetry is the fire-and-forget sink for analytics events and
// error reports.
package telemetry

import (
	"sync"
	"time"

	"github.com/50mmer/statusai/internal/common/errors"
	"github.com/50mmer/statusai/internal/common/logger"
	"github.com/50mmer/statusai/internal/common/metrics"
)

// Analytics event names.
const (
	EventAssessmentStart    = "assessment_start"
	EventAssessmentComplete = "assessment_complete"
	EventAssessmentAbandon  = "assessment_abandon"
	EventError              = "error"
)

const (
	DefaultBufferSize = 256
	// MaxErrorLogs is how many error reports RecentErrors keeps.
	MaxErrorLogs = 100
)

// Event is one analytics event.
type Event struct {
	Name   string                 `json:"name"`
	Params map[string]interface{} `json:"params,omitempty"`
	Time   time.Time              `json:"timestamp"`
}

// ErrorLog is one recorded error report.
type ErrorLog struct {
	Message string                 `json:"message"`
	Class   errors.FailureClass    `json:"failureClass"`
	Source  string                 `json:"source"`
	Context map[string]interface{} `json:"context,omitempty"`
	Time    time.Time              `json:"timestamp"`
}

type item struct {
	event *Event
	err   *ErrorLog
}

// Sink buffers events and writes them from a single goroutine. Callers never
// block; when the buffer is full the item is dropped and counted.
type Sink struct {
	logger logger.Logger
	ch     chan item
	done   chan struct{}

	sendMu sync.RWMutex
	closed bool

	logMu sync.Mutex
	logs  []ErrorLog
}

func New(log logger.Logger, bufferSize int) *Sink {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	s := &Sink{
		logger: logger.Component(log, "telemetry"),
		ch:     make(chan item, bufferSize),
		done:   make(chan struct{}),
	}
	go s.loop()
	return s
}

// TrackEvent queues an analytics event.
func (s *Sink) TrackEvent(name string, params map[string]interface{}) {
	s.enqueue(item{event: &Event{Name: name, Params: copyParams(params), Time: time.Now().UTC()}})
}

// LogError records err in the recent-errors ring and queues it for logging.
// Nil errors are ignored.
func (s *Sink) LogError(err error, source string, context map[string]interface{}) {
	if err == nil {
		return
	}
	entry := ErrorLog{
		Message: err.Error(),
		Class:   errors.ClassOf(err),
		Source:  source,
		Context: copyParams(context),
		Time:    time.Now().UTC(),
	}

	s.logMu.Lock()
	s.logs = append(s.logs, entry)
	if len(s.logs) > MaxErrorLogs {
		s.logs = s.logs[len(s.logs)-MaxErrorLogs:]
	}
	s.logMu.Unlock()

	s.enqueue(item{err: &entry})
}

// HandleReport adapts the sink to an errors.Hub subscription.
func (s *Sink) HandleReport(r errors.Report) {
	s.LogError(r.Err, r.Source, r.Context)
}

// RecentErrors returns the recorded error reports, oldest first.
func (s *Sink) RecentErrors() []ErrorLog {
	s.logMu.Lock()
	defer s.logMu.Unlock()
	out := make([]ErrorLog, len(s.logs))
	copy(out, s.logs)
	return out
}

// ClearErrors empties the recent-errors ring.
func (s *Sink) ClearErrors() {
	s.logMu.Lock()
	s.logs = nil
	s.logMu.Unlock()
}

// Close stops accepting items and waits until everything queued is written.
func (s *Sink) Close() {
	s.sendMu.Lock()
	if s.closed {
		s.sendMu.Unlock()
		<-s.done
		return
	}
	s.closed = true
	close(s.ch)
	s.sendMu.Unlock()
	<-s.done
}

func (s *Sink) enqueue(it item) {
	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.closed {
		metrics.TelemetryDropped.Inc()
		return
	}
	select {
	case s.ch <- it:
	default:
		metrics.TelemetryDropped.Inc()
	}
}

func (s *Sink) loop() {
	defer close(s.done)
	for it := range s.ch {
		switch {
		case it.event != nil:
			metrics.TelemetryEvents.WithLabelValues("event", it.event.Name).Inc()
			fields := map[string]interface{}{"event": it.event.Name}
			for k, v := range it.event.Params {
				fields[k] = v
			}
			s.logger.Info("Analytics event", fields)
		case it.err != nil:
			metrics.TelemetryEvents.WithLabelValues("error", string(it.err.Class)).Inc()
			fields := map[string]interface{}{
				"source":       it.err.Source,
				"failureClass": string(it.err.Class),
				"error":        it.err.Message,
			}
			for k, v := range it.err.Context {
				if _, taken := fields[k]; !taken {
					fields[k] = v
				}
			}
			s.logger.Error("Error reported", fields)
		}
	}
}

func copyParams(in map[string]interface{}) map[string]interface{} {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
