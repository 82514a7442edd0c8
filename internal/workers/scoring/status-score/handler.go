// internal/workers/scoring/status-score/handler.go
package statusscore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"github.com/50mmer/statusai/internal/common/errors"
	"github.com/50mmer/statusai/internal/common/logger"
	"github.com/50mmer/statusai/internal/common/metrics"
	"github.com/50mmer/statusai/internal/pipeline"
)

const (
	TaskType = "status-score"
)

// SubscriptionChecker gates scoring on an active subscription.
// *entitlement.Checker implements it.
type SubscriptionChecker interface {
	HasActiveSubscription(ctx context.Context, userID string) (bool, error)
}

type Handler struct {
	config     *Config
	scorer     pipeline.Scorer
	checker    SubscriptionChecker
	opts       pipeline.Options
	errHandler *errors.ErrorHandler
	logger     logger.Logger
}

// NewHandler builds the job handler. opts is copied into a fresh controller
// for every job; checker may be nil when subscriptions are not required.
func NewHandler(config *Config, scorer pipeline.Scorer, checker SubscriptionChecker, opts pipeline.Options, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:  config,
		scorer:  scorer,
		checker: checker,
		opts:    opts,
		// Pipeline failures are reported by the controller, the rest by report().
		errHandler: errors.NewErrorHandler(log, nil),
		logger:     log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		pErr := errors.NewValidationError(fmt.Sprintf("parse input: %v", err))
		h.report(pErr, job)
		h.failJob(client, job, pErr)
		return
	}

	output, err := h.execute(ctx, &input)
	if err != nil {
		if errors.ClassOf(err) == errors.ClassSubscriptionInvalid || errors.ClassOf(err) == errors.ClassSubscriptionCheckFailed {
			h.report(err, job)
		}
		h.failJob(client, job, err)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if h.config.RequireSubscription && h.checker != nil {
		active, err := h.checker.HasActiveSubscription(ctx, input.UserID)
		if err != nil {
			return nil, err
		}
		if !active {
			return nil, errors.NewSubscriptionInvalidError(fmt.Sprintf("user %q has no active subscription", input.UserID))
		}
	}

	opts := h.opts
	opts.UserID = input.UserID
	ctrl := pipeline.New(h.scorer, h.logger, opts)
	defer ctrl.Close()

	result, err := ctrl.Run(ctx, input.Answers)
	if err != nil {
		return nil, err
	}

	return &Output{
		RunID:        ctrl.State().RunID,
		ScoreResult:  result,
		OverallScore: result.OverallScore,
		Percentile:   result.GlobalRanking.Percentile,
	}, nil
}

func (h *Handler) report(err error, job entities.Job) {
	if h.opts.Hub == nil {
		return
	}
	h.opts.Hub.Report(err, "job:"+TaskType, map[string]interface{}{
		"jobKey":             job.Key,
		"processInstanceKey": job.ProcessInstanceKey,
	})
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if _, err = cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, err error) {
	bpmnErr := errors.ConvertToBPMNError(errors.AsPipelineError(err))
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, bpmnErr.Code).Inc()
	h.errHandler.HandleJobError(context.Background(), client, job, err)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
