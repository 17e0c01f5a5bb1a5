// internal/common/errors/handler.go
package errors

import (
	"context"
	"encoding/json"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// ErrorHandler reports job errors back to the workflow engine.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// HandleJobError never asks the engine to retry. Stage failures are thrown as BPMN
// errors carrying the stage tag so the process model can route them to a manual
// retry step; anything else fails the job with zero retries, raising an incident.
func (h *ErrorHandler) HandleJobError(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	stageErr, ok := AsStageError(err)
	if !ok {
		h.logger.Error("Job failed", map[string]interface{}{
			"jobKey":           job.Key,
			"jobType":          job.Type,
			"error":            err.Error(),
			"workflowInstance": job.ProcessInstanceKey,
		})
		_, _ = client.NewFailJobCommand().
			JobKey(job.Key).
			Retries(0).
			ErrorMessage(err.Error()).
			Send(ctx)
		return
	}

	h.logger.Error("Job failed", map[string]interface{}{
		"jobKey":           job.Key,
		"jobType":          job.Type,
		"errorStage":       string(stageErr.Stage),
		"errorCode":        string(stageErr.Code),
		"message":          stageErr.Message,
		"details":          stageErr.Details,
		"workflowInstance": job.ProcessInstanceKey,
	})
	h.throwBPMNError(ctx, client, job, stageErr)
}

func (h *ErrorHandler) throwBPMNError(ctx context.Context, client worker.JobClient, job entities.Job, stageErr *StageError) {
	cmd := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(string(stageErr.Code)).
		ErrorMessage(stageErr.Message)

	varsJSON, err := json.Marshal(stageErr.ToErrorVariables())
	if err == nil {
		if cmdWithVars, err := cmd.VariablesFromString(string(varsJSON)); err == nil {
			_, _ = cmdWithVars.Send(ctx)
			return
		}
	}

	_, _ = cmd.Send(ctx)
}
