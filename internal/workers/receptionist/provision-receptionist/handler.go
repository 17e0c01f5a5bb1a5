// internal/workers/receptionist/provision-receptionist/handler.go
package provisionreceptionist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"property-receptionist/internal/common/camunda"
	apperrors "property-receptionist/internal/common/errors"
	"property-receptionist/internal/common/logger"
	"property-receptionist/internal/common/metrics"
	"property-receptionist/internal/common/observability"
	"property-receptionist/internal/common/validation"
	"property-receptionist/internal/extraction"
	"property-receptionist/internal/orchestrator"
)

const TaskType = "provision-receptionist"

var (
	ErrInvalidInput = errors.New("INVALID_INPUT")
	ErrJobTimeout   = errors.New("JOB_TIMEOUT")
)

var inputSchema = validation.MustCompile(map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"place"},
	"properties": map[string]interface{}{
		"requestId": map[string]interface{}{"type": "string"},
		"place": map[string]interface{}{
			"type":     "object",
			"required": []interface{}{"name"},
			"properties": map[string]interface{}{
				"name":             map[string]interface{}{"type": "string", "pattern": `\S`},
				"formattedAddress": map[string]interface{}{"type": "string"},
				"state":            map[string]interface{}{"type": "string"},
				"country":          map[string]interface{}{"type": "string"},
			},
		},
		"propertyType": map[string]interface{}{"type": "string"},
		"clientData": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"name":  map[string]interface{}{"type": "string"},
				"email": map[string]interface{}{"type": "string"},
				"phone": map[string]interface{}{"type": "string"},
			},
		},
	},
})

// Dependencies are shared by every job the handler runs.
type Dependencies struct {
	Transport     extraction.Transport
	Provisioner   orchestrator.Provisioner
	Recorder      orchestrator.AgentRecorder
	Observability *observability.Observability
}

type Handler struct {
	config       *Config
	deps         Dependencies
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, deps Dependencies, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		deps:         deps,
		errorHandler: apperrors.NewErrorHandler(log),
		logger:       log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := ParseInput([]byte(job.Variables))
	if err != nil {
		h.record("invalid_input")
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.record(outcomeOf(err))
		h.errorHandler.HandleJobError(context.Background(), client, job, err)
		return
	}

	h.record("ready")
	h.completeJob(client, job, output)
}

// ParseInput validates job variables against the input schema and decodes them.
func ParseInput(variables []byte) (*Input, error) {
	result, err := inputSchema.ValidateBytes(variables)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if !result.Valid {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, result.Error())
	}

	var input Input
	if err := json.Unmarshal(variables, &input); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return &input, nil
}

// Execute runs one find-and-provision flow to Ready or Failed. A Failed flow
// returns its *errors.StageError.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	propertyType := h.config.PropertyType
	if input.PropertyType != "" {
		propertyType = input.PropertyType
	}
	clientData := h.config.ClientData
	if input.ClientData != nil {
		clientData = *input.ClientData
	}

	opts := []orchestrator.Option{orchestrator.WithObservability(h.deps.Observability)}
	if h.deps.Recorder != nil {
		opts = append(opts, orchestrator.WithRecorder(h.deps.Recorder))
	}
	log := h.logger.WithFields(map[string]interface{}{"requestId": input.RequestID})
	o := orchestrator.New(h.deps.Transport, h.deps.Provisioner, orchestrator.Config{
		Extraction: extraction.Options{
			PropertyType:       propertyType,
			RequestPreliminary: h.config.RequestPreliminary,
			IdleTimeout:        h.config.IdleTimeout,
		},
		ClientData:   clientData,
		PropertyType: propertyType,
	}, log, opts...)

	if err := o.FindProperty(input.Place); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	state, err := o.Wait(ctx)
	if err != nil {
		o.Reset()
		return nil, fmt.Errorf("%w: stopped in stage %s: %v", ErrJobTimeout, state.Stage, err)
	}

	switch state.Stage {
	case orchestrator.StageReady:
		return &Output{
			SessionID:     state.SessionID,
			AgentID:       state.Agent.ID,
			PhoneNumber:   state.Agent.PhoneNumber,
			Summary:       state.Preliminary,
			BusinessName:  input.Place.Name,
			LocationLabel: input.Place.LocationLabel(),
		}, nil
	case orchestrator.StageFailed:
		if state.Error != nil {
			return nil, state.Error
		}
	}
	return nil, fmt.Errorf("orchestrator settled in unexpected stage %s", state.Stage)
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	err := camunda.ExecuteWithRetry(context.Background(), camunda.DefaultRetryConfig, "complete-job", func(ctx context.Context) error {
		cmd, err := client.NewCompleteJobCommand().
			JobKey(job.Key).
			VariablesFromObject(output)
		if err != nil {
			return err
		}
		_, err = cmd.Send(ctx)
		return err
	})
	if err != nil {
		h.logger.Error("failed to complete job", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}
	h.logger.Info("job completed", map[string]interface{}{
		"jobKey":  job.Key,
		"agentId": output.AgentID,
	})
}

func (h *Handler) record(outcome string) {
	metrics.JobsProcessed.WithLabelValues(TaskType, outcome).Inc()
}

func outcomeOf(err error) string {
	if code := apperrors.CodeOf(err); code != "" {
		return string(code)
	}
	switch {
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrJobTimeout):
		return "timeout"
	default:
		return "error"
	}
}
