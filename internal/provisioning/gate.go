package provisioning

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "property-receptionist/internal/common/errors"
	apphttp "property-receptionist/internal/common/http"
	"property-receptionist/internal/common/logger"
	"property-receptionist/internal/common/metrics"
	"property-receptionist/internal/common/validation"
	"property-receptionist/internal/models"
)

const maxResponseBytes = 1 << 20

var tracer = otel.Tracer("property-receptionist/provisioning")

// responseSchema accepts a response only when it carries an agent with an id and a
// non-empty phone number.
var responseSchema = validation.MustCompile(map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"agent"},
	"properties": map[string]interface{}{
		"agent": map[string]interface{}{
			"type":     "object",
			"required": []interface{}{"id", "phone"},
			"properties": map[string]interface{}{
				"id": map[string]interface{}{
					"type":      []interface{}{"string", "integer"},
					"minLength": 1,
				},
				"phone": map[string]interface{}{
					"type":    "string",
					"pattern": `\S`,
				},
			},
		},
	},
})

type agentResponse struct {
	Agent struct {
		ID    json.RawMessage `json:"id"`
		Phone string          `json:"phone"`
	} `json:"agent"`
}

// agentID accepts both string and numeric ids.
func (r agentResponse) agentID() string {
	var s string
	if json.Unmarshal(r.Agent.ID, &s) == nil {
		return s
	}
	return string(r.Agent.ID)
}

// Gate performs the one-shot provisioning call. It is stateless and never retries:
// callers decide how often Provision runs.
type Gate struct {
	client  *apphttp.Client
	url     string
	timeout time.Duration
	logger  logger.Logger
}

type GateOption func(*Gate)

// WithTimeout bounds each call, including reading the response.
func WithTimeout(d time.Duration) GateOption {
	return func(g *Gate) { g.timeout = d }
}

func NewGate(client *apphttp.Client, url string, log logger.Logger, opts ...GateOption) *Gate {
	g := &Gate{
		client: client,
		url:    url,
		logger: log.WithFields(map[string]interface{}{
			"stage": string(apperrors.StageProvisioning),
		}),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Provision makes exactly one outbound call. Any failure is a *errors.StageError
// tagged with the provisioning stage.
func (g *Gate) Provision(ctx context.Context, req models.ProvisioningRequest) (*models.AgentHandle, error) {
	started := time.Now()
	ctx, span := tracer.Start(ctx, "provisioning.provision", trace.WithAttributes(
		attribute.String("business.name", req.ClientData.BusinessName),
		attribute.String("property.type", req.PropertyType),
	))
	defer span.End()

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	handle, err := g.provision(ctx, req)

	outcome := "ready"
	if err != nil {
		outcome = string(apperrors.CodeOf(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.logger.Error("agent provisioning failed", map[string]interface{}{
			"errorCode":    outcome,
			"error":        err.Error(),
			"businessName": req.ClientData.BusinessName,
		})
	} else {
		span.SetAttributes(attribute.String("agent.id", handle.ID))
		g.logger.Info("agent provisioned", map[string]interface{}{
			"agentId":      handle.ID,
			"businessName": req.ClientData.BusinessName,
		})
	}
	metrics.ProvisioningCalls.WithLabelValues(outcome).Inc()
	metrics.StageDuration.WithLabelValues(string(apperrors.StageProvisioning), outcome).Observe(time.Since(started).Seconds())

	return handle, err
}

func (g *Gate) provision(ctx context.Context, req models.ProvisioningRequest) (*models.AgentHandle, error) {
	resp, err := g.client.PostJSON(ctx, g.url, req, "application/json")
	if err != nil {
		return nil, apperrors.NewProvisioningTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, apperrors.NewProvisioningTransportError(fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperrors.NewProvisioningTransportError(
			fmt.Errorf("provisioning endpoint returned status %d: %s", resp.StatusCode, snippet(body)))
	}

	result, err := responseSchema.ValidateBytes(body)
	if err != nil {
		return nil, apperrors.NewProvisioningInvalidResponseError(err.Error())
	}
	if !result.Valid {
		return nil, apperrors.NewProvisioningInvalidResponseError(result.Error())
	}

	var parsed agentResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, apperrors.NewProvisioningInvalidResponseError(err.Error())
	}

	return &models.AgentHandle{
		ID:          parsed.agentID(),
		PhoneNumber: parsed.Agent.Phone,
	}, nil
}

func snippet(body []byte) string {
	if len(body) > 256 {
		return string(body[:256]) + "..."
	}
	return string(body)
}
