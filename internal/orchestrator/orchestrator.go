package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "property-receptionist/internal/common/errors"
	"property-receptionist/internal/common/logger"
	"property-receptionist/internal/common/metrics"
	"property-receptionist/internal/common/observability"
	"property-receptionist/internal/extraction"
	"property-receptionist/internal/models"
	"property-receptionist/internal/provisioning"
)

var ErrNothingToRetry = errors.New("nothing to retry")

// Provisioner performs the one-shot provisioning call.
type Provisioner interface {
	Provision(ctx context.Context, req models.ProvisioningRequest) (*models.AgentHandle, error)
}

// AgentRecorder stores provisioned agents for the call widget host. Failures are
// logged and never fail the attempt.
type AgentRecorder interface {
	Record(ctx context.Context, sessionID string, place models.SelectedPlace, agent models.AgentHandle) error
}

// Config holds what every attempt needs besides its collaborators.
type Config struct {
	Extraction   extraction.Options
	ClientData   models.ClientData
	PropertyType string
}

type Option func(*Orchestrator)

func WithRecorder(r AgentRecorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

func WithObservability(obs *observability.Observability) Option {
	return func(o *Orchestrator) { o.obs = obs }
}

// WithStateListener registers fn to receive every published State. fn runs
// without the orchestrator lock held and must not block for long.
func WithStateListener(fn func(State)) Option {
	return func(o *Orchestrator) { o.listener = fn }
}

// attempt is one unit of asynchronous work: an extraction (followed by
// provisioning) or a provisioning retry. Its generation is the identity token every
// continuation checks before touching orchestrator state.
type attempt struct {
	generation uint64
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// Orchestrator sequences extraction and provisioning for one selected place at a
// time. Starting a new extraction cancels the previous one and any update that
// arrives from it afterwards is discarded.
type Orchestrator struct {
	transport   extraction.Transport
	provisioner Provisioner
	recorder    AgentRecorder
	obs         *observability.Observability
	listener    func(State)
	cfg         Config
	logger      logger.Logger

	mu          sync.Mutex
	generation  uint64
	current     *attempt
	stage       Stage
	transitions []Transition
	place       *models.SelectedPlace
	sessionID   string
	progress    int
	preliminary string
	result      models.PropertyData
	agent       *models.AgentHandle
	err         *apperrors.StageError
	// provisionLatched is set when provisioning is invoked for the current result
	// and cleared only by FindProperty or a provisioning Retry.
	provisionLatched bool
}

func New(transport extraction.Transport, provisioner Provisioner, cfg Config, log logger.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		transport:   transport,
		provisioner: provisioner,
		cfg:         cfg,
		logger:      log,
		stage:       StageIdle,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the current projection.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stateLocked()
}

// Transitions returns the stage changes since the last FindProperty or Reset.
func (o *Orchestrator) Transitions() []Transition {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Transition(nil), o.transitions...)
}

// FindProperty discards any in-flight work and starts a fresh extraction for place.
func (o *Orchestrator) FindProperty(place models.SelectedPlace) error {
	if err := place.Validate(); err != nil {
		return err
	}

	o.mu.Lock()
	a := o.beginAttemptLocked()
	o.transitions = nil
	o.place = &place
	o.sessionID = uuid.New().String()
	o.progress = 0
	o.preliminary = ""
	o.result = nil
	o.agent = nil
	o.err = nil
	o.provisionLatched = false
	o.transitionLocked(StageExtracting)
	sessionID := o.sessionID
	state := o.stateLocked()
	o.mu.Unlock()

	o.publish(state)

	o.logger.Info("finding property", map[string]interface{}{
		"sessionId":  sessionID,
		"generation": a.generation,
		"place":      place.Name,
	})
	go o.runExtraction(a, sessionID, place)
	return nil
}

// Retry re-runs the stage that failed. An extraction failure restarts extraction
// for the same place. A provisioning failure re-invokes provisioning with the
// retained result without re-running extraction. ErrNothingToRetry is returned,
// and nothing changes, when the orchestrator is not failed or no result is held.
func (o *Orchestrator) Retry() error {
	o.mu.Lock()
	if o.stage != StageFailed || o.err == nil || o.place == nil {
		o.mu.Unlock()
		return ErrNothingToRetry
	}

	switch o.err.Stage {
	case apperrors.StageExtraction:
		place := *o.place
		o.mu.Unlock()
		return o.FindProperty(place)

	case apperrors.StageProvisioning:
		if o.result == nil {
			o.mu.Unlock()
			return ErrNothingToRetry
		}
		a := o.beginAttemptLocked()
		o.err = nil
		o.provisionLatched = false
		o.transitionLocked(StageAwaitingProvisioning)
		req, ok := o.armProvisioningLocked()
		state := o.stateLocked()
		o.mu.Unlock()

		o.publish(state)
		if ok {
			go func() {
				defer close(a.done)
				o.runProvisioning(a, req)
			}()
		} else {
			close(a.done)
		}
		return nil
	}

	o.mu.Unlock()
	return ErrNothingToRetry
}

// Reset cancels in-flight work and returns to Idle. It returns once the cancelled
// attempt has stopped, so it must not be called from a state listener.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	cancelled := o.current
	a := o.beginAttemptLocked()
	close(a.done)
	o.current = nil
	o.place = nil
	o.sessionID = ""
	o.progress = 0
	o.preliminary = ""
	o.result = nil
	o.agent = nil
	o.err = nil
	o.provisionLatched = false
	o.transitionLocked(StageIdle)
	o.transitions = nil
	state := o.stateLocked()
	o.mu.Unlock()

	if cancelled != nil {
		<-cancelled.done
	}
	o.publish(state)
}

// Wait blocks until the current attempt reaches Ready or Failed (following any
// newer attempt that supersedes it) or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context) (State, error) {
	for {
		o.mu.Lock()
		a := o.current
		o.mu.Unlock()
		if a == nil {
			return o.State(), nil
		}

		select {
		case <-a.done:
		case <-ctx.Done():
			return o.State(), ctx.Err()
		}

		o.mu.Lock()
		same := o.current == a
		state := o.stateLocked()
		o.mu.Unlock()
		if same {
			return state, nil
		}
	}
}

// ==========================
// Attempt continuations
// ==========================

func (o *Orchestrator) runExtraction(a *attempt, sessionID string, place models.SelectedPlace) {
	defer close(a.done)

	session := extraction.NewSession(sessionID, place, o.transport, o.cfg.Extraction, o.logger)
	started := time.Now()
	result, err := session.Run(a.ctx, extraction.Hooks{
		OnProgress:    func(p int) { o.applyProgress(a.generation, p) },
		OnPreliminary: func(s string) { o.applyPreliminary(a.generation, s) },
	})

	outcome := "completed"
	if err != nil {
		outcome = "failed"
	}
	o.obs.RecordStage(a.ctx, string(apperrors.StageExtraction), outcome, time.Since(started))

	if err != nil {
		o.fail(a.generation, err, apperrors.StageExtraction)
		return
	}
	o.completeExtraction(a, result)
}

// completeExtraction is the single entry point for an extraction completion
// signal. The latch and the transition table together make provisioning run at
// most once per result, however many times the signal arrives.
func (o *Orchestrator) completeExtraction(a *attempt, result models.PropertyData) {
	o.mu.Lock()
	if a.generation != o.generation {
		o.mu.Unlock()
		o.discardStale(a.generation, "extraction completion")
		return
	}
	if o.provisionLatched || !validTransitions.Allows(o.stage, StageAwaitingProvisioning) {
		stage := o.stage
		o.mu.Unlock()
		o.logger.Debug("ignoring repeated completion signal", map[string]interface{}{
			"generation": a.generation,
			"stage":      string(stage),
		})
		return
	}

	o.result = result.Clone()
	if o.preliminary == "" {
		o.preliminary = result.Description()
	}
	o.transitionLocked(StageAwaitingProvisioning)
	req, ok := o.armProvisioningLocked()
	state := o.stateLocked()
	o.mu.Unlock()

	o.publish(state)
	if ok {
		o.runProvisioning(a, req)
	}
}

// armProvisioningLocked sets the latch and moves to Provisioning. ok is false when
// the latch was already set.
func (o *Orchestrator) armProvisioningLocked() (models.ProvisioningRequest, bool) {
	if o.provisionLatched {
		return models.ProvisioningRequest{}, false
	}
	o.provisionLatched = true
	o.transitionLocked(StageProvisioning)
	return provisioning.BuildRequest(o.cfg.ClientData, *o.place, o.result.Clone(), o.cfg.PropertyType), true
}

func (o *Orchestrator) runProvisioning(a *attempt, req models.ProvisioningRequest) {
	started := time.Now()
	handle, err := o.provisioner.Provision(a.ctx, req)

	outcome := "ready"
	if err != nil {
		outcome = "failed"
	}
	o.obs.RecordStage(a.ctx, string(apperrors.StageProvisioning), outcome, time.Since(started))

	if err != nil {
		o.fail(a.generation, err, apperrors.StageProvisioning)
		return
	}
	if handle == nil || handle.PhoneNumber == "" {
		o.fail(a.generation, apperrors.NewProvisioningInvalidResponseError("provisioner returned no phone number"), apperrors.StageProvisioning)
		return
	}

	o.mu.Lock()
	if a.generation != o.generation {
		o.mu.Unlock()
		o.discardStale(a.generation, "provisioning result")
		return
	}
	agent := *handle
	o.agent = &agent
	o.transitionLocked(StageReady)
	sessionID := o.sessionID
	place := *o.place
	state := o.stateLocked()
	o.mu.Unlock()

	o.logger.Info("receptionist ready", map[string]interface{}{
		"sessionId": sessionID,
		"agentId":   agent.ID,
	})

	if o.recorder != nil {
		if err := o.recorder.Record(a.ctx, sessionID, place, agent); err != nil {
			o.logger.Warn("failed to record provisioned agent", map[string]interface{}{
				"sessionId": sessionID,
				"error":     err.Error(),
			})
		}
	}
	o.publish(state)
}

func (o *Orchestrator) applyProgress(generation uint64, progress int) {
	o.mu.Lock()
	if generation != o.generation {
		o.mu.Unlock()
		o.discardStale(generation, "progress")
		return
	}
	if o.stage != StageExtracting || progress <= o.progress {
		o.mu.Unlock()
		return
	}
	o.progress = progress
	state := o.stateLocked()
	o.mu.Unlock()

	o.publish(state)
}

func (o *Orchestrator) applyPreliminary(generation uint64, summary string) {
	o.mu.Lock()
	if generation != o.generation {
		o.mu.Unlock()
		o.discardStale(generation, "preliminary result")
		return
	}
	if o.preliminary != "" {
		o.mu.Unlock()
		return
	}
	o.preliminary = summary
	state := o.stateLocked()
	o.mu.Unlock()

	o.publish(state)
}

// fail records err for the given stage. Errors without a stage tag are wrapped as
// transport errors of that stage.
func (o *Orchestrator) fail(generation uint64, err error, stage apperrors.Stage) {
	stageErr, ok := apperrors.AsStageError(err)
	if !ok {
		if stage == apperrors.StageProvisioning {
			stageErr = apperrors.NewProvisioningTransportError(err)
		} else {
			stageErr = apperrors.NewExtractionTransportError(err)
		}
	}

	o.mu.Lock()
	if generation != o.generation {
		o.mu.Unlock()
		o.discardStale(generation, "failure")
		return
	}
	o.err = stageErr
	o.transitionLocked(StageFailed)
	sessionID := o.sessionID
	state := o.stateLocked()
	o.mu.Unlock()

	o.logger.Warn("attempt failed", map[string]interface{}{
		"sessionId":  sessionID,
		"generation": generation,
		"stage":      string(stageErr.Stage),
		"errorCode":  string(stageErr.Code),
	})
	o.publish(state)
}

// ==========================
// Locked helpers
// ==========================

// beginAttemptLocked cancels the current attempt and starts a new generation.
func (o *Orchestrator) beginAttemptLocked() *attempt {
	if o.current != nil {
		o.current.cancel()
	}
	o.generation++
	ctx, cancel := context.WithCancel(context.Background())
	a := &attempt{
		generation: o.generation,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	o.current = a
	return a
}

func (o *Orchestrator) transitionLocked(to Stage) {
	from := o.stage
	if !validTransitions.Allows(from, to) {
		o.logger.Error("invalid stage transition", map[string]interface{}{
			"from": string(from),
			"to":   string(to),
		})
		return
	}
	o.stage = to
	o.transitions = append(o.transitions, Transition{From: from, To: to, Timestamp: time.Now()})
}

func (o *Orchestrator) stateLocked() State {
	s := State{
		Stage:       o.stage,
		SessionID:   o.sessionID,
		Progress:    DisplayProgress(o.stage, o.progress),
		Preliminary: o.preliminary,
		Error:       o.err,
	}
	if o.agent != nil {
		agent := *o.agent
		s.Agent = &agent
	}
	return s
}

func (o *Orchestrator) discardStale(generation uint64, what string) {
	metrics.StaleUpdatesDiscarded.Inc()
	o.logger.Debug("discarding update from superseded attempt", map[string]interface{}{
		"generation": generation,
		"update":     what,
	})
}

func (o *Orchestrator) publish(state State) {
	if o.listener != nil {
		o.listener(state)
	}
}
