package extraction

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "property-receptionist/internal/common/errors"
	"property-receptionist/internal/common/logger"
	"property-receptionist/internal/common/metrics"
	"property-receptionist/internal/models"
)

const DefaultIdleTimeout = 60 * time.Second

var (
	ErrSessionStarted = errors.New("extraction session already started")
	errIdleTimeout    = errors.New("no record received within idle timeout")
)

var tracer = otel.Tracer("property-receptionist/extraction")

// Status is the lifecycle of one session: Idle -> Streaming -> Completed | Failed.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusStreaming Status = "streaming"
	StatusDone      Status = "completed"
	StatusFailed    Status = "failed"
)

// Options configures a session.
type Options struct {
	PropertyType       string
	RequestPreliminary bool
	IdleTimeout        time.Duration
}

// Hooks receive updates while the session streams. Either may be nil. They run on
// the goroutine calling Run.
type Hooks struct {
	OnProgress    func(progress int)
	OnPreliminary func(summary string)
}

// Snapshot is a copy of a session's state.
type Snapshot struct {
	ID          string
	Place       models.SelectedPlace
	Status      Status
	Progress    int
	Preliminary string
	Result      models.PropertyData
	Records     int
	Err         *apperrors.StageError
}

// Session drives one streaming extraction for one place. It never calls the
// provisioning stage.
type Session struct {
	id          string
	place       models.SelectedPlace
	transport   Transport
	interpreter *Interpreter
	opts        Options
	logger      logger.Logger

	mu             sync.Mutex
	status         Status
	progress       int
	preliminary    string
	hasPreliminary bool
	result         models.PropertyData
	records        int
	err            *apperrors.StageError
}

func NewSession(id string, place models.SelectedPlace, transport Transport, opts Options, log logger.Logger) *Session {
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	return &Session{
		id:          id,
		place:       place,
		transport:   transport,
		interpreter: NewInterpreter(),
		opts:        opts,
		status:      StatusIdle,
		logger: log.WithFields(map[string]interface{}{
			"sessionId": id,
			"stage":     string(apperrors.StageExtraction),
		}),
	}
}

func (s *Session) ID() string {
	return s.id
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:          s.id,
		Place:       s.place,
		Status:      s.status,
		Progress:    s.progress,
		Preliminary: s.preliminary,
		Result:      s.result.Clone(),
		Records:     s.records,
		Err:         s.err,
	}
}

// Run streams the extraction to completion. It returns the final result, or a
// *errors.StageError tagged with the extraction stage. Cancelling ctx aborts the
// connection. Run may be called once.
func (s *Session) Run(ctx context.Context, hooks Hooks) (models.PropertyData, error) {
	s.mu.Lock()
	if s.status != StatusIdle {
		s.mu.Unlock()
		return nil, ErrSessionStarted
	}
	s.status = StatusStreaming
	s.mu.Unlock()

	started := time.Now()
	ctx, span := tracer.Start(ctx, "extraction.session", trace.WithAttributes(
		attribute.String("session.id", s.id),
		attribute.String("place.name", s.place.Name),
	))
	defer span.End()

	result, err := s.stream(ctx, hooks)

	outcome := "completed"
	if err != nil {
		outcome = string(apperrors.CodeOf(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	metrics.ExtractionSessions.WithLabelValues(outcome).Inc()
	metrics.StageDuration.WithLabelValues(string(apperrors.StageExtraction), outcome).Observe(time.Since(started).Seconds())
	return result, err
}

func (s *Session) stream(ctx context.Context, hooks Hooks) (models.PropertyData, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	req := NewRequest(s.place, s.opts.PropertyType, s.opts.RequestPreliminary)
	s.logger.Info("starting extraction", map[string]interface{}{
		"query":        req.Query,
		"country":      req.Country,
		"propertyType": req.PropertyType,
	})

	body, err := s.transport.Open(ctx, req)
	if err != nil {
		return nil, s.fail(apperrors.NewExtractionTransportError(err))
	}
	defer body.Close()

	// Cancellation, from the caller or the idle watchdog, closes the body so a
	// blocked read returns.
	stopClose := context.AfterFunc(ctx, func() { _ = body.Close() })
	defer stopClose()

	var idle atomic.Bool
	watchdog := time.AfterFunc(s.opts.IdleTimeout, func() {
		idle.Store(true)
		cancel()
	})
	defer watchdog.Stop()

	dec := NewDecoder(body)
	for {
		record, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			switch {
			case idle.Load():
				err = fmt.Errorf("%w (%s)", errIdleTimeout, s.opts.IdleTimeout)
			case ctx.Err() != nil:
				err = ctx.Err()
			}
			return nil, s.fail(apperrors.NewExtractionTransportError(err))
		}
		watchdog.Reset(s.opts.IdleTimeout)

		if result, done, err := s.apply(record, hooks); err != nil {
			return nil, s.fail(err)
		} else if done {
			return result, nil
		}
	}

	if n := dec.Discarded(); n > 0 {
		s.logger.Warn("discarded unterminated trailing record", map[string]interface{}{"bytes": n})
	}
	s.mu.Lock()
	records := s.records
	s.mu.Unlock()
	return nil, s.fail(apperrors.NewExtractionIncompleteError(records))
}

// apply interprets one record and folds it into the session state. done is true
// once the final result is set.
func (s *Session) apply(record []byte, hooks Hooks) (models.PropertyData, bool, *apperrors.StageError) {
	in := s.interpreter.Interpret(record)
	metrics.ExtractionRecords.WithLabelValues(in.Kinds.String()).Inc()

	s.mu.Lock()
	s.records++
	s.mu.Unlock()

	switch {
	case in.Has(KindMalformed):
		return nil, false, apperrors.NewExtractionMalformedRecordError(string(record), in.Err)
	case in.Has(KindArtifact):
		s.logger.Debug("skipping known streaming artifact", map[string]interface{}{"error": in.Err.Error()})
		return nil, false, nil
	}

	var (
		progressChanged bool
		newPreliminary  string
	)

	s.mu.Lock()
	if in.Has(KindProgress) && in.Progress > s.progress {
		s.progress = in.Progress
		progressChanged = true
	}
	preliminary := in.Preliminary
	if !in.Has(KindPreliminary) && in.Has(KindFinal) {
		preliminary = in.Result.Description()
	}
	if preliminary != "" && !s.hasPreliminary {
		s.preliminary = preliminary
		s.hasPreliminary = true
		newPreliminary = preliminary
	}
	progress := s.progress
	if in.Has(KindFinal) {
		s.result = in.Result
		s.status = StatusDone
	}
	s.mu.Unlock()

	if progressChanged && hooks.OnProgress != nil {
		hooks.OnProgress(progress)
	}
	if newPreliminary != "" && hooks.OnPreliminary != nil {
		hooks.OnPreliminary(newPreliminary)
	}

	if in.Has(KindFinal) {
		s.logger.Info("extraction completed", map[string]interface{}{
			"records": s.Snapshot().Records,
			"fields":  len(in.Result),
		})
		return in.Result.Clone(), true, nil
	}
	return nil, false, nil
}

func (s *Session) fail(err *apperrors.StageError) *apperrors.StageError {
	s.mu.Lock()
	s.status = StatusFailed
	s.err = err
	s.mu.Unlock()

	s.logger.Error("extraction failed", map[string]interface{}{
		"errorCode": string(err.Code),
		"details":   err.Details,
	})
	return err
}
