package orchestrator

import (
	"time"

	apperrors "property-receptionist/internal/common/errors"
	"property-receptionist/internal/models"
)

// Stage is the externally observed orchestrator stage.
type Stage string

const (
	StageIdle                 Stage = "idle"
	StageExtracting           Stage = "extracting"
	StageAwaitingProvisioning Stage = "awaiting_provisioning"
	StageProvisioning         Stage = "provisioning"
	StageReady                Stage = "ready"
	StageFailed               Stage = "failed"
)

// TransitionTable lists the stages reachable from each stage. FindProperty may
// restart from anywhere and Reset may return to Idle from anywhere; everything
// else moves forward only.
type TransitionTable map[Stage][]Stage

var validTransitions = TransitionTable{
	StageIdle:                 {StageExtracting, StageIdle},
	StageExtracting:           {StageExtracting, StageAwaitingProvisioning, StageFailed, StageIdle},
	StageAwaitingProvisioning: {StageExtracting, StageProvisioning, StageFailed, StageIdle},
	StageProvisioning:         {StageExtracting, StageReady, StageFailed, StageIdle},
	StageReady:                {StageExtracting, StageIdle},
	StageFailed:               {StageExtracting, StageAwaitingProvisioning, StageIdle},
}

// Allows reports whether from -> to is a valid transition.
func (t TransitionTable) Allows(from, to Stage) bool {
	for _, s := range t[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition records one stage change.
type Transition struct {
	From      Stage
	To        Stage
	Timestamp time.Time
}

// State is the projection callers render: stage, displayed progress, preliminary
// summary, and either the agent or the stage-tagged error.
type State struct {
	Stage       Stage
	SessionID   string
	Progress    int
	Preliminary string
	Agent       *models.AgentHandle
	Error       *apperrors.StageError
}

// RetryStage returns the stage a Retry would re-run, or "" when not failed.
func (s State) RetryStage() apperrors.Stage {
	if s.Stage != StageFailed || s.Error == nil {
		return ""
	}
	return s.Error.Stage
}
