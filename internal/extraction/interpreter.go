package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"property-receptionist/internal/models"
)

// Kind is a bit set of the updates a single record carries. A record with no bits
// set is ignored.
type Kind uint8

const (
	KindProgress Kind = 1 << iota
	KindPreliminary
	KindFinal
	KindMalformed
	// KindArtifact marks an unparseable record matched by the streaming-artifact
	// allow-list. It carries no update and does not fail the session.
	KindArtifact
)

func (k Kind) String() string {
	if k == 0 {
		return "ignored"
	}
	var names []string
	for _, n := range []struct {
		k    Kind
		name string
	}{
		{KindProgress, "progress"},
		{KindPreliminary, "preliminary"},
		{KindFinal, "final"},
		{KindMalformed, "malformed"},
		{KindArtifact, "artifact"},
	} {
		if k&n.k != 0 {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, "+")
}

const (
	// StatusCompleted is the status enum value marking the final record.
	StatusCompleted = "completed"
	// CompletionSentinel is the alternative terminal status some producers emit.
	CompletionSentinel = "[DONE]"
)

// KnownStreamingArtifacts lists substrings of records the upstream extractor emits
// as truncated partial objects while it streams the unique_selling_points field.
// Only records containing one of these markers may fail to parse without failing
// the session. Do not add entries to cover other malformed shapes.
var KnownStreamingArtifacts = []string{"unique_selling_points"}

// Interpretation is the normalized content of one record.
type Interpretation struct {
	Kinds       Kind
	Progress    int
	Preliminary string
	Result      models.PropertyData
	// Err is the parse error for malformed and artifact records.
	Err error
}

func (i Interpretation) Has(k Kind) bool {
	return i.Kinds&k != 0
}

func (i Interpretation) Ignored() bool {
	return i.Kinds == 0
}

// Interpreter classifies decoded records.
type Interpreter struct {
	artifacts []string
}

func NewInterpreter() *Interpreter {
	return &Interpreter{artifacts: KnownStreamingArtifacts}
}

// IsKnownStreamingArtifact reports whether an unparseable record matches the allow-list.
func (p *Interpreter) IsKnownStreamingArtifact(record []byte) bool {
	for _, marker := range p.artifacts {
		if bytes.Contains(record, []byte(marker)) {
			return true
		}
	}
	return false
}

// Interpret parses one record. A record may carry several updates at once, e.g.
// progress together with a preliminary summary.
func (p *Interpreter) Interpret(record []byte) Interpretation {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(record, &fields); err != nil {
		if p.IsKnownStreamingArtifact(record) {
			return Interpretation{Kinds: KindArtifact, Err: err}
		}
		return Interpretation{Kinds: KindMalformed, Err: err}
	}

	var out Interpretation

	if raw, ok := fields["progress"]; ok && string(raw) != "null" {
		var pct float64
		if json.Unmarshal(raw, &pct) == nil {
			out.Kinds |= KindProgress
			out.Progress = clampPercent(pct)
		}
	}

	if raw, ok := fields["semi_summary"]; ok {
		var summary string
		if json.Unmarshal(raw, &summary) == nil && strings.TrimSpace(summary) != "" {
			out.Kinds |= KindPreliminary
			out.Preliminary = summary
		}
	}

	// A completion record whose result is present but not an object can never
	// yield a FinalResult, so it fails the session instead of being dropped.
	if raw, ok := fields["result"]; ok && string(raw) != "null" && isCompletionStatus(fields["status"]) {
		var result models.PropertyData
		if err := json.Unmarshal(raw, &result); err != nil {
			return Interpretation{Kinds: KindMalformed, Err: fmt.Errorf("completion result is not an object: %w", err)}
		}
		out.Kinds |= KindFinal
		out.Result = result
	}

	return out
}

func isCompletionStatus(raw json.RawMessage) bool {
	if raw == nil {
		return false
	}
	var status string
	if json.Unmarshal(raw, &status) != nil {
		return false
	}
	return strings.EqualFold(status, StatusCompleted) || status == CompletionSentinel
}

func clampPercent(v float64) int {
	switch {
	case v <= 0:
		return 0
	case v >= 100:
		return 100
	default:
		return int(math.Round(v))
	}
}
