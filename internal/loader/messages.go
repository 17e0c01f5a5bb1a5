package loader

import (
	"time"

	"property-receptionist/internal/orchestrator"
)

// Message is a translation key pair shown while a stage is in progress. Text is
// empty for setup messages, which only carry a title.
type Message struct {
	TitleKey string `json:"titleKey"`
	TextKey  string `json:"textKey,omitempty"`
}

// Phase selects which message list rotates.
type Phase string

const (
	PhaseNone    Phase = ""
	PhaseParsing Phase = "parsing"
	PhaseSetup   Phase = "setup"
)

const (
	ParsingInterval = 4 * time.Second
	SetupInterval   = 5 * time.Second
)

var ParsingMessages = []Message{
	{TitleKey: "landing.loading.booking", TextKey: "landing.loading.booking_desc"},
	{TitleKey: "landing.loading.assistance", TextKey: "landing.loading.assistance_desc"},
	{TitleKey: "landing.loading.operations", TextKey: "landing.loading.operations_desc"},
	{TitleKey: "landing.loading.revenue", TextKey: "landing.loading.revenue_desc"},
}

var SetupMessages = []Message{
	{TitleKey: "landing.setup.ready"},
	{TitleKey: "landing.setup.service"},
	{TitleKey: "landing.setup.interactions"},
	{TitleKey: "landing.setup.support"},
	{TitleKey: "landing.setup.satisfaction"},
	{TitleKey: "landing.setup.bookings"},
	{TitleKey: "landing.setup.excellence"},
}

// PhaseFor maps an orchestrator stage to the loading phase shown for it.
func PhaseFor(stage orchestrator.Stage) Phase {
	switch stage {
	case orchestrator.StageExtracting:
		return PhaseParsing
	case orchestrator.StageAwaitingProvisioning, orchestrator.StageProvisioning:
		return PhaseSetup
	default:
		return PhaseNone
	}
}

// Messages returns the list and interval for phase. It returns nil for PhaseNone.
func (p Phase) Messages() ([]Message, time.Duration) {
	switch p {
	case PhaseParsing:
		return ParsingMessages, ParsingInterval
	case PhaseSetup:
		return SetupMessages, SetupInterval
	default:
		return nil, 0
	}
}
