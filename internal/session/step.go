package session

import (
	"github.com/jask/lovenudge/internal/inbox"
	"github.com/jask/lovenudge/internal/store"
)

// Step is the onboarding position. Steps only move forward, except Reset.
type Step int

const (
	AwaitingName Step = iota
	AwaitingPartner
	Ready
)

func (s Step) String() string {
	switch s {
	case AwaitingName:
		return "awaiting-name"
	case AwaitingPartner:
		return "awaiting-partner"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// ComputeInitialStep derives the step from a loaded record. A partner token
// wins over a user name, so a record holding both lands on Ready.
func ComputeInitialStep(r store.Record) Step {
	switch {
	case r.PartnerPushToken != "":
		return Ready
	case r.UserName != "":
		return AwaitingPartner
	default:
		return AwaitingName
	}
}

// State is the snapshot the screen renders from.
type State struct {
	Step             Step
	UserName         string
	LocalPushToken   string
	PartnerPushToken string
	// TokenChanged is set when the token source reports a different local
	// token than the persisted one; re-registering refreshes it.
	TokenChanged bool
	// LastSent is the body of the last affection delivered to the relay.
	LastSent string
	// Latest is the most recent notification received on this device.
	Latest inbox.Notification
}

// TargetToken is the token affection is sent to: the partner's if known,
// otherwise this device's own token.
func (s State) TargetToken() string {
	if s.PartnerPushToken != "" {
		return s.PartnerPushToken
	}
	return s.LocalPushToken
}

// SendsToSelf reports whether sending now would use the local token fallback.
func (s State) SendsToSelf() bool {
	return s.PartnerPushToken == "" && s.LocalPushToken != ""
}
