package chat

import "strings"

// event is what the current user message means given what the assistant last
// asked.
type event int

const (
	eventNone event = iota
	eventMeetingConfirmed
	eventDetailsProvided
	eventFinalConfirmation
)

var confirmationKeywords = []string{"yes", "yeah", "sure", "confirm", "ok", "okay", "yep"}

// isConfirmation reports whether the message is an affirmative reply. A
// keyword counts when it is the whole message, opens it, or closes it.
func isConfirmation(message string) bool {
	m := strings.ToLower(strings.TrimSpace(message))
	for _, kw := range confirmationKeywords {
		if m == kw || strings.HasPrefix(m, kw+" ") || strings.HasSuffix(m, " "+kw) {
			return true
		}
	}
	return false
}

// resolveEvent maps the session state and current message to a negotiation
// event. When the session carries no state (a fresh session replaying an old
// transcript, or an expired one), the previous assistant message is consulted
// as a fallback so an in-flight negotiation survives a session reset.
func resolveEvent(s *Session, message string) event {
	state := s.State
	if state == StateNone {
		state = stateFromTranscript(s.LastBotMessage())
	}

	switch state {
	case StateAwaitingMeetingDetails:
		// Any reply counts as an attempt to provide details
		return eventDetailsProvided
	case StateAwaitingMeetingConfirmation:
		if isConfirmation(message) {
			return eventMeetingConfirmed
		}
	case StateAwaitingFinalConfirmation:
		if isConfirmation(message) {
			return eventFinalConfirmation
		}
	}
	return eventNone
}

// stateFromTranscript recovers the negotiation state from the previous
// assistant message's wording.
func stateFromTranscript(prevBot string) State {
	switch {
	case strings.Contains(prevBot, "Please provide the following details for your meeting"):
		return StateAwaitingMeetingDetails
	case strings.Contains(prevBot, "I will be scheduling a"):
		return StateAwaitingFinalConfirmation
	case strings.Contains(prevBot, "want to have a meeting") ||
		strings.Contains(prevBot, "want to schedule a meeting"):
		return StateAwaitingMeetingConfirmation
	default:
		return StateNone
	}
}
