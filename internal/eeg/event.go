package eeg

// Event is one of the five discrete control intents inferred from
// brain-signal state, or empty for "no event".
type Event string

const (
	EventNone      Event = ""
	EventMoveLeft  Event = "ml"
	EventMoveRight Event = "mr"
	EventMoveUp    Event = "mu"
	EventMoveDown  Event = "md"
	EventStop      Event = "stop"
)

// Events lists the labeled intents in their canonical order. This order
// is the majority-vote tie-break in the tolerance matcher and must not
// be reordered.
var Events = [5]Event{EventMoveLeft, EventMoveRight, EventMoveUp, EventMoveDown, EventStop}

// Code returns the numeric encoding shared with external consumer
// processes: 0=none, 1=ml, 2=mr, 3=mu, 4=md, 5=stop.
func (e Event) Code() int32 {
	for i, ev := range Events {
		if e == ev {
			return int32(i + 1)
		}
	}
	return 0
}

// EventFromCode is the inverse of Code. Unknown codes map to EventNone.
func EventFromCode(code int32) Event {
	if code < 1 || int(code) > len(Events) {
		return EventNone
	}
	return Events[code-1]
}

// Valid reports whether e is one of the five labeled intents.
func (e Event) Valid() bool {
	return e.Code() != 0
}
