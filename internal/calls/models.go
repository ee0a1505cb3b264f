package calls

import (
	"strings"
	"time"

	"telbill/internal/pipeline"
)

type Kind string

const (
	KindStart Kind = "start"
	KindStop  Kind = "stop"
)

const (
	msgRequired      = "This field is required."
	msgNotNull       = "This field may not be null."
	msgInvalidString = "Not a valid string."
	msgBlank         = "This field may not be blank."
	msgInvalidCallID = "A valid call id is required."
)

// naiveLayout is accepted for timestamps without a zone; they are read as UTC.
const naiveLayout = "2006-01-02T15:04:05"

// Event is one half of a call, as ingested. CallID is always a string even
// when the producer sent a number.
type Event struct {
	CallID      string    `json:"call_id"`
	Kind        Kind      `json:"kind"`
	Timestamp   time.Time `json:"timestamp"`
	Source      string    `json:"source,omitempty"`
	Destination string    `json:"destination,omitempty"`
}

// Call is the consolidated record of a start and a stop event.
type Call struct {
	CallID         string     `json:"call_id"`
	Source         *string    `json:"source"`
	Destination    *string    `json:"destination"`
	StartTimestamp *time.Time `json:"start_timestamp"`
	StopTimestamp  *time.Time `json:"stop_timestamp"`
	CompletedBy    string     `json:"-"`
}

func (c Call) Complete() bool {
	return c.StartTimestamp != nil && c.StopTimestamp != nil
}

// CallUpdate carries the fields one event contributes to its Call. Nil
// fields leave the stored value untouched.
type CallUpdate struct {
	CallID         string
	Source         *string
	Destination    *string
	StartTimestamp *time.Time
	StopTimestamp  *time.Time
}

func UpdateFromEvent(e Event) CallUpdate {
	u := CallUpdate{CallID: e.CallID}
	ts := e.Timestamp.UTC()
	if e.Kind == KindStart {
		src, dst := e.Source, e.Destination
		u.Source = &src
		u.Destination = &dst
		u.StartTimestamp = &ts
	} else {
		u.StopTimestamp = &ts
	}
	return u
}

type eventInput struct {
	CallID      string `json:"call_id" validate:"required"`
	Kind        string `json:"kind" validate:"required,oneof=start stop"`
	Timestamp   string `json:"timestamp" validate:"required,timestamp"`
	Source      string `json:"source" validate:"required_if=Kind start"`
	Destination string `json:"destination" validate:"required_if=Kind start"`
}

// ParseEvent decodes and checks an ingested event. Every problem found is
// reported under its field name.
func ParseEvent(message string) (Event, *pipeline.ValidationError) {
	p, verr := DecodePayload(message, "Invalid data. Expected a JSON object.", false)
	if verr != nil {
		return Event{}, verr
	}

	in := eventInput{
		CallID:    p.CallID(),
		Kind:      p.String("kind"),
		Timestamp: p.String("timestamp"),
	}
	if Kind(in.Kind) == KindStart {
		in.Source = p.String("source")
		in.Destination = p.String("destination")
	}
	if verr := p.Check(in); verr != nil {
		return Event{}, verr
	}

	ts, _ := ParseTimestamp(in.Timestamp)
	return Event{
		CallID:      in.CallID,
		Kind:        Kind(in.Kind),
		Timestamp:   ts,
		Source:      in.Source,
		Destination: in.Destination,
	}, nil
}

// ParseTimestamp accepts RFC 3339 or a zone-less ISO 8601 date-time.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.ParseInLocation(naiveLayout, strings.TrimSuffix(s, "Z"), time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}
