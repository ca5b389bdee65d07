package muxscope

import "fmt"

type EventType int

func (et EventType) String() string {
	switch et {
	case EventTypePayload:
		return "PAYLOAD"
	case EventTypeInfo:
		return "INFO"
	case EventTypeError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

const (
	EventTypePayload EventType = iota
	EventTypeInfo
	EventTypeError
)

// Event is what a Reader hands over to the consumer. Frame is only set for
// payload events, Details only for info and error events.
type Event struct {
	Type    EventType
	Source  string
	Frame   *Frame
	Details string
}

func PayloadEvent(source string, f *Frame) Event {
	return Event{Type: EventTypePayload, Source: source, Frame: f}
}

func InfoEvent(source, details string) Event {
	return Event{Type: EventTypeInfo, Source: source, Details: details}
}

func ErrorEvent(source string, err error) Event {
	return Event{Type: EventTypeError, Source: source, Details: err.Error()}
}

func (e Event) String() string {
	if e.Type == EventTypePayload {
		if e.Frame == nil {
			return fmt.Sprintf("[%s] %s <nil frame>", e.Type, e.Source)
		}
		return fmt.Sprintf("[%s] %s %d channels", e.Type, e.Source, e.Frame.ChannelCount())
	}
	return fmt.Sprintf("[%s] %s %s", e.Type, e.Source, e.Details)
}
