package markup

import "fmt"

// EventKind identifies the type of an Event.
type EventKind int

const (
	// StartElement opens an element; Name and Attrs are set.
	StartElement EventKind = iota
	// EndElement closes the innermost open element; Name is set.
	EndElement
	// EOF marks the end of the stream. Further calls keep returning EOF.
	EOF
)

func (k EventKind) String() string {
	switch k {
	case StartElement:
		return "StartElement"
	case EndElement:
		return "EndElement"
	case EOF:
		return "EOF"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Attr is one attribute of an element, without its namespace.
type Attr struct {
	Name  string
	Value string
}

// Event is one step of a markup stream.
type Event struct {
	Kind   EventKind
	Name   string
	Attrs  []Attr
	Offset int64 // byte offset of the event in the input, -1 when unknown
}

// Start returns a StartElement event.
func Start(name string, attrs ...Attr) Event {
	return Event{Kind: StartElement, Name: name, Attrs: attrs, Offset: -1}
}

// End returns an EndElement event.
func End(name string) Event {
	return Event{Kind: EndElement, Name: name, Offset: -1}
}

// A returns an Attr.
func A(name, value string) Attr {
	return Attr{Name: name, Value: value}
}

// Source is a stream of markup events.
type Source interface {
	// Next returns the next event. A malformed input is reported as an
	// error; the end of input is reported as an EOF event.
	Next() (Event, error)
	// InputOffset returns the current byte offset in the input.
	InputOffset() int64
}
