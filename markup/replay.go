package markup

// Replay serves a fixed list of events. Offsets are event indexes.
type Replay struct {
	events []Event
	pos    int
}

// NewReplay returns a Source serving events in order, followed by EOF.
func NewReplay(events ...Event) *Replay {
	return &Replay{events: events}
}

// Next returns the next event.
func (r *Replay) Next() (Event, error) {
	if r.pos >= len(r.events) {
		return Event{Kind: EOF, Offset: int64(r.pos)}, nil
	}
	ev := r.events[r.pos]
	ev.Offset = int64(r.pos)
	r.pos++
	return ev, nil
}

// InputOffset returns the index of the next event.
func (r *Replay) InputOffset() int64 {
	return int64(r.pos)
}

// Collect reads src to its end and returns the events, EOF excluded.
func Collect(src Source) ([]Event, error) {
	var events []Event
	for {
		ev, err := src.Next()
		if err != nil {
			return events, err
		}
		if ev.Kind == EOF {
			return events, nil
		}
		events = append(events, ev)
	}
}
