package markup

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"

	"golang.org/x/net/html/charset"
)

// Decoder reads events from an XML document.
type Decoder struct {
	dec  *xml.Decoder
	done bool
}

// NewDecoder creates a Decoder reading from r. Documents declaring a
// non-UTF-8 encoding are transcoded.
func NewDecoder(r io.Reader) *Decoder {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel
	return &Decoder{dec: dec}
}

// Next returns the next element event.
func (d *Decoder) Next() (Event, error) {
	if d.done {
		return Event{Kind: EOF, Offset: d.dec.InputOffset()}, nil
	}
	for {
		off := d.dec.InputOffset()
		tok, err := d.dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				d.done = true
				return Event{Kind: EOF, Offset: off}, nil
			}
			return Event{}, fmt.Errorf("markup: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			ev := Event{Kind: StartElement, Name: t.Name.Local, Offset: off}
			if len(t.Attr) > 0 {
				ev.Attrs = make([]Attr, 0, len(t.Attr))
				for _, a := range t.Attr {
					if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
						continue
					}
					ev.Attrs = append(ev.Attrs, Attr{Name: a.Name.Local, Value: a.Value})
				}
			}
			return ev, nil
		case xml.EndElement:
			return Event{Kind: EndElement, Name: t.Name.Local, Offset: off}, nil
		}
	}
}

// InputOffset returns the byte offset of the decoder in its input.
func (d *Decoder) InputOffset() int64 {
	return d.dec.InputOffset()
}

// Skip consumes events up to and including the end of the element whose
// start was the last event returned.
func Skip(src Source) error {
	depth := 1
	for depth > 0 {
		ev, err := src.Next()
		if err != nil {
			return err
		}
		switch ev.Kind {
		case StartElement:
			depth++
		case EndElement:
			depth--
		case EOF:
			return fmt.Errorf("markup: %w while skipping element", io.ErrUnexpectedEOF)
		}
	}
	return nil
}
