package markup

import (
	"encoding/xml"
	"fmt"
	"io"
)

// Encoder writes element events as indented XML.
type Encoder struct {
	enc   *xml.Encoder
	stack []string
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	enc := xml.NewEncoder(w)
	enc.Indent("", " ")
	return &Encoder{enc: enc}
}

// Header writes the XML declaration and, when doctype is not empty, a
// DOCTYPE directive with that body.
func (e *Encoder) Header(doctype string) error {
	if err := e.enc.EncodeToken(xml.ProcInst{Target: "xml", Inst: []byte(`version="1.0" encoding="UTF-8"`)}); err != nil {
		return err
	}
	if doctype != "" {
		return e.enc.EncodeToken(xml.Directive("DOCTYPE " + doctype))
	}
	return nil
}

// Start opens an element.
func (e *Encoder) Start(name string, attrs ...Attr) error {
	start := xml.StartElement{Name: xml.Name{Local: name}}
	if len(attrs) > 0 {
		start.Attr = make([]xml.Attr, len(attrs))
		for i, a := range attrs {
			start.Attr[i] = xml.Attr{Name: xml.Name{Local: a.Name}, Value: a.Value}
		}
	}
	if err := e.enc.EncodeToken(start); err != nil {
		return err
	}
	e.stack = append(e.stack, name)
	return nil
}

// End closes the innermost open element.
func (e *Encoder) End() error {
	if len(e.stack) == 0 {
		return fmt.Errorf("markup: end without open element")
	}
	name := e.stack[len(e.stack)-1]
	e.stack = e.stack[:len(e.stack)-1]
	return e.enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: name}})
}

// Empty writes an element with no children.
func (e *Encoder) Empty(name string, attrs ...Attr) error {
	if err := e.Start(name, attrs...); err != nil {
		return err
	}
	return e.End()
}

// Close checks that every element was closed and flushes the output.
func (e *Encoder) Close() error {
	if len(e.stack) > 0 {
		return fmt.Errorf("markup: %d unclosed elements", len(e.stack))
	}
	return e.enc.Flush()
}
