package model

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every error returned while building a Document or decoding a
// raster wraps exactly one of these, so callers can use errors.Is.
var (
	// ErrMissingAttribute is returned when a required attribute is absent.
	ErrMissingAttribute = errors.New("kra: missing attribute")
	// ErrMalformedAttribute is returned when an attribute value cannot be
	// parsed as the expected kind.
	ErrMalformedAttribute = errors.New("kra: malformed attribute")
	// ErrUnknownNodeType is returned for a node type tag or element outside
	// the closed set of layer and mask kinds.
	ErrUnknownNodeType = errors.New("kra: unknown node type")
	// ErrStructural is returned for bad nesting, truncated markup, duplicate
	// identifiers and overlapping tiles.
	ErrStructural = errors.New("kra: structural error")
	// ErrDanglingReference is returned when an identifier referenced by one
	// node does not correspond to any node in the document.
	ErrDanglingReference = errors.New("kra: dangling reference")
	// ErrPixelFormatMismatch is returned when a raster stream declares a
	// pixel format other than the one its node expects.
	ErrPixelFormatMismatch = errors.New("kra: pixel format mismatch")
	// ErrTruncatedStream is returned when a raster stream ends before the
	// data its header declares.
	ErrTruncatedStream = errors.New("kra: truncated stream")
	// ErrCodec is returned when a tile payload cannot be decompressed to
	// exactly its declared size.
	ErrCodec = errors.New("kra: codec error")
)

// Error carries the context of a failure. Kind is one of the sentinel errors
// above; the remaining fields are filled in where they are known.
type Error struct {
	Kind    error
	Element string // markup element or node type tag
	Attr    string // attribute name
	Value   string // raw attribute value
	NodeID  string // node identifier
	Member  string // archive member
	Offset  int64  // byte offset in the stream, -1 when unknown
	Detail  string
	Err     error // underlying cause, if any
}

// NewError returns an Error of the given kind with no offset.
func NewError(kind error, detail string) *Error {
	return &Error{Kind: kind, Offset: -1, Detail: detail}
}

// Errorf is NewError with a formatted detail message.
func Errorf(kind error, format string, args ...interface{}) *Error {
	return NewError(kind, fmt.Sprintf(format, args...))
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())

	var ctx []string
	if e.Member != "" {
		ctx = append(ctx, "member "+e.Member)
	}
	if e.Element != "" {
		ctx = append(ctx, "element "+e.Element)
	}
	if e.Attr != "" {
		ctx = append(ctx, fmt.Sprintf("attribute %s=%q", e.Attr, e.Value))
	}
	if e.NodeID != "" {
		ctx = append(ctx, "node "+e.NodeID)
	}
	if e.Offset >= 0 {
		ctx = append(ctx, fmt.Sprintf("offset %d", e.Offset))
	}
	if len(ctx) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(ctx, ", "))
		b.WriteString(")")
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Is reports whether target is the kind of this error.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithNode sets the node identifier and returns e.
func (e *Error) WithNode(id string) *Error {
	e.NodeID = id
	return e
}

// WithElement sets the element name and returns e.
func (e *Error) WithElement(name string) *Error {
	e.Element = name
	return e
}

// WithOffset sets the byte offset and returns e.
func (e *Error) WithOffset(off int64) *Error {
	e.Offset = off
	return e
}

// WithMember sets the archive member name and returns e.
func (e *Error) WithMember(name string) *Error {
	e.Member = name
	return e
}

// Wrap sets the underlying cause and returns e.
func (e *Error) Wrap(err error) *Error {
	e.Err = err
	return e
}

// AsError returns the *Error in err's chain, if there is one.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
