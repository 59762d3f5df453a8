// Package attr decodes the raw attribute strings of a markup element into
// typed values.
//
// A [Set] wraps one element's attributes. Getters record the first failure
// and return zero values afterwards, so a caller can read every field it
// needs and check [Set.Err] once:
//
//	s := attr.New("layer", ev.Attrs)
//	name := s.String("name")
//	opacity := s.Uint8Or("opacity", 255)
//	if err := s.Err(); err != nil {
//		return err
//	}
//
// Required getters fail with model.ErrMissingAttribute when the attribute is
// absent. Every getter fails with model.ErrMalformedAttribute when the
// attribute is present but cannot be parsed. Attributes that are never asked
// for are ignored.
package attr

import (
	"encoding/base64"
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/tsawler/kra/markup"
	"github.com/tsawler/kra/model"
)

// Set is the attribute set of one element.
type Set struct {
	element string
	vals    map[string]string
	err     error
}

// New returns the Set for an element. When an attribute repeats, the last
// value wins.
func New(element string, attrs []markup.Attr) *Set {
	vals := make(map[string]string, len(attrs))
	for _, a := range attrs {
		vals[a.Name] = a.Value
	}
	return &Set{element: element, vals: vals}
}

// Element returns the element name the set belongs to.
func (s *Set) Element() string {
	return s.element
}

// Err returns the first error recorded by a getter.
func (s *Set) Err() error {
	return s.err
}

// Has reports whether the attribute is present.
func (s *Set) Has(name string) bool {
	_, ok := s.vals[name]
	return ok
}

// Lookup returns the raw value of an attribute.
func (s *Set) Lookup(name string) (string, bool) {
	v, ok := s.vals[name]
	return v, ok
}

func (s *Set) fail(kind error, name, value, detail string, cause error) {
	if s.err != nil {
		return
	}
	e := model.NewError(kind, detail).WithElement(s.element)
	e.Attr, e.Value = name, value
	if cause != nil {
		e.Wrap(cause)
	}
	s.err = e
}

// Invalid records a malformed-attribute error for a present attribute whose
// value parsed but is not acceptable to the caller.
func (s *Set) Invalid(name, detail string) {
	s.fail(model.ErrMalformedAttribute, name, s.vals[name], detail, nil)
}

func (s *Set) required(name string) (string, bool) {
	v, ok := s.vals[name]
	if !ok {
		s.fail(model.ErrMissingAttribute, name, "", "", nil)
	}
	return v, ok
}

// String returns a required attribute.
func (s *Set) String(name string) string {
	v, _ := s.required(name)
	return v
}

// StringOr returns an attribute, or def when it is absent.
func (s *Set) StringOr(name, def string) string {
	if v, ok := s.vals[name]; ok {
		return v
	}
	return def
}

// Int returns a required integer attribute.
func (s *Set) Int(name string) int {
	v, ok := s.required(name)
	if !ok {
		return 0
	}
	return s.parseInt(name, v)
}

// IntOr returns an integer attribute, or def when it is absent.
func (s *Set) IntOr(name string, def int) int {
	v, ok := s.vals[name]
	if !ok {
		return def
	}
	return s.parseInt(name, v)
}

func (s *Set) parseInt(name, v string) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		s.fail(model.ErrMalformedAttribute, name, v, "not an integer", err)
		return 0
	}
	return n
}

// Uint8Or returns an attribute in the range 0..255, or def when it is absent.
func (s *Set) Uint8Or(name string, def uint8) uint8 {
	v, ok := s.vals[name]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 0 || n > math.MaxUint8 {
		s.fail(model.ErrMalformedAttribute, name, v, "not in range 0..255", err)
		return 0
	}
	return uint8(n)
}

// Float returns a required floating point attribute.
func (s *Set) Float(name string) float64 {
	v, ok := s.required(name)
	if !ok {
		return 0
	}
	return s.parseFloat(name, v)
}

// FloatOr returns a floating point attribute, or def when it is absent.
func (s *Set) FloatOr(name string, def float64) float64 {
	v, ok := s.vals[name]
	if !ok {
		return def
	}
	return s.parseFloat(name, v)
}

func (s *Set) parseFloat(name, v string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		s.fail(model.ErrMalformedAttribute, name, v, "not a finite number", err)
		return 0
	}
	return f
}

// Bool returns a required boolean attribute.
func (s *Set) Bool(name string) bool {
	v, ok := s.required(name)
	if !ok {
		return false
	}
	return s.parseBool(name, v)
}

// BoolOr returns a boolean attribute, or def when it is absent.
func (s *Set) BoolOr(name string, def bool) bool {
	v, ok := s.vals[name]
	if !ok {
		return def
	}
	return s.parseBool(name, v)
}

// ParseBool accepts "0", "1", "true" and "false" (the words in any case).
func ParseBool(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true":
		return true, nil
	case "0", "false":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", v)
}

func (s *Set) parseBool(name, v string) bool {
	b, err := ParseBool(v)
	if err != nil {
		s.fail(model.ErrMalformedAttribute, name, v, "not a boolean", nil)
	}
	return b
}

// maxListedEnum bounds the allowed values quoted in an error.
const maxListedEnum = 8

// EnumOr returns an attribute that must be one of allowed, or def when it is
// absent.
func (s *Set) EnumOr(name, def string, allowed ...string) string {
	v, ok := s.vals[name]
	if !ok {
		return def
	}
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	detail := "not a known value"
	if len(allowed) <= maxListedEnum {
		detail = "expected one of " + strings.Join(allowed, ", ")
	}
	s.fail(model.ErrMalformedAttribute, name, v, detail, nil)
	return def
}

// UUID returns a required identifier attribute. Braced and bare forms are
// accepted.
func (s *Set) UUID(name string) uuid.UUID {
	v, ok := s.required(name)
	if !ok {
		return uuid.Nil
	}
	return s.parseUUID(name, v)
}

// UUIDOr returns an identifier attribute, or uuid.Nil when it is absent or
// empty.
func (s *Set) UUIDOr(name string) uuid.UUID {
	v, ok := s.vals[name]
	if !ok || strings.TrimSpace(v) == "" {
		return uuid.Nil
	}
	return s.parseUUID(name, v)
}

func (s *Set) parseUUID(name, v string) uuid.UUID {
	id, err := uuid.Parse(strings.TrimSpace(v))
	if err != nil {
		s.fail(model.ErrMalformedAttribute, name, v, "not an identifier", err)
		return uuid.Nil
	}
	return id
}

// ColorOr returns a color attribute, or def when it is absent.
func (s *Set) ColorOr(name string, def color.NRGBA) color.NRGBA {
	v, ok := s.vals[name]
	if !ok {
		return def
	}
	c, err := ParseColor(v)
	if err != nil {
		s.fail(model.ErrMalformedAttribute, name, v, "not a color", err)
		return def
	}
	return c
}

// Base64 returns the decoded bytes of an attribute, or nil when it is absent.
func (s *Set) Base64(name string) []byte {
	v, ok := s.vals[name]
	if !ok {
		return nil
	}
	b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(v))
	if err != nil {
		s.fail(model.ErrMalformedAttribute, name, v, "not base64", err)
		return nil
	}
	return b
}

// ParseColor parses a packed color: "r,g,b,a" or "r,g,b" with components in
// 0..255, or "#rrggbb" and "#rrggbbaa". Missing alpha is opaque.
func ParseColor(v string) (color.NRGBA, error) {
	v = strings.TrimSpace(v)
	if strings.HasPrefix(v, "#") {
		return parseHexColor(v[1:])
	}

	parts := strings.Split(v, ",")
	if len(parts) != 3 && len(parts) != 4 {
		return color.NRGBA{}, fmt.Errorf("want 3 or 4 components, got %d", len(parts))
	}
	comp := [4]uint8{0, 0, 0, 255}
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return color.NRGBA{}, err
		}
		if n < 0 || n > 255 {
			return color.NRGBA{}, fmt.Errorf("component %d out of range", n)
		}
		comp[i] = uint8(n)
	}
	return color.NRGBA{R: comp[0], G: comp[1], B: comp[2], A: comp[3]}, nil
}

func parseHexColor(h string) (color.NRGBA, error) {
	if len(h) != 6 && len(h) != 8 {
		return color.NRGBA{}, fmt.Errorf("want 6 or 8 hex digits, got %d", len(h))
	}
	n, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.NRGBA{}, err
	}
	if len(h) == 6 {
		n = n<<8 | 0xFF
	}
	return color.NRGBA{R: uint8(n >> 24), G: uint8(n >> 16), B: uint8(n >> 8), A: uint8(n)}, nil
}

// FormatColor is the inverse of ParseColor for the packed decimal form.
func FormatColor(c color.NRGBA) string {
	return fmt.Sprintf("%d,%d,%d,%d", c.R, c.G, c.B, c.A)
}

// FormatBool writes a boolean the way documents store it.
func FormatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// FormatUUID writes an identifier in braced form.
func FormatUUID(id uuid.UUID) string {
	return "{" + id.String() + "}"
}
