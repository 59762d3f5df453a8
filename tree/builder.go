// Package tree builds a model.Document from the markup of a document's main
// member and writes it back.
//
// [Build] runs a small state machine over a markup.Source. Layers and masks
// are collected on a frame stack and handed to [NewNode] when their element
// closes, so a group receives its children fully built. Cross references
// are validated once the whole tree exists. The result is exactly one
// Document or exactly one error.
//
// [Serialize] is the inverse: Build(Serialize(doc)) reproduces doc.
package tree

import (
	"errors"
	"image"
	"io"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tsawler/kra/attr"
	"github.com/tsawler/kra/internal/logging"
	"github.com/tsawler/kra/markup"
	"github.com/tsawler/kra/model"
)

// Element names outside the layer tree.
const (
	elemDoc                  = "DOC"
	elemImage                = "IMAGE"
	elemProjectionBackground = "ProjectionBackgroundColor"
	elemAssistantsColor      = "GlobalAssistantsColor"
)

// ignoredImageElements are IMAGE children that are known but not
// interpreted.
var ignoredImageElements = map[string]bool{
	"MirrorAxis":           true,
	"ProofingWarningColor": true,
	"guides":               true,
	"animation":            true,
	"compositions":         true,
	"assistants":           true,
	"assistantSettings":    true,
	"Palettes":             true,
	"grid":                 true,
	"audio":                true,
}

type state int

const (
	awaitingDocument state = iota
	inMetadata
	inLayerTree
	done
)

func (s state) String() string {
	switch s {
	case awaitingDocument:
		return "awaiting document"
	case inMetadata:
		return "in metadata"
	case inLayerTree:
		return "in layer tree"
	default:
		return "done"
	}
}

type frameKind int

const (
	nodeFrame frameKind = iota
	layersFrame
	masksFrame
)

// frame is one open element of the layer tree. Node frames collect the
// children of their <layers> and <masks> containers; container frames
// collect the nodes built inside them.
type frame struct {
	kind    frameKind
	element string
	attrs   *attr.Set
	offset  int64
	layers  []*model.Node
	masks   []*model.Node
	nodes   []*model.Node
	sawSub  map[string]bool
}

// Option configures Build.
type Option func(*config)

type config struct {
	created  time.Time
	modified time.Time
	logger   *zap.Logger
}

// WithTimestamps sets the creation and modification times recorded in the
// metadata. They come from the document info member, not the main markup.
func WithTimestamps(created, modified time.Time) Option {
	return func(c *config) {
		c.created = created
		c.modified = modified
	}
}

// WithLogger sets the logger used while building.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("attr")
	})
	return v
}

type builder struct {
	src    markup.Source
	log    *zap.Logger
	state  state
	meta   model.Metadata
	canvas image.Rectangle
	stack  []*frame
	top    []*model.Node

	imageOpen  bool
	imageSeen  bool
	layersSeen bool
}

// Build reads a document from src.
func Build(src markup.Source, opts ...Option) (*model.Document, error) {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}
	b := &builder{src: src, log: logging.Or(cfg.logger)}
	b.meta.Created = cfg.created
	b.meta.Modified = cfg.modified

	if err := b.run(); err != nil {
		return nil, err
	}

	root := &model.Node{
		Kind: model.KindGroupLayer,
		Base: model.Base{
			ID:          uuid.Nil,
			Name:        b.meta.Name,
			Visible:     true,
			Opacity:     255,
			CompositeOp: model.CompositeOpNormal,
			Bounds:      b.canvas,
		},
		Props: &model.GroupLayer{Children: b.top},
	}
	doc, err := model.NewDocument(b.meta, root)
	if err != nil {
		return nil, err
	}
	if err := resolve(doc); err != nil {
		return nil, err
	}
	b.log.Debug("document built",
		zap.Int("nodes", doc.Len()),
		zap.Int("width", b.meta.Width),
		zap.Int("height", b.meta.Height))
	return doc, nil
}

func (b *builder) run() error {
	for b.state != done {
		ev, err := b.src.Next()
		if err != nil {
			return model.NewError(model.ErrStructural, "malformed markup").
				WithOffset(b.src.InputOffset()).
				Wrap(err)
		}
		switch b.state {
		case awaitingDocument:
			err = b.awaitDocument(ev)
		case inMetadata:
			err = b.metadataEvent(ev)
		case inLayerTree:
			err = b.layerTreeEvent(ev)
		}
		if err != nil {
			return err
		}
	}

	ev, err := b.src.Next()
	if err != nil {
		return model.NewError(model.ErrStructural, "malformed markup").
			WithOffset(b.src.InputOffset()).
			Wrap(err)
	}
	if ev.Kind != markup.EOF {
		return unexpected(ev, "end of input")
	}
	return nil
}

func unexpected(ev markup.Event, want string) error {
	var got string
	switch ev.Kind {
	case markup.StartElement:
		got = "<" + ev.Name + ">"
	case markup.EndElement:
		got = "</" + ev.Name + ">"
	default:
		got = "end of input"
	}
	return model.Errorf(model.ErrStructural, "unexpected %s, want %s", got, want).
		WithElement(ev.Name).
		WithOffset(ev.Offset)
}

func (b *builder) awaitDocument(ev markup.Event) error {
	if ev.Kind != markup.StartElement || ev.Name != elemDoc {
		return unexpected(ev, "<"+elemDoc+">")
	}
	s := attr.New(ev.Name, ev.Attrs)
	b.meta.SyntaxVersion = s.StringOr("syntaxVersion", "")
	b.meta.KritaVersion = s.StringOr("kritaVersion", "")
	b.state = inMetadata
	return nil
}

func (b *builder) metadataEvent(ev markup.Event) error {
	switch ev.Kind {
	case markup.EOF:
		return unexpected(ev, "</"+elemDoc+">")

	case markup.EndElement:
		switch {
		case b.imageOpen && ev.Name == elemImage:
			b.imageOpen = false
			return nil
		case !b.imageOpen && ev.Name == elemDoc:
			if !b.imageSeen {
				return model.NewError(model.ErrStructural, "document has no image").
					WithElement(elemDoc).WithOffset(ev.Offset)
			}
			b.state = done
			return nil
		}
		return unexpected(ev, "a closing tag of the open element")
	}

	if !b.imageOpen {
		if ev.Name != elemImage || b.imageSeen {
			return unexpected(ev, "<"+elemImage+">")
		}
		b.imageOpen, b.imageSeen = true, true
		if err := b.decodeImage(ev); err != nil {
			if e, ok := model.AsError(err); ok && e.Offset < 0 {
				e.WithOffset(ev.Offset)
			}
			return err
		}
		return nil
	}

	switch ev.Name {
	case elemLayers:
		if b.layersSeen {
			return unexpected(ev, "a single <"+elemLayers+">")
		}
		b.layersSeen = true
		b.state = inLayerTree
		b.push(&frame{kind: layersFrame, element: ev.Name, offset: ev.Offset})
		return nil
	case elemProjectionBackground:
		s := attr.New(ev.Name, ev.Attrs)
		b.meta.ProjectionBackground = s.Base64("ColorData")
		if err := s.Err(); err != nil {
			return err
		}
	case elemAssistantsColor:
		s := attr.New(ev.Name, ev.Attrs)
		if s.Has("SimpleColorData") {
			b.meta.AssistantsColor = s.ColorOr("SimpleColorData", b.meta.AssistantsColor)
			b.meta.HasAssistantsColor = true
		}
		if err := s.Err(); err != nil {
			return err
		}
	default:
		if ignoredImageElements[ev.Name] {
			b.log.Debug("skipping image element", zap.String("element", ev.Name))
		} else {
			b.log.Warn("skipping unknown image element", zap.String("element", ev.Name))
		}
	}
	if err := markup.Skip(b.src); err != nil {
		return model.NewError(model.ErrStructural, "malformed markup").
			WithElement(ev.Name).
			WithOffset(b.src.InputOffset()).
			Wrap(err)
	}
	return nil
}

func (b *builder) decodeImage(ev markup.Event) error {
	s := attr.New(ev.Name, ev.Attrs)
	m := &b.meta
	m.Name = s.StringOr("name", "")
	m.Description = s.StringOr("description", "")
	m.Mime = s.StringOr("mime", "application/x-kra")
	m.ColorSpace = s.String("colorspacename")
	m.Profile = s.StringOr("profile", "")
	m.Width = s.Int("width")
	m.Height = s.Int("height")
	m.XRes = s.FloatOr("x-res", 0)
	m.YRes = s.FloatOr("y-res", 0)
	m.ActiveLayer = s.StringOr("activelayer", "")
	if err := s.Err(); err != nil {
		return err
	}

	if err := validate.Struct(m); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			name := verrs[0].Field()
			s.Invalid(name, "fails "+verrs[0].Tag())
			return s.Err()
		}
		return model.NewError(model.ErrMalformedAttribute, "invalid image").
			WithElement(ev.Name).Wrap(err)
	}

	f, err := model.ParseColorSpace(m.ColorSpace)
	if err != nil {
		s.Invalid("colorspacename", "unknown colorspace")
		return s.Err()
	}
	m.Format = f
	b.canvas = m.Canvas()
	return nil
}

func (b *builder) push(f *frame) {
	b.stack = append(b.stack, f)
}

func (b *builder) pop() *frame {
	f := b.stack[len(b.stack)-1]
	b.stack = b.stack[:len(b.stack)-1]
	return f
}

func (b *builder) layerTreeEvent(ev markup.Event) error {
	cur := b.stack[len(b.stack)-1]

	switch ev.Kind {
	case markup.EOF:
		return unexpected(ev, "</"+cur.element+">")

	case markup.StartElement:
		switch cur.kind {
		case layersFrame, masksFrame:
			switch {
			case ev.Name == elemLayer && cur.kind == layersFrame, ev.Name == elemMask:
				b.push(&frame{
					kind:    nodeFrame,
					element: ev.Name,
					attrs:   attr.New(ev.Name, ev.Attrs),
					offset:  ev.Offset,
				})
				return nil
			case ev.Name == elemLayer:
				return model.NewError(model.ErrStructural, "layer inside masks").
					WithElement(ev.Name).WithOffset(ev.Offset)
			}
			return model.Errorf(model.ErrUnknownNodeType, "element %q in %s", ev.Name, cur.element).
				WithElement(ev.Name).WithOffset(ev.Offset)

		case nodeFrame:
			if ev.Name != elemLayers && ev.Name != elemMasks {
				return model.Errorf(model.ErrUnknownNodeType, "element %q in %s", ev.Name, cur.element).
					WithElement(ev.Name).WithOffset(ev.Offset)
			}
			if cur.element == elemMask || cur.sawSub[ev.Name] {
				return unexpected(ev, "</"+cur.element+">")
			}
			if cur.sawSub == nil {
				cur.sawSub = make(map[string]bool)
			}
			cur.sawSub[ev.Name] = true
			kind := layersFrame
			if ev.Name == elemMasks {
				kind = masksFrame
			}
			b.push(&frame{kind: kind, element: ev.Name, offset: ev.Offset})
			return nil
		}
	}

	// Element end.
	if ev.Name != cur.element {
		return unexpected(ev, "</"+cur.element+">")
	}
	b.pop()

	switch cur.kind {
	case layersFrame, masksFrame:
		if len(b.stack) == 0 {
			b.top = cur.nodes
			b.state = inMetadata
			return nil
		}
		parent := b.stack[len(b.stack)-1]
		if cur.kind == layersFrame {
			parent.layers = cur.nodes
		} else {
			parent.masks = cur.nodes
		}
		return nil
	}

	n, err := NewNode(cur.element, cur.attrs, cur.layers, b.canvas)
	if err != nil {
		if e, ok := model.AsError(err); ok && e.Offset < 0 {
			e.WithOffset(cur.offset)
		}
		return err
	}
	if cur.sawSub[elemLayers] && n.Kind != model.KindGroupLayer {
		return model.Errorf(model.ErrStructural, "%s cannot own layers", n.Kind).
			WithElement(cur.element).
			WithNode(attr.FormatUUID(n.ID)).
			WithOffset(cur.offset)
	}

	container := b.stack[len(b.stack)-1]
	container.nodes = append(container.nodes, n)
	for _, m := range cur.masks {
		m.ParentID = n.ID
		container.nodes = append(container.nodes, m)
	}
	b.log.Debug("node built",
		zap.String("kind", n.Kind.String()),
		zap.String("name", n.Name),
		zap.Int("masks", len(cur.masks)))
	return nil
}

// resolve checks every identifier a node refers to.
func resolve(doc *model.Document) error {
	for _, n := range doc.Nodes() {
		if c, ok := n.Props.(*model.CloneLayer); ok {
			if _, ok := doc.Lookup(c.SourceID); !ok {
				return dangling(n, "clonefromuuid", c.SourceID)
			}
		}
		if n.ParentID != uuid.Nil {
			p, ok := doc.Lookup(n.ParentID)
			if !ok {
				return dangling(n, "parentuuid", n.ParentID)
			}
			if !p.Kind.IsLayer() {
				return model.Errorf(model.ErrStructural, "mask parent %s is a %s", attr.FormatUUID(p.ID), p.Kind).
					WithNode(attr.FormatUUID(n.ID))
			}
		}
	}
	if ref := doc.Metadata().ActiveLayer; ref != "" {
		if _, ok := doc.ActiveLayer(); !ok {
			e := model.Errorf(model.ErrDanglingReference, "active layer %q", ref).WithElement(elemImage)
			e.Attr, e.Value = "activelayer", ref
			return e
		}
	}
	return nil
}

func dangling(n *model.Node, name string, id uuid.UUID) error {
	e := model.Errorf(model.ErrDanglingReference, "no node %s", attr.FormatUUID(id)).
		WithElement(n.Kind.TypeTag()).
		WithNode(attr.FormatUUID(n.ID))
	e.Attr, e.Value = name, attr.FormatUUID(id)
	return e
}

// Parse builds a document from main document markup read from r.
func Parse(r io.Reader, opts ...Option) (*model.Document, error) {
	return Build(markup.NewDecoder(r), opts...)
}
