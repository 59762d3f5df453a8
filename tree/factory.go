package tree

import (
	"image"
	"strconv"

	"github.com/google/uuid"
	"github.com/tsawler/kra/attr"
	"github.com/tsawler/kra/markup"
	"github.com/tsawler/kra/model"
)

// Element names used in the layer tree.
const (
	elemLayer  = "layer"
	elemMask   = "mask"
	elemLayers = "layers"
	elemMasks  = "masks"
)

// kindSpec decodes and encodes the payload of one node kind.
type kindSpec struct {
	kind   model.Kind
	decode func(s *attr.Set, children []*model.Node) model.Props
	encode func(p model.Props) []markup.Attr
}

// kindSpecs is the closed dispatch table, keyed by node type tag.
var kindSpecs = map[string]kindSpec{}

func init() {
	for _, ks := range []kindSpec{
		{model.KindPaintLayer, decodePaintLayer, encodePaintLayer},
		{model.KindGroupLayer, decodeGroupLayer, encodeGroupLayer},
		{model.KindFileLayer, decodeFileLayer, encodeFileLayer},
		{model.KindFilterLayer, decodeFilterLayer, encodeFilterLayer},
		{model.KindFillLayer, decodeFillLayer, encodeFillLayer},
		{model.KindCloneLayer, decodeCloneLayer, encodeCloneLayer},
		{model.KindVectorLayer, decodeVectorLayer, encodeVectorLayer},
		{model.KindTransparencyMask, decodeTransparencyMask, encodeNone},
		{model.KindFilterMask, decodeFilterMask, encodeFilterMask},
		{model.KindTransformMask, decodeTransformMask, encodeNone},
		{model.KindSelectionMask, decodeSelectionMask, encodeSelectionMask},
		{model.KindColorizeMask, decodeColorizeMask, encodeColorizeMask},
	} {
		kindSpecs[ks.kind.TypeTag()] = ks
	}
}

// NewNode builds one node from an element name ("layer" or "mask"), its
// attribute set and, for group layers, its ordered children. Cross
// references are stored unresolved. canvas supplies the default bounds.
func NewNode(element string, s *attr.Set, children []*model.Node, canvas image.Rectangle) (*model.Node, error) {
	tag := s.String("nodetype")
	if err := s.Err(); err != nil {
		return nil, err
	}
	ks, ok := kindSpecs[tag]
	if !ok {
		e := model.Errorf(model.ErrUnknownNodeType, "node type %q", tag).WithElement(element)
		e.Attr, e.Value = "nodetype", tag
		return nil, e
	}
	switch {
	case element == elemLayer && !ks.kind.IsLayer():
		return nil, model.Errorf(model.ErrStructural, "%s declared as a layer", tag).WithElement(element)
	case element == elemMask && !ks.kind.IsMask():
		return nil, model.Errorf(model.ErrStructural, "%s declared as a mask", tag).WithElement(element)
	}
	if len(children) > 0 && ks.kind != model.KindGroupLayer {
		return nil, model.Errorf(model.ErrStructural, "%s cannot own layers", tag).WithElement(element)
	}

	n := &model.Node{Kind: ks.kind, Base: decodeBase(s, canvas)}
	if ks.kind.IsMask() {
		n.ParentID = s.UUIDOr("parentuuid")
	}
	n.Props = ks.decode(s, children)
	if err := s.Err(); err != nil {
		if e, ok := model.AsError(err); ok && n.ID != uuid.Nil {
			e.WithNode(attr.FormatUUID(n.ID))
		}
		return nil, err
	}
	return n, nil
}

func decodeBase(s *attr.Set, canvas image.Rectangle) model.Base {
	b := model.Base{
		ID:          s.UUID("uuid"),
		Name:        s.String("name"),
		Filename:    s.StringOr("filename", ""),
		Visible:     s.BoolOr("visible", true),
		Locked:      s.BoolOr("locked", false),
		Opacity:     s.Uint8Or("opacity", 255),
		CompositeOp: model.CompositeOp(s.EnumOr("compositeop", string(model.CompositeOpNormal), model.CompositeOps()...)),
		ColorLabel:  s.IntOr("colorlabel", 0),
		InTimeline:  s.BoolOr("intimeline", false),
	}
	b.Onionskin = b.InTimeline && s.BoolOr("onionskin", false)

	x, y := s.IntOr("x", 0), s.IntOr("y", 0)
	w, h := s.IntOr("width", canvas.Dx()), s.IntOr("height", canvas.Dy())
	if w < 0 {
		s.Invalid("width", "negative width")
		w = 0
	}
	if h < 0 {
		s.Invalid("height", "negative height")
		h = 0
	}
	b.Bounds = image.Rect(x, y, x+w, y+h)
	return b
}

// colorSpace reads an optional colorspacename and rejects unknown ids.
func colorSpace(s *attr.Set) string {
	id := s.StringOr("colorspacename", "")
	if id == "" {
		return ""
	}
	if _, err := model.ParseColorSpace(id); err != nil {
		s.Invalid("colorspacename", "unknown colorspace")
	}
	return id
}

func decodePaintLayer(s *attr.Set, _ []*model.Node) model.Props {
	return &model.PaintLayer{
		ColorSpace:       colorSpace(s),
		ChannelFlags:     s.StringOr("channelflags", ""),
		ChannelLockFlags: s.StringOr("channellockflags", ""),
		Collapsed:        s.BoolOr("collapsed", false),
	}
}

func decodeGroupLayer(s *attr.Set, children []*model.Node) model.Props {
	return &model.GroupLayer{
		Collapsed:   s.BoolOr("collapsed", false),
		Passthrough: s.BoolOr("passthrough", false),
		Children:    children,
	}
}

func decodeFileLayer(s *attr.Set, _ []*model.Node) model.Props {
	return &model.FileLayer{
		Source:        s.String("source"),
		Scale:         s.BoolOr("scale", false),
		ScalingMethod: s.IntOr("scalingmethod", 0),
		ScalingFilter: s.StringOr("scalingfilter", ""),
		ColorSpace:    colorSpace(s),
		ChannelFlags:  s.StringOr("channelflags", ""),
		Collapsed:     s.BoolOr("collapsed", false),
	}
}

func decodeFilterLayer(s *attr.Set, _ []*model.Node) model.Props {
	return &model.FilterLayer{
		FilterName:    s.String("filtername"),
		FilterVersion: s.IntOr("filterversion", 1),
		ChannelFlags:  s.StringOr("channelflags", ""),
		Collapsed:     s.BoolOr("collapsed", false),
	}
}

func decodeFillLayer(s *attr.Set, _ []*model.Node) model.Props {
	return &model.FillLayer{
		GeneratorName:    s.String("generatorname"),
		GeneratorVersion: s.IntOr("generatorversion", 1),
		ChannelFlags:     s.StringOr("channelflags", ""),
		Collapsed:        s.BoolOr("collapsed", false),
	}
}

func decodeCloneLayer(s *attr.Set, _ []*model.Node) model.Props {
	return &model.CloneLayer{
		SourceID:     s.UUID("clonefromuuid"),
		SourceName:   s.StringOr("clonefrom", ""),
		CloneType:    s.IntOr("clonetype", 0),
		ChannelFlags: s.StringOr("channelflags", ""),
		Collapsed:    s.BoolOr("collapsed", false),
	}
}

func decodeVectorLayer(s *attr.Set, _ []*model.Node) model.Props {
	return &model.VectorLayer{
		ChannelFlags: s.StringOr("channelflags", ""),
		Collapsed:    s.BoolOr("collapsed", false),
	}
}

func decodeTransparencyMask(*attr.Set, []*model.Node) model.Props {
	return &model.TransparencyMask{}
}

func decodeTransformMask(*attr.Set, []*model.Node) model.Props {
	return &model.TransformMask{}
}

func decodeFilterMask(s *attr.Set, _ []*model.Node) model.Props {
	return &model.FilterMask{
		FilterName:    s.String("filtername"),
		FilterVersion: s.IntOr("filterversion", 1),
	}
}

func decodeSelectionMask(s *attr.Set, _ []*model.Node) model.Props {
	return &model.SelectionMask{Active: s.BoolOr("active", false)}
}

func decodeColorizeMask(s *attr.Set, _ []*model.Node) model.Props {
	return &model.ColorizeMask{
		ColorSpace:        colorSpace(s),
		LimitToDevice:     s.BoolOr("limit-to-device", false),
		ShowColoring:      s.BoolOr("show-coloring", true),
		Cleanup:           s.IntOr("cleanup", 0),
		UseEdgeDetection:  s.BoolOr("use-edge-detection", false),
		EdgeDetectionSize: s.IntOr("edge-detection-size", 4),
		FuzzyRadius:       s.IntOr("fuzzy-radius", 0),
		EditKeystrokes:    s.BoolOr("edit-keystrokes", true),
	}
}

// nodeAttrs returns the attributes that reproduce n. Width and height are
// only written when the bounds differ from the canvas size.
func nodeAttrs(n *model.Node, canvas image.Rectangle) []markup.Attr {
	a := []markup.Attr{
		markup.A("name", n.Name),
		markup.A("uuid", attr.FormatUUID(n.ID)),
		markup.A("filename", n.Filename),
		markup.A("nodetype", n.Kind.TypeTag()),
		markup.A("visible", attr.FormatBool(n.Visible)),
		markup.A("locked", attr.FormatBool(n.Locked)),
		markup.A("opacity", strconv.Itoa(int(n.Opacity))),
		markup.A("compositeop", compositeOpOf(n)),
		markup.A("colorlabel", strconv.Itoa(n.ColorLabel)),
		markup.A("x", strconv.Itoa(n.Bounds.Min.X)),
		markup.A("y", strconv.Itoa(n.Bounds.Min.Y)),
		markup.A("intimeline", attr.FormatBool(n.InTimeline)),
	}
	if n.InTimeline {
		a = append(a, markup.A("onionskin", attr.FormatBool(n.Onionskin)))
	}
	if n.Bounds.Size() != canvas.Size() {
		a = append(a,
			markup.A("width", strconv.Itoa(n.Bounds.Dx())),
			markup.A("height", strconv.Itoa(n.Bounds.Dy())))
	}
	return append(a, kindSpecs[n.Kind.TypeTag()].encode(n.Props)...)
}

func optional(a []markup.Attr, name, value string) []markup.Attr {
	if value == "" {
		return a
	}
	return append(a, markup.A(name, value))
}

func encodePaintLayer(p model.Props) []markup.Attr {
	l := p.(*model.PaintLayer)
	a := optional(nil, "colorspacename", l.ColorSpace)
	a = optional(a, "channelflags", l.ChannelFlags)
	a = optional(a, "channellockflags", l.ChannelLockFlags)
	return append(a, markup.A("collapsed", attr.FormatBool(l.Collapsed)))
}

func encodeGroupLayer(p model.Props) []markup.Attr {
	g := p.(*model.GroupLayer)
	return []markup.Attr{
		markup.A("collapsed", attr.FormatBool(g.Collapsed)),
		markup.A("passthrough", attr.FormatBool(g.Passthrough)),
	}
}

func encodeFileLayer(p model.Props) []markup.Attr {
	f := p.(*model.FileLayer)
	a := []markup.Attr{
		markup.A("source", f.Source),
		markup.A("scale", strconv.FormatBool(f.Scale)),
		markup.A("scalingmethod", strconv.Itoa(f.ScalingMethod)),
	}
	a = optional(a, "scalingfilter", f.ScalingFilter)
	a = optional(a, "colorspacename", f.ColorSpace)
	a = optional(a, "channelflags", f.ChannelFlags)
	return append(a, markup.A("collapsed", attr.FormatBool(f.Collapsed)))
}

func encodeFilterLayer(p model.Props) []markup.Attr {
	f := p.(*model.FilterLayer)
	a := []markup.Attr{
		markup.A("filtername", f.FilterName),
		markup.A("filterversion", strconv.Itoa(f.FilterVersion)),
	}
	a = optional(a, "channelflags", f.ChannelFlags)
	return append(a, markup.A("collapsed", attr.FormatBool(f.Collapsed)))
}

func encodeFillLayer(p model.Props) []markup.Attr {
	f := p.(*model.FillLayer)
	a := []markup.Attr{
		markup.A("generatorname", f.GeneratorName),
		markup.A("generatorversion", strconv.Itoa(f.GeneratorVersion)),
	}
	a = optional(a, "channelflags", f.ChannelFlags)
	return append(a, markup.A("collapsed", attr.FormatBool(f.Collapsed)))
}

func encodeCloneLayer(p model.Props) []markup.Attr {
	c := p.(*model.CloneLayer)
	a := []markup.Attr{
		markup.A("clonefromuuid", attr.FormatUUID(c.SourceID)),
		markup.A("clonetype", strconv.Itoa(c.CloneType)),
	}
	a = optional(a, "clonefrom", c.SourceName)
	a = optional(a, "channelflags", c.ChannelFlags)
	return append(a, markup.A("collapsed", attr.FormatBool(c.Collapsed)))
}

func encodeVectorLayer(p model.Props) []markup.Attr {
	v := p.(*model.VectorLayer)
	a := optional(nil, "channelflags", v.ChannelFlags)
	return append(a, markup.A("collapsed", attr.FormatBool(v.Collapsed)))
}

func encodeNone(model.Props) []markup.Attr { return nil }

func encodeFilterMask(p model.Props) []markup.Attr {
	f := p.(*model.FilterMask)
	return []markup.Attr{
		markup.A("filtername", f.FilterName),
		markup.A("filterversion", strconv.Itoa(f.FilterVersion)),
	}
}

func encodeSelectionMask(p model.Props) []markup.Attr {
	return []markup.Attr{markup.A("active", attr.FormatBool(p.(*model.SelectionMask).Active))}
}

func encodeColorizeMask(p model.Props) []markup.Attr {
	c := p.(*model.ColorizeMask)
	a := optional(nil, "colorspacename", c.ColorSpace)
	return append(a,
		markup.A("limit-to-device", attr.FormatBool(c.LimitToDevice)),
		markup.A("show-coloring", attr.FormatBool(c.ShowColoring)),
		markup.A("cleanup", strconv.Itoa(c.Cleanup)),
		markup.A("use-edge-detection", attr.FormatBool(c.UseEdgeDetection)),
		markup.A("edge-detection-size", strconv.Itoa(c.EdgeDetectionSize)),
		markup.A("fuzzy-radius", strconv.Itoa(c.FuzzyRadius)),
		markup.A("edit-keystrokes", attr.FormatBool(c.EditKeystrokes)),
	)
}

// compositeOpOf returns the operator written for n; unset means normal.
func compositeOpOf(n *model.Node) string {
	if n.CompositeOp == "" {
		return string(model.CompositeOpNormal)
	}
	return string(n.CompositeOp)
}
