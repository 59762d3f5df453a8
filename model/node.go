package model

import (
	"image"

	"github.com/google/uuid"
)

// Kind enumerates the node variants that can appear in a layer tree.
type Kind int

const (
	KindUnknown Kind = iota
	KindPaintLayer
	KindGroupLayer
	KindFileLayer
	KindFilterLayer
	KindFillLayer
	KindCloneLayer
	KindVectorLayer
	KindTransparencyMask
	KindFilterMask
	KindTransformMask
	KindSelectionMask
	KindColorizeMask
)

// Kinds lists every known kind in declaration order.
var Kinds = []Kind{
	KindPaintLayer, KindGroupLayer, KindFileLayer, KindFilterLayer,
	KindFillLayer, KindCloneLayer, KindVectorLayer, KindTransparencyMask,
	KindFilterMask, KindTransformMask, KindSelectionMask, KindColorizeMask,
}

func (k Kind) String() string {
	switch k {
	case KindPaintLayer:
		return "PaintLayer"
	case KindGroupLayer:
		return "GroupLayer"
	case KindFileLayer:
		return "FileLayer"
	case KindFilterLayer:
		return "FilterLayer"
	case KindFillLayer:
		return "FillLayer"
	case KindCloneLayer:
		return "CloneLayer"
	case KindVectorLayer:
		return "VectorLayer"
	case KindTransparencyMask:
		return "TransparencyMask"
	case KindFilterMask:
		return "FilterMask"
	case KindTransformMask:
		return "TransformMask"
	case KindSelectionMask:
		return "SelectionMask"
	case KindColorizeMask:
		return "ColorizeMask"
	default:
		return "Unknown"
	}
}

// TypeTag returns the node type tag used in markup (the nodetype attribute).
func (k Kind) TypeTag() string {
	switch k {
	case KindPaintLayer:
		return "paintlayer"
	case KindGroupLayer:
		return "grouplayer"
	case KindFileLayer:
		return "filelayer"
	case KindFilterLayer:
		return "adjustmentlayer"
	case KindFillLayer:
		return "generatorlayer"
	case KindCloneLayer:
		return "clonelayer"
	case KindVectorLayer:
		return "shapelayer"
	case KindTransparencyMask:
		return "transparencymask"
	case KindFilterMask:
		return "filtermask"
	case KindTransformMask:
		return "transformmask"
	case KindSelectionMask:
		return "selectionmask"
	case KindColorizeMask:
		return "colorizemask"
	default:
		return ""
	}
}

// KindFromTypeTag returns the kind for a node type tag, or KindUnknown.
func KindFromTypeTag(tag string) Kind {
	for _, k := range Kinds {
		if k.TypeTag() == tag {
			return k
		}
	}
	return KindUnknown
}

// IsLayer reports whether the kind is a layer.
func (k Kind) IsLayer() bool {
	switch k {
	case KindPaintLayer, KindGroupLayer, KindFileLayer, KindFilterLayer,
		KindFillLayer, KindCloneLayer, KindVectorLayer:
		return true
	}
	return false
}

// IsMask reports whether the kind is a mask.
func (k Kind) IsMask() bool {
	switch k {
	case KindTransparencyMask, KindFilterMask, KindTransformMask,
		KindSelectionMask, KindColorizeMask:
		return true
	}
	return false
}

// Base holds the fields shared by every node.
type Base struct {
	ID          uuid.UUID
	Name        string
	Filename    string // archive member stem for the node's data
	Visible     bool
	Locked      bool
	Opacity     uint8
	CompositeOp CompositeOp
	ColorLabel  int
	Bounds      image.Rectangle
	InTimeline  bool
	Onionskin   bool

	// ParentID is the layer a mask applies to. It is uuid.Nil for layers and
	// for masks without an association.
	ParentID uuid.UUID
}

// Node is one entry of the layer tree: a Base plus the variant payload
// selected by Kind. Nodes belong to a Document and must be treated as
// read-only.
type Node struct {
	Kind Kind
	Base
	Props Props
}

// Props is the variant payload of a node. The concrete type always matches
// the node's Kind.
type Props interface {
	Kind() Kind
	props()
}

// Children returns the ordered children of a group layer, or nil for any
// other kind.
func (n *Node) Children() []*Node {
	if g, ok := n.Props.(*GroupLayer); ok {
		return g.Children
	}
	return nil
}

// IsGroup reports whether the node is a group layer.
func (n *Node) IsGroup() bool {
	return n.Kind == KindGroupLayer
}

// References returns the identifiers this node refers to without owning.
func (n *Node) References() []uuid.UUID {
	var refs []uuid.UUID
	if n.ParentID != uuid.Nil {
		refs = append(refs, n.ParentID)
	}
	if c, ok := n.Props.(*CloneLayer); ok {
		refs = append(refs, c.SourceID)
	}
	return refs
}

// ColorSpace returns the colorspace id declared on the node, if any.
func (n *Node) ColorSpace() string {
	switch p := n.Props.(type) {
	case *PaintLayer:
		return p.ColorSpace
	case *FileLayer:
		return p.ColorSpace
	case *ColorizeMask:
		return p.ColorSpace
	}
	return ""
}

// PaintLayer is a raster layer holding pixel data.
type PaintLayer struct {
	ColorSpace       string
	ChannelFlags     string
	ChannelLockFlags string
	Collapsed        bool
}

// GroupLayer composites its children. It is the only kind that owns nodes.
type GroupLayer struct {
	Collapsed   bool
	Passthrough bool
	Children    []*Node
}

// FileLayer renders an image file stored outside the document.
type FileLayer struct {
	Source        string
	Scale         bool
	ScalingMethod int
	ScalingFilter string
	ColorSpace    string
	ChannelFlags  string
	Collapsed     bool
}

// FilterLayer applies a filter to the layers below it. The filter
// configuration itself is an opaque blob stored in the archive; read it with
// kra.File.FilterConfig.
type FilterLayer struct {
	FilterName    string
	FilterVersion int
	ChannelFlags  string
	Collapsed     bool
}

// FillLayer is produced by a generator such as a solid color or pattern.
type FillLayer struct {
	GeneratorName    string
	GeneratorVersion int
	ChannelFlags     string
	Collapsed        bool
}

// CloneLayer displays the content of another layer.
type CloneLayer struct {
	SourceID     uuid.UUID
	SourceName   string
	CloneType    int
	ChannelFlags string
	Collapsed    bool
}

// VectorLayer holds vector shapes, which are not interpreted.
type VectorLayer struct {
	ChannelFlags string
	Collapsed    bool
}

// TransparencyMask modulates the alpha of its layer.
type TransparencyMask struct{}

// FilterMask applies a filter to its layer. Its configuration blob is read
// with kra.File.FilterConfig.
type FilterMask struct {
	FilterName    string
	FilterVersion int
}

// TransformMask transforms its layer.
type TransformMask struct{}

// SelectionMask is a stored selection.
type SelectionMask struct {
	Active bool
}

// ColorizeMask fills regions of its layer from keystrokes.
type ColorizeMask struct {
	ColorSpace        string
	LimitToDevice     bool
	ShowColoring      bool
	Cleanup           int
	UseEdgeDetection  bool
	EdgeDetectionSize int
	FuzzyRadius       int
	EditKeystrokes    bool
}

func (*PaintLayer) Kind() Kind       { return KindPaintLayer }
func (*GroupLayer) Kind() Kind       { return KindGroupLayer }
func (*FileLayer) Kind() Kind        { return KindFileLayer }
func (*FilterLayer) Kind() Kind      { return KindFilterLayer }
func (*FillLayer) Kind() Kind        { return KindFillLayer }
func (*CloneLayer) Kind() Kind       { return KindCloneLayer }
func (*VectorLayer) Kind() Kind      { return KindVectorLayer }
func (*TransparencyMask) Kind() Kind { return KindTransparencyMask }
func (*FilterMask) Kind() Kind       { return KindFilterMask }
func (*TransformMask) Kind() Kind    { return KindTransformMask }
func (*SelectionMask) Kind() Kind    { return KindSelectionMask }
func (*ColorizeMask) Kind() Kind     { return KindColorizeMask }

func (*PaintLayer) props()       {}
func (*GroupLayer) props()       {}
func (*FileLayer) props()        {}
func (*FilterLayer) props()      {}
func (*FillLayer) props()        {}
func (*CloneLayer) props()       {}
func (*VectorLayer) props()      {}
func (*TransparencyMask) props() {}
func (*FilterMask) props()       {}
func (*TransformMask) props()    {}
func (*SelectionMask) props()    {}
func (*ColorizeMask) props()     {}
