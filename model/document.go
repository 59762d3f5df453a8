package model

import (
	"errors"
	"image"
	"image/color"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// ErrStopWalk may be returned from a WalkFunc to end a walk early without
// reporting an error.
var ErrStopWalk = errors.New("stop walk")

// Metadata contains document-level information. The attr tags name the
// IMAGE attribute each field is read from.
type Metadata struct {
	KritaVersion  string
	SyntaxVersion string
	Name          string `attr:"name"`
	Description   string `attr:"description"`
	Mime          string `attr:"mime"`
	ColorSpace    string `attr:"colorspacename" validate:"required"`
	Format        PixelFormat
	Profile       string  `attr:"profile"`
	Width         int     `attr:"width" validate:"gt=0"`
	Height        int     `attr:"height" validate:"gt=0"`
	XRes          float64 `attr:"x-res" validate:"gte=0"`
	YRes          float64 `attr:"y-res" validate:"gte=0"`
	Created       time.Time
	Modified      time.Time

	// ActiveLayer is the identifier or name of the active layer. It is a
	// lookup key, not an ownership link; empty when the document names none.
	ActiveLayer string `attr:"activelayer"`

	// ProjectionBackground is the raw background color of the projection.
	ProjectionBackground []byte
	AssistantsColor      color.NRGBA
	HasAssistantsColor   bool
}

// Canvas returns the canvas rectangle.
func (m Metadata) Canvas() image.Rectangle {
	return image.Rect(0, 0, m.Width, m.Height)
}

// Document is an immutable layer tree plus its metadata.
type Document struct {
	meta    Metadata
	root    *Node
	index   map[uuid.UUID]*Node
	parents map[uuid.UUID]*Node
	order   []*Node
}

// NewDocument indexes the tree under root and returns the Document. Node
// identifiers must be unique; a duplicate is a structural error.
func NewDocument(meta Metadata, root *Node) (*Document, error) {
	if root == nil || root.Kind != KindGroupLayer {
		return nil, NewError(ErrStructural, "document root must be a group layer")
	}
	d := &Document{
		meta:    meta,
		root:    root,
		index:   make(map[uuid.UUID]*Node),
		parents: make(map[uuid.UUID]*Node),
	}
	if err := d.indexChildren(root); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Document) indexChildren(group *Node) error {
	for _, child := range group.Children() {
		if child.ID == uuid.Nil {
			return NewError(ErrStructural, "node has the nil identifier").
				WithElement(child.Kind.TypeTag())
		}
		if _, dup := d.index[child.ID]; dup {
			return NewError(ErrStructural, "duplicate node identifier").
				WithNode(child.ID.String())
		}
		d.index[child.ID] = child
		d.parents[child.ID] = group
		d.order = append(d.order, child)
		if child.IsGroup() {
			if err := d.indexChildren(child); err != nil {
				return err
			}
		}
	}
	return nil
}

// Metadata returns the document metadata.
func (d *Document) Metadata() Metadata {
	return d.meta
}

// Root returns the root group, which stands for the canvas.
func (d *Document) Root() *Node {
	return d.root
}

// Len returns the number of nodes, not counting the root.
func (d *Document) Len() int {
	return len(d.order)
}

// Nodes returns every node except the root in pre-order.
func (d *Document) Nodes() []*Node {
	out := make([]*Node, len(d.order))
	copy(out, d.order)
	return out
}

// Lookup returns the node with the given identifier.
func (d *Document) Lookup(id uuid.UUID) (*Node, bool) {
	n, ok := d.index[id]
	return n, ok
}

// Parent returns the group that owns the node.
func (d *Document) Parent(id uuid.UUID) (*Node, bool) {
	p, ok := d.parents[id]
	return p, ok
}

// MasksOf returns the masks associated with the layer, in tree order.
func (d *Document) MasksOf(id uuid.UUID) []*Node {
	var masks []*Node
	for _, n := range d.order {
		if n.Kind.IsMask() && n.ParentID == id {
			masks = append(masks, n)
		}
	}
	return masks
}

// CloneSource returns the node a clone layer displays.
func (d *Document) CloneSource(id uuid.UUID) (*Node, bool) {
	n, ok := d.index[id]
	if !ok {
		return nil, false
	}
	c, ok := n.Props.(*CloneLayer)
	if !ok {
		return nil, false
	}
	return d.Lookup(c.SourceID)
}

// ActiveLayer returns the node named by the metadata's active layer
// reference, matched first as an identifier and then as a name.
func (d *Document) ActiveLayer() (*Node, bool) {
	ref := d.meta.ActiveLayer
	if ref == "" {
		return nil, false
	}
	if id, err := uuid.Parse(ref); err == nil {
		if n, ok := d.index[id]; ok {
			return n, true
		}
	}
	found := d.FindByName(ref)
	if len(found) == 0 {
		return nil, false
	}
	return found[0], true
}

// FindByName returns the nodes whose name equals name after Unicode NFC
// normalization of both sides.
func (d *Document) FindByName(name string) []*Node {
	want := norm.NFC.String(name)
	var out []*Node
	for _, n := range d.order {
		if norm.NFC.String(n.Name) == want {
			out = append(out, n)
		}
	}
	return out
}

// WalkFunc is called for each node with its depth below the root (the
// root's children have depth 0).
type WalkFunc func(n *Node, depth int) error

// Walk visits every node except the root in pre-order. Returning ErrStopWalk
// ends the walk and Walk returns nil.
func (d *Document) Walk(fn WalkFunc) error {
	err := walk(d.root, 0, fn)
	if errors.Is(err, ErrStopWalk) {
		return nil
	}
	return err
}

func walk(group *Node, depth int, fn WalkFunc) error {
	for _, child := range group.Children() {
		if err := fn(child, depth); err != nil {
			return err
		}
		if child.IsGroup() {
			if err := walk(child, depth+1, fn); err != nil {
				return err
			}
		}
	}
	return nil
}
