// Package model provides the in-memory representation of a painting
// document: its metadata and its tree of layers and masks.
//
// All parsing operations ultimately produce these types, making them the
// primary API for consuming a document.
//
// # Document Structure
//
// A [Document] owns a [Metadata] value and a root [Node], which is always a
// group layer standing for the canvas:
//
//	doc.Walk(func(n *model.Node, depth int) error {
//		fmt.Println(strings.Repeat("  ", depth), n.Kind, n.Name)
//		return nil
//	})
//
// # Nodes
//
// A [Node] is a tagged sum. [Node.Kind] selects the variant and
// [Node.Props] holds the matching payload:
//
//   - [PaintLayer], [GroupLayer], [FileLayer], [FilterLayer], [FillLayer],
//     [CloneLayer], [VectorLayer] - layers
//   - [TransparencyMask], [FilterMask], [TransformMask], [SelectionMask],
//     [ColorizeMask] - masks
//
// Only a group layer owns other nodes. Clone sources, mask parents and the
// active layer are identifiers, resolved through [Document.Lookup].
//
// # Errors
//
// Failures are reported as [*Error] values wrapping one of the sentinel
// kinds such as [ErrStructural] or [ErrCodec]; use errors.Is to classify.
package model
