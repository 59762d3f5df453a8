package tree

import (
	"encoding/base64"
	"fmt"
	"image"
	"io"
	"strconv"

	"github.com/google/uuid"

	"github.com/tsawler/kra/attr"
	"github.com/tsawler/kra/markup"
	"github.com/tsawler/kra/model"
)

const (
	maindocDoctype = `DOC PUBLIC '-//KDE//DTD krita 2.0//EN' 'http://www.calligra.org/DTD/krita-2.0.dtd'`
	maindocXMLNS   = "http://www.calligra.org/DTD/krita"
	syntaxVersion  = "2.0"
)

// Serialize writes doc as main document markup.
//
// A mask that directly follows its parent layer in a group is written inside
// that layer's <masks>; any other mask is written in place with a parentuuid
// attribute. Both forms build back to the same tree.
func Serialize(w io.Writer, doc *model.Document) error {
	meta := doc.Metadata()
	enc := markup.NewEncoder(w)
	if err := enc.Header(maindocDoctype); err != nil {
		return err
	}

	version := meta.SyntaxVersion
	if version == "" {
		version = syntaxVersion
	}
	docAttrs := []markup.Attr{
		markup.A("xmlns", maindocXMLNS),
		markup.A("syntaxVersion", version),
		markup.A("editor", "Krita"),
	}
	docAttrs = optional(docAttrs, "kritaVersion", meta.KritaVersion)
	if err := enc.Start(elemDoc, docAttrs...); err != nil {
		return err
	}
	if err := enc.Start(elemImage, imageAttrs(meta)...); err != nil {
		return err
	}

	canvas := meta.Canvas()
	if err := enc.Start(elemLayers); err != nil {
		return err
	}
	if err := writeChildren(enc, doc.Root().Children(), canvas); err != nil {
		return err
	}
	if err := enc.End(); err != nil {
		return err
	}

	if meta.ProjectionBackground != nil {
		data := base64.StdEncoding.EncodeToString(meta.ProjectionBackground)
		if err := enc.Empty(elemProjectionBackground, markup.A("ColorData", data)); err != nil {
			return err
		}
	}
	if meta.HasAssistantsColor {
		c := attr.FormatColor(meta.AssistantsColor)
		if err := enc.Empty(elemAssistantsColor, markup.A("SimpleColorData", c)); err != nil {
			return err
		}
	}

	if err := enc.End(); err != nil { // IMAGE
		return err
	}
	if err := enc.End(); err != nil { // DOC
		return err
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to write main document: %w", err)
	}
	return nil
}

func imageAttrs(m model.Metadata) []markup.Attr {
	a := []markup.Attr{
		markup.A("name", m.Name),
		markup.A("mime", m.Mime),
		markup.A("colorspacename", m.ColorSpace),
		markup.A("width", strconv.Itoa(m.Width)),
		markup.A("height", strconv.Itoa(m.Height)),
		markup.A("x-res", strconv.FormatFloat(m.XRes, 'g', -1, 64)),
		markup.A("y-res", strconv.FormatFloat(m.YRes, 'g', -1, 64)),
	}
	a = optional(a, "profile", m.Profile)
	a = optional(a, "description", m.Description)
	return optional(a, "activelayer", m.ActiveLayer)
}

func writeChildren(enc *markup.Encoder, children []*model.Node, canvas image.Rectangle) error {
	for i := 0; i < len(children); i++ {
		n := children[i]
		if n.Kind.IsMask() {
			a := nodeAttrs(n, canvas)
			if n.ParentID != uuid.Nil {
				a = append(a, markup.A("parentuuid", attr.FormatUUID(n.ParentID)))
			}
			if err := enc.Empty(elemMask, a...); err != nil {
				return err
			}
			continue
		}

		var masks []*model.Node
		for i+1 < len(children) && children[i+1].Kind.IsMask() && children[i+1].ParentID == n.ID {
			i++
			masks = append(masks, children[i])
		}
		if err := writeLayer(enc, n, masks, canvas); err != nil {
			return err
		}
	}
	return nil
}

func writeLayer(enc *markup.Encoder, n *model.Node, masks []*model.Node, canvas image.Rectangle) error {
	if err := enc.Start(elemLayer, nodeAttrs(n, canvas)...); err != nil {
		return err
	}
	if n.IsGroup() {
		if err := enc.Start(elemLayers); err != nil {
			return err
		}
		if err := writeChildren(enc, n.Children(), canvas); err != nil {
			return err
		}
		if err := enc.End(); err != nil {
			return err
		}
	}
	if len(masks) > 0 {
		if err := enc.Start(elemMasks); err != nil {
			return err
		}
		for _, m := range masks {
			if err := enc.Empty(elemMask, nodeAttrs(m, canvas)...); err != nil {
				return err
			}
		}
		if err := enc.End(); err != nil {
			return err
		}
	}
	return enc.End()
}
