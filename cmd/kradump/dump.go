package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/tsawler/kra/docinfo"
	"github.com/tsawler/kra/model"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	layerColor  = color.New(color.FgGreen)
	maskColor   = color.New(color.FgMagenta)
	dimColor    = color.New(color.FgHiBlack)
)

// dumpDocument prints the metadata and node tree of doc.
func dumpDocument(w io.Writer, doc *model.Document, info *docinfo.Info) error {
	meta := doc.Metadata()
	headerColor.Fprintf(w, "%s\n", displayName(meta.Name))
	fmt.Fprintf(w, "  canvas      %dx%d @ %gx%g dpi\n", meta.Width, meta.Height, meta.XRes, meta.YRes)
	fmt.Fprintf(w, "  colorspace  %s", meta.Format)
	if meta.Profile != "" {
		fmt.Fprintf(w, " (%s)", meta.Profile)
	}
	fmt.Fprintln(w)
	if meta.KritaVersion != "" {
		fmt.Fprintf(w, "  written by  Krita %s\n", meta.KritaVersion)
	}
	if info != nil && info.Author.FullName != "" {
		fmt.Fprintf(w, "  author      %s\n", info.Author.FullName)
	}
	if !meta.Created.IsZero() {
		fmt.Fprintf(w, "  created     %s\n", meta.Created.Format("2006-01-02 15:04"))
	}
	if active, ok := doc.ActiveLayer(); ok {
		fmt.Fprintf(w, "  active      %s\n", active.Name)
	}
	fmt.Fprintf(w, "  nodes       %d\n", doc.Len())

	return doc.Walk(func(n *model.Node, depth int) error {
		dumpNode(w, n, depth)
		return nil
	})
}

func dumpNode(w io.Writer, n *model.Node, depth int) {
	indent := strings.Repeat("  ", depth+1)
	c := layerColor
	if n.Kind.IsMask() {
		c = maskColor
		indent += "~ "
	}

	fmt.Fprint(w, indent)
	c.Fprintf(w, "%-16s", n.Kind)
	fmt.Fprintf(w, " %s", displayName(n.Name))

	var notes []string
	if !n.Visible {
		notes = append(notes, "hidden")
	}
	if n.Locked {
		notes = append(notes, "locked")
	}
	if n.Opacity != 255 {
		notes = append(notes, fmt.Sprintf("opacity %d%%", int(n.Opacity)*100/255))
	}
	if n.CompositeOp != "" && n.CompositeOp != model.CompositeOpNormal {
		notes = append(notes, string(n.CompositeOp))
	}
	if cs := n.ColorSpace(); cs != "" {
		notes = append(notes, cs)
	}
	notes = append(notes, detail(n)...)
	notes = append(notes, fmt.Sprintf("%v", n.Bounds))
	dimColor.Fprintf(w, "  %s\n", strings.Join(notes, ", "))
}

// detail returns the kind-specific notes of n.
func detail(n *model.Node) []string {
	switch p := n.Props.(type) {
	case *model.FilterLayer:
		return []string{"filter " + p.FilterName}
	case *model.FilterMask:
		return []string{"filter " + p.FilterName}
	case *model.FillLayer:
		return []string{"generator " + p.GeneratorName}
	case *model.FileLayer:
		return []string{"source " + p.Source}
	case *model.CloneLayer:
		return []string{"clone of " + p.SourceID.String()}
	}
	return nil
}

func displayName(name string) string {
	if name == "" {
		return "(unnamed)"
	}
	return name
}
