// Package docinfo reads and writes the document information member of a
// painting document: title, author and timestamps.
package docinfo

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
)

const (
	xmlns   = "http://www.calligra.org/DTD/document-info"
	doctype = `<!DOCTYPE document-info PUBLIC '-//KDE//DTD document-info 1.1//EN' 'http://www.calligra.org/DTD/document-info-1.1.dtd'>`
)

// Info is the content of the document information member.
type Info struct {
	XMLName xml.Name `xml:"document-info"`
	About   About    `xml:"about"`
	Author  Author   `xml:"author"`
}

// About describes the document itself. Dates are kept as written; use
// Created and Modified for parsed values.
type About struct {
	Title          string `xml:"title"`
	Description    string `xml:"description"`
	Subject        string `xml:"subject"`
	Abstract       string `xml:"abstract"`
	Keyword        string `xml:"keyword"`
	InitialCreator string `xml:"initial-creator"`
	EditingCycles  string `xml:"editing-cycles"`
	EditingTime    string `xml:"editing-time"`
	Date           string `xml:"date"` // Last modified
	CreationDate   string `xml:"creation-date"`
	Language       string `xml:"language"`
	License        string `xml:"license"`
}

// Author describes who made the document.
type Author struct {
	FullName         string `xml:"full-name"`
	CreatorFirstName string `xml:"creator-first-name"`
	CreatorLastName  string `xml:"creator-last-name"`
	Initial          string `xml:"initial"`
	AuthorTitle      string `xml:"author-title"`
	Position         string `xml:"position"`
	Company          string `xml:"company"`
}

// dateLayouts are tried in order when parsing dates.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDate parses a document date. Dates without a zone are UTC. An empty
// string is the zero time.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// Created returns the parsed creation date.
func (i *Info) Created() (time.Time, error) {
	return ParseDate(i.About.CreationDate)
}

// Modified returns the parsed modification date.
func (i *Info) Modified() (time.Time, error) {
	return ParseDate(i.About.Date)
}

// Parse decodes document information from r.
func Parse(r io.Reader) (*Info, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel
	var info Info
	if err := dec.Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to parse document info: %w", err)
	}
	return &info, nil
}

// ParseBytes decodes document information from data.
func ParseBytes(data []byte) (*Info, error) {
	return Parse(bytes.NewReader(data))
}

// FormatDate writes a date the way documents store it.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02T15:04:05")
}

// Write encodes info to w with the XML declaration and doctype.
func Write(w io.Writer, info *Info) error {
	out := *info
	out.XMLName = xml.Name{Local: "document-info"}

	if _, err := io.WriteString(w, xml.Header+doctype+"\n"); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", " ")
	start := xml.StartElement{
		Name: xml.Name{Local: "document-info"},
		Attr: []xml.Attr{{Name: xml.Name{Local: "xmlns"}, Value: xmlns}},
	}
	if err := enc.EncodeElement(out, start); err != nil {
		return fmt.Errorf("failed to write document info: %w", err)
	}
	return enc.Flush()
}
