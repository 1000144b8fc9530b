// Package opml reads and writes OPML subscription lists.
package opml

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"golang.org/x/text/encoding/htmlindex"
)

const dateFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

var ErrNotOPML = errors.New("not an OPML document")

type Document struct {
	Title       string
	DateCreated *time.Time
	Outlines    []Outline
}

// Outline is either a feed (XMLURL set) or a folder of Children.
type Outline struct {
	Text     string
	Type     string
	XMLURL   string
	HTMLURL  string
	Children []Outline
}

// Feeds flattens the outline tree, depth first, to the entries carrying
// an xmlUrl.
func (d *Document) Feeds() []Outline {
	var feeds []Outline
	var walk func([]Outline)
	walk = func(outlines []Outline) {
		for _, o := range outlines {
			if o.XMLURL != "" {
				feeds = append(feeds, o)
			}
			walk(o.Children)
		}
	}
	walk(d.Outlines)
	return feeds
}

type opmlXML struct {
	XMLName xml.Name
	Version string `xml:"version,attr,omitempty"`
	Head    struct {
		Title       string `xml:"title"`
		DateCreated string `xml:"dateCreated,omitempty"`
	} `xml:"head"`
	Body struct {
		Outlines []outlineXML `xml:"outline"`
	} `xml:"body"`
}

type outlineXML struct {
	Text     string       `xml:"text,attr"`
	Title    string       `xml:"title,attr,omitempty"`
	Type     string       `xml:"type,attr,omitempty"`
	XMLURL   string       `xml:"xmlUrl,attr,omitempty"`
	HTMLURL  string       `xml:"htmlUrl,attr,omitempty"`
	Outlines []outlineXML `xml:"outline"`
}

func Parse(r io.Reader) (*Document, error) {
	d := xml.NewDecoder(r)
	d.Strict = false
	d.Entity = xml.HTMLEntity
	d.CharsetReader = func(label string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(label)
		if err != nil {
			return nil, fmt.Errorf("unsupported charset %q: %w", label, err)
		}
		return enc.NewDecoder().Reader(input), nil
	}

	var raw opmlXML
	if err := d.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode OPML: %w", err)
	}
	if !strings.EqualFold(raw.XMLName.Local, "opml") {
		return nil, fmt.Errorf("%w: root element is <%s>", ErrNotOPML, raw.XMLName.Local)
	}

	doc := &Document{
		Title:    strings.TrimSpace(raw.Head.Title),
		Outlines: fromXML(raw.Body.Outlines),
	}
	if value := strings.TrimSpace(raw.Head.DateCreated); value != "" {
		if t, err := dateparse.ParseAny(value); err == nil {
			doc.DateCreated = &t
		}
	}
	return doc, nil
}

func fromXML(raw []outlineXML) []Outline {
	if len(raw) == 0 {
		return nil
	}
	outlines := make([]Outline, 0, len(raw))
	for _, o := range raw {
		text := o.Text
		if text == "" {
			text = o.Title
		}
		outlines = append(outlines, Outline{
			Text:     text,
			Type:     o.Type,
			XMLURL:   o.XMLURL,
			HTMLURL:  o.HTMLURL,
			Children: fromXML(o.Outlines),
		})
	}
	return outlines
}

// Write emits doc as indented OPML 2.0. dateCreated is the document's own
// date when set, otherwise the current time.
func Write(w io.Writer, doc *Document) error {
	if doc == nil {
		return errors.New("opml document is nil")
	}

	var raw opmlXML
	raw.XMLName = xml.Name{Local: "opml"}
	raw.Version = "2.0"
	raw.Head.Title = doc.Title
	created := time.Now()
	if doc.DateCreated != nil {
		created = *doc.DateCreated
	}
	raw.Head.DateCreated = created.UTC().Format(dateFormat)
	raw.Body.Outlines = toXML(doc.Outlines)

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("failed to write OPML header: %w", err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(raw); err != nil {
		return fmt.Errorf("failed to encode OPML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to encode OPML: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func toXML(outlines []Outline) []outlineXML {
	if len(outlines) == 0 {
		return nil
	}
	raw := make([]outlineXML, 0, len(outlines))
	for _, o := range outlines {
		raw = append(raw, outlineXML{
			Text:     o.Text,
			Type:     o.Type,
			XMLURL:   o.XMLURL,
			HTMLURL:  o.HTMLURL,
			Outlines: toXML(o.Children),
		})
	}
	return raw
}
