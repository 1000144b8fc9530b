package parser

import (
	"cmp"
	"context"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"github.com/lysyi3m/syndication/app/feed"
)

const (
	formatRDF = "rdf"
	rss1NS    = "http://purl.org/rss/1.0/"
)

// Element names are bound by namespace URI, so any prefix (or the default
// namespace) works.
type rdfDocument struct {
	XMLName xml.Name    `xml:"http://www.w3.org/1999/02/22-rdf-syntax-ns# RDF"`
	Channel *rdfChannel `xml:"http://purl.org/rss/1.0/ channel"`
	Image   *rdfImage   `xml:"http://purl.org/rss/1.0/ image"`
	Items   []rdfItem   `xml:"http://purl.org/rss/1.0/ item"`
}

type rdfChannel struct {
	About       string `xml:"http://www.w3.org/1999/02/22-rdf-syntax-ns# about,attr"`
	Title       string `xml:"http://purl.org/rss/1.0/ title"`
	Link        string `xml:"http://purl.org/rss/1.0/ link"`
	Description string `xml:"http://purl.org/rss/1.0/ description"`
	Language    string `xml:"http://purl.org/dc/elements/1.1/ language"`
	Rights      string `xml:"http://purl.org/dc/elements/1.1/ rights"`
	Date        string `xml:"http://purl.org/dc/elements/1.1/ date"`
	Image       *struct {
		Resource string `xml:"http://www.w3.org/1999/02/22-rdf-syntax-ns# resource,attr"`
	} `xml:"http://purl.org/rss/1.0/ image"`
}

type rdfImage struct {
	URL string `xml:"http://purl.org/rss/1.0/ url"`
}

type rdfItem struct {
	About       string   `xml:"http://www.w3.org/1999/02/22-rdf-syntax-ns# about,attr"`
	Title       string   `xml:"http://purl.org/rss/1.0/ title"`
	Link        string   `xml:"http://purl.org/rss/1.0/ link"`
	Description string   `xml:"http://purl.org/rss/1.0/ description"`
	Creator     string   `xml:"http://purl.org/dc/elements/1.1/ creator"`
	Date        string   `xml:"http://purl.org/dc/elements/1.1/ date"`
	Subjects    []string `xml:"http://purl.org/dc/elements/1.1/ subject"`
	Encoded     string   `xml:"http://purl.org/rss/1.0/modules/content/ encoded"`
}

// RDF reads RSS 1.0 documents. Items are siblings of the channel under
// the rdf:RDF root.
type RDF struct{}

func NewRDF() *RDF {
	return &RDF{}
}

func (p *RDF) CanParse(contentType, snippet string) bool {
	return strings.Contains(snippet, "rdf:RDF") && strings.Contains(snippet, rss1NS)
}

func (p *RDF) Parse(ctx context.Context, r io.Reader) (*feed.Feed, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var doc rdfDocument
	if err := newXMLDecoder(r).Decode(&doc); err != nil {
		return nil, malformed(formatRDF, err)
	}
	if doc.Channel == nil {
		return nil, malformed(formatRDF, errors.New("missing channel element"))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ch := doc.Channel
	result := &feed.Feed{
		Type:        feed.TypeRSS,
		ID:          ch.About,
		Title:       strings.TrimSpace(ch.Title),
		Description: strings.TrimSpace(ch.Description),
		Link:        strings.TrimSpace(ch.Link),
		Language:    strings.TrimSpace(ch.Language),
		Copyright:   strings.TrimSpace(ch.Rights),
		LastUpdated: parseDate(ch.Date),
		Items:       make([]feed.Item, 0, len(doc.Items)),
	}
	if doc.Image != nil {
		result.ImageURL = strings.TrimSpace(doc.Image.URL)
	}
	if result.ImageURL == "" && ch.Image != nil {
		result.ImageURL = ch.Image.Resource
	}

	for _, item := range doc.Items {
		description := strings.TrimSpace(item.Description)
		normalized := feed.Item{
			ID:          item.About,
			Title:       strings.TrimSpace(item.Title),
			Link:        strings.TrimSpace(item.Link),
			Description: description,
			Content:     cmp.Or(strings.TrimSpace(item.Encoded), description),
			Author:      strings.TrimSpace(item.Creator),
			Published:   parseDate(item.Date),
		}
		for _, subject := range item.Subjects {
			if s := strings.TrimSpace(subject); s != "" {
				normalized.Categories = append(normalized.Categories, s)
			}
		}
		result.Items = append(result.Items, normalized)
	}

	return result, nil
}
