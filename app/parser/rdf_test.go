package parser

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lysyi3m/syndication/app/feed"
)

const rdfFixture = `<?xml version="1.0"?>
<rdf:RDF
  xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#"
  xmlns="http://purl.org/rss/1.0/"
  xmlns:dc="http://purl.org/dc/elements/1.1/">
  <channel rdf:about="http://www.xml.com/xml/news.rss">
    <title>XML.com</title>
    <link>http://xml.com/pub</link>
    <description>XML.com features a rich mix of information and services for the XML community.</description>
    <dc:language>en-us</dc:language>
    <image rdf:resource="http://xml.com/universal/images/xml_tiny.gif" />
    <items>
      <rdf:Seq>
        <rdf:li resource="http://xml.com/pub/2000/08/09/xslt/xslt.html" />
      </rdf:Seq>
    </items>
  </channel>
  <image rdf:about="http://xml.com/universal/images/xml_tiny.gif">
    <title>XML.com</title>
    <link>http://www.xml.com</link>
    <url>http://xml.com/universal/images/xml_tiny.gif</url>
  </image>
  <item rdf:about="http://xml.com/pub/2000/08/09/xslt/xslt.html">
    <title>Processing Inclusions with XSLT</title>
    <link>http://xml.com/pub/2000/08/09/xslt/xslt.html</link>
    <description>Processing document inclusions with general XML tools can be problematic.</description>
    <dc:date>2000-08-09T07:00:00Z</dc:date>
    <dc:creator>Bob DuCharme</dc:creator>
    <dc:subject>xslt</dc:subject>
    <dc:subject> xinclude </dc:subject>
  </item>
</rdf:RDF>`

func TestRDFParse(t *testing.T) {
	f := mustParse(t, NewRDF(), rdfFixture)

	if f.Type != feed.TypeRSS {
		t.Errorf("RSS 1.0 should normalize to rss type, got %s", f.Type)
	}
	if f.Title != "XML.com" || f.Link != "http://xml.com/pub" {
		t.Errorf("Unexpected channel %q %q", f.Title, f.Link)
	}
	if f.ID != "http://www.xml.com/xml/news.rss" {
		t.Errorf("Unexpected id '%s'", f.ID)
	}
	if f.Language != "en-us" {
		t.Errorf("Unexpected language '%s'", f.Language)
	}
	if f.ImageURL != "http://xml.com/universal/images/xml_tiny.gif" {
		t.Errorf("Unexpected image '%s'", f.ImageURL)
	}

	if len(f.Items) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(f.Items))
	}
	item := f.Items[0]
	if item.Title != "Processing Inclusions with XSLT" {
		t.Errorf("Unexpected item title '%s'", item.Title)
	}
	if item.Content != item.Description {
		t.Errorf("Content should fall back to description, got %q", item.Content)
	}
	if item.Author != "Bob DuCharme" {
		t.Errorf("Unexpected author '%s'", item.Author)
	}
	if len(item.Categories) != 2 || item.Categories[1] != "xinclude" {
		t.Errorf("Unexpected categories %v", item.Categories)
	}
	assertTime(t, "published", item.Published, time.Date(2000, 8, 9, 7, 0, 0, 0, time.UTC))
}

func TestRDFParseMalformed(t *testing.T) {
	tests := map[string]string{
		"missing channel": `<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#" xmlns="http://purl.org/rss/1.0/"></rdf:RDF>`,
		"wrong root":      `<rss version="2.0"><channel><title>x</title></channel></rss>`,
		"truncated":       `<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#"><channel>`,
	}

	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := NewRDF().Parse(context.Background(), strings.NewReader(doc))
			if !errors.Is(err, ErrMalformedInput) {
				t.Errorf("Expected ErrMalformedInput, got %v", err)
			}
		})
	}
}

func TestRDFCanParse(t *testing.T) {
	p := NewRDF()
	if !p.CanParse("", rdfFixture[:300]) {
		t.Error("Should accept RSS 1.0 snippet")
	}
	if p.CanParse("application/rdf+xml", `<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">`) {
		t.Error("Plain RDF without the RSS 1.0 namespace is not a feed")
	}
}
