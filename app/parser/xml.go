package parser

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
)

// newXMLDecoder returns a lenient decoder. encoding/xml never fetches DTDs
// or expands external entities, so hostile documents cannot reach out.
func newXMLDecoder(r io.Reader) *xml.Decoder {
	d := xml.NewDecoder(r)
	d.Strict = false
	d.Entity = xml.HTMLEntity
	d.CharsetReader = charsetReader
	return d
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	if strings.EqualFold(label, "utf-8") {
		return input, nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", label, err)
	}
	return enc.NewDecoder().Reader(input), nil
}

// rootAndChild scans just far enough to report the root element name and
// whether the root has a direct child named child.
func rootAndChild(r io.Reader, child string) (xml.Name, bool, error) {
	d := newXMLDecoder(r)

	var root xml.Name
	depth := 0
	for {
		tok, err := d.Token()
		if err == io.EOF {
			if depth == 0 && root.Local == "" {
				return root, false, fmt.Errorf("no root element")
			}
			return root, false, nil
		}
		if err != nil {
			return root, false, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth == 1 {
				root = t.Name
			} else if depth == 2 && t.Name.Local == child {
				return root, true, nil
			}
		case xml.EndElement:
			depth--
			if depth == 0 {
				return root, false, nil
			}
		}
	}
}
