// Package temporal parses coverage time metadata (gml:timePosition and friends)
// from WCS DescribeCoverage and GetCapabilities responses.
package temporal

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

var ErrMalformedTemporalValue = errors.New("malformed temporal value")

// accepted layouts, tried in order; both are read as UTC whatever the text says
const (
	layoutSeconds = "2006-01-02T15:04:05Z"
	layoutMillis  = "2006-01-02T15:04:05.000Z"
)

// DefaultElements are the GML position elements Scan looks for when no names are given.
var DefaultElements = []string{"timePosition", "beginPosition", "endPosition"}

// Value is a parsed instant plus the role it played in the source document.
type Value struct {
	Type string
	Time time.Time
}

// Parse reads raw as a UTC timestamp. typ is stored verbatim.
func Parse(typ, raw string) (Value, error) {
	text := strings.TrimSpace(raw)
	// time.Parse accepts any fraction after the seconds field, so only the
	// millisecond layout may see a '.' to keep it at exactly three digits
	layout := layoutSeconds
	if strings.Contains(text, ".") {
		layout = layoutMillis
	}
	// the hour verb takes one digit too, so pin every field width
	if len(text) != len(layout) {
		return Value{}, fmt.Errorf("%w: %q", ErrMalformedTemporalValue, raw)
	}
	t, err := time.ParseInLocation(layout, text, time.UTC)
	if err != nil {
		return Value{}, fmt.Errorf("%w: %q", ErrMalformedTemporalValue, raw)
	}
	return Value{Type: typ, Time: t.UTC()}, nil
}

// FromElement reads the text content of start and parses it, taking the type
// from the element's local name. The decoder is left positioned after the end tag.
func FromElement(d *xml.Decoder, start xml.StartElement) (Value, error) {
	var text string
	if err := d.DecodeElement(&text, &start); err != nil {
		return Value{}, fmt.Errorf("decode <%s>: %w", start.Name.Local, err)
	}
	return Parse(start.Name.Local, text)
}

// Scan walks an XML document and parses every element whose local name is in
// names, in document order. The first malformed value aborts the scan.
func Scan(r io.Reader, names ...string) ([]Value, error) {
	if len(names) == 0 {
		names = DefaultElements
	}
	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		want[n] = struct{}{}
	}

	d := xml.NewDecoder(r)
	var out []Value
	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read xml: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if _, ok := want[se.Name.Local]; !ok {
			continue
		}
		v, err := FromElement(d, se)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
}
