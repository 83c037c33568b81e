// Package extract discovers transaction-like elements in a mobile-money SMS
// XML export and flattens them into raw field bags. The source documents have
// no fixed schema, so extraction works over a generic node tree and tolerates
// fields appearing as attributes or child elements under varying names.
package extract

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Nkennyelvis/momo-sms-data-processor-codecrafters/internal/model"
)

// rawExcerptLimit caps the source fragment stored per element for audit.
const rawExcerptLimit = 500

// containerTags are the known transaction container tag names, tried in
// order. If none yields elements, the document root itself is treated as the
// sole transaction element.
var containerTags = []string{"transaction", "sms", "message", "record"}

// fieldMappings resolves each logical field from several possible source
// names. Within a field, earlier names win.
var fieldMappings = []struct {
	field string
	names []string
}{
	{"id", []string{"id", "transaction_id", "ref", "reference"}},
	{"date", []string{"date", "timestamp", "time", "datetime"}},
	{"phone", []string{"phone", "number", "mobile", "msisdn"}},
	{"amount", []string{"amount", "value", "sum", "total"}},
	{"description", []string{"description", "desc", "message", "text", "body"}},
	{"sender", []string{"sender", "from", "source"}},
	{"recipient", []string{"recipient", "to", "destination"}},
	{"status", []string{"status", "state", "result"}},
}

// anchorFields are the minimal identity anchors: an element resolving none of
// them is not a transaction and is discarded.
var anchorFields = []string{"phone", "sender", "recipient"}

// ParseError reports an unparsable source document. It is fatal to the
// extraction of that document but never to the process.
type ParseError struct {
	Format string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s document: %v", e.Format, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// DeadLetter captures raw content that could not be processed.
type DeadLetter interface {
	WriteRaw(prefix, content string) (string, error)
}

// Extractor turns one XML document into a sequence of RawElements.
type Extractor struct {
	sink   DeadLetter
	logger *zap.SugaredLogger
	now    func() time.Time
}

// New creates an Extractor routing unparsable documents to sink.
func New(sink DeadLetter, logger *zap.SugaredLogger) *Extractor {
	return &Extractor{sink: sink, logger: logger, now: time.Now}
}

// Format returns the source name.
func (x *Extractor) Format() string { return "xml" }

// node is a schema-less XML element.
type node struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Content  string     `xml:",chardata"`
	Children []node     `xml:",any"`
}

// Extract parses the document and returns one RawElement per qualifying
// transaction element, in document order. A syntactically malformed document
// is routed to the dead-letter sink and reported as a *ParseError alongside
// an empty result; the caller continues the batch.
func (x *Extractor) Extract(r io.Reader) ([]model.RawElement, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}

	var root node
	if err := xml.Unmarshal(data, &root); err != nil {
		if _, sinkErr := x.sink.WriteRaw("unparsed", string(data)); sinkErr != nil {
			x.logger.Errorw("failed to dead-letter unparsable document", "error", sinkErr)
		}
		return nil, &ParseError{Format: "xml", Err: err}
	}

	x.logger.Infow("parsing document", "root", root.XMLName.Local, "bytes", len(data))

	candidates := findContainers(&root)
	elements := make([]model.RawElement, 0, len(candidates))
	discarded := 0

	for _, el := range candidates {
		raw, ok := x.extractElement(el)
		if !ok {
			discarded++
			continue
		}
		elements = append(elements, raw)
	}

	x.logger.Infow("extraction complete", "extracted", len(elements), "discarded", discarded)
	return elements, nil
}

// findContainers returns the candidate transaction elements: all descendants
// matching the first container tag that yields any, else the root itself.
func findContainers(root *node) []*node {
	for _, tag := range containerTags {
		var found []*node
		collect(root, tag, &found)
		if len(found) > 0 {
			return found
		}
	}
	return []*node{root}
}

// collect appends descendants of n named tag, in document order.
func collect(n *node, tag string, out *[]*node) {
	for i := range n.Children {
		child := &n.Children[i]
		if child.XMLName.Local == tag {
			*out = append(*out, child)
		}
		collect(child, tag, out)
	}
}

// extractElement resolves every logical field for one element. It reports
// false when the element lacks all identity anchors.
func (x *Extractor) extractElement(el *node) (model.RawElement, bool) {
	fields := make(map[string]string)
	for _, m := range fieldMappings {
		if v, ok := resolveField(el, m.names); ok {
			fields[m.field] = v
		}
	}

	anchored := false
	for _, f := range anchorFields {
		if _, ok := fields[f]; ok {
			anchored = true
			break
		}
	}
	if !anchored {
		return model.RawElement{}, false
	}

	return model.RawElement{
		Fields:     fields,
		ParsedAt:   x.now(),
		RawExcerpt: truncate(render(el), rawExcerptLimit),
	}, true
}

// resolveField tries, in order: matching attribute, case-sensitive direct
// child, case-insensitive direct child. First non-empty value wins; values
// are never merged across sources.
func resolveField(el *node, names []string) (string, bool) {
	for _, name := range names {
		for _, attr := range el.Attrs {
			if attr.Name.Local == name {
				if v := strings.TrimSpace(attr.Value); v != "" {
					return v, true
				}
			}
		}
	}

	for _, name := range names {
		for i := range el.Children {
			if el.Children[i].XMLName.Local == name {
				if v := strings.TrimSpace(el.Children[i].Content); v != "" {
					return v, true
				}
			}
		}
	}

	for _, name := range names {
		for i := range el.Children {
			if strings.EqualFold(el.Children[i].XMLName.Local, name) {
				if v := strings.TrimSpace(el.Children[i].Content); v != "" {
					return v, true
				}
			}
		}
	}

	return "", false
}

// render reconstructs an approximate source fragment for audit storage.
func render(el *node) string {
	var b strings.Builder
	renderInto(&b, el)
	return b.String()
}

func renderInto(b *strings.Builder, el *node) {
	b.WriteByte('<')
	b.WriteString(el.XMLName.Local)
	for _, attr := range el.Attrs {
		fmt.Fprintf(b, " %s=%q", attr.Name.Local, attr.Value)
	}
	b.WriteByte('>')
	b.WriteString(strings.TrimSpace(el.Content))
	for i := range el.Children {
		renderInto(b, &el.Children[i])
	}
	b.WriteString("</" + el.XMLName.Local + ">")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
