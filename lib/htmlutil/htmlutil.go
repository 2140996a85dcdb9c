package htmlutil

import (
	"bytes"
	"context"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/net/html"
)

var tracer = otel.Tracer("carcheck.lib.htmlutil")

// Parse parses raw markup into a document.
func Parse(ctx context.Context, markup []byte) (*goquery.Document, error) {
	_, span := tracer.Start(ctx, "Parse")
	defer span.End()

	span.SetAttributes(attribute.Int("markup.size", len(markup)))
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse html")
		return nil, err
	}
	return doc, nil
}

func byClass(doc *goquery.Document, tag, class string) *goquery.Selection {
	return doc.Find(tag).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.HasClass(class)
	})
}

// FindAllByClass returns every `tag` element carrying `class`, in document order.
func FindAllByClass(doc *goquery.Document, tag, class string) []*html.Node {
	return byClass(doc, tag, class).Nodes
}

// FindFirstByClass returns the first `tag` element carrying `class` or nil.
func FindFirstByClass(doc *goquery.Document, tag, class string) *html.Node {
	nodes := byClass(doc, tag, class).First().Nodes
	if len(nodes) == 0 {
		return nil
	}
	return nodes[0]
}

// Attribute returns the value of the attribute `name`, ok is false when it is absent.
func Attribute(node *html.Node, name string) (string, bool) {
	if node == nil {
		return "", false
	}
	for _, a := range node.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var innerWhitespace = regexp.MustCompile(`\s\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) || unicode.IsSpace(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// CleanText strips non-printable runes, trims and collapses runs of whitespace.
func CleanText(s string) string {
	s = removeNonPrintable(s)
	s = strings.TrimSpace(s)
	return innerWhitespace.ReplaceAllString(s, " ")
}

// TextContent is the cleaned text of the node and all of its descendants.
func TextContent(node *html.Node) string {
	return CleanText(GetText(node))
}
