package vehicle

import (
	"bytes"
	"context"
	"encoding/json"

	"carcheck/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const (
	RowTag   = "div"
	RowClass = "vehicle__info--row"
)

type Attribute struct {
	Label string
	Value string
}

// Record holds attributes in document order.
type Record []Attribute

// Get returns the value of the first attribute with exactly this label.
func (r Record) Get(label string) (string, bool) {
	for _, a := range r {
		if a.Label == label {
			return a.Value, true
		}
	}
	return "", false
}

func (r Record) Labels() []string {
	labels := make([]string, len(r))
	for i, a := range r {
		labels[i] = a.Label
	}
	return labels
}

// MarshalJSON writes a flat label -> value object in document order. A repeated
// label keeps the position of its first occurrence and the value of its last.
func (r Record) MarshalJSON() ([]byte, error) {
	order := []string{}
	values := map[string]string{}
	for _, a := range r {
		if _, seen := values[a.Label]; !seen {
			order = append(order, a.Label)
		}
		values[a.Label] = a.Value
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, label := range order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := marshalString(label)
		if err != nil {
			return nil, err
		}
		value, err := marshalString(values[label])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshalString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// PairingResult is the outcome of pairing the text of every info row. When the
// rows yield an odd number of texts the last one cannot be paired, it is left
// out of Pairs and kept in DroppedText.
type PairingResult struct {
	Pairs               Record
	DroppedTrailingNode bool
	DroppedText         string
}

// rowTexts collects the text of each direct child of a row. Element children
// always count, even when empty, so a blank value still lines up with its
// label. Text nodes only count when they carry something besides whitespace.
func rowTexts(row *html.Node, out *[]string) {
	for child := row.FirstChild; child != nil; child = child.NextSibling {
		switch child.Type {
		case html.ElementNode:
			*out = append(*out, htmlutil.TextContent(child))
		case html.TextNode:
			text := htmlutil.CleanText(child.Data)
			if text != "" {
				*out = append(*out, text)
			}
		}
	}
}

// PairTexts groups a flat list into (label, value) pairs with a stride of 2.
func PairTexts(texts []string) PairingResult {
	result := PairingResult{Pairs: Record{}}
	for i := 0; i+1 < len(texts); i += 2 {
		result.Pairs = append(result.Pairs, Attribute{
			Label: texts[i],
			Value: texts[i+1],
		})
	}
	if len(texts)%2 == 1 {
		result.DroppedTrailingNode = true
		result.DroppedText = texts[len(texts)-1]
	}
	return result
}

// ExtractAttributes reads every info row of a lookup page. A page without rows
// yields an empty result, not an error.
func ExtractAttributes(ctx context.Context, doc *goquery.Document) PairingResult {
	_, span := tracer.Start(ctx, "ExtractAttributes")
	defer span.End()

	var texts []string
	for _, row := range htmlutil.FindAllByClass(doc, RowTag, RowClass) {
		rowTexts(row, &texts)
	}
	return PairTexts(texts)
}

// ParseAttributes is ExtractAttributes over raw markup.
func ParseAttributes(ctx context.Context, markup []byte) (PairingResult, error) {
	doc, err := htmlutil.Parse(ctx, markup)
	if err != nil {
		return PairingResult{}, err
	}
	return ExtractAttributes(ctx, doc), nil
}
