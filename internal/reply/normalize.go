package reply

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// Fallback texts shown when a response cannot be turned into content.
const (
	MsgNotUnderstood   = "Sorry, I couldn't understand the response."
	MsgUnhandledFormat = "Sorry, I received an unhandled response format."
)

// LegacySentinel prefixes a JSON product array inlined into plain text by
// older workflow versions.
const LegacySentinel = "PRODUCTS_JSON:"

// Decode parses a response body and normalizes it. Only malformed JSON is an
// error; every well-formed value yields a renderable Reply.
func Decode(body []byte) (Reply, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var data any
	if err := dec.Decode(&data); err != nil {
		return Reply{}, errors.Wrap(err, "decoding reply")
	}
	return Normalize(data), nil
}

// Normalize resolves a decoded JSON value into renderable segments. The
// payload shape has changed over the workflow's lifetime (plain string, then a
// single object, then an array of segments) and all of them are accepted:
//
//  1. a non-empty list whose first element has a "content" key is a segment list;
//  2. any other list yields content, message or text of its first element;
//  3. an object is a single segment, else its content, message or text;
//  4. a string is a single text segment;
//  5. anything else is an unhandled format.
func Normalize(data any) Reply {
	r := normalize(data)
	if !r.Renderable() {
		return Plain(MsgNotUnderstood)
	}
	return r
}

func normalize(data any) Reply {
	switch v := data.(type) {
	case []any:
		if len(v) > 0 {
			if first, ok := v[0].(map[string]any); ok {
				if _, has := first["content"]; has {
					return segmentList(v)
				}
				if s := firstText(first, "content", "message", "text"); s != "" {
					return textReply(s)
				}
			}
		}
		return Plain(MsgNotUnderstood)

	case map[string]any:
		if seg := segmentFrom(v); seg.Renderable() {
			return Reply{Segments: []Segment{seg}}
		}
		if s := firstText(v, "content", "message", "text"); s != "" {
			return textReply(s)
		}
		return Plain(MsgUnhandledFormat)

	case string:
		return textReply(v)

	default:
		return Plain(MsgUnhandledFormat)
	}
}

func segmentList(items []any) Reply {
	segs := make([]Segment, 0, len(items))
	for _, it := range items {
		switch v := it.(type) {
		case map[string]any:
			segs = append(segs, segmentFrom(v))
		case string:
			segs = append(segs, textReply(v).Segments...)
		}
	}
	return Reply{Segments: segs}
}

func segmentFrom(m map[string]any) Segment {
	seg := Segment{
		Content: stringValue(m["content"]),
		Type:    stringValue(m["type"]),
	}
	if list, ok := m["products"].([]any); ok {
		seg.Products = decodeProducts(list)
	}

	if text, products, ok := SplitLegacy(seg.Content); ok {
		seg.Content = text
		if len(products) > 0 {
			seg.Type = TypeProductList
			seg.Products = append(seg.Products, products...)
		}
	}
	return seg
}

func textReply(s string) Reply {
	text, products, ok := SplitLegacy(s)
	if !ok || len(products) == 0 {
		if ok {
			return Plain(text)
		}
		return Plain(s)
	}
	return Reply{Segments: []Segment{{
		Content:  text,
		Type:     TypeProductList,
		Products: products,
	}}}
}

// SplitLegacy detects the PRODUCTS_JSON sentinel, returning the message with
// the sentinel and array removed plus the decoded products. ok is false when
// there is no sentinel or the JSON does not parse; callers then keep s as is.
func SplitLegacy(s string) (text string, products []Product, ok bool) {
	i := strings.Index(s, LegacySentinel)
	if i < 0 {
		return s, nil, false
	}

	rest := s[i+len(LegacySentinel):]
	if !strings.HasPrefix(strings.TrimSpace(rest), "[") {
		return s, nil, false
	}
	dec := json.NewDecoder(strings.NewReader(rest))
	if err := dec.Decode(&products); err != nil {
		return s, nil, false
	}

	text = strings.TrimSpace(s[:i])
	if tail := strings.TrimSpace(rest[dec.InputOffset():]); tail != "" {
		if text != "" {
			text += " "
		}
		text += tail
	}
	return text, products, true
}

func decodeProducts(list []any) []Product {
	out := make([]Product, 0, len(list))
	for _, it := range list {
		if _, ok := it.(map[string]any); !ok {
			continue
		}
		b, err := json.Marshal(it)
		if err != nil {
			continue
		}
		var p Product
		if err := json.Unmarshal(b, &p); err != nil {
			continue
		}
		out = append(out, p)
	}
	return out
}

func firstText(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := stringValue(m[k]); s != "" {
			return s
		}
	}
	return ""
}
