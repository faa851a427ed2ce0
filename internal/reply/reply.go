package reply

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// TypeProductList marks a segment that carries a product carousel.
const TypeProductList = "product_list"

// Segment is one renderable unit of an assistant reply.
type Segment struct {
	Content  string    `json:"content,omitempty"`
	Type     string    `json:"type,omitempty"`
	Products []Product `json:"products,omitempty"`
}

// HasCarousel reports whether the segment renders a carousel.
func (s Segment) HasCarousel() bool {
	return s.Type == TypeProductList && len(s.Products) > 0
}

func (s Segment) Renderable() bool {
	return s.Content != "" || s.HasCarousel()
}

// Kind tags what a Reply renders as.
type Kind int

const (
	PlainText Kind = iota
	ProductList
	Mixed
)

func (k Kind) String() string {
	switch k {
	case ProductList:
		return "product_list"
	case Mixed:
		return "mixed"
	default:
		return "plain_text"
	}
}

// Reply is the normalized form of a chat message body.
type Reply struct {
	Segments []Segment
}

// Plain builds a single-segment text reply.
func Plain(text string) Reply {
	return Reply{Segments: []Segment{{Content: text}}}
}

func (r Reply) Kind() Kind {
	var text, products bool
	for _, s := range r.Segments {
		if s.Content != "" {
			text = true
		}
		if s.HasCarousel() {
			products = true
		}
	}
	switch {
	case text && products:
		return Mixed
	case products:
		return ProductList
	default:
		return PlainText
	}
}

func (r Reply) Renderable() bool {
	for _, s := range r.Segments {
		if s.Renderable() {
			return true
		}
	}
	return false
}

// Text joins the text of every segment.
func (r Reply) Text() string {
	parts := make([]string, 0, len(r.Segments))
	for _, s := range r.Segments {
		if s.Content != "" {
			parts = append(parts, s.Content)
		}
	}
	return strings.Join(parts, "\n")
}

// Products lists the products of every carousel segment, in order.
func (r Reply) Products() []Product {
	var out []Product
	for _, s := range r.Segments {
		if s.HasCarousel() {
			out = append(out, s.Products...)
		}
	}
	return out
}

func (r Reply) isPlain() bool {
	if len(r.Segments) == 0 {
		return true
	}
	if len(r.Segments) > 1 {
		return false
	}
	s := r.Segments[0]
	return s.Type == "" && len(s.Products) == 0
}

// MarshalJSON writes a plain reply as a bare string and anything richer as
// a segment array.
func (r Reply) MarshalJSON() ([]byte, error) {
	if r.isPlain() {
		return json.Marshal(r.Text())
	}
	return json.Marshal(r.Segments)
}

// UnmarshalJSON reads the persisted forms written by MarshalJSON. Stored
// text is taken literally; the legacy sentinel is only honoured on replies
// coming from the network.
func (r *Reply) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return errors.New("reply: empty json")
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*r = Plain(s)
	case '[':
		var segs []Segment
		if err := json.Unmarshal(b, &segs); err != nil {
			return err
		}
		*r = Reply{Segments: segs}
	case '{':
		var seg Segment
		if err := json.Unmarshal(b, &seg); err != nil {
			return err
		}
		*r = Reply{Segments: []Segment{seg}}
	case 'n':
		*r = Reply{}
	default:
		return errors.Errorf("reply: unsupported json %.20q", b)
	}
	return nil
}
