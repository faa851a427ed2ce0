package reply

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// Product is one card of a product carousel.
type Product struct {
	Title         string `json:"title"`
	URL           string `json:"url,omitempty"`
	ImageURL      string `json:"image_url,omitempty"`
	CurrentPrice  Price  `json:"currentPrice,omitempty"`
	Price         Price  `json:"price,omitempty"`
	OriginalPrice Price  `json:"originalPrice,omitempty"`
	Currency      string `json:"currency,omitempty"`
}

// UnmarshalJSON accepts the field names older workflow versions used
// (name, picture, product_image_url, ...). Marshal always emits the
// canonical names above.
func (p *Product) UnmarshalJSON(b []byte) error {
	type plain Product
	var aux struct {
		plain
		Name            any `json:"name"`
		Image           any `json:"image"`
		ImageURLCamel   any `json:"imageUrl"`
		Picture         any `json:"picture"`
		ProductImageURL any `json:"product_image_url"`
		Link            any `json:"link"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}

	*p = Product(aux.plain)
	if p.Title == "" {
		p.Title = stringValue(aux.Name)
	}
	if p.ImageURL == "" {
		p.ImageURL = firstString(aux.ImageURLCamel, aux.Image, aux.Picture, aux.ProductImageURL)
	}
	if p.URL == "" {
		p.URL = stringValue(aux.Link)
	}
	return nil
}

// Current is the price shown as the selling price: currentPrice, else price.
func (p Product) Current() Price {
	if !p.CurrentPrice.IsZero() {
		return p.CurrentPrice
	}
	return p.Price
}

// Discounted reports whether an original price is present and numerically
// greater than the current price.
func (p Product) Discounted() bool {
	if p.OriginalPrice.IsZero() {
		return false
	}
	orig, ok := p.OriginalPrice.Float()
	if !ok {
		return false
	}
	cur, ok := p.Current().Float()
	if !ok {
		return false
	}
	return orig > cur
}

// Price keeps the JSON text of a price (quoted string or bare number) exactly
// as received, so persisted state re-encodes byte for byte.
type Price json.RawMessage

// NewPrice returns a string-typed price, e.g. NewPrice("10.00").
func NewPrice(s string) Price {
	b, _ := json.Marshal(s)
	return Price(b)
}

func (p Price) IsZero() bool { return len(p) == 0 }

func (p Price) MarshalJSON() ([]byte, error) {
	if len(p) == 0 {
		return []byte("null"), nil
	}
	return p, nil
}

// UnmarshalJSON keeps strings and numbers; anything else counts as absent.
func (p *Price) UnmarshalJSON(b []byte) error {
	t := strings.TrimSpace(string(b))
	if t == "" || t == "null" || t == "true" || t == "false" || t[0] == '{' || t[0] == '[' {
		*p = nil
		return nil
	}
	*p = append((*p)[:0], t...)
	return nil
}

// Text is the price as displayed, without JSON quoting.
func (p Price) Text() string {
	if len(p) == 0 {
		return ""
	}
	if p[0] == '"' {
		var s string
		if err := json.Unmarshal(p, &s); err == nil {
			return s
		}
	}
	return string(p)
}

// Float parses the leading number of the price text the way a browser's
// parseFloat does: "15.00", "15.00 EUR" and "15" all yield 15.
func (p Price) Float() (float64, bool) {
	return parseLeadingFloat(p.Text())
}

var leadingFloat = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

func parseLeadingFloat(s string) (float64, bool) {
	m := leadingFloat.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func stringValue(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		return ""
	}
}

func firstString(vs ...any) string {
	for _, v := range vs {
		if s := stringValue(v); s != "" {
			return s
		}
	}
	return ""
}
