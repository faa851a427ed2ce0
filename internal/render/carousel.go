package render

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/lojasmm/chatwidget/internal/carousel"
	"github.com/lojasmm/chatwidget/internal/reply"
)

// PlaceholderImage replaces product thumbnails that are missing or fail to load.
const PlaceholderImage = "data:image/svg+xml;base64,PHN2ZyB3aWR0aD0iMTAwIiBoZWlnaHQ9IjEwMCIgeG1sbnM9Imh0dHA6Ly93d3cudzMub3JnLzIwMDAvc3ZnIj48cmVjdCB3aWR0aD0iMTAwIiBoZWlnaHQ9IjEwMCIgZmlsbD0iI2Y1ZjVmNSIvPjx0ZXh0IHg9IjUwIiB5PSI1MCIgdGV4dC1hbmNob3I9Im1pZGRsZSIgZmlsbD0iIzk5OTk5OSIgZm9udC1mYW1pbHk9IkFyaWFsIiBmb250LXNpemU9IjEyIj5JbWFnZTwvdGV4dD48L3N2Zz4="

const (
	carouselIDAttr   = "data-carousel-id"
	stripTransition  = "transform 0.4s ease"
	containerClass   = "product-carousel-container"
	stripClass       = "product-carousel"
	productCardClass = "product-card"
)

// Carousel builds the coverflow markup for products. An empty list yields an
// empty container and no engine.
func (r *Renderer) Carousel(products []reply.Product) *html.Node {
	container := Element("div", "class", containerClass)
	if len(products) == 0 || r.Carousels == nil {
		return container
	}

	id, c := r.Carousels.NewCarousel(products)
	SetAttr(container, carouselIDAttr, id)

	strip := Element("div", "class", stripClass, carouselIDAttr, id)
	for _, p := range c.Items() {
		strip.AppendChild(ProductCard(p))
	}
	container.AppendChild(strip)

	if c.Navigable() {
		container.AppendChild(r.arrow(id, -1))
		container.AppendChild(r.arrow(id, 1))
	}

	ApplyFrame(container, c.Frame())
	return container
}

func (r *Renderer) arrow(id string, dir int) *html.Node {
	class, label, glyph := "carousel-arrow next", "Next product", "❯"
	if dir < 0 {
		class, label, glyph = "carousel-arrow prev", "Previous product", "❮"
	}

	btn := Element("button",
		"class", class,
		"aria-label", label,
		carouselIDAttr, id,
		"data-direction", strconv.Itoa(dir),
	)
	if r.Actions.enabled() && r.Actions.Navigate != nil {
		SetAttr(btn, "type", "submit")
		SetAttr(btn, "form", r.Actions.Form)
		SetAttr(btn, "formaction", r.Actions.Navigate(id, dir))
	} else {
		SetAttr(btn, "type", "button")
	}
	return Append(btn, TextNode(glyph))
}

// ProductCard renders one product as an outbound link. URLs other than
// http(s) are left off, so the card is still drawn but links nowhere.
func ProductCard(p reply.Product) *html.Node {
	card := Element("a",
		"class", productCardClass,
		"target", "_blank",
		"rel", "noopener noreferrer",
	)
	if href, ok := linkURL(p.URL); ok {
		SetAttr(card, "href", href)
	}

	src := p.ImageURL
	if src == "" {
		src = PlaceholderImage
	}
	img := Element("img",
		"src", src,
		"alt", p.Title,
		"loading", "lazy",
		"onerror", "this.onerror=null;this.src='"+PlaceholderImage+"'",
	)
	title := Append(Element("h4", "class", "product-title"), TextNode(p.Title))

	prices := Element("div", "class", "product-price-container")
	if cur := p.Current(); !cur.IsZero() {
		prices.AppendChild(priceLine("product-price", cur, p.Currency))
	}
	if p.Discounted() {
		AddClass(card, "discounted")
		prices.AppendChild(priceLine("original-price", p.OriginalPrice, p.Currency))
	}

	return Append(card, img, title, prices)
}

func linkURL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", false
	}
	return raw, true
}

func priceLine(class string, price reply.Price, currency string) *html.Node {
	text := strings.TrimSpace(price.Text() + " " + currency)
	return Append(Element("p", "class", class), TextNode(text))
}

// ApplyFrame writes the engine's current frame onto the carousel markup.
func ApplyFrame(container *html.Node, f carousel.Frame) {
	var strip *html.Node
	for _, c := range ElementChildren(container) {
		if HasClass(c, stripClass) {
			strip = c
			break
		}
	}
	if strip == nil {
		return
	}

	transition := "none"
	if f.Animated {
		transition = stripTransition
	}
	SetAttr(strip, "style", fmt.Sprintf("transform: translateX(%spx); transition: %s",
		strconv.FormatFloat(f.Offset, 'f', -1, 64), transition))

	cards := ElementChildren(strip)
	for i, card := range cards {
		if i >= len(f.Cards) {
			break
		}
		st := f.Cards[i]
		style := fmt.Sprintf("transform: %s; opacity: %s; z-index: %d",
			st.Transform, strconv.FormatFloat(st.Opacity, 'f', -1, 64), st.ZIndex)
		if !st.Interactive {
			style += "; pointer-events: none"
			SetAttr(card, "aria-hidden", "true")
			SetAttr(card, "tabindex", "-1")
		} else {
			RemoveAttr(card, "aria-hidden")
			RemoveAttr(card, "tabindex")
		}
		SetAttr(card, "style", style)
		if i == f.Index {
			AddClass(card, "active")
		} else {
			RemoveClass(card, "active")
		}
	}
}

// CarouselID returns the handle stored on a carousel container.
func CarouselID(container *html.Node) (string, bool) {
	return Attr(container, carouselIDAttr)
}
