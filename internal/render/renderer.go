package render

import (
	"golang.org/x/net/html"

	"github.com/lojasmm/chatwidget/internal/carousel"
	"github.com/lojasmm/chatwidget/internal/reply"
	"github.com/lojasmm/chatwidget/internal/session"
)

// CarouselFactory creates carousel engines and hands back the opaque handle
// that the markup refers to.
type CarouselFactory interface {
	NewCarousel(products []reply.Product) (id string, c *carousel.Carousel)
}

// Actions wires buttons to URLs when the widget is served as plain HTML.
// With the zero value every button is inert (type=button).
type Actions struct {
	// Form is the id of an empty POST form that action buttons submit.
	Form     string
	Toggle   string
	Close    string
	Send     string
	Navigate func(carouselID string, dir int) string
}

func (a Actions) enabled() bool { return a.Form != "" }

// Renderer turns messages into nodes.
type Renderer struct {
	Carousels CarouselFactory
	Actions   Actions
}

// Message appends the nodes for one message to container and scrolls the log
// to the end.
func (r *Renderer) Message(sender session.Sender, msg reply.Reply, container *html.Node) {
	switch sender {
	case session.Assistant:
		for _, seg := range msg.Segments {
			if seg.Content != "" {
				container.AppendChild(Bubble(sender, seg.Content))
			}
			if seg.HasCarousel() {
				container.AppendChild(r.Carousel(seg.Products))
			}
		}
	default:
		container.AppendChild(Bubble(sender, msg.Text()))
	}
	ScrollToEnd(container)
}

// Bubble is a single chat bubble.
func Bubble(sender session.Sender, text string) *html.Node {
	return Append(
		Element("div", "class", "chat-widget-message "+string(sender)),
		Append(Element("p"), TextNode(text)),
	)
}

func TypingIndicator() *html.Node {
	return Append(
		Element("div", "class", "chat-widget-message assistant typing-indicator"),
		Element("span"), Element("span"), Element("span"),
	)
}

// ScrollToEnd marks the log so the page keeps it scrolled to the newest message.
func ScrollToEnd(container *html.Node) {
	SetAttr(container, "data-scroll", "end")
}
