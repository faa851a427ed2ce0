package carousel

import "fmt"

// Layout holds the geometry used to centre a card inside the container.
type Layout struct {
	ContainerWidth float64
	CardWidth      float64
	// Overlap is the fraction of a card width between neighbouring card origins.
	Overlap float64
}

var DefaultLayout = Layout{ContainerWidth: 360, CardWidth: 140, Overlap: 0.7}

// Offset is the horizontal strip translation that centres card index.
func (l Layout) Offset(index int) float64 {
	center := l.ContainerWidth/2 - l.CardWidth/2
	return center - float64(index)*l.CardWidth*l.Overlap
}

// CardStyle is the coverflow presentation of one card.
type CardStyle struct {
	Transform   string
	Opacity     float64
	ZIndex      int
	Interactive bool
}

// StyleFor maps a card's distance from the focused card to its style. Scale,
// opacity and stacking order never increase with distance; only the focused
// card and its two neighbours are visible.
func StyleFor(distance int) CardStyle {
	abs, side := distance, 1
	if distance < 0 {
		abs, side = -distance, -1
	}

	switch abs {
	case 0:
		return CardStyle{
			Transform:   "translateX(0%) translateZ(50px) rotateY(0deg) scale(1.05)",
			Opacity:     1,
			ZIndex:      20,
			Interactive: true,
		}
	case 1:
		return CardStyle{
			Transform:   fmt.Sprintf("translateX(%d%%) translateZ(-20px) rotateY(%ddeg) scale(0.9)", 60*side, -50*side),
			Opacity:     1,
			ZIndex:      19,
			Interactive: true,
		}
	default:
		return CardStyle{Transform: "scale(0.8)"}
	}
}
