package reply

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProduct_Discounted(t *testing.T) {
	tests := []struct {
		name string
		p    Product
		want bool
	}{
		{"cheaper now", Product{CurrentPrice: NewPrice("10.00"), OriginalPrice: NewPrice("15.00")}, true},
		{"more expensive now", Product{CurrentPrice: NewPrice("15.00"), OriginalPrice: NewPrice("10.00")}, false},
		{"same price", Product{CurrentPrice: NewPrice("10"), OriginalPrice: NewPrice("10.00")}, false},
		{"no original", Product{CurrentPrice: NewPrice("10.00")}, false},
		{"falls back to price", Product{Price: NewPrice("9.99"), OriginalPrice: NewPrice("12")}, true},
		{"numeric json", Product{CurrentPrice: Price("10"), OriginalPrice: Price("15.5")}, true},
		{"trailing currency", Product{CurrentPrice: NewPrice("10.00 EUR"), OriginalPrice: NewPrice("15.00 EUR")}, true},
		{"unparseable current", Product{CurrentPrice: NewPrice("n/a"), OriginalPrice: NewPrice("15.00")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.p.Discounted())
		})
	}
}

func TestProduct_Aliases(t *testing.T) {
	var p Product
	require.NoError(t, json.Unmarshal([]byte(`{"name":"Lamp","product_image_url":"l.png","link":"https://x","price":12.5}`), &p))
	require.Equal(t, "Lamp", p.Title)
	require.Equal(t, "l.png", p.ImageURL)
	require.Equal(t, "https://x", p.URL)
	require.Equal(t, "12.5", p.Current().Text())

	b, err := json.Marshal(p)
	require.NoError(t, err)
	require.Equal(t, `{"title":"Lamp","url":"https://x","image_url":"l.png","price":12.5}`, string(b))
}

func TestPrice_IgnoresNonScalars(t *testing.T) {
	var p Product
	require.NoError(t, json.Unmarshal([]byte(`{"title":"A","originalPrice":{"amount":3},"currentPrice":null}`), &p))
	require.True(t, p.OriginalPrice.IsZero())
	require.True(t, p.CurrentPrice.IsZero())
	require.False(t, p.Discounted())
}
