package reply

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, body string) Reply {
	t.Helper()
	r, err := Decode([]byte(body))
	require.NoError(t, err)
	return r
}

func TestNormalize_PlainString(t *testing.T) {
	r := decode(t, `"Hello there"`)
	require.Equal(t, PlainText, r.Kind())
	require.Len(t, r.Segments, 1)
	require.Equal(t, "Hello there", r.Segments[0].Content)
}

func TestNormalize_SegmentList(t *testing.T) {
	r := decode(t, `[{"content":"Check these out","type":"product_list","products":[{"title":"A","url":"https://shop/a","currentPrice":"10.00","currency":"EUR"}]}]`)

	require.Equal(t, Mixed, r.Kind())
	require.Len(t, r.Segments, 1)
	seg := r.Segments[0]
	require.Equal(t, "Check these out", seg.Content)
	require.True(t, seg.HasCarousel())
	require.Len(t, seg.Products, 1)
	require.Equal(t, "A", seg.Products[0].Title)
	require.Equal(t, "10.00", seg.Products[0].CurrentPrice.Text())
}

func TestNormalize_SegmentListKeepsEverySegment(t *testing.T) {
	r := decode(t, `[{"content":"first"},{"type":"product_list","products":[{"title":"A"},{"title":"B"}]},{"content":null}]`)
	require.Len(t, r.Segments, 3)
	require.Equal(t, Mixed, r.Kind())
	require.Len(t, r.Products(), 2)
}

func TestNormalize_ListWithoutContent(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"message field", `[{"message":"from message"}]`, "from message"},
		{"text field", `[{"text":"from text"}]`, "from text"},
		{"message wins over text", `[{"message":"m","text":"t"}]`, "m"},
		{"nothing usable", `[{"output":"x"}]`, MsgNotUnderstood},
		{"empty list", `[]`, MsgNotUnderstood},
		{"list of strings", `["hi"]`, MsgNotUnderstood},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := decode(t, tt.body)
			require.Equal(t, PlainText, r.Kind())
			require.Equal(t, tt.want, r.Text())
		})
	}
}

func TestNormalize_Object(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantText string
		wantKind Kind
	}{
		{"content", `{"content":"hello"}`, "hello", PlainText},
		{"product segment", `{"content":"look","type":"product_list","products":[{"title":"A"}]}`, "look", Mixed},
		{"products only", `{"type":"product_list","products":[{"title":"A"}]}`, "", ProductList},
		{"message", `{"message":"via message"}`, "via message", PlainText},
		{"text", `{"text":"via text"}`, "via text", PlainText},
		{"unknown", `{"output":"x"}`, MsgUnhandledFormat, PlainText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := decode(t, tt.body)
			require.Equal(t, tt.wantKind, r.Kind())
			require.Equal(t, tt.wantText, r.Text())
		})
	}
}

func TestNormalize_Scalars(t *testing.T) {
	for _, body := range []string{`42`, `true`, `null`} {
		r := decode(t, body)
		require.Equal(t, MsgUnhandledFormat, r.Text(), body)
	}
}

func TestNormalize_NeverEmpty(t *testing.T) {
	for _, data := range []any{
		"", []any{}, map[string]any{}, []any{map[string]any{"content": ""}},
		[]any{map[string]any{"content": "", "type": "product_list", "products": []any{}}},
		nil, 3.5, []any{nil},
	} {
		r := Normalize(data)
		require.True(t, r.Renderable(), "%#v", data)
	}
}

func TestNormalize_LegacySentinel(t *testing.T) {
	r := decode(t, `"Here: PRODUCTS_JSON: [{\"title\":\"X\"}]"`)

	require.Len(t, r.Segments, 1)
	seg := r.Segments[0]
	require.Equal(t, "Here:", seg.Content)
	require.Equal(t, TypeProductList, seg.Type)
	require.Len(t, seg.Products, 1)
	require.Equal(t, "X", seg.Products[0].Title)
}

func TestNormalize_LegacySentinelInsideSegment(t *testing.T) {
	r := decode(t, `{"content":"Options PRODUCTS_JSON: [{\"name\":\"Y\",\"picture\":\"y.png\"}] enjoy"}`)

	seg := r.Segments[0]
	require.Equal(t, "Options enjoy", seg.Content)
	require.Len(t, seg.Products, 1)
	require.Equal(t, "Y", seg.Products[0].Title)
	require.Equal(t, "y.png", seg.Products[0].ImageURL)
}

func TestNormalize_LegacySentinelMalformed(t *testing.T) {
	for _, in := range []string{
		`Here: PRODUCTS_JSON: [{"title":`,
		`Here: PRODUCTS_JSON: null`,
		`Here: PRODUCTS_JSON: {"title":"X"}`,
		`Here: PRODUCTS_JSON:`,
	} {
		r := Normalize(in)
		require.Equal(t, PlainText, r.Kind(), in)
		require.Equal(t, in, r.Text(), in)

		_, _, ok := SplitLegacy(in)
		require.False(t, ok, in)
	}
}

func TestDecode_Malformed(t *testing.T) {
	_, err := Decode([]byte(`{"content":`))
	require.Error(t, err)
}

func TestReply_JSONForms(t *testing.T) {
	b, err := json.Marshal(Plain("hi"))
	require.NoError(t, err)
	require.Equal(t, `"hi"`, string(b))

	rich := Reply{Segments: []Segment{{
		Content:  "look",
		Type:     TypeProductList,
		Products: []Product{{Title: "A", CurrentPrice: NewPrice("10.00")}},
	}}}
	b, err = json.Marshal(rich)
	require.NoError(t, err)
	require.Equal(t, `[{"content":"look","type":"product_list","products":[{"title":"A","currentPrice":"10.00"}]}]`, string(b))

	var back Reply
	require.NoError(t, json.Unmarshal(b, &back))
	again, err := json.Marshal(back)
	require.NoError(t, err)
	require.Equal(t, string(b), string(again))

	var literal Reply
	require.NoError(t, json.Unmarshal([]byte(`"PRODUCTS_JSON: []"`), &literal))
	require.Equal(t, "PRODUCTS_JSON: []", literal.Text())
}
