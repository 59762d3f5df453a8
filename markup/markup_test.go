package markup

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDoc = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE DOC PUBLIC '-//KDE//DTD krita 2.0//EN' 'http://www.calligra.org/DTD/krita-2.0.dtd'>
<DOC xmlns="http://www.calligra.org/DTD/krita" syntaxVersion="2">
 <!-- comment -->
 <IMAGE width="64" name="Unnamed">
  <layers>
   <layer name="Paint &amp; Ink" nodetype="paintlayer"/>
  </layers>
 </IMAGE>
</DOC>`

func TestDecoderEvents(t *testing.T) {
	events, err := Collect(NewDecoder(strings.NewReader(sampleDoc)))
	require.NoError(t, err)

	var shape []string
	for _, ev := range events {
		shape = append(shape, ev.Kind.String()+":"+ev.Name)
	}
	assert.Equal(t, []string{
		"StartElement:DOC", "StartElement:IMAGE", "StartElement:layers",
		"StartElement:layer", "EndElement:layer", "EndElement:layers",
		"EndElement:IMAGE", "EndElement:DOC",
	}, shape)

	assert.Equal(t, []Attr{{"syntaxVersion", "2"}}, events[0].Attrs)
	assert.Equal(t, []Attr{{"name", "Paint & Ink"}, {"nodetype", "paintlayer"}}, events[3].Attrs)
	assert.Greater(t, events[3].Offset, events[0].Offset)
}

func TestDecoderEOFIsSticky(t *testing.T) {
	dec := NewDecoder(strings.NewReader(`<a/>`))
	_, err := Collect(dec)
	require.NoError(t, err)
	ev, err := dec.Next()
	require.NoError(t, err)
	assert.Equal(t, EOF, ev.Kind)
}

func TestDecoderMalformed(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"mismatched", `<a><b></a>`},
		{"truncated", `<a><b>`},
		{"bad attribute", `<a x=1/>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Collect(NewDecoder(strings.NewReader(tt.doc)))
			assert.Error(t, err)
		})
	}
}

func TestDecoderCharset(t *testing.T) {
	// "é" in ISO-8859-1.
	doc := []byte("<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?><a name=\"caf\xe9\"/>")
	events, err := Collect(NewDecoder(bytes.NewReader(doc)))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "café", events[0].Attrs[0].Value)
}

func TestSkip(t *testing.T) {
	src := NewReplay(
		Start("guides"), Start("h"), End("h"), Start("v"), End("v"), End("guides"),
		Start("next"),
	)
	ev, err := src.Next()
	require.NoError(t, err)
	require.Equal(t, "guides", ev.Name)

	require.NoError(t, Skip(src))
	ev, err = src.Next()
	require.NoError(t, err)
	assert.Equal(t, "next", ev.Name)

	assert.Error(t, Skip(NewReplay(Start("x"))))
}

func TestEncoderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	require.NoError(t, enc.Header("DOC PUBLIC '-//KDE//DTD krita 2.0//EN' 'http://www.calligra.org/DTD/krita-2.0.dtd'"))
	require.NoError(t, enc.Start("DOC", A("syntaxVersion", "2")))
	require.NoError(t, enc.Empty("layer", A("name", `<"quoted">`)))
	require.NoError(t, enc.End())
	require.NoError(t, enc.Close())

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, `<?xml version="1.0" encoding="UTF-8"?>`))
	assert.Contains(t, out, "<!DOCTYPE DOC PUBLIC")

	events, err := Collect(NewDecoder(&buf))
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.Equal(t, `<"quoted">`, events[1].Attrs[0].Value)
}

func TestEncoderUnbalanced(t *testing.T) {
	enc := NewEncoder(&bytes.Buffer{})
	assert.Error(t, enc.End())
	require.NoError(t, enc.Start("a"))
	assert.Error(t, enc.Close())
}
