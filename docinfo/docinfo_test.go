package docinfo

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleInfo = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE document-info PUBLIC '-//KDE//DTD document-info 1.1//EN' 'http://www.calligra.org/DTD/document-info-1.1.dtd'>
<document-info xmlns="http://www.calligra.org/DTD/document-info">
 <about>
  <title>Sunset study</title>
  <description></description>
  <subject></subject>
  <abstract><![CDATA[]]></abstract>
  <keyword></keyword>
  <initial-creator>Unknown</initial-creator>
  <editing-cycles>3</editing-cycles>
  <editing-time>PT12M</editing-time>
  <date>2024-05-02T08:30:00</date>
  <creation-date>2024-05-01T12:00:00</creation-date>
  <language></language>
  <license></license>
 </about>
 <author>
  <full-name>A. Painter</full-name>
  <creator-first-name></creator-first-name>
  <creator-last-name></creator-last-name>
  <initial></initial>
  <author-title></author-title>
  <position></position>
  <company>Studio</company>
 </author>
</document-info>
`

func TestParse(t *testing.T) {
	info, err := Parse(strings.NewReader(sampleInfo))
	require.NoError(t, err)

	assert.Equal(t, "Sunset study", info.About.Title)
	assert.Equal(t, "3", info.About.EditingCycles)
	assert.Equal(t, "A. Painter", info.Author.FullName)
	assert.Equal(t, "Studio", info.Author.Company)

	created, err := info.Created()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), created)

	modified, err := info.Modified()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 2, 8, 30, 0, 0, time.UTC), modified)
}

func TestParseMalformed(t *testing.T) {
	_, err := ParseBytes([]byte(`<document-info><about>`))
	assert.Error(t, err)
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"", time.Time{}},
		{"2024-05-01", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		{"2024-05-01T10:11", time.Date(2024, 5, 1, 10, 11, 0, 0, time.UTC)},
		{"2024-05-01T10:11:12Z", time.Date(2024, 5, 1, 10, 11, 12, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := ParseDate(tt.in)
		require.NoError(t, err, tt.in)
		assert.True(t, tt.want.Equal(got), tt.in)
	}

	_, err := ParseDate("yesterday")
	assert.Error(t, err)
}

func TestWriteRoundTrip(t *testing.T) {
	info, err := Parse(strings.NewReader(sampleInfo))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, info))
	assert.Contains(t, buf.String(), `<document-info xmlns="http://www.calligra.org/DTD/document-info">`)
	assert.Contains(t, buf.String(), "<!DOCTYPE document-info")

	again, err := Parse(&buf)
	require.NoError(t, err)
	assert.Equal(t, info.About, again.About)
	assert.Equal(t, info.Author, again.Author)
}

func TestFormatDate(t *testing.T) {
	d := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-05-01T12:00:00", FormatDate(d))
	assert.Equal(t, "", FormatDate(time.Time{}))
}
