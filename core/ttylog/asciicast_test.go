package ttylog

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeConversions(t *testing.T) {
	cases := map[string]struct {
		microseconds int64
		seconds      float64
	}{
		"precision": {
			microseconds: 1,
			seconds:      1e-6,
		},
		"negative": {
			microseconds: -631119539e6,
			seconds:      -631119539,
		},
		"positive": {
			microseconds: 631119539e6,
			seconds:      631119539,
		},
		"bigprecise": {
			microseconds: 123456789987654,
			seconds:      123456789.987654,
		},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			s2m := secondsToMicroseconds(tc.seconds)
			m2s := microsecondsToSeconds(tc.microseconds)

			// Only allow delta to be to the NS
			assert.InDelta(t, m2s, tc.seconds, float64(time.Nanosecond)/float64(time.Second))
			assert.Equal(t, s2m, tc.microseconds)
		})
	}
}

func TestAsciicast_roundTrip(t *testing.T) {
	buf := &bytes.Buffer{}
	sink := NewAsciicastLogSink(buf, 120, 40)

	start := int64(1_600_000_000_000_000)
	require.NoError(t, sink(&Entry{TimestampMicros: start, Fd: FDStdout, Data: []byte("$ ")}))
	require.NoError(t, sink(&Entry{TimestampMicros: start + 500_000, Fd: FDStdin, Data: []byte("ls\r")}))
	require.NoError(t, sink(&Entry{TimestampMicros: start + 1_000_000, Fd: FDStdout, Close: true}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.JSONEq(t, `{"version":2,"width":120,"height":40,"timestamp":1600000000,"title":"forksh session","env":{"TERM":"xterm-256color","SHELL":"forksh"}}`, lines[0])
	assert.Equal(t, `[0,"o","$ "]`, lines[1])
	assert.Equal(t, `[0.5,"i","ls\r"]`, lines[2])

	var entries []*Entry
	require.NoError(t, Replay(NewAsciicastLogSource(buf), func(e *Entry) error {
		entries = append(entries, e)
		return nil
	}))
	assert.Equal(t, []*Entry{
		{TimestampMicros: 0, Fd: FDStdout, Data: []byte("$ ")},
		{TimestampMicros: 500_000, Fd: FDStdin, Data: []byte("ls\r")},
	}, entries)
}

func TestAsciicast_malformed(t *testing.T) {
	cases := map[string]struct {
		input string
		want  string
	}{
		"short line":    {"{\"version\":2}\n[1, \"o\"]\n", "malformed line, expected 3 entries got 2"},
		"wrong version": {"{\"version\":1}\n", "unsupported asciicast version 1"},
	}
	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			_, err := NewAsciicastLogSource(strings.NewReader(tc.input)).Next()
			assert.EqualError(t, err, tc.want)
		})
	}
}

func TestAsciicast_skipsOtherEvents(t *testing.T) {
	input := `{"version":2,"width":100,"height":30}
[0.1,"r","120x40"]
[0.25,"o","hi"]
`
	source := NewAsciicastLogSource(strings.NewReader(input))
	header, err := source.Header()
	require.NoError(t, err)
	assert.Equal(t, 100, header.Width)

	entry, err := source.Next()
	require.NoError(t, err)
	assert.Equal(t, &Entry{TimestampMicros: 250_000, Fd: FDStdout, Data: []byte("hi")}, entry)

	_, err = source.Next()
	assert.Equal(t, io.EOF, err)
}
