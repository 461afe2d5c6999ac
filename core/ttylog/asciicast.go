package ttylog

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"
)

// AsciicastFileExt holds the suggested file extension for asciicast files.
const AsciicastFileExt = "cast"

const asciicastVersion = 2

// Event codes of asciicast lines. Other codes, like resizes, are skipped
// when reading.
const (
	asciicastOutput = "o"
	asciicastInput  = "i"
)

// AsciicastHeader is the first line of an asciicast v2 recording.
//
// See: https://github.com/asciinema/asciinema/blob/develop/doc/asciicast-v2.md
type AsciicastHeader struct {
	Version   int               `json:"version"`
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	Timestamp int64             `json:"timestamp,omitempty"`
	Title     string            `json:"title,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
}

type asciicastSink struct {
	enc    *json.Encoder
	header AsciicastHeader
	// start is the time of the first entry, event times are relative to it.
	start   int64
	started bool
}

// NewAsciicastLogSink creates a LogSink compatible with the asciicast v2
// format. Width and height describe the terminal at the start of the
// session, 80x24 is used when they're unknown.
func NewAsciicastLogSink(w io.Writer, width, height int) LogSink {
	if width <= 0 || height <= 0 {
		width, height = 80, 24
	}
	sink := &asciicastSink{
		enc: json.NewEncoder(w),
		header: AsciicastHeader{
			Version: asciicastVersion,
			Width:   width,
			Height:  height,
			Title:   "forksh session",
			Env: map[string]string{
				"TERM":  "xterm-256color",
				"SHELL": "forksh",
			},
		},
	}
	return sink.write
}

func (s *asciicastSink) write(e *Entry) error {
	if !s.started {
		s.started = true
		s.start = e.TimestampMicros
		s.header.Timestamp = time.UnixMicro(e.TimestampMicros).Unix()
		if err := s.enc.Encode(&s.header); err != nil {
			return err
		}
	}
	if e.Close {
		return nil
	}

	code := asciicastOutput
	if e.Fd == FDStdin {
		code = asciicastInput
	}
	return s.enc.Encode(&asciicastEvent{
		Seconds: microsecondsToSeconds(e.TimestampMicros - s.start),
		Code:    code,
		Data:    string(e.Data),
	})
}

// AsciicastLogSource reads entries from an asciicast v2 recording. Entry
// times are relative to the start of the recording.
type AsciicastLogSource struct {
	dec    *json.Decoder
	header *AsciicastHeader
}

var _ LogSource = (*AsciicastLogSource)(nil)

// NewAsciicastLogSource reads log events from an Asciicast formatted file.
func NewAsciicastLogSource(r io.Reader) *AsciicastLogSource {
	return &AsciicastLogSource{dec: json.NewDecoder(r)}
}

// Header returns the recording's header, reading it on first use.
func (src *AsciicastLogSource) Header() (*AsciicastHeader, error) {
	if src.header != nil {
		return src.header, nil
	}
	var h AsciicastHeader
	if err := src.dec.Decode(&h); err != nil {
		return nil, err
	}
	if h.Version != asciicastVersion {
		return nil, fmt.Errorf("unsupported asciicast version %d", h.Version)
	}
	src.header = &h
	return src.header, nil
}

// Next gets the next log entry, it returns io.EOF if there are no more.
func (src *AsciicastLogSource) Next() (*Entry, error) {
	if _, err := src.Header(); err != nil {
		return nil, err
	}

	for {
		var ev asciicastEvent
		if err := src.dec.Decode(&ev); err != nil {
			return nil, err
		}

		// stdout and stderr share the "o" stream.
		fd := FDStdout
		switch ev.Code {
		case asciicastOutput:
		case asciicastInput:
			fd = FDStdin
		default:
			continue
		}
		return &Entry{
			TimestampMicros: secondsToMicroseconds(ev.Seconds),
			Fd:              fd,
			Data:            []byte(ev.Data),
		}, nil
	}
}

// asciicastEvent is a [time, code, data] line.
type asciicastEvent struct {
	Seconds float64
	Code    string
	Data    string
}

func (ev *asciicastEvent) UnmarshalJSON(data []byte) error {
	var fields []json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if len(fields) != 3 {
		return fmt.Errorf("malformed line, expected 3 entries got %d", len(fields))
	}
	for i, dst := range []interface{}{&ev.Seconds, &ev.Code, &ev.Data} {
		if err := json.Unmarshal(fields[i], dst); err != nil {
			return fmt.Errorf("malformed data in line %s: %w", data, err)
		}
	}
	return nil
}

func (ev *asciicastEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{ev.Seconds, ev.Code, ev.Data})
}

func microsecondsToSeconds(microseconds int64) float64 {
	return float64(microseconds) / float64(time.Second/time.Microsecond)
}

func secondsToMicroseconds(seconds float64) int64 {
	return int64(math.Round(seconds * float64(time.Second/time.Microsecond)))
}
