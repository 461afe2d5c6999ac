package ttylog

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Recording formats.
const (
	FormatAsciicast = "asciicast"
	FormatUML       = "uml"
)

// UMLFileExt holds the suggested file extension for UML recordings.
const UMLFileExt = "log"

// NewLogSink creates a sink for the named format. It also returns the file
// extension recordings in that format use.
func NewLogSink(format string, w io.Writer, width, height int) (LogSink, string, error) {
	switch format {
	case FormatAsciicast, "":
		return NewAsciicastLogSink(w, width, height), AsciicastFileExt, nil
	case FormatUML:
		return NewUMLLogSink(w), UMLFileExt, nil
	default:
		return nil, "", fmt.Errorf("unknown recording format %q", format)
	}
}

// NewLogSource picks a reader for a recording based on its file name.
func NewLogSource(name string, r io.Reader) LogSource {
	if strings.TrimPrefix(filepath.Ext(name), ".") == AsciicastFileExt {
		return NewAsciicastLogSource(r)
	}
	return NewUMLLogSource(r)
}
