package ttylog

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// UML tty logs, as written by User Mode Linux and Kippo, are a sequence of
// little endian umlHeader records each followed by Size bytes of data.

type umlOp int32

const (
	opOpen  umlOp = 1
	opClose umlOp = 2
	opWrite umlOp = 3
	opExec  umlOp = 4
)

type umlDir int32

const (
	dirRead  umlDir = 1
	dirWrite umlDir = 2
)

type umlHeader struct {
	Op        umlOp
	Tty       uint32 // always 0
	Size      int32
	Direction umlDir
	Sec       uint32
	Usec      uint32
}

const microsPerSecond = 1_000_000

// NewUMLLogSink creates a LogSink compatible with the user-mode-linux TTY.
func NewUMLLogSink(w io.Writer) LogSink {
	return func(e *Entry) error {
		h := umlHeader{
			Op:        opWrite,
			Size:      int32(len(e.Data)),
			Direction: dirWrite,
			Sec:       uint32(e.TimestampMicros / microsPerSecond),
			Usec:      uint32(e.TimestampMicros % microsPerSecond),
		}
		if e.Close {
			h.Op, h.Size = opClose, 0
		}
		if e.Fd == FDStdin {
			h.Direction = dirRead
		}

		if err := binary.Write(w, binary.LittleEndian, &h); err != nil {
			return err
		}
		if h.Size == 0 {
			return nil
		}
		_, err := w.Write(e.Data)
		return err
	}
}

// UMLLogSource parses log events from a user-mode-linux/Kippo formatted file.
type UMLLogSource struct {
	r io.Reader
}

var _ LogSource = (*UMLLogSource)(nil)

// NewUMLLogSource reads log events from a user-mode-linux/Kippo formatted file.
func NewUMLLogSource(r io.Reader) *UMLLogSource {
	return &UMLLogSource{r: r}
}

// Next gets the next log entry, it returns io.EOF if there are no more.
func (src *UMLLogSource) Next() (*Entry, error) {
	for {
		var h umlHeader
		switch err := binary.Read(src.r, binary.LittleEndian, &h); {
		case errors.Is(err, io.EOF):
			return nil, io.EOF
		case err != nil:
			return nil, fmt.Errorf("read uml header: %w", err)
		}
		if h.Size < 0 {
			return nil, fmt.Errorf("uml record has negative size %d", h.Size)
		}
		data := make([]byte, h.Size)
		if _, err := io.ReadFull(src.r, data); err != nil {
			return nil, fmt.Errorf("read uml record: %w", err)
		}

		// UML doesn't tell stdout from stderr.
		entry := &Entry{
			TimestampMicros: int64(h.Sec)*microsPerSecond + int64(h.Usec),
			Fd:              FDStdout,
		}
		if h.Direction == dirRead {
			entry.Fd = FDStdin
		}

		switch h.Op {
		case opWrite:
			entry.Data = data
			return entry, nil
		case opClose:
			entry.Close = true
			return entry, nil
		}
		// opOpen and opExec carry no terminal data.
	}
}
