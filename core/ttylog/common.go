// Package ttylog records and replays the terminal traffic of remote
// sessions.
package ttylog

import (
	"io"
	"regexp"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var (
	crlf = regexp.MustCompile(`\r?\n`)
)

// FD identifies the stream an entry belongs to.
type FD int

const (
	FDStdin  FD = 0
	FDStdout FD = 1
	FDStderr FD = 2
)

// Entry is one recorded terminal event.
type Entry struct {
	TimestampMicros int64
	Fd              FD
	Data            []byte
	// Close marks the end of the stream on Fd.
	Close bool
}

// LogSink receives log events.
type LogSink func(e *Entry) error

// LogSource adapts log readers.
type LogSource interface {
	// Next fetches the next available log entry. It returns io.EOF if the
	// source has no more log entries.
	Next() (*Entry, error)
}

// NewRealTimePlayback plays back the results in real-time.
// If maxSleep > 0, it's used as the maximum duration to pause.
func NewRealTimePlayback(maxSleep time.Duration, next LogSink) LogSink {
	var once sync.Once
	var prevTimeMicros int64

	return func(entry *Entry) error {
		once.Do(func() {
			prevTimeMicros = entry.TimestampMicros
		})

		delta := entry.TimestampMicros - prevTimeMicros
		prevTimeMicros = entry.TimestampMicros

		if maxSleep > 0 {
			sleepDuration := time.Duration(delta) * time.Microsecond
			if sleepDuration > maxSleep {
				sleepDuration = maxSleep
			}
			time.Sleep(sleepDuration)
		}

		return next(entry)
	}
}

// NewNewlineAdapter rewrites bare \n to \r\n. Sessions recorded without a
// pty only emit \n, which makes playback creep across the screen.
func NewNewlineAdapter(next LogSink) LogSink {
	return func(entry *Entry) error {
		if !entry.Close {
			entry.Data = crlf.ReplaceAll(entry.Data, []byte("\r\n"))
		}

		return next(entry)
	}
}

// NewClientOutput writes stdout and stderr to the given writer
func NewClientOutput(w io.Writer) LogSink {
	return func(entry *Entry) error {
		if entry.Close || entry.Fd == FDStdin {
			return nil
		}
		_, err := w.Write(entry.Data)
		return err
	}
}

// Replay reads a stream of events to a callback.
func Replay(recording LogSource, callback LogSink) (err error) {
	for {
		entry, err := recording.Next()
		switch {
		case err == io.EOF:
			return nil
		case err != nil:
			return err
		}

		if err := callback(entry); err != nil {
			return err
		}
	}
}

// Recorder forwards the traffic of wrapped streams to a LogSink.
type Recorder struct {
	mutex  sync.Mutex
	output LogSink
	log    *log.Logger
	now    func() time.Time
}

// NewRecorder creates a recorder that forwards all events to output.
// Failures to record are logged, never returned to the session.
func NewRecorder(output LogSink, logger *log.Logger) *Recorder {
	return &Recorder{output: output, log: logger, now: time.Now}
}

func (r *Recorder) record(entry *Entry) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if err := r.output(entry); err != nil {
		r.log.Warn("couldn't record terminal event", "fd", entry.Fd, "err", err)
	}
}

func (r *Recorder) recordIO(fd FD, data []byte, dest func([]byte) (int, error)) (int, error) {
	eventTime := r.now()
	amount, err := dest(data)
	if amount > 0 {
		r.record(&Entry{
			TimestampMicros: eventTime.UnixMicro(),
			Fd:              fd,
			Data:            append([]byte(nil), data[:amount]...),
		})
	}
	return amount, err
}

// Reader records everything read from rd as traffic on fd.
func (r *Recorder) Reader(fd FD, rd io.Reader) io.Reader {
	return readerFunc(func(p []byte) (int, error) {
		return r.recordIO(fd, p, rd.Read)
	})
}

// Writer records everything written to w as traffic on fd.
func (r *Recorder) Writer(fd FD, w io.Writer) io.Writer {
	return writerFunc(func(p []byte) (int, error) {
		return r.recordIO(fd, p, w.Write)
	})
}

// Close records the end of the session's output.
func (r *Recorder) Close() error {
	r.record(&Entry{TimestampMicros: r.now().UnixMicro(), Fd: FDStdout, Close: true})
	return nil
}

type readerFunc func([]byte) (int, error)

func (f readerFunc) Read(p []byte) (int, error) { return f(p) }

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
