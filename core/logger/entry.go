package logger

// LogEntry is one line of the audit log. Exactly one event field is set.
type LogEntry struct {
	TimestampMicros int64  `json:"timestamp_micros"`
	SessionID       string `json:"session_id,omitempty"`

	SessionStart   *SessionStart   `json:"session_start,omitempty"`
	RunCommand     *RunCommand     `json:"run_command,omitempty"`
	UnknownCommand *UnknownCommand `json:"unknown_command,omitempty"`
	JobFinished    *JobFinished    `json:"job_finished,omitempty"`
	ShellError     *ShellError     `json:"shell_error,omitempty"`
}

// LogType is an event that can be stored in a LogEntry.
type LogType interface {
	setOn(le *LogEntry)
}

// GetLogType returns the event held by the entry, or nil.
func (le *LogEntry) GetLogType() LogType {
	switch {
	case le.SessionStart != nil:
		return le.SessionStart
	case le.RunCommand != nil:
		return le.RunCommand
	case le.UnknownCommand != nil:
		return le.UnknownCommand
	case le.JobFinished != nil:
		return le.JobFinished
	case le.ShellError != nil:
		return le.ShellError
	}
	return nil
}

// SessionStart is recorded when a shell starts.
type SessionStart struct {
	Username    string   `json:"username,omitempty"`
	RemoteAddr  string   `json:"remote_addr,omitempty"`
	Term        string   `json:"term,omitempty"`
	IsPty       bool     `json:"is_pty,omitempty"`
	Interactive bool     `json:"interactive,omitempty"`
	Args        []string `json:"args,omitempty"`
}

func (e *SessionStart) setOn(le *LogEntry) { le.SessionStart = e }

// Command kinds.
const (
	KindBuiltin  = "builtin"
	KindFunction = "function"
	KindExternal = "external"
	KindSubshell = "subshell"
)

// RunCommand is recorded when a command is dispatched.
type RunCommand struct {
	Command             []string `json:"command"`
	Kind                string   `json:"kind"`
	ResolvedCommandPath string   `json:"resolved_command_path,omitempty"`
}

func (e *RunCommand) setOn(le *LogEntry) { le.RunCommand = e }

// UnknownCommand is recorded when a name can't be resolved.
type UnknownCommand struct {
	Command      []string `json:"command"`
	Status       int      `json:"status"`
	ErrorMessage string   `json:"error_message,omitempty"`
}

func (e *UnknownCommand) setOn(le *LogEntry) { le.UnknownCommand = e }

// JobFinished is recorded when a job's last process is reaped.
type JobFinished struct {
	Command string `json:"command"`
	Pgid    int    `json:"pgid"`
	Pids    []int  `json:"pids"`
	Status  int    `json:"status"`
}

func (e *JobFinished) setOn(le *LogEntry) { le.JobFinished = e }

// ShellError is recorded when a command line fails before or while running.
type ShellError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
	Col     int    `json:"col,omitempty"`
}

func (e *ShellError) setOn(le *LogEntry) { le.ShellError = e }
