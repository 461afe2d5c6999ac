package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/josephlewis42/forksh/core/shellerr"
)

// ReadJSONLinesLog parses a newline delimited JSON log.
func ReadJSONLinesLog(r io.Reader, handler func(le *LogEntry)) error {
	decoder := json.NewDecoder(r)
	for decoder.More() {
		var logEntry LogEntry
		if err := decoder.Decode(&logEntry); err != nil {
			return err
		}

		handler(&logEntry)
	}
	return nil
}

func NewBugReport() *BugReport {
	return &BugReport{
		ShellErrors:     NewPathCounter("kind", "message"),
		UnknownCommands: NewPathCounter("command", "status", "error"),
	}
}

// BugReport pulls events that point at broken scripts or a broken shell.
type BugReport struct {
	LogEntries int `json:"log_entries"`

	ShellErrors     *PathCounter `json:"shell_errors"`
	UnknownCommands *PathCounter `json:"unknown_commands"`
	InternalErrors  []string     `json:"internal_errors"`
}

func (r *BugReport) Update(le *LogEntry) {
	r.LogEntries++

	switch event := le.GetLogType().(type) {
	case *ShellError:
		if event.Kind == shellerr.Internal.String() {
			r.InternalErrors = append(r.InternalErrors, event.Message)
		}
		r.ShellErrors.Increment(event.Kind, event.Message)
	case *UnknownCommand:
		r.UnknownCommands.Increment(firstArg(event.Command), strconv.Itoa(event.Status), event.ErrorMessage)
	}
}

type InteractionReport struct {
	// Map of sessionID -> interactions
	interactions map[string]*InteractiveSession
}

type InteractiveSession struct {
	Login struct {
		Username   string `json:"username,omitempty"`
		RemoteAddr string `json:"remote_addr,omitempty"`
	} `json:"login"`
	LogEntries   int    `json:"log_entries"`
	TerminalName string `json:"terminal_name,omitempty"`
	IsPty        bool   `json:"is_pty"`

	Commands []string `json:"commands"`
	Jobs     []string `json:"jobs"`
}

func (i *InteractiveSession) Update(le *LogEntry) {
	i.LogEntries++

	switch event := le.GetLogType().(type) {
	case *SessionStart:
		i.Login.Username = event.Username
		i.Login.RemoteAddr = event.RemoteAddr
		i.TerminalName = event.Term
		i.IsPty = event.IsPty
	case *RunCommand:
		i.Commands = append(i.Commands, strings.Join(event.Command, " "))
	case *UnknownCommand:
		i.Commands = append(i.Commands, strings.Join(event.Command, " "))
	case *JobFinished:
		i.Jobs = append(i.Jobs, fmt.Sprintf("%q exited %d", event.Command, event.Status))
	}
}

func (i *InteractionReport) init() {
	if i.interactions == nil {
		i.interactions = make(map[string]*InteractiveSession)
	}
}

// MarshalJSON writes the sessions keyed by ID.
func (i *InteractionReport) MarshalJSON() ([]byte, error) {
	i.init()

	return json.Marshal(i.interactions)
}

func (i *InteractionReport) Update(le *LogEntry) {
	i.init()

	sessionID := le.SessionID
	if sessionID == "" {
		return
	}
	report, ok := i.interactions[sessionID]
	if !ok {
		report = &InteractiveSession{}
		i.interactions[sessionID] = report
	}

	report.Update(le)
}

// Report holds statistics about the logged events.
type Report struct {
	LogEntries     int        `json:"log_entries"`
	InvalidEntries StrCounter `json:"unknown_log_entries,omitempty"`

	Session        SessionReport        `json:"session_report"`
	RunCommand     RunCommandReport     `json:"run_command_report"`
	UnknownCommand UnknownCommandReport `json:"unknown_command_report"`
	Job            JobReport            `json:"job_report"`
	ShellError     ShellErrorReport     `json:"shell_error_report"`
}

func (r *Report) Update(le *LogEntry) {
	r.LogEntries++

	switch event := le.GetLogType().(type) {
	case *SessionStart:
		r.Session.update(event)
	case *RunCommand:
		r.RunCommand.update(event)
	case *UnknownCommand:
		r.UnknownCommand.update(event)
	case *JobFinished:
		r.Job.update(event)
	case *ShellError:
		r.ShellError.update(event)
	default:
		r.InvalidEntries.Increment(fmt.Sprintf("%T", event))
	}
}

type SessionReport struct {
	Count       int        `json:"count"`
	Usernames   StrCounter `json:"usernames"`
	Interactive int        `json:"interactive"`
}

func (r *SessionReport) update(s *SessionStart) {
	r.Count++
	if s.Username != "" {
		r.Usernames.Increment(s.Username)
	}
	if s.Interactive {
		r.Interactive++
	}
}

type RunCommandReport struct {
	// Path of the resolved command
	ResolvedCommandPaths StrCounter `json:"resolved_command_paths"`
	// Name of the command
	CommandNames StrCounter `json:"command_names"`
	Kinds        StrCounter `json:"kinds"`
}

func (r *RunCommandReport) update(rc *RunCommand) {
	if rc.ResolvedCommandPath != "" {
		r.ResolvedCommandPaths.Increment(rc.ResolvedCommandPath)
	}
	if len(rc.Command) > 0 {
		r.CommandNames.Increment(rc.Command[0])
	}
	r.Kinds.Increment(rc.Kind)
}

type UnknownCommandReport struct {
	CommandNames    StrCounter `json:"command_names"`
	CommandStatuses StrCounter `json:"command_statuses"`
}

func (r *UnknownCommandReport) update(logEntry *UnknownCommand) {
	if len(logEntry.Command) > 0 {
		r.CommandNames.Increment(logEntry.Command[0])
	}

	r.CommandStatuses.Increment(strconv.Itoa(logEntry.Status))
}

type JobReport struct {
	Count    int        `json:"count"`
	Statuses StrCounter `json:"statuses"`
}

func (r *JobReport) update(j *JobFinished) {
	r.Count++
	r.Statuses.Increment(strconv.Itoa(j.Status))
}

type ShellErrorReport struct {
	Kinds StrCounter `json:"kinds"`
}

func (r *ShellErrorReport) update(e *ShellError) {
	r.Kinds.Increment(e.Kind)
}

func firstArg(argv []string) string {
	if len(argv) == 0 {
		return ""
	}
	return argv[0]
}

// StrCounter counts the number of strings seen.
type StrCounter struct {
	internal map[string]int
}

// Increment adds one to the given key.
func (s *StrCounter) Increment(toAdd string) {
	if s.internal == nil {
		s.internal = make(map[string]int)
	}

	s.internal[toAdd]++
}

// MarshalJSON implements json.Marshaler.
func (s StrCounter) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.internal)
}

// NewPathCounter counts tuples of values, one per named column.
func NewPathCounter(cols ...string) *PathCounter {
	return &PathCounter{
		cols:   cols,
		counts: make(map[string]*pathCount),
	}
}

// PathCounter counts how often each tuple of column values was seen. It
// marshals to a list of tuples, most frequent first.
type PathCounter struct {
	cols   []string
	counts map[string]*pathCount
}

type pathCount struct {
	values []string
	count  int
}

// Increment adds one to the tuple of values, which must have one value
// per column.
func (ctr *PathCounter) Increment(values ...string) {
	if len(values) != len(ctr.cols) {
		panic(fmt.Sprintf("PathCounter got %d values for %d columns", len(values), len(ctr.cols)))
	}

	key := strings.Join(values, "\x00")
	if pc, ok := ctr.counts[key]; ok {
		pc.count++
		return
	}
	ctr.counts[key] = &pathCount{values: append([]string(nil), values...), count: 1}
}

// MarshalJSON implements json.Marshaler.
func (ctr *PathCounter) MarshalJSON() ([]byte, error) {
	type row struct {
		Count  int               `json:"count"`
		Fields map[string]string `json:"event"`
		key    string
	}

	out := make([]row, 0, len(ctr.counts))
	for key, pc := range ctr.counts {
		r := row{Count: pc.count, Fields: make(map[string]string, len(ctr.cols)), key: key}
		for i, col := range ctr.cols {
			r.Fields[col] = pc.values[i]
		}
		out = append(out, r)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].key < out[j].key
	})
	return json.Marshal(out)
}
