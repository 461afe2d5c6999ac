package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJsonLinesLogRecorder(t *testing.T) {
	buf := &bytes.Buffer{}
	session := NewJsonLinesLogRecorder(buf).Session("42")

	require.NoError(t, session.Record(&RunCommand{Command: []string{"ls", "-l"}, Kind: KindExternal, ResolvedCommandPath: "/bin/ls"}))
	require.NoError(t, session.Record(&JobFinished{Command: "ls -l", Pgid: 7, Pids: []int{7}, Status: 0}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "42", first["session_id"])
	assert.Contains(t, first, "run_command")
	assert.NotContains(t, first, "job_finished")
	assert.NotZero(t, first["timestamp_micros"])

	var entries []*LogEntry
	require.NoError(t, ReadJSONLinesLog(buf, func(le *LogEntry) {
		entries = append(entries, le)
	}))
	require.Len(t, entries, 2)
	assert.Equal(t, &RunCommand{Command: []string{"ls", "-l"}, Kind: KindExternal, ResolvedCommandPath: "/bin/ls"}, entries[0].GetLogType())
	assert.Equal(t, []int{7}, entries[1].JobFinished.Pids)
}

func TestSessionLogger_nil(t *testing.T) {
	var session *SessionLogger
	assert.NoError(t, session.Record(&SessionStart{}))
	assert.Equal(t, "", session.ID())
}

func TestNewSession(t *testing.T) {
	l := NewJsonLinesLogRecorder(&bytes.Buffer{})
	assert.NotEmpty(t, l.NewSession().ID())
	assert.Empty(t, l.Sessionless().ID())
}

func TestReport(t *testing.T) {
	var report Report
	for _, le := range []*LogEntry{
		{SessionStart: &SessionStart{Username: "ada", Interactive: true}},
		{RunCommand: &RunCommand{Command: []string{"ls"}, Kind: KindExternal, ResolvedCommandPath: "/bin/ls"}},
		{RunCommand: &RunCommand{Command: []string{"cd", "/"}, Kind: KindBuiltin}},
		{UnknownCommand: &UnknownCommand{Command: []string{"nope"}, Status: 127}},
		{JobFinished: &JobFinished{Command: "ls", Status: 0}},
		{ShellError: &ShellError{Kind: "syntax error", Message: "bad"}},
		{},
	} {
		report.Update(le)
	}

	assert.Equal(t, 7, report.LogEntries)
	assert.Equal(t, 1, report.Session.Count)
	assert.Equal(t, 1, report.Session.Interactive)
	assert.Equal(t, 1, report.Job.Count)

	out, err := json.Marshal(report.RunCommand)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"resolved_command_paths": {"/bin/ls": 1},
		"command_names": {"ls": 1, "cd": 1},
		"kinds": {"external": 1, "builtin": 1}
	}`, string(out))

	out, err = json.Marshal(report.InvalidEntries)
	require.NoError(t, err)
	assert.JSONEq(t, `{"<nil>": 1}`, string(out))
}

func TestBugReport(t *testing.T) {
	report := NewBugReport()
	report.Update(&LogEntry{UnknownCommand: &UnknownCommand{Command: []string{"nope"}, Status: 127, ErrorMessage: "nope: command not found"}})
	report.Update(&LogEntry{UnknownCommand: &UnknownCommand{Command: []string{"nope"}, Status: 127, ErrorMessage: "nope: command not found"}})
	report.Update(&LogEntry{ShellError: &ShellError{Kind: "internal error", Message: "boom"}})

	assert.Equal(t, []string{"boom"}, report.InternalErrors)

	out, err := json.Marshal(report.UnknownCommands)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"count": 2, "event": {"command": "nope", "status": "127", "error": "nope: command not found"}}]`, string(out))
}

func TestInteractionReport(t *testing.T) {
	var report InteractionReport
	report.Update(&LogEntry{SessionID: "1", SessionStart: &SessionStart{Username: "ada", RemoteAddr: "10.0.0.1:22", Term: "xterm", IsPty: true}})
	report.Update(&LogEntry{SessionID: "1", RunCommand: &RunCommand{Command: []string{"echo", "hi"}}})
	report.Update(&LogEntry{SessionID: "1", JobFinished: &JobFinished{Command: "sleep 1", Status: 0}})
	report.Update(&LogEntry{RunCommand: &RunCommand{Command: []string{"ignored"}}})

	out, err := json.Marshal(&report)
	require.NoError(t, err)
	assert.JSONEq(t, `{"1": {
		"login": {"username": "ada", "remote_addr": "10.0.0.1:22"},
		"log_entries": 3,
		"terminal_name": "xterm",
		"is_pty": true,
		"commands": ["echo hi"],
		"jobs": ["\"sleep 1\" exited 0"]
	}}`, string(out))
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, log.WarnLevel, level)

	level, err = ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, log.DebugLevel, level)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	buf := &bytes.Buffer{}
	l := New(buf, log.InfoLevel)
	l.Debug("hidden")
	l.Info("spawned", "pid", 12)

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "forksh")
	assert.Contains(t, buf.String(), "pid=12")
}

func TestPathCounter_order(t *testing.T) {
	ctr := NewPathCounter("kind")
	ctr.Increment("b")
	ctr.Increment("a")
	ctr.Increment("c")
	ctr.Increment("c")

	out, err := json.Marshal(ctr)
	require.NoError(t, err)
	assert.Equal(t, `[{"count":2,"event":{"kind":"c"}},{"count":1,"event":{"kind":"a"}},{"count":1,"event":{"kind":"b"}}]`, string(out))

	assert.Panics(t, func() { ctr.Increment("a", "b") })
}
