package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/charmbracelet/log"
	"github.com/creack/pty"
	"github.com/gliderlabs/ssh"
	"github.com/josephlewis42/forksh/core/config"
	"github.com/josephlewis42/forksh/core/logger"
	"github.com/josephlewis42/forksh/core/ttylog"
	gossh "golang.org/x/crypto/ssh"
)

// SessionFlag passes the audit session to shells started by the server.
const SessionFlag = "session"

// Server gives SSH users a shell running as the server's own user.
type Server struct {
	configuration *config.Configuration
	audit         *logger.Logger
	log           *log.Logger
	sshServer     *ssh.Server

	// shell is the binary sessions run.
	shell string
}

// NewServer creates a server for the users in configuration.
func NewServer(configuration *config.Configuration, audit *logger.Logger, l *log.Logger) (*Server, error) {
	shell, err := os.Executable()
	if err != nil {
		return nil, err
	}

	srv := &Server{
		configuration: configuration,
		audit:         audit,
		log:           l,
		shell:         shell,
	}
	srv.sshServer = &ssh.Server{
		Addr:    fmt.Sprintf(":%d", configuration.SSH.Port),
		Handler: srv.handleSession,
		PasswordHandler: func(ctx ssh.Context, password string) bool {
			ok := configuration.CheckPassword(ctx.User(), password)
			l.Info("login attempt", "user", ctx.User(), "remote", ctx.RemoteAddr(), "ok", ok)
			return ok
		},
	}
	if banner := configuration.SSH.Banner; banner != "" {
		srv.sshServer.ServerConfigCallback = func(ctx ssh.Context) *gossh.ServerConfig {
			return &gossh.ServerConfig{BannerCallback: func(gossh.ConnMetadata) string {
				return banner + "\n"
			}}
		}
	}

	key, err := configuration.PrivateKeyPem()
	if err != nil {
		return nil, fmt.Errorf("read host key: %w", err)
	}
	if err := srv.sshServer.SetOption(ssh.HostKeyPEM(key)); err != nil {
		return nil, err
	}
	return srv, nil
}

func (srv *Server) handleSession(s ssh.Session) {
	session := srv.audit.NewSession()
	ptyReq, winCh, isPty := s.Pty()
	l := srv.log.With("session", session.ID(), "user", s.User())

	err := session.Record(&logger.SessionStart{
		Username:    s.User(),
		RemoteAddr:  s.RemoteAddr().String(),
		Term:        ptyReq.Term,
		IsPty:       isPty,
		Interactive: s.RawCommand() == "",
		Args:        s.Command(),
	})
	if err != nil {
		l.Warn("couldn't record session start", "err", err)
	}

	cmd := srv.command(s, session.ID(), ptyReq.Term)

	var in io.Reader = s
	var out io.Writer = s
	if srv.configuration.SSH.RecordSessions {
		recorder, closeLog, err := srv.openRecording(ptyReq.Window)
		if err != nil {
			l.Warn("couldn't record session", "err", err)
		} else {
			defer closeLog()
			defer recorder.Close()
			in = recorder.Reader(ttylog.FDStdin, in)
			out = recorder.Writer(ttylog.FDStdout, out)
		}
	}

	var runErr error
	if isPty {
		runErr = srv.runPty(cmd, ptyReq.Window, winCh, in, out)
	} else {
		cmd.Stdin = in
		cmd.Stdout = out
		cmd.Stderr = s.Stderr()
		runErr = cmd.Run()
	}

	code := 0
	var exitErr *exec.ExitError
	switch {
	case errors.As(runErr, &exitErr):
		code = exitErr.ExitCode()
	case runErr != nil:
		l.Error("session shell failed", "err", runErr)
		code = 1
	}
	l.Info("session ended", "status", code)
	_ = s.Exit(code)
}

// command builds the shell process for a session.
func (srv *Server) command(s ssh.Session, sessionID, term string) *exec.Cmd {
	args := []string{"--config", srv.configuration.Dir(), "--" + SessionFlag, sessionID}
	if raw := s.RawCommand(); raw != "" {
		args = append(args, "-c", raw)
	} else {
		args = append(args, "-i")
	}

	cmd := exec.Command(srv.shell, args...)
	env := []string{
		"USER=" + s.User(),
		"LOGNAME=" + s.User(),
		"SHELL=" + srv.shell,
		"PATH=" + srv.configuration.DefaultPath,
	}
	if term != "" {
		env = append(env, "TERM="+term)
	}
	if user, ok := srv.configuration.User(s.User()); ok && user.Home != "" {
		env = append(env, "HOME="+user.Home)
		if fi, err := os.Stat(user.Home); err == nil && fi.IsDir() {
			cmd.Dir = user.Home
		}
	}
	cmd.Env = append(env, s.Environ()...)
	return cmd
}

func (srv *Server) runPty(cmd *exec.Cmd, win ssh.Window, winCh <-chan ssh.Window, in io.Reader, out io.Writer) error {
	f, err := pty.StartWithSize(cmd, windowSize(win))
	if err != nil {
		return err
	}
	defer f.Close()

	go func() {
		for win := range winCh {
			if err := pty.Setsize(f, windowSize(win)); err != nil {
				srv.log.Debug("couldn't resize pty", "err", err)
			}
		}
	}()
	go func() {
		_, _ = io.Copy(f, in)
	}()
	// Reading the pty fails once the shell exits.
	_, _ = io.Copy(out, f)
	return cmd.Wait()
}

func windowSize(win ssh.Window) *pty.Winsize {
	return &pty.Winsize{Rows: uint16(win.Height), Cols: uint16(win.Width)}
}

func (srv *Server) openRecording(win ssh.Window) (*ttylog.Recorder, func(), error) {
	format := srv.configuration.SSH.RecordingFormat
	_, ext, err := ttylog.NewLogSink(format, io.Discard, win.Width, win.Height)
	if err != nil {
		return nil, nil, err
	}

	name := fmt.Sprintf("%s.%s", time.Now().Format(time.RFC3339Nano), ext)
	f, err := srv.configuration.CreateSessionLog(name)
	if err != nil {
		return nil, nil, err
	}
	sink, _, err := ttylog.NewLogSink(format, f, win.Width, win.Height)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	srv.log.Debug("recording session", "file", name)
	return ttylog.NewRecorder(sink, srv.log), func() { f.Close() }, nil
}

// ListenAndServe accepts connections until Shutdown.
func (srv *Server) ListenAndServe() error {
	srv.log.Info("starting SSH server", "addr", srv.sshServer.Addr)
	err := srv.sshServer.ListenAndServe()
	if errors.Is(err, ssh.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and waits for sessions to end.
func (srv *Server) Shutdown(ctx context.Context) error {
	return srv.sshServer.Shutdown(ctx)
}
