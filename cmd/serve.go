package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/josephlewis42/forksh/core"
	"github.com/josephlewis42/forksh/core/config"
	"github.com/josephlewis42/forksh/core/logger"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve shells to the configured users over SSH.",
	RunE: func(cmd *cobra.Command, args []string) error {
		os.Stdin.Close()
		cmd.SilenceUsage = true

		configuration, err := config.Load(afero.NewOsFs(), configDir())
		if err != nil {
			return err
		}
		diag, err := newDiagLogger(cmd.ErrOrStderr(), configuration)
		if err != nil {
			return err
		}

		auditLog, err := configuration.OpenAppLog()
		if err != nil {
			return err
		}
		defer auditLog.Close()

		server, err := core.NewServer(configuration, logger.NewJsonLinesLogRecorder(auditLog), diag)
		if err != nil {
			return err
		}

		errs := make(chan error, 1)
		go func() {
			errs <- server.ListenAndServe()
		}()

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
		select {
		case err := <-errs:
			return err
		case sig := <-sigs:
			diag.Info("terminating", "signal", sig)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			diag.Error("server shutdown failed", "err", err)
			return err
		}
		diag.Info("server exited")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
