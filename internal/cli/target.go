package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nkoretz/drover/internal/target"
)

var targetCmd = &cobra.Command{
	Use:   "target",
	Short: "Run the embedded stand-in target service",
	Long: `Run the stand-in HTTP service the built-in scenarios are written
against. Useful for trying drover without a system under test.`,
	Args: cobra.NoArgs,
	RunE: runTarget,
}

func init() {
	targetCmd.Flags().String("addr", ":8080", "listen address")
}

func runTarget(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := target.NewServer(addr, target.DefaultConfig())

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("stand-in target listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
