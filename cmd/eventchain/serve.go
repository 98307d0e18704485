package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/hrygo/eventchain/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the calendar pipeline over HTTP",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "address of server")
	serveCmd.Flags().Int("port", 8081, "port of server")
	if err := v.BindPFlag("addr", serveCmd.Flags().Lookup("addr")); err != nil {
		panic(err)
	}
	if err := v.BindPFlag("port", serveCmd.Flags().Lookup("port")); err != nil {
		panic(err)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	gw, err := newGateway()
	if err != nil {
		return err
	}
	pipeline, err := newPipeline(gw)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	s, err := server.NewServer(ctx, instanceProfile, pipeline, gw)
	if err != nil {
		return errors.Wrap(err, "failed to create server")
	}

	c := make(chan os.Signal, 1)
	// Trigger graceful shutdown on SIGINT or SIGTERM.
	// The default signal sent by the `kill` command is SIGTERM,
	// which is taken as the graceful shutdown signal for many systems, eg., Kubernetes, Gunicorn.
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		s.Shutdown(context.Background())
		cancel()
	}()

	printGreetings(cmd)
	if err := s.Start(ctx); err != nil {
		return errors.Wrap(err, "failed to start server")
	}
	slog.Info("bye")
	return nil
}

func printGreetings(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "eventchain is up in %s mode\n", instanceProfile.Mode)
	fmt.Fprintf(out, "model: %s (%s)\n", instanceProfile.LLMModel, instanceProfile.LLMProvider)
	if instanceProfile.Addr == "" {
		fmt.Fprintf(out, "listening on port %d\n", instanceProfile.Port)
	} else {
		fmt.Fprintf(out, "listening on %s:%d\n", instanceProfile.Addr, instanceProfile.Port)
	}
}
