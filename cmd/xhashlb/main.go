package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/easzlab/xhashlb/pkg/server"
)

var (
	version    = "dev"
	lbConfig   string
	logLevel   string
	helpLBFlag bool
)

func main() {
	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "xhashlb",
		Short: "xhashlb - consistent-hash TCP load balancer",
		Long:  "A lightweight TCP load balancer that dispatches connections on a consistent-hash ring and proxies them through an L7 event loop; NAT/DR packet forwarding is not run by this command.",
		RunE:  runDaemon,
	}

	rootCmd.Flags().StringVar(&lbConfig, "lb-config", "/etc/xhashlb/xhashlb.ini", "path to the balancer's ini config file")
	rootCmd.Flags().StringVar(&logLevel, "log", "info", "log level: debug, info, warn, error")
	rootCmd.Flags().BoolVar(&helpLBFlag, "help-lb", false, "print usage and exit")

	return rootCmd
}

// runDaemon starts the server in daemon mode with signal handling.
func runDaemon(cmd *cobra.Command, args []string) error {
	if helpLBFlag {
		return cmd.Usage()
	}

	logger, err := newLogger(logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %q: %v\n", logLevel, err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting xhashlb",
		zap.String("version", version),
		zap.String("config", lbConfig),
	)

	srv, err := server.NewServer(lbConfig, logger)
	if err != nil {
		logger.Error("failed to create server", zap.Error(err))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-signalChan
		logger.Info("received signal", zap.String("signal", sig.String()))
		cancel()
	}()

	if err := srv.Run(ctx); err != nil {
		logger.Error("server exited with error", zap.Error(err))
		os.Exit(1)
	}
	return nil
}

// newLogger creates a zap logger at the requested level, console-encoded
// the way the teacher's CLI configures its own logger.
func newLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	loggerConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Encoding:         "console",
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return loggerConfig.Build()
}
