package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"codeberg.org/mutker/sysmon/internal/config"
	"codeberg.org/mutker/sysmon/internal/errors"
	"codeberg.org/mutker/sysmon/internal/logger"
	"codeberg.org/mutker/sysmon/internal/monitor"
	"github.com/spf13/pflag"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel, logger.IsService())
	logger.Debug().Msg("Config loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	m := monitor.New(cfg)
	if err := m.Run(ctx); err != nil {
		var appErr errors.Error
		if errors.As(err, &appErr) {
			logger.FatalWithCode(appErr).Msg("Monitor failed to start")
		}
		logger.Fatal().Err(err).Msg("Monitor failed to start")
	}
	logger.Info().Msg("Exiting...")
}

// handleSignals only cancels; the monitor observes the cancellation.
func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}
