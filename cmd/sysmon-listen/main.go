// Command sysmon-listen prints every summary published by a running monitor.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"codeberg.org/mutker/sysmon/internal/config"
	"codeberg.org/mutker/sysmon/internal/errors"
	"codeberg.org/mutker/sysmon/internal/ipc"
	"codeberg.org/mutker/sysmon/internal/logger"
	"github.com/spf13/pflag"
)

func main() {
	d := config.Default()
	fs := pflag.NewFlagSet("sysmon-listen", pflag.ContinueOnError)
	dir := fs.String("channel-dir", d.ChannelDir, "Directory holding the summary channel")
	msgSize := fs.Int("channel-msg-size", d.ChannelMsgSize, "Summary frame size in bytes")
	level := fs.String("log-level", "warning", "Log level (debug, info, warning, error)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: sysmon-listen [flags] [channel]\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		os.Exit(2)
	}

	logger.Init(*level, logger.IsService())

	name := d.Channel
	if fs.NArg() > 0 {
		name = fs.Arg(0)
	}

	sub, err := ipc.Open(name, ipc.Options{Dir: *dir, MsgSize: *msgSize})
	if err != nil {
		logger.Fatal().Err(err).Str("channel", name).Msg("Cannot open summary channel")
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		sub.Close()
	}()

	logger.Info().Str("channel", name).Msg("Listening for summaries")
	for {
		msg, err := sub.Receive()
		if err != nil {
			if !errors.HasCode(err, ipc.ErrClosed) {
				logger.Error().Err(err).Msg("Receive failed")
			}
			break
		}
		fmt.Printf("[Summary] %s\n", msg)
	}
	logger.Info().Msg("Listener stopped")
}
