// Command sysmonctl inspects and controls a running monitor.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"codeberg.org/mutker/sysmon/internal/config"
	"codeberg.org/mutker/sysmon/internal/errors"
	"codeberg.org/mutker/sysmon/internal/logger"
	"codeberg.org/mutker/sysmon/internal/pid"
	"codeberg.org/mutker/sysmon/internal/rotate"
	"github.com/spf13/pflag"
)

const usage = `Usage: sysmonctl [flags] <command>

Commands:
  status    report whether the monitor is running
  stop      ask the running monitor to shut down
  cleanup   remove old log files (--days N, default 5)

Flags:
`

func main() {
	fs := config.Flags()
	fs.Init("sysmonctl", pflag.ContinueOnError)
	days := fs.Int("days", rotate.DefaultDays, "cleanup: remove log files older than this many days")
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		fs.PrintDefaults()
	}
	cfg, err := config.Load(os.Args[1:], config.WithFlagSet(fs))
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}
	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(2)
	}
	logger.Init(cfg.LogLevel, false)

	switch cmd := fs.Arg(0); cmd {
	case "status":
		os.Exit(status(cfg))
	case "stop":
		os.Exit(stop(cfg))
	case "cleanup":
		os.Exit(cleanup(cfg, *days))
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		fs.Usage()
		os.Exit(2)
	}
}

func status(cfg *config.Config) int {
	p, err := pid.Read(cfg.PIDFile)
	if err != nil || !pid.Alive(p) {
		fmt.Println("Monitor is not running.")
		return 1
	}
	fmt.Printf("Monitor is running (pid %d).\n", p)
	return 0
}

func stop(cfg *config.Config) int {
	p, err := pid.Read(cfg.PIDFile)
	if err != nil || !pid.Alive(p) {
		fmt.Println("Monitor is not running.")
		return 1
	}

	if err := syscall.Kill(p, syscall.SIGINT); err != nil {
		logger.Error().Err(err).Int("pid", p).Msg("Failed to signal monitor")
		return 1
	}
	fmt.Printf("Stop requested (pid %d).\n", p)
	return 0
}

func cleanup(cfg *config.Config, days int) int {
	dir := filepath.Dir(cfg.LogPath)
	removed, err := rotate.Prune(dir, rotate.Options{
		MaxAge: time.Duration(days) * 24 * time.Hour,
		Keep:   cfg.LogPath,
	})
	if err != nil {
		logger.Error().Err(err).Str("dir", dir).Msg("Cleanup failed")
		return 1
	}

	for _, path := range removed {
		fmt.Println("Removed", path)
	}
	fmt.Printf("Cleanup done: %d file(s) older than %d day(s) removed from %s.\n", len(removed), days, dir)
	return 0
}
