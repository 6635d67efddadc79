// Command inkwelld runs the ingestion daemon: it watches the inbox,
// debounces arrivals, and turns them into vault notes.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"inkwell/internal/config"
	"inkwell/internal/daemon"
	"inkwell/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, resolvedPath, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	hub := logging.NewStreamHub(256)
	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		OutputPaths: []string{
			"stdout",
			filepath.Join(cfg.Paths.LogDir, "inkwelld.log"),
		},
		Stream: hub,
	})
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	logger.Info("configuration loaded", logging.String("path", resolvedPath))

	d, err := daemon.New(cfg, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		os.Exit(1)
	}
	if err := d.Run(ctx); err != nil {
		logger.Error("daemon exited", logging.Error(err))
		dumpRecent(hub)
		os.Exit(1)
	}
}

// dumpRecent writes the buffered tail of the log to stderr so an abnormal
// exit leaves a trace even when file logging was the thing that broke.
func dumpRecent(hub *logging.StreamHub) {
	events := hub.Recent(20)
	if len(events) == 0 {
		return
	}
	fmt.Fprintln(os.Stderr, "last log events:")
	for _, evt := range events {
		fmt.Fprintf(os.Stderr, "  %s %-5s %s\n",
			evt.Timestamp.Format("15:04:05"), evt.Level, evt.Message)
	}
}
