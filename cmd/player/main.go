package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sourcegraph/conc"
	"gopkg.in/natefinch/lumberjack.v2"

	"mural-service/internal/player"
	"mural-service/internal/rotation"
)

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}
	if lj := setupLogging(cfg.LogFile); lj != nil {
		defer lj.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	display := &player.LogDisplay{VideoLength: cfg.VideoLength}
	var out rotation.Display = display
	var reporter *player.PlayReporter
	if cfg.PlaysURL != "" {
		reporter = player.NewPlayReporter(display, cfg.PlaysURL, cfg.PlayerToken, cfg.PlayerName)
		out = reporter
	}

	ctl := rotation.New(out,
		rotation.WithTransition(cfg.Transition),
		rotation.WithVideoWatchdog(cfg.VideoWatchdog),
		rotation.WithPreserveIndex(cfg.PreserveIndex),
	)
	display.Bind(ctl)

	poller := player.NewPoller(cfg.ManifestURL, ctl, player.WithInterval(cfg.Interval))

	var wg conc.WaitGroup
	wg.Go(func() { logExit("rotation", ctl.Run(ctx)) })
	wg.Go(func() { logExit("poller", poller.Run(ctx)) })
	if reporter != nil {
		wg.Go(func() { logExit("reporter", reporter.Run(ctx)) })
	}
	if cfg.WSURL != "" {
		header := http.Header{}
		if cfg.PlayerToken != "" {
			header.Set("Authorization", "Bearer "+cfg.PlayerToken)
		}
		sub := player.NewSubscriber(cfg.WSURL, poller.Reload, header)
		wg.Go(func() { logExit("push", sub.Run(ctx)) })
	}

	// stdin may never close, so this goroutine is not waited on
	go keys{
		advance:  ctl.Advance,
		reload:   poller.Reload,
		snapshot: ctl.Snapshot,
		quit:     cancel,
		out:      os.Stdout,
	}.run(os.Stdin)

	log.Printf("player: showing %s as %q", cfg.ManifestURL, cfg.PlayerName)
	<-ctx.Done()
	wg.Wait()
	display.Stop()
	log.Printf("player: stopped")
}

func logExit(name string, err error) {
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("player: %s: %v", name, err)
	}
}

func setupLogging(path string) io.Closer {
	if path == "" {
		return nil
	}
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    20,
		MaxBackups: 3,
		MaxAge:     14,
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, lj))
	return lj
}
