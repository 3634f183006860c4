// Command ztalk runs the voice streaming client: it captures microphone
// audio, streams VAD-gated utterances to the conversation service, and
// plays the synthesized replies.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gsSaber/ztalk/internal/config"
	"github.com/gsSaber/ztalk/internal/log"
	"github.com/gsSaber/ztalk/pkg/audio"
	"github.com/gsSaber/ztalk/pkg/client"
	"github.com/gsSaber/ztalk/pkg/transport"
	"github.com/gsSaber/ztalk/pkg/vad"
	"github.com/gsSaber/ztalk/pkg/web"
)

func main() {
	configPath := flag.String("config", "ztalk.yaml", "Path to YAML config file")
	server := flag.String("server", "", "Conversation service websocket URL (overrides config)")
	monitor := flag.String("monitor", "", "Monitor dashboard listen address (overrides config)")
	captureDev := flag.String("capture-device", "", "ALSA capture device")
	playbackDev := flag.String("playback-device", "", "ALSA playback device")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ztalk: %v\n", err)
		os.Exit(1)
	}
	if *server != "" {
		cfg.Server = *server
	}
	if *monitor != "" {
		cfg.Monitor = *monitor
	}

	log.Init(cfg.LogLevel)
	logger := log.L()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutting down")
		cancel()
	}()

	source := audio.NewALSASource(*captureDev, cfg.Audio.CaptureRate, cfg.Audio.FrameSize(), logger)
	output := audio.NewALSAOutput(*playbackDev, cfg.Audio.OutputRate, logger)

	detector := vad.NewThreshold(vad.ThresholdConfig{
		SpeechThreshold: cfg.VAD.SpeechThreshold,
		StartFrames:     vad.DefaultThresholdConfig().StartFrames,
		EndFrames:       vad.DefaultThresholdConfig().EndFrames,
	}, vad.NewEnergyModel(), logger)

	channel := transport.NewChannel(transport.DefaultChannelConfig(cfg.Server), logger)

	clientCfg := client.DefaultConfig()
	clientCfg.Segmenter.PreRollFrames = cfg.VAD.PreRollFrames
	clientCfg.Segmenter.SilenceThreshold = cfg.VAD.SilenceThreshold
	clientCfg.Segmenter.SilenceFrames = cfg.VAD.SilenceFrames
	clientCfg.SynthesisRate = cfg.Audio.SynthesisRate

	c := client.New(channel, source, detector, output, clientCfg, logger)

	var mon *web.Server
	if cfg.Monitor != "" {
		mon = web.NewServer(cfg.Monitor, c.Session(), logger)
		mon.StartAsync()
	}

	if err := c.Start(ctx); err != nil {
		logger.Error("client start failed", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()

	if err := c.Stop(); err != nil {
		logger.Warn("client stop failed", "error", err)
	}
	if mon != nil {
		if err := mon.Shutdown(); err != nil {
			logger.Warn("monitor shutdown failed", "error", err)
		}
	}
}
