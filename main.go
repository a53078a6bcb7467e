// ABOUTME: Entry point for the audio proxy service
// ABOUTME: Loads config, serves bus devices and optionally plays a local source
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sendspin/audio-proxy/internal/config"
	"github.com/Sendspin/audio-proxy/internal/logging"
	"github.com/Sendspin/audio-proxy/internal/ui"
	"github.com/Sendspin/audio-proxy/internal/version"
	"github.com/Sendspin/audio-proxy/pkg/audioproxy"
	"github.com/Sendspin/audio-proxy/pkg/proxy"
	"github.com/Sendspin/audio-proxy/pkg/source"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "audio-proxy: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	logFile, err := logging.Configure(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	if logFile != nil {
		defer logFile.Close()
	}

	slog.Info("starting audio proxy", "name", cfg.Name, "version", version.Version, "port", cfg.Port)

	provider := proxy.NewStreamProvider(proxy.NewRegistry())
	factory, err := proxy.NewDevicesFactory(provider, proxy.Options{
		Name:         cfg.Name,
		BufferSizeMs: cfg.BufferSizeMs,
		LatencyMs:    cfg.LatencyMs,
	})
	if err != nil {
		return err
	}

	server, err := audioproxy.NewServer(audioproxy.ServerConfig{
		Port:           cfg.Port,
		Name:           cfg.Name,
		Provider:       provider,
		RequestTimeout: cfg.RequestTimeout(),
		EnableMDNS:     cfg.MDNS,
	})
	if err != nil {
		return err
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var player *localPlayer
	if cfg.Play.Address != "" {
		player, err = startPlayer(ctx, factory, cfg.Play)
		if err != nil {
			server.Stop()
			<-serverErr
			return err
		}
	}

	var quit <-chan struct{}
	if cfg.TUI {
		tui := ui.NewTUI(snapshot(server, cfg, player))
		quit = tui.Quit()
		go func() {
			if err := tui.Run(); err != nil {
				slog.Error("tui failed", "error", err)
			}
		}()
		go func() {
			ticker := time.NewTicker(500 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					tui.Stop()
					return
				case <-ticker.C:
					tui.Update(snapshot(server, cfg, player))
				}
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-sigChan:
		slog.Info("shutdown signal received")
	case <-quit:
		slog.Info("quit requested from tui")
	case runErr = <-serverErr:
		serverErr = nil
	}

	cancel()
	if player != nil {
		player.stop()
	}

	if serverErr != nil {
		server.Stop()
		runErr = <-serverErr
	}
	provider.Registry().RemoveAll()

	slog.Info("audio proxy stopped")
	return runErr
}

// localPlayer feeds a local source into one proxy stream
type localPlayer struct {
	device *proxy.OutputDevice
	stream *proxy.StreamOut
	src    source.AudioSource
	done   chan struct{}
}

func startPlayer(ctx context.Context, factory *proxy.DevicesFactory, play config.Play) (*localPlayer, error) {
	device, err := factory.OpenDevice(proxy.PrimaryDeviceName)
	if err != nil {
		return nil, err
	}

	src, err := source.Open(play.Source)
	if err != nil {
		return nil, err
	}

	stream, err := device.OpenOutputStream(
		proxy.DeviceAddress{Type: proxy.DeviceTypeOutBus, Address: play.Address},
		proxy.RequestedConfig{
			Format:       "AUDIO_FORMAT_PCM_16_BIT",
			SampleRateHz: source.DefaultSampleRate,
			ChannelMask:  "AUDIO_CHANNEL_OUT_STEREO",
		},
		[]string{"AUDIO_OUTPUT_FLAG_PRIMARY"},
	)
	if err != nil {
		src.Close()
		return nil, err
	}

	feeder, err := source.NewFeeder(src, stream)
	if err != nil {
		stream.Close()
		src.Close()
		return nil, err
	}

	p := &localPlayer{device: device, stream: stream, src: src, done: make(chan struct{})}
	go func() {
		defer close(p.done)
		if err := feeder.Run(ctx); err != nil {
			slog.Error("playback stopped", "address", play.Address, "error", err)
		}
	}()
	return p, nil
}

func (p *localPlayer) title() string {
	title, artist, _ := p.src.Metadata()
	if artist != "" {
		return artist + " - " + title
	}
	return title
}

func (p *localPlayer) stop() {
	<-p.done
	if err := p.stream.Close(); err != nil {
		slog.Warn("failed to close playback stream", "error", err)
	}
	if err := p.device.Close(); err != nil {
		slog.Warn("failed to close device", "error", err)
	}
	p.src.Close()
}

func snapshot(server *audioproxy.Server, cfg config.Config, player *localPlayer) ui.Snapshot {
	s := ui.Snapshot{Status: server.Status(), Port: cfg.Port}
	if player != nil {
		s.Playing = fmt.Sprintf("%s → %s", player.title(), cfg.Play.Address)
	}
	return s
}
