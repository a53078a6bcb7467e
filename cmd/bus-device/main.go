// ABOUTME: Bus device that plays proxy streams on the local sound card
// ABOUTME: Registers an address with a proxy found by flag or mDNS and reconnects on loss
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

	"github.com/Sendspin/audio-proxy/internal/discovery"
	"github.com/Sendspin/audio-proxy/internal/logging"
	"github.com/Sendspin/audio-proxy/internal/version"
	"github.com/Sendspin/audio-proxy/pkg/audio"
	"github.com/Sendspin/audio-proxy/pkg/audio/output"
	"github.com/Sendspin/audio-proxy/pkg/bus"
	"github.com/Sendspin/audio-proxy/pkg/protocol"
	"github.com/spf13/pflag"
)

type options struct {
	proxyAddr string
	address   string
	name      string
	windowMs  int
	codecs    []string
	retry     time.Duration
	logLevel  string
	logFile   string
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := pflag.NewFlagSet("bus-device", pflag.ContinueOnError)
	fs.StringVar(&o.proxyAddr, "proxy", "", "Proxy host:port (default: discover over mDNS)")
	fs.StringVar(&o.address, "address", "bus0", "Bus address to register")
	fs.StringVar(&o.name, "name", "", "Device name (default: hostname)")
	fs.IntVar(&o.windowMs, "window-ms", 20, "Write capacity reported to the proxy, in milliseconds")
	fs.StringSliceVar(&o.codecs, "codecs", []string{protocol.CodecPCM, protocol.CodecOpus}, "Codecs to accept")
	fs.DurationVar(&o.retry, "retry", 2*time.Second, "Delay between reconnect attempts")
	fs.StringVar(&o.logLevel, "log-level", "info", "none, error, warn, info or debug")
	fs.StringVar(&o.logFile, "log-file", "", "Write JSON logs to this file")
	if err := fs.Parse(args); err != nil {
		return o, err
	}

	if o.address == "" {
		return o, errors.New("--address is required")
	}
	if o.windowMs <= 0 {
		return o, fmt.Errorf("--window-ms must be positive, got %d", o.windowMs)
	}
	if o.name == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		o.name = hostname + "-" + o.address
	}
	return o, nil
}

func main() {
	o, err := parseFlags(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "bus-device: %v\n", err)
		os.Exit(2)
	}

	logFile, err := logging.Configure(o.logLevel, o.logFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bus-device: %v\n", err)
		os.Exit(1)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handler := protocol.HandlerFunc(func(address string, config audio.StreamConfig, flags audio.OutputFlags) (bus.OutputStream, error) {
		return output.NewBusStream(output.NewOto(), address, config, flags, o.windowMs)
	})

	for {
		proxyAddr, err := resolveProxy(ctx, o.proxyAddr)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("no proxy available", "error", err)
		} else if err := serve(ctx, o, proxyAddr, handler); err != nil {
			if errors.Is(err, protocol.ErrRejected) {
				slog.Error("proxy refused this address", "address", o.address, "error", err)
			} else {
				slog.Warn("proxy session ended", "error", err)
			}
		}

		select {
		case <-ctx.Done():
			slog.Info("bus device stopped")
			return
		case <-time.After(o.retry):
		}
	}
}

// resolveProxy returns the configured proxy or the first one found over mDNS
func resolveProxy(ctx context.Context, configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}

	slog.Info("searching for proxy over mDNS")
	disc := discovery.NewManager(discovery.Config{})
	defer disc.Stop()
	disc.Browse()

	select {
	case p := <-disc.Proxies():
		slog.Info("discovered proxy", "name", p.Name, "addr", p.Addr())
		return p.Addr(), nil
	case <-time.After(10 * time.Second):
		return "", errors.New("no proxy found after 10 seconds")
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// serve holds one proxy session until the connection drops or ctx ends
func serve(ctx context.Context, o options, proxyAddr string, handler protocol.Handler) error {
	client := protocol.NewClient(protocol.Config{
		ProxyAddr:       proxyAddr,
		Address:         o.address,
		Name:            o.name,
		SupportedCodecs: o.codecs,
		Handler:         handler,
		DeviceInfo: protocol.DeviceInfo{
			ProductName:     version.Product + " Bus Device",
			Manufacturer:    version.Manufacturer,
			SoftwareVersion: version.Version,
		},
	})

	if err := client.Connect(); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		if err := client.SendGoodbye("shutdown"); err != nil {
			slog.Debug("failed to send goodbye", "error", err)
		}
		client.Close()
		<-client.Done()
		return nil
	case <-client.Done():
		return errors.New("connection lost")
	}
}
