// ABOUTME: Audio proxy core package
// ABOUTME: Registry, device facade and hot-swappable stream facade
// Package proxy lets remote bus devices back outputs that callers treat as
// ordinary local devices.
//
// A Registry maps bus addresses to live devices and evicts them when they
// die. An OutputDevice validates open requests and hands out StreamOut
// facades. A StreamOut keeps its identity and audio configuration for its
// whole life while the transport behind it can be replaced, for example
// after the remote device process restarts and registers again.
//
// Example:
//
//	registry := proxy.NewRegistry()
//	provider := proxy.NewStreamProvider(registry)
//	factory, err := proxy.NewDevicesFactory(provider, proxy.Options{Name: "bus", BufferSizeMs: 20, LatencyMs: 40})
//	dev, err := factory.OpenDevice("bus")
//	out, err := dev.OpenOutputStream(
//		proxy.DeviceAddress{Type: proxy.DeviceTypeOutBus, Address: "bus0"},
//		proxy.RequestedConfig{Format: "AUDIO_FORMAT_PCM_16_BIT", SampleRateHz: 48000, ChannelMask: "AUDIO_CHANNEL_OUT_STEREO"},
//		nil)
package proxy
