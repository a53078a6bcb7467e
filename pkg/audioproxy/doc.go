// ABOUTME: High-level audio proxy server API
// ABOUTME: Accepts remote bus devices over WebSocket and backs proxy streams with them
// Package audioproxy serves the audio proxy over the network.
//
// Remote bus devices connect to /busproxy and register an address. Each
// registered device becomes a bus.Device in the proxy registry; streams the
// platform opens on that address are carried to the device as binary audio
// frames plus JSON control requests. When a device disconnects it is evicted
// from the registry, and when it reconnects the open streams are moved onto
// the new connection.
//
// Example:
//
//	registry := proxy.NewRegistry()
//	provider := proxy.NewStreamProvider(registry)
//	server, err := audioproxy.NewServer(audioproxy.ServerConfig{
//	    Port:     8928,
//	    Name:     "Living Room",
//	    Provider: provider,
//	})
//	err = server.Start()
package audioproxy
