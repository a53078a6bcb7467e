// ABOUTME: Bus proxy wire protocol package
// ABOUTME: Defines protocol messages and the device-side WebSocket client
// Package protocol implements the wire protocol between the audio proxy and
// remote bus devices.
//
// A device connects to the proxy's /busproxy endpoint and registers an
// address with device/hello. The proxy then opens streams and sends control
// commands as JSON requests, and streams audio as binary frames. The device
// answers each request with stream/reply and reports playback position with
// stream/status.
//
// Example:
//
//	client := protocol.NewClient(protocol.Config{
//		ProxyAddr: "localhost:8928",
//		Address:   "bus0",
//		Handler:   handler,
//	})
//	err := client.Connect()
//	<-client.Done()
package protocol
