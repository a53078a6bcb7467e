// ABOUTME: Bus transport package
// ABOUTME: Defines the output stream contract remote bus devices implement
// Package bus defines the transport a bus device provides for an opened
// output, and the null-object fallback used when no device is available.
//
// A Device opens OutputStreams. Devices that can report their own loss
// additionally implement DeathNotifier.
//
// Example:
//
//	stream, err := device.OpenOutputStream("bus0", cfg, audio.OutputFlagNone)
//	status, err := stream.Write(pcm)
//	err = stream.Close()
package bus
