// ABOUTME: Audio output package for playing audio
// ABOUTME: Provides Output interface, oto implementation and bus adapter
// Package output provides audio playback interfaces.
//
// Oto drives the system audio device. BusStream wraps any Output so a bus
// device can back an opened stream with local playback.
//
// Example:
//
//	stream, err := output.NewBusStream(output.NewOto(), "bus0", cfg, flags, 20)
//	status, err := stream.Write(pcm)
package output
