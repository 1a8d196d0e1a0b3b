// Package pcm provides raw audio format math for 16-bit signed little-endian
// PCM streams: sample/byte/duration conversion, silence generation, and
// int16 <-> float32 sample conversion used by the mixing layer.
package pcm

import (
	"fmt"
	"time"
)

// Format describes a raw PCM stream. Samples are always 16-bit signed
// little-endian; only rate and channel count vary.
type Format struct {
	// Rate is the sample rate in Hz (e.g. 24000, 44100).
	Rate int

	// Channels is the number of interleaved channels (1 or 2).
	Channels int
}

// Common formats.
var (
	// Mono16K is the format used by low-rate speech models.
	Mono16K = Format{Rate: 16000, Channels: 1}

	// Mono24K is the default synthesis output format.
	Mono24K = Format{Rate: 24000, Channels: 1}

	// Stereo44K1 is the broadcast output format for mixed shows.
	Stereo44K1 = Format{Rate: 44100, Channels: 2}
)

// BytesPerFrame returns the number of bytes in one frame (one sample per
// channel).
func (f Format) BytesPerFrame() int {
	return 2 * f.Channels
}

// BytesRate returns the byte rate of the stream.
func (f Format) BytesRate() int {
	return f.Rate * f.BytesPerFrame()
}

// Frames returns the number of frames in the given number of bytes.
func (f Format) Frames(bytes int) int {
	return bytes / f.BytesPerFrame()
}

// FramesInDuration returns the number of frames in the given duration.
func (f Format) FramesInDuration(d time.Duration) int {
	return int(time.Duration(f.Rate) * d / time.Second)
}

// BytesInDuration returns the number of bytes in the given duration,
// aligned to a whole frame.
func (f Format) BytesInDuration(d time.Duration) int {
	return f.FramesInDuration(d) * f.BytesPerFrame()
}

// Duration returns the play time of the given number of bytes.
func (f Format) Duration(bytes int) time.Duration {
	return time.Duration(f.Frames(bytes)) * time.Second / time.Duration(f.Rate)
}

// Silence returns a zeroed buffer holding the given duration of audio.
func (f Format) Silence(d time.Duration) []byte {
	return make([]byte, f.BytesInDuration(d))
}

// String returns the MIME-style description of the format.
func (f Format) String() string {
	return fmt.Sprintf("audio/L16; rate=%d; channels=%d", f.Rate, f.Channels)
}

// Stereo reports whether the format has two channels.
func (f Format) Stereo() bool {
	return f.Channels == 2
}

// Sample converts the little-endian int16 sample at b[i:] to a float32 in
// [-1, 1]. Positive values divide by 32767, negative by 32768, matching the
// inverse of FromSample.
func Sample(b []byte, i int) float32 {
	s := float32(int16(b[i]) | int16(b[i+1])<<8)
	if s >= 0 {
		return s / 32767
	}
	return s / 32768
}

// FromSample converts a float32 sample in [-1, 1] to little-endian int16
// bytes at b[i:]. Values outside [-1, 1] are clipped.
func FromSample(b []byte, i int, v float32) {
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	var s int16
	if v >= 0 {
		s = int16(v * 32767)
	} else {
		s = int16(v * 32768)
	}
	b[i] = byte(s)
	b[i+1] = byte(s >> 8)
}
