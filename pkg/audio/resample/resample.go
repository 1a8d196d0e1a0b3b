// Package resample converts whole PCM buffers between formats: sample rate
// conversion through a windowed-sinc resampler and mono/stereo channel
// conversion. Clips are short (seconds, not hours), so the package works on
// complete buffers rather than streams.
package resample

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"

	"github.com/airloom/showmix/pkg/audio/pcm"
)

// Convert converts src-format PCM data to dst format. Channel conversion is
// applied first so the rate converter always runs at the destination channel
// count. The input buffer is not modified.
func Convert(data []byte, src, dst pcm.Format) ([]byte, error) {
	if src == dst {
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	}

	switch {
	case src.Channels == 2 && dst.Channels == 1:
		data = stereoToMono(data)
	case src.Channels == 1 && dst.Channels == 2:
		data = monoToStereo(data)
	case src.Channels != dst.Channels:
		return nil, fmt.Errorf("resample: unsupported channel conversion %d -> %d", src.Channels, dst.Channels)
	default:
		// Same channel count; copy so rate conversion never aliases the input.
		cp := make([]byte, len(data))
		copy(cp, data)
		data = cp
	}

	if src.Rate == dst.Rate {
		return data, nil
	}
	return convertRate(data, src.Rate, dst.Rate, dst.Channels)
}

// convertRate runs the windowed-sinc resampler over interleaved int16 data.
func convertRate(data []byte, srcRate, dstRate, channels int) ([]byte, error) {
	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(srcRate),
		OutputRate: float64(dstRate),
		Channels:   channels,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("resample: %w", err)
	}

	samples := len(data) / 2
	input := make([]float64, samples)
	for i := 0; i < samples; i++ {
		input[i] = float64(int16(data[i*2])|int16(data[i*2+1])<<8) / 32768.0
	}

	output, err := rs.Process(input)
	if err != nil {
		return nil, fmt.Errorf("resample: process: %w", err)
	}

	// Align to whole frames.
	frames := len(output) / channels
	out := make([]byte, frames*channels*2)
	for i := 0; i < frames*channels; i++ {
		v := output[i]
		var s int16
		switch {
		case v >= 1.0:
			s = 32767
		case v <= -1.0:
			s = -32768
		default:
			s = int16(v * 32767.0)
		}
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out, nil
}

// stereoToMono averages L and R into a new mono buffer.
func stereoToMono(b []byte) []byte {
	frames := len(b) / 4
	out := make([]byte, frames*2)
	for i := 0; i < frames; i++ {
		j := i * 4
		l := int16(b[j]) | int16(b[j+1])<<8
		r := int16(b[j+2]) | int16(b[j+3])<<8
		m := int16((int32(l) + int32(r)) / 2)
		out[i*2] = byte(m)
		out[i*2+1] = byte(m >> 8)
	}
	return out
}

// monoToStereo duplicates each sample into both channels.
func monoToStereo(b []byte) []byte {
	frames := len(b) / 2
	out := make([]byte, frames*4)
	for i := 0; i < frames; i++ {
		s0, s1 := b[i*2], b[i*2+1]
		j := i * 4
		out[j], out[j+1] = s0, s1
		out[j+2], out[j+3] = s0, s1
	}
	return out
}
