package resample

import (
	"testing"

	"github.com/airloom/showmix/pkg/audio/pcm"
)

func TestConvertSameFormatCopies(t *testing.T) {
	in := []byte{1, 2, 3, 4}
	out, err := Convert(in, pcm.Mono24K, pcm.Mono24K)
	if err != nil {
		t.Fatal(err)
	}
	if &out[0] == &in[0] {
		t.Error("expected a copy, got aliased buffer")
	}
	if len(out) != len(in) {
		t.Errorf("len = %d, want %d", len(out), len(in))
	}
}

func TestMonoToStereo(t *testing.T) {
	// Two mono frames: 0x0102, 0x0304.
	in := []byte{0x02, 0x01, 0x04, 0x03}
	out, err := Convert(in, pcm.Format{Rate: 44100, Channels: 1}, pcm.Format{Rate: 44100, Channels: 2})
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0x02, 0x01, 0x02, 0x01, 0x04, 0x03, 0x04, 0x03}
	if len(out) != len(want) {
		t.Fatalf("len = %d, want %d", len(out), len(want))
	}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("out[%d] = %#x, want %#x", i, out[i], want[i])
		}
	}
}

func TestStereoToMonoAverages(t *testing.T) {
	// One stereo frame: L=100, R=200 -> mono 150.
	in := make([]byte, 4)
	in[0], in[1] = 100, 0
	in[2], in[3] = 200, 0
	out, err := Convert(in, pcm.Format{Rate: 44100, Channels: 2}, pcm.Format{Rate: 44100, Channels: 1})
	if err != nil {
		t.Fatal(err)
	}
	got := int16(out[0]) | int16(out[1])<<8
	if got != 150 {
		t.Errorf("mono sample = %d, want 150", got)
	}
}

func TestRateConversionDuration(t *testing.T) {
	src := pcm.Mono24K
	dst := pcm.Format{Rate: 44100, Channels: 1}
	in := src.Silence(500_000_000) // 500ms
	out, err := Convert(in, src, dst)
	if err != nil {
		t.Fatal(err)
	}
	got := dst.Duration(len(out))
	// Sinc resamplers may hold back a few tail samples; allow 20ms slack.
	diff := got - 500_000_000
	if diff < 0 {
		diff = -diff
	}
	if diff > 20_000_000 {
		t.Errorf("duration after resample = %v, want ~500ms", got)
	}
}
