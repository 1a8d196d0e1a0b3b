// Package wav reads and writes RIFF/WAVE containers around 16-bit PCM data.
// Speech clips arrive from the synthesis provider and jingle beds are stored
// as WAV; mixed shows leave as WAV.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/airloom/showmix/pkg/audio/pcm"
)

const (
	riffHeaderSize = 44
	formatPCM      = 1
)

// ErrNotWave is returned when the input is not a RIFF/WAVE stream.
var ErrNotWave = errors.New("wav: not a RIFF/WAVE stream")

// Encode writes format and data as a complete WAV file.
func Encode(w io.Writer, format pcm.Format, data []byte) error {
	var hdr [riffHeaderSize]byte

	copy(hdr[0:4], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(36+len(data)))
	copy(hdr[8:12], "WAVE")

	copy(hdr[12:16], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:20], 16)
	binary.LittleEndian.PutUint16(hdr[20:22], formatPCM)
	binary.LittleEndian.PutUint16(hdr[22:24], uint16(format.Channels))
	binary.LittleEndian.PutUint32(hdr[24:28], uint32(format.Rate))
	binary.LittleEndian.PutUint32(hdr[28:32], uint32(format.BytesRate()))
	binary.LittleEndian.PutUint16(hdr[32:34], uint16(format.BytesPerFrame()))
	binary.LittleEndian.PutUint16(hdr[34:36], 16)

	copy(hdr[36:40], "data")
	binary.LittleEndian.PutUint32(hdr[40:44], uint32(len(data)))

	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("wav: write header: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("wav: write data: %w", err)
	}
	return nil
}

// Decode reads a WAV stream and returns its format and PCM payload.
// Only 16-bit PCM is accepted; chunks other than fmt and data are skipped.
func Decode(r io.Reader) (pcm.Format, []byte, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return pcm.Format{}, nil, fmt.Errorf("wav: read header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return pcm.Format{}, nil, ErrNotWave
	}

	var (
		format  pcm.Format
		haveFmt bool
	)
	for {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return pcm.Format{}, nil, errors.New("wav: missing data chunk")
			}
			return pcm.Format{}, nil, fmt.Errorf("wav: read chunk: %w", err)
		}
		id := string(chunk[0:4])
		size := binary.LittleEndian.Uint32(chunk[4:8])

		switch id {
		case "fmt ":
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil {
				return pcm.Format{}, nil, fmt.Errorf("wav: read fmt: %w", err)
			}
			if len(body) < 16 {
				return pcm.Format{}, nil, errors.New("wav: short fmt chunk")
			}
			if audioFormat := binary.LittleEndian.Uint16(body[0:2]); audioFormat != formatPCM {
				return pcm.Format{}, nil, fmt.Errorf("wav: unsupported audio format %d", audioFormat)
			}
			if bits := binary.LittleEndian.Uint16(body[14:16]); bits != 16 {
				return pcm.Format{}, nil, fmt.Errorf("wav: unsupported bit depth %d", bits)
			}
			format = pcm.Format{
				Channels: int(binary.LittleEndian.Uint16(body[2:4])),
				Rate:     int(binary.LittleEndian.Uint32(body[4:8])),
			}
			haveFmt = true

		case "data":
			if !haveFmt {
				return pcm.Format{}, nil, errors.New("wav: data chunk before fmt")
			}
			data := make([]byte, size)
			if _, err := io.ReadFull(r, data); err != nil {
				return pcm.Format{}, nil, fmt.Errorf("wav: read data: %w", err)
			}
			return format, data, nil

		default:
			// Skip LIST, fact, and other metadata chunks. Chunk bodies are
			// word aligned.
			skip := int64(size)
			if skip%2 == 1 {
				skip++
			}
			if _, err := io.CopyN(io.Discard, r, skip); err != nil {
				return pcm.Format{}, nil, fmt.Errorf("wav: skip %s chunk: %w", id, err)
			}
		}
	}
}
