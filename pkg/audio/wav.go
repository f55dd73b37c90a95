package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

const (
	bitsPerSample = 16
	wavHeaderSize = 44
	formatPCM     = 1
	formatExt     = 0xFFFE
)

var (
	// ErrNotRIFF is returned when a buffer does not start with a RIFF/WAVE header.
	ErrNotRIFF = errors.New("audio: not a RIFF/WAVE buffer")

	// ErrUnsupportedFormat is returned for WAV encodings other than 16-bit PCM.
	ErrUnsupportedFormat = errors.New("audio: unsupported wav encoding")
)

// Clip is a decoded block of 16-bit little-endian PCM audio.
type Clip struct {
	Format
	PCM []byte
}

// Frames returns the number of sample frames in the clip.
func (c *Clip) Frames() int {
	if c.Channels <= 0 {
		return 0
	}
	return len(c.PCM) / (2 * c.Channels)
}

// Duration returns the playback length of the clip.
func (c *Clip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(c.Frames()) / float64(c.SampleRate) * float64(time.Second))
}

// Seconds returns the playback length in seconds.
func (c *Clip) Seconds() float64 {
	if c.SampleRate <= 0 {
		return 0
	}
	return float64(c.Frames()) / float64(c.SampleRate)
}

// Samples returns the clip down-mixed to mono and scaled to [-1, 1).
func (c *Clip) Samples() []float64 {
	return PCMToFloat64Mono(c.PCM, c.Channels)
}

// WAV encodes the clip as a canonical 44-byte-header WAV file.
func (c *Clip) WAV() []byte {
	return EncodeWAV(c.PCM, c.SampleRate, c.Channels)
}

// HasRIFFHeader reports whether data starts with the RIFF magic.
func HasRIFFHeader(data []byte) bool {
	return len(data) >= 4 && string(data[0:4]) == "RIFF"
}

// DecodeWAV parses a RIFF/WAVE buffer holding 16-bit PCM. Chunks other than
// "fmt " and "data" are skipped. A data chunk whose declared size overruns the
// buffer is truncated to what is present.
func DecodeWAV(data []byte) (*Clip, error) {
	if len(data) < 12 || !HasRIFFHeader(data) || string(data[8:12]) != "WAVE" {
		return nil, ErrNotRIFF
	}

	var (
		clip    Clip
		haveFmt bool
		pcm     []byte
	)
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		end := body + size
		if end > len(data) || end < body {
			end = len(data)
		}

		switch id {
		case "fmt ":
			if end-body < 16 {
				return nil, fmt.Errorf("audio: fmt chunk too short (%d bytes)", end-body)
			}
			tag := binary.LittleEndian.Uint16(data[body : body+2])
			clip.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			clip.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bits := int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			if tag != formatPCM && tag != formatExt {
				return nil, fmt.Errorf("%w: format tag %d", ErrUnsupportedFormat, tag)
			}
			if bits != bitsPerSample {
				return nil, fmt.Errorf("%w: %d bits per sample", ErrUnsupportedFormat, bits)
			}
			if clip.Channels <= 0 || clip.SampleRate <= 0 {
				return nil, fmt.Errorf("%w: %d channels at %d Hz", ErrUnsupportedFormat, clip.Channels, clip.SampleRate)
			}
			haveFmt = true
		case "data":
			pcm = data[body:end]
		}

		// Chunks are word aligned.
		off = end + size%2
		if pcm != nil && haveFmt {
			break
		}
	}

	if !haveFmt {
		return nil, fmt.Errorf("audio: missing fmt chunk")
	}
	if pcm == nil {
		return nil, fmt.Errorf("audio: missing data chunk")
	}
	frame := 2 * clip.Channels
	clip.PCM = pcm[:len(pcm)-len(pcm)%frame]
	return &clip, nil
}

// EncodeWAV wraps 16-bit little-endian PCM in a canonical WAV header.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	bps := bitsPerSample
	byteRate := sampleRate * channels * bps / 8
	blockAlign := channels * bps / 8
	dataSize := len(pcm)

	buf := make([]byte, wavHeaderSize+dataSize)

	// RIFF chunk descriptor
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize)) // file size − 8
	copy(buf[8:12], "WAVE")

	// fmt sub-chunk
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)                 // sub-chunk size (PCM)
	binary.LittleEndian.PutUint16(buf[20:22], formatPCM)          // audio format
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))   // num channels
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate)) // sample rate
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))   // byte rate
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign)) // block align
	binary.LittleEndian.PutUint16(buf[34:36], uint16(bps))        // bits per sample

	// data sub-chunk
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], pcm)

	return buf
}
