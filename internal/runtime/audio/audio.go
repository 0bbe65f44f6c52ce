package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	// DefaultSampleRate is the capture rate assumed when a client sends none.
	DefaultSampleRate = 16000
	bitsPerSample     = 16
	wavHeaderBytes    = 44
)

// Chunk is one captured slice of PCM16 mono audio, or an opaque container
// the client already encoded.
type Chunk struct {
	Sequence   int
	Data       []byte
	SampleRate int
	// Duration is the client-reported or computed length in seconds.
	Duration float64
}

// Source yields chunks on demand. Next returns false once the source is
// exhausted or ctx is done.
type Source interface {
	Next(ctx context.Context) (Chunk, bool)
}

// BytesSource splits a PCM16 mono payload into fixed-duration chunks.
type BytesSource struct {
	data       []byte
	sampleRate int
	chunkBytes int
	offset     int
	sequence   int
}

// NewBytesSource chunks pcm at chunkDuration. A non-positive duration yields one chunk.
func NewBytesSource(pcm []byte, sampleRate int, chunkDuration time.Duration) *BytesSource {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	chunkBytes := len(pcm)
	if chunkDuration > 0 {
		chunkBytes = int(float64(sampleRate*bitsPerSample/8) * chunkDuration.Seconds())
		chunkBytes -= chunkBytes % 2
		if chunkBytes < 2 {
			chunkBytes = 2
		}
	}
	return &BytesSource{data: pcm, sampleRate: sampleRate, chunkBytes: chunkBytes}
}

// Next implements Source.
func (s *BytesSource) Next(ctx context.Context) (Chunk, bool) {
	if ctx.Err() != nil || s.offset >= len(s.data) || s.chunkBytes == 0 {
		return Chunk{}, false
	}
	end := min(s.offset+s.chunkBytes, len(s.data))
	data := s.data[s.offset:end]
	s.offset = end
	s.sequence++
	return Chunk{
		Sequence:   s.sequence,
		Data:       data,
		SampleRate: s.sampleRate,
		Duration:   PCMDuration(len(data), s.sampleRate),
	}, true
}

// Format describes a PCM WAV stream.
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// ParseWAV reads a canonical PCM16 mono WAV file and returns its samples.
func ParseWAV(data []byte) (Format, []byte, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Format{}, nil, errors.New("not a RIFF/WAVE payload")
	}
	var (
		format    Format
		sawFormat bool
	)
	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		if body+size > len(data) {
			size = len(data) - body
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return Format{}, nil, errors.New("wav fmt chunk too short")
			}
			if audioFormat := binary.LittleEndian.Uint16(data[body : body+2]); audioFormat != 1 {
				return Format{}, nil, fmt.Errorf("unsupported wav audio format %d", audioFormat)
			}
			format = Format{
				Channels:      int(binary.LittleEndian.Uint16(data[body+2 : body+4])),
				SampleRate:    int(binary.LittleEndian.Uint32(data[body+4 : body+8])),
				BitsPerSample: int(binary.LittleEndian.Uint16(data[body+14 : body+16])),
			}
			sawFormat = true
		case "data":
			if !sawFormat {
				return Format{}, nil, errors.New("wav data chunk before fmt chunk")
			}
			if format.BitsPerSample != bitsPerSample || format.Channels != 1 {
				return Format{}, nil, fmt.Errorf("unsupported wav layout: %d channels at %d bits", format.Channels, format.BitsPerSample)
			}
			return format, data[body : body+size], nil
		}
		offset = body + size + size%2
	}
	return Format{}, nil, errors.New("wav data chunk not found")
}

// NewWAVSource parses a WAV payload and chunks its samples.
func NewWAVSource(data []byte, chunkDuration time.Duration) (*BytesSource, error) {
	format, pcm, err := ParseWAV(data)
	if err != nil {
		return nil, err
	}
	return NewBytesSource(pcm, format.SampleRate, chunkDuration), nil
}

// IsWAV reports whether data carries a RIFF/WAVE header.
func IsWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

// EncodeWAV wraps PCM16 mono samples in a 44-byte WAV header.
func EncodeWAV(pcm []byte, sampleRate int) []byte {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	const channels = 1
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	header := make([]byte, wavHeaderBytes)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+len(pcm)))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1)
	binary.LittleEndian.PutUint16(header[22:24], channels)
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], bitsPerSample)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(len(pcm)))
	return append(header, pcm...)
}

// AsWAV returns data unchanged when it is already a WAV container, otherwise
// treats it as PCM16 mono and wraps it.
func AsWAV(data []byte, sampleRate int) []byte {
	if IsWAV(data) {
		return data
	}
	return EncodeWAV(data, sampleRate)
}

// PCMDuration returns the length in seconds of n PCM16 mono bytes.
func PCMDuration(n int, sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return float64(n/2) / float64(sampleRate)
}

// RMSLevel returns the root-mean-square level of PCM16 samples in [0,1].
func RMSLevel(pcm []byte) float64 {
	samples := len(pcm) / 2
	if samples == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < samples; i++ {
		v := float64(int16(binary.LittleEndian.Uint16(pcm[2*i:]))) / 32768
		sum += v * v
	}
	return math.Sqrt(sum / float64(samples))
}
