package asset

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// WAV content type
const WAVContentType = "audio/wav"

// SilenceWAV returns a 16-bit mono PCM file of the given length.
func SilenceWAV(seconds float64, sampleRate int) []byte {
	if seconds < 0 {
		seconds = 0
	}
	frames := int(seconds * float64(sampleRate))
	dataSize := frames * 2

	var buf bytes.Buffer
	buf.Grow(44 + dataSize)
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))           // fmt chunk size
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))            // PCM
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))            // channels
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))   // sample rate
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2)) // byte rate
	_ = binary.Write(&buf, binary.LittleEndian, uint16(2))            // block align
	_ = binary.Write(&buf, binary.LittleEndian, uint16(16))           // bits per sample
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	buf.Write(make([]byte, dataSize))
	return buf.Bytes()
}

// WAVInfo describes the format of a PCM WAV file
type WAVInfo struct {
	Channels    int
	SampleRate  int
	BitsPerSamp int
	DurationSec float64
}

// ErrNotWAV is returned when the data is not a RIFF/WAVE file
var ErrNotWAV = errors.New("not a WAV file")

// ParseWAV reads the fmt and data chunk headers of a WAV file.
func ParseWAV(r io.Reader) (*WAVInfo, error) {
	var hdr [12]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, ErrNotWAV
	}
	if string(hdr[0:4]) != "RIFF" || string(hdr[8:12]) != "WAVE" {
		return nil, ErrNotWAV
	}

	var (
		info      WAVInfo
		blockSize int
		haveFmt   bool
	)
	for {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			return nil, fmt.Errorf("%w: missing data chunk", ErrNotWAV)
		}
		id := string(chunk[0:4])
		size := int64(binary.LittleEndian.Uint32(chunk[4:8]))

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("%w: short fmt chunk", ErrNotWAV)
			}
			var f [16]byte
			if _, err := io.ReadFull(r, f[:]); err != nil {
				return nil, fmt.Errorf("%w: truncated fmt chunk", ErrNotWAV)
			}
			info.Channels = int(binary.LittleEndian.Uint16(f[2:4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(f[4:8]))
			blockSize = int(binary.LittleEndian.Uint16(f[12:14]))
			info.BitsPerSamp = int(binary.LittleEndian.Uint16(f[14:16]))
			haveFmt = true
			if err := skip(r, size-16+size%2); err != nil {
				return nil, err
			}
		case "data":
			if !haveFmt {
				return nil, fmt.Errorf("%w: data before fmt", ErrNotWAV)
			}
			if info.SampleRate > 0 && blockSize > 0 {
				info.DurationSec = float64(size/int64(blockSize)) / float64(info.SampleRate)
			}
			return &info, nil
		default:
			if err := skip(r, size+size%2); err != nil {
				return nil, err
			}
		}
	}
}

func skip(r io.Reader, n int64) error {
	if n <= 0 {
		return nil
	}
	if _, err := io.CopyN(io.Discard, r, n); err != nil {
		return fmt.Errorf("%w: truncated chunk", ErrNotWAV)
	}
	return nil
}
