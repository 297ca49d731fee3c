package audio

import (
	"encoding/binary"
	"math"
	"time"
)

const (
	wavBitDepth  = 16
	wavChannels  = 1
	wavHeaderLen = 44
	maxPCM16     = 32768.0
)

// Buffer holds the decoded samples for a single input file. One buffer maps
// to one file and is only ever handled by one pipeline run at a time.
type Buffer struct {
	Samples    []float32
	SampleRate int
}

func (b Buffer) Empty() bool {
	return len(b.Samples) == 0
}

func (b Buffer) Duration() time.Duration {
	if b.SampleRate == 0 {
		return 0
	}
	return time.Duration(float64(len(b.Samples)) / float64(b.SampleRate) * float64(time.Second))
}

// EncodeWAV wraps the buffer's float32 samples in a WAV container
// (16-bit PCM, mono) at the buffer's own sample rate.
func EncodeWAV(b Buffer) []byte {
	wav := make([]byte, wavHeaderLen+len(b.Samples)*2)
	pcm := wav[wavHeaderLen:]

	// WAV Header
	wav[0] = 'R'
	wav[1] = 'I'
	wav[2] = 'F'
	wav[3] = 'F'
	binary.LittleEndian.PutUint32(wav[4:], uint32(len(wav)-8))
	wav[8] = 'W'
	wav[9] = 'A'
	wav[10] = 'V'
	wav[11] = 'E'
	wav[12] = 'f'
	wav[13] = 'm'
	wav[14] = 't'
	wav[15] = ' '
	binary.LittleEndian.PutUint32(wav[16:], 16)
	binary.LittleEndian.PutUint16(wav[20:], 1)
	binary.LittleEndian.PutUint16(wav[22:], wavChannels)
	binary.LittleEndian.PutUint32(wav[24:], uint32(b.SampleRate))
	binary.LittleEndian.PutUint32(wav[28:], uint32(b.SampleRate*wavBitDepth*wavChannels)/8)
	binary.LittleEndian.PutUint16(wav[32:], (wavBitDepth*wavChannels)/8)
	binary.LittleEndian.PutUint16(wav[34:], wavBitDepth)
	wav[36] = 'd'
	wav[37] = 'a'
	wav[38] = 't'
	wav[39] = 'a'
	binary.LittleEndian.PutUint32(wav[40:], uint32(len(b.Samples)*2))

	// Convert audio samples from float32 to 16-bit PCM, clamping at the
	// integer range.
	for i, s := range b.Samples {
		v := int32(s * maxPCM16)
		if v > math.MaxInt16 {
			v = math.MaxInt16
		} else if v < math.MinInt16 {
			v = math.MinInt16
		}
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(v)))
	}

	return wav
}
