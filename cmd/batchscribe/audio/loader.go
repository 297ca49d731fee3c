package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	"github.com/mewkiz/flac"

	"github.com/go-audio/wav"
)

// ErrUnreadable marks a file that is missing, corrupt or in a format we
// cannot decode. It is file-scoped: callers skip the file and move on.
var ErrUnreadable = errors.New("unreadable audio")

const ffmpegSampleRate = 16000

// Formats decoded natively. Anything else in the allow-list goes through
// the ffmpeg fallback.
var decoders = map[string]func(*os.File) (Buffer, error){
	".wav":  decodeWAV,
	".mp3":  decodeMP3,
	".flac": decodeFLAC,
	".ogg":  decodeOGG,
}

var ffmpegFormats = map[string]bool{
	".m4a":  true,
	".mp4":  true,
	".webm": true,
	".mpga": true,
	".mpeg": true,
}

// SupportedFormat reports whether the file's extension is in the allow-list
// used during directory enumeration. Filtering happens here, up front, so
// that skipped files never reach the decoders.
func SupportedFormat(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return decoders[ext] != nil || ffmpegFormats[ext]
}

// Load reads the file into a mono float32 buffer at the file's native
// sample rate (or ffmpeg's output rate for fallback formats).
func Load(path string) (Buffer, error) {
	ext := strings.ToLower(filepath.Ext(path))

	if ffmpegFormats[ext] {
		return decodeFFmpeg(path)
	}

	decode := decoders[ext]
	if decode == nil {
		return Buffer{}, fmt.Errorf("%w: unsupported format %q", ErrUnreadable, ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return Buffer{}, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	defer f.Close()

	buf, err := decode(f)
	if err != nil {
		return Buffer{}, err
	}
	if buf.Empty() || buf.SampleRate <= 0 {
		return Buffer{}, fmt.Errorf("%w: no audio data in %q", ErrUnreadable, path)
	}

	return buf, nil
}

func decodeWAV(f *os.File) (Buffer, error) {
	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return Buffer{}, fmt.Errorf("%w: not a valid WAV file", ErrUnreadable)
	}

	pcm, err := d.FullPCMBuffer()
	if err != nil {
		return Buffer{}, fmt.Errorf("%w: failed to decode WAV: %v", ErrUnreadable, err)
	}

	channels := pcm.Format.NumChannels
	if channels < 1 {
		return Buffer{}, fmt.Errorf("%w: invalid channel count", ErrUnreadable)
	}
	scale := float32(int(1) << (d.BitDepth - 1))

	samples := make([]float32, len(pcm.Data)/channels)
	for i := range samples {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			sum += float32(pcm.Data[i*channels+ch]) / scale
		}
		samples[i] = sum / float32(channels)
	}

	return Buffer{Samples: samples, SampleRate: pcm.Format.SampleRate}, nil
}

func decodeMP3(f *os.File) (Buffer, error) {
	d, err := mp3.NewDecoder(f)
	if err != nil {
		return Buffer{}, fmt.Errorf("%w: failed to decode MP3: %v", ErrUnreadable, err)
	}

	data, err := io.ReadAll(d)
	if err != nil {
		return Buffer{}, fmt.Errorf("%w: failed to read MP3 stream: %v", ErrUnreadable, err)
	}

	// go-mp3 always outputs 16-bit stereo little-endian.
	samples := make([]float32, len(data)/4)
	for i := range samples {
		l := int16(uint16(data[i*4]) | uint16(data[i*4+1])<<8)
		r := int16(uint16(data[i*4+2]) | uint16(data[i*4+3])<<8)
		samples[i] = (float32(l) + float32(r)) / 2 / maxPCM16
	}

	return Buffer{Samples: samples, SampleRate: d.SampleRate()}, nil
}

func decodeFLAC(f *os.File) (Buffer, error) {
	stream, err := flac.New(f)
	if err != nil {
		return Buffer{}, fmt.Errorf("%w: failed to decode FLAC: %v", ErrUnreadable, err)
	}

	channels := int(stream.Info.NChannels)
	scale := float32(int(1) << (stream.Info.BitsPerSample - 1))

	var samples []float32
	for {
		frame, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Buffer{}, fmt.Errorf("%w: failed to parse FLAC frame: %v", ErrUnreadable, err)
		}

		n := len(frame.Subframes[0].Samples)
		for i := 0; i < n; i++ {
			var sum float32
			for ch := 0; ch < channels; ch++ {
				sum += float32(frame.Subframes[ch].Samples[i]) / scale
			}
			samples = append(samples, sum/float32(channels))
		}
	}

	return Buffer{Samples: samples, SampleRate: int(stream.Info.SampleRate)}, nil
}

func decodeOGG(f *os.File) (Buffer, error) {
	data, format, err := oggvorbis.ReadAll(f)
	if err != nil {
		return Buffer{}, fmt.Errorf("%w: failed to decode OGG: %v", ErrUnreadable, err)
	}

	channels := format.Channels
	if channels == 1 {
		return Buffer{Samples: data, SampleRate: format.SampleRate}, nil
	}

	samples := make([]float32, len(data)/channels)
	for i := range samples {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			sum += data[i*channels+ch]
		}
		samples[i] = sum / float32(channels)
	}

	return Buffer{Samples: samples, SampleRate: format.SampleRate}, nil
}

// decodeFFmpeg shells out to ffmpeg for container formats we have no native
// decoder for, resampling to mono 16KHz PCM on stdout.
func decodeFFmpeg(path string) (Buffer, error) {
	if _, err := os.Stat(path); err != nil {
		return Buffer{}, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	cmd := exec.Command("ffmpeg",
		"-v", "error",
		"-i", path,
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ac", "1",
		"-ar", fmt.Sprintf("%d", ffmpegSampleRate),
		"pipe:1",
	)

	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	if err := cmd.Run(); err != nil {
		return Buffer{}, fmt.Errorf("%w: ffmpeg failed: %v: %s", ErrUnreadable, err, errOut.String())
	}

	data := out.Bytes()
	samples := make([]float32, len(data)/2)
	for i := range samples {
		samples[i] = float32(int16(uint16(data[i*2])|uint16(data[i*2+1])<<8)) / maxPCM16
	}

	return Buffer{Samples: samples, SampleRate: ffmpegSampleRate}, nil
}
