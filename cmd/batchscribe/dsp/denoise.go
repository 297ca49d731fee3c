// Package dsp implements the noise-reduction preprocessing stage: a
// single-pass spectral subtraction filter applied before recognition.
package dsp

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/batchscribe/batch-transcriber/cmd/batchscribe/audio"
)

const (
	frameSize = 512
	hopSize   = frameSize / 2

	// Number of leading frames used for the noise magnitude estimate. The
	// estimate is computed once per file, never updated mid-file.
	noiseFrames = 6
)

// Reduce applies spectral subtraction to the buffer and returns the denoised
// result. The output has the same length and sample rate as the input. This
// stage never fails: buffers shorter than one analysis frame are returned
// unmodified, and any numerical blow-up falls back to the original buffer.
func Reduce(buf audio.Buffer) audio.Buffer {
	n := len(buf.Samples)
	if n < frameSize {
		return buf
	}

	out := spectralSubtract(buf.Samples)

	samples := make([]float32, n)
	for i, s := range out {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return buf
		}
		samples[i] = float32(s)
	}

	return audio.Buffer{Samples: samples, SampleRate: buf.SampleRate}
}

func spectralSubtract(in []float32) []float64 {
	n := len(in)
	window := hann(frameSize)
	fft := fourier.NewFFT(frameSize)

	numFrames := 1 + (n-frameSize)/hopSize
	frame := make([]float64, frameSize)
	coeff := make([]complex128, frameSize/2+1)

	// Noise magnitude spectrum, averaged over the leading frames.
	noise := make([]float64, len(coeff))
	estFrames := noiseFrames
	if numFrames < estFrames {
		estFrames = numFrames
	}
	for fi := 0; fi < estFrames; fi++ {
		windowFrame(frame, in[fi*hopSize:], window)
		coeff = fft.Coefficients(coeff, frame)
		for k, c := range coeff {
			noise[k] += cmplx.Abs(c)
		}
	}
	for k := range noise {
		noise[k] /= float64(estFrames)
	}

	out := make([]float64, n)
	wsum := make([]float64, n)
	seq := make([]float64, frameSize)

	for fi := 0; fi < numFrames; fi++ {
		off := fi * hopSize
		windowFrame(frame, in[off:], window)
		coeff = fft.Coefficients(coeff, frame)

		// Subtract the noise magnitude, floored at zero, keeping the phase.
		for k, c := range coeff {
			mag := cmplx.Abs(c)
			if mag == 0 {
				continue
			}
			clean := mag - noise[k]
			if clean < 0 {
				clean = 0
			}
			coeff[k] = c * complex(clean/mag, 0)
		}

		seq = fft.Sequence(seq, coeff)
		for j := 0; j < frameSize; j++ {
			out[off+j] += seq[j] / frameSize
			wsum[off+j] += window[j]
		}
	}

	// Overlap-add normalization. Samples with next to no window coverage
	// (the very edges and any tail shorter than a hop) keep their original
	// value so the output length always matches the input.
	for i := range out {
		if wsum[i] < 1e-3 {
			out[i] = float64(in[i])
			continue
		}
		out[i] /= wsum[i]
	}

	return out
}

func windowFrame(dst []float64, src []float32, window []float64) {
	for j := 0; j < len(dst); j++ {
		dst[j] = float64(src[j]) * window[j]
	}
}

func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n)))
	}
	return w
}
