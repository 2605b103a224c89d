// ABOUTME: Linear interpolation resampler for float32 PCM
// ABOUTME: Streams arbitrary chunk sizes with continuous phase across calls
package resample

import (
	"fmt"
	"math"
)

// Resampler converts interleaved float32 audio between sample rates
// using linear interpolation. It is stream-safe: input may arrive in
// chunks of any size and the interpolation phase carries across calls.
type Resampler struct {
	inputRate  int
	outputRate int
	channels   int
	ratio      float64 // input frames consumed per output frame

	// pos is the position of the next output frame in input-frame
	// units, relative to the start of the next input chunk. It can
	// be as low as -1, pointing into last.
	pos  float64
	last []float32 // final frame of the previous chunk
}

// New creates a resampler converting between the given rates.
func New(inputRate, outputRate, channels int) (*Resampler, error) {
	if inputRate <= 0 || outputRate <= 0 {
		err := fmt.Errorf("invalid sample rates: %d -> %d", inputRate, outputRate)
		return nil, err
	}
	if channels <= 0 {
		return nil, fmt.Errorf("invalid channel count: %d", channels)
	}

	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		ratio:      float64(inputRate) / float64(outputRate),
		last:       make([]float32, channels),
	}, nil
}

// Resample converts input samples and writes them to output, returning
// the number of samples written. Output should be sized with
// OutputSamplesNeeded; when it is too small the unconverted remainder
// of the chunk is dropped.
func (r *Resampler) Resample(input, output []float32) int {
	if len(input)%r.channels != 0 {
		return 0
	}
	inFrames := len(input) / r.channels
	if inFrames == 0 {
		return 0
	}

	if r.inputRate == r.outputRate {
		n := copy(output, input)
		return n - n%r.channels
	}

	maxOut := len(output) / r.channels
	outFrames := 0
	for outFrames < maxOut {
		i0 := int(math.Floor(r.pos))
		if i0+1 >= inFrames {
			break
		}
		frac := float32(r.pos - float64(i0))

		for c := 0; c < r.channels; c++ {
			var s0 float32
			if i0 < 0 {
				s0 = r.last[c]
			} else {
				s0 = input[i0*r.channels+c]
			}
			s1 := input[(i0+1)*r.channels+c]
			output[outFrames*r.channels+c] = s0 + (s1-s0)*frac
		}

		r.pos += r.ratio
		outFrames++
	}

	copy(r.last, input[(inFrames-1)*r.channels:])
	r.pos -= float64(inFrames)

	return outFrames * r.channels
}

// Reset clears the interpolation state for a new stream.
func (r *Resampler) Reset() {
	r.pos = 0
	for i := range r.last {
		r.last[i] = 0
	}
}

// OutputSamplesNeeded returns a buffer size sufficient to hold the
// output produced from inputSamples input samples.
func (r *Resampler) OutputSamplesNeeded(inputSamples int) int {
	frames := inputSamples / r.channels
	need := int(math.Ceil(float64(frames)/r.ratio)) + 1
	return need * r.channels
}

// InputSamplesNeeded returns roughly how many input samples produce
// outputSamples output samples.
func (r *Resampler) InputSamplesNeeded(outputSamples int) int {
	frames := outputSamples / r.channels
	need := int(math.Ceil(float64(frames)*r.ratio)) + 1
	return need * r.channels
}
