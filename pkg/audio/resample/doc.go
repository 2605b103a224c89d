// ABOUTME: Package documentation for resample
// ABOUTME: Describes the streaming linear resampler
/*
Package resample converts interleaved float32 audio between sample
rates using linear interpolation.

The resampler is built for streaming. Input arrives in chunks of any
size and the interpolation phase carries across calls, so chunk
boundaries produce no clicks or dropped samples.

	r, err := resample.New(44100, 48000, 2)
	if err != nil {
		log.Fatal(err)
	}

	out := make([]float32, r.OutputSamplesNeeded(len(chunk)))
	n := r.Resample(chunk, out)
	play(out[:n])
*/
package resample
