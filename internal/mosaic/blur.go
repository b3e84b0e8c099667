package mosaic

import "math"

// GaussianKernel1D returns a normalized 1D Gaussian kernel for the given
// sigma, sized to a radius of ceil(3*sigma) taps on each side (the usual
// "three sigma" truncation). sigma <= 0 yields the identity kernel [1].
func GaussianKernel1D(sigma float64) []float64 {
	if sigma <= 0 {
		return []float64{1}
	}
	radius := int(math.Ceil(3 * sigma))
	if radius < 1 {
		radius = 1
	}
	kernel := make([]float64, 2*radius+1)
	sum := 0.0
	for i := -radius; i <= radius; i++ {
		v := math.Exp(-float64(i*i) / (2 * sigma * sigma))
		kernel[i+radius] = v
		sum += v
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

// BlurIgnoringInvalid applies a separable Gaussian blur of the given sigma
// to values, renormalizing the kernel at every tap over only the
// neighbors where valid is true. A cell that is invalid in the input, or
// has no valid neighbor in range, stays invalid in the output. This is reused by both
// the weight builder's blur pass and the DEM post-processor's blur pass
// (spec.md §4.4, §4.6), grounded on the two-pass separable convolution
// idiom the teacher's resize/downsample code implies, generalized here to
// skip no-data taps instead of assuming a dense raster.
func BlurIgnoringInvalid(values [][]float64, valid [][]bool, sigma float64) ([][]float64, [][]bool) {
	h := len(values)
	if h == 0 {
		return nil, nil
	}
	w := len(values[0])
	kernel := GaussianKernel1D(sigma)
	radius := len(kernel) / 2

	// Horizontal pass.
	midVal := make([][]float64, h)
	midValid := make([][]bool, h)
	for y := 0; y < h; y++ {
		midVal[y] = make([]float64, w)
		midValid[y] = make([]bool, w)
		for x := 0; x < w; x++ {
			sum, weight := 0.0, 0.0
			for k := -radius; k <= radius; k++ {
				xx := x + k
				if xx < 0 || xx >= w || !valid[y][xx] {
					continue
				}
				kw := kernel[k+radius]
				sum += kw * values[y][xx]
				weight += kw
			}
			if weight > 0 {
				midVal[y][x] = sum / weight
				midValid[y][x] = true
			}
		}
	}

	// Vertical pass.
	outVal := make([][]float64, h)
	outValid := make([][]bool, h)
	for y := 0; y < h; y++ {
		outVal[y] = make([]float64, w)
		outValid[y] = make([]bool, w)
	}
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			sum, weight := 0.0, 0.0
			for k := -radius; k <= radius; k++ {
				yy := y + k
				if yy < 0 || yy >= h || !midValid[yy][x] {
					continue
				}
				kw := kernel[k+radius]
				sum += kw * midVal[yy][x]
				weight += kw
			}
			if weight > 0 && valid[y][x] {
				outVal[y][x] = sum / weight
				outValid[y][x] = true
			}
		}
	}

	return outVal, outValid
}
