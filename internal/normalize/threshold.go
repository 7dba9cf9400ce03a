package normalize

import (
	"image"

	"github.com/MeKo-Tech/idextract/internal/utils"
)

func threshold(src *image.Gray, op Op) *image.Gray {
	var fg func(x, y int, v uint8) bool
	switch op.Mode {
	case ThresholdFixed:
		level := uint8(op.Value)
		fg = func(_, _ int, v uint8) bool { return v >= level }
	case ThresholdOtsu:
		t := OtsuThreshold(src)
		fg = func(_, _ int, v uint8) bool { return v > t }
	case ThresholdAdaptive:
		means := localMeans(src, op.Block)
		w := src.Rect.Dx()
		fg = func(x, y int, v uint8) bool { return float64(v) > means[y*w+x]-op.C }
	default:
		return utils.CloneGray(src)
	}

	var on, off uint8 = 255, 0
	if op.Invert {
		on, off = 0, 255
	}

	b := src.Rect
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+b.Dx()]
		for x, v := range row {
			if fg(x, y, v) {
				out.Pix[y*out.Stride+x] = on
			} else {
				out.Pix[y*out.Stride+x] = off
			}
		}
	}
	return out
}

// OtsuThreshold returns the intensity that maximizes between-class variance.
// Pixels strictly above it are foreground.
func OtsuThreshold(src *image.Gray) uint8 {
	const bins = 256
	var histogram [bins]int
	b := src.Rect
	for y := 0; y < b.Dy(); y++ {
		for _, v := range src.Pix[y*src.Stride : y*src.Stride+b.Dx()] {
			histogram[v]++
		}
	}
	totalPixels := b.Dx() * b.Dy()
	if totalPixels == 0 {
		return 0
	}

	var total float64
	for i := range bins {
		total += float64(i) * float64(histogram[i])
	}

	var maxVariance, sumB float64
	bestThreshold := 0
	wB := 0
	for t := range bins {
		wB += histogram[t]
		if wB == 0 {
			continue
		}
		wF := totalPixels - wB
		if wF == 0 {
			break
		}

		sumB += float64(t) * float64(histogram[t])
		meanB := sumB / float64(wB)
		meanF := (total - sumB) / float64(wF)

		variance := float64(wB) * float64(wF) * (meanB - meanF) * (meanB - meanF)
		if variance > maxVariance {
			maxVariance = variance
			bestThreshold = t
		}
	}
	return uint8(bestThreshold)
}

// localMeans computes the mean over a block x block window per pixel using an
// integral image. Windows are truncated at the borders.
func localMeans(src *image.Gray, block int) []float64 {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	integral := make([]int64, (w+1)*(h+1))
	for y := range h {
		var rowSum int64
		for x := range w {
			rowSum += int64(src.Pix[y*src.Stride+x])
			integral[(y+1)*(w+1)+x+1] = integral[y*(w+1)+x+1] + rowSum
		}
	}

	half := block / 2
	means := make([]float64, w*h)
	for y := range h {
		y0, y1 := max(0, y-half), min(h, y+half+1)
		for x := range w {
			x0, x1 := max(0, x-half), min(w, x+half+1)
			sum := integral[y1*(w+1)+x1] - integral[y0*(w+1)+x1] - integral[y1*(w+1)+x0] + integral[y0*(w+1)+x0]
			means[y*w+x] = float64(sum) / float64((y1-y0)*(x1-x0))
		}
	}
	return means
}
