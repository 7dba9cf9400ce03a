package normalize

import (
	"image"
)

func morphology(src *image.Gray, mode string, kernel int) *image.Gray {
	switch mode {
	case MorphOpen:
		// Erode then dilate, removes specks.
		return dilate(erode(src, kernel), kernel)
	case MorphClose:
		// Dilate then erode, fills gaps in strokes.
		return erode(dilate(src, kernel), kernel)
	default:
		return src
	}
}

// dilate expands bright regions.
func dilate(src *image.Gray, kernel int) *image.Gray {
	return rankFilter(src, kernel, func(a, b uint8) bool { return a > b }, 0)
}

// erode shrinks bright regions.
func erode(src *image.Gray, kernel int) *image.Gray {
	return rankFilter(src, kernel, func(a, b uint8) bool { return a < b }, 255)
}

func rankFilter(src *image.Gray, kernel int, better func(a, b uint8) bool, init uint8) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	if kernel <= 1 {
		for y := range h {
			copy(out.Pix[y*out.Stride:y*out.Stride+w], src.Pix[y*src.Stride:y*src.Stride+w])
		}
		return out
	}

	half := kernel / 2
	for y := range h {
		for x := range w {
			best := init
			for ky := -half; ky <= half; ky++ {
				ny := y + ky
				if ny < 0 || ny >= h {
					continue
				}
				for kx := -half; kx <= half; kx++ {
					nx := x + kx
					if nx < 0 || nx >= w {
						continue
					}
					if v := src.Pix[ny*src.Stride+nx]; better(v, best) {
						best = v
					}
				}
			}
			out.Pix[y*out.Stride+x] = best
		}
	}
	return out
}
