// Package normalize applies ordered, pure image transformations ahead of recognition.
package normalize

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/MeKo-Tech/idextract/internal/utils"
	"github.com/disintegration/imaging"
)

// Operation names.
const (
	OpGrayscale          = "grayscale"
	OpResize             = "resize"
	OpBrightnessContrast = "brightness_contrast"
	OpContrast           = "contrast"
	OpGaussianBlur       = "gaussian_blur"
	OpThreshold          = "threshold"
	OpMorphology         = "morphology"
	OpSharpen            = "sharpen"
	OpEqualize           = "equalize"
)

// Threshold and morphology modes.
const (
	ThresholdFixed    = "fixed"
	ThresholdOtsu     = "otsu"
	ThresholdAdaptive = "adaptive"

	MorphOpen  = "open"
	MorphClose = "close"
)

// ErrUnknownOp is returned for an operation name outside the supported set.
var ErrUnknownOp = errors.New("unknown normalization operation")

// Op is one normalization step. Only the parameters relevant to Name are read.
type Op struct {
	Name string `mapstructure:"op" yaml:"op" json:"op"`

	// resize
	Scale         float64 `mapstructure:"scale" yaml:"scale,omitempty" json:"scale,omitempty"`
	Width         int     `mapstructure:"width" yaml:"width,omitempty" json:"width,omitempty"`
	Interpolation string  `mapstructure:"interpolation" yaml:"interpolation,omitempty" json:"interpolation,omitempty"`

	// brightness_contrast: out = alpha*in + beta
	Alpha float64 `mapstructure:"alpha" yaml:"alpha,omitempty" json:"alpha,omitempty"`
	Beta  float64 `mapstructure:"beta" yaml:"beta,omitempty" json:"beta,omitempty"`

	// contrast, in imaging percent (100 doubles contrast)
	Percent float64 `mapstructure:"percent" yaml:"percent,omitempty" json:"percent,omitempty"`

	// gaussian_blur, morphology
	Kernel int `mapstructure:"kernel" yaml:"kernel,omitempty" json:"kernel,omitempty"`

	// threshold: fixed|otsu|adaptive; morphology: open|close
	Mode   string  `mapstructure:"mode" yaml:"mode,omitempty" json:"mode,omitempty"`
	Value  int     `mapstructure:"value" yaml:"value,omitempty" json:"value,omitempty"`
	Block  int     `mapstructure:"block" yaml:"block,omitempty" json:"block,omitempty"`
	C      float64 `mapstructure:"c" yaml:"c,omitempty" json:"c,omitempty"`
	Invert bool    `mapstructure:"invert" yaml:"invert,omitempty" json:"invert,omitempty"`

	// sharpen
	Sigma float64 `mapstructure:"sigma" yaml:"sigma,omitempty" json:"sigma,omitempty"`
}

// String renders the op compactly for logs.
func (o Op) String() string {
	switch o.Name {
	case OpResize:
		if o.Width > 0 {
			return fmt.Sprintf("resize(width=%d,%s)", o.Width, o.interpolation())
		}
		return fmt.Sprintf("resize(scale=%g,%s)", o.Scale, o.interpolation())
	case OpBrightnessContrast:
		return fmt.Sprintf("brightness_contrast(%g,%g)", o.Alpha, o.Beta)
	case OpContrast:
		return fmt.Sprintf("contrast(%g)", o.Percent)
	case OpGaussianBlur:
		return fmt.Sprintf("gaussian_blur(%d)", o.Kernel)
	case OpThreshold:
		return fmt.Sprintf("threshold(%s)", o.Mode)
	case OpMorphology:
		return fmt.Sprintf("morphology(%s,%d)", o.Mode, o.Kernel)
	case OpSharpen:
		return fmt.Sprintf("sharpen(%g)", o.Sigma)
	default:
		return o.Name
	}
}

func (o Op) interpolation() string {
	if o.Interpolation == "" {
		return "lanczos"
	}
	return strings.ToLower(o.Interpolation)
}

// Validate checks the op name and its parameters.
func (o Op) Validate() error {
	switch o.Name {
	case OpGrayscale, OpEqualize:
		return nil
	case OpResize:
		if o.Width <= 0 && o.Scale <= 0 {
			return fmt.Errorf("%s: width or scale must be positive", o.Name)
		}
		if _, ok := resampleFilter(o.interpolation()); !ok {
			return fmt.Errorf("%s: unknown interpolation %q", o.Name, o.Interpolation)
		}
	case OpBrightnessContrast:
		if o.Alpha <= 0 {
			return fmt.Errorf("%s: alpha must be positive", o.Name)
		}
	case OpContrast:
		if o.Percent < -100 || o.Percent > 100 {
			return fmt.Errorf("%s: percent must be within [-100, 100]", o.Name)
		}
	case OpGaussianBlur:
		if o.Kernel < 1 || o.Kernel%2 == 0 {
			return fmt.Errorf("%s: kernel must be a positive odd number", o.Name)
		}
	case OpThreshold:
		switch o.Mode {
		case ThresholdFixed:
			if o.Value < 0 || o.Value > 255 {
				return fmt.Errorf("%s: value must be within [0, 255]", o.Name)
			}
		case ThresholdOtsu:
		case ThresholdAdaptive:
			if o.Block < 3 || o.Block%2 == 0 {
				return fmt.Errorf("%s: block must be an odd number >= 3", o.Name)
			}
		default:
			return fmt.Errorf("%s: unknown mode %q", o.Name, o.Mode)
		}
	case OpMorphology:
		if o.Mode != MorphOpen && o.Mode != MorphClose {
			return fmt.Errorf("%s: unknown mode %q", o.Name, o.Mode)
		}
		if o.Kernel < 1 {
			return fmt.Errorf("%s: kernel must be positive", o.Name)
		}
	case OpSharpen:
		if o.Sigma <= 0 {
			return fmt.Errorf("%s: sigma must be positive", o.Name)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownOp, o.Name)
	}
	return nil
}

// Validate checks every op in the list.
func Validate(ops []Op) error {
	for i, op := range ops {
		if err := op.Validate(); err != nil {
			return fmt.Errorf("op %d: %w", i, err)
		}
	}
	return nil
}

// Apply runs ops in order, each consuming the previous output. The input is
// never modified. An empty op list returns the input unchanged.
func Apply(img image.Image, ops []Op) (image.Image, error) {
	if err := utils.ValidateImage(img); err != nil {
		return nil, err
	}
	out := img
	for i, op := range ops {
		if err := op.Validate(); err != nil {
			return nil, fmt.Errorf("op %d: %w", i, err)
		}
		out = applyOne(out, op)
	}
	return out, nil
}

func applyOne(img image.Image, op Op) image.Image {
	_, isGray := img.(*image.Gray)
	var out image.Image
	switch op.Name {
	case OpGrayscale:
		return utils.ToGray(img)
	case OpResize:
		out = resize(img, op)
	case OpBrightnessContrast:
		return brightnessContrast(img, op.Alpha, op.Beta)
	case OpContrast:
		out = imaging.AdjustContrast(img, op.Percent)
	case OpGaussianBlur:
		out = gaussianBlur(img, op.Kernel)
	case OpSharpen:
		out = imaging.Sharpen(img, op.Sigma)
	case OpThreshold:
		return threshold(utils.ToGray(img), op)
	case OpMorphology:
		return morphology(utils.ToGray(img), op.Mode, op.Kernel)
	case OpEqualize:
		return Equalize(utils.ToGray(img))
	default:
		return img
	}
	if isGray {
		return utils.ToGray(out)
	}
	return out
}

// KernelSigma derives a Gaussian sigma from an odd kernel size.
func KernelSigma(kernel int) float64 {
	return 0.3*(float64(kernel-1)*0.5-1) + 0.8
}

// gaussianBlur convolves with a kernel x kernel Gaussian. imaging.Blur sizes
// its window from the sigma (ceil(3σ) per side), so the common 3 and 5 sizes
// use fixed convolutions to keep the window exact.
func gaussianBlur(img image.Image, kernel int) image.Image {
	sigma := KernelSigma(kernel)
	switch kernel {
	case 1:
		return imaging.Clone(img)
	case 3:
		var k [9]float64
		copy(k[:], gaussianKernel(3, sigma))
		return imaging.Convolve3x3(img, k, nil)
	case 5:
		var k [25]float64
		copy(k[:], gaussianKernel(5, sigma))
		return imaging.Convolve5x5(img, k, nil)
	default:
		return imaging.Blur(img, sigma)
	}
}

// gaussianKernel returns a row-major size x size kernel summing to 1.
func gaussianKernel(size int, sigma float64) []float64 {
	c := size / 2
	row := make([]float64, size)
	for i := range row {
		d := float64(i - c)
		row[i] = math.Exp(-d * d / (2 * sigma * sigma))
	}
	var sum float64
	k := make([]float64, size*size)
	for y := range size {
		for x := range size {
			k[y*size+x] = row[y] * row[x]
			sum += k[y*size+x]
		}
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

func resampleFilter(name string) (imaging.ResampleFilter, bool) {
	switch name {
	case "lanczos":
		return imaging.Lanczos, true
	case "linear":
		return imaging.Linear, true
	case "nearest":
		return imaging.NearestNeighbor, true
	case "cubic":
		return imaging.CatmullRom, true
	default:
		return imaging.ResampleFilter{}, false
	}
}

func resize(img image.Image, op Op) image.Image {
	filter, _ := resampleFilter(op.interpolation())
	width := op.Width
	if width <= 0 {
		width = int(math.Round(float64(img.Bounds().Dx()) * op.Scale))
	}
	if width < 1 {
		width = 1
	}
	return imaging.Resize(img, width, 0, filter)
}

func brightnessContrast(img image.Image, alpha, beta float64) image.Image {
	if g, ok := img.(*image.Gray); ok {
		out := utils.CloneGray(g)
		for i, v := range out.Pix {
			out.Pix[i] = utils.ClampUint8(alpha*float64(v) + beta)
		}
		return out
	}
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{
			R: utils.ClampUint8(alpha*float64(c.R) + beta),
			G: utils.ClampUint8(alpha*float64(c.G) + beta),
			B: utils.ClampUint8(alpha*float64(c.B) + beta),
			A: c.A,
		}
	})
}

// Equalize spreads the luminance histogram over the full 0..255 range.
func Equalize(src *image.Gray) *image.Gray {
	var hist [256]int
	for _, v := range src.Pix {
		hist[v]++
	}
	total := len(src.Pix)
	cdfMin := 0
	for _, c := range hist {
		if c > 0 {
			cdfMin = c
			break
		}
	}
	out := utils.CloneGray(src)
	if total == cdfMin {
		return out
	}
	var lut [256]uint8
	cdf := 0
	for i, c := range hist {
		cdf += c
		lut[i] = utils.ClampUint8(float64(cdf-cdfMin) / float64(total-cdfMin) * 255)
	}
	for i, v := range out.Pix {
		out.Pix[i] = lut[v]
	}
	return out
}
