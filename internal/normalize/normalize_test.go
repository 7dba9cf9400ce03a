package normalize

import (
	"image"
	"image/color"
	"testing"

	"github.com/MeKo-Tech/idextract/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bimodal(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			v := uint8(40)
			if x >= w/2 {
				v = 200
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

func TestApplyRejectsInvalidInput(t *testing.T) {
	_, err := Apply(nil, []Op{{Name: OpGrayscale}})
	require.ErrorIs(t, err, utils.ErrInvalidImage)

	_, err = Apply(image.NewGray(image.Rect(0, 0, 0, 0)), nil)
	require.ErrorIs(t, err, utils.ErrInvalidImage)
}

func TestApplyUnknownOp(t *testing.T) {
	_, err := Apply(bimodal(4, 4), []Op{{Name: "posterize"}})
	require.ErrorIs(t, err, ErrUnknownOp)
}

func TestApplyEmptyOpsReturnsInput(t *testing.T) {
	src := bimodal(4, 4)
	out, err := Apply(src, nil)
	require.NoError(t, err)
	assert.Same(t, src, out)
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	src := bimodal(16, 8)
	before := append([]uint8(nil), src.Pix...)

	ops := []Op{
		{Name: OpBrightnessContrast, Alpha: 1.2, Beta: 30},
		{Name: OpGaussianBlur, Kernel: 3},
		{Name: OpThreshold, Mode: ThresholdOtsu},
		{Name: OpMorphology, Mode: MorphClose, Kernel: 3},
		{Name: OpEqualize},
	}
	_, err := Apply(src, ops)
	require.NoError(t, err)
	assert.Equal(t, before, src.Pix)
}

func TestBrightnessContrastClamps(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 3, 1))
	src.Pix = []uint8{0, 100, 250}

	out, err := Apply(src, []Op{{Name: OpBrightnessContrast, Alpha: 1.2, Beta: 20}})
	require.NoError(t, err)
	g, ok := out.(*image.Gray)
	require.True(t, ok)
	assert.Equal(t, []uint8{20, 140, 255}, g.Pix)
}

func TestBrightnessContrastColor(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 10, G: 100, B: 240, A: 255})

	out, err := Apply(src, []Op{{Name: OpBrightnessContrast, Alpha: 2, Beta: 0}})
	require.NoError(t, err)
	c := color.NRGBAModel.Convert(out.At(0, 0)).(color.NRGBA)
	assert.Equal(t, color.NRGBA{R: 20, G: 200, B: 255, A: 255}, c)
}

func TestOtsuSeparatesBimodal(t *testing.T) {
	src := bimodal(20, 10)
	th := OtsuThreshold(src)
	assert.GreaterOrEqual(t, th, uint8(40))
	assert.Less(t, th, uint8(200))

	out, err := Apply(src, []Op{{Name: OpThreshold, Mode: ThresholdOtsu}})
	require.NoError(t, err)
	g := out.(*image.Gray)
	assert.Equal(t, uint8(0), g.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(255), g.GrayAt(19, 9).Y)

	inv, err := Apply(src, []Op{{Name: OpThreshold, Mode: ThresholdOtsu, Invert: true}})
	require.NoError(t, err)
	assert.Equal(t, uint8(255), inv.(*image.Gray).GrayAt(0, 0).Y)
}

func TestFixedThresholdIncludesLevel(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 3, 1))
	src.Pix = []uint8{127, 128, 129}
	out, err := Apply(src, []Op{{Name: OpThreshold, Mode: ThresholdFixed, Value: 128}})
	require.NoError(t, err)
	assert.Equal(t, []uint8{0, 255, 255}, out.(*image.Gray).Pix)
}

func TestAdaptiveThresholdUniformImage(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 8, 8))
	for i := range src.Pix {
		src.Pix[i] = 90
	}
	out, err := Apply(src, []Op{{Name: OpThreshold, Mode: ThresholdAdaptive, Block: 3, C: 2}})
	require.NoError(t, err)
	for _, v := range out.(*image.Gray).Pix {
		assert.Equal(t, uint8(255), v)
	}
}

func TestMorphologyOpenRemovesSpeck(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 9, 9))
	src.SetGray(4, 4, color.Gray{Y: 255})

	out, err := Apply(src, []Op{{Name: OpMorphology, Mode: MorphOpen, Kernel: 3}})
	require.NoError(t, err)
	for _, v := range out.(*image.Gray).Pix {
		assert.Equal(t, uint8(0), v)
	}
}

func TestMorphologyCloseFillsGap(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 9, 3))
	for x := range 9 {
		if x != 4 {
			src.SetGray(x, 1, color.Gray{Y: 255})
		}
	}
	out, err := Apply(src, []Op{{Name: OpMorphology, Mode: MorphClose, Kernel: 3}})
	require.NoError(t, err)
	assert.Equal(t, uint8(255), out.(*image.Gray).GrayAt(4, 1).Y)
}

func TestResizeKeepsAspect(t *testing.T) {
	src := bimodal(100, 50)
	out, err := Apply(src, []Op{{Name: OpResize, Width: 1200}})
	require.NoError(t, err)
	assert.Equal(t, 1200, out.Bounds().Dx())
	assert.Equal(t, 600, out.Bounds().Dy())
	_, ok := out.(*image.Gray)
	assert.True(t, ok, "gray input stays gray")

	out, err = Apply(src, []Op{{Name: OpResize, Scale: 0.5, Interpolation: "nearest"}})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 50, 25), out.Bounds())
}

func TestEqualizeStretches(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 2, 1))
	src.Pix = []uint8{100, 110}
	out := Equalize(src)
	assert.Equal(t, []uint8{0, 255}, out.Pix)
}

func TestKernelSigma(t *testing.T) {
	assert.InDelta(t, 0.8, KernelSigma(3), 1e-9)
	assert.InDelta(t, 1.1, KernelSigma(5), 1e-9)
}

func TestGaussianBlurWindow(t *testing.T) {
	for _, k := range []int{3, 5} {
		src := image.NewGray(image.Rect(0, 0, 11, 11))
		src.SetGray(5, 5, color.Gray{Y: 255})
		out, err := Apply(src, []Op{{Name: OpGaussianBlur, Kernel: k}})
		require.NoError(t, err)
		g := out.(*image.Gray)

		half := k / 2
		assert.Positive(t, g.GrayAt(5+half, 5+half).Y, "kernel %d corner", k)
		assert.Zero(t, g.GrayAt(5+half+1, 5).Y, "kernel %d spills past its window", k)
		assert.Zero(t, g.GrayAt(5, 5-half-1).Y, "kernel %d spills past its window", k)
		assert.Greater(t, g.GrayAt(5, 5).Y, g.GrayAt(6, 5).Y)
	}
}

func TestGaussianKernelNormalized(t *testing.T) {
	k := gaussianKernel(5, KernelSigma(5))
	var sum float64
	for _, v := range k {
		sum += v
	}
	assert.InDelta(t, 1, sum, 1e-9)
	assert.Equal(t, k[0], k[24])
	assert.Greater(t, k[12], k[11])
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		op   Op
		ok   bool
	}{
		{"grayscale", Op{Name: OpGrayscale}, true},
		{"resize no size", Op{Name: OpResize}, false},
		{"resize bad filter", Op{Name: OpResize, Width: 10, Interpolation: "box"}, false},
		{"resize cubic", Op{Name: OpResize, Scale: 2, Interpolation: "CUBIC"}, true},
		{"alpha zero", Op{Name: OpBrightnessContrast}, false},
		{"even kernel", Op{Name: OpGaussianBlur, Kernel: 4}, false},
		{"odd kernel", Op{Name: OpGaussianBlur, Kernel: 5}, true},
		{"threshold no mode", Op{Name: OpThreshold}, false},
		{"threshold fixed", Op{Name: OpThreshold, Mode: ThresholdFixed, Value: 128}, true},
		{"adaptive small block", Op{Name: OpThreshold, Mode: ThresholdAdaptive, Block: 1}, false},
		{"morph bad mode", Op{Name: OpMorphology, Mode: "tophat", Kernel: 3}, false},
		{"sharpen", Op{Name: OpSharpen, Sigma: 1}, true},
		{"contrast range", Op{Name: OpContrast, Percent: 150}, false},
		{"unknown", Op{Name: "invert"}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.op.Validate()
			if c.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}

	err := Validate([]Op{{Name: OpGrayscale}, {Name: "nope"}})
	require.ErrorIs(t, err, ErrUnknownOp)
	assert.Contains(t, err.Error(), "op 1")
}

func TestOpString(t *testing.T) {
	assert.Equal(t, "resize(width=1200,lanczos)", Op{Name: OpResize, Width: 1200}.String())
	assert.Equal(t, "threshold(otsu)", Op{Name: OpThreshold, Mode: ThresholdOtsu}.String())
	assert.Equal(t, "grayscale", Op{Name: OpGrayscale}.String())
}
