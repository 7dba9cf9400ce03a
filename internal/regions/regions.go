// Package regions maps calibrated field rectangles onto concrete document images.
package regions

import (
	"errors"
	"fmt"
	"image"
	"sort"

	"github.com/MeKo-Tech/idextract/internal/utils"
)

// Field names of the Arabic-layout national ID.
const (
	FieldName        = "name"
	FieldDateOfBirth = "date_of_birth"
	FieldIDNumber    = "id_number"
)

// ErrEmptyRegion marks a region that has no pixels once clipped to the image.
var ErrEmptyRegion = errors.New("empty region")

// Rect is a calibrated rectangle in reference-frame pixels.
type Rect struct {
	X           int  `mapstructure:"x" yaml:"x" json:"x"`
	Y           int  `mapstructure:"y" yaml:"y" json:"y"`
	Width       int  `mapstructure:"width" yaml:"width" json:"width"`
	Height      int  `mapstructure:"height" yaml:"height" json:"height"`
	ExtendRight bool `mapstructure:"extend_right" yaml:"extend_right,omitempty" json:"extend_right,omitempty"`
}

// Calibration is the set of named rectangles for one document layout.
type Calibration struct {
	ReferenceWidth  int             `mapstructure:"reference_width" yaml:"reference_width" json:"reference_width"`
	ReferenceHeight int             `mapstructure:"reference_height" yaml:"reference_height" json:"reference_height"`
	Regions         map[string]Rect `mapstructure:"regions" yaml:"regions" json:"regions"`
}

// DefaultCalibration returns the layout measured on 1000x700 national ID scans.
func DefaultCalibration() Calibration {
	return Calibration{
		ReferenceWidth:  1000,
		ReferenceHeight: 700,
		Regions: map[string]Rect{
			FieldName:        {X: 650, Y: 130, Height: 70, ExtendRight: true},
			FieldDateOfBirth: {X: 300, Y: 300, Width: 300, Height: 50},
			FieldIDNumber:    {X: 20, Y: 600, Width: 250, Height: 50},
		},
	}
}

// Validate checks rectangle geometry.
func (c Calibration) Validate() error {
	if c.ReferenceWidth <= 0 || c.ReferenceHeight <= 0 {
		return fmt.Errorf("reference frame must be positive, got %dx%d", c.ReferenceWidth, c.ReferenceHeight)
	}
	if len(c.Regions) == 0 {
		return errors.New("calibration has no regions")
	}
	for _, name := range c.Names() {
		r := c.Regions[name]
		if r.X < 0 || r.Y < 0 || r.Height <= 0 {
			return fmt.Errorf("region %s: invalid geometry %+v", name, r)
		}
		if !r.ExtendRight && r.Width <= 0 {
			return fmt.Errorf("region %s: width must be positive unless extend_right is set", name)
		}
	}
	return nil
}

// Names returns region names in a stable order.
func (c Calibration) Names() []string {
	names := make([]string, 0, len(c.Regions))
	for n := range c.Regions {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Region is a calibrated rectangle resolved against an image size.
type Region struct {
	Name  string
	Rect  image.Rectangle
	Empty bool
}

// Err returns ErrEmptyRegion for empty regions.
func (r Region) Err() error {
	if r.Empty {
		return fmt.Errorf("%s: %w", r.Name, ErrEmptyRegion)
	}
	return nil
}

// Select resolves every calibrated rectangle against an image of the given
// size. Rectangles are clipped to the image, never scaled, and never fail.
func Select(cal Calibration, dims image.Point) map[string]Region {
	bounds := image.Rect(0, 0, dims.X, dims.Y)
	out := make(map[string]Region, len(cal.Regions))
	for name, r := range cal.Regions {
		maxX := r.X + r.Width
		if r.ExtendRight {
			maxX = dims.X
		}
		rect := utils.NewBox(float64(r.X), float64(r.Y), float64(maxX), float64(r.Y+r.Height)).ToRect(bounds)
		out[name] = Region{Name: name, Rect: rect, Empty: rect.Empty()}
	}
	return out
}

// Crop returns an independent copy of the region's pixels. The region
// rectangle is in image-relative coordinates.
func Crop(img image.Image, region Region) (image.Image, error) {
	if err := region.Err(); err != nil {
		return nil, err
	}
	b := img.Bounds()
	crop := utils.CropImageRect(img, region.Rect.Add(b.Min))
	if crop == nil {
		return nil, fmt.Errorf("%s: %w", region.Name, ErrEmptyRegion)
	}
	return crop, nil
}
