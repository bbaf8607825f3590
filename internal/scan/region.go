package scan

import (
	"fmt"
	"image"
	"image/draw"
	"math"
	"strconv"
	"strings"
)

// Region is a rectangle in fractions of the frame size
type Region struct {
	X, Y, W, H float64
}

var presets = map[string]Region{
	"top-right":    {X: 0.70, Y: 0, W: 0.30, H: 0.25},
	"top-left":     {X: 0, Y: 0, W: 0.30, H: 0.25},
	"bottom-right": {X: 0.70, Y: 0.75, W: 0.30, H: 0.25},
	"bottom-left":  {X: 0, Y: 0.75, W: 0.30, H: 0.25},
	"left-middle":  {X: 0, Y: 1.0 / 3, W: 0.25, H: 1.0 / 3},
	"right-middle": {X: 0.75, Y: 1.0 / 3, W: 0.25, H: 1.0 / 3},
	"full":         {X: 0, Y: 0, W: 1, H: 1},
}

// ParseRegion accepts a preset name or "x,y,w,h" fractions
func ParseRegion(s string) (Region, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if r, ok := presets[s]; ok {
		return r, nil
	}

	fields := strings.Split(s, ",")
	if len(fields) != 4 {
		return Region{}, fmt.Errorf("invalid region %q: want a preset or x,y,w,h", s)
	}
	var v [4]float64
	for i, f := range fields {
		n, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return Region{}, fmt.Errorf("invalid region %q: %w", s, err)
		}
		v[i] = n
	}

	r := Region{X: v[0], Y: v[1], W: v[2], H: v[3]}
	if err := r.Validate(); err != nil {
		return Region{}, err
	}
	return r, nil
}

// Validate checks that the region lies inside the frame and is not empty
func (r Region) Validate() error {
	for _, v := range []float64{r.X, r.Y, r.W, r.H} {
		if v < 0 || v > 1 {
			return fmt.Errorf("region values must be in [0, 1]: %+v", r)
		}
	}
	if r.W == 0 || r.H == 0 {
		return fmt.Errorf("region has no area: %+v", r)
	}
	if r.X+r.W > 1.0001 || r.Y+r.H > 1.0001 {
		return fmt.Errorf("region extends past the frame: %+v", r)
	}
	return nil
}

// Rect converts the region to pixels within bounds. The result is never
// empty for a valid region on a non-empty frame.
func (r Region) Rect(bounds image.Rectangle) image.Rectangle {
	w, h := bounds.Dx(), bounds.Dy()
	x0 := bounds.Min.X + int(math.Round(r.X*float64(w)))
	y0 := bounds.Min.Y + int(math.Round(r.Y*float64(h)))
	x1 := x0 + max(1, int(math.Round(r.W*float64(w))))
	y1 := y0 + max(1, int(math.Round(r.H*float64(h))))
	return image.Rect(x0, y0, x1, y1).Intersect(bounds)
}

// Crop returns the part of img inside rect
func Crop(img image.Image, rect image.Rectangle) image.Image {
	if sub, ok := img.(interface {
		SubImage(image.Rectangle) image.Image
	}); ok {
		return sub.SubImage(rect)
	}
	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(dst, dst.Bounds(), img, rect.Min, draw.Src)
	return dst
}
