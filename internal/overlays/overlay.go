package overlays

import (
	"github.com/kikiluvv/killreel/internal/config"
	"github.com/kikiluvv/killreel/internal/ffmpeg"
	"github.com/kikiluvv/killreel/pkg/util"
	"github.com/rs/zerolog"
)

// Overlay is a static image stamped onto every vertical render
type Overlay struct {
	Name     string
	Path     string
	Width    int
	Height   int
	Position Position
}

// Position holds ffmpeg overlay expressions. W/H are the canvas size, w/h the
// scaled overlay size.
type Position struct {
	X string
	Y string
}

// Registry keeps overlays in stacking order
type Registry struct {
	overlays []Overlay
	byName   map[string]int
}

// NewRegistry creates a new overlay registry
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]int),
	}
}

// FromConfig builds a registry from the vertical overlay settings
func FromConfig(cfgs []config.OverlayConfig) *Registry {
	r := NewRegistry()
	for _, c := range cfgs {
		r.Register(Overlay{
			Name:     c.Name,
			Path:     c.Path,
			Width:    c.Width,
			Height:   c.Height,
			Position: Position{X: c.X, Y: c.Y},
		})
	}
	return r
}

// Register adds an overlay, replacing one with the same name in place
func (r *Registry) Register(o Overlay) {
	if i, ok := r.byName[o.Name]; ok {
		r.overlays[i] = o
		return
	}
	r.byName[o.Name] = len(r.overlays)
	r.overlays = append(r.overlays, o)
}

// Get retrieves an overlay by name
func (r *Registry) Get(name string) (Overlay, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Overlay{}, false
	}
	return r.overlays[i], true
}

// List returns all registered overlays in stacking order
func (r *Registry) List() []Overlay {
	return append([]Overlay(nil), r.overlays...)
}

// Resolve returns render specs for overlays whose image exists. Missing
// assets are skipped.
func (r *Registry) Resolve(logger zerolog.Logger) []ffmpeg.OverlaySpec {
	var specs []ffmpeg.OverlaySpec
	for _, o := range r.overlays {
		if !util.FileExists(o.Path) {
			logger.Debug().Str("overlay", o.Name).Str("path", o.Path).Msg("overlay asset missing, skipping")
			continue
		}
		specs = append(specs, ffmpeg.OverlaySpec{
			Path:   o.Path,
			Width:  o.Width,
			Height: o.Height,
			X:      o.Position.X,
			Y:      o.Position.Y,
		})
	}
	return specs
}
