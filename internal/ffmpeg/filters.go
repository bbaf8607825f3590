package ffmpeg

import (
	"fmt"
	"strings"
)

// FilterBuilder helps construct linear ffmpeg filter chains
type FilterBuilder struct {
	filters []string
}

// NewFilterBuilder creates a new filter builder
func NewFilterBuilder() *FilterBuilder {
	return &FilterBuilder{
		filters: make([]string, 0),
	}
}

// Scale adds a scale filter
func (fb *FilterBuilder) Scale(width, height int) *FilterBuilder {
	if width <= 0 || height <= 0 {
		// Return self without adding filter - allows chaining to continue
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf("scale=%d:%d", width, height))
	return fb
}

// ScaleToHeight scales to height keeping aspect ratio with an even width
func (fb *FilterBuilder) ScaleToHeight(height int) *FilterBuilder {
	if height <= 0 {
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf("scale=-2:%d", height))
	return fb
}

// CropExpr adds a crop filter from expressions. Expressions containing commas
// are quoted so they survive filtergraph parsing.
func (fb *FilterBuilder) CropExpr(width, height, x, y string) *FilterBuilder {
	fb.filters = append(fb.filters, fmt.Sprintf("crop=%s:%s:%s:%s", quoteExpr(width), quoteExpr(height), quoteExpr(x), quoteExpr(y)))
	return fb
}

// Pad adds a pad filter placing the input at (x, y) on a width x height canvas
func (fb *FilterBuilder) Pad(width, height int, x, y, color string) *FilterBuilder {
	if width <= 0 || height <= 0 {
		return fb
	}
	if color == "" {
		color = "black"
	}
	fb.filters = append(fb.filters, fmt.Sprintf("pad=%d:%d:%s:%s:%s", width, height, quoteExpr(x), quoteExpr(y), color))
	return fb
}

// Format adds a pixel format conversion
func (fb *FilterBuilder) Format(pixFmt string) *FilterBuilder {
	if pixFmt == "" {
		return fb
	}
	fb.filters = append(fb.filters, "format="+pixFmt)
	return fb
}

// Custom adds a custom filter string
func (fb *FilterBuilder) Custom(filter string) *FilterBuilder {
	if filter == "" {
		return fb
	}
	fb.filters = append(fb.filters, filter)
	return fb
}

// Build returns the complete filter string joined with commas
func (fb *FilterBuilder) Build() string {
	if len(fb.filters) == 0 {
		return ""
	}
	return strings.Join(fb.filters, ",")
}

// FilterGraph assembles labelled chains for -filter_complex
type FilterGraph struct {
	chains []string
}

// NewFilterGraph creates an empty graph
func NewFilterGraph() *FilterGraph {
	return &FilterGraph{}
}

// Chain appends "[in1][in2]filters[out]"
func (g *FilterGraph) Chain(inputs []string, filters, output string) *FilterGraph {
	var sb strings.Builder
	for _, in := range inputs {
		sb.WriteString("[" + in + "]")
	}
	sb.WriteString(filters)
	if output != "" {
		sb.WriteString("[" + output + "]")
	}
	g.chains = append(g.chains, sb.String())
	return g
}

// Build joins chains with semicolons
func (g *FilterGraph) Build() string {
	return strings.Join(g.chains, ";")
}

func quoteExpr(expr string) string {
	if strings.ContainsAny(expr, ",") {
		return "'" + expr + "'"
	}
	return expr
}
