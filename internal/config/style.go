package config

import (
	"fmt"
	"maps"
	"strings"

	"github.com/voltask/graphx/internal/graph"
)

// DefaultColor is used for node types without an entry in TypeColors.
const DefaultColor = "#AAA"

// Style configures how nodes are drawn.
type Style struct {
	MinSize      float64           `yaml:"min_size,omitempty" validate:"gte=0"`
	MaxSize      float64           `yaml:"max_size,omitempty" validate:"gte=0"`
	SizeScale    float64           `yaml:"size_scale,omitempty" validate:"gte=0"`
	DefaultColor string            `yaml:"default_color,omitempty"`
	TypeColors   map[string]string `yaml:"type_colors,omitempty"`
}

// DefaultTypeColors returns the colour assigned to each known node type.
func DefaultTypeColors() map[string]string {
	return map[string]string{
		"volunteer":    "#F16667",
		"skill":        "#8DCC93",
		"task":         "#D9C8AE",
		"group":        "#569480",
		"place":        "#A5ABB6",
		"coordinator":  "#DA7194",
		"taskcategory": "#FFC454",
	}
}

// DefaultStyle returns the built-in style.
func DefaultStyle() Style {
	return Style{}.withDefaults()
}

// withDefaults fills unset fields. Configured type colours are layered over
// the defaults, keyed by lower-case type.
func (s Style) withDefaults() Style {
	scale := graph.DefaultSizeScale()
	if s.MinSize == 0 {
		s.MinSize = scale.Min
	}
	if s.MaxSize == 0 {
		s.MaxSize = scale.Max
	}
	if s.SizeScale == 0 {
		s.SizeScale = scale.Factor
	}
	if s.DefaultColor == "" {
		s.DefaultColor = DefaultColor
	}

	colors := DefaultTypeColors()
	for t, c := range s.TypeColors {
		colors[strings.ToLower(t)] = c
	}
	s.TypeColors = colors
	return s
}

// Validate checks that the size bounds are ordered.
func (s Style) Validate() error {
	if s.MaxSize != 0 && s.MinSize > s.MaxSize {
		return fmt.Errorf("invalid style: min_size %.1f exceeds max_size %.1f", s.MinSize, s.MaxSize)
	}
	return nil
}

// Scale returns the node sizing parameters.
func (s Style) Scale() graph.SizeScale {
	return graph.SizeScale{Min: s.MinSize, Max: s.MaxSize, Factor: s.SizeScale}
}

// ColorFor returns the colour for a node type.
func (s Style) ColorFor(nodeType string) string {
	if c, ok := s.TypeColors[strings.ToLower(nodeType)]; ok {
		return c
	}
	if s.DefaultColor != "" {
		return s.DefaultColor
	}
	return DefaultColor
}

// Colors returns a copy of the type colour map.
func (s Style) Colors() map[string]string {
	return maps.Clone(s.TypeColors)
}
