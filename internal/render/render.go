// Package render draws resolved employer locations on top of a state outline.
package render

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"math"

	"github.com/UnknownOlympus/jobmap/internal/models"
	"github.com/twpayne/go-geom"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

const (
	// DefaultLabel is the legend entry of the job markers.
	DefaultLabel = "H-2A Employer Jobs"
	// DefaultWidth and DefaultHeight give a 12x10 inch figure.
	DefaultWidth  = 12 * vg.Inch
	DefaultHeight = 10 * vg.Inch
)

// ErrNoBoundary is returned when Map is called without a region outline.
var ErrNoBoundary = errors.New("boundary is empty")

var (
	boundaryFill = color.RGBA{R: 211, G: 211, B: 211, A: 255}
	boundaryEdge = color.Black
	markerColor  = color.NRGBA{R: 255, A: 153}
	markerRadius = vg.Length(math.Sqrt(30) / 2)
)

// Options controls the output figure.
type Options struct {
	Path   string    // Output file, its extension selects the format (png, svg, pdf, ...)
	Title  string    // Figure title
	Label  string    // Legend entry of the markers, DefaultLabel when empty
	Width  vg.Length // Figure width, DefaultWidth when zero
	Height vg.Length // Figure height, DefaultHeight when zero
}

// Title returns the figure title used for a state.
func Title(stateName string) string {
	return "H-2A Guestworker Job Locations in " + stateName
}

// Map draws the boundary as a light gray area with a black outline, puts one
// red marker per record at its longitude and latitude and saves the figure.
func Map(boundary *geom.MultiPolygon, points []models.ResolvedRecord, opts Options) error {
	if boundary == nil || boundary.NumPolygons() == 0 {
		return ErrNoBoundary
	}
	if opts.Label == "" {
		opts.Label = DefaultLabel
	}
	if opts.Width == 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height == 0 {
		opts.Height = DefaultHeight
	}

	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = "Longitude"
	p.Y.Label.Text = "Latitude"

	for i := range boundary.NumPolygons() {
		area, err := polygon(boundary.Polygon(i))
		if err != nil {
			return fmt.Errorf("failed to draw boundary polygon %d: %w", i, err)
		}
		p.Add(area)
	}

	xys := make(plotter.XYs, len(points))
	for i, point := range points {
		xys[i] = plotter.XY{X: point.Coordinates.Longitude, Y: point.Coordinates.Latitude}
	}
	scatter, err := plotter.NewScatter(xys)
	if err != nil {
		return fmt.Errorf("failed to draw job markers: %w", err)
	}
	scatter.GlyphStyle = draw.GlyphStyle{
		Color:  markerColor,
		Radius: markerRadius,
		Shape:  draw.CircleGlyph{},
	}
	p.Add(scatter)

	p.Legend.Add(opts.Label, scatter)
	p.Legend.Top = true

	if err = p.Save(opts.Width, opts.Height, opts.Path); err != nil {
		return fmt.Errorf("failed to save map to %s: %w", opts.Path, err)
	}

	return nil
}

func polygon(poly *geom.Polygon) (*plotter.Polygon, error) {
	rings := make([]plotter.XYer, 0, poly.NumLinearRings())
	for i := range poly.NumLinearRings() {
		ring := poly.LinearRing(i)
		xys := make(plotter.XYs, ring.NumCoords())
		for j := range ring.NumCoords() {
			coord := ring.Coord(j)
			xys[j] = plotter.XY{X: coord.X(), Y: coord.Y()}
		}
		rings = append(rings, xys)
	}

	area, err := plotter.NewPolygon(rings...)
	if err != nil {
		return nil, err
	}
	area.Color = boundaryFill
	area.LineStyle.Color = boundaryEdge
	area.LineStyle.Width = vg.Points(1)

	return area, nil
}

// RegionSource provides the outline of the mapped state.
type RegionSource interface {
	Region(ctx context.Context) (*geom.MultiPolygon, error)
}

// StateMap renders resolved records of one state into a file.
type StateMap struct {
	source RegionSource
	opts   Options
	log    *slog.Logger
}

// NewStateMap creates a StateMap that reads its outline from source.
func NewStateMap(source RegionSource, opts Options, log *slog.Logger) *StateMap {
	return &StateMap{source: source, opts: opts, log: log}
}

// Render fetches the state outline and writes the map with the given records.
func (m *StateMap) Render(ctx context.Context, points []models.ResolvedRecord) error {
	region, err := m.source.Region(ctx)
	if err != nil {
		return fmt.Errorf("failed to load state boundary: %w", err)
	}

	if err = Map(region, points, m.opts); err != nil {
		return err
	}
	m.log.InfoContext(ctx, "Map saved", "path", m.opts.Path, "points", len(points))

	return nil
}
