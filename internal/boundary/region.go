package boundary

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/twpayne/go-geom"
)

// DefaultField is the attribute holding the state name in Census boundary files.
const DefaultField = "NAME"

var (
	// ErrFieldNotFound is returned when the shapefile has no attribute with the requested name.
	ErrFieldNotFound = errors.New("attribute field not found")
	// ErrRegionNotFound is returned when no record carries the requested attribute value.
	ErrRegionNotFound = errors.New("region not found")
)

// ReadRegion returns the outline of every record in shpPath whose attribute field
// equals value, as a single MultiPolygon in EPSG:4326. Field names are matched
// case-insensitively, values exactly after trimming padding.
func ReadRegion(shpPath, field, value string) (*geom.MultiPolygon, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open shapefile %s: %w", shpPath, err)
	}
	defer reader.Close()

	idx := -1
	for i, f := range reader.Fields() {
		if strings.EqualFold(strings.TrimRight(f.String(), "\x00"), field) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrFieldNotFound, field)
	}

	region := geom.NewMultiPolygon(geom.XY).SetSRID(4326)
	matched := false
	for reader.Next() {
		_, shape := reader.Shape()
		attr := strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
		if attr != value {
			continue
		}
		matched = true

		polygon, ok := shape.(*shp.Polygon)
		if !ok {
			continue
		}
		if err = appendPolygon(region, polygon); err != nil {
			return nil, err
		}
	}
	if err = reader.Err(); err != nil {
		return nil, fmt.Errorf("failed to read shapefile %s: %w", shpPath, err)
	}
	if !matched || region.NumPolygons() == 0 {
		return nil, fmt.Errorf("%w: %s=%s", ErrRegionNotFound, field, value)
	}

	return region, nil
}

// appendPolygon pushes the parts of p onto mp. Shapefiles store outer rings
// clockwise and holes counter-clockwise, so each clockwise ring starts a polygon
// and the counter-clockwise rings after it become its holes. A hole with no outer
// ring before it is kept as a polygon of its own.
// Rings with fewer than four points are not closed and are skipped.
func appendPolygon(mp *geom.MultiPolygon, p *shp.Polygon) error {
	var current *geom.Polygon
	flush := func() error {
		if current == nil {
			return nil
		}
		if err := mp.Push(current); err != nil {
			return fmt.Errorf("failed to add polygon %d: %w", mp.NumPolygons(), err)
		}
		current = nil

		return nil
	}

	for i := range p.NumParts {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if end-start < 4 {
			continue
		}

		points := p.Points[start:end]
		flat := make([]float64, 0, len(points)*2)
		for _, pt := range points {
			flat = append(flat, pt.X, pt.Y)
		}

		if current == nil || !isHole(points) {
			if err := flush(); err != nil {
				return err
			}
			current = geom.NewPolygon(geom.XY)
		}
		if err := current.Push(geom.NewLinearRingFlat(geom.XY, flat)); err != nil {
			return fmt.Errorf("failed to build ring %d: %w", i, err)
		}
	}

	return flush()
}

// isHole reports whether the closed ring winds counter-clockwise,
// using the sign of its shoelace area.
func isHole(ring []shp.Point) bool {
	var area float64
	for i := 0; i+1 < len(ring); i++ {
		area += ring[i].X*ring[i+1].Y - ring[i+1].X*ring[i].Y
	}

	return area > 0
}

// RegionFetcher downloads the archive behind a URL and returns its shapefile path.
type RegionFetcher interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}

// Source resolves one named region of a remote boundary archive.
type Source struct {
	Fetcher RegionFetcher
	URL     string
	Field   string
	Value   string
}

// Region downloads the archive if needed and reads the configured region from it.
func (s Source) Region(ctx context.Context) (*geom.MultiPolygon, error) {
	shpPath, err := s.Fetcher.Fetch(ctx, s.URL)
	if err != nil {
		return nil, err
	}

	field := s.Field
	if field == "" {
		field = DefaultField
	}

	return ReadRegion(shpPath, field, s.Value)
}
