package geo

import (
	"errors"
	"strconv"
	"strings"

	"github.com/OCAP2/killcam/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// GEO POINTS
// Host positions are stored as XYZ points in scene units. No SRID is attached:
// scenes carry no geodetic reference, and SQLite reads the WKB back through
// the geometry Scan functions.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// PointFromVec3 returns v as an XYZ point.
func PointFromVec3(v core.Vec3) geom.Point {
	return geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: v.X(), Y: v.Y()},
		Z:    v.Z(),
		Type: geom.DimXYZ,
	})
}

// Vec3FromPoint returns the coordinates of p. An empty point is an error.
func Vec3FromPoint(p geom.Point) (core.Vec3, error) {
	c, ok := p.Coordinates()
	if !ok {
		return core.Vec3{}, ErrInvalidCoordinates
	}
	return core.Vec3{c.X, c.Y, c.Z}, nil
}

// PathLine returns the straight kill-cam flight from start to end.
func PathLine(start, end core.Vec3) geom.LineString {
	seq := geom.NewSequence([]float64{
		start.X(), start.Y(), start.Z(),
		end.X(), end.Y(), end.Z(),
	}, geom.DimXYZ)
	return geom.NewLineString(seq)
}

// PathEnds returns the first and last vertex of a path line.
func PathEnds(ls geom.LineString) (core.Vec3, core.Vec3, error) {
	seq := ls.Coordinates()
	n := seq.Length()
	if n < 2 {
		return core.Vec3{}, core.Vec3{}, ErrInvalidCoordinates
	}
	a, b := seq.Get(0), seq.Get(n-1)
	return core.Vec3{a.X, a.Y, a.Z}, core.Vec3{b.X, b.Y, b.Z}, nil
}

// Vec3FromString parses "x,y" or "x,y,z" into a vector.
func Vec3FromString(coords string) (core.Vec3, error) {
	parts := strings.Split(strings.Trim(strings.TrimSpace(coords), "[]"), ",")
	if len(parts) < 2 || len(parts) > 3 {
		return core.Vec3{}, ErrInvalidCoordinates
	}
	var v core.Vec3
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return core.Vec3{}, ErrInvalidCoordinates
		}
		v[i] = f
	}
	return v, nil
}
