package dedup

import "math"

const earthRadiusM = 6371000.0

// HaversineM returns the great-circle distance between two points in meters.
func HaversineM(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dphi := (lat2 - lat1) * math.Pi / 180
	dlam := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dphi/2)*math.Sin(dphi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dlam/2)*math.Sin(dlam/2)
	return earthRadiusM * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// metersPerDegreeLat is effectively constant; longitude degrees shrink with
// latitude, handled per grid below.
const metersPerDegreeLat = 111320.0

type gridCell struct{ x, y int }

// geoGrid buckets points into square cells sized to the search radius, so a
// radius query only needs the cell and its eight neighbours.
type geoGrid struct {
	cellLatDeg float64
	cellLonDeg float64
	cells      map[gridCell][]int // values are indexes into the caller's slice
}

func newGeoGrid(radiusM, refLatDeg float64) *geoGrid {
	latDeg := radiusM / metersPerDegreeLat
	lonScale := math.Cos(refLatDeg * math.Pi / 180)
	if lonScale < 0.01 {
		lonScale = 0.01 // near the poles a cell degenerates; clamp instead
	}
	return &geoGrid{
		cellLatDeg: latDeg,
		cellLonDeg: radiusM / (metersPerDegreeLat * lonScale),
		cells:      map[gridCell][]int{},
	}
}

func (g *geoGrid) cellOf(lat, lon float64) gridCell {
	return gridCell{
		x: int(math.Floor(lon / g.cellLonDeg)),
		y: int(math.Floor(lat / g.cellLatDeg)),
	}
}

func (g *geoGrid) insert(lat, lon float64, idx int) {
	c := g.cellOf(lat, lon)
	g.cells[c] = append(g.cells[c], idx)
}

// neighbors yields the indexes stored in the 3x3 block around (lat, lon).
func (g *geoGrid) neighbors(lat, lon float64) []int {
	c := g.cellOf(lat, lon)
	var out []int
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			out = append(out, g.cells[gridCell{c.x + dx, c.y + dy}]...)
		}
	}
	return out
}
