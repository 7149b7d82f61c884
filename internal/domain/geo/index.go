package geo

import (
	"sort"

	geohash "github.com/TomiHiltunen/geohash-golang"
	"github.com/golang/geo/s2"
)

// County is the boundary summary exposed by the county listing.
type County struct {
	Name    string  `json:"name"`
	State   string  `json:"state_fips"`
	GeoID   string  `json:"geo_id"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Geohash string  `json:"geohash"`

	bounds s2.Rect
	center s2.LatLng
}

// Index looks up counties by location.
type Index struct {
	counties []County
}

// NewIndex summarizes every feature of fc, ordered by name then GeoID.
func NewIndex(fc *FeatureCollection) *Index {
	idx := &Index{counties: make([]County, 0, len(fc.Features))}
	for _, f := range fc.Features {
		b := f.Bounds()
		if b.IsEmpty() {
			continue
		}
		c := b.Center()
		idx.counties = append(idx.counties, County{
			Name:    f.Name(),
			State:   f.State(),
			GeoID:   f.GeoID(),
			Lat:     c.Lat.Degrees(),
			Lng:     c.Lng.Degrees(),
			Geohash: geohash.Encode(c.Lat.Degrees(), c.Lng.Degrees()),
			bounds:  b,
			center:  c,
		})
	}
	sort.SliceStable(idx.counties, func(a, b int) bool {
		if idx.counties[a].Name != idx.counties[b].Name {
			return idx.counties[a].Name < idx.counties[b].Name
		}
		return idx.counties[a].GeoID < idx.counties[b].GeoID
	})
	return idx
}

// Counties returns a copy of the summaries.
func (idx *Index) Counties() []County {
	out := make([]County, len(idx.counties))
	copy(out, idx.counties)
	return out
}

// Len is the number of indexed counties.
func (idx *Index) Len() int { return len(idx.counties) }

// Locate returns the county whose bounding box holds the point. Overlapping
// boxes resolve to the nearest center.
func (idx *Index) Locate(lat, lng float64) (County, error) {
	ll := s2.LatLngFromDegrees(lat, lng)
	if !ll.IsValid() {
		return County{}, ErrNoCounty
	}
	best, found := -1, false
	var bestDist float64
	for i, c := range idx.counties {
		if !c.bounds.ContainsLatLng(ll) {
			continue
		}
		d := ll.Distance(c.center).Degrees()
		if !found || d < bestDist {
			best, bestDist, found = i, d, true
		}
	}
	if !found {
		return County{}, ErrNoCounty
	}
	return idx.counties[best], nil
}
