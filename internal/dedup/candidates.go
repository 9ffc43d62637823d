package dedup

import (
	"sort"

	"gto_dupfinder/internal/domain"
)

// Reasons a pair was proposed for scoring.
const (
	ReasonGeo      = "geo"      // within the proximity radius
	ReasonName     = "name"     // share at least one indexable name token
	ReasonNoCoords = "nocoords" // name overlap where a side has no coordinates
)

// CandidatePair is an unordered pair of hotel ids (A < B) with the merged
// set of reasons it was proposed. One pair is scored once regardless of how
// many generators proposed it.
type CandidatePair struct {
	A, B    int64
	Reasons map[string]struct{}
}

type pairKey struct{ a, b int64 }

func keyOf(x, y int64) pairKey {
	if x < y {
		return pairKey{x, y}
	}
	return pairKey{y, x}
}

const (
	baseRadiusM   = 250.0
	sparseRadiusM = 500.0
	// Below this many hotels a city is sparse: fewer comparisons to pay for,
	// and true duplicates sit further apart in small markets.
	sparseCityThreshold = 200
)

func cityRadiusM(hotelCount int) float64 {
	if hotelCount < sparseCityThreshold {
		return sparseRadiusM
	}
	return baseRadiusM
}

// Candidates proposes the pairs worth scoring: per-city geo proximity via a
// spatial grid, plus a global name-token inverted index. Hotels without
// coordinates can only surface through name overlap.
func Candidates(hotels []domain.HotelRecord) []CandidatePair {
	pairs := map[pairKey]*CandidatePair{}
	add := func(x, y int64, reason string) {
		if x == y {
			return
		}
		k := keyOf(x, y)
		p, ok := pairs[k]
		if !ok {
			p = &CandidatePair{A: k.a, B: k.b, Reasons: map[string]struct{}{}}
			pairs[k] = p
		}
		p.Reasons[reason] = struct{}{}
	}

	// Per-city spatial grids.
	byCity := map[int64][]int{}
	for i, h := range hotels {
		byCity[h.CityID] = append(byCity[h.CityID], i)
	}
	for _, idxs := range byCity {
		geoCandidates(hotels, idxs, cityRadiusM(len(idxs)), add)
	}

	// Global name-token inverted index.
	tokenIndex := map[string][]int{}
	tokenSets := make([]map[string]struct{}, len(hotels))
	for i, h := range hotels {
		tokenSets[i] = NameTokens(h.Name)
		for t := range tokenSets[i] {
			tokenIndex[t] = append(tokenIndex[t], i)
		}
	}
	for _, group := range tokenIndex {
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				a, b := hotels[group[i]], hotels[group[j]]
				reason := ReasonName
				if !a.HasCoords() || !b.HasCoords() {
					reason = ReasonNoCoords
				}
				add(a.ID, b.ID, reason)
			}
		}
	}

	out := make([]CandidatePair, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	return out
}

func geoCandidates(hotels []domain.HotelRecord, idxs []int, radiusM float64, add func(x, y int64, reason string)) {
	var located []int
	refLat := 0.0
	for _, i := range idxs {
		if hotels[i].HasCoords() {
			located = append(located, i)
			refLat += *hotels[i].Lat
		}
	}
	if len(located) < 2 {
		return
	}
	refLat /= float64(len(located))

	grid := newGeoGrid(radiusM, refLat)
	for _, i := range located {
		grid.insert(*hotels[i].Lat, *hotels[i].Lon, i)
	}
	for _, i := range located {
		h := hotels[i]
		for _, j := range grid.neighbors(*h.Lat, *h.Lon) {
			if j <= i {
				continue // each grid pair considered once
			}
			o := hotels[j]
			if HaversineM(*h.Lat, *h.Lon, *o.Lat, *o.Lon) <= radiusM {
				add(h.ID, o.ID, ReasonGeo)
			}
		}
	}
}

// ParticipantIDs returns the distinct hotel ids appearing in any pair,
// the set that demand-driven detail enrichment has to cover.
func ParticipantIDs(pairs []CandidatePair) []int64 {
	seen := map[int64]struct{}{}
	var out []int64
	for _, p := range pairs {
		for _, id := range [2]int64{p.A, p.B} {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				out = append(out, id)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
