package dedup

import (
	"fmt"
	"strings"

	"gto_dupfinder/internal/domain"
)

type Flag string

const (
	FlagAuto   Flag = "auto"
	FlagReview Flag = "review"
	FlagNone   Flag = "none"
)

// ScoredPair carries the per-factor sub-scores behind a fused confidence.
// Pointer sub-scores are nil when the factor had no data on one side and was
// excluded from fusion.
type ScoredPair struct {
	A, B          int64
	DistanceM     *float64
	DistanceScore *float64
	NameScore     float64
	AddressScore  float64
	ContactScore  *float64
	Confidence    float64
	Flag          Flag
	Reason        string
}

// Fusion weights. Inactive factors surrender their weight proportionally to
// the remaining ones, so active weights always sum to 1.
const (
	wContact  = 0.35
	wDistance = 0.25
	wName     = 0.25
	wAddress  = 0.15
)

const (
	distFloorM  = 50.0
	distCeilM   = 2000.0
	autoDistM   = 150.0
	autoNameGeo = 0.88
	autoNameCtc = 0.75
	reviewConf  = 0.75
)

// normFields is the per-hotel normalization cache: computed once per scan,
// never mutated afterwards.
type normFields struct {
	nameTokens map[string]struct{}
	addrTokens map[string]struct{}
	site       string
	phone      string
	hasContact bool
}

// Scorer scores candidate pairs over an immutable snapshot of records and
// their lazily fetched details.
type Scorer struct {
	byID    map[int64]domain.HotelRecord
	details map[int64]domain.HotelDetail
	norm    map[int64]*normFields
}

func NewScorer(hotels []domain.HotelRecord, details map[int64]domain.HotelDetail) *Scorer {
	byID := make(map[int64]domain.HotelRecord, len(hotels))
	for _, h := range hotels {
		byID[h.ID] = h
	}
	if details == nil {
		details = map[int64]domain.HotelDetail{}
	}
	return &Scorer{byID: byID, details: details, norm: map[int64]*normFields{}}
}

func (s *Scorer) fields(id int64) *normFields {
	if f, ok := s.norm[id]; ok {
		return f
	}
	h := s.byID[id]
	d := s.details[id]
	f := &normFields{
		nameTokens: NameTokens(h.Name),
		addrTokens: AddressTokens(h.Address),
		site:       NormalizeSite(d.Site),
		phone:      NormalizePhone(d.Phone),
		hasContact: d.HasContact(),
	}
	s.norm[id] = f
	return f
}

// Score fuses the four sub-scores and classifies the pair.
func (s *Scorer) Score(p CandidatePair) ScoredPair {
	h1, h2 := s.byID[p.A], s.byID[p.B]
	f1, f2 := s.fields(p.A), s.fields(p.B)

	sp := ScoredPair{
		A:            p.A,
		B:            p.B,
		NameScore:    Jaccard(f1.nameTokens, f2.nameTokens),
		AddressScore: Jaccard(f1.addrTokens, f2.addrTokens),
	}

	if h1.HasCoords() && h2.HasCoords() {
		d := HaversineM(*h1.Lat, *h1.Lon, *h2.Lat, *h2.Lon)
		ds := distanceScore(d)
		sp.DistanceM = &d
		sp.DistanceScore = &ds
	}

	if f1.hasContact && f2.hasContact {
		cs := 0.0
		if contactMatch(f1, f2) {
			cs = 1.0
		}
		sp.ContactScore = &cs
	}

	sp.Confidence = fuse(sp)
	sp.Flag = classify(sp)
	sp.Reason = reason(sp)
	return sp
}

// ScoreAll scores every pair in order.
func (s *Scorer) ScoreAll(pairs []CandidatePair) []ScoredPair {
	out := make([]ScoredPair, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, s.Score(p))
	}
	return out
}

func distanceScore(m float64) float64 {
	switch {
	case m <= distFloorM:
		return 1
	case m >= distCeilM:
		return 0
	default:
		return 1 - (m-distFloorM)/(distCeilM-distFloorM)
	}
}

func contactMatch(a, b *normFields) bool {
	if a.site != "" && a.site == b.site {
		return true
	}
	if a.phone != "" && a.phone == b.phone {
		return true
	}
	return false
}

func fuse(sp ScoredPair) float64 {
	totalW := wName + wAddress
	sum := wName*sp.NameScore + wAddress*sp.AddressScore
	if sp.DistanceScore != nil {
		totalW += wDistance
		sum += wDistance * *sp.DistanceScore
	}
	if sp.ContactScore != nil {
		totalW += wContact
		sum += wContact * *sp.ContactScore
	}
	return sum / totalW
}

// classify applies the flag rules in priority order; the first match wins.
func classify(sp ScoredPair) Flag {
	contact := sp.ContactScore != nil && *sp.ContactScore == 1
	if (contact && sp.NameScore >= autoNameCtc) ||
		(sp.DistanceM != nil && *sp.DistanceM < autoDistM && sp.NameScore >= autoNameGeo) {
		return FlagAuto
	}
	if sp.Confidence >= reviewConf {
		return FlagReview
	}
	// Everything below review is dropped, including the explicit suppressions:
	// confidence under the floor, or far apart with no contact evidence.
	return FlagNone
}

func reason(sp ScoredPair) string {
	var parts []string
	if sp.DistanceM != nil {
		parts = append(parts, fmt.Sprintf("distance %d m", int(*sp.DistanceM)))
	}
	parts = append(parts,
		fmt.Sprintf("name similarity %.2f", sp.NameScore),
		fmt.Sprintf("address similarity %.2f", sp.AddressScore),
	)
	if sp.ContactScore != nil && *sp.ContactScore == 1 {
		parts = append(parts, "site/phone match")
	}
	return strings.Join(parts, ", ")
}
