package dedup

import (
	"sort"

	"gto_dupfinder/internal/domain"
)

// unionFind is a parent/rank arena over a dense index space. Find compresses
// paths, union is by rank, so the final partition does not depend on the
// order edges arrive.
type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), rank: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	switch {
	case u.rank[ra] < u.rank[rb]:
		u.parent[ra] = rb
	case u.rank[ra] > u.rank[rb]:
		u.parent[rb] = ra
	default:
		u.parent[rb] = ra
		u.rank[ra]++
	}
}

// Clusters merges auto/review pairs into connected components and emits one
// row per component of two or more hotels. Pairs flagged none never merge.
// Each row reports the component's strongest internal pair.
func Clusters(pairs []ScoredPair, hotels []domain.HotelRecord) []domain.ResultRow {
	flagged := make([]ScoredPair, 0, len(pairs))
	for _, p := range pairs {
		if p.Flag == FlagAuto || p.Flag == FlagReview {
			flagged = append(flagged, p)
		}
	}
	if len(flagged) == 0 {
		return nil
	}

	// One-time dense mapping from upstream ids, sorted for determinism.
	idSet := map[int64]struct{}{}
	for _, p := range flagged {
		idSet[p.A] = struct{}{}
		idSet[p.B] = struct{}{}
	}
	ids := make([]int64, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	dense := make(map[int64]int, len(ids))
	for i, id := range ids {
		dense[id] = i
	}

	uf := newUnionFind(len(ids))
	for _, p := range flagged {
		uf.union(dense[p.A], dense[p.B])
	}

	members := map[int][]int64{}
	for i, id := range ids {
		root := uf.find(i)
		members[root] = append(members[root], id)
	}

	// Strongest internal pair per component drives the row's score and reason.
	best := map[int]ScoredPair{}
	for _, p := range flagged {
		root := uf.find(dense[p.A])
		if cur, ok := best[root]; !ok || p.Confidence > cur.Confidence {
			best[root] = p
		}
	}

	byID := make(map[int64]domain.HotelRecord, len(hotels))
	for _, h := range hotels {
		byID[h.ID] = h
	}

	var rows []domain.ResultRow
	for root, ms := range members {
		if len(ms) < 2 {
			continue
		}
		sort.Slice(ms, func(i, j int) bool { return ms[i] < ms[j] })
		bp := best[root]
		conf := bp.Confidence
		rows = append(rows, domain.ResultRow{
			HotelName:  joinDistinct(ms, byID, func(h domain.HotelRecord) string { return h.Name }, " / "),
			PrimaryID:  ms[0],
			MatchedIDs: ms[1:],
			Address:    joinDistinct(ms, byID, func(h domain.HotelRecord) string { return h.Address }, " | "),
			Confidence: &conf,
			Flag:       string(bp.Flag),
			Reason:     bp.Reason,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].PrimaryID < rows[j].PrimaryID })
	return rows
}

func joinDistinct(ids []int64, byID map[int64]domain.HotelRecord, get func(domain.HotelRecord) string, sep string) string {
	seen := map[string]struct{}{}
	out := ""
	for _, id := range ids {
		v := get(byID[id])
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		if out != "" {
			out += sep
		}
		out += v
	}
	return out
}
