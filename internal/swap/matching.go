package swap

import (
	"sort"

	"github.com/schedcore/schedcore/internal/entity"
)

// Match pairs two requests with the score that justified the pairing.
type Match struct {
	A, B  Request
	Score float64
}

// Matcher produces candidate pairings from a pool of pending requests.
// Implementations are tried in order by Engine.AutoMatch; each is free to
// consume only the subset of requests it knows how to pair, leaving the
// remainder for the next matcher.
type Matcher interface {
	Name() string
	Match(ctx *entity.SchedulingContext, pool []Request) []Match
}

// ExactMutualMatcher finds bilateral pairs where each party wants exactly
// what the other is giving up: a perfect trade, score 1.0.
type ExactMutualMatcher struct{}

func (ExactMutualMatcher) Name() string { return "exact_mutual" }

func (ExactMutualMatcher) Match(ctx *entity.SchedulingContext, pool []Request) []Match {
	var matches []Match
	used := make(map[int]bool)
	for i := 0; i < len(pool); i++ {
		if used[i] {
			continue
		}
		for j := i + 1; j < len(pool); j++ {
			if used[j] {
				continue
			}
			a, b := pool[i], pool[j]
			if a.WantedBlockID == b.GivingAssignment.BlockID && b.WantedBlockID == a.GivingAssignment.BlockID {
				matches = append(matches, Match{A: a, B: b, Score: 1.0})
				used[i], used[j] = true, true
				break
			}
		}
	}
	return matches
}

// GraphMaxWeightMatcher builds a complete weighted graph over the pool
// scored by CompatibilityScore and greedily extracts a maximum-weight
// matching (highest-scoring edge first, skipping nodes already matched).
// This greedy extraction approximates true Blossom-algorithm optimality but
// is exact for bipartite-like pools where few edges overlap, which covers
// the swap engine's typical request volumes.
type GraphMaxWeightMatcher struct{}

func (GraphMaxWeightMatcher) Name() string { return "graph_max_weight" }

type weightedEdge struct {
	i, j  int
	score float64
}

func (GraphMaxWeightMatcher) Match(ctx *entity.SchedulingContext, pool []Request) []Match {
	var edges []weightedEdge
	for i := 0; i < len(pool); i++ {
		for j := i + 1; j < len(pool); j++ {
			score := CompatibilityScore(ctx, pool[i], pool[j])
			if score < MinAutoMatchScore {
				continue
			}
			edges = append(edges, weightedEdge{i: i, j: j, score: score})
		}
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].score > edges[j].score })

	used := make(map[int]bool)
	var matches []Match
	for _, e := range edges {
		if used[e.i] || used[e.j] {
			continue
		}
		used[e.i], used[e.j] = true, true
		matches = append(matches, Match{A: pool[e.i], B: pool[e.j], Score: e.score})
	}
	return matches
}

// StableMatcher runs Gale-Shapley stable matching over the pool's own
// compatibility scores as a shared preference ranking: every request both
// proposes (as "A") and receives proposals (as "B"), converging on a pairing
// with no mutually-preferred unmatched alternative.
type StableMatcher struct{}

func (StableMatcher) Name() string { return "stable" }

func (StableMatcher) Match(ctx *entity.SchedulingContext, pool []Request) []Match {
	n := len(pool)
	if n < 2 {
		return nil
	}

	prefs := make([][]int, n)
	for i := range pool {
		ranked := make([]int, 0, n-1)
		for j := range pool {
			if i == j {
				continue
			}
			ranked = append(ranked, j)
		}
		sort.Slice(ranked, func(a, b int) bool {
			return CompatibilityScore(ctx, pool[i], pool[ranked[a]]) > CompatibilityScore(ctx, pool[i], pool[ranked[b]])
		})
		prefs[i] = ranked
	}

	matchedTo := make([]int, n)
	for i := range matchedTo {
		matchedTo[i] = -1
	}
	nextProposal := make([]int, n)
	free := make([]int, n)
	for i := range free {
		free[i] = i
	}

	for len(free) > 0 {
		proposer := free[0]
		free = free[1:]

		if nextProposal[proposer] >= len(prefs[proposer]) {
			continue // exhausted its preference list, stays unmatched
		}
		candidate := prefs[proposer][nextProposal[proposer]]
		nextProposal[proposer]++

		current := matchedTo[candidate]
		if current == -1 {
			matchedTo[proposer] = candidate
			matchedTo[candidate] = proposer
			continue
		}
		if CompatibilityScore(ctx, pool[candidate], pool[proposer]) > CompatibilityScore(ctx, pool[candidate], pool[current]) {
			matchedTo[proposer] = candidate
			matchedTo[candidate] = proposer
			matchedTo[current] = -1
			free = append(free, current)
		} else {
			free = append(free, proposer)
		}
	}

	var matches []Match
	seen := make(map[int]bool)
	for i, j := range matchedTo {
		if j == -1 || seen[i] || seen[j] {
			continue
		}
		score := CompatibilityScore(ctx, pool[i], pool[j])
		if score < MinAutoMatchScore {
			continue
		}
		matches = append(matches, Match{A: pool[i], B: pool[j], Score: score})
		seen[i], seen[j] = true, true
	}
	return matches
}

// DefaultMatchers is the order Engine.AutoMatch tries matchers in: exact
// mutual trades first (no scoring needed), then maximum-weight, falling
// back to stable matching for whatever remains unpaired.
func DefaultMatchers() []Matcher {
	return []Matcher{ExactMutualMatcher{}, GraphMaxWeightMatcher{}, StableMatcher{}}
}

// AutoMatch runs each matcher in order against the requests left unmatched
// by the previous one, filtering results below MinAutoMatchScore.
func AutoMatch(ctx *entity.SchedulingContext, pool []Request, matchers []Matcher) []Match {
	var all []Match
	remaining := append([]Request(nil), pool...)

	for _, m := range matchers {
		if len(remaining) < 2 {
			break
		}
		found := m.Match(ctx, remaining)
		matched := make(map[entity.PersonID]bool, len(found)*2)
		for _, mt := range found {
			if mt.Score < MinAutoMatchScore {
				continue
			}
			all = append(all, mt)
			matched[mt.A.PersonID] = true
			matched[mt.B.PersonID] = true
		}
		var next []Request
		for _, r := range remaining {
			if !matched[r.PersonID] {
				next = append(next, r)
			}
		}
		remaining = next
	}
	return all
}
