package swap

import "github.com/schedcore/schedcore/internal/entity"

// MaxChainLength bounds how long a cycle search will go before giving up;
// cycles beyond this length are operationally unmanageable to execute and
// roll back as one unit.
const MaxChainLength = 5

// Chain is an executable cycle: requests[i] receives the assignment
// requests[i+1] gives up (wrapping around), each edge having passed
// compatibility.
type Chain struct {
	Requests []Request
	Score    float64 // mean compatibility across the cycle's edges
}

// edge (A -> B) means "A wants what B is giving up."
func wants(a, b Request) bool {
	return a.WantedBlockID == b.GivingAssignment.BlockID
}

// FindChains searches for cycles of length 3..MaxChainLength in the
// "wants" relation over pool, via depth-first search from every node. Only
// cycles whose every edge scores at least MinAutoMatchScore are reported.
func FindChains(ctx *entity.SchedulingContext, pool []Request) []Chain {
	n := len(pool)
	if n < 3 {
		return nil
	}

	adjacency := make([][]int, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			if wants(pool[i], pool[j]) {
				adjacency[i] = append(adjacency[i], j)
			}
		}
	}

	var chains []Chain
	seen := make(map[string]bool)

	var dfs func(start int, path []int, visited map[int]bool)
	dfs = func(start int, path []int, visited map[int]bool) {
		if len(path) > MaxChainLength {
			return
		}
		cur := path[len(path)-1]
		for _, next := range adjacency[cur] {
			if next == start && len(path) >= 3 {
				if c, ok := buildChain(ctx, pool, path); ok {
					key := chainKey(path)
					if !seen[key] {
						seen[key] = true
						chains = append(chains, c)
					}
				}
				continue
			}
			if visited[next] || next < start {
				// next < start: that rotation of this cycle starts from a
				// smaller index and was (or will be) explored from there.
				continue
			}
			visited[next] = true
			dfs(start, append(path, next), visited)
			delete(visited, next)
		}
	}

	for i := 0; i < n; i++ {
		visited := map[int]bool{i: true}
		dfs(i, []int{i}, visited)
	}
	return chains
}

func chainKey(path []int) string {
	// Canonicalize by rotating to start at the smallest index, which dfs's
	// `next < start` guard already guarantees for the path's first element.
	key := make([]byte, 0, len(path)*4)
	for _, i := range path {
		key = append(key, byte(i>>8), byte(i))
	}
	return string(key)
}

func buildChain(ctx *entity.SchedulingContext, pool []Request, path []int) (Chain, bool) {
	requests := make([]Request, len(path))
	var total float64
	for idx, i := range path {
		next := path[(idx+1)%len(path)]
		score := CompatibilityScore(ctx, pool[i], pool[next])
		if score < MinAutoMatchScore {
			return Chain{}, false
		}
		requests[idx] = pool[i]
		total += score
	}
	return Chain{Requests: requests, Score: total / float64(len(requests))}, true
}

// AssignmentMoves expands a chain into the concrete (assignment, new owner)
// reassignments that executing it requires: each participant's giving
// assignment moves to the participant before it in the cycle.
func (c Chain) AssignmentMoves() map[entity.AssignmentID]entity.PersonID {
	moves := make(map[entity.AssignmentID]entity.PersonID, len(c.Requests))
	for i, r := range c.Requests {
		next := c.Requests[(i+1)%len(c.Requests)]
		// r wants next's block, so next's giving assignment moves to r.
		moves[next.GivingAssignment.ID] = r.PersonID
	}
	return moves
}
