package resilience

import (
	"time"

	"github.com/schedcore/schedcore/internal/entity"
)

// dependencyGraph links assignments that share a person or a block: editing
// one can force a reshuffle of the other (the same person can't double
// book, the same block can't exceed coverage).
type dependencyGraph struct {
	adjacency map[entity.AssignmentID][]entity.AssignmentID
}

func buildDependencyGraph(ctx *entity.SchedulingContext, window []entity.Assignment) *dependencyGraph {
	byPerson := make(map[entity.PersonID][]entity.AssignmentID)
	byBlock := make(map[entity.BlockID][]entity.AssignmentID)
	for _, a := range window {
		byPerson[a.PersonID] = append(byPerson[a.PersonID], a.ID)
		byBlock[a.BlockID] = append(byBlock[a.BlockID], a.ID)
	}

	g := &dependencyGraph{adjacency: make(map[entity.AssignmentID][]entity.AssignmentID)}
	link := func(ids []entity.AssignmentID) {
		for i := range ids {
			for j := range ids {
				if i == j {
					continue
				}
				g.adjacency[ids[i]] = append(g.adjacency[ids[i]], ids[j])
			}
		}
	}
	for _, ids := range byPerson {
		link(ids)
	}
	for _, ids := range byBlock {
		link(ids)
	}
	return g
}

// shortestPaths runs BFS from src, returning hop counts to every reachable node.
func (g *dependencyGraph) shortestPaths(src entity.AssignmentID) map[entity.AssignmentID]int {
	dist := map[entity.AssignmentID]int{src: 0}
	queue := []entity.AssignmentID{src}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range g.adjacency[cur] {
			if _, seen := dist[next]; seen {
				continue
			}
			dist[next] = dist[cur] + 1
			queue = append(queue, next)
		}
	}
	return dist
}

// RippleWindow bounds how far from a modification date ripple effects are
// counted, per §4.6's 7-day window.
const RippleWindow = 7 * 24 * time.Hour

// RippleFactor is the average shortest-path length, in the assignment
// dependency graph, from each modified assignment to every other
// assignment reachable within the same RippleWindow.
func RippleFactor(ctx *entity.SchedulingContext, modified []entity.Assignment) float64 {
	if len(modified) == 0 {
		return 0
	}

	var windowStart, windowEnd time.Time
	for i, m := range modified {
		blk, ok := blockFor(ctx, m.BlockID)
		if !ok {
			continue
		}
		if i == 0 || blk.Date.Before(windowStart) {
			windowStart = blk.Date
		}
		if i == 0 || blk.Date.After(windowEnd) {
			windowEnd = blk.Date
		}
	}
	windowStart = windowStart.Add(-RippleWindow)
	windowEnd = windowEnd.Add(RippleWindow)

	var window []entity.Assignment
	for _, a := range ctx.Assignments {
		blk, ok := blockFor(ctx, a.BlockID)
		if !ok {
			continue
		}
		if !blk.Date.Before(windowStart) && !blk.Date.After(windowEnd) {
			window = append(window, a)
		}
	}

	g := buildDependencyGraph(ctx, window)

	var total float64
	var count int
	for _, m := range modified {
		for other, hops := range g.shortestPaths(m.ID) {
			if other == m.ID {
				continue
			}
			total += float64(hops)
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

func blockFor(ctx *entity.SchedulingContext, id entity.BlockID) (entity.Block, bool) {
	b, ok := ctx.Blocks[id]
	return b, ok
}
