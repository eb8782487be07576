package structure

import (
	"sort"
	"strings"
)

// Graph is a directed adjacency list keyed by feature id.
type Graph map[string][]string

// FindCycles returns the dependency cycles reachable in g. Each cycle is
// the path slice from the first occurrence of the repeated node and ends
// with that node again, e.g. [X, Y, X]. A cycle is reported once however
// many rotations of it the walk meets. Nodes whose subtree has been fully
// explored are not walked again.
//
// The walk uses an explicit stack so pathological graphs cannot exhaust
// the goroutine stack.
func FindCycles(g Graph) [][]string {
	nodes := make([]string, 0, len(g))
	for n := range g {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)

	adj := make(map[string][]string, len(g))
	for n, next := range g {
		s := append([]string(nil), next...)
		sort.Strings(s)
		adj[n] = s
	}

	type frame struct {
		node string
		next int
	}

	done := make(map[string]bool, len(nodes))
	onStack := make(map[string]int)
	seen := make(map[string]struct{})
	var cycles [][]string

	for _, start := range nodes {
		if done[start] {
			continue
		}
		stack := []frame{{node: start}}
		path := []string{start}
		onStack[start] = 0

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			neighbors := adj[top.node]
			if top.next >= len(neighbors) {
				done[top.node] = true
				delete(onStack, top.node)
				stack = stack[:len(stack)-1]
				path = path[:len(path)-1]
				continue
			}
			n := neighbors[top.next]
			top.next++

			if pos, ok := onStack[n]; ok {
				cycle := append(append([]string(nil), path[pos:]...), n)
				key := rotationKey(cycle[:len(cycle)-1])
				if _, dup := seen[key]; !dup {
					seen[key] = struct{}{}
					cycles = append(cycles, cycle)
				}
				continue
			}
			if done[n] {
				continue
			}
			onStack[n] = len(path)
			path = append(path, n)
			stack = append(stack, frame{node: n})
		}
	}
	return cycles
}

// rotationKey identifies a cycle independent of its starting node.
func rotationKey(cycle []string) string {
	if len(cycle) == 0 {
		return ""
	}
	min := 0
	for i, n := range cycle {
		if n < cycle[min] {
			min = i
		}
	}
	rotated := append(append([]string(nil), cycle[min:]...), cycle[:min]...)
	return strings.Join(rotated, "\x00")
}
