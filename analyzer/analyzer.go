// Package analyzer implements the graph analyzer and tree renderer (C7):
// circular-chain detection, duplicate-edge detection, and tree rendering
// rooted at filter-selected or schedule-driven roots.
package analyzer

import (
	"sort"

	"github.com/ctrl-q/ctrlq/taskgraph"
)

// CircularPair is one detected back-edge, reported as an unordered pair
// (§4.7).
type CircularPair struct {
	FromTask string
	ToTask   string
}

func unorderedKey(a, b string) string {
	if a < b {
		return a + "\x00" + b
	}
	return b + "\x00" + a
}

// DetectCycles runs a white/gray/black DFS over g and returns every
// distinct circular pair, de-duplicated by unordered endpoint identity
// (§4.7).
func DetectCycles(g *taskgraph.Graph) []CircularPair {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := map[string]int{}
	outgoing := map[string][]string{}
	g.Edges(func(e taskgraph.Edge) bool {
		outgoing[e.Upstream] = append(outgoing[e.Upstream], e.Downstream)
		return true
	})

	var all []string
	g.Tasks(func(t taskgraph.Task) bool {
		all = append(all, t.ID)
		return true
	})
	sort.Strings(all)

	seen := map[string]bool{}
	var pairs []CircularPair

	var visit func(node string)
	visit = func(node string) {
		color[node] = gray
		for _, next := range outgoing[node] {
			switch color[next] {
			case white:
				visit(next)
			case gray:
				key := unorderedKey(node, next)
				if !seen[key] {
					seen[key] = true
					pairs = append(pairs, CircularPair{FromTask: node, ToTask: next})
				}
			}
		}
		color[node] = black
	}

	for _, id := range all {
		if color[id] == white {
			visit(id)
		}
	}
	return pairs
}

// DuplicateEdge is a (upstream, downstream, ruleState) triple that appears
// more than once in the graph (§4.7).
type DuplicateEdge struct {
	Upstream   string
	Downstream string
	RuleState  taskgraph.RuleState
	Count      int
}

// DetectDuplicateEdges counts occurrences of every (upstream, downstream,
// ruleState) triple and reports every one with count >= 2.
func DetectDuplicateEdges(g *taskgraph.Graph) []DuplicateEdge {
	type key struct {
		upstream, downstream string
		state                taskgraph.RuleState
	}
	counts := map[key]int{}
	var order []key

	g.Edges(func(e taskgraph.Edge) bool {
		k := key{e.Upstream, e.Downstream, e.RuleState}
		if counts[k] == 0 {
			order = append(order, k)
		}
		counts[k]++
		return true
	})

	var dups []DuplicateEdge
	for _, k := range order {
		if counts[k] >= 2 {
			dups = append(dups, DuplicateEdge{Upstream: k.upstream, Downstream: k.downstream, RuleState: k.state, Count: counts[k]})
		}
	}
	return dups
}

// TreeNode is a display node produced by RenderTree. The same downstream
// task may appear more than once across the tree, by design (§4.7): each
// appearance represents a distinct causal chain, so this is a tree, not a
// DAG.
type TreeNode struct {
	TaskID   string
	Task     taskgraph.Task
	EventID  string // empty at a root; the composite event that produced this edge otherwise
	IsCycle  bool   // true if this node repeats an ancestor already on its own path
	Children []*TreeNode
}

const scheduledSuperRootID = "\x00scheduled-super-root"

// RenderTree builds the tree described in §4.7: roots (tasks with no
// incoming composite edge) plus a synthetic "scheduled" super-root
// collecting every task with at least one schedule trigger.
func RenderTree(g *taskgraph.Graph, roots []string, maxDepth int) []*TreeNode {
	var forest []*TreeNode
	for _, rootID := range roots {
		forest = append(forest, buildSubtree(g, rootID, "", maxDepth, map[string]bool{rootID: true}))
	}

	var scheduled []*TreeNode
	g.Tasks(func(t taskgraph.Task) bool {
		if len(t.ScheduleTriggers) > 0 {
			scheduled = append(scheduled, buildSubtree(g, t.ID, "", maxDepth, map[string]bool{t.ID: true}))
		}
		return true
	})
	if len(scheduled) > 0 {
		task, _ := g.Task(scheduledSuperRootID)
		superRoot := &TreeNode{TaskID: scheduledSuperRootID, Task: task, Children: scheduled}
		forest = append(forest, superRoot)
	}

	return forest
}

// buildSubtree walks downstream from taskID, halting a branch when
// maxDepth is exhausted or when a node repeats an ancestor already on its
// own path (marked IsCycle rather than recursed into further).
func buildSubtree(g *taskgraph.Graph, taskID, eventID string, maxDepth int, ancestors map[string]bool) *TreeNode {
	task, _ := g.Task(taskID)
	node := &TreeNode{TaskID: taskID, Task: task, EventID: eventID}

	if maxDepth == 0 {
		return node
	}
	childMax := maxDepth
	if maxDepth > 0 {
		childMax = maxDepth - 1
	}

	for _, child := range directChildren(g, taskID) {
		if ancestors[child.downstream] {
			task, _ := g.Task(child.downstream)
			node.Children = append(node.Children, &TreeNode{TaskID: child.downstream, Task: task, EventID: child.eventID, IsCycle: true})
			continue
		}
		nextAncestors := make(map[string]bool, len(ancestors)+1)
		for k := range ancestors {
			nextAncestors[k] = true
		}
		nextAncestors[child.downstream] = true
		node.Children = append(node.Children, buildSubtree(g, child.downstream, child.eventID, childMax, nextAncestors))
	}
	return node
}

type childEdge struct {
	downstream string
	eventID    string
}

func directChildren(g *taskgraph.Graph, upstream string) []childEdge {
	var out []childEdge
	g.Edges(func(e taskgraph.Edge) bool {
		if e.Upstream == upstream {
			out = append(out, childEdge{downstream: e.Downstream, eventID: e.EventID})
		}
		return true
	})
	return out
}
