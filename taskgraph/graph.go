package taskgraph

import (
	"sync"

	"github.com/ctrl-q/ctrlq/errors"
)

// Graph is the process-local task graph (§4.3). It is rebuilt on demand.
// Every method takes the graph's lock, so single calls may run
// concurrently; a sequence of calls is not atomic, and callers serialize
// multi-step writes themselves, typically behind C6's phase boundaries.
type Graph struct {
	mu sync.RWMutex

	tasks map[string]*Task // by GUID or, pre-Phase-A, by local counter string
	kinds map[string]nodeKind

	events map[string]*CompositeEvent

	byName   map[string][]string // task name -> task IDs
	byTag    map[string][]string // tag name -> task IDs
	byAppID  map[string][]string // app GUID -> task IDs
	appTags  map[string][]string // app GUID -> tag names (populated via IndexAppTag)

	// edges is derived lazily from events/tasks by edgesSnapshot; callers
	// should use Edges() rather than reading it directly.
	edgesDirty bool
	edgeCache  []Edge
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		tasks:   map[string]*Task{},
		kinds:   map[string]nodeKind{},
		events:  map[string]*CompositeEvent{},
		byName:  map[string][]string{},
		byTag:   map[string][]string{},
		byAppID: map[string][]string{},
		appTags: map[string][]string{},
	}
}

// AddTask ingests or replaces a task node and maintains the name/tag/app
// indices.
func (g *Graph) AddTask(t Task) {
	g.mu.Lock()
	defer g.mu.Unlock()

	cp := t
	g.tasks[cp.ID] = &cp
	g.kinds[cp.ID] = nodeTask
	g.byName[cp.Name] = appendUnique(g.byName[cp.Name], cp.ID)
	for _, tag := range cp.Tags {
		g.byTag[tag] = appendUnique(g.byTag[tag], cp.ID)
	}
	if cp.AppID != "" {
		g.byAppID[cp.AppID] = appendUnique(g.byAppID[cp.AppID], cp.ID)
	}
	g.edgesDirty = true
}

// IndexAppTag records that app appID carries tag; used to satisfy
// FilterSpec.AppTags since apps are not otherwise modeled by this package.
func (g *Graph) IndexAppTag(appID, tag string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.appTags[appID] = appendUnique(g.appTags[appID], tag)
}

// AddCompositeEvent ingests a composite event. If DownstreamTask does not
// resolve to a known task, a tombstone node is created for it (§4.3
// invariant: unresolved references are reported, never silently dropped).
func (g *Graph) AddCompositeEvent(e CompositeEvent) {
	g.mu.Lock()
	defer g.mu.Unlock()

	cp := e
	g.events[cp.ID] = &cp
	if _, ok := g.tasks[cp.DownstreamTask]; !ok {
		if _, ok := g.kinds[cp.DownstreamTask]; !ok {
			g.kinds[cp.DownstreamTask] = nodeTombstone
		}
	} else {
		g.tasks[cp.DownstreamTask].CompositeEventIDs = appendUnique(g.tasks[cp.DownstreamTask].CompositeEventIDs, cp.ID)
	}
	for _, rule := range cp.Rules {
		if _, ok := g.tasks[rule.UpstreamRef]; !ok {
			if _, ok := g.kinds[rule.UpstreamRef]; !ok {
				g.kinds[rule.UpstreamRef] = nodeTombstone
			}
		}
	}
	g.edgesDirty = true
}

// Task returns the task with the given ID, or false if unknown.
func (g *Graph) Task(id string) (Task, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	t, ok := g.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// CompositeEvent returns the composite event with the given ID, or false
// if unknown.
func (g *Graph) CompositeEvent(id string) (CompositeEvent, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e, ok := g.events[id]
	if !ok {
		return CompositeEvent{}, false
	}
	return *e, true
}

// IsTombstone reports whether id refers to an unresolved reference rather
// than a known task.
func (g *Graph) IsTombstone(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.kinds[id] == nodeTombstone
}

// TasksByName returns every task ID registered under name.
func (g *Graph) TasksByName(name string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.byName[name]...)
}

// Tasks iterates every task node in the graph, in no particular order.
func (g *Graph) Tasks(yield func(Task) bool) {
	g.mu.RLock()
	snapshot := make([]Task, 0, len(g.tasks))
	for _, t := range g.tasks {
		snapshot = append(snapshot, *t)
	}
	g.mu.RUnlock()
	for _, t := range snapshot {
		if !yield(t) {
			return
		}
	}
}

// Edges iterates every derived (upstream, downstream, event, ruleState)
// tuple (§4.3).
func (g *Graph) Edges(yield func(Edge) bool) {
	for _, e := range g.edgesSnapshot() {
		if !yield(e) {
			return
		}
	}
}

func (g *Graph) edgesSnapshot() []Edge {
	g.mu.Lock()
	if !g.edgesDirty {
		cached := append([]Edge(nil), g.edgeCache...)
		g.mu.Unlock()
		return cached
	}
	edges := make([]Edge, 0)
	for _, event := range g.events {
		for _, rule := range event.Rules {
			edges = append(edges, Edge{
				Upstream:   rule.UpstreamRef,
				Downstream: event.DownstreamTask,
				EventID:    event.ID,
				RuleState:  rule.RuleState,
			})
		}
	}
	g.edgeCache = edges
	g.edgesDirty = false
	result := append([]Edge(nil), edges...)
	g.mu.Unlock()
	return result
}

// GetRootNodesFromFilter unions the tasks matching any filter term, walks
// composite-dependency edges in reverse to a fixed point, and returns the
// tasks in the reached set with no incoming composite edge.
func (g *Graph) GetRootNodesFromFilter(filter FilterSpec) ([]string, error) {
	initial, err := g.matchFilter(filter)
	if err != nil {
		return nil, err
	}

	incoming := g.incomingEdgesIndex()
	reached := map[string]bool{}
	queue := append([]string(nil), initial...)
	for _, id := range initial {
		reached[id] = true
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, upstream := range incoming[cur] {
			if !reached[upstream] {
				reached[upstream] = true
				queue = append(queue, upstream)
			}
		}
	}

	hasIncoming := map[string]bool{}
	for downstream := range incoming {
		if len(incoming[downstream]) > 0 {
			hasIncoming[downstream] = true
		}
	}

	roots := make([]string, 0)
	seen := map[string]bool{}
	for id := range reached {
		if hasIncoming[id] {
			continue
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		roots = append(roots, id)
	}
	return roots, nil
}

func (g *Graph) matchFilter(filter FilterSpec) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	seen := map[string]bool{}
	var out []string
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}

	for _, id := range filter.TaskIDs {
		if _, ok := g.tasks[id]; ok {
			add(id)
		}
	}
	for _, tag := range filter.TaskTags {
		for _, id := range g.byTag[tag] {
			add(id)
		}
	}
	for _, appID := range filter.AppIDs {
		for _, id := range g.byAppID[appID] {
			add(id)
		}
	}
	for _, tag := range filter.AppTags {
		for appID, tags := range g.appTags {
			if containsString(tags, tag) {
				for _, id := range g.byAppID[appID] {
					add(id)
				}
			}
		}
	}

	if len(filter.TaskIDs) == 0 && len(filter.TaskTags) == 0 && len(filter.AppIDs) == 0 && len(filter.AppTags) == 0 {
		return nil, errors.New("empty filter matches no tasks")
	}
	return out, nil
}

func (g *Graph) incomingEdgesIndex() map[string][]string {
	idx := map[string][]string{}
	for _, e := range g.edgesSnapshot() {
		idx[e.Downstream] = append(idx[e.Downstream], e.Upstream)
	}
	return idx
}

// SubtreeNode is one entry of GetSubtree's result: the reached task plus
// the depth at which it was first reached and whether reaching it closed a
// cycle.
type SubtreeNode struct {
	TaskID    string
	Depth     int
	IsCycle   bool // true if this node repeats an ancestor already on the path
}

// GetSubtree returns every downstream task reachable from root through
// composite edges, halting a branch at maxDepth or at the first repeated
// node on its path (§4.3).
func (g *Graph) GetSubtree(root string, maxDepth int) []SubtreeNode {
	outgoing := g.outgoingEdgesIndex()

	var result []SubtreeNode
	var walk func(node string, depth int, ancestors map[string]bool)
	walk = func(node string, depth int, ancestors map[string]bool) {
		if maxDepth >= 0 && depth >= maxDepth {
			return
		}
		for _, downstream := range outgoing[node] {
			if ancestors[downstream] {
				result = append(result, SubtreeNode{TaskID: downstream, Depth: depth + 1, IsCycle: true})
				continue
			}
			result = append(result, SubtreeNode{TaskID: downstream, Depth: depth + 1})
			nextAncestors := make(map[string]bool, len(ancestors)+1)
			for k := range ancestors {
				nextAncestors[k] = true
			}
			nextAncestors[downstream] = true
			walk(downstream, depth+1, nextAncestors)
		}
	}
	walk(root, 0, map[string]bool{root: true})
	return result
}

func (g *Graph) outgoingEdgesIndex() map[string][]string {
	idx := map[string][]string{}
	for _, e := range g.edgesSnapshot() {
		idx[e.Upstream] = append(idx[e.Upstream], e.Downstream)
	}
	return idx
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

func containsString(list []string, v string) bool {
	for _, existing := range list {
		if existing == v {
			return true
		}
	}
	return false
}
