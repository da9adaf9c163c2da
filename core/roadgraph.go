package core

import (
	"container/heap"
	"fmt"
	"math"
	"sort"
)

// RoadClass buckets road edges by construction quality. The class weight
// scales edge length in the Dijkstra cost; faster classes weigh less.
type RoadClass string

const (
	RoadPrimary   RoadClass = "primary"
	RoadSecondary RoadClass = "secondary"
	RoadStreet    RoadClass = "street"
	RoadTrack     RoadClass = "track"
	RoadPath      RoadClass = "path"
)

var roadClassWeight = map[RoadClass]float64{
	RoadPrimary:   0.70,
	RoadSecondary: 0.80,
	RoadStreet:    0.90,
	RoadTrack:     1.00,
	RoadPath:      1.10,
}

// RoadNode is a vertex of the road graph, georeferenced in the same frame
// as the terrain grids.
type RoadNode struct {
	ID    string
	Coord Coordinate
}

// RoadEdge is an undirected edge between two road nodes.
type RoadEdge struct {
	From    string
	To      string
	LengthM float64
	Class   RoadClass
}

// RoadGraph is an immutable undirected road network with adjacency maps.
type RoadGraph struct {
	nodes map[string]RoadNode
	adj   map[string][]RoadEdge

	// componentOf maps each node to its connected-component label;
	// largest holds the label of the biggest component.
	componentOf map[string]int
	largest     int
}

// NewRoadGraph validates nodes and edges and computes connected
// components once. Edges referencing unknown nodes are rejected.
func NewRoadGraph(nodes []RoadNode, edges []RoadEdge) (*RoadGraph, error) {
	g := &RoadGraph{
		nodes: make(map[string]RoadNode, len(nodes)),
		adj:   make(map[string][]RoadEdge, len(nodes)),
	}
	for _, n := range nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("%w: road node with empty ID", ErrInvalidBundle)
		}
		if _, exists := g.nodes[n.ID]; exists {
			return nil, fmt.Errorf("%w: duplicate road node %q", ErrInvalidBundle, n.ID)
		}
		g.nodes[n.ID] = n
	}
	for _, e := range edges {
		if _, ok := g.nodes[e.From]; !ok {
			return nil, fmt.Errorf("%w: edge references unknown node %q", ErrInvalidBundle, e.From)
		}
		if _, ok := g.nodes[e.To]; !ok {
			return nil, fmt.Errorf("%w: edge references unknown node %q", ErrInvalidBundle, e.To)
		}
		if e.LengthM <= 0 {
			from, to := g.nodes[e.From], g.nodes[e.To]
			e.LengthM = from.Coord.DistanceTo(to.Coord)
		}
		g.adj[e.From] = append(g.adj[e.From], e)
		reversed := RoadEdge{From: e.To, To: e.From, LengthM: e.LengthM, Class: e.Class}
		g.adj[e.To] = append(g.adj[e.To], reversed)
	}
	g.labelComponents()
	return g, nil
}

// Node returns a node by ID.
func (g *RoadGraph) Node(id string) (RoadNode, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// NodeCount returns the number of nodes in the graph.
func (g *RoadGraph) NodeCount() int { return len(g.nodes) }

// labelComponents assigns a component label to every node via BFS and
// records which label covers the most nodes.
func (g *RoadGraph) labelComponents() {
	g.componentOf = make(map[string]int, len(g.nodes))

	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	label := 0
	sizes := make(map[int]int)
	for _, id := range ids {
		if _, seen := g.componentOf[id]; seen {
			continue
		}
		label++
		queue := []string{id}
		g.componentOf[id] = label
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			sizes[label]++
			for _, e := range g.adj[cur] {
				if _, seen := g.componentOf[e.To]; !seen {
					g.componentOf[e.To] = label
					queue = append(queue, e.To)
				}
			}
		}
	}

	best, bestSize := 0, -1
	for l, size := range sizes {
		if size > bestSize || (size == bestSize && l < best) {
			best, bestSize = l, size
		}
	}
	g.largest = best
}

// InLargestComponent reports whether the node belongs to the largest
// connected component.
func (g *RoadGraph) InLargestComponent(id string) bool {
	return g.componentOf[id] == g.largest
}

// NearestNode returns the node closest to c. When restrict is non-nil
// only nodes for which restrict returns true are considered. Ties are
// broken by lexicographically smaller node ID so snapping is
// deterministic.
func (g *RoadGraph) NearestNode(c Coordinate, restrict func(id string) bool) (RoadNode, error) {
	best := RoadNode{}
	bestDist := math.Inf(1)
	found := false
	for id, n := range g.nodes {
		if restrict != nil && !restrict(id) {
			continue
		}
		d := c.DistanceTo(n.Coord)
		if d < bestDist || (d == bestDist && id < best.ID) {
			best, bestDist, found = n, d, true
		}
	}
	if !found {
		return RoadNode{}, fmt.Errorf("%w: road graph has no eligible nodes", ErrNotReachable)
	}
	return best, nil
}

// shortestRoadPath runs Dijkstra from startID to endID with edge weight
// length x class weight x profile class multiplier. It returns the node
// sequence and the total weighted cost, or ErrNotReachable.
func (g *RoadGraph) shortestRoadPath(startID, endID string, classMultiplier func(RoadClass) float64) ([]string, float64, error) {
	if classMultiplier == nil {
		classMultiplier = func(RoadClass) float64 { return 1.0 }
	}

	dist := map[string]float64{startID: 0}
	prev := map[string]string{}
	done := map[string]bool{}

	pq := &searchQueue{}
	heap.Init(pq)
	heap.Push(pq, &searchItem{id: startID, priority: 0})

	for pq.Len() > 0 {
		item := heap.Pop(pq).(*searchItem)
		if done[item.id] {
			continue
		}
		done[item.id] = true
		if item.id == endID {
			break
		}
		for _, e := range g.adj[item.id] {
			w := roadClassWeight[e.Class]
			if w == 0 {
				w = 1.0
			}
			next := dist[item.id] + e.LengthM*w*classMultiplier(e.Class)
			if old, seen := dist[e.To]; !seen || next < old {
				dist[e.To] = next
				prev[e.To] = item.id
				heap.Push(pq, &searchItem{id: e.To, priority: next})
			}
		}
	}

	if !done[endID] {
		return nil, 0, fmt.Errorf("%w: %s -> %s", ErrNotReachable, startID, endID)
	}

	path := []string{endID}
	for cur := endID; cur != startID; {
		cur = prev[cur]
		path = append(path, cur)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, dist[endID], nil
}

//
// ---------- Priority queue ----------
//

// searchItem is shared by the Dijkstra and A* frontiers. The seq field
// breaks priority ties in insertion order so searches are deterministic.
type searchItem struct {
	id       string
	cell     gridCell
	priority float64
	seq      int
}

type searchQueue struct {
	items []*searchItem
	next  int
}

func (q *searchQueue) Len() int { return len(q.items) }

func (q *searchQueue) Less(i, j int) bool {
	if q.items[i].priority != q.items[j].priority {
		return q.items[i].priority < q.items[j].priority
	}
	return q.items[i].seq < q.items[j].seq
}

func (q *searchQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
}

func (q *searchQueue) Push(x any) {
	item := x.(*searchItem)
	item.seq = q.next
	q.next++
	q.items = append(q.items, item)
}

func (q *searchQueue) Pop() any {
	old := q.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	q.items = old[:n-1]
	return item
}
