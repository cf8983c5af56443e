package domain

type EdgeType string

const (
	// EdgeDefined marks curriculum-authored prerequisite edges.
	EdgeDefined EdgeType = "DEFINED"
	// EdgeInferred marks edges discovered by the population inference engine.
	EdgeInferred EdgeType = "INFERRED"
)

type GraphNode struct {
	SkillID   string `json:"skill_id"`
	Depth     int    `json:"depth"`
	InDegree  int    `json:"in_degree"`
	OutDegree int    `json:"out_degree"`
}

// GraphEdge is a directed prerequisite relation: FromSkill should be learned
// before ToSkill.
type GraphEdge struct {
	FromSkill string   `json:"from_skill"`
	ToSkill   string   `json:"to_skill"`
	Strength  float64  `json:"strength"`
	Type      EdgeType `json:"type"`
	Evidence  int      `json:"evidence"`
}

// PrerequisiteGraph is a per-learner snapshot of the skill dependency graph.
type PrerequisiteGraph struct {
	Nodes map[string]*GraphNode `json:"nodes,omitempty"`
	Edges []GraphEdge           `json:"edges,omitempty"`
}

func NewPrerequisiteGraph() PrerequisiteGraph {
	return PrerequisiteGraph{Nodes: make(map[string]*GraphNode)}
}

func (g *PrerequisiteGraph) node(skillID string) *GraphNode {
	if g.Nodes == nil {
		g.Nodes = make(map[string]*GraphNode)
	}
	n, ok := g.Nodes[skillID]
	if !ok {
		n = &GraphNode{SkillID: skillID}
		g.Nodes[skillID] = n
	}
	return n
}

// AddEdge inserts an edge and maintains node degrees. A duplicate
// (from, to, type) edge replaces the previous strength and evidence.
func (g *PrerequisiteGraph) AddEdge(e GraphEdge) {
	for i, existing := range g.Edges {
		if existing.FromSkill == e.FromSkill && existing.ToSkill == e.ToSkill && existing.Type == e.Type {
			g.Edges[i] = e
			return
		}
	}
	g.Edges = append(g.Edges, e)
	g.node(e.FromSkill).OutDegree++
	to := g.node(e.ToSkill)
	to.InDegree++
	if from := g.Nodes[e.FromSkill]; from.Depth+1 > to.Depth {
		to.Depth = from.Depth + 1
	}
}

// PrerequisitesOf returns the sources of all edges pointing at skillID.
func (g *PrerequisiteGraph) PrerequisitesOf(skillID string) []string {
	var out []string
	for _, e := range g.Edges {
		if e.ToSkill == skillID {
			out = append(out, e.FromSkill)
		}
	}
	return out
}

// Clone returns a deep copy of the graph.
func (g *PrerequisiteGraph) Clone() PrerequisiteGraph {
	c := PrerequisiteGraph{Edges: append([]GraphEdge(nil), g.Edges...)}
	if g.Nodes != nil {
		c.Nodes = make(map[string]*GraphNode, len(g.Nodes))
		for id, n := range g.Nodes {
			nc := *n
			c.Nodes[id] = &nc
		}
	}
	return c
}
