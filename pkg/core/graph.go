package core

// Node types understood by the built-in processors.
const (
	NodeTypeTable   = "TableNode"
	NodeTypeFile    = "FileNode"
	NodeTypeQuery   = "QueryNode"
	NodeTypeDisplay = "DisplayNode"
	NodeTypeJoin    = "JoinNode"
)

// DefaultSocket is the input socket used when a connection names none.
const DefaultSocket = "input"

// Node is a single typed step of a pipeline graph.
type Node struct {
	ID    string
	Type  string
	Label string
	// Config is the type-specific configuration bag, e.g. selectedTable for
	// a TableNode or sql for a QueryNode.
	Config map[string]any
}

// DisplayName returns the label, falling back to the node id.
func (n Node) DisplayName() string {
	if n.Label != "" {
		return n.Label
	}
	return n.ID
}

// Connection is a directed edge feeding the output of From into the
// ToSocket input of To.
type Connection struct {
	From     string
	To       string
	ToSocket string
}

// Socket returns the target socket name, defaulting to DefaultSocket.
func (c Connection) Socket() string {
	if c.ToSocket == "" {
		return DefaultSocket
	}
	return c.ToSocket
}

// GraphMeta holds free-form information about a graph.
type GraphMeta struct {
	Description string
}

// Graph is a pipeline: nodes in declaration order plus their connections.
type Graph struct {
	Meta        GraphMeta
	Nodes       []Node
	Connections []Connection

	index map[string]int
}

// NewGraph builds a graph and indexes its nodes by id.
func NewGraph(nodes []Node, conns []Connection) *Graph {
	g := &Graph{Nodes: nodes, Connections: conns}
	g.reindex()
	return g
}

func (g *Graph) reindex() {
	g.index = make(map[string]int, len(g.Nodes))
	for i, n := range g.Nodes {
		if _, dup := g.index[n.ID]; !dup {
			g.index[n.ID] = i
		}
	}
}

// Node looks up a node by id.
func (g *Graph) Node(id string) (Node, bool) {
	if g.index == nil || len(g.index) != len(g.Nodes) {
		g.reindex()
	}
	i, ok := g.index[id]
	if !ok {
		return Node{}, false
	}
	return g.Nodes[i], true
}

// ConnectionsTo returns the connections terminating on id, in declaration order.
func (g *Graph) ConnectionsTo(id string) []Connection {
	var out []Connection
	for _, c := range g.Connections {
		if c.To == id {
			out = append(out, c)
		}
	}
	return out
}
