package nn

// Node is one unit of a dense layer.
//
// Nodes live in their layer's node slice and refer to edges by handle:
// Incoming indexes the owning layer's edge arena, Outgoing indexes the edge
// arena of the next layer. No node holds a pointer to another node.
type Node struct {
	Value      float64
	Bias       float64
	NetInput   float64
	Gradient   float64
	Activation Activation

	Incoming []int // handles into this layer's edges
	Outgoing []int // handles into the next layer's edges
}

// Edge is a weighted connection between two nodes of adjacent layers.
//
// Edges are owned by the layer of their target node. Source indexes the
// previous layer's nodes, Target indexes the owning layer's nodes.
type Edge struct {
	Source int
	Target int
	Weight float64
}

// CalculateNetInput sets NetInput = Bias + Σ(edge.Weight * source.Value)
// over the incoming edges.
//
// A node without incoming edges keeps whatever NetInput was set externally.
func (n *Node) CalculateNetInput(edges []Edge, sources []Node) {
	if len(n.Incoming) == 0 {
		return
	}
	sum := n.Bias
	for _, h := range n.Incoming {
		e := &edges[h]
		sum += e.Weight * sources[e.Source].Value
	}
	n.NetInput = sum
}

// ApplyActivation sets Value = Activation(NetInput).
func (n *Node) ApplyActivation() {
	n.Value = n.Activation.Apply(n.NetInput)
}

// CalculateOutputGradient sets the squared-error delta
// (Value - target) * Activation'(NetInput).
func (n *Node) CalculateOutputGradient(target float64) {
	n.Gradient = (n.Value - target) * n.Activation.Derivative(n.NetInput)
}

// CalculateHiddenGradient sets
// Gradient = Activation'(NetInput) * Σ(edge.Weight * target.Gradient)
// over the outgoing edges, or zero when there are none.
//
// edges and targets belong to the next layer.
func (n *Node) CalculateHiddenGradient(edges []Edge, targets []Node) {
	if len(n.Outgoing) == 0 {
		n.Gradient = 0
		return
	}
	sum := 0.0
	for _, h := range n.Outgoing {
		e := &edges[h]
		sum += e.Weight * targets[e.Target].Gradient
	}
	n.Gradient = n.Activation.Derivative(n.NetInput) * sum
}

// UpdateWeight applies weight -= lr * target.Gradient * source.Value.
func (e *Edge) UpdateWeight(lr float64, sources, targets []Node) {
	e.Weight -= lr * targets[e.Target].Gradient * sources[e.Source].Value
}
