/*
Package graph executes a fixed directed graph of named nodes over a session State.

A node may return a Command that overrides routing, spawns side tasks (forks)
that the main flow never waits for, or asks to be re-entered after a delay.
Without a Command the next node comes from a pure Router or a static edge.
Reaching End, or a node with no outgoing edge, finishes the invocation.

	g, err := graph.NewBuilder().
		Node("classify", classify).
		Node("answer", answer).
		Fork("verify", verify).
		Route("classify", routeAfterClassify, "answer", graph.End).
		Edge("answer", graph.End).
		Entry("classify").
		Build()
*/
package graph
