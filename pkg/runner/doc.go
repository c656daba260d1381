/*
Package runner implements the turn boundary of the donation agent.

It acts as the bridge between the graph scheduler and the outside world.
A Runtime takes one inbound TurnRequest, merges it into the session state
under the session lock, runs the graph, persists the result and streams
events to an Emitter. Settlement polling keeps the turn open through delayed
re-entries; verification forks are drained for a grace period before the
end marker is emitted.

# Key Components

  - Runtime: executes turns, re-entries and fork draining.
  - TurnRequest: the inbound turn and its merge rules.
  - JSONHandler: a JSON-Lines driver for headless use.

# Usage

	rt := runner.New(graph.NewScheduler(g), session.NewManager(store),
		runner.WithLogger(logger),
	)

	err := rt.Turn(ctx, runner.TurnRequest{SessionID: "donor-1", Message: "Find ocean causes"}, emitter)
*/
package runner
