/*
Package domain contains the core domain models of the donation agent.

It defines the session record threaded through every node of the orchestration
graph, the records exchanged with external collaborators, the events emitted
to the presentation layer and the error taxonomy. This package is kept pure and
free of I/O, following Hexagonal Architecture principles.

# Key Entities

  - State: the per-session record (message log, flow flags, slots, candidates, swap context, poll state).
  - MessageLog: an append-only, concurrency-safe sequence of conversation turns.
  - Cause: a fundraiser returned by search or direct lookup.
  - Proof: the outcome of verifying one inference call against its attestation.
  - Event: a typed fragment of the output stream.
*/
package domain
