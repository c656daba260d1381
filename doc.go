/*
Package zspa is a conversational orchestration engine for private donations.

A donor writes free-form messages; zspa classifies each one, finds a fundraiser, resolves the
swap assets, issues a deposit quote and polls the swap until it settles. Every inference call is
made against a TEE-attested backend and verified out of band: a verification fork fetches the
signed attestation, checks that it binds the exact request and response bytes, and recovers the
EIP-191 signer.

# Concept

The application flow is a fixed graph of nodes (package agent) run by a scheduler (package graph).
Nodes mutate the session state and return a Command naming the next node, forks to spawn and an
optional delayed re-entry. The runner (package runner) turns one inbound message into one graph
invocation, holding the per-session lock, draining forks and persisting the result. Adapters plug
the engine into HTTP (Server-Sent Events), Redis, SQLite, the inference backend and the swap
provider.

# Key Features

  - Verified Inference: every model call produces a proof event with the recovered signer.
  - Durable Sessions: state is versioned, serialized per session and optionally encrypted at rest.
  - Settlement Polling: the status node re-enters itself on a fixed interval until the swap is terminal.
  - Hexagonal Architecture: nodes depend on ports only, so every collaborator can be faked in tests.

# Usage

The cmd/zspa binary wires everything from a YAML config:

	zspa serve --config zspa.yaml --seed causes.json
	zspa chat --session demo < turns.jsonl
	zspa graph --mermaid
*/
package zspa
