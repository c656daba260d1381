/*
Package ports defines the driven ports (interfaces) of the donation agent.

These interfaces decouple the orchestration core from external implementations,
allowing it to work with various storage backends, inference providers and swap
services.

# Key Interfaces

  - StateStore: persists and loads versioned session State.
  - DistributedLocker: serializes turns for one session across replicas.
  - Persistence, Search: fundraiser lookup, donation recording and ranking.
  - ChatModel: streaming chat completion that reports request/response hashes.
  - AttestationService: signed statements for completed chats.
  - SwapProvider: token catalog, quotes and settlement status.
*/
package ports
