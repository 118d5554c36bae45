/*
Package ports defines the driven ports (interfaces) of the agentflow engine.

These interfaces decouple the core logic from external implementations, allowing
the engine to work with various storage backends and the outer adapters to
depend on the engine without importing it.

# Key Interfaces

  - RunStore: Responsible for persisting and loading run records.
  - GraphStore: Responsible for persisting immutable graph definitions.
  - DistributedLocker: Provides distributed locking for concurrent writers.
  - Engine: The create/run/fetch operations exposed by HTTP and MCP.
*/
package ports
