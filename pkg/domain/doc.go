/*
Package domain contains the core domain models of the agentflow engine.

It defines the state container that flows between nodes, the control-key
protocol nodes use to steer dispatch, graph definitions and run records.
This package is kept pure and free of I/O or persistence concerns.

# Key Entities

  - State: The JSON-shaped map every node reads and mutates.
  - Decision: The engine's reading of the control keys (continue to a node, or stop).
  - GraphSpec / Graph: A named entry point plus the nodes it may dispatch to.
  - Run: The recorded outcome of one execution (status, step log, last good state).
*/
package domain
