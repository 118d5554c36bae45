/*
Package agentflow is a minimal workflow engine that runs graphs of named nodes over a shared state.

A node is a function that receives the state, mutates it, and hands it back. The
engine decides what runs next by reading reserved control keys from the state
after every invocation:

  - "_next_node": a node name continues the run there; null or "" stops it.
  - "_stop": true stops the run even when "_next_node" is set.

When a node sets neither key the graph's static edge (if any) is followed;
otherwise the run completes. A step limit (default 100) bounds every run, and
each run is recorded in a store so its outcome can be fetched by ID.

# Concept

The engine follows a Hexagonal Architecture: the execution loop and domain
types know nothing about persistence or transport. Stores (memory, Redis,
SQLite, files) and front-ends (HTTP, MCP, CLI) are adapters around the same
ports.Engine.

# Usage

	package main

	import (
		"context"
		"log"

		"github.com/aretw0/agentflow"
		"github.com/aretw0/agentflow/pkg/domain"
	)

	func main() {
		eng, err := agentflow.New()
		if err != nil {
			log.Fatal(err)
		}

		_ = eng.Register("greet", func(ctx context.Context, s domain.State) (domain.State, error) {
			s.Set("greeting", "hello "+s["name"].(string))
			return s, nil
		})

		ctx := context.Background()
		graphID, err := eng.CreateGraph(ctx, domain.GraphSpec{Entry: "greet", Nodes: []string{"greet"}})
		if err != nil {
			log.Fatal(err)
		}

		run, err := eng.Run(ctx, graphID, map[string]any{"name": "world"})
		if err != nil {
			log.Fatal(err)
		}
		log.Println(run.Status, run.State["greeting"])
	}
*/
package agentflow
