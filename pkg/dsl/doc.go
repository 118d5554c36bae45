/*
Package dsl provides a fluent builder for declaring a graph together with its node functions.

A GraphSpec only names nodes; the functions live in a registry. The builder keeps both
side by side so a workflow can be declared in one place, then registered and stored.

Example usage:

	b := dsl.New("greeter")

	b.Add("ask").
		Do(askName).
		Then("greet").
		Do(greet).
		Terminal()

	// Registers ask and greet, then stores the definition.
	id, err := b.Install(ctx, engine)

Nodes without a static edge end the run unless they set _next_node themselves.
*/
package dsl
