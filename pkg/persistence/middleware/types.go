// Package middleware decorates a ports.RunStore with at-rest protections.
package middleware

import "github.com/aretw0/agentflow/pkg/ports"

// Middleware allows wrapping a RunStore to add behavior.
type Middleware func(ports.RunStore) ports.RunStore

// Chain applies mws to store so that the first middleware sees writes first.
func Chain(store ports.RunStore, mws ...Middleware) ports.RunStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
