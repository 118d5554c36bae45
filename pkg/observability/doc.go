/*
Package observability provides tools for monitoring the agentflow engine.

It includes Prometheus metrics and structured-log auditing, both exposed as
domain.LifecycleHooks so they can be combined and passed to the engine.
*/
package observability
