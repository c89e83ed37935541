// Package redis is the Redis side of the presence cache: client construction with
// metrics and circuit breaker hooks, and the per-room member sets.
package redis
