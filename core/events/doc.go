// Package events publishes journal entries to Kafka for downstream audit
// consumers.
//
// Publishing is strictly best-effort and optional: a deployment without a
// broker gets a nil Producer, and Publish on a nil Producer is a no-op.
// Mutations never fail because the broker is unreachable.
package events
