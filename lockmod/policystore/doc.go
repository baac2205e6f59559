// Lock policy state for the enforcement engine: the declared values (group title, per-member nicknames, icon, anti-out, target) which must be restored whenever a thread drifts from them.
//
// Includes the in-process Store, a JSON snapshot format, and sinks for persisting snapshots to local disk or redis.
package policystore
