// Short-lived key/value cache with a fixed TTL and purging.
//
// Includes an interface and implementations using redis and in-process memory. The engine uses it to remember recently handled occurrence ids, so that occurrences re-delivered after a bridge reconnect are not enforced twice.
package cachestore
