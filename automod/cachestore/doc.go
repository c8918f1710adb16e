// Automod component for caching small string values with a fixed TTL.
//
// Includes an interface and implementations using redis and in-process memory.
//
// The moderation engine uses this to remember recently rejected submissions, so that an optional repeat-submission window can be enforced without touching trust state.
package cachestore
