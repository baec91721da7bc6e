// Package store provides storage and pub/sub functionality for job statuses.
//
// This package is internal to jobpulse and holds the latest observed status
// per watched key. It implements a publish-subscribe pattern so connected
// API clients receive updates in real time.
//
// The main components are:
//
//   - [Store]: Interface defining storage and subscription operations
//   - [MemoryStore]: In-memory implementation of Store with pub/sub
//   - [JobStatus]: Storage representation of a job's latest status
//
// The store is designed for concurrent access with proper synchronization.
// Subscribers receive updates via channels with non-blocking sends (slow
// subscribers will miss updates rather than block the system).
package store
