// Package store implements durable persistence for dispatched payments over
// an embedded SQLite database, plus the bounded handle pool that serializes
// access to it. The payments table is exposed through two filtered views, one
// per upstream, and a second table mirrors the in-memory health registry
// across restarts.
package store
