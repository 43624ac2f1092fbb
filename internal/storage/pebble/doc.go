// Package pebblestore wraps a Pebble database with the durability policy and
// batch helpers Frontier's queue backends rely on. Every mutating queue
// operation is a single batch committed through this wrapper, so the fsync
// mode chosen here is the atomicity and durability boundary for the whole
// store.
package pebblestore
