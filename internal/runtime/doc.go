// Package runtime wires the configured store and queue backend for a
// single frontier process. It owns the Pebble database or Redis client and
// hands out queue handles bound to it.
package runtime
