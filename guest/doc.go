// Package guest adapts WebAssembly modules into closure producers:
// each export becomes an opaque closure the shard runtime can invoke
// and release like any other caller-supplied work.
package guest
