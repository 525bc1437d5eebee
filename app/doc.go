// Package app boots the shard runtime for a whole process: configure
// Options, then RunInt or RunVoid a main function on shard 0.
package app
