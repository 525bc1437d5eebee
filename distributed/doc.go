// Package distributed manages services that keep one instance per
// shard. Start constructs the instances in place, Stop retires them
// exactly once, and the Map helpers invoke against selected instances
// with future-valued results.
package distributed
