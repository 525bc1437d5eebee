// Package logger keeps a process-wide registry of named loggers with
// per-name verbosity levels, all writing through one shared zap base.
package logger
