// Package daemon provides the process plumbing of luxid: a main loop that
// serializes signal handling and timers, pid file handling, a file watcher
// for data files that may be replaced while the daemon runs, and a
// throttle that folds bursts of change events into one action.
package daemon
