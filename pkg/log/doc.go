/*
Package log provides structured logging using zerolog.

Init configures the global logger once at startup; console output is the
default, JSON output is selected with Config.JSONOutput. Packages derive
child loggers carrying a fixed field:

	logger := log.WithComponent("luxi")
	logger.Info().Str("socket", path).Msg("Listening")

	logger = log.WithJobID(uint64(id))
	logger.Debug().Msg("Job started")

Levels are debug, info, warn and error; ParseLevel maps unknown strings to
info.
*/
package log
