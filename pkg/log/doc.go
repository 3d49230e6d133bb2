/*
Package log provides structured logging for scontrol and slurmctld using
zerolog.

A single global Logger is configured once at startup with Init. Packages
derive child loggers with WithComponent so every line carries the subsystem
that wrote it, and request handlers add the gRPC request id with
WithRequestID.

# Output

Logs go to stderr by default. The console writes command output to stdout,
so the two streams never mix. Console format is meant for people:

	10:30AM INF nodes updated component=manager nodes=lx[1-4] state=DOWN

JSON format is meant for log collectors:

	{"level":"info","component":"manager","nodes":"lx[1-4]","state":"DOWN","time":"2026-03-01T10:30:00Z","message":"nodes updated"}

# Usage

	import "github.com/cuemby/scontrol/pkg/log"

	log.Init(log.Config{Level: log.ParseLevel(cfg.Log.Level, log.InfoLevel)})
	logger := log.WithComponent("manager")
	logger.Info().Int("nodes", 4).Msg("controller state ready")

# Levels

scontrol defaults to warn so diagnostics stay out of the way; "verbose"
raises it to info. slurmctld defaults to info. Debug adds one line per
controller call on both sides.
*/
package log
