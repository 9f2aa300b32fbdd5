package actor

import (
	"github.com/btcsuite/btclog/v2"
)

// Subsystem is the logging subsystem tag this package identifies itself with
// when its logger is wired into a larger btclog.Handler fan-out.
const Subsystem = "ACTR"

// log is the package-wide logger. It defaults to a no-op implementation so
// that importing this package never produces log output until the host
// application opts in via UseLogger.
var log btclog.Logger = btclog.Disabled

// UseLogger sets the logger used by the actor package. Call this once during
// application start-up, before any ActorSystem is created, to route the
// runtime's lifecycle and trace-level logging into the host's logging
// pipeline.
func UseLogger(logger btclog.Logger) {
	log = logger
}
