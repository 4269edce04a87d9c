// Package scheduler assembles the monitoring engine.
//
// The engine runs three kinds of tasks: one scanner that selects due
// endpoints every tick, one throttled health probe inside the scanner's
// gate check, and a fixed pool of workers draining the bounded queue. The
// registry is loaded once from the store at startup and then kept current
// purely through change events; the engine never polls for configuration.
package scheduler
