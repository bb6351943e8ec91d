// Package ddr implements the DDR3 FR-FCFS memory controller: address
// mapping, per-bank request queues, the FR-FCFS global scheduling loop,
// full DDR3 timing constraints, refresh, and system/memory frequency
// translation (spec §4.3).
package ddr

import "fmt"

// Timing holds the DDR3 timing constraints, all expressed in memory
// clocks (spec's GLOSSARY: "DRAM timing parameters in memory clocks").
type Timing struct {
	TCL   uint64 // CAS latency
	TRCD  uint64 // row-to-column delay (ACT -> CAS)
	TRP   uint64 // precharge time
	TRAS  uint64 // row active time (ACT -> PRE minimum)
	TRRD  uint64 // activate-to-activate, different bank, same rank
	TFAW  uint64 // four-activate window
	TWTR  uint64 // write-to-read turnaround
	TWR   uint64 // write recovery
	TRFC  uint64 // refresh cycle time
	TREFI uint64 // refresh interval
	TRTP  uint64 // read-to-precharge
	TBL   uint64 // burst length in cycles
}

// knownTechTimings maps a handful of "DDR3-speed-CLn" tech strings (spec
// §6's example, "DDR3-1333-CL10") to their standard timing parameters,
// in memory clocks. Only these entries are populated; ParseTechString
// returns an error for any other string, so a typo never silently
// produces zeroed timings.
var knownTechTimings = map[string]Timing{
	"DDR3-1333-CL10": {
		TCL: 10, TRCD: 10, TRP: 10, TRAS: 24, TRRD: 4, TFAW: 20,
		TWTR: 5, TWR: 10, TRFC: 107, TREFI: 4875, TRTP: 5, TBL: 4,
	},
	"DDR3-1600-CL11": {
		TCL: 11, TRCD: 11, TRP: 11, TRAS: 28, TRRD: 5, TFAW: 24,
		TWTR: 6, TWR: 12, TRFC: 128, TREFI: 5850, TRTP: 6, TBL: 4,
	},
}

// ParseTechString resolves a DDR tech string (e.g. "DDR3-1333-CL10") to
// a Timing. Unknown strings are a configuration error (spec §7: fatal at
// init, reported with the offending setting).
func ParseTechString(s string) (Timing, error) {
	if t, ok := knownTechTimings[s]; ok {
		return t, nil
	}
	return Timing{}, fmt.Errorf("ddr: unrecognized DDR tech string %q", s)
}
