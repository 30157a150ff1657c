// Package eventstream reads GC trace events from bpftrace capture logs.
//
// Each event is one line: name,phase,tid,timestamp[,arg...]. Lines without a
// comma (the "Attaching N probes..." banner), comment lines and blank lines
// are skipped. Anything else that does not parse is a fatal *ParseError.
package eventstream
