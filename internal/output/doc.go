// Package output writes enriched events.
//
// File sinks share the Record shape {name, ph, tid, ts, args}:
//   - ChromeWriter: Chrome Trace Event Format, ts in microseconds
//   - NDJSONWriter: one JSON record per line
//   - MsgpackWriter: a stream of msgpack maps with sorted keys
//
// The line-oriented sinks append a "run" metadata record (ph "M") holding the
// run context left open at end of stream. ChromeWriter puts it in
// otherData.run instead.
//
// OTELFormatter exports spans rather than records: each GC run and work
// packet becomes a span carrying its enriched attributes, and instants become
// span events on the innermost open span of their thread.
//
// WriteSummary prints per-stream counts for the CLI.
package output
