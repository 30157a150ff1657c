// Package batch enriches several capture files at once.
//
// Plan maps inputs to outputs; Run processes each input with its own
// eventprocessor.Processor on a bounded errgroup. Streams never share run or
// work packet contexts, only the read-only handler registry and compiled
// expressions.
package batch
