// Package scope holds the mutable context layers that enrichment handlers
// read and write.
//
// Bag is the container behind every layer. Its Merge is additive: new keys are
// added, scalar keys are overwritten, and nested bags are merged key by key, so
// a handler never replaces a bag it did not create.
//
// Layers, outermost first:
//   - Run: resource name -> Bag, alive for one GC run (or the whole trace)
//   - WorkPacket: fields of one active unit of GC work on one thread
//   - the per-event output Bag owned by the caller
//
// Tracker keeps the active work packets keyed by thread id. Packets opened on
// one thread are never visible to events from another.
//
// Nothing in this package is safe for concurrent use; a stream is processed
// by a single goroutine.
package scope
