// Package timesync converts the monotonic timestamps of captured trace events
// to wall-clock time.
//
// bpftrace prints nsecs, nanoseconds since system boot. The converter reads
// the boot time from /proc/stat and adds the monotonic offset. Captures taken
// on another host need that host's boot time instead.
package timesync
