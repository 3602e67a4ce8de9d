// Package workers provides utilities for determining optimal worker pool
// sizes in containerized environments.
//
// Go 1.19+ sets GOMAXPROCS based on container CPU limits, while
// runtime.NumCPU() still reports the host machine's CPU count. The helpers
// here size pools from GOMAXPROCS so decode workers respect cgroup limits.
//
// Decode thumbnails are a mixed workload (read file, decode, hand off), so
// the gallery loader uses ForCPU with a small cap. Operators can override
// the computed count with the DECODE_WORKERS environment variable.
package workers
