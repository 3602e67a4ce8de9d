// Package memory configures the Go soft memory limit (GOMEMLIMIT) from
// container limits so large bitmap decodes do not push the process past
// its cgroup ceiling.
package memory
