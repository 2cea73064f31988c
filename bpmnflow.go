// Package bpmnflow carries the application identity reported by the
// bpmnflow binaries and their structured logs
package bpmnflow

const (
	// Name is the service name attached to every log record
	Name = "bpmnflow"

	// Version is the release version attached to every log record
	Version = "0.1.0"
)
