// Package memory provides in-process adapters: a record sink and a scripted
// automation driver. They back the test suites and the "memory" driver kind
// used for dry runs.
package memory
