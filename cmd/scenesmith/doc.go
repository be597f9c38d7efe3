// Package main hosts the scenesmith CLI entrypoint and command graph.
//
// Each command resolves configuration, takes the per-project lock, and
// hands off to the internal packages: ingest turns collaborator responses
// into artifacts, engine advances the project record, ledger keeps the
// attempt history. The exit status reflects the error kind so wrapper
// scripts can tell a retryable gap from a rejected artifact.
package main
