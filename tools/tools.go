//go:build tools

// Package tools lists the developer tooling this module expects on PATH.
// None of it is imported, so none of it appears in go.mod.
//
//   - mockgen (go.uber.org/mock/mockgen@v0.6.0): regenerates internal/mocks
//     from the ports in internal/core via `go generate ./internal/mocks`.
//   - golangci-lint (v2): `golangci-lint run ./...`; the nolint directives in
//     the tree name the linters they silence.
//   - air (github.com/air-verse/air): rebuilds and restarts
//     `trackanalysis-api` on save while iterating on handlers or the worker.
package tools
