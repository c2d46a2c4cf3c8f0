// Package tests groups the shared doubles (mocks), builders (fixtures) and the
// tagged suites: e2e, integration (Docker via testcontainers) and api (live server).
//
//	go test ./...                              # unit tests, including tests/integration/security_test.go
//	go test -tags=integration ./tests/integration/...
//	go test -tags=e2e ./tests/e2e/...
package tests

import (
	// Only referenced from build-tagged files; keep them in go.mod for untagged builds.
	_ "github.com/testcontainers/testcontainers-go"
	_ "github.com/testcontainers/testcontainers-go/wait"
)
