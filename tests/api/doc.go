// Package api contains tests that run against a real backend server.
//
// These tests require the backend server to be running before execution.
// They exercise the public HTTP surface: probes, status, ad-hoc send
// validation and the report run history.
//
// Usage:
//
//	# Start the backend server first
//	go run ./cmd/server
//
//	# Then run the API tests
//	go test -tags=api ./tests/api/... -v
//
// Environment Variables:
//
//	API_BASE_URL       - Base URL of the API server (default: http://localhost:8000)
//	API_KEY            - API key for authentication (default: empty, auth disabled)
//	API_TRIGGER_REPORT - set to "true" to also trigger a real report run
package api
