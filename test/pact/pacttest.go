//go:build pact
// +build pact

package pacttest

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

const (
	ProviderName = "order-engine-api"
	ConsumerName = "order-admin-panel"

	StateOrdersBaseline = "orders baseline"
	StatePaidPending    = "paid pending order EMPI-101 exists"
	StateUnpaidPending  = "unpaid pending order EMPI-102 exists"
	StateOrderMissing   = "no order EMPI-404"
)

const (
	PaidOrderNumber    = "EMPI-101"
	UnpaidOrderNumber  = "EMPI-102"
	MissingOrderNumber = "EMPI-404"

	CustomerEmail = "pact.customer@example.com"
	ApproverID    = "pact-admin"
)

// PactDir returns the workspace-level directory for generated pact files.
func PactDir(t testing.TB) string {
	t.Helper()
	dir := filepath.Join(projectRoot(t), "pacts")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("create pact dir: %v", err)
	}
	return dir
}

// PactFile returns the canonical pact file path for the admin panel consumer.
func PactFile(t testing.TB) string {
	t.Helper()
	return filepath.Join(PactDir(t), ConsumerName+"-"+ProviderName+".json")
}

// LogDir returns the log output directory for pact-go.
func LogDir(t testing.TB) string {
	t.Helper()
	dir := filepath.Join(projectRoot(t), "bin", "pact-logs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("create pact log dir: %v", err)
	}
	return dir
}

// ExampleOrderPayload is the admin list entry both sides agree on.
func ExampleOrderPayload() map[string]any {
	return map[string]any{
		"key":           "id:o-101",
		"id":            "o-101",
		"orderNumber":   PaidOrderNumber,
		"kind":          "standard",
		"status":        "pending",
		"view":          "pending",
		"paymentStatus": "paid",
		"total":         "19350",
	}
}

// projectRoot walks up from this file to the workspace root.
func projectRoot(t testing.TB) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("cannot determine caller for pact paths")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(file), "..", ".."))
}
