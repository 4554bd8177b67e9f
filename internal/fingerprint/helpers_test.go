package fingerprint

import (
	"testing"

	"firestige.xyz/hfinger/internal/tables"
)

func newTestEngine(t testing.TB) *Engine {
	t.Helper()
	tbl, err := tables.Default()
	if err != nil {
		t.Fatalf("load tables: %v", err)
	}
	return New(tbl, nil)
}
