// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package version

import "testing"

func TestString(t *testing.T) {
	Version, Commit, Date = "v1.2.3", "abc1234", "2025-06-01"
	if got, want := String(), "v1.2.3 (commit: abc1234, built: 2025-06-01)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
