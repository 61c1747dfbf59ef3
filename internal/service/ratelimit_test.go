package service

import "testing"

func TestUserLimiter(t *testing.T) {
	l := newUserLimiter(2)

	if !l.Allow("alice") || !l.Allow("alice") {
		t.Fatal("expected burst of 2 to be allowed")
	}
	if l.Allow("alice") {
		t.Error("expected third call to be limited")
	}
	if !l.Allow("bob") {
		t.Error("expected other users to have their own budget")
	}

	unlimited := newUserLimiter(0)
	for i := 0; i < 100; i++ {
		if !unlimited.Allow("alice") {
			t.Fatal("expected no limit when disabled")
		}
	}
}
