package model

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{StatusAvailable, StatusClaimed, true},
		{StatusClaimed, StatusDelivered, true},
		{StatusAvailable, StatusDelivered, false},
		{StatusClaimed, StatusAvailable, false},
		{StatusDelivered, StatusClaimed, false},
		{StatusDelivered, StatusAvailable, false},
		{StatusAvailable, StatusAvailable, false},
		{StatusDelivered, StatusDelivered, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestValidCategory(t *testing.T) {
	if !ValidCategory("Electronics") {
		t.Error("expected 'Electronics' to be a valid category")
	}
	if ValidCategory("Furniture") {
		t.Error("expected 'Furniture' to be invalid")
	}
	if ValidCategory("") {
		t.Error("expected empty category to be invalid")
	}
}

func TestValidLocation(t *testing.T) {
	if !ValidLocation("Library") {
		t.Error("expected 'Library' to be a valid location")
	}
	if ValidLocation("Cafeteria") {
		t.Error("expected 'Cafeteria' to be invalid")
	}
}

func TestRoleAtLeast(t *testing.T) {
	if !RoleAtLeast(RoleAdmin, RoleGuard) {
		t.Error("admin should satisfy guard requirement")
	}
	if !RoleAtLeast(RoleGuard, RoleGuard) {
		t.Error("guard should satisfy guard requirement")
	}
	if RoleAtLeast(RoleGuard, RoleAdmin) {
		t.Error("guard should not satisfy admin requirement")
	}
	if RoleAtLeast("", RoleGuard) {
		t.Error("unknown role should not satisfy guard requirement")
	}
}
