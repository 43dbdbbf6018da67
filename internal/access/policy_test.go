package access

import (
	"testing"

	"tasktrack/internal/models"
)

func TestRoleOf(t *testing.T) {
	if RoleOf(nil) != RoleUser {
		t.Fatal("nil profile must be a plain user")
	}
	if RoleOf(&models.Profile{IsAdmin: true}) != RoleAdmin {
		t.Fatal("admin flag")
	}
	if RoleOf(&models.Profile{IsAdmin: true, IsSuperAdmin: true}) != RoleSuperAdmin {
		t.Fatal("super admin wins over admin")
	}
}

func TestCanAccess(t *testing.T) {
	p := Principal{UserID: "u1"}
	if !CanAccess(p, "u1") || CanAccess(p, "u2") {
		t.Fatal("owner check")
	}
	if CanAccess(Principal{}, "") {
		t.Fatal("anonymous principal must never match")
	}
}

func TestCanAdminister(t *testing.T) {
	cases := map[Role]bool{RoleUser: false, RoleAdmin: true, RoleSuperAdmin: true}
	for role, want := range cases {
		if got := CanAdminister(Principal{UserID: "x", Role: role}); got != want {
			t.Errorf("%s: got %v", role, got)
		}
	}
}

func TestCanSetAdmin(t *testing.T) {
	super := Principal{UserID: "root", Role: RoleSuperAdmin}
	admin := Principal{UserID: "a", Role: RoleAdmin}
	target := &models.Profile{UserID: "u"}

	if !CanSetAdmin(super, target) {
		t.Fatal("super admin must be able to toggle")
	}
	if CanSetAdmin(admin, target) {
		t.Fatal("plain admin must not toggle")
	}
	if CanSetAdmin(super, &models.Profile{UserID: "root", IsSuperAdmin: true}) {
		t.Fatal("super admin profile is not togglable")
	}
	if CanSetAdmin(super, nil) {
		t.Fatal("nil target")
	}
}
