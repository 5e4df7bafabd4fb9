package types

import (
	"encoding/json"
	"testing"
)

func TestParseMembershipRole(t *testing.T) {
	tests := []struct {
		in      string
		want    MembershipRole
		wantErr bool
	}{
		{"Owner", RoleOwner, false},
		{"owner", RoleOwner, false},
		{"Admin", RoleAdmin, false},
		{"User", RoleUser, false},
		{"0", RoleOwner, false},
		{"1", RoleAdmin, false},
		{"2", RoleUser, false},
		{"3", RoleUser, true},
		{"Manager", RoleUser, true},
		{"", RoleUser, true},
	}
	for _, tt := range tests {
		got, err := ParseMembershipRole(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseMembershipRole(%q) = %v, want error", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseMembershipRole(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMembershipRole(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRoleWireCodeRoundTrip(t *testing.T) {
	// The wire ordering is the reverse of the internal ordering.
	for _, role := range []MembershipRole{RoleUser, RoleAdmin, RoleOwner} {
		parsed, err := ParseMembershipRole(role.String())
		if err != nil || parsed != role {
			t.Errorf("name round trip for %v: got %v, %v", role, parsed, err)
		}
	}
	if RoleOwner.WireCode() != 0 || RoleAdmin.WireCode() != 1 || RoleUser.WireCode() != 2 {
		t.Errorf("wire codes = %d/%d/%d, want 0/1/2",
			RoleOwner.WireCode(), RoleAdmin.WireCode(), RoleUser.WireCode())
	}
}

func TestRoleOrdering(t *testing.T) {
	if !(RoleUser < RoleAdmin && RoleAdmin < RoleOwner) {
		t.Fatal("roles are not ordered User < Admin < Owner")
	}
}

func TestNumberOrStringUnmarshal(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{`"2"`, "2", false},
		{`2`, "2", false},
		{`"Admin"`, "Admin", false},
		{`0`, "0", false},
		{`true`, "", true},
		{`{"a":1}`, "", true},
	}
	for _, tt := range tests {
		var n NumberOrString
		err := json.Unmarshal([]byte(tt.in), &n)
		if tt.wantErr {
			if err == nil {
				t.Errorf("unmarshal %s = %q, want error", tt.in, n.String())
			}
			continue
		}
		if err != nil {
			t.Errorf("unmarshal %s: %v", tt.in, err)
			continue
		}
		if n.String() != tt.want {
			t.Errorf("unmarshal %s = %q, want %q", tt.in, n.String(), tt.want)
		}
	}
}
