package types

import (
	"fmt"
	"strconv"
)

// MembershipRole is a member's role within one organization. The values are
// ordered so guards can compare them directly: User < Admin < Owner.
type MembershipRole int

const (
	RoleUser MembershipRole = iota
	RoleAdmin
	RoleOwner
)

// Wire codes used by the clients: 0 = Owner, 1 = Admin, 2 = User. The internal
// ordering is the reverse, so conversion is explicit rather than a cast.
const (
	wireOwner = 0
	wireAdmin = 1
	wireUser  = 2
)

func (r MembershipRole) String() string {
	switch r {
	case RoleOwner:
		return "Owner"
	case RoleAdmin:
		return "Admin"
	case RoleUser:
		return "User"
	}
	return fmt.Sprintf("MembershipRole(%d)", int(r))
}

// WireCode returns the integer the API serializes this role as.
func (r MembershipRole) WireCode() int {
	switch r {
	case RoleOwner:
		return wireOwner
	case RoleAdmin:
		return wireAdmin
	default:
		return wireUser
	}
}

// ParseMembershipRole accepts the wire code (as number or numeric string) or
// the role name. Unknown values are rejected.
func ParseMembershipRole(s string) (MembershipRole, error) {
	switch s {
	case "Owner", "owner":
		return RoleOwner, nil
	case "Admin", "admin":
		return RoleAdmin, nil
	case "User", "user":
		return RoleUser, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return RoleUser, fmt.Errorf("invalid role %q", s)
	}
	switch n {
	case wireOwner:
		return RoleOwner, nil
	case wireAdmin:
		return RoleAdmin, nil
	case wireUser:
		return RoleUser, nil
	}
	return RoleUser, fmt.Errorf("invalid role %q", s)
}

// MembershipStatus tracks the invite/accept/confirm lifecycle. Only Confirmed
// members hold usable key material. Wire codes match the internal values.
type MembershipStatus int

const (
	StatusInvited MembershipStatus = iota
	StatusAccepted
	StatusConfirmed
)

func (s MembershipStatus) String() string {
	switch s {
	case StatusInvited:
		return "Invited"
	case StatusAccepted:
		return "Accepted"
	case StatusConfirmed:
		return "Confirmed"
	}
	return fmt.Sprintf("MembershipStatus(%d)", int(s))
}
