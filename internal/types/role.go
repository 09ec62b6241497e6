package types

import (
	"fmt"
)

// Role identifies which stage of the decision round produced a piece of text.
// Roles form a closed set; constructing any other value is a construction-time
// error via ParseRole.
type Role string

const (
	RoleBullish       Role = "bullish"
	RoleBearish       Role = "bearish"
	RoleTrading       Role = "trading"
	RoleOversight     Role = "oversight"
	RoleRetrospective Role = "retrospective"
	RoleFeedback      Role = "feedback"
	RoleMisc          Role = "misc"
)

// AllRoles lists every valid role.
var AllRoles = []Role{
	RoleBullish,
	RoleBearish,
	RoleTrading,
	RoleOversight,
	RoleRetrospective,
	RoleFeedback,
	RoleMisc,
}

// roleWeights biases memory retrieval toward synthesized reports over raw
// debate turns: an oversight summary is a more valuable recall target than a
// single bullish argument.
var roleWeights = map[Role]float64{
	RoleBullish:       0.8,
	RoleBearish:       0.8,
	RoleTrading:       1.0,
	RoleOversight:     1.5,
	RoleRetrospective: 1.2,
	RoleFeedback:      1.3,
	RoleMisc:          0.5,
}

// ParseRole converts a string into a Role, failing for anything outside the
// closed set.
func ParseRole(s string) (Role, error) {
	role := Role(s)
	if _, ok := roleWeights[role]; !ok {
		return "", fmt.Errorf("unknown role: %q", s)
	}

	return role, nil
}

// IsValid reports whether the role belongs to the closed set.
func (r Role) IsValid() bool {
	_, ok := roleWeights[r]

	return ok
}

// RetrievalWeight returns the fixed retrieval weight for the role. Unknown
// roles weigh zero so they can never be ranked into search results.
func (r Role) RetrievalWeight() float64 {
	return roleWeights[r]
}

func (r Role) String() string {
	return string(r)
}
