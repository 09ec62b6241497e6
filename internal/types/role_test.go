package types

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type RoleTestSuite struct {
	suite.Suite
}

func TestRoleSuite(t *testing.T) {
	suite.Run(t, new(RoleTestSuite))
}

func (suite *RoleTestSuite) TestParseRoleValid() {
	for _, role := range AllRoles {
		parsed, err := ParseRole(string(role))
		suite.NoError(err)
		suite.Equal(role, parsed)
		suite.True(parsed.IsValid())
	}
}

func (suite *RoleTestSuite) TestParseRoleInvalid() {
	for _, s := range []string{"", "manager", "bull", "OVERSIGHT"} {
		_, err := ParseRole(s)
		suite.Error(err, "expected %q to be rejected", s)
	}
}

func (suite *RoleTestSuite) TestOversightWeightedHighest() {
	for _, role := range AllRoles {
		if role == RoleOversight {
			continue
		}
		suite.Greater(RoleOversight.RetrievalWeight(), role.RetrievalWeight(),
			"oversight should outrank %s", role)
	}
}

func (suite *RoleTestSuite) TestUnknownRoleWeighsZero() {
	suite.Zero(Role("manager").RetrievalWeight())
}
