package version

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-fleet/pkg/errors"
)

type CompareTestSuite struct {
	suite.Suite
}

func TestCompareSuite(t *testing.T) {
	suite.Run(t, new(CompareTestSuite))
}

func (suite *CompareTestSuite) TestCheckStrategyAPI() {
	tests := []struct {
		name     string
		host     string
		declared string
		code     errors.ErrorCode
	}{
		{name: "exact", host: "1.2.0", declared: "1.2.0"},
		{name: "older patch", host: "1.2.7", declared: "1.2.0"},
		{name: "newer patch", host: "1.2.0", declared: "1.2.9"},
		{name: "v prefixes", host: "v1.2.0", declared: "v1.2.3"},
		{name: "prerelease", host: "1.2.0", declared: "1.2.1-rc.1"},
		{name: "dev host", host: "main", declared: "9.9.9"},
		{name: "dev strategy", host: "1.2.0", declared: "vmain"},
		{name: "newer minor", host: "1.2.0", declared: "1.3.0", code: errors.ErrCodeVersionMismatch},
		{name: "older minor", host: "1.2.0", declared: "1.1.9", code: errors.ErrCodeVersionMismatch},
		{name: "other major", host: "1.2.0", declared: "2.2.0", code: errors.ErrCodeVersionMismatch},
		{name: "garbage", host: "1.2.0", declared: "latest", code: errors.ErrCodeInvalidVersion},
		{name: "empty", host: "1.2.0", declared: "", code: errors.ErrCodeInvalidVersion},
		{name: "bad host", host: "x", declared: "1.2.0", code: errors.ErrCodeInvalidVersion},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			err := CheckStrategyAPI(tc.host, tc.declared)
			if tc.code == 0 {
				suite.NoError(err)

				return
			}

			suite.True(errors.HasCode(err, tc.code), "got %v", err)
		})
	}
}

func (suite *CompareTestSuite) TestBuiltinAPIIsSelfCompatible() {
	suite.NoError(CheckStrategyAPI(StrategyAPIVersion, StrategyAPIVersion))
	suite.NotEmpty(GetVersion())
}
