package version

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/rxtech-lab/argo-fleet/pkg/errors"
)

// devBuild marks an unversioned build. It is compatible with everything.
const devBuild = "main"

// CheckStrategyAPI reports whether a strategy written against declared can be
// registered on a host implementing hostAPI. Major and minor must match; the
// patch level may differ in either direction.
func CheckStrategyAPI(hostAPI, declared string) error {
	if isDevBuild(hostAPI) || isDevBuild(declared) {
		return nil
	}

	host, err := semver.NewVersion(hostAPI)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidVersion, err, "invalid host strategy API version %q", hostAPI)
	}

	strat, err := semver.NewVersion(declared)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidVersion, err, "invalid strategy API version %q", declared)
	}

	// ~X.Y admits every X.Y.z
	constraint, err := semver.NewConstraint(fmt.Sprintf("~%d.%d", host.Major(), host.Minor()))
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidVersion, "failed to build API constraint", err)
	}

	// prereleases are compared on their release triple
	release, _ := strat.SetPrerelease("")

	if !constraint.Check(&release) {
		return errors.Newf(errors.ErrCodeVersionMismatch, "strategy API %s is incompatible with host API %d.%d.x",
			strat.Original(), host.Major(), host.Minor())
	}

	return nil
}

func isDevBuild(v string) bool {
	return strings.TrimPrefix(strings.TrimSpace(v), "v") == devBuild
}
