package sharedlibrary

import (
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
)

// CheckVersion resolves symbol as a func() string version export and
// validates the version it reports against a semver constraint such as
// "0.1.x" or ">=1.2, <2". The library is loaded lazily if needed. Use this
// to reject an ABI-incompatible library before binding the rest of its
// exports.
func (l *Library) CheckVersion(constraint, symbol string) error {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return errors.Wrapf(err, "failed to parse version constraint: %s", constraint)
	}
	var getVersion func() string
	if err := l.Register(symbol, &getVersion); err != nil {
		return errors.Wrap(err, "failed to resolve version symbol")
	}
	raw := strings.TrimSpace(getVersion())
	ver, err := semver.NewVersion(raw)
	if err != nil {
		return errors.Wrapf(err, "failed to parse version reported by %s: %q", symbol, raw)
	}
	if !c.Check(ver) {
		return errors.Errorf("library %s version %s is not compatible with constraint %s", l.Path(), ver, c)
	}
	return nil
}
