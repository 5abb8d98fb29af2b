package pilot

import (
	"github.com/Masterminds/semver"
)

const (
	MODULE_VERSION = "~1"
)

// handleHello gates engagement on the firmware version the steer module
// announces at boot. An incompatible module can still be watched; it just
// cannot be engaged, and an active engagement is dropped.
func (p *Pilot) handleHello(version string) {
	ok := false

	semVer, err := semver.NewVersion(version)
	if err != nil {
		// not a semver, but we might be able to recover
		if version == "DEV" {
			// running a direct dev build, consider it safe for now
			ok = true
		}
	} else {
		constraint, cerr := semver.NewConstraint(MODULE_VERSION)
		ok = cerr == nil && constraint.Check(semVer)
	}

	p.mu.Lock()
	known := p.moduleKnown && p.moduleVersion == version
	p.moduleKnown = true
	p.moduleVersion = version
	p.moduleOK = ok
	dropped := false
	if !ok && p.engaged {
		p.engaged = false
		dropped = true
	}
	p.mu.Unlock()

	if known {
		return
	}
	if !ok {
		p.logger.Printf("steer module firmware %q outside %s, engage blocked", version, MODULE_VERSION)
	} else {
		p.logger.Printf("steer module firmware %s", version)
	}
	if dropped {
		p.logger.Print("disengaged: incompatible steer module")
	}
}
