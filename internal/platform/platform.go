package platform

import (
	"errors"

	"encmirror/internal/model"
)

// ErrUnsupported is returned by probes on targets without an implementation.
var ErrUnsupported = errors.New("platform probe unsupported on this target")

// Probe inspects the local host.
type Probe interface {
	Disks(paths []string) ([]model.DiskItem, error)
	CPU() (model.CPUTopology, error)
}

// New returns the probe for the current build target.
func New() Probe {
	return newProbe()
}
