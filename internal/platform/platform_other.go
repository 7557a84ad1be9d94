//go:build !linux

package platform

import "encmirror/internal/model"

type unsupportedProbe struct{}

func newProbe() Probe {
	return unsupportedProbe{}
}

func (unsupportedProbe) Disks([]string) ([]model.DiskItem, error) {
	return nil, ErrUnsupported
}

func (unsupportedProbe) CPU() (model.CPUTopology, error) {
	return model.CPUTopology{}, ErrUnsupported
}
