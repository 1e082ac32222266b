// Copyright 2021 the System Transparency Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pci

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	upci "github.com/u-root/u-root/pkg/pci"
	"system-transparency.org/nvtrust/sterror"
)

// deviceNames maps NVIDIA device ids to marketing names. The pci.ids
// database shipped with u-root predates Hopper.
var deviceNames = map[uint16]string{
	0x2330: "H100 SXM5 80GB",
	0x2331: "H100 PCIe",
}

// DeviceName returns the marketing name of an NVIDIA device id, or the id
// in hex if it is unknown.
func DeviceName(deviceID uint16) string {
	if name, ok := deviceNames[deviceID]; ok {
		return name
	}

	return fmt.Sprintf("NVIDIA device 0x%04x", deviceID)
}

// Candidate is a device found by Find.
type Candidate struct {
	// Address is the domain:bus:device.function address.
	Address  string
	Path     string
	VendorID uint16
	DeviceID uint16
	Class    uint32

	// VendorName and DeviceName come from the pci.ids database. Ids the
	// database does not know are given in hex.
	VendorName string
	DeviceName string
}

// Name returns the marketing name of the candidate.
func (c Candidate) Name() string {
	if name, ok := deviceNames[c.DeviceID]; ok {
		return name
	}

	if c.DeviceName != "" && c.DeviceName != fmt.Sprintf("%04x", c.DeviceID) {
		return c.DeviceName
	}

	return DeviceName(c.DeviceID)
}

// String implements fmt.Stringer.
func (c Candidate) String() string {
	return fmt.Sprintf("%s %s (%04x:%04x)", c.Address, c.Name(), c.VendorID, c.DeviceID)
}

// Filter selects candidates. i is the position of c among all devices
// matching the vendor and device id.
type Filter func(i int, c Candidate) bool

// ByBDF matches candidates whose address contains s, e.g. "41:00".
func ByBDF(s string) Filter {
	s = strings.ToLower(s)

	return func(_ int, c Candidate) bool {
		return strings.Contains(c.Address, s)
	}
}

// ByName matches candidates whose marketing name contains s, ignoring case.
func ByName(s string) Filter {
	s = strings.ToLower(s)

	return func(_ int, c Candidate) bool {
		return strings.Contains(strings.ToLower(c.Name()), s)
	}
}

// ByIndex matches the i-th candidate.
func ByIndex(idx int) Filter {
	return func(i int, _ Candidate) bool {
		return i == idx
	}
}

// Find lists the devices below root with the given vendor and device id
// that pass all filters, sorted by address. Entries that do not read as a
// PCI device are skipped.
func Find(root string, vendorID, deviceID uint16, filters ...Filter) ([]Candidate, error) {
	const operation = sterror.Op("find devices")

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, sterror.E(ErrScope, operation, fmt.Errorf("%w: %v", ErrIO, err), root)
	}

	var all []Candidate

	for _, e := range entries {
		p, err := upci.OnePCI(filepath.Join(root, e.Name()))
		if err != nil || p.Vendor != vendorID || p.Device != deviceID {
			continue
		}

		p.SetVendorDeviceName()

		all = append(all, Candidate{
			Address:    strings.ToLower(p.Addr),
			Path:       p.FullPath,
			VendorID:   p.Vendor,
			DeviceID:   p.Device,
			Class:      p.Class,
			VendorName: p.VendorName,
			DeviceName: p.DeviceName,
		})
	}

	sort.Slice(all, func(i, j int) bool { return all[i].Address < all[j].Address })

	var found []Candidate

	for i, c := range all {
		if matchAll(i, c, filters) {
			found = append(found, c)
		}
	}

	return found, nil
}

func matchAll(i int, c Candidate, filters []Filter) bool {
	for _, f := range filters {
		if !f(i, c) {
			return false
		}
	}

	return true
}
