// Copyright 2021 the System Transparency Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pci

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// h100Resource is a trimmed resource file of an H100 PCIe card.
const h100Resource = `0x00000000bb000000 0x00000000bbffffff 0x0000000000040200
0x0000000000000000 0x0000000000000000 0x0000000000000000
0x0000020000000000 0x000002001fffffff 0x000000000014220c
0x0000000000000000 0x0000000000000000 0x0000000000000000
0x0000020020000000 0x0000020021ffffff 0x000000000014220c
0x0000000000000000 0x0000000000000000 0x0000000000000000
0x0000000000000000 0x0000000000000000 0x0000000000000000
`

type capNode struct {
	off  uint8
	id   uint8
	next uint8
}

// configSpace returns a size byte configuration space of the given
// identity with the capability nodes written into it.
func configSpace(size int, vendor, device uint16, capPtr uint8, nodes ...capNode) []byte {
	b := make([]byte, size)
	binary.LittleEndian.PutUint16(b[offVendorID:], vendor)
	binary.LittleEndian.PutUint16(b[offDeviceID:], device)
	b[offRevisionID] = 0xa1
	b[offClassCode] = 0x00
	b[offClassCode+1] = 0x02
	b[offClassCode+2] = 0x03
	b[offCapabilitiesPointer] = capPtr

	for _, n := range nodes {
		b[n.off] = n.id
		b[int(n.off)+1] = n.next
	}

	return b
}

// h100Config is a config space with a PM -> MSI -> PCIe -> MSI-X chain.
func h100Config(size int) []byte {
	return configSpace(size, NvidiaVendorID, HopperH100PCIe, 0x60,
		capNode{0x60, CapIDPowerManagement, 0x68},
		capNode{0x68, CapIDMSI, 0x78},
		capNode{0x78, CapIDPCIExpress, 0xc8},
		capNode{0xc8, CapIDMSIX, 0x00},
	)
}

// fakeDevice creates a sysfs like device directory.
func fakeDevice(t *testing.T, config []byte, resource string) string {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, configFile), config, 0o600))

	if resource != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, resourceFile), []byte(resource), 0o600))
	}

	return dir
}
