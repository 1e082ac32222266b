// Copyright 2021 the System Transparency Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package host exposes facts about the host machine.
package host

import "golang.org/x/sys/unix"

// IsRoot reports whether the process runs with effective uid 0, which is
// needed for /dev/mem and the full configuration space.
func IsRoot() bool {
	return unix.Geteuid() == 0
}
