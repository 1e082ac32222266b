// Copyright 2021 the System Transparency Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import "fmt"

// CCState is the decoded confidential computing mode.
type CCState int

// Confidential computing states.
const (
	CCModeOff CCState = iota
	CCModeOn
	CCModeDevTools
	CCModeUnknown
)

// Raw register values.
const (
	ccModeOff      uint8 = 0x0
	ccModeOn       uint8 = 0x1
	ccModeDevTools uint8 = 0x3
)

// String implements fmt.Stringer.
func (s CCState) String() string {
	switch s {
	case CCModeOff:
		return "off"
	case CCModeOn:
		return "on"
	case CCModeDevTools:
		return "devtools"
	default:
		return "unknown"
	}
}

// CCMode is the content of the CC mode register. Raw is kept so values
// outside the known set stay visible.
type CCMode struct {
	State CCState
	Raw   uint8
}

// DecodeCCMode maps the raw register byte to a CCMode.
func DecodeCCMode(raw uint8) CCMode {
	m := CCMode{State: CCModeUnknown, Raw: raw}

	switch raw {
	case ccModeOff:
		m.State = CCModeOff
	case ccModeOn:
		m.State = CCModeOn
	case ccModeDevTools:
		m.State = CCModeDevTools
	}

	return m
}

// String implements fmt.Stringer.
func (m CCMode) String() string {
	if m.State == CCModeUnknown {
		return fmt.Sprintf("unknown (0x%02x)", m.Raw)
	}

	return m.State.String()
}

// QueryCCMode reads the CC mode register.
func (g *GPU) QueryCCMode() (CCMode, error) {
	raw, err := g.Read8(RegCCMode)
	if err != nil {
		return CCMode{}, err
	}

	return DecodeCCMode(raw), nil
}
