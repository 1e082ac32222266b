// Copyright 2021 the System Transparency Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package host

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"system-transparency.org/nvtrust/sterror"
)

// DefaultIOMemFile is the kernel's listing of the physical address map.
const DefaultIOMemFile = "/proc/iomem"

// Region is one line of the physical memory listing, such as
// "bb000000-bbffffff : 0000:41:00.0". Depth is the nesting level given by
// the indentation.
type Region struct {
	Start uint64
	End   uint64
	Name  string
	Depth int
}

// Size returns the number of bytes covered by r.
func (r Region) Size() uint64 {
	return r.End - r.Start + 1
}

// String implements fmt.Stringer.
func (r Region) String() string {
	return fmt.Sprintf("%08x-%08x : %s", r.Start, r.End, r.Name)
}

// ParseIOMem parses a complete physical memory listing.
func ParseIOMem(r io.Reader) ([]Region, error) {
	var regions []Region

	scanner := bufio.NewScanner(r)
	for n := 1; scanner.Scan(); n++ {
		if strings.TrimSpace(scanner.Text()) == "" {
			continue
		}

		region, err := parseIOMemLine(scanner.Text())
		if err != nil {
			return nil, sterror.E(ErrScope, ErrOpIOMem, err, fmt.Sprintf("line %d", n))
		}

		regions = append(regions, region)
	}

	if err := scanner.Err(); err != nil {
		return nil, sterror.E(ErrScope, ErrOpIOMem, err)
	}

	return regions, nil
}

// FindIOMem returns the first region whose line contains marker. Lines
// before the match are not parsed, so the kernel's zeroed ranges shown to
// unprivileged readers do not matter. The bool is false if no line
// matches.
func FindIOMem(r io.Reader, marker string) (Region, bool, error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, marker) {
			continue
		}

		region, err := parseIOMemLine(line)
		if err != nil {
			return Region{}, false, sterror.E(ErrScope, ErrOpIOMem, err)
		}

		return region, true, nil
	}

	if err := scanner.Err(); err != nil {
		return Region{}, false, sterror.E(ErrScope, ErrOpIOMem, err)
	}

	return Region{}, false, nil
}

// parseIOMemLine takes the first whitespace delimited token as the range.
// The rest, without the kernel's leading colon, is the name.
func parseIOMemLine(line string) (Region, error) {
	trimmed := strings.TrimLeft(line, " ")
	depth := (len(line) - len(trimmed)) / 2

	rng, name := trimmed, ""
	if i := strings.IndexFunc(trimmed, unicode.IsSpace); i >= 0 {
		rng, name = trimmed[:i], trimmed[i:]
	}

	name = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(name), ":"))

	startStr, endStr, ok := strings.Cut(rng, "-")
	if !ok {
		return Region{}, fmt.Errorf("%w: %q: missing range", ErrParse, line)
	}

	start, err := strconv.ParseUint(startStr, 16, 64)
	if err != nil {
		return Region{}, fmt.Errorf("%w: %q: %v", ErrParse, line, err)
	}

	end, err := strconv.ParseUint(endStr, 16, 64)
	if err != nil {
		return Region{}, fmt.Errorf("%w: %q: %v", ErrParse, line, err)
	}

	if end < start {
		return Region{}, fmt.Errorf("%w: %q: end before start", ErrParse, line)
	}

	return Region{
		Start: start,
		End:   end,
		Name:  name,
		Depth: depth,
	}, nil
}
