// Copyright 2021 the System Transparency Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"

	"system-transparency.org/nvtrust/gpu"
	"system-transparency.org/nvtrust/host"
	"system-transparency.org/nvtrust/opts"
	"system-transparency.org/nvtrust/pci"
	"system-transparency.org/nvtrust/stlog"
)

func setupLogging(out, level string) error {
	lvl, err := stlog.ParseLevel(level)
	stlog.SetLevel(lvl)

	if out == "kernel" {
		if kerr := stlog.SetOutput(stlog.KernelSyslog); kerr != nil {
			return kerr
		}
	}

	return err
}

func loadOpts(configFile, sysfs string) (*opts.Opts, error) {
	loaders := []opts.Loader{opts.WithDefaults()}

	if configFile != "" {
		loaders = append(loaders, opts.WithFile(configFile))
	}

	if sysfs != "" {
		loaders = append(loaders, func(o *opts.Opts) error {
			o.SysfsRoot = sysfs

			return nil
		})
	}

	o, err := opts.NewOpts(loaders...)
	if err != nil {
		return nil, err
	}

	if err := opts.Validate(o); err != nil {
		return nil, err
	}

	return o, nil
}

func filters(index int, bdf, name string) []pci.Filter {
	var fs []pci.Filter

	if bdf != "" {
		fs = append(fs, pci.ByBDF(bdf))
	}

	if name != "" {
		fs = append(fs, pci.ByName(name))
	}

	if index >= 0 {
		fs = append(fs, pci.ByIndex(index))
	}

	return fs
}

func parseUint(s string, bits int) (uint64, error) {
	v, err := strconv.ParseUint(s, 0, bits)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", s, err)
	}

	return v, nil
}

func openDevice(c pci.Candidate, o *opts.Opts) (*pci.Device, error) {
	dev, err := pci.Open(c.Path,
		pci.WithLogger(stlog.Default()),
		pci.WithID(uint16(o.VendorID), uint16(o.DeviceID)))
	if err != nil {
		return nil, err
	}

	if err := initDevice(dev); err != nil {
		dev.Close()

		return nil, err
	}

	return dev, nil
}

func initDevice(dev *pci.Device) error {
	if err := dev.InitCapabilities(); err != nil {
		if !errors.Is(err, pci.ErrNoCapabilities) {
			return err
		}

		stlog.Warn("%v", err)
	}

	if err := dev.InitExtendedCapabilities(); err != nil {
		return err
	}

	return dev.InitBARs()
}

func openGPU(dev *pci.Device, o *opts.Opts) (*gpu.GPU, error) {
	return gpu.New(dev,
		gpu.WithMemFile(o.MemFile),
		gpu.WithIOMemFile(o.IOMemFile),
		gpu.WithIOMemMarker(o.IOMemMarker),
		gpu.WithLogger(stlog.Default()))
}

func listCmd(w io.Writer, cs []pci.Candidate) {
	for i, c := range cs {
		fmt.Fprintf(w, "%d: %s\n", i, c)
	}
}

func infoCmd(w io.Writer, c pci.Candidate, dev *pci.Device) error {
	hdr := dev.Header()

	fmt.Fprintf(w, "Device:    %s\n", c)
	fmt.Fprintf(w, "Revision:  0x%02x\n", hdr.RevisionID)
	fmt.Fprintf(w, "Class:     0x%06x\n", hdr.Class())
	fmt.Fprintf(w, "Subsystem: %04x:%04x\n", hdr.SubsystemVendorID, hdr.SubsystemID)
	fmt.Fprintf(w, "Command:   0x%04x\n", hdr.Command)
	fmt.Fprintf(w, "Status:    0x%04x\n", hdr.Status)

	caps := dev.Capabilities()
	fmt.Fprintf(w, "Capabilities: %d\n", len(caps))

	for _, id := range sortedKeys(caps) {
		fmt.Fprintf(w, "  0x%03x %s\n", caps[id], pci.CapabilityName(id))
	}

	extCaps := dev.ExtCapabilities()
	fmt.Fprintf(w, "Extended capabilities: %d\n", len(extCaps))

	for _, id := range sortedKeys(extCaps) {
		fmt.Fprintf(w, "  0x%03x %s\n", extCaps[id], pci.ExtCapabilityName(id))
	}

	fmt.Fprintln(w, "BARs:")

	for i, bar := range dev.BARs() {
		if bar.Populated() {
			fmt.Fprintf(w, "  %d %s\n", i, bar)
		}
	}

	aer, err := dev.UncorrectableErrors()

	switch {
	case errors.Is(err, pci.ErrCapabilityNotFound):
		fmt.Fprintln(w, "AER: not available")
	case err != nil:
		return err
	default:
		fmt.Fprintf(w, "AER uncorrectable: %s\n", aer)
	}

	return nil
}

// sortedKeys orders capability ids by their offset in configuration space.
func sortedKeys[K uint8 | uint16](m map[K]uint64) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Slice(keys, func(i, j int) bool { return m[keys[i]] < m[keys[j]] })

	return keys
}

func ccModeCmd(w io.Writer, g *gpu.GPU) error {
	mode, err := g.QueryCCMode()
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "GPU:     %s\n", g.Boot())
	fmt.Fprintf(w, "CC mode: %s\n", mode)

	return nil
}

func readCmd(w io.Writer, g *gpu.GPU, offset, width string) error {
	off, bits, err := parseAccess(offset, width)
	if err != nil {
		return err
	}

	v, err := g.Read(off, bits)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "0x%06x: 0x%0*x\n", off, bits/4, v)

	if gpu.IsErrorValue(v) {
		stlog.Warn("0x%08x is an MMIO error pattern", v)
	}

	return nil
}

func writeCmd(g *gpu.GPU, offset, width, value string) error {
	off, bits, err := parseAccess(offset, width)
	if err != nil {
		return err
	}

	v, err := parseUint(value, bits)
	if err != nil {
		return err
	}

	stlog.Info("writing 0x%x to register 0x%06x", v, off)

	return g.Write(off, bits, uint32(v))
}

func parseAccess(offset, width string) (uint64, int, error) {
	off, err := parseUint(offset, 64)
	if err != nil {
		return 0, 0, err
	}

	bits, err := strconv.Atoi(width)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid width %q: %w", width, err)
	}

	return off, bits, nil
}

func snpCmd(w io.Writer) error {
	sev, err := host.DetectSEVSNP()
	if err != nil {
		return err
	}

	stlog.Info("detected AMD SEV-SNP capable CPU")

	fmt.Fprintf(w, "CPU:           %s\n", sev.Vendor)
	fmt.Fprintf(w, "Nested paging: %v\n", sev.NestedPaging)
	fmt.Fprintf(w, "SME:           %v\n", sev.SME)
	fmt.Fprintf(w, "SEV:           %v\n", sev.SEV)
	fmt.Fprintf(w, "SEV-ES:        %v\n", sev.SEVES)
	fmt.Fprintf(w, "SEV-SNP:       %v\n", sev.SEVSNP)

	if !sev.Raw {
		fmt.Fprintln(w, "CPUID 0x8000001f: not readable, load the cpuid module")

		return nil
	}

	fmt.Fprintf(w, "ASIDs:         0x%x\n", sev.ASIDs)
	fmt.Fprintf(w, "C-bit:         %d (mask 0x%016x)\n", sev.CBit, sev.SMEMask())

	return nil
}
