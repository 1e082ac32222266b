// Copyright 2021 the System Transparency Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

// nvtrust inspects NVIDIA H100 GPUs through their PCI configuration space
// and the registers in BAR0.

import (
	"errors"
	"os"

	"gopkg.in/alecthomas/kingpin.v2"
	"system-transparency.org/nvtrust/gpu"
	"system-transparency.org/nvtrust/host"
	"system-transparency.org/nvtrust/opts"
	"system-transparency.org/nvtrust/pci"
	"system-transparency.org/nvtrust/stlog"
)

const (
	// Author is the author.
	Author = "the System Transparency Authors"
	// HelpText is the command line help.
	HelpText = "nvtrust probes NVIDIA H100 GPUs through PCI configuration space and BAR0 registers"

	logLevelHelp = "Log level: e 'errors' w 'warn', i 'info', d 'debug'."
)

var goversion string

// isRoot is replaced in tests.
//
//nolint:gochecknoglobals
var isRoot = host.IsRoot

var (
	configFile = kingpin.Flag("config", "JSON configuration file, see opts package for the keys").ExistingFile()
	logLevel   = kingpin.Flag("loglevel", logLevelHelp).Default("info").String()
	logOut     = kingpin.Flag("logout", "Log output: 'stderr' or 'kernel'").Default("stderr").Enum("stderr", "kernel")
	gpuIndex   = kingpin.Flag("gpu", "Index of the GPU among all matching devices").Default("-1").Int()
	gpuBDF     = kingpin.Flag("gpu-bdf", "Select the GPU whose PCI address contains this string, e.g. 41:00").String()
	gpuName    = kingpin.Flag("gpu-name", "Select GPUs whose name contains this string, e.g. 'H100 PCIe'").String()
	sysfsRoot  = kingpin.Flag("sysfs", "Directory of PCI devices. Overrides the configuration file").String()

	list = kingpin.Command("list", "List matching GPUs")

	info = kingpin.Command("info", "Show configuration header, capabilities, BARs and AER status")

	ccMode = kingpin.Command("cc-mode", "Query the confidential computing mode")

	read       = kingpin.Command("read", "Read a BAR0 register")
	readOffset = read.Flag("offset", "Register offset, decimal or 0x prefixed hex").Required().String()
	readWidth  = read.Flag("width", "Access width in bits").Default("32").Enum("8", "16", "32")

	write       = kingpin.Command("write", "Write a BAR0 register")
	writeOffset = write.Flag("offset", "Register offset, decimal or 0x prefixed hex").Required().String()
	writeWidth  = write.Flag("width", "Access width in bits").Default("32").Enum("8", "16", "32")
	writeValue  = write.Flag("value", "Value to write, decimal or 0x prefixed hex").Required().String()

	reset = kingpin.Command("reset", "Reset the GPU through sysfs")

	snp = kingpin.Command("snp", "Check the CPU for AMD SEV-SNP support")
)

func main() {
	kingpin.UsageTemplate(kingpin.CompactUsageTemplate).Version(goversion).Author(Author)
	kingpin.CommandLine.Help = HelpText

	cmd := kingpin.Parse()

	if err := setupLogging(*logOut, *logLevel); err != nil {
		stlog.Warn("logging: %v", err)
	}

	os.Exit(run(cmd))
}

//nolint:cyclop
func run(cmd string) int {
	if cmd == snp.FullCommand() {
		if err := snpCmd(os.Stdout); err != nil {
			stlog.Error("%v", err)

			return 1
		}

		return 0
	}

	if !isRoot() {
		stlog.Error("nvtrust needs root privileges for %s and the full configuration space", opts.DefaultMemFile)

		return 0
	}

	o, err := loadOpts(*configFile, *sysfsRoot)
	if err != nil {
		stlog.Error("load opts: %v", err)

		return 1
	}

	stlog.Debug("sysfs %s, memory %s, iomem %s, device %s:%s, marker %q",
		o.SysfsRoot, o.MemFile, o.IOMemFile, o.VendorID, o.DeviceID, o.IOMemMarker)

	candidates, err := pci.Find(o.SysfsRoot, uint16(o.VendorID), uint16(o.DeviceID),
		filters(*gpuIndex, *gpuBDF, *gpuName)...)
	if err != nil {
		stlog.Error("%v", err)

		return 1
	}

	if len(candidates) == 0 {
		stlog.Error("no matching GPU found below %s", o.SysfsRoot)

		return 0
	}

	if cmd == list.FullCommand() {
		listCmd(os.Stdout, candidates)

		return 0
	}

	if len(candidates) > 1 {
		stlog.Warn("%d GPUs match, using %s", len(candidates), candidates[0].Address)
	}

	if err := deviceCmd(cmd, candidates[0], o); err != nil {
		stlog.Error("%v", err)

		if errors.Is(err, gpu.ErrSanityCheckFailed) {
			stlog.Error("BAR0 of %s does not answer as expected, refusing to touch it", candidates[0].Address)
		}

		return 1
	}

	return 0
}

func deviceCmd(cmd string, c pci.Candidate, o *opts.Opts) error {
	dev, err := openDevice(c, o)
	if err != nil {
		return err
	}
	defer dev.Close()

	switch cmd {
	case info.FullCommand():
		return infoCmd(os.Stdout, c, dev)
	case reset.FullCommand():
		return dev.Reset()
	}

	g, err := openGPU(dev, o)
	if err != nil {
		return err
	}
	defer g.Close()

	switch cmd {
	case ccMode.FullCommand():
		return ccModeCmd(os.Stdout, g)
	case read.FullCommand():
		return readCmd(os.Stdout, g, *readOffset, *readWidth)
	case write.FullCommand():
		return writeCmd(g, *writeOffset, *writeWidth, *writeValue)
	}

	return nil
}
