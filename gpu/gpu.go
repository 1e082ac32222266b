// Copyright 2021 the System Transparency Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package gpu maps BAR0 of an NVIDIA GPU and accesses its registers.
package gpu

import (
	"fmt"
	"os"
	"sync"

	"system-transparency.org/nvtrust/host"
	"system-transparency.org/nvtrust/mmio"
	"system-transparency.org/nvtrust/pci"
	"system-transparency.org/nvtrust/sterror"
	"system-transparency.org/nvtrust/stlog"
)

// Defaults for New.
const (
	DefaultMemFile     = "/dev/mem"
	DefaultIOMemMarker = "nvidia"
)

type config struct {
	memFile   string
	iomemFile string
	marker    string
	log       stlog.Logger
}

// Option configures New.
type Option func(*config)

// WithMemFile sets the physical memory device. BAR0 is mapped from it at
// its physical address.
func WithMemFile(path string) Option {
	return func(c *config) {
		c.memFile = path
	}
}

// WithIOMemFile sets the physical memory listing used by the cross
// mapping check.
func WithIOMemFile(path string) Option {
	return func(c *config) {
		c.iomemFile = path
	}
}

// WithIOMemMarker sets the text identifying the GPU's line in the
// physical memory listing.
func WithIOMemMarker(marker string) Option {
	return func(c *config) {
		c.marker = marker
	}
}

// WithLogger sets the Logger. The default discards.
func WithLogger(l stlog.Logger) Option {
	return func(c *config) {
		c.log = l
	}
}

// GPU gives access to the registers in BAR0. Every GPU holds its own
// mapping and one reference on the pci.Device it was created from.
type GPU struct {
	dev  *pci.Device
	bar0 pci.BAR
	boot uint32
	log  stlog.Logger

	// mu serialises register accesses and Close.
	mu     sync.Mutex
	regs   *mmio.Region
	closed bool
}

// New maps BAR0 of dev. dev must have its BARs initialised.
//
// The boot register is read right after mapping; all-ones means nothing
// answers at that address. If the physical memory listing has a line
// containing the marker, that range is mapped separately and its boot
// register has to match. Both checks fail with ErrSanityCheckFailed.
func New(dev *pci.Device, opts ...Option) (*GPU, error) {
	cfg := config{
		memFile:   DefaultMemFile,
		iomemFile: host.DefaultIOMemFile,
		marker:    DefaultIOMemMarker,
		log:       stlog.Discard(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	bar0 := dev.BAR(0)
	if !bar0.Populated() {
		return nil, sterror.E(ErrScope, ErrOpNew, ErrNoBAR0, dev.Path())
	}

	if err := dev.Acquire(); err != nil {
		return nil, sterror.E(ErrScope, ErrOpNew, err)
	}

	g, err := newGPU(dev, bar0, &cfg)
	if err != nil {
		if rerr := dev.Release(); rerr != nil {
			cfg.log.Warn("release %s: %v", dev.Path(), rerr)
		}

		return nil, err
	}

	return g, nil
}

func newGPU(dev *pci.Device, bar0 pci.BAR, cfg *config) (*GPU, error) {
	mem, err := os.OpenFile(cfg.memFile, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, sterror.E(ErrScope, ErrOpNew, fmt.Errorf("%w: %v", ErrIO, err), cfg.memFile)
	}
	// The mappings stay valid after the file is closed.
	defer mem.Close()

	regs, err := mmio.Map(mem, bar0.Address, bar0.Size)
	if err != nil {
		return nil, sterror.E(ErrScope, ErrOpNew, err, "BAR0")
	}

	g := &GPU{
		dev:  dev,
		bar0: bar0,
		log:  cfg.log,
		regs: regs,
	}

	if err := g.sanityCheck(mem, cfg); err != nil {
		regs.Close()

		return nil, err
	}

	cfg.log.Debug("mapped BAR0 %s of %s, boot0 0x%08x", bar0, dev.Path(), g.boot)

	return g, nil
}

func (g *GPU) sanityCheck(mem *os.File, cfg *config) error {
	boot, err := g.regs.Read32(RegPMCBoot0)
	if err != nil {
		return sterror.E(ErrScope, ErrOpSanity, err)
	}

	if boot == bootUnmapped {
		return sterror.E(ErrScope, ErrOpSanity, ErrSanityCheckFailed,
			fmt.Sprintf("boot0 at 0x%x reads 0x%08x", g.bar0.Address, boot))
	}

	g.boot = boot

	listing, err := os.Open(cfg.iomemFile)
	if err != nil {
		return sterror.E(ErrScope, ErrOpSanity, fmt.Errorf("%w: %v", ErrIO, err), cfg.iomemFile)
	}
	defer listing.Close()

	region, found, err := host.FindIOMem(listing, cfg.marker)
	if err != nil {
		return sterror.E(ErrScope, ErrOpSanity, err, cfg.iomemFile)
	}

	if !found {
		g.log.Info("no %q range in %s, skipping cross mapping check", cfg.marker, cfg.iomemFile)

		return nil
	}

	cross, err := mmio.Map(mem, region.Start, region.Size())
	if err != nil {
		return sterror.E(ErrScope, ErrOpSanity, err, region.String())
	}
	defer cross.Close()

	crossBoot, err := cross.Read32(RegPMCBoot0)
	if err != nil {
		return sterror.E(ErrScope, ErrOpSanity, err, region.String())
	}

	if crossBoot != boot {
		return sterror.E(ErrScope, ErrOpSanity, ErrSanityCheckFailed,
			fmt.Sprintf("boot0 0x%08x via BAR0 at 0x%x, 0x%08x via %s", boot, g.bar0.Address, crossBoot, region))
	}

	return nil
}

// Device returns the PCI device g was created from.
func (g *GPU) Device() *pci.Device {
	return g.dev
}

// BAR0 returns the mapped BAR.
func (g *GPU) BAR0() pci.BAR {
	return g.bar0
}

// Boot decodes the boot register as read during New.
func (g *GPU) Boot() Boot {
	return DecodeBoot(g.boot)
}

// Read8 reads the byte register at off.
func (g *GPU) Read8(off uint64) (uint8, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	v, err := g.regs.Read8(off)
	if err != nil {
		return 0, sterror.E(ErrScope, ErrOpAccess, err)
	}

	return v, nil
}

// Read16 reads the 16 bit register at off.
func (g *GPU) Read16(off uint64) (uint16, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	v, err := g.regs.Read16(off)
	if err != nil {
		return 0, sterror.E(ErrScope, ErrOpAccess, err)
	}

	return v, nil
}

// Read32 reads the 32 bit register at off. Values matching IsErrorValue
// are returned unchanged and logged.
func (g *GPU) Read32(off uint64) (uint32, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	v, err := g.regs.Read32(off)
	if err != nil {
		return 0, sterror.E(ErrScope, ErrOpAccess, err)
	}

	if IsErrorValue(v) {
		g.log.Warn("register 0x%06x reads error pattern 0x%08x", off, v)
	}

	return v, nil
}

// Write8 writes the byte register at off.
func (g *GPU) Write8(off uint64, v uint8) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.regs.Write8(off, v); err != nil {
		return sterror.E(ErrScope, ErrOpAccess, err)
	}

	return nil
}

// Write16 writes the 16 bit register at off.
func (g *GPU) Write16(off uint64, v uint16) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.regs.Write16(off, v); err != nil {
		return sterror.E(ErrScope, ErrOpAccess, err)
	}

	return nil
}

// Write32 writes the 32 bit register at off.
func (g *GPU) Write32(off uint64, v uint32) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.regs.Write32(off, v); err != nil {
		return sterror.E(ErrScope, ErrOpAccess, err)
	}

	return nil
}

// Read reads a register of width bits.
func (g *GPU) Read(off uint64, width int) (uint32, error) {
	switch width {
	case 8:
		v, err := g.Read8(off)

		return uint32(v), err
	case 16:
		v, err := g.Read16(off)

		return uint32(v), err
	case 32:
		return g.Read32(off)
	default:
		return 0, sterror.E(ErrScope, ErrOpAccess, ErrInvalidWidth, fmt.Sprintf("%d", width))
	}
}

// Write writes the low width bits of v. Bits above width must be zero.
func (g *GPU) Write(off uint64, width int, v uint32) error {
	switch width {
	case 8, 16:
		if v>>width != 0 {
			return sterror.E(ErrScope, ErrOpAccess, ErrInvalidWidth,
				fmt.Sprintf("value 0x%x does not fit %d bits", v, width))
		}
	}

	switch width {
	case 8:
		return g.Write8(off, uint8(v))
	case 16:
		return g.Write16(off, uint16(v))
	case 32:
		return g.Write32(off, v)
	default:
		return sterror.E(ErrScope, ErrOpAccess, ErrInvalidWidth, fmt.Sprintf("%d", width))
	}
}

// Close unmaps BAR0 and drops the device reference. Further accesses
// fail with mmio.ErrClosed.
func (g *GPU) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil
	}

	if err := g.regs.Close(); err != nil {
		return sterror.E(ErrScope, ErrOpClose, err)
	}

	g.closed = true

	if err := g.dev.Release(); err != nil {
		return sterror.E(ErrScope, ErrOpClose, err)
	}

	return nil
}
