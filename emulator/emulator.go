/*
Copyright (C) 2019-2020 Andreas T Jonsson

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package emulator assembles a complete machine from a Config and runs it.
package emulator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/andreas-jonsson/virtualpc/emulator/memory"
	"github.com/andreas-jonsson/virtualpc/emulator/peripheral"
	"github.com/andreas-jonsson/virtualpc/emulator/peripheral/disk"
	"github.com/andreas-jonsson/virtualpc/emulator/peripheral/dma"
	"github.com/andreas-jonsson/virtualpc/emulator/peripheral/keyboard"
	"github.com/andreas-jonsson/virtualpc/emulator/peripheral/palette"
	"github.com/andreas-jonsson/virtualpc/emulator/peripheral/pci"
	"github.com/andreas-jonsson/virtualpc/emulator/peripheral/pic"
	"github.com/andreas-jonsson/virtualpc/emulator/peripheral/pit"
	"github.com/andreas-jonsson/virtualpc/emulator/peripheral/ram"
	"github.com/andreas-jonsson/virtualpc/emulator/peripheral/rom"
	"github.com/andreas-jonsson/virtualpc/emulator/processor"
	"github.com/andreas-jonsson/virtualpc/emulator/processor/cpu"
	"github.com/andreas-jonsson/virtualpc/emulator/processor/validator"
	"github.com/spf13/afero"
)

const (
	DefaultBIOSPath = "bios/bios.bin"
	biosEnd         = 0x100000
)

// Drive slots, in channel order.
const (
	PrimaryMaster = iota
	PrimarySlave
	SecondaryMaster
	SecondarySlave
	NumDriveSlots
)

type DriveImage struct {
	Path string
	Kind disk.DriveType
}

type Config struct {
	Model       processor.Model
	FaultPolicy processor.FaultPolicy

	BIOS    string
	RAMSize int

	// ClearRAM starts with zeroed memory instead of seeded noise.
	ClearRAM bool
	Seed     int64

	Drives [NumDriveSlots]DriveImage

	// Trace writes a validator trace to this file when set.
	Trace string

	CyclesPerTick int

	// LimitMIPS throttles execution in wall-clock time. Zero runs
	// unthrottled.
	LimitMIPS float64

	// Peripherals are installed after the built-in devices.
	Peripherals []peripheral.Peripheral

	// Attach is called once the built-in devices exist. The peripherals it
	// returns are installed last and may hold on to the machine's devices.
	Attach func(m *Machine) []peripheral.Peripheral
}

// DefaultConfig returns the configuration used when nothing is
// specified. VPC_BIOS_PATH and VPC_RAM_SIZE (in KB) override the
// defaults.
func DefaultConfig() Config {
	cfg := Config{
		Model:         processor.Model80386,
		BIOS:          DefaultBIOSPath,
		RAMSize:       memory.DefaultSize,
		CyclesPerTick: pit.DefaultCyclesPerTick,
	}

	if p, ok := os.LookupEnv("VPC_BIOS_PATH"); ok {
		cfg.BIOS = p
	}
	if s, ok := os.LookupEnv("VPC_RAM_SIZE"); ok {
		if kb, err := strconv.Atoi(s); err == nil && kb > 0 {
			cfg.RAMSize = kb * 1024
		}
	}
	return cfg
}

type Machine struct {
	Keyboard  *keyboard.Device
	Palette   *palette.Device
	POST      *dma.Device
	Primary   *disk.Device
	Secondary *disk.Device

	cpu   *cpu.CPU
	mem   *memory.Memory
	trace *validator.Recorder
	limit float64
	log   *log.Logger
}

// New builds a machine. Images are opened on fs and the machine is left
// in the reset state.
func New(cfg Config, fs afero.Fs, logger *log.Logger) (*Machine, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	bios, err := afero.ReadFile(fs, cfg.BIOS)
	if err != nil {
		return nil, fmt.Errorf("could not read BIOS: %w", err)
	}
	if len(bios) == 0 || len(bios) > 0x20000 {
		return nil, fmt.Errorf("invalid BIOS size: %d", len(bios))
	}

	m := &Machine{
		Keyboard: &keyboard.Device{IRQ: 1},
		Palette:  &palette.Device{},
		POST:     &dma.Device{},

		// 0x3F6 is alternate status and device control. 0x3F7 is left
		// to the floppy controller's digital input register.
		Primary:   &disk.Device{CommandBase: 0x1F0, ControlBase: 0x3F6, IRQ: 14, SharedPorts: []uint16{0x3F7}},
		Secondary: &disk.Device{CommandBase: 0x170, ControlBase: 0x376, IRQ: 15},
		mem:       memory.New(cfg.RAMSize, logger),
		limit:     cfg.LimitMIPS,
		log:       logger,
	}

	if err := m.insertDrives(cfg, fs); err != nil {
		m.Primary.Close()
		m.Secondary.Close()
		return nil, err
	}

	if cfg.Trace != "" {
		if m.trace, err = validator.Create(fs, cfg.Trace); err != nil {
			m.Primary.Close()
			m.Secondary.Close()
			return nil, fmt.Errorf("could not create trace: %w", err)
		}
	}

	peripherals := []peripheral.Peripheral{
		&ram.Device{ // RAM (needs to go first since it initializes the full memory range)
			Size:  cfg.RAMSize,
			Clear: cfg.ClearRAM,
			Seed:  cfg.Seed,
		},
		&rom.Device{
			RomName: "BIOS",
			Base:    memory.Pointer(biosEnd - len(bios)),
			Reader:  bytes.NewReader(bios),
		},
		&pic.Device{}, // Programmable Interrupt Controller
		&pit.Device{ // Programmable Interval Timer
			IRQ:           0,
			CyclesPerTick: cfg.CyclesPerTick,
		},
		m.Keyboard,  // Keyboard Controller
		m.Primary,   // Primary ATA Channel
		m.Secondary, // Secondary ATA Channel
		&pci.Device{},
		m.Palette,
		m.POST,
	}
	peripherals = append(peripherals, cfg.Peripherals...)
	if cfg.Attach != nil {
		peripherals = append(peripherals, cfg.Attach(m)...)
	}

	var errs []error
	m.cpu, errs = cpu.NewCPU(cpu.Config{
		Model:       cfg.Model,
		FaultPolicy: cfg.FaultPolicy,
		Memory:      m.mem,
		Trace:       m.trace,
		Logger:      logger,
		Peripherals: peripherals,
	})
	if len(errs) > 0 {
		m.Close()
		return nil, errors.Join(errs...)
	}

	m.cpu.Reset()
	return m, nil
}

func (m *Machine) insertDrives(cfg Config, fs afero.Fs) error {
	for slot, d := range cfg.Drives {
		if d.Path == "" {
			continue
		}

		flag := os.O_RDWR
		if d.Kind == disk.DriveCDROM {
			flag = os.O_RDONLY
		}

		fp, err := fs.OpenFile(d.Path, flag, 0644)
		if err != nil {
			return err
		}

		channel := m.Primary
		if slot >= SecondaryMaster {
			channel = m.Secondary
		}
		if err := channel.Insert(slot%2, d.Kind, fp); err != nil {
			fp.Close()
			return fmt.Errorf("%s: %w", d.Path, err)
		}
		m.log.Printf("%s inserted as %s in slot %d", d.Path, d.Kind, slot)
	}
	return nil
}

func (m *Machine) Processor() processor.Processor {
	return m.cpu
}

func (m *Machine) Registers() *processor.Registers {
	return m.cpu.GetRegisters()
}

func (m *Machine) Memory() *memory.Memory {
	return m.mem
}

func (m *Machine) Stats() processor.Stats {
	return m.cpu.GetStats()
}

// Reset performs a system reset at the next instruction boundary. It
// must be called from the goroutine running the machine.
func (m *Machine) Reset() {
	m.cpu.RequestReset()
}

// Step executes one instruction.
func (m *Machine) Step() (int, error) {
	return m.cpu.Step()
}

// Run executes instructions until ctx is done or the processor stops.
// A halted processor keeps stepping while interrupts are enabled so
// devices can wake it up.
func (m *Machine) Run(ctx context.Context) error {
	var limitSpeed int64
	if m.limit > 0 {
		limitSpeed = int64(1000 / m.limit)
	}

	start := time.Now()
	var cycles int64

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		c, err := m.cpu.Step()
		if err != nil {
			if !errors.Is(err, processor.ErrCPUHalt) {
				return err
			}
			if !m.cpu.IF {
				return err
			}
		}

		if limitSpeed > 0 {
			cycles += int64(c)
			if d := time.Duration(limitSpeed*cycles) - time.Since(start); d > time.Millisecond {
				time.Sleep(d)
			}
		}
	}
}

// Close stops the trace and releases every device.
func (m *Machine) Close() error {
	if m.cpu != nil {
		m.cpu.Close()
	} else {
		m.Primary.Close()
		m.Secondary.Close()
	}

	if m.trace != nil {
		if err := m.trace.Close(); err != nil {
			return fmt.Errorf("could not close trace: %w", err)
		}
	}
	return nil
}
