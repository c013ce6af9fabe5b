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

package cpu

import (
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/andreas-jonsson/virtualpc/emulator/bus"
	"github.com/andreas-jonsson/virtualpc/emulator/memory"
	"github.com/andreas-jonsson/virtualpc/emulator/peripheral"
	"github.com/andreas-jonsson/virtualpc/emulator/processor"
	"github.com/andreas-jonsson/virtualpc/emulator/processor/validator"
)

type Config struct {
	Model       processor.Model
	FaultPolicy processor.FaultPolicy

	Memory *memory.Memory
	Bus    *bus.Bus
	Trace  *validator.Recorder
	Logger *log.Logger

	Peripherals []peripheral.Peripheral
}

type CPU struct {
	processor.Registers

	model  processor.Model
	policy processor.FaultPolicy

	trap, halted, resetPending bool

	stats        processor.Stats
	peripherals  []peripheral.Peripheral
	intervals    []int
	elapsed      []int
	pic          processor.InterruptController
	lines        processor.InterruptLines
	linesDevice  peripheral.Peripheral
	interceptors [0x100]processor.InterruptHandler

	mem   *memory.Memory
	bus   *bus.Bus
	trace *validator.Recorder
	log   *log.Logger
}

// NewCPU creates a processor and installs the peripherals. Installation
// errors are collected and returned but do not stop the other devices
// from being installed.
func NewCPU(cfg Config) (*CPU, []error) {
	p := &CPU{
		model:       cfg.Model,
		policy:      cfg.FaultPolicy,
		peripherals: cfg.Peripherals,
		mem:         cfg.Memory,
		bus:         cfg.Bus,
		trace:       cfg.Trace,
		log:         cfg.Logger,
	}

	if p.log == nil {
		p.log = log.New(io.Discard, "", 0)
	}
	if p.mem == nil {
		p.mem = memory.New(memory.DefaultSize, p.log)
	}
	if p.bus == nil {
		p.bus = bus.New(p.log)
	}

	p.intervals = make([]int, len(p.peripherals))
	p.elapsed = make([]int, len(p.peripherals))

	return p, p.installPeripherals()
}

func (p *CPU) installPeripherals() []error {
	for _, d := range p.peripherals {
		if pic, ok := d.(processor.InterruptController); ok && p.pic == nil {
			p.pic = pic
		}
		if lines, ok := d.(processor.InterruptLines); ok && p.lines == nil {
			p.lines, p.linesDevice = lines, d
		}
	}
	if p.pic == nil {
		p.log.Print("No interrupt controller detected!")
	}

	var errs []error
	for _, d := range p.peripherals {
		if err := d.Install(p); err != nil {
			errs = append(errs, fmt.Errorf("failed to install %s: %w", d.Name(), err))
		}
	}
	return errs
}

func (p *CPU) Close() {
	for _, d := range p.peripherals {
		if cd, b := d.(peripheral.PeripheralCloser); b {
			if err := cd.Close(); err != nil {
				p.log.Print("Failed to close peripheral: ", err)
			}
		}
	}
}

func (p *CPU) Break() {
	p.Debug = true
}

func (p *CPU) GetStats() processor.Stats {
	s := p.stats
	bs := p.bus.GetStats()
	s.RX += bs.RX
	s.TX += bs.TX
	return s
}

func (p *CPU) GetModel() processor.Model {
	return p.model
}

func (p *CPU) GetMemory() *memory.Memory {
	return p.mem
}

func (p *CPU) GetBus() *bus.Bus {
	return p.bus
}

func (p *CPU) GetLogger() *log.Logger {
	return p.log
}

func (p *CPU) GetInterruptController() processor.InterruptController {
	return p.pic
}

func (p *CPU) GetInterruptLines() processor.InterruptLines {
	return p.lines
}

func (p *CPU) GetRegisters() *processor.Registers {
	return &p.Registers
}

func (p *CPU) Halted() bool {
	return p.halted
}

// RequestReset schedules a system reset at the next instruction boundary.
func (p *CPU) RequestReset() {
	p.resetPending = true
}

// Reset puts the processor at the reset vector and resets every device.
// The line allocator is reset first so devices can request fresh lines.
func (p *CPU) Reset() {
	p.log.Print("CPU reset!")

	p.Registers.Reset()
	p.trap, p.halted, p.resetPending = false, false, false

	if p.linesDevice != nil {
		p.linesDevice.Reset()
	}
	for n, d := range p.peripherals {
		if d != p.linesDevice {
			d.Reset()
		}
		p.intervals[n] = d.UpdateInterval()
		p.elapsed[n] = 0
	}
}

// Step executes one instruction and services devices that are due. The
// returned cycle count is the emulated time consumed.
func (p *CPU) Step() (int, error) {
	if p.resetPending {
		p.Reset()
	}

	if p.trap {
		p.doInterrupt(1)
	}
	p.trap = p.TF

	if !p.trap && p.IF && p.pic != nil {
		if n, err := p.pic.GetInterrupt(); err == nil {
			p.doInterrupt(n)
		}
	}

	var (
		cycles = 1
		err    error
	)
	if p.halted {
		err = processor.ErrCPUHalt
	} else {
		cycles, err = p.execute()
	}

	if uerr := p.updatePeripherals(cycles); uerr != nil {
		return cycles, uerr
	}
	return cycles, err
}

func (p *CPU) updatePeripherals(cycles int) error {
	for n, d := range p.peripherals {
		interval := p.intervals[n]
		if interval <= 0 {
			continue
		}

		p.elapsed[n] += cycles
		if p.elapsed[n] < interval {
			continue
		}

		elapsed := p.elapsed[n]
		p.elapsed[n] = 0
		if err := d.Update(elapsed); err != nil {
			return fmt.Errorf("%s: %w", d.Name(), err)
		}
	}
	return nil
}

func (p *CPU) InstallInterruptHandler(num int, handler processor.InterruptHandler) error {
	if num < 0 || num > 0xFF {
		return errors.New("invalid interrupt number")
	}
	p.interceptors[num] = handler
	return nil
}

func (p *CPU) GetMappedIODevice(port uint16) memory.IO {
	return p.bus.Owner(port)
}

func (p *CPU) InstallIODevice(device memory.IO, from, to uint16) error {
	return p.bus.InstallRange(device, from, to)
}

func (p *CPU) InstallIODeviceAt(device memory.IO, port ...uint16) error {
	return p.bus.Install(device, port...)
}

func (p *CPU) UninstallIODevice(device memory.IO) {
	p.bus.Uninstall(device)
}

func (p *CPU) InByte(port uint16) byte {
	return p.bus.InByte(port)
}

func (p *CPU) OutByte(port uint16, data byte) {
	p.bus.OutByte(port, data)
}

func (p *CPU) InWord(port uint16) uint16 {
	return p.bus.InWord(port)
}

func (p *CPU) OutWord(port uint16, data uint16) {
	p.bus.OutWord(port, data)
}

func (p *CPU) InDoubleWord(port uint16) uint32 {
	return p.bus.InDoubleWord(port)
}

func (p *CPU) OutDoubleWord(port uint16, data uint32) {
	p.bus.OutDoubleWord(port, data)
}

func (p *CPU) ReadByte(addr memory.Pointer) byte {
	p.stats.RX++
	v := p.mem.ReadByte(addr)
	p.trace.ReadByte(uint32(p.mem.Resolve(addr)), v)
	return v
}

func (p *CPU) WriteByte(addr memory.Pointer, data byte) {
	p.stats.TX++
	p.trace.WriteByte(uint32(p.mem.Resolve(addr)), data)
	p.mem.WriteByte(addr, data)
}

func (p *CPU) ReadWord(addr memory.Pointer) uint16 {
	return uint16(p.ReadByte(addr)) | (uint16(p.ReadByte(addr+1)) << 8)
}

func (p *CPU) WriteWord(addr memory.Pointer, data uint16) {
	p.WriteByte(addr, byte(data&0xFF))
	p.WriteByte(addr+1, byte(data>>8))
}

// readWordAt reads through a segment. Offsets wrap within the segment
// so a word at offset 0xFFFF takes its high byte from offset zero.
func (p *CPU) readWordAt(addr memory.Address) uint16 {
	return uint16(p.ReadByte(addr.Pointer())) | uint16(p.ReadByte(addr.AddInt(1).Pointer()))<<8
}

func (p *CPU) writeWordAt(addr memory.Address, data uint16) {
	p.WriteByte(addr.Pointer(), byte(data))
	p.WriteByte(addr.AddInt(1).Pointer(), byte(data>>8))
}

func (p *CPU) readDoubleWordAt(addr memory.Address) uint32 {
	return uint32(p.readWordAt(addr)) | uint32(p.readWordAt(addr.AddInt(2)))<<16
}

func (p *CPU) writeDoubleWordAt(addr memory.Address, data uint32) {
	p.writeWordAt(addr, uint16(data))
	p.writeWordAt(addr.AddInt(2), uint16(data>>16))
}
