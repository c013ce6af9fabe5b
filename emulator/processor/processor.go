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

package processor

import (
	"errors"
	"fmt"
	"log"

	"github.com/andreas-jonsson/virtualpc/emulator/memory"
)

// NoLine is returned by RequestLine when every interrupt line is taken.
const NoLine = -1

type Model int

const (
	Model8086 Model = iota
	Model80186
	Model80386
)

func (m Model) String() string {
	switch m {
	case Model8086:
		return "8086"
	case Model80186:
		return "80186"
	case Model80386:
		return "80386"
	default:
		return fmt.Sprintf("Model(%d)", int(m))
	}
}

func ParseModel(s string) (Model, error) {
	switch s {
	case "8086", "8088":
		return Model8086, nil
	case "80186", "186", "v20":
		return Model80186, nil
	case "80386", "386":
		return Model80386, nil
	}
	return Model8086, fmt.Errorf("unknown CPU model: %q", s)
}

// FaultPolicy decides what happens when the decoder hits an encoding it
// cannot execute.
type FaultPolicy int

const (
	FaultHalt FaultPolicy = iota
	FaultInterrupt
)

type Stats struct {
	NumInterrupts   uint32
	NumInstructions uint64
	NumDecodeFaults uint64
	RX, TX          uint64
	NOP             uint64
}

var (
	ErrCPUHalt             = errors.New("CPU HALT")
	ErrInterruptNotHandled = errors.New("interrupt not handled")
	ErrNoLine              = errors.New("no free interrupt line")
)

// DecodeFault reports an opcode that is unimplemented or reserved for the
// selected CPU model.
type DecodeFault struct {
	Opcode byte
	Ext    byte
	CS, IP uint16
	Reason string
}

func (f *DecodeFault) Error() string {
	if f.Opcode == 0x0F {
		return fmt.Sprintf("invalid opcode 0x0F 0x%X at %04X:%04X: %s", f.Ext, f.CS, f.IP, f.Reason)
	}
	return fmt.Sprintf("invalid opcode 0x%X at %04X:%04X: %s", f.Opcode, f.CS, f.IP, f.Reason)
}

// PortAccessFault describes an access a device could not service.
type PortAccessFault struct {
	Port   uint16
	Write  bool
	Device string
}

func (f *PortAccessFault) Error() string {
	dir := "read from"
	if f.Write {
		dir = "write to"
	}
	if f.Device == "" {
		return fmt.Sprintf("%s unmapped IO port: 0x%X", dir, f.Port)
	}
	return fmt.Sprintf("%s: unsupported %s IO port: 0x%X", f.Device, dir, f.Port)
}

type Debug interface {
	Break()
	GetStats() Stats
}

type InterruptHandler interface {
	HandleInterrupt(n int) error
}

// InterruptController is the CPU side of the interrupt fabric.
type InterruptController interface {
	GetInterrupt() (int, error)
}

// InterruptLines is the device side of the interrupt fabric.
type InterruptLines interface {
	RequestLine(owner interface{}, preferred int) int
	ReleaseLines(owner interface{})
	Raise(line int)
	Clear(line int)
}

type Processor interface {
	Debug

	InByte(port uint16) byte
	OutByte(port uint16, data byte)
	InWord(port uint16) uint16
	OutWord(port uint16, data uint16)
	InDoubleWord(port uint16) uint32
	OutDoubleWord(port uint16, data uint32)

	ReadByte(addr memory.Pointer) byte
	WriteByte(addr memory.Pointer, data byte)
	ReadWord(addr memory.Pointer) uint16
	WriteWord(addr memory.Pointer, data uint16)

	GetRegisters() *Registers
	GetModel() Model
	GetMemory() *memory.Memory
	GetLogger() *log.Logger

	GetMappedIODevice(port uint16) memory.IO
	InstallIODevice(device memory.IO, from, to uint16) error
	InstallIODeviceAt(device memory.IO, port ...uint16) error
	UninstallIODevice(device memory.IO)

	GetInterruptController() InterruptController
	GetInterruptLines() InterruptLines
	InstallInterruptHandler(num int, handler InterruptHandler) error

	RequestReset()
}
