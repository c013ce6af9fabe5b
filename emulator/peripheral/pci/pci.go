/*
Copyright (c) 2019-2021 Andreas T Jonsson

This software is provided 'as-is', without any express or implied
warranty. In no event will the authors be held liable for any damages
arising from the use of this software.

Permission is granted to anyone to use this software for any purpose,
including commercial applications, and to alter it and redistribute it
freely, subject to the following restrictions:

1. The origin of this software must not be misrepresented; you must not
   claim that you wrote the original software. If you use this software
   in a product, an acknowledgment in the product documentation would be
   appreciated but is not required.
2. Altered source versions must be plainly marked as such, and must not be
   misrepresented as being the original software.
3. This notice may not be removed or altered from any source distribution.
*/

// Package pci implements configuration mechanism #1 with a single host
// bridge. Every other device number reads as absent.
package pci

import (
	"log"

	"github.com/andreas-jonsson/virtualpc/emulator/peripheral"
	"github.com/andreas-jonsson/virtualpc/emulator/processor"
)

const (
	addressPort = 0xCF8
	resetPort   = 0xCF9
	dataPort    = 0xCFC

	enableBit = 0x80000000
)

const (
	VendorIntel      = 0x8086
	DeviceHostBridge = 0x1237
)

type Device struct {
	peripheral.NullDevice

	address uint32
	reset   byte
	config  [0x100]byte

	p   processor.Processor
	log *log.Logger
}

func (m *Device) Install(p processor.Processor) error {
	m.p = p
	m.log = p.GetLogger()
	return nil
}

func (m *Device) Name() string {
	return "PCI Host Bridge"
}

func (m *Device) Reset() {
	m.address, m.reset = 0, 0

	c := &m.config
	*c = [0x100]byte{}
	c[0x00], c[0x01] = byte(VendorIntel&0xFF), byte(VendorIntel>>8)
	c[0x02], c[0x03] = byte(DeviceHostBridge&0xFF), byte(DeviceHostBridge>>8)
	c[0x04] = 0x06 // Memory and bus master enabled
	c[0x06], c[0x07] = 0x00, 0x02
	c[0x08] = 0x02 // Revision
	c[0x0A] = 0x00 // Subclass: host bridge
	c[0x0B] = 0x06 // Class: bridge
	c[0x0E] = 0x00 // Header type

	if err := m.p.InstallIODevice(m, addressPort, dataPort+3); err != nil {
		m.log.Print(err)
	}
}

// selected returns the configuration register offset or false if the
// access does not hit the host bridge.
func (m *Device) selected() (int, bool) {
	if m.address&enableBit == 0 {
		return 0, false
	}
	bus, dev, fn := (m.address>>16)&0xFF, (m.address>>11)&0x1F, (m.address>>8)&7
	if bus != 0 || dev != 0 || fn != 0 {
		return 0, false
	}
	return int(m.address & 0xFC), true
}

func (m *Device) readConfig(offset int) byte {
	reg, ok := m.selected()
	if !ok || reg+offset >= len(m.config) {
		return 0xFF
	}
	return m.config[reg+offset]
}

func (m *Device) writeConfig(offset int, data byte) {
	reg, ok := m.selected()
	if !ok {
		return
	}
	// Only the command register is writable.
	if r := reg + offset; r == 0x04 || r == 0x05 {
		m.config[r] = data
	}
}

func (m *Device) In(port uint16) byte {
	switch {
	case port > dataPort+3:
		return 0xFF
	case port >= dataPort:
		return m.readConfig(int(port - dataPort))
	case port == resetPort:
		return m.reset
	default:
		return byte(m.address >> (8 * (port - addressPort)))
	}
}

func (m *Device) Out(port uint16, data byte) {
	switch {
	case port > dataPort+3:
		return
	case port >= dataPort:
		m.writeConfig(int(port-dataPort), data)
	case port == resetPort:
		// A rising reset bit with the hard reset bit set resets the system.
		if data&4 != 0 && m.reset&4 == 0 && data&2 != 0 {
			m.p.RequestReset()
		}
		m.reset = data & 0x0E
	default:
		m.log.Print(&processor.PortAccessFault{Port: port, Write: true, Device: m.Name()})
	}
}

// InDoubleWord handles aligned accesses directly. Unaligned accesses
// are split on the bus since they may reach past the bridge.
func (m *Device) InDoubleWord(port uint16) uint32 {
	switch port {
	case addressPort:
		return m.address
	case dataPort:
		var v uint32
		for i := 0; i < 4; i++ {
			v |= uint32(m.readConfig(i)) << (8 * i)
		}
		return v
	}

	var v uint32
	for i := uint16(0); i < 4; i++ {
		v |= uint32(m.p.InByte(port+i)) << (8 * i)
	}
	return v
}

func (m *Device) OutDoubleWord(port uint16, data uint32) {
	switch port {
	case addressPort:
		m.address = data & 0x80FFFFFC
		return
	case dataPort:
		for i := 0; i < 4; i++ {
			m.writeConfig(i, byte(data>>(8*i)))
		}
		return
	}

	for i := uint16(0); i < 4; i++ {
		m.p.OutByte(port+i, byte(data>>(8*i)))
	}
}
