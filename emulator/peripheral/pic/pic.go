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

// Package pic implements a pair of cascaded 8259 programmable interrupt
// controllers and the interrupt line allocator used by devices.
package pic

import (
	"errors"
	"io"
	"log"

	"github.com/andreas-jonsson/virtualpc/emulator/processor"
)

var ErrNoInterrupts = errors.New("no interrupts")

const (
	NumLines    = 16
	CascadeLine = 2

	masterBase = 0x08
	slaveBase  = 0x70
)

type controller struct {
	maskReg, requestReg, serviceReg,
	icwStep, readMode byte

	icw  [5]byte
	base byte
}

func (c *controller) reset(base byte) {
	*c = controller{base: base}
}

func (c *controller) autoEOI() bool {
	return c.icw[4]&2 != 0
}

// pending returns the highest priority request that is unmasked and not
// blocked by an in-service request of equal or higher priority.
func (c *controller) pending(requests byte) int {
	has := requests & ^c.maskReg
	for i := 0; i < 8; i++ {
		if c.serviceReg&(1<<i) != 0 {
			return -1
		}
		if has&(1<<i) != 0 {
			return i
		}
	}
	return -1
}

func (c *controller) acknowledge(i int) {
	c.requestReg &^= 1 << i
	if !c.autoEOI() {
		c.serviceReg |= 1 << i
	}
}

func (c *controller) read(command bool) byte {
	if !command {
		return c.maskReg
	}
	if c.readMode == 0 {
		return c.requestReg
	}
	return c.serviceReg
}

func (c *controller) write(command bool, data byte) {
	if command {
		switch {
		case data&0x10 != 0: // ICW1
			c.icw = [5]byte{}
			c.icw[1] = data
			c.icwStep = 2
			c.maskReg, c.readMode = 0, 0
		case data&0x18 == 0x08: // OCW3
			if data&2 != 0 {
				c.readMode = data & 1
			}
		case data&0x20 != 0: // OCW2 EOI
			if data&0x40 != 0 {
				c.serviceReg &^= 1 << (data & 7)
				return
			}
			for i := 0; i < 8; i++ {
				if c.serviceReg&(1<<i) != 0 {
					c.serviceReg &^= 1 << i
					return
				}
			}
		}
		return
	}

	switch c.icwStep {
	case 2:
		c.icw[2] = data
		c.base = data & 0xF8
		if c.icw[1]&2 != 0 { // Single mode, no ICW3.
			c.icwStep = 4
		} else {
			c.icwStep = 3
		}
		if c.icwStep == 4 && c.icw[1]&1 == 0 {
			c.icwStep = 0
		}
	case 3:
		c.icw[3] = data
		c.icwStep = 4
		if c.icw[1]&1 == 0 {
			c.icwStep = 0
		}
	case 4:
		c.icw[4] = data
		c.icwStep = 0
	default:
		c.maskReg = data
	}
}

type Device struct {
	master, slave controller
	owners        [NumLines]interface{}

	p   processor.Processor
	log *log.Logger
}

func (m *Device) Install(p processor.Processor) error {
	m.p = p
	m.log = p.GetLogger()
	return nil
}

func (m *Device) Name() string {
	return "Programmable Interrupt Controller (Intel 8259)"
}

// Reset restores power-on state and releases every allocated line.
func (m *Device) Reset() {
	if m.log == nil {
		m.log = log.New(io.Discard, "", 0)
	}
	m.master.reset(masterBase)
	m.slave.reset(slaveBase)
	m.owners = [NumLines]interface{}{}

	if m.p != nil {
		if err := m.p.InstallIODeviceAt(m, 0x20, 0x21, 0xA0, 0xA1); err != nil {
			m.log.Print(err)
		}
	}
}

func (m *Device) UpdateInterval() int {
	return 0
}

func (m *Device) Update(int) error {
	return nil
}

// RequestLine allocates a line for owner. Any lines the owner already
// holds are released first. The preferred line is used when it is free,
// otherwise the lowest free line. The cascade line is never handed out.
func (m *Device) RequestLine(owner interface{}, preferred int) int {
	m.ReleaseLines(owner)

	free := func(n int) bool {
		return n >= 0 && n < NumLines && n != CascadeLine && m.owners[n] == nil
	}

	line := processor.NoLine
	if free(preferred) {
		line = preferred
	} else {
		for n := 0; n < NumLines; n++ {
			if free(n) {
				line = n
				break
			}
		}
	}

	if line == processor.NoLine {
		m.log.Print("out of interrupt lines")
		return line
	}
	m.owners[line] = owner
	return line
}

func (m *Device) ReleaseLines(owner interface{}) {
	if owner == nil {
		return
	}
	for n, o := range m.owners {
		if o == owner {
			m.owners[n] = nil
			m.Clear(n)
		}
	}
}

// Owner returns the owner of line or nil.
func (m *Device) Owner(line int) interface{} {
	if line < 0 || line >= NumLines {
		return nil
	}
	return m.owners[line]
}

func (m *Device) Raise(line int) {
	switch {
	case line < 0 || line >= NumLines:
		m.log.Printf("invalid interrupt line: %d", line)
	case line < 8:
		m.master.requestReg |= 1 << line
	default:
		m.slave.requestReg |= 1 << (line - 8)
	}
}

func (m *Device) Clear(line int) {
	switch {
	case line < 0 || line >= NumLines:
	case line < 8:
		m.master.requestReg &^= 1 << line
	default:
		m.slave.requestReg &^= 1 << (line - 8)
	}
}

// GetInterrupt returns the vector of the highest priority pending line and
// marks it in service.
func (m *Device) GetInterrupt() (int, error) {
	requests := m.master.requestReg
	if m.slave.pending(m.slave.requestReg) >= 0 {
		requests |= 1 << CascadeLine
	}

	i := m.master.pending(requests)
	if i < 0 {
		return 0, ErrNoInterrupts
	}

	m.master.acknowledge(i)
	if i != CascadeLine {
		return int(m.master.base) + i, nil
	}

	j := m.slave.pending(m.slave.requestReg)
	m.slave.acknowledge(j)
	return int(m.slave.base) + j, nil
}

func (m *Device) In(port uint16) byte {
	switch port {
	case 0x20, 0x21:
		return m.master.read(port == 0x20)
	case 0xA0, 0xA1:
		return m.slave.read(port == 0xA0)
	}
	return 0xFF
}

func (m *Device) Out(port uint16, data byte) {
	switch port {
	case 0x20, 0x21:
		m.master.write(port == 0x20, data)
	case 0xA0, 0xA1:
		m.slave.write(port == 0xA0, data)
	}
}
