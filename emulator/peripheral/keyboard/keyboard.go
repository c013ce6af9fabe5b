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

// Package keyboard implements the 8042 keyboard controller. Besides the
// scancode input buffer it drives the A20 gate and the system reset line.
package keyboard

import (
	"errors"
	"log"

	"github.com/andreas-jonsson/virtualpc/emulator/memory"
	"github.com/andreas-jonsson/virtualpc/emulator/processor"
)

const MaxEvents = 64

const (
	statusOutputFull = 0x01
	statusSystem     = 0x04
	statusCommand    = 0x08
	statusUnlocked   = 0x10

	commandByteIRQ     = 0x01
	commandByteSystem  = 0x04
	commandByteDisable = 0x10

	outputPortReset = 0x01
	outputPortA20   = 0x02

	defaultCommandByte = 0x45
)

type Device struct {
	IRQ int

	output     byte
	outputFull bool
	status     byte

	commandByte, outputPort, portA byte
	pending                        byte
	keyboardCmd                    byte
	queue                          []byte

	events chan Scancode
	line   int

	p     processor.Processor
	mem   *memory.Memory
	lines processor.InterruptLines
	log   *log.Logger
}

func (m *Device) Install(p processor.Processor) error {
	m.p = p
	m.mem = p.GetMemory()
	m.lines = p.GetInterruptLines()
	m.log = p.GetLogger()
	m.events = make(chan Scancode, MaxEvents)
	m.line = processor.NoLine
	return nil
}

func (m *Device) Name() string {
	return "Keyboard Controller (Intel 8042)"
}

func (m *Device) Reset() {
	m.output, m.outputFull = 0, false
	m.status = statusUnlocked
	m.commandByte = defaultCommandByte
	m.outputPort = outputPortReset
	m.portA = 0
	m.pending, m.keyboardCmd = 0, 0
	m.queue = m.queue[:0]
	m.mem.SetA20(false)

	for done := false; !done; {
		select {
		case <-m.events:
		default:
			done = true
		}
	}

	m.line = processor.NoLine
	if m.lines != nil {
		m.line = m.lines.RequestLine(m, m.IRQ)
	}
	if m.line == processor.NoLine {
		m.log.Printf("%s: %v", m.Name(), processor.ErrNoLine)
	}

	if err := m.p.InstallIODeviceAt(m, 0x60, 0x64, 0x92); err != nil {
		m.log.Print(err)
	}
}

func (m *Device) UpdateInterval() int {
	return 1000
}

// Update moves the next response or scancode into the output buffer.
func (m *Device) Update(int) error {
	if m.outputFull {
		return nil
	}

	if len(m.queue) > 0 {
		m.load(m.queue[0])
		m.queue = m.queue[1:]
		return nil
	}

	if m.commandByte&commandByteDisable != 0 {
		return nil
	}
	select {
	case code := <-m.events:
		m.load(byte(code))
	default:
	}
	return nil
}

func (m *Device) load(v byte) {
	m.output, m.outputFull = v, true
	if m.commandByte&commandByteIRQ != 0 && m.line != processor.NoLine {
		m.lines.Raise(m.line)
	}
}

// Push queues a scancode from the host. It is safe to call from another
// goroutine.
func (m *Device) Push(code Scancode) error {
	select {
	case m.events <- code:
		return nil
	default:
		return errors.New("event queue is full")
	}
}

func (m *Device) respond(v ...byte) {
	m.queue = append(m.queue, v...)
}

func (m *Device) setA20(enabled bool) {
	m.mem.SetA20(enabled)
	if enabled {
		m.outputPort |= outputPortA20
		m.portA |= outputPortA20
	} else {
		m.outputPort &^= outputPortA20
		m.portA &^= outputPortA20
	}
}

func (m *Device) reset() {
	m.log.Print("reset requested by the keyboard controller")
	m.p.RequestReset()
}

func (m *Device) In(port uint16) byte {
	switch port {
	case 0x60:
		if m.outputFull && m.line != processor.NoLine {
			m.lines.Clear(m.line)
		}
		m.outputFull = false
		return m.output
	case 0x64:
		s := m.status
		if m.outputFull {
			s |= statusOutputFull
		}
		return s
	case 0x92:
		v := m.portA &^ outputPortA20
		if m.mem.A20() {
			v |= outputPortA20
		}
		return v
	}
	return 0xFF
}

func (m *Device) Out(port uint16, data byte) {
	switch port {
	case 0x60:
		m.status &^= statusCommand
		m.writeData(data)
	case 0x64:
		m.status |= statusCommand
		m.controllerCommand(data)
	case 0x92:
		m.portA = data
		m.setA20(data&outputPortA20 != 0)
		if data&outputPortReset != 0 {
			m.reset()
		}
	}
}

func (m *Device) controllerCommand(cmd byte) {
	switch cmd {
	case 0x20:
		m.respond(m.commandByte)
	case 0x60, 0xD1:
		m.pending = cmd
	case 0xAA:
		m.status |= statusSystem
		m.respond(0x55)
	case 0xAB:
		m.respond(0x00)
	case 0xAD:
		m.commandByte |= commandByteDisable
	case 0xAE:
		m.commandByte &^= commandByteDisable
	case 0xD0:
		m.respond(m.outputPort)
	case 0xDD:
		m.setA20(false)
	case 0xDF:
		m.setA20(true)
	case 0xFE:
		m.reset()
	default:
		if cmd&0xF0 == 0xF0 {
			// Pulse output lines. Bit 0 low is the reset line.
			if cmd&1 == 0 {
				m.reset()
			}
			return
		}
		m.log.Printf("%s: unsupported command 0x%X", m.Name(), cmd)
	}
}

func (m *Device) writeData(data byte) {
	switch m.pending {
	case 0x60:
		m.pending = 0
		m.commandByte = data
		if data&commandByteSystem != 0 {
			m.status |= statusSystem
		} else {
			m.status &^= statusSystem
		}
		return
	case 0xD1:
		m.pending = 0
		m.outputPort = data
		m.setA20(data&outputPortA20 != 0)
		if data&outputPortReset == 0 {
			m.reset()
		}
		return
	}

	// Keyboard commands.
	if m.keyboardCmd != 0 {
		m.keyboardCmd = 0
		m.respond(0xFA)
		return
	}

	switch data {
	case 0xED, 0xF3: // LEDs and typematic rate take a parameter.
		m.keyboardCmd = data
		m.respond(0xFA)
	case 0xEE:
		m.respond(0xEE)
	case 0xF2:
		m.respond(0xFA, 0xAB, 0x83)
	case 0xFF:
		m.respond(0xFA, 0xAA)
	default:
		m.respond(0xFA)
	}
}

type Scancode byte

const KeyUpMask Scancode = 0x80

const (
	ScanInvalid Scancode = iota
	ScanEscape
	Scan1
	Scan2
	Scan3
	Scan4
	Scan5
	Scan6
	Scan7
	Scan8
	Scan9
	Scan0
	ScanMinus
	ScanEqual
	ScanBackspace
	ScanTab
	ScanQ
	ScanW
	ScanE
	ScanR
	ScanT
	ScanY
	ScanU
	ScanI
	ScanO
	ScanP
	ScanLBracket
	ScanRBracket
	ScanEnter
	ScanControl
	ScanA
	ScanS
	ScanD
	ScanF
	ScanG
	ScanH
	ScanJ
	ScanK
	ScanL
	ScanSemicolon
	ScanQuote
	ScanBackquote
	ScanLShift
	ScanBackslash
	ScanZ
	ScanX
	ScanC
	ScanV
	ScanB
	ScanN
	ScanM
	ScanComma
	ScanPeriod
	ScanSlash
	ScanRShift
	ScanPrint
	ScanAlt
	ScanSpace
	ScanCapslock
	ScanF1
	ScanF2
	ScanF3
	ScanF4
	ScanF5
	ScanF6
	ScanF7
	ScanF8
	ScanF9
	ScanF10
	ScanNumlock
	ScanScrlock
	ScanKPHome
	ScanKPUp
	ScanKPPageup
	ScanKPMinus
	ScanKPLeft
	ScanKP5
	ScanKPRight
	ScanKPPlus
	ScanKPEnd
	ScanKPDown
	ScanKPPagedown
	ScanKPInsert
	ScanKPDelete
)
