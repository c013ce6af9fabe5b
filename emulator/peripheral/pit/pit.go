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

/*
References:
	https://wiki.osdev.org/Programmable_Interval_Timer
	fake86's - i8253.c
*/

// Package pit implements the 8253 interval timer. Time is measured in
// emulated cycles so the timer is deterministic.
package pit

import (
	"log"

	"github.com/andreas-jonsson/virtualpc/emulator/processor"
)

const (
	modeLatchCount = iota
	modeLowByte
	modeHighByte
	modeToggle
)

const (
	Frequency = 1193182

	// DefaultCyclesPerTick approximates a 4.77MHz processor.
	DefaultCyclesPerTick = 4

	portBRefresh = 0x10
	portBOut2    = 0x20
)

type pitChannel struct {
	enabled, toggle bool
	effective       uint32
	counter, data   uint16
	latch           uint16
	latched         bool
	mode            byte
}

// tick advances the counter and reports whether it wrapped.
func (ch *pitChannel) tick(n uint32) bool {
	if !ch.enabled {
		return false
	}
	cur := uint32(ch.counter)
	if cur == 0 {
		cur = 0x10000
	}
	if cur > n {
		ch.counter = uint16(cur - n)
		return false
	}
	rest := (n - cur) % ch.effective
	ch.counter = uint16(ch.effective - rest)
	return true
}

type Device struct {
	IRQ           int
	CyclesPerTick int

	channels [3]pitChannel
	pending  int
	portB    byte
	refresh  bool

	line  int
	p     processor.Processor
	lines processor.InterruptLines
	log   *log.Logger
}

func (m *Device) Install(p processor.Processor) error {
	m.p = p
	m.lines = p.GetInterruptLines()
	m.log = p.GetLogger()
	if m.CyclesPerTick <= 0 {
		m.CyclesPerTick = DefaultCyclesPerTick
	}
	return nil
}

func (m *Device) Name() string {
	return "Programmable Interval Timer (Intel 8253)"
}

func (m *Device) Reset() {
	m.channels = [3]pitChannel{}
	m.pending, m.portB, m.refresh = 0, 0, false

	m.line = processor.NoLine
	if m.lines != nil {
		m.line = m.lines.RequestLine(m, m.IRQ)
	}
	if m.line == processor.NoLine {
		m.log.Printf("%s: %v", m.Name(), processor.ErrNoLine)
	}

	if err := m.p.InstallIODevice(m, 0x40, 0x43); err != nil {
		m.log.Print(err)
	}
	if err := m.p.InstallIODeviceAt(m, 0x61); err != nil {
		m.log.Print(err)
	}
}

func (m *Device) UpdateInterval() int {
	return 64
}

func (m *Device) Update(cycles int) error {
	m.pending += cycles
	ticks := m.pending / m.CyclesPerTick
	m.pending %= m.CyclesPerTick
	if ticks == 0 {
		return nil
	}

	for n := range m.channels {
		if m.channels[n].tick(uint32(ticks)) && n == 0 && m.line != processor.NoLine {
			m.lines.Raise(m.line)
		}
	}
	return nil
}

func (m *Device) GetFrequency(channel int) float64 {
	ch := &m.channels[channel]
	if !ch.enabled {
		return 0
	}
	return Frequency / float64(ch.effective)
}

func (m *Device) In(port uint16) byte {
	switch port {
	case 0x43:
		return 0
	case 0x61:
		// The refresh request bit toggles on every read.
		m.refresh = !m.refresh
		v := m.portB & 0x0F
		if m.refresh {
			v |= portBRefresh
		}
		if m.channels[2].counter > uint16(m.channels[2].effective/2) {
			v |= portBOut2
		}
		return v
	}

	var ret uint16
	ch := &m.channels[port&3]

	value := ch.counter
	if ch.latched {
		value = ch.latch
	}

	if ch.mode == modeLatchCount || ch.mode == modeLowByte || (ch.mode == modeToggle && !ch.toggle) {
		ret = value & 0xFF
		if ch.mode == modeLowByte {
			ch.latched = false
		}
	} else if ch.mode == modeHighByte || (ch.mode == modeToggle && ch.toggle) {
		ret = value >> 8
		ch.latched = false
	}

	if ch.mode == modeLatchCount || ch.mode == modeToggle {
		ch.toggle = !ch.toggle
	}
	return byte(ret)
}

func (m *Device) Out(port uint16, data byte) {
	switch port {
	case 0x40, 0x41, 0x42:
		ch := &m.channels[port&3]
		data16 := uint16(data)

		if ch.mode == modeLowByte || (ch.mode == modeToggle && !ch.toggle) {
			ch.data = (ch.data & 0xFF00) | data16
		} else if ch.mode == modeHighByte || (ch.mode == modeToggle && ch.toggle) {
			ch.data = (ch.data & 0x00FF) | (data16 << 8)
		}

		if ch.data == 0 {
			ch.effective = 65536
		} else {
			ch.effective = uint32(ch.data)
		}

		if ch.mode == modeToggle {
			ch.toggle = !ch.toggle
		}
		if !ch.toggle {
			ch.enabled = true
			ch.counter = uint16(ch.effective)
		}
	case 0x43: // Mode/Command register.
		if data>>6 == 3 {
			return // Read-back is 8254 only.
		}
		ch := &m.channels[data>>6]
		mode := (data >> 4) & 3
		if mode == modeLatchCount {
			ch.latch, ch.latched = ch.counter, true
			ch.toggle = false
			return
		}
		ch.mode, ch.toggle = mode, false
	case 0x61:
		m.portB = data
	}
}
