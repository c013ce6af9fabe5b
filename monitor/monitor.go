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

// Package monitor shows machine status in a terminal and forwards key
// presses to the emulated keyboard controller.
package monitor

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/andreas-jonsson/virtualpc/emulator/peripheral/disk"
	"github.com/andreas-jonsson/virtualpc/emulator/peripheral/keyboard"
	"github.com/andreas-jonsson/virtualpc/emulator/processor"
	"github.com/gdamore/tcell"
)

// UpdateCycles is the number of emulated cycles between screen refreshes.
const UpdateCycles = 1000000

const (
	QuitKey  = tcell.KeyF12
	ResetKey = tcell.KeyF11
)

type snapshot struct {
	stats  processor.Stats
	regs   processor.Registers
	model  processor.Model
	a20    bool
	drives []string
	log    []string
}

// Device is a peripheral that renders a status view of the processor, the
// disk channels and the latest lines of the machine log.
type Device struct {
	screen   tcell.Screen
	log      *LogBuffer
	keyboard *keyboard.Device
	channels []*disk.Device

	resetRequested atomic.Bool
	quit           chan struct{}
	quitOnce       sync.Once
	done           chan struct{}

	p processor.Processor
}

// New creates a monitor that forwards key presses to kbd and reports the
// drives on each channel. Both kbd and log may be nil.
func New(screen tcell.Screen, log *LogBuffer, kbd *keyboard.Device, channels ...*disk.Device) *Device {
	if log == nil {
		log = &LogBuffer{}
	}
	return &Device{
		screen:   screen,
		log:      log,
		keyboard: kbd,
		channels: channels,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start initializes the screen and begins polling terminal events.
func (m *Device) Start() error {
	tcell.SetEncodingFallback(tcell.EncodingFallbackASCII)

	s := m.screen
	if err := s.Init(); err != nil {
		return err
	}

	s.HideCursor()
	s.DisableMouse()
	s.Clear()

	go m.pollEvents()
	return nil
}

// Fini restores the terminal.
func (m *Device) Fini() {
	m.screen.Fini()
	<-m.done
}

// Quit is closed when the user asks to stop the emulator.
func (m *Device) Quit() <-chan struct{} {
	return m.quit
}

func (m *Device) pollEvents() {
	defer close(m.done)

	s := m.screen
	for {
		switch ev := s.PollEvent().(type) {
		case nil:
			return
		case *tcell.EventKey:
			switch ev.Key() {
			case QuitKey:
				m.quitOnce.Do(func() { close(m.quit) })
			case ResetKey:
				m.resetRequested.Store(true)
			default:
				if m.keyboard != nil {
					m.keyboard.SendKeyEvent(ev)
				}
			}
		case *tcell.EventResize:
			s.Sync()
		case *tcell.EventInterrupt:
			if snap, ok := ev.Data().(*snapshot); ok {
				m.render(snap)
			}
		}
	}
}

func (m *Device) Install(p processor.Processor) error {
	m.p = p
	return nil
}

func (m *Device) Name() string {
	return "Terminal Monitor"
}

func (m *Device) Reset() {
	m.resetRequested.Store(false)
}

func (m *Device) UpdateInterval() int {
	return UpdateCycles
}

func (m *Device) Update(int) error {
	if m.resetRequested.Swap(false) {
		m.p.RequestReset()
	}

	snap := &snapshot{
		stats: m.p.GetStats(),
		regs:  *m.p.GetRegisters(),
		model: m.p.GetModel(),
		a20:   m.p.GetMemory().A20(),
		log:   m.log.Lines(),
	}

	for n, ch := range m.channels {
		for slot, pos := range []string{"master", "slave"} {
			if t := ch.DriveType(slot); t != disk.DriveNone {
				snap.drives = append(snap.drives, fmt.Sprintf("ATA%d %s: %s (%s)", n, pos, t, ch.DriveState(slot)))
			}
		}
	}
	return m.screen.PostEvent(tcell.NewEventInterrupt(snap))
}

func (m *Device) render(snap *snapshot) {
	s := m.screen
	s.Clear()

	r := &snap.regs
	header := tcell.StyleDefault.Reverse(true)

	y := 0
	m.print(0, y, header, fmt.Sprintf(" VirtualPC %s  F11 reset  F12 quit ", snap.model))
	y += 2

	m.print(0, y, tcell.StyleDefault, fmt.Sprintf("CS:IP %04X:%04X  SS:SP %04X:%04X  A20 %v", r.CS, r.IP, r.SS, r.SP(), snap.a20))
	y++
	m.print(0, y, tcell.StyleDefault, fmt.Sprintf("AX %04X  BX %04X  CX %04X  DX %04X", r.AX(), r.BX(), r.CX(), r.DX()))
	y++
	m.print(0, y, tcell.StyleDefault, fmt.Sprintf("Instructions %d  Interrupts %d  Decode faults %d", snap.stats.NumInstructions, snap.stats.NumInterrupts, snap.stats.NumDecodeFaults))
	y += 2

	for _, d := range snap.drives {
		m.print(0, y, tcell.StyleDefault, d)
		y++
	}
	y++

	_, height := s.Size()
	lines := snap.log
	if n := height - y; n < len(lines) {
		if n < 0 {
			n = 0
		}
		lines = lines[len(lines)-n:]
	}
	for _, line := range lines {
		m.print(0, y, tcell.StyleDefault.Dim(true), line)
		y++
	}

	s.Show()
}

func (m *Device) print(x, y int, style tcell.Style, str string) {
	for _, c := range str {
		m.screen.SetContent(x, y, c, nil, style)
		x++
	}
}
