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

package memory

import (
	"io"
	"log"
)

const (
	MinSize     = 0x100000  // 1MB
	DefaultSize = 0x1000000 // 16MB

	wrapMask = 0xFFFFF
)

type region struct {
	from, to Pointer
}

// Memory is the emulated physical address space.
type Memory struct {
	mem      []byte
	a20      bool
	readOnly []region

	watch      Pointer
	watchArmed bool
	watchHits  uint64

	log *log.Logger
}

// New creates an address space of the requested size. Sizes below
// one megabyte are raised to MinSize.
func New(size int, logger *log.Logger) *Memory {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	m := &Memory{log: logger}
	m.SetSize(size)
	return m
}

func (m *Memory) SetSize(size int) {
	if size < MinSize {
		size = MinSize
	}
	mem := make([]byte, size)
	copy(mem, m.mem)
	m.mem = mem
}

func (m *Memory) Size() int {
	return len(m.mem)
}

// SetA20 toggles the address-line gate. With the gate disabled every
// address wraps at 1MB like the original 8088 bus.
func (m *Memory) SetA20(enabled bool) {
	if enabled != m.a20 {
		m.log.Print("A20 gate enabled: ", enabled)
	}
	m.a20 = enabled
}

func (m *Memory) A20() bool {
	return m.a20
}

func (m *Memory) Resolve(p Pointer) Pointer {
	if !m.a20 {
		return p & wrapMask
	}
	return p
}

// Protect marks a resolved range as read-only.
func (m *Memory) Protect(from, to Pointer) {
	m.readOnly = append(m.readOnly, region{from, to})
}

func (m *Memory) Watch(p Pointer) {
	m.watch = p
	m.watchArmed = true
	m.watchHits = 0
}

func (m *Memory) Unwatch() {
	m.watchArmed = false
}

func (m *Memory) WatchHits() uint64 {
	return m.watchHits
}

func (m *Memory) trace(p Pointer, write bool, data byte) {
	m.watchHits++
	if write {
		m.log.Printf("watch: write %v <- 0x%X", p, data)
	} else {
		m.log.Printf("watch: read %v -> 0x%X", p, data)
	}
}

func (m *Memory) isReadOnly(p Pointer) bool {
	for _, r := range m.readOnly {
		if p >= r.from && p <= r.to {
			return true
		}
	}
	return false
}

func (m *Memory) ReadByte(addr Pointer) byte {
	addr = m.Resolve(addr)
	v := byte(0xFF)
	if int(addr) < len(m.mem) {
		v = m.mem[addr]
	}
	if m.watchArmed && addr == m.watch {
		m.trace(addr, false, v)
	}
	return v
}

func (m *Memory) WriteByte(addr Pointer, data byte) {
	addr = m.Resolve(addr)
	if m.watchArmed && addr == m.watch {
		m.trace(addr, true, data)
	}
	if int(addr) >= len(m.mem) || m.isReadOnly(addr) {
		return
	}
	m.mem[addr] = data
}

func (m *Memory) ReadWord(addr Pointer) uint16 {
	return uint16(m.ReadByte(addr)) | uint16(m.ReadByte(addr+1))<<8
}

func (m *Memory) WriteWord(addr Pointer, data uint16) {
	m.WriteByte(addr, byte(data))
	m.WriteByte(addr+1, byte(data>>8))
}

func (m *Memory) ReadDoubleWord(addr Pointer) uint32 {
	return uint32(m.ReadWord(addr)) | uint32(m.ReadWord(addr+2))<<16
}

func (m *Memory) WriteDoubleWord(addr Pointer, data uint32) {
	m.WriteWord(addr, uint16(data))
	m.WriteWord(addr+2, uint16(data>>16))
}

// SetBytes copies data into memory, ignoring write protection. It is
// used to load ROM images and test programs.
func (m *Memory) SetBytes(addr Pointer, data []byte) {
	for i, v := range data {
		if p := m.Resolve(addr + Pointer(i)); int(p) < len(m.mem) {
			m.mem[p] = v
		}
	}
}

// Clear zeroes all writable memory.
func (m *Memory) Clear() {
	for i := range m.mem {
		if !m.isReadOnly(Pointer(i)) {
			m.mem[i] = 0
		}
	}
}
