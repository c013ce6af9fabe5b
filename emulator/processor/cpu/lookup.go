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

package cpu

import (
	"github.com/andreas-jonsson/virtualpc/emulator/memory"
)

const (
	registerLocation = 1 << 63
	segmentLocation  = 1 << 62
)

// dataLocation is an operand reference. It is either a general register,
// a segment register or a segment:offset address in the low 32 bits.
type dataLocation uint64

func (addr dataLocation) getAddress() memory.Address {
	return memory.Address(addr & 0xFFFFFFFF)
}

func (addr dataLocation) isMemory() bool {
	return addr&(registerLocation|segmentLocation) == 0
}

func (addr dataLocation) read(p *CPU, w int) uint32 {
	idx := byte(addr & 0x7)
	switch {
	case addr&registerLocation != 0:
		switch w {
		case 1:
			return uint32(p.Reg8(idx))
		case 2:
			return uint32(uint16(*p.Reg32(idx)))
		default:
			return *p.Reg32(idx)
		}
	case addr&segmentLocation != 0:
		return uint32(*p.Seg(idx))
	}

	a := addr.getAddress()
	switch w {
	case 1:
		return uint32(p.ReadByte(a.Pointer()))
	case 2:
		return uint32(p.readWordAt(a))
	default:
		return p.readDoubleWordAt(a)
	}
}

func (addr dataLocation) write(p *CPU, w int, data uint32) {
	idx := byte(addr & 0x7)
	switch {
	case addr&registerLocation != 0:
		switch w {
		case 1:
			p.SetReg8(idx, byte(data))
		case 2:
			reg := p.Reg32(idx)
			*reg = *reg&0xFFFF0000 | data&0xFFFF
		default:
			*p.Reg32(idx) = data
		}
		return
	case addr&segmentLocation != 0:
		*p.Seg(idx) = uint16(data)
		return
	}

	a := addr.getAddress()
	switch w {
	case 1:
		p.WriteByte(a.Pointer(), byte(data))
	case 2:
		p.writeWordAt(a, uint16(data))
	default:
		p.writeDoubleWordAt(a, data)
	}
}

func regLocation(idx byte) dataLocation {
	return dataLocation(idx&7) | registerLocation
}

// Effective address base for each r/m encoding. The boolean selects the
// stack segment as default.
var modRMLookup = [8]func(p *CPU) (uint16, bool){
	// [BX+SI]
	func(p *CPU) (uint16, bool) { return p.BX() + p.SI(), false },

	// [BX+DI]
	func(p *CPU) (uint16, bool) { return p.BX() + p.DI(), false },

	// SS:[BP+SI]
	func(p *CPU) (uint16, bool) { return p.BP() + p.SI(), true },

	// SS:[BP+DI]
	func(p *CPU) (uint16, bool) { return p.BP() + p.DI(), true },

	// [SI]
	func(p *CPU) (uint16, bool) { return p.SI(), false },

	// [DI]
	func(p *CPU) (uint16, bool) { return p.DI(), false },

	// SS:[BP], or [a16] when mod is zero.
	func(p *CPU) (uint16, bool) { return p.BP(), true },

	// [BX]
	func(p *CPU) (uint16, bool) { return p.BX(), false },
}

func (p *CPU) rmLocation(i *inst) dataLocation {
	mod, rm := i.modRegRM>>6, i.modRegRM&7
	if mod == 3 {
		return regLocation(rm)
	}

	var (
		offset uint16
		stack  bool
	)
	if mod == 0 && rm == 6 {
		offset = p.readOpcodeImm16()
	} else {
		offset, stack = modRMLookup[rm](p)
	}

	switch mod {
	case 1:
		offset += uint16(int8(p.readOpcodeStream()))
	case 2:
		offset += p.readOpcodeImm16()
	}

	seg := p.DS
	if stack {
		seg = p.SS
	}
	return dataLocation(memory.NewAddress(i.getSeg(seg), offset))
}

var parityLookup = [256]bool{
	true, false, false, true, false, true, true, false, false, true, true, false, true, false, false, true,
	false, true, true, false, true, false, false, true, true, false, false, true, false, true, true, false,
	false, true, true, false, true, false, false, true, true, false, false, true, false, true, true, false,
	true, false, false, true, false, true, true, false, false, true, true, false, true, false, false, true,
	false, true, true, false, true, false, false, true, true, false, false, true, false, true, true, false,
	true, false, false, true, false, true, true, false, false, true, true, false, true, false, false, true,
	true, false, false, true, false, true, true, false, false, true, true, false, true, false, false, true,
	false, true, true, false, true, false, false, true, true, false, false, true, false, true, true, false,
	false, true, true, false, true, false, false, true, true, false, false, true, false, true, true, false,
	true, false, false, true, false, true, true, false, false, true, true, false, true, false, false, true,
	true, false, false, true, false, true, true, false, false, true, true, false, true, false, false, true,
	false, true, true, false, true, false, false, true, true, false, false, true, false, true, true, false,
	true, false, false, true, false, true, true, false, false, true, true, false, true, false, false, true,
	false, true, true, false, true, false, false, true, true, false, false, true, false, true, true, false,
	false, true, true, false, true, false, false, true, true, false, false, true, false, true, true, false,
	true, false, false, true, false, true, true, false, false, true, true, false, true, false, false, true,
}
