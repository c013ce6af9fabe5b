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

package processor

const (
	Carry           = 0x001
	Parity          = 0x004
	Adjust          = 0x010
	Zero            = 0x040
	Sign            = 0x080
	Trap            = 0x100
	InterruptEnable = 0x200
	Direction       = 0x400
	Overflow        = 0x800
)

// Flags is the status register. Bit 1 always reads as set.
type Flags struct {
	CF, PF, AF, ZF, SF, TF, IF, DF, OF bool
}

func (f *Flags) PackFlags8() byte {
	var flags byte = 0x2
	if f.CF {
		flags |= Carry
	}
	if f.PF {
		flags |= Parity
	}
	if f.AF {
		flags |= Adjust
	}
	if f.ZF {
		flags |= Zero
	}
	if f.SF {
		flags |= Sign
	}
	return flags
}

func (f *Flags) PackFlags() uint16 {
	flags := uint16(f.PackFlags8())
	if f.TF {
		flags |= Trap
	}
	if f.IF {
		flags |= InterruptEnable
	}
	if f.DF {
		flags |= Direction
	}
	if f.OF {
		flags |= Overflow
	}
	return flags
}

func (f *Flags) UnpackFlags8(flags byte) {
	f.CF = flags&Carry != 0
	f.PF = flags&Parity != 0
	f.AF = flags&Adjust != 0
	f.ZF = flags&Zero != 0
	f.SF = flags&Sign != 0
}

func (f *Flags) UnpackFlags(flags uint16) {
	f.UnpackFlags8(byte(flags))
	f.TF = flags&Trap != 0
	f.IF = flags&InterruptEnable != 0
	f.DF = flags&Direction != 0
	f.OF = flags&Overflow != 0
}

// Registers holds the general registers at full 32-bit width. The 16-bit
// and 8-bit names are views of the same storage.
type Registers struct {
	EAX, ECX, EDX, EBX,
	ESP, EBP, ESI, EDI uint32

	ES, CS, SS, DS, FS, GS uint16
	IP                     uint16

	Flags
	Debug bool
}

func (r *Registers) Reset() {
	*r = Registers{CS: 0xFFFF}
}

func lo16(r *uint32, v uint16) {
	*r = *r&0xFFFF0000 | uint32(v)
}

func (r *Registers) AX() uint16 { return uint16(r.EAX) }
func (r *Registers) CX() uint16 { return uint16(r.ECX) }
func (r *Registers) DX() uint16 { return uint16(r.EDX) }
func (r *Registers) BX() uint16 { return uint16(r.EBX) }
func (r *Registers) SP() uint16 { return uint16(r.ESP) }
func (r *Registers) BP() uint16 { return uint16(r.EBP) }
func (r *Registers) SI() uint16 { return uint16(r.ESI) }
func (r *Registers) DI() uint16 { return uint16(r.EDI) }

func (r *Registers) SetAX(v uint16) { lo16(&r.EAX, v) }
func (r *Registers) SetCX(v uint16) { lo16(&r.ECX, v) }
func (r *Registers) SetDX(v uint16) { lo16(&r.EDX, v) }
func (r *Registers) SetBX(v uint16) { lo16(&r.EBX, v) }
func (r *Registers) SetSP(v uint16) { lo16(&r.ESP, v) }
func (r *Registers) SetBP(v uint16) { lo16(&r.EBP, v) }
func (r *Registers) SetSI(v uint16) { lo16(&r.ESI, v) }
func (r *Registers) SetDI(v uint16) { lo16(&r.EDI, v) }

func (r *Registers) AL() byte { return byte(r.EAX) }
func (r *Registers) CL() byte { return byte(r.ECX) }
func (r *Registers) DL() byte { return byte(r.EDX) }
func (r *Registers) BL() byte { return byte(r.EBX) }
func (r *Registers) AH() byte { return byte(r.EAX >> 8) }
func (r *Registers) CH() byte { return byte(r.ECX >> 8) }
func (r *Registers) DH() byte { return byte(r.EDX >> 8) }
func (r *Registers) BH() byte { return byte(r.EBX >> 8) }

func (r *Registers) SetAL(v byte) { r.EAX = r.EAX&0xFFFFFF00 | uint32(v) }
func (r *Registers) SetCL(v byte) { r.ECX = r.ECX&0xFFFFFF00 | uint32(v) }
func (r *Registers) SetDL(v byte) { r.EDX = r.EDX&0xFFFFFF00 | uint32(v) }
func (r *Registers) SetBL(v byte) { r.EBX = r.EBX&0xFFFFFF00 | uint32(v) }
func (r *Registers) SetAH(v byte) { r.EAX = r.EAX&0xFFFF00FF | uint32(v)<<8 }
func (r *Registers) SetCH(v byte) { r.ECX = r.ECX&0xFFFF00FF | uint32(v)<<8 }
func (r *Registers) SetDH(v byte) { r.EDX = r.EDX&0xFFFF00FF | uint32(v)<<8 }
func (r *Registers) SetBH(v byte) { r.EBX = r.EBX&0xFFFF00FF | uint32(v)<<8 }

// Reg32 returns the general register with the given encoding index.
func (r *Registers) Reg32(idx byte) *uint32 {
	switch idx & 7 {
	case 0:
		return &r.EAX
	case 1:
		return &r.ECX
	case 2:
		return &r.EDX
	case 3:
		return &r.EBX
	case 4:
		return &r.ESP
	case 5:
		return &r.EBP
	case 6:
		return &r.ESI
	default:
		return &r.EDI
	}
}

// Reg8 reads an 8-bit register by encoding index (AL,CL,DL,BL,AH,CH,DH,BH).
func (r *Registers) Reg8(idx byte) byte {
	v := *r.Reg32(idx & 3)
	if idx&4 != 0 {
		return byte(v >> 8)
	}
	return byte(v)
}

func (r *Registers) SetReg8(idx, v byte) {
	reg := r.Reg32(idx & 3)
	if idx&4 != 0 {
		*reg = *reg&0xFFFF00FF | uint32(v)<<8
		return
	}
	*reg = *reg&0xFFFFFF00 | uint32(v)
}

// Seg returns the segment register with the given encoding index
// (ES,CS,SS,DS,FS,GS). Index 6 and 7 do not exist.
func (r *Registers) Seg(idx byte) *uint16 {
	switch idx {
	case 0:
		return &r.ES
	case 1:
		return &r.CS
	case 2:
		return &r.SS
	case 3:
		return &r.DS
	case 4:
		return &r.FS
	case 5:
		return &r.GS
	default:
		return nil
	}
}

func (r *Registers) GetValues() [14]uint32 {
	return [14]uint32{
		r.EAX, r.ECX, r.EDX, r.EBX,
		r.ESP, r.EBP, r.ESI, r.EDI,
		uint32(r.ES), uint32(r.CS), uint32(r.SS), uint32(r.DS), uint32(r.FS), uint32(r.GS),
	}
}
