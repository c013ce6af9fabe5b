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
	"github.com/andreas-jonsson/virtualpc/emulator/processor"
)

// 0x80-0x83: ALU r/m,imm. 0x83 sign-extends an 8-bit immediate.
func opGrp1(p *CPU, i *inst) error {
	w := i.width()
	p.readModRegRM(i)
	dest := p.rmLocation(i)
	a := dest.read(p, w)

	var b uint32
	if i.opcode == 0x83 {
		b = uint32(signExtend(1, uint32(p.readOpcodeStream())))
	} else {
		b = p.readOpcodeImm(w)
	}

	if res, store := p.alu(i.getReg(), w, a, b); store {
		dest.write(p, w, res)
	}
	return nil
}

// 0xF6-0xF7: TEST, NOT, NEG, MUL, IMUL, DIV and IDIV.
func opGrp3(p *CPU, i *inst) error {
	w := i.width()
	p.readModRegRM(i)
	operand := p.rmLocation(i)

	switch op := i.getReg(); op {
	case 0, 1:
		a, b := operand.read(p, w), p.readOpcodeImm(w)
		p.updateFlagsLog(w, uint64(a&b))
	case 2:
		operand.write(p, w, ^operand.read(p, w))
	case 3:
		a, b := uint64(0), uint64(operand.read(p, w))
		res := a - b
		operand.write(p, w, uint32(res))
		p.updateFlagsOACSub(w, res, a, b)
		p.updateFlagsSZP(w, res)
		p.CF = b&widthMask(w) != 0
	case 4:
		p.opMUL(w, operand.read(p, w))
	case 5:
		p.opIMUL(w, operand.read(p, w))
	case 6:
		p.opDIV(i, w, operand.read(p, w))
	case 7:
		p.opIDIV(i, w, operand.read(p, w))
	}
	return nil
}

// accumulatorPair returns the double width accumulator used by MUL and DIV
// (AX, DX:AX or EDX:EAX).
func (p *CPU) accumulatorPair(w int) uint64 {
	switch w {
	case 1:
		return uint64(p.AX())
	case 2:
		return uint64(p.DX())<<16 | uint64(p.AX())
	default:
		return uint64(p.EDX)<<32 | uint64(p.EAX)
	}
}

func (p *CPU) setAccumulatorPair(w int, lo, hi uint32) {
	switch w {
	case 1:
		p.SetAL(byte(lo))
		p.SetAH(byte(hi))
	case 2:
		p.SetAX(uint16(lo))
		p.SetDX(uint16(hi))
	default:
		p.EAX, p.EDX = lo, hi
	}
}

func (p *CPU) opMUL(w int, b uint32) {
	bits := uint(w) * 8
	res := uint64(regLocation(0).read(p, w)) * uint64(b)
	lo, hi := uint32(res&widthMask(w)), uint32(res>>bits)
	p.setAccumulatorPair(w, lo, hi)

	p.updateFlagsSZP(w, uint64(lo))
	p.CF = hi != 0
	p.OF = p.CF
	if p.model == processor.Model8086 {
		p.ZF = false
	}
}

func (p *CPU) opIMUL(w int, b uint32) {
	bits := uint(w) * 8
	res := signExtend(w, regLocation(0).read(p, w)) * signExtend(w, b)
	lo, hi := uint32(uint64(res)&widthMask(w)), uint32(uint64(res)>>bits)
	p.setAccumulatorPair(w, lo, hi)

	p.updateFlagsSZP(w, uint64(lo))
	p.CF = signExtend(w, lo) != res
	p.OF = p.CF
	if p.model == processor.Model8086 {
		p.ZF = false
	}
}

func (p *CPU) opDIV(i *inst, w int, b uint32) {
	if b == 0 {
		p.divisionByZero(i)
		return
	}

	a := p.accumulatorPair(w)
	q, r := a/uint64(b), a%uint64(b)
	if q > widthMask(w) {
		p.divisionByZero(i)
		return
	}
	p.setAccumulatorPair(w, uint32(q), uint32(r))
}

func (p *CPU) opIDIV(i *inst, w int, b uint32) {
	if b == 0 {
		p.divisionByZero(i)
		return
	}

	bits := uint(w) * 8
	a := int64(p.accumulatorPair(w)<<(64-2*bits)) >> (64 - 2*bits)
	d := signExtend(w, b)

	q, r := a/d, a%d
	max := int64(signMask(w)) - 1
	min := -max
	if p.model != processor.Model8086 {
		min--
	}
	if q > max || q < min {
		p.divisionByZero(i)
		return
	}
	p.setAccumulatorPair(w, uint32(q), uint32(r))
}

// 0xFE: INC and DEC r/m8.
func opGrp4(p *CPU, i *inst) error {
	p.readModRegRM(i)
	op := i.getReg()
	if op > 1 {
		return p.invalidOpcode(i, "reserved group 4 operation")
	}
	p.incDec(op == 1, 1, p.rmLocation(i))
	return nil
}

// 0xFF: INC, DEC, CALL, CALL far, JMP, JMP far and PUSH.
func opGrp5(p *CPU, i *inst) error {
	p.readModRegRM(i)
	op := i.getReg()
	if op == 7 {
		return p.invalidOpcode(i, "reserved group 5 operation")
	}
	if (op == 3 || op == 5) && i.modRegRM>>6 == 3 {
		return p.invalidOpcode(i, "register operand")
	}

	w := i.wordSize()
	dest := p.rmLocation(i)

	switch op {
	case 0, 1:
		p.incDec(op == 1, w, dest)
	case 2:
		v := uint16(dest.read(p, 2))
		p.push16(p.IP)
		p.IP = v
	case 3:
		addr := dest.getAddress()
		ip, cs := p.readWordAt(addr), p.readWordAt(addr.AddInt(2))
		p.push16(p.CS)
		p.push16(p.IP)
		p.IP, p.CS = ip, cs
	case 4:
		p.IP = uint16(dest.read(p, 2))
	case 5:
		addr := dest.getAddress()
		p.IP, p.CS = p.readWordAt(addr), p.readWordAt(addr.AddInt(2))
	case 6:
		p.pushWord(i, dest.read(p, w))
	}
	return nil
}
