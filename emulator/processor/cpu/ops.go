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
	"github.com/andreas-jonsson/virtualpc/emulator/memory"
	"github.com/andreas-jonsson/virtualpc/emulator/processor"
)

type opFunc func(p *CPU, i *inst) error

// opcodeTable maps the primary opcode byte to its handler. Handlers are
// stateless, all state is passed in explicitly. Prefix bytes are consumed
// by the decoder and have no entry.
var opcodeTable [0x100]opFunc

func init() {
	t := &opcodeTable

	for op := 0x00; op < 0x40; op += 8 {
		for n := 0; n < 6; n++ {
			t[op+n] = opALU
		}
	}

	t[0x06], t[0x0E], t[0x16], t[0x1E] = opPushSeg, opPushSeg, opPushSeg, opPushSeg
	t[0x07], t[0x17], t[0x1F] = opPopSeg, opPopSeg, opPopSeg
	t[0x0F] = opExtended
	t[0x27], t[0x2F], t[0x37], t[0x3F] = opDAA, opDAS, opAAA, opAAS

	for n := 0; n < 8; n++ {
		t[0x40+n] = opIncReg
		t[0x48+n] = opDecReg
		t[0x50+n] = opPushReg
		t[0x58+n] = opPopReg
		t[0x90+n] = opXchgAcc
		t[0xB0+n] = opMovRegImm8
		t[0xB8+n] = opMovRegImm
	}

	t[0x60], t[0x61], t[0x62] = opPUSHA, opPOPA, opBOUND
	t[0x68], t[0x6A] = opPushImm, opPushImm
	t[0x69], t[0x6B] = opIMULImm, opIMULImm
	t[0x6C], t[0x6D], t[0x6E], t[0x6F] = opINS, opINS, opOUTS, opOUTS

	for n := 0; n < 16; n++ {
		t[0x70+n] = opJccRel8
	}

	t[0x80], t[0x81], t[0x82], t[0x83] = opGrp1, opGrp1, opGrp1, opGrp1
	t[0x84], t[0x85] = opTEST, opTEST
	t[0x86], t[0x87] = opXCHG, opXCHG
	t[0x88], t[0x89], t[0x8A], t[0x8B] = opMOV, opMOV, opMOV, opMOV
	t[0x8C], t[0x8D], t[0x8E], t[0x8F] = opMovFromSeg, opLEA, opMovToSeg, opPopRM

	t[0x98], t[0x99], t[0x9A], t[0x9B] = opCBW, opCWD, opCallFar, opNOP
	t[0x9C], t[0x9D], t[0x9E], t[0x9F] = opPUSHF, opPOPF, opSAHF, opLAHF

	t[0xA0], t[0xA1], t[0xA2], t[0xA3] = opMovAccMem, opMovAccMem, opMovMemAcc, opMovMemAcc
	t[0xA4], t[0xA5], t[0xA6], t[0xA7] = opMOVS, opMOVS, opCMPS, opCMPS
	t[0xA8], t[0xA9], t[0xAA], t[0xAB] = opTestAccImm, opTestAccImm, opSTOS, opSTOS
	t[0xAC], t[0xAD], t[0xAE], t[0xAF] = opLODS, opLODS, opSCAS, opSCAS

	t[0xC0], t[0xC1] = opShiftImm, opShiftImm
	t[0xC2], t[0xC3], t[0xC4], t[0xC5] = opRET, opRET, opLoadFar, opLoadFar
	t[0xC6], t[0xC7], t[0xC8], t[0xC9] = opMovRMImm, opMovRMImm, opENTER, opLEAVE
	t[0xCA], t[0xCB], t[0xCC], t[0xCD] = opRETF, opRETF, opINT3, opINT
	t[0xCE], t[0xCF] = opINTO, opIRET

	t[0xD0], t[0xD1], t[0xD2], t[0xD3] = opShift, opShift, opShift, opShift
	t[0xD4], t[0xD5], t[0xD6], t[0xD7] = opAAM, opAAD, opSALC, opXLAT
	for n := 0; n < 8; n++ {
		t[0xD8+n] = opESC
	}

	t[0xE0], t[0xE1], t[0xE2], t[0xE3] = opLOOP, opLOOP, opLOOP, opJCXZ
	t[0xE4], t[0xE5], t[0xE6], t[0xE7] = opInImm, opInImm, opOutImm, opOutImm
	t[0xE8], t[0xE9], t[0xEA], t[0xEB] = opCallRel, opJmpRel, opJmpFar, opJmpRel8
	t[0xEC], t[0xED], t[0xEE], t[0xEF] = opInDX, opInDX, opOutDX, opOutDX

	t[0xF4], t[0xF5], t[0xF6], t[0xF7] = opHLT, opCMC, opGrp3, opGrp3
	t[0xF8], t[0xF9], t[0xFA], t[0xFB] = opFlag, opFlag, opFlag, opFlag
	t[0xFC], t[0xFD], t[0xFE], t[0xFF] = opFlag, opFlag, opGrp4, opGrp5
}

func opNOP(p *CPU, i *inst) error {
	if i.opcode == 0x90 {
		p.stats.NOP++
	}
	return nil
}

// 0x00-0x3D: ADD, OR, ADC, SBB, AND, SUB, XOR and CMP.
func opALU(p *CPU, i *inst) error {
	op, w := i.opcode>>3, i.width()

	if i.opcode&7 >= 4 {
		acc := regLocation(0)
		if res, store := p.alu(op, w, acc.read(p, w), p.readOpcodeImm(w)); store {
			acc.write(p, w, res)
		}
		return nil
	}

	dest, src := p.parseOperands(i)
	if res, store := p.alu(op, w, dest.read(p, w), src.read(p, w)); store {
		dest.write(p, w, res)
	}
	return nil
}

func opPushSeg(p *CPU, i *inst) error {
	p.pushWord(i, uint32(*p.Seg(i.opcode>>3)))
	return nil
}

func opPopSeg(p *CPU, i *inst) error {
	*p.Seg(i.opcode >> 3) = uint16(p.popWord(i))
	return nil
}

func opExtended(p *CPU, i *inst) error {
	switch p.model {
	case processor.Model8086: // POP CS
		p.CS = p.pop16()
		return nil
	case processor.Model80186:
		return p.invalidOpcode(i, "requires 80386")
	}

	i.ext = p.readOpcodeStream()
	f := extendedTable[i.ext]
	if f == nil {
		return p.invalidOpcode(i, "unimplemented")
	}
	return f(p, i)
}

// opDAA adjusts AL after a packed BCD addition. The high digit is
// corrected from the value of AL before the low digit adjustment.
func opDAA(p *CPU, i *inst) error {
	al, cf := p.AL(), p.CF
	if (al&0xF) > 9 || p.AF {
		p.SetAL(al + 6)
		p.AF = true
	} else {
		p.AF = false
	}

	if al > 0x99 || cf {
		p.SetAL(p.AL() + 0x60)
		p.CF = true
	} else {
		p.CF = false
	}
	p.updateFlagsSZP(1, uint64(p.AL()))
	return nil
}

func opDAS(p *CPU, i *inst) error {
	al, cf := p.AL(), p.CF
	p.CF = false
	if (al&0xF) > 9 || p.AF {
		p.SetAL(al - 6)
		p.CF = cf || al < 6
		p.AF = true
	} else {
		p.AF = false
	}

	if al > 0x99 || cf {
		p.SetAL(p.AL() - 0x60)
		p.CF = true
	}
	p.updateFlagsSZP(1, uint64(p.AL()))
	return nil
}

func opAAA(p *CPU, i *inst) error {
	if al := p.AL(); ((al & 0xF) > 9) || p.AF {
		p.SetAL(al + 6)
		p.SetAH(p.AH() + 1)
		p.AF, p.CF = true, true
	} else {
		p.AF, p.CF = false, false
	}
	al := p.AL() & 0xF
	p.SetAL(al)
	p.updateFlagsSZP(1, uint64(al))
	return nil
}

func opAAS(p *CPU, i *inst) error {
	if al := p.AL(); ((al & 0xF) > 9) || p.AF {
		p.SetAL(al - 6)
		p.SetAH(p.AH() - 1)
		p.AF, p.CF = true, true
	} else {
		p.AF, p.CF = false, false
	}
	al := p.AL() & 0xF
	p.SetAL(al)
	p.updateFlagsSZP(1, uint64(al))
	return nil
}

// incDec runs INC or DEC. CF is not affected.
func (p *CPU) incDec(dec bool, w int, loc dataLocation) {
	a := uint64(loc.read(p, w))
	cf := p.CF

	var res uint64
	if dec {
		res = a - 1
		p.updateFlagsOACSub(w, res, a, 1)
	} else {
		res = a + 1
		p.updateFlagsOACAdd(w, res, a, 1)
	}
	loc.write(p, w, uint32(res))
	p.updateFlagsSZP(w, res)
	p.CF = cf
}

func opIncReg(p *CPU, i *inst) error {
	p.incDec(false, i.wordSize(), regLocation(i.opcode))
	return nil
}

func opDecReg(p *CPU, i *inst) error {
	p.incDec(true, i.wordSize(), regLocation(i.opcode))
	return nil
}

func opPushReg(p *CPU, i *inst) error {
	reg := regLocation(i.opcode)
	if i.opcode == 0x54 && p.model == processor.Model8086 {
		// The 8086 pushes the decremented stack pointer.
		p.push16(p.SP() - 2)
		return nil
	}
	p.pushWord(i, reg.read(p, i.wordSize()))
	return nil
}

func opPopReg(p *CPU, i *inst) error {
	regLocation(i.opcode).write(p, i.wordSize(), p.popWord(i))
	return nil
}

func opPUSHA(p *CPU, i *inst) error {
	if err := p.requireModel(i, processor.Model80186); err != nil {
		return err
	}

	w := i.wordSize()
	sp := regLocation(4).read(p, w)
	for n := byte(0); n < 8; n++ {
		v := regLocation(n).read(p, w)
		if n == 4 {
			v = sp
		}
		p.pushWord(i, v)
	}
	return nil
}

func opPOPA(p *CPU, i *inst) error {
	if err := p.requireModel(i, processor.Model80186); err != nil {
		return err
	}

	w := i.wordSize()
	for n := 7; n >= 0; n-- {
		v := p.popWord(i)
		if n != 4 {
			regLocation(byte(n)).write(p, w, v)
		}
	}
	return nil
}

func opBOUND(p *CPU, i *inst) error {
	if err := p.requireModel(i, processor.Model80186); err != nil {
		return err
	}

	p.readModRegRM(i)
	loc := p.rmLocation(i)
	if !loc.isMemory() {
		return p.invalidOpcode(i, "register operand")
	}

	idx := int16(regLocation(i.getReg()).read(p, 2))
	addr := loc.getAddress()
	lower, upper := int16(p.readWordAt(addr)), int16(p.readWordAt(addr.AddInt(2)))

	if idx < lower || idx > upper {
		p.IP = i.decodeAt
		p.doInterrupt(5)
	}
	return nil
}

func opPushImm(p *CPU, i *inst) error {
	if err := p.requireModel(i, processor.Model80186); err != nil {
		return err
	}

	if i.opcode == 0x6A {
		p.pushWord(i, uint32(signExtend(1, uint32(p.readOpcodeStream()))))
	} else {
		p.pushWord(i, p.readOpcodeImm(i.wordSize()))
	}
	return nil
}

func opIMULImm(p *CPU, i *inst) error {
	if err := p.requireModel(i, processor.Model80186); err != nil {
		return err
	}

	w := i.wordSize()
	p.readModRegRM(i)
	a := signExtend(w, p.rmLocation(i).read(p, w))

	var b int64
	if i.opcode == 0x6B {
		b = signExtend(1, uint32(p.readOpcodeStream()))
	} else {
		b = signExtend(w, p.readOpcodeImm(w))
	}

	res := a * b
	regLocation(i.getReg()).write(p, w, uint32(res))
	p.updateFlagsSZP(w, uint64(res))
	p.CF = signExtend(w, uint32(res)) != res
	p.OF = p.CF
	return nil
}

func opINS(p *CPU, i *inst) error {
	if err := p.requireModel(i, processor.Model80186); err != nil {
		return err
	}

	w := i.width()
	dest := dataLocation(memory.NewAddress(p.ES, p.DI()))
	switch w {
	case 1:
		dest.write(p, w, uint32(p.InByte(p.DX())))
	case 2:
		dest.write(p, w, uint32(p.InWord(p.DX())))
	default:
		dest.write(p, w, p.InDoubleWord(p.DX()))
	}
	p.updateDI(w)
	return nil
}

func opOUTS(p *CPU, i *inst) error {
	if err := p.requireModel(i, processor.Model80186); err != nil {
		return err
	}

	w := i.width()
	v := dataLocation(memory.NewAddress(i.getSeg(p.DS), p.SI())).read(p, w)
	switch w {
	case 1:
		p.OutByte(p.DX(), byte(v))
	case 2:
		p.OutWord(p.DX(), uint16(v))
	default:
		p.OutDoubleWord(p.DX(), v)
	}
	p.updateSI(w)
	return nil
}

func opJccRel8(p *CPU, i *inst) error {
	p.jmpRel8Cond(p.condition(i.opcode))
	return nil
}

func opTEST(p *CPU, i *inst) error {
	w := i.width()
	p.readModRegRM(i)
	a, b := p.rmLocation(i).read(p, w), regLocation(i.getReg()).read(p, w)
	p.updateFlagsLog(w, uint64(a&b))
	return nil
}

func opXCHG(p *CPU, i *inst) error {
	w := i.width()
	p.readModRegRM(i)
	dst, src := regLocation(i.getReg()), p.rmLocation(i)
	d, s := dst.read(p, w), src.read(p, w)
	dst.write(p, w, s)
	src.write(p, w, d)
	return nil
}

func opMOV(p *CPU, i *inst) error {
	w := i.width()
	dest, src := p.parseOperands(i)
	dest.write(p, w, src.read(p, w))
	return nil
}

func (p *CPU) segIndex(i *inst) (byte, error) {
	reg := i.getReg()
	if p.model < processor.Model80386 {
		return reg & 3, nil
	}
	if reg > 5 {
		return 0, p.invalidOpcode(i, "invalid segment register")
	}
	return reg, nil
}

func opMovFromSeg(p *CPU, i *inst) error {
	p.readModRegRM(i)
	seg, err := p.segIndex(i)
	if err != nil {
		return err
	}
	p.rmLocation(i).write(p, 2, uint32(*p.Seg(seg)))
	return nil
}

func opMovToSeg(p *CPU, i *inst) error {
	p.readModRegRM(i)
	seg, err := p.segIndex(i)
	if err != nil {
		return err
	}
	*p.Seg(seg) = uint16(p.rmLocation(i).read(p, 2))
	return nil
}

func opLEA(p *CPU, i *inst) error {
	p.readModRegRM(i)
	loc := p.rmLocation(i)
	if !loc.isMemory() {
		return p.invalidOpcode(i, "register operand")
	}
	regLocation(i.getReg()).write(p, i.wordSize(), uint32(loc.getAddress().Offset()))
	return nil
}

func opPopRM(p *CPU, i *inst) error {
	p.readModRegRM(i)
	v := p.popWord(i)
	p.rmLocation(i).write(p, i.wordSize(), v)
	return nil
}

func opXchgAcc(p *CPU, i *inst) error {
	if i.opcode == 0x90 {
		return opNOP(p, i)
	}
	w := i.wordSize()
	acc, reg := regLocation(0), regLocation(i.opcode)
	a, b := acc.read(p, w), reg.read(p, w)
	acc.write(p, w, b)
	reg.write(p, w, a)
	return nil
}

func opCBW(p *CPU, i *inst) error {
	if i.opSize32 { // CWDE
		p.EAX = uint32(signExtend(2, p.EAX))
		return nil
	}
	p.SetAX(signExtend16(p.AL()))
	return nil
}

func opCWD(p *CPU, i *inst) error {
	if i.opSize32 { // CDQ
		p.EDX = 0
		if p.EAX&0x80000000 != 0 {
			p.EDX = 0xFFFFFFFF
		}
		return nil
	}

	if p.AX()&0x8000 != 0 {
		p.SetDX(0xFFFF)
	} else {
		p.SetDX(0)
	}
	return nil
}

func opCallFar(p *CPU, i *inst) error {
	ip := p.readOpcodeImm16()
	cs := p.readOpcodeImm16()
	p.push16(p.CS)
	p.push16(p.IP)
	p.IP, p.CS = ip, cs
	return nil
}

func opPUSHF(p *CPU, i *inst) error {
	p.push16(p.packFlags())
	return nil
}

func opPOPF(p *CPU, i *inst) error {
	p.UnpackFlags(p.pop16())
	return nil
}

func opSAHF(p *CPU, i *inst) error {
	p.UnpackFlags8(p.AH())
	return nil
}

func opLAHF(p *CPU, i *inst) error {
	p.SetAH(p.PackFlags8())
	return nil
}

func (p *CPU) directAddress(i *inst) dataLocation {
	return dataLocation(memory.NewAddress(i.getSeg(p.DS), p.readOpcodeImm16()))
}

func opMovAccMem(p *CPU, i *inst) error {
	w := i.width()
	regLocation(0).write(p, w, p.directAddress(i).read(p, w))
	return nil
}

func opMovMemAcc(p *CPU, i *inst) error {
	w := i.width()
	p.directAddress(i).write(p, w, regLocation(0).read(p, w))
	return nil
}

func (p *CPU) stringSource(i *inst) dataLocation {
	return dataLocation(memory.NewAddress(i.getSeg(p.DS), p.SI()))
}

func (p *CPU) stringDest() dataLocation {
	return dataLocation(memory.NewAddress(p.ES, p.DI()))
}

func opMOVS(p *CPU, i *inst) error {
	w := i.width()
	p.stringDest().write(p, w, p.stringSource(i).read(p, w))
	p.updateDISI(w)
	return nil
}

func opCMPS(p *CPU, i *inst) error {
	w := i.width()
	p.alu(7, w, p.stringSource(i).read(p, w), p.stringDest().read(p, w))
	p.updateDISI(w)
	return nil
}

func opTestAccImm(p *CPU, i *inst) error {
	w := i.width()
	p.updateFlagsLog(w, uint64(regLocation(0).read(p, w)&p.readOpcodeImm(w)))
	return nil
}

func opSTOS(p *CPU, i *inst) error {
	w := i.width()
	p.stringDest().write(p, w, regLocation(0).read(p, w))
	p.updateDI(w)
	return nil
}

func opLODS(p *CPU, i *inst) error {
	w := i.width()
	regLocation(0).write(p, w, p.stringSource(i).read(p, w))
	p.updateSI(w)
	return nil
}

func opSCAS(p *CPU, i *inst) error {
	w := i.width()
	p.alu(7, w, regLocation(0).read(p, w), p.stringDest().read(p, w))
	p.updateDI(w)
	return nil
}

func opMovRegImm8(p *CPU, i *inst) error {
	regLocation(i.opcode).write(p, 1, uint32(p.readOpcodeStream()))
	return nil
}

func opMovRegImm(p *CPU, i *inst) error {
	w := i.wordSize()
	regLocation(i.opcode).write(p, w, p.readOpcodeImm(w))
	return nil
}

func opRET(p *CPU, i *inst) error {
	var n uint16
	if i.opcode == 0xC2 {
		n = p.readOpcodeImm16()
	}
	p.IP = p.pop16()
	p.SetSP(p.SP() + n)
	return nil
}

func opLoadFar(p *CPU, i *inst) error {
	p.readModRegRM(i)
	loc := p.rmLocation(i)
	if !loc.isMemory() {
		return p.invalidOpcode(i, "register operand")
	}

	addr := loc.getAddress()
	regLocation(i.getReg()).write(p, 2, uint32(p.readWordAt(addr)))
	seg := p.readWordAt(addr.AddInt(2))
	if i.opcode == 0xC4 {
		p.ES = seg
	} else {
		p.DS = seg
	}
	return nil
}

func opMovRMImm(p *CPU, i *inst) error {
	w := i.width()
	p.readModRegRM(i)
	dest := p.rmLocation(i)
	dest.write(p, w, p.readOpcodeImm(w))
	return nil
}

func opENTER(p *CPU, i *inst) error {
	if err := p.requireModel(i, processor.Model80186); err != nil {
		return err
	}

	size := p.readOpcodeImm16()
	level := p.readOpcodeStream() & 0x1F

	p.push16(p.BP())
	frame := p.SP()
	if level > 0 {
		for n := byte(1); n < level; n++ {
			p.SetBP(p.BP() - 2)
			p.push16(p.readWordAt(memory.NewAddress(p.SS, p.BP())))
		}
		p.push16(frame)
	}
	p.SetBP(frame)
	p.SetSP(p.SP() - size)
	return nil
}

func opLEAVE(p *CPU, i *inst) error {
	if err := p.requireModel(i, processor.Model80186); err != nil {
		return err
	}
	p.SetSP(p.BP())
	p.SetBP(p.pop16())
	return nil
}

func opRETF(p *CPU, i *inst) error {
	var n uint16
	if i.opcode == 0xCA {
		n = p.readOpcodeImm16()
	}
	p.IP = p.pop16()
	p.CS = p.pop16()
	p.SetSP(p.SP() + n)
	return nil
}

func opINT3(p *CPU, i *inst) error {
	p.doInterrupt(3)
	return nil
}

func opINT(p *CPU, i *inst) error {
	p.doInterrupt(int(p.readOpcodeStream()))
	return nil
}

func opINTO(p *CPU, i *inst) error {
	if p.OF {
		p.doInterrupt(4)
	}
	return nil
}

func opIRET(p *CPU, i *inst) error {
	p.IP = p.pop16()
	p.CS = p.pop16()
	p.UnpackFlags(p.pop16())
	return nil
}

func opAAM(p *CPU, i *inst) error {
	a, b := p.AL(), p.readOpcodeStream()
	if b == 0 {
		p.divisionByZero(i)
		return nil
	}
	p.SetAH(a / b)
	p.SetAL(a % b)
	p.updateFlagsSZP(1, uint64(p.AL()))
	return nil
}

func opAAD(p *CPU, i *inst) error {
	p.SetAX((uint16(p.AL()) + uint16(p.AH())*uint16(p.readOpcodeStream())) & 0xFF)
	p.updateFlagsSZP(1, uint64(p.AL()))
	return nil
}

// opSALC sets AL from the carry flag. Later models decode 0xD6 as XLAT.
func opSALC(p *CPU, i *inst) error {
	if p.model != processor.Model8086 {
		return opXLAT(p, i)
	}
	if p.CF {
		p.SetAL(0xFF)
	} else {
		p.SetAL(0)
	}
	return nil
}

func opXLAT(p *CPU, i *inst) error {
	p.SetAL(p.ReadByte(memory.NewPointer(i.getSeg(p.DS), p.BX()+uint16(p.AL()))))
	return nil
}

// opESC consumes the operand of a coprocessor instruction. No FPU is
// attached.
func opESC(p *CPU, i *inst) error {
	p.readModRegRM(i)
	if loc := p.rmLocation(i); loc.isMemory() {
		loc.read(p, 1)
	}
	return nil
}

func opLOOP(p *CPU, i *inst) error {
	p.SetCX(p.CX() - 1)
	cx := p.CX() != 0

	switch i.opcode {
	case 0xE0: // LOOPNZ/NE
		p.jmpRel8Cond(cx && !p.ZF)
	case 0xE1: // LOOPZ/E
		p.jmpRel8Cond(cx && p.ZF)
	default:
		p.jmpRel8Cond(cx)
	}
	return nil
}

func opJCXZ(p *CPU, i *inst) error {
	p.jmpRel8Cond(p.CX() == 0)
	return nil
}

func (p *CPU) portIn(w int, port uint16) {
	switch w {
	case 1:
		p.SetAL(p.InByte(port))
	case 2:
		p.SetAX(p.InWord(port))
	default:
		p.EAX = p.InDoubleWord(port)
	}
}

func (p *CPU) portOut(w int, port uint16) {
	switch w {
	case 1:
		p.OutByte(port, p.AL())
	case 2:
		p.OutWord(port, p.AX())
	default:
		p.OutDoubleWord(port, p.EAX)
	}
}

func opInImm(p *CPU, i *inst) error {
	p.portIn(i.width(), uint16(p.readOpcodeStream()))
	return nil
}

func opOutImm(p *CPU, i *inst) error {
	p.portOut(i.width(), uint16(p.readOpcodeStream()))
	return nil
}

func opInDX(p *CPU, i *inst) error {
	p.portIn(i.width(), p.DX())
	return nil
}

func opOutDX(p *CPU, i *inst) error {
	p.portOut(i.width(), p.DX())
	return nil
}

func opCallRel(p *CPU, i *inst) error {
	p.push16(p.jmpRel(i))
	return nil
}

func opJmpRel(p *CPU, i *inst) error {
	p.jmpRel(i)
	return nil
}

func opJmpFar(p *CPU, i *inst) error {
	ip := p.readOpcodeImm16()
	p.CS = p.readOpcodeImm16()
	p.IP = ip
	return nil
}

func opJmpRel8(p *CPU, i *inst) error {
	p.jmpRel8()
	return nil
}

func opHLT(p *CPU, i *inst) error {
	p.halted = true
	return processor.ErrCPUHalt
}

func opCMC(p *CPU, i *inst) error {
	p.CF = !p.CF
	return nil
}

// 0xF8-0xFD: CLC, STC, CLI, STI, CLD and STD.
func opFlag(p *CPU, i *inst) error {
	v := i.opcode&1 != 0
	switch i.opcode {
	case 0xF8, 0xF9:
		p.CF = v
	case 0xFA, 0xFB:
		p.IF = v
	case 0xFC, 0xFD:
		p.DF = v
	}
	return nil
}
