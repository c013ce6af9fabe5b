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
	"errors"

	"github.com/andreas-jonsson/virtualpc/emulator/memory"
	"github.com/andreas-jonsson/virtualpc/emulator/processor"
)

// inst is the decode scratch of a single instruction. It lives on the
// stack of execute and is handed to the opcode handlers.
type inst struct {
	opcode, ext, modRegRM,
	repeatMode byte

	isWide, rmToReg, opSize32 bool
	decodeAt                  uint16
	segOverride               *uint16
	iterations                int
}

func (i *inst) getReg() byte {
	return (i.modRegRM >> 3) & 7
}

func (i *inst) getSeg(seg uint16) uint16 {
	if i.segOverride != nil {
		return *i.segOverride
	}
	return seg
}

// width returns the operand size in bytes.
func (i *inst) width() int {
	if !i.isWide {
		return 1
	}
	return i.wordSize()
}

func (i *inst) wordSize() int {
	if i.opSize32 {
		return 4
	}
	return 2
}

func (p *CPU) peakOpcodeStream() byte {
	return p.ReadByte(memory.NewPointer(p.CS, p.IP))
}

func (p *CPU) readOpcodeStream() byte {
	v := p.peakOpcodeStream()
	p.IP++
	return v
}

func (p *CPU) readOpcodeImm16() uint16 {
	lo := p.readOpcodeStream()
	return uint16(lo) | uint16(p.readOpcodeStream())<<8
}

func (p *CPU) readOpcodeImm32() uint32 {
	lo := p.readOpcodeImm16()
	return uint32(lo) | uint32(p.readOpcodeImm16())<<16
}

func (p *CPU) readOpcodeImm(w int) uint32 {
	switch w {
	case 1:
		return uint32(p.readOpcodeStream())
	case 2:
		return uint32(p.readOpcodeImm16())
	default:
		return p.readOpcodeImm32()
	}
}

func (p *CPU) readModRegRM(i *inst) {
	i.modRegRM = p.readOpcodeStream()
}

func (p *CPU) parseOperands(i *inst) (dataLocation, dataLocation) {
	p.readModRegRM(i)
	reg, rm := regLocation(i.getReg()), p.rmLocation(i)
	if i.rmToReg {
		return reg, rm
	}
	return rm, reg
}

// parseOpcode consumes prefixes and the opcode byte.
func (p *CPU) parseOpcode(i *inst) {
	i.decodeAt = p.IP
	is386 := p.model >= processor.Model80386

	var op byte
loop:
	for {
		switch op = p.readOpcodeStream(); op {
		case 0x26: // ES:
			i.segOverride = &p.ES
		case 0x2E: // CS:
			i.segOverride = &p.CS
		case 0x36: // SS:
			i.segOverride = &p.SS
		case 0x3E: // DS:
			i.segOverride = &p.DS
		case 0x64: // FS:
			if !is386 {
				break loop
			}
			i.segOverride = &p.FS
		case 0x65: // GS:
			if !is386 {
				break loop
			}
			i.segOverride = &p.GS
		case 0x66: // Operand size
			if !is386 {
				break loop
			}
			i.opSize32 = !i.opSize32
		case 0xF0: // LOCK
		case 0xF2, 0xF3: // REPNE/REPNZ,REP/REPE/REPZ
			i.repeatMode = op
		default:
			break loop
		}
	}

	i.opcode = op
	i.isWide = op&1 != 0
	i.rmToReg = op&2 != 0
}

func (p *CPU) invalidOpcode(i *inst, reason string) error {
	return &processor.DecodeFault{
		Opcode: i.opcode,
		Ext:    i.ext,
		CS:     p.CS,
		IP:     i.decodeAt,
		Reason: reason,
	}
}

func (p *CPU) requireModel(i *inst, m processor.Model) error {
	if p.model < m {
		return p.invalidOpcode(i, "requires "+m.String())
	}
	return nil
}

// execute decodes and runs one instruction, including all iterations of
// a repeated string instruction.
func (p *CPU) execute() (int, error) {
	var i inst

	p.trace.Begin(&p.Registers)
	p.parseOpcode(&i)

	var err error
	if i.repeatMode != 0 {
		err = p.doRepeat(&i)
	} else {
		err = p.dispatch(&i)
	}
	p.trace.End(i.opcode, i.ext, &p.Registers)

	cycles := 1
	if i.iterations > 1 {
		cycles = i.iterations
	}

	var fault *processor.DecodeFault
	if errors.As(err, &fault) {
		p.IP = i.decodeAt
		p.stats.NumDecodeFaults++
		p.log.Print(fault)

		if p.policy == processor.FaultInterrupt {
			p.doInterrupt(6)
			return cycles, nil
		}
		p.Break()
		return cycles, fault
	}

	if err == nil || err == processor.ErrCPUHalt {
		p.stats.NumInstructions++
	}
	return cycles, err
}

func (p *CPU) dispatch(i *inst) error {
	f := opcodeTable[i.opcode]
	if f == nil {
		return p.invalidOpcode(i, "unimplemented")
	}
	return f(p, i)
}

func (p *CPU) isValidRepeat(i *inst) (bool, bool) {
	switch i.opcode {
	case 0x6C, 0x6D, 0x6E, 0x6F:
		if p.model < processor.Model80186 {
			return false, false
		}
		fallthrough
	case 0xA4, 0xA5, 0xAC, 0xAD, 0xAA, 0xAB:
		return true, false
	case 0xA6, 0xA7, 0xAE, 0xAF:
		return true, true
	}
	return false, false
}

func (p *CPU) doRepeat(i *inst) error {
	valid, primitive := p.isValidRepeat(i)
	if !valid {
		i.repeatMode = 0
		return p.dispatch(i)
	}

	f := opcodeTable[i.opcode]
	for p.CX() > 0 {
		if err := f(p, i); err != nil {
			return err
		}
		i.iterations++
		p.SetCX(p.CX() - 1)

		if primitive && ((i.repeatMode == 0xF2 && p.ZF) || (i.repeatMode == 0xF3 && !p.ZF)) {
			break
		}
	}
	return nil
}

func signExtend16(v byte) uint16 {
	if v&0x80 != 0 {
		return uint16(v) | 0xFF00
	}
	return uint16(v)
}

func signExtend32(v uint16) uint32 {
	if v&0x8000 != 0 {
		return uint32(v) | 0xFFFF0000
	}
	return uint32(v)
}

// signExtend widens a value of w bytes to 64 bits.
func signExtend(w int, v uint32) int64 {
	switch w {
	case 1:
		return int64(int8(v))
	case 2:
		return int64(int16(v))
	default:
		return int64(int32(v))
	}
}

func widthMask(w int) uint64 {
	return 1<<(uint(w)*8) - 1
}

func signMask(w int) uint64 {
	return 1 << (uint(w)*8 - 1)
}

func b2ui64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func (p *CPU) stackTop() memory.Address {
	return memory.NewAddress(p.SS, p.SP())
}

func (p *CPU) push16(v uint16) {
	p.SetSP(p.SP() - 2)
	p.writeWordAt(p.stackTop(), v)
}

func (p *CPU) pop16() uint16 {
	v := p.readWordAt(p.stackTop())
	p.SetSP(p.SP() + 2)
	return v
}

func (p *CPU) push32(v uint32) {
	p.SetSP(p.SP() - 4)
	p.writeDoubleWordAt(p.stackTop(), v)
}

func (p *CPU) pop32() uint32 {
	v := p.readDoubleWordAt(p.stackTop())
	p.SetSP(p.SP() + 4)
	return v
}

func (p *CPU) pushWord(i *inst, v uint32) {
	if i.opSize32 {
		p.push32(v)
		return
	}
	p.push16(uint16(v))
}

func (p *CPU) popWord(i *inst) uint32 {
	if i.opSize32 {
		return p.pop32()
	}
	return uint32(p.pop16())
}

// packFlags returns the image pushed by PUSHF and interrupts. Processors
// before the 80286 report the upper four bits as set.
func (p *CPU) packFlags() uint16 {
	flags := p.PackFlags()
	if p.model < processor.Model80386 {
		flags |= 0xF000
	}
	return flags
}

func (p *CPU) updateFlagsSZP(w int, res uint64) {
	p.SF = res&signMask(w) != 0
	p.ZF = res&widthMask(w) == 0
	p.PF = parityLookup[byte(res)]
}

// updateFlagsLog sets the flags of AND, OR, XOR and TEST. AF is cleared
// like OF and CF.
func (p *CPU) updateFlagsLog(w int, res uint64) {
	p.updateFlagsSZP(w, res)
	p.CF, p.OF, p.AF = false, false, false
}

func (p *CPU) updateFlagsOACAdd(w int, res, a, b uint64) {
	maskO := signMask(w)
	p.CF = res&^widthMask(w) != 0
	p.AF = ((a ^ b ^ res) & 0x10) == 0x10
	p.OF = ((res ^ a) & (res ^ b) & maskO) == maskO
}

func (p *CPU) updateFlagsOACSub(w int, res, a, b uint64) {
	p.CF = res&^widthMask(w) != 0
	p.AF = ((a ^ b ^ res) & 0x10) != 0
	p.OF = ((res ^ a) & (a ^ b) & signMask(w)) != 0
}

// alu runs one of the eight group 1 operations. The second return value
// is false for CMP, which only updates flags.
func (p *CPU) alu(op byte, w int, a, b uint32) (uint32, bool) {
	x, y := uint64(a), uint64(b)

	var res uint64
	switch op & 7 {
	case 0: // ADD
		res = x + y
		p.updateFlagsOACAdd(w, res, x, y)
		p.updateFlagsSZP(w, res)
	case 1: // OR
		res = x | y
		p.updateFlagsLog(w, res)
	case 2: // ADC
		res = x + y + b2ui64(p.CF)
		p.updateFlagsOACAdd(w, res, x, y)
		p.updateFlagsSZP(w, res)
	case 3: // SBB
		res = x - (y + b2ui64(p.CF))
		p.updateFlagsOACSub(w, res, x, y)
		p.updateFlagsSZP(w, res)
	case 4: // AND
		res = x & y
		p.updateFlagsLog(w, res)
	case 5: // SUB
		res = x - y
		p.updateFlagsOACSub(w, res, x, y)
		p.updateFlagsSZP(w, res)
	case 6: // XOR
		res = x ^ y
		p.updateFlagsLog(w, res)
	case 7: // CMP
		res = x - y
		p.updateFlagsOACSub(w, res, x, y)
		p.updateFlagsSZP(w, res)
		return uint32(res & widthMask(w)), false
	}
	return uint32(res & widthMask(w)), true
}

// condition evaluates the condition code used by Jcc and SETcc.
func (p *CPU) condition(cc byte) bool {
	var r bool
	switch (cc & 0xF) >> 1 {
	case 0:
		r = p.OF
	case 1:
		r = p.CF
	case 2:
		r = p.ZF
	case 3:
		r = p.CF || p.ZF
	case 4:
		r = p.SF
	case 5:
		r = p.PF
	case 6:
		r = p.SF != p.OF
	case 7:
		r = p.SF != p.OF || p.ZF
	}
	if cc&1 != 0 {
		return !r
	}
	return r
}

func (p *CPU) jmpRel8() uint16 {
	diff := uint16(int8(p.readOpcodeStream()))
	ip := p.IP
	p.IP += diff
	return ip
}

func (p *CPU) jmpRel(i *inst) uint16 {
	var diff uint16
	if i.opSize32 {
		diff = uint16(p.readOpcodeImm32())
	} else {
		diff = p.readOpcodeImm16()
	}
	ip := p.IP
	p.IP += diff
	return ip
}

func (p *CPU) jmpRel8Cond(cond bool) {
	if cond {
		p.jmpRel8()
	} else {
		p.readOpcodeStream()
	}
}

func (p *CPU) divisionByZero(i *inst) {
	if p.model >= processor.Model80186 {
		p.IP = i.decodeAt
	}
	p.doInterrupt(0)
}

func (p *CPU) doInterrupt(n int) {
	p.stats.NumInterrupts++
	p.halted = false

	if handler := p.interceptors[n]; handler != nil {
		if err := handler.HandleInterrupt(n); err == nil {
			return
		} else if err != processor.ErrInterruptNotHandled {
			p.log.Printf("interrupt handler 0x%X: %v", n, err)
			return
		}
	}

	p.push16(p.packFlags())
	p.push16(p.CS)
	p.push16(p.IP)

	offset := memory.Pointer(n * 4)
	p.CS = p.ReadWord(offset + 2)
	p.IP = p.ReadWord(offset)
	p.TF, p.IF = false, false
}

func (p *CPU) stringDelta(w int) uint16 {
	if p.DF {
		return uint16(-w)
	}
	return uint16(w)
}

func (p *CPU) updateDI(w int) {
	p.SetDI(p.DI() + p.stringDelta(w))
}

func (p *CPU) updateSI(w int) {
	p.SetSI(p.SI() + p.stringDelta(w))
}

func (p *CPU) updateDISI(w int) {
	p.updateDI(w)
	p.updateSI(w)
}
