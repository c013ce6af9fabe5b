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

// extendedTable holds the 80386 two-byte opcodes following 0x0F.
var extendedTable [0x100]opFunc

func init() {
	t := &extendedTable

	for n := 0; n < 16; n++ {
		t[0x80+n] = opJccRel
		t[0x90+n] = opSETcc
	}

	t[0xA0], t[0xA1] = opPushFS, opPopFS
	t[0xA8], t[0xA9] = opPushGS, opPopGS
	t[0xB6], t[0xB7] = opMOVZX, opMOVZX
	t[0xBE], t[0xBF] = opMOVSX, opMOVSX
}

func opJccRel(p *CPU, i *inst) error {
	if p.condition(i.ext) {
		p.jmpRel(i)
	} else if i.opSize32 {
		p.readOpcodeImm32()
	} else {
		p.readOpcodeImm16()
	}
	return nil
}

func opSETcc(p *CPU, i *inst) error {
	p.readModRegRM(i)
	var v uint32
	if p.condition(i.ext) {
		v = 1
	}
	p.rmLocation(i).write(p, 1, v)
	return nil
}

func opPushFS(p *CPU, i *inst) error {
	p.pushWord(i, uint32(p.FS))
	return nil
}

func opPopFS(p *CPU, i *inst) error {
	p.FS = uint16(p.popWord(i))
	return nil
}

func opPushGS(p *CPU, i *inst) error {
	p.pushWord(i, uint32(p.GS))
	return nil
}

func opPopGS(p *CPU, i *inst) error {
	p.GS = uint16(p.popWord(i))
	return nil
}

func opMOVZX(p *CPU, i *inst) error {
	src := 1
	if i.ext&1 != 0 {
		src = 2
	}
	p.readModRegRM(i)
	v := p.rmLocation(i).read(p, src)
	regLocation(i.getReg()).write(p, i.wordSize(), v)
	return nil
}

func opMOVSX(p *CPU, i *inst) error {
	src := 1
	if i.ext&1 != 0 {
		src = 2
	}
	p.readModRegRM(i)
	v := signExtend(src, p.rmLocation(i).read(p, src))
	regLocation(i.getReg()).write(p, i.wordSize(), uint32(v))
	return nil
}
