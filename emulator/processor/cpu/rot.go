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
	"github.com/andreas-jonsson/virtualpc/emulator/processor"
)

// rotate applies a single bit step of a shift or rotate operation to a
// value of w bytes.
func (p *CPU) rotate(op byte, w int, v uint32) uint32 {
	msb := uint32(signMask(w))
	mask := uint32(widthMask(w))

	switch op {
	case 0: // ROL
		s := v & msb
		p.CF = s != 0
		v = v<<1 | b2ui32(p.CF)
	case 1: // ROR
		c := v & 1
		p.CF = c != 0
		v = v>>1 | c*msb
	case 2: // RCL
		s := v & msb
		v = v<<1 | b2ui32(p.CF)
		p.CF = s != 0
	case 3: // RCR
		c := v & 1
		v >>= 1
		if p.CF {
			v |= msb
		}
		p.CF = c != 0
	case 4: // SHL
		p.CF = v&msb != 0
		v <<= 1
	case 5: // SHR
		p.CF = v&1 != 0
		v >>= 1
	case 7: // SAR
		s := v & msb
		p.CF = v&1 != 0
		v = v>>1 | s
	}
	return v & mask
}

func b2ui32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func (p *CPU) shiftOrRotate(i *inst, w int, a uint32, count byte) (uint32, error) {
	// The OF flag is defined only for the 1-bit rotates; it is undefined in all other cases
	// (except that a zero-bit rotate does nothing, that is affects no flags). For left rotates,
	// the OF flag is set to the exclusive OR of the CF bit (after the rotate) and the
	// most-significant bit of the result. For right rotates, the OF flag is set to the
	// exclusive OR of the two most-significant bits of the result.

	op := i.getReg()
	if op == 6 {
		return a, p.invalidOpcode(i, "reserved shift operation")
	}

	if p.model >= processor.Model80186 {
		count &= 0x1F
	}
	if count == 0 {
		return a, nil
	}

	org := a
	for n := 0; n < int(count); n++ {
		a = p.rotate(op, w, a)
	}

	top := uint(w)*8 - 1
	switch op {
	case 0, 2:
		p.OF = b2ui32(p.CF) != (a >> top)
	case 1, 3:
		p.OF = ((a>>top)^(a>>(top-1)))&1 != 0
	case 4:
		p.OF = b2ui32(p.CF) != (a >> top)
		p.updateFlagsSZP(w, uint64(a))
	case 5:
		p.OF = (count == 1) && (org>>top != 0)
		p.updateFlagsSZP(w, uint64(a))
	case 7:
		p.OF = false
		p.updateFlagsSZP(w, uint64(a))
	}
	return a, nil
}

func (p *CPU) shiftRM(i *inst, count func() byte) error {
	w := i.width()
	p.readModRegRM(i)
	dest := p.rmLocation(i)

	res, err := p.shiftOrRotate(i, w, dest.read(p, w), count())
	if err != nil {
		return err
	}
	dest.write(p, w, res)
	return nil
}

// 0xD0-0xD3: shift or rotate r/m by one or CL.
func opShift(p *CPU, i *inst) error {
	return p.shiftRM(i, func() byte {
		if i.opcode >= 0xD2 {
			return p.CL()
		}
		return 1
	})
}

// 0xC0-0xC1: shift or rotate r/m by an immediate (80186).
func opShiftImm(p *CPU, i *inst) error {
	if err := p.requireModel(i, processor.Model80186); err != nil {
		return err
	}
	return p.shiftRM(i, p.readOpcodeStream)
}
