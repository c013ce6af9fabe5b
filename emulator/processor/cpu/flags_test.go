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
	"fmt"
	"testing"

	"github.com/andreas-jonsson/virtualpc/emulator/processor"
)

const (
	cf = processor.Carry
	pf = processor.Parity
	af = processor.Adjust
	zf = processor.Zero
	sf = processor.Sign
	of = processor.Overflow

	arithFlags = cf | pf | af | zf | sf | of
	szpFlags   = sf | zf | pf
)

func TestALUFlags(t *testing.T) {
	const (
		add = 0
		adc = 2
		sbb = 3
		sub = 5
		cmp = 7
	)

	tests := []struct {
		name  string
		op    byte
		w     int
		a, b  uint32
		carry bool
		res   uint32
		flags uint16
	}{
		{"ADD signed overflow", add, 1, 0x7F, 0x01, false, 0x80, of | sf | af},
		{"ADD carry to zero", add, 1, 0xFF, 0x01, false, 0x00, cf | zf | af | pf},
		{"ADD both overflow", add, 1, 0x80, 0x80, false, 0x00, cf | of | zf | pf},
		{"ADD word overflow", add, 2, 0x7FFF, 0x0001, false, 0x8000, of | sf | af | pf},
		{"ADC carry in overflows", adc, 1, 0x7F, 0x00, true, 0x80, of | sf | af},
		{"ADC all ones", adc, 1, 0xFF, 0xFF, true, 0xFF, cf | sf | af | pf},
		{"SUB signed overflow", sub, 1, 0x80, 0x01, false, 0x7F, of | af},
		{"SUB borrow", sub, 1, 0x00, 0x01, false, 0xFF, cf | sf | af | pf},
		{"SUB word borrow", sub, 2, 0x0000, 0x0001, false, 0xFFFF, cf | sf | af | pf},
		{"SBB borrow in overflows", sbb, 1, 0x80, 0x7F, true, 0x00, of | zf | af | pf},
		{"SBB borrow in wraps", sbb, 1, 0x00, 0xFF, true, 0x00, cf | zf | af | pf},
		{"SBB without borrow in", sbb, 1, 0x05, 0x03, false, 0x02, 0},
		{"CMP less", cmp, 1, 0x01, 0x02, false, 0x01, cf | sf | af | pf},
		{"CMP signed overflow", cmp, 1, 0x80, 0x01, false, 0x80, of | af},
		{"CMP equal", cmp, 2, 0x1234, 0x1234, false, 0x1234, zf | pf},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestCPU(t, processor.Model8086, nil)
			p.CF = tt.carry

			res, store := p.alu(tt.op, tt.w, tt.a, tt.b)
			if tt.op == cmp {
				if store {
					t.Error("CMP should not store the result")
				}
				res = tt.a
			}
			if res != tt.res {
				t.Errorf("Got result 0x%X but expected 0x%X", res, tt.res)
			}
			if f := p.PackFlags() & arithFlags; f != tt.flags {
				t.Errorf("Got flags 0x%03X but expected 0x%03X", f, tt.flags)
			}
		})
	}
}

func TestAdjustFlags(t *testing.T) {
	tests := []struct {
		name    string
		program []byte
		ax      uint16
		in      uint16
		wantAX  uint16
		flags   uint16
		mask    uint16
	}{
		{"INC overflow keeps CF", []byte{0x40}, 0x7FFF, cf, 0x8000, cf | of | sf | af | pf, arithFlags},
		{"INC wraps to zero", []byte{0x40}, 0xFFFF, 0, 0x0000, zf | af | pf, arithFlags},
		{"DEC overflow keeps CF", []byte{0x48}, 0x8000, cf, 0x7FFF, cf | of | af | pf, arithFlags},
		{"DEC wraps", []byte{0x48}, 0x0000, 0, 0xFFFF, sf | af | pf, arithFlags},
		{"NEG zero", []byte{0xF6, 0xD8}, 0x0000, cf, 0x0000, zf | pf, arithFlags},
		{"NEG most negative", []byte{0xF6, 0xD8}, 0x0080, 0, 0x0080, cf | of | sf, arithFlags},
		{"NEG one", []byte{0xF6, 0xD8}, 0x0001, 0, 0x00FF, cf | sf | af | pf, arithFlags},
		{"DAA after carry", []byte{0x27}, 0x0032, cf | af, 0x0098, cf | af | sf, arithFlags &^ of},
		{"DAA both digits", []byte{0x27}, 0x009A, 0, 0x0000, cf | af | zf | pf, arithFlags &^ of},
		{"DAA valid BCD", []byte{0x27}, 0x0015, 0, 0x0015, 0, arithFlags &^ of},
		{"DAS after borrow", []byte{0x2F}, 0x00FF, cf | af, 0x0099, cf | af | sf | pf, arithFlags &^ of},
		{"DAS low digit", []byte{0x2F}, 0x001B, 0, 0x0015, af, arithFlags &^ of},
		{"AAA adjust", []byte{0x37}, 0x000B, 0, 0x0101, cf | af, cf | af},
		{"AAA valid", []byte{0x37}, 0x0005, cf, 0x0005, 0, cf | af},
		{"AAM zero remainder", []byte{0xD4, 0x0A}, 0x000A, 0, 0x0100, zf | pf, szpFlags},
		{"AAM two digits", []byte{0xD4, 0x0A}, 0x0063, 0, 0x0909, pf, szpFlags},
		{"AAD", []byte{0xD5, 0x0A}, 0x0105, 0, 0x000F, pf, szpFlags},
		{"AAD sign from AL", []byte{0xD5, 0x0A}, 0x0D00, 0, 0x0082, sf | pf, szpFlags},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestCPU(t, processor.Model8086, append(tt.program, 0xF4))
			p.SetAX(tt.ax)
			p.UnpackFlags(tt.in)
			run(t, p)

			if p.AX() != tt.wantAX {
				t.Errorf("Got AX = 0x%04X but expected 0x%04X", p.AX(), tt.wantAX)
			}
			if f := p.PackFlags() & tt.mask; f != tt.flags {
				t.Errorf("Got flags 0x%03X but expected 0x%03X (%s)", f, tt.flags, flagNames(f^tt.flags))
			}
		})
	}
}

func flagNames(f uint16) string {
	var s string
	for _, n := range []struct {
		bit  uint16
		name string
	}{{cf, "CF"}, {pf, "PF"}, {af, "AF"}, {zf, "ZF"}, {sf, "SF"}, {of, "OF"}} {
		if f&n.bit != 0 {
			s += fmt.Sprintf(" %s", n.name)
		}
	}
	return "differs in" + s
}
