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

package bus

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

type latch struct {
	last  uint32
	width int
}

func (d *latch) In(uint16) byte                   { d.width = 1; return byte(d.last) }
func (d *latch) Out(_ uint16, v byte)             { d.width = 1; d.last = uint32(v) }
func (d *latch) InWord(uint16) uint16             { d.width = 2; return uint16(d.last) }
func (d *latch) OutWord(_ uint16, v uint16)       { d.width = 2; d.last = uint32(v) }
func (d *latch) InDoubleWord(uint16) uint32       { d.width = 4; return d.last }
func (d *latch) OutDoubleWord(_ uint16, v uint32) { d.width = 4; d.last = v }

func TestUnmappedPorts(t *testing.T) {
	var buf bytes.Buffer
	b := New(log.New(&buf, "", 0))

	for i := 0; i < 2; i++ {
		if v := b.InByte(0x3F8); v != 0xFF {
			t.Errorf("Got 0x%X but expected 0xFF", v)
		}
		if v := b.InWord(0x3F8); v != 0xFFFF {
			t.Errorf("Got 0x%X but expected 0xFFFF", v)
		}
		if v := b.InDoubleWord(0x3F8); v != 0xFFFFFFFF {
			t.Errorf("Got 0x%X but expected 0xFFFFFFFF", v)
		}
	}
	b.OutByte(0x3F8, 0x12)

	if s := b.GetStats(); s.UnmappedRX != 14 || s.UnmappedTX != 1 {
		t.Errorf("Unexpected stats: %+v", s)
	}
	if !strings.Contains(buf.String(), "read from unmapped IO port: 0x3F8") {
		t.Errorf("Missing diagnostic: %q", buf.String())
	}
}

func TestWidthRouting(t *testing.T) {
	b := New(nil)
	d := &latch{}
	if err := b.InstallRange(d, 0x1F0, 0x1F7); err != nil {
		t.Fatal(err)
	}

	b.OutDoubleWord(0x1F0, 0xCAFEBABE)
	if d.width != 4 || b.InDoubleWord(0x1F0) != 0xCAFEBABE {
		t.Error("Double word access was not routed intact")
	}
	b.OutWord(0x1F7, 0x1234)
	if d.width != 2 || b.InWord(0x1F7) != 0x1234 {
		t.Error("Word access was not routed intact")
	}
	b.OutByte(0x1F3, 0x56)
	if d.width != 1 || b.InByte(0x1F3) != 0x56 {
		t.Error("Byte access was not routed intact")
	}
}

type bytePorts [4]byte

func (d *bytePorts) In(port uint16) byte     { return d[port&3] }
func (d *bytePorts) Out(port uint16, v byte) { d[port&3] = v }

func TestByteSplitting(t *testing.T) {
	b := New(nil)
	d := &bytePorts{}
	b.InstallRange(d, 0x3C8, 0x3CA)

	b.OutWord(0x3C8, 0x2211)
	if d[0] != 0x11 || d[1] != 0x22 {
		t.Errorf("Word should be split low byte first: %v", d)
	}
	// Port 0x3CB is unmapped so the top byte floats high.
	if v := b.InDoubleWord(0x3C8); v != 0xFF002211 {
		t.Errorf("Got 0x%X but expected 0xFF002211", v)
	}
}

func TestSingleOwner(t *testing.T) {
	b := New(nil)
	first, second := &latch{}, &latch{}

	b.Install(first, 0x60, 0x64)
	b.Install(second, 0x64)

	if b.Owner(0x60) != first {
		t.Error("Port 0x60 should still belong to the first device")
	}
	if b.Owner(0x64) != second {
		t.Error("Last registration should own port 0x64")
	}

	b.Uninstall(first)
	if b.Owner(0x60) != nil || b.Owner(0x64) != second {
		t.Error("Uninstall removed the wrong ports")
	}

	b.UninstallPorts(0x64)
	if b.Owner(0x64) != nil {
		t.Error("Port 0x64 should be unmapped")
	}

	if err := b.Install(nil, 0x70); err == nil {
		t.Error("Expected an error for a nil device")
	}
	if err := b.InstallRange(first, 0x10, 0x0F); err == nil {
		t.Error("Expected an error for an inverted range")
	}
}
