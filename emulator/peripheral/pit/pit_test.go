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

package pit

import (
	"testing"

	"github.com/andreas-jonsson/virtualpc/emulator/peripheral"
	"github.com/andreas-jonsson/virtualpc/emulator/peripheral/pic"
	"github.com/andreas-jonsson/virtualpc/emulator/processor"
	"github.com/andreas-jonsson/virtualpc/emulator/processor/cpu"
)

func newTimer(t *testing.T) (*cpu.CPU, *Device, *pic.Device) {
	ctrl := &pic.Device{}
	timer := &Device{CyclesPerTick: 1}
	p, errs := cpu.NewCPU(cpu.Config{
		Model:       processor.Model8086,
		Peripherals: []peripheral.Peripheral{ctrl, timer},
	})
	for _, err := range errs {
		t.Fatal(err)
	}
	p.Reset()
	return p, timer, ctrl
}

func TestChannelZeroInterrupt(t *testing.T) {
	p, timer, ctrl := newTimer(t)

	p.OutByte(0x43, 0x36) // Channel 0, lo/hi, mode 3
	p.OutByte(0x40, 100)
	p.OutByte(0x40, 0)

	if f := timer.GetFrequency(0); f != Frequency/100.0 {
		t.Errorf("Got frequency %f", f)
	}

	timer.Update(99)
	if ctrl.In(0x20)&1 != 0 {
		t.Fatal("Timer should not have wrapped yet")
	}

	timer.Update(1)
	if ctrl.In(0x20)&1 == 0 {
		t.Error("Timer wrap should raise line 0")
	}
	if v, _ := ctrl.GetInterrupt(); v != 0x08 {
		t.Errorf("Got vector 0x%X", v)
	}
}

func TestLatchCount(t *testing.T) {
	p, timer, _ := newTimer(t)

	p.OutByte(0x43, 0x34)
	p.OutByte(0x40, 0x00)
	p.OutByte(0x40, 0x10) // 0x1000
	timer.Update(0x10)

	p.OutByte(0x43, 0x00) // Latch channel 0
	timer.Update(0x100)

	lo, hi := p.InByte(0x40), p.InByte(0x40)
	if v := uint16(hi)<<8 | uint16(lo); v != 0x0FF0 {
		t.Errorf("Got latched count 0x%X", v)
	}

	lo, hi = p.InByte(0x40), p.InByte(0x40)
	if v := uint16(hi)<<8 | uint16(lo); v != 0x0EF0 {
		t.Errorf("Got count 0x%X", v)
	}
}

func TestRefreshToggle(t *testing.T) {
	p, _, _ := newTimer(t)

	a, b := p.InByte(0x61), p.InByte(0x61)
	if (a^b)&portBRefresh == 0 {
		t.Error("Refresh bit should toggle on every read")
	}

	p.OutByte(0x61, 0x03)
	if p.InByte(0x61)&0x0F != 0x03 {
		t.Error("Gate and speaker bits should read back")
	}
}

func TestCyclesPerTick(t *testing.T) {
	_, timer, _ := newTimer(t)
	timer.CyclesPerTick = 4
	timer.Out(0x43, 0x34)
	timer.Out(0x40, 10)
	timer.Out(0x40, 0)

	timer.Update(3)
	timer.Update(3)
	if c := timer.channels[0].counter; c != 9 {
		t.Errorf("Got counter %d but expected 9", c)
	}
}
