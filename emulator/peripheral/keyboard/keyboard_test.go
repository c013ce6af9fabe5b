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

package keyboard

import (
	"testing"

	"github.com/gdamore/tcell"

	"github.com/andreas-jonsson/virtualpc/emulator/peripheral"
	"github.com/andreas-jonsson/virtualpc/emulator/peripheral/pic"
	"github.com/andreas-jonsson/virtualpc/emulator/processor"
	"github.com/andreas-jonsson/virtualpc/emulator/processor/cpu"
)

func newMachine(t *testing.T) (*cpu.CPU, *Device, *pic.Device) {
	ctrl := &pic.Device{}
	kbd := &Device{IRQ: 1}
	p, errs := cpu.NewCPU(cpu.Config{
		Model:       processor.Model80386,
		Peripherals: []peripheral.Peripheral{ctrl, kbd},
	})
	for _, err := range errs {
		t.Fatal(err)
	}
	p.Reset()
	return p, kbd, ctrl
}

func TestScancodes(t *testing.T) {
	p, kbd, ctrl := newMachine(t)

	if err := kbd.SendKeyEvent(tcell.NewEventKey(tcell.KeyRune, 'a', tcell.ModNone)); err != nil {
		t.Fatal(err)
	}

	kbd.Update(0)
	if p.InByte(0x64)&statusOutputFull == 0 {
		t.Fatal("Output buffer should be full")
	}
	if ctrl.In(0x20)&2 == 0 {
		t.Error("Keyboard line should be raised")
	}

	kbd.Update(0)
	if v := p.InByte(0x60); Scancode(v) != ScanA {
		t.Errorf("Got scancode 0x%X", v)
	}
	if p.InByte(0x64)&statusOutputFull != 0 || ctrl.In(0x20)&2 != 0 {
		t.Error("Reading the data port should empty the buffer")
	}

	kbd.Update(0)
	if v := p.InByte(0x60); Scancode(v) != ScanA|KeyUpMask {
		t.Errorf("Got break code 0x%X", v)
	}

	if kbd.SendKeyEvent(tcell.NewEventKey(tcell.KeyCtrlA, 0, tcell.ModCtrl)) == nil {
		t.Error("Expected an error for an unmapped key")
	}
}

func TestControllerCommands(t *testing.T) {
	p, kbd, _ := newMachine(t)

	read := func() byte {
		kbd.Update(0)
		return p.InByte(0x60)
	}

	p.OutByte(0x64, 0xAA)
	if v := read(); v != 0x55 {
		t.Errorf("Self test returned 0x%X", v)
	}
	if p.InByte(0x64)&statusSystem == 0 {
		t.Error("System flag should be set after self test")
	}

	p.OutByte(0x64, 0x20)
	if v := read(); v != defaultCommandByte {
		t.Errorf("Got command byte 0x%X", v)
	}

	p.OutByte(0x60, 0xFF)
	if read() != 0xFA || read() != 0xAA {
		t.Error("Keyboard reset should acknowledge and pass")
	}

	p.OutByte(0x64, 0xAD)
	kbd.Push(ScanB)
	kbd.Update(0)
	if p.InByte(0x64)&statusOutputFull != 0 {
		t.Error("Disabled keyboard should not deliver scancodes")
	}
	p.OutByte(0x64, 0xAE)
	if Scancode(read()) != ScanB {
		t.Error("Scancode should be delivered after enabling")
	}
}

func TestA20Control(t *testing.T) {
	p, _, _ := newMachine(t)
	mem := p.GetMemory()

	if mem.A20() {
		t.Fatal("A20 should be disabled after reset")
	}

	p.OutByte(0x64, 0xD1)
	p.OutByte(0x60, outputPortReset|outputPortA20)
	if !mem.A20() {
		t.Error("Output port write should enable A20")
	}

	p.OutByte(0x92, 0)
	if mem.A20() || p.InByte(0x92)&outputPortA20 != 0 {
		t.Error("Port 0x92 should disable A20")
	}

	p.OutByte(0x64, 0xDF)
	if p.InByte(0x92)&outputPortA20 == 0 {
		t.Error("Port 0x92 should reflect the gate")
	}
}

func TestResetPulse(t *testing.T) {
	p, _, _ := newMachine(t)
	p.CS, p.IP = 0, 0x100
	p.GetMemory().SetA20(true)

	p.OutByte(0x64, 0xFE)
	p.Step()

	if p.CS != 0xFFFF {
		t.Errorf("Expected a system reset. (CS = 0x%X)", p.CS)
	}
	if p.GetMemory().A20() {
		t.Error("A20 should be disabled by the reset")
	}
}
