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

package ram

import (
	"testing"

	"github.com/andreas-jonsson/virtualpc/emulator/memory"
	"github.com/andreas-jonsson/virtualpc/emulator/peripheral"
	"github.com/andreas-jonsson/virtualpc/emulator/processor/cpu"
)

func install(t *testing.T, dev *Device) *memory.Memory {
	mem := memory.New(memory.MinSize, nil)
	if _, errs := cpu.NewCPU(cpu.Config{Memory: mem, Peripherals: []peripheral.Peripheral{dev}}); len(errs) != 0 {
		t.Fatal(errs)
	}
	return mem
}

func TestSize(t *testing.T) {
	mem := install(t, &Device{Size: 4 * memory.MinSize, Clear: true})
	if SizeOf(mem) != 4096 {
		t.Errorf("Got %dKB", SizeOf(mem))
	}
	if mem.ReadByte(0x1234) != 0 {
		t.Error("Memory should be cleared")
	}
}

func TestScrambleIsReproducible(t *testing.T) {
	a := install(t, &Device{Seed: 42})
	b := install(t, &Device{Seed: 42})

	same := true
	for addr := memory.Pointer(0); addr < 0x1000; addr++ {
		if a.ReadByte(addr) != b.ReadByte(addr) {
			same = false
		}
	}
	if !same {
		t.Error("Identical seeds should produce identical memory")
	}
}
