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

// Package ram sizes the address space and sets its power-on contents.
package ram

import (
	"math/rand"

	"github.com/andreas-jonsson/virtualpc/emulator/memory"
	"github.com/andreas-jonsson/virtualpc/emulator/peripheral"
	"github.com/andreas-jonsson/virtualpc/emulator/processor"
)

type Device struct {
	peripheral.NullDevice

	// Size in bytes. Zero keeps the current size.
	Size int

	// Clear leaves memory zeroed. Otherwise it is filled with noise
	// generated from Seed so runs stay reproducible.
	Clear bool
	Seed  int64
}

func (m *Device) Install(p processor.Processor) error {
	mem := p.GetMemory()
	if m.Size > 0 {
		mem.SetSize(m.Size)
	}

	if !m.Clear {
		buf := make([]byte, mem.Size())
		rand.New(rand.NewSource(m.Seed)).Read(buf)
		mem.SetBytes(0, buf)
	}
	return nil
}

func (m *Device) Name() string {
	return "RAM"
}

// SizeOf reports the installed memory in kilobytes.
func SizeOf(mem *memory.Memory) int {
	return mem.Size() / 1024
}
