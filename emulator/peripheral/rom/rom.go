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

// Package rom maps a read-only image, typically the BIOS, into the
// address space.
package rom

import (
	"errors"
	"io"

	"github.com/andreas-jonsson/virtualpc/emulator/memory"
	"github.com/andreas-jonsson/virtualpc/emulator/peripheral"
	"github.com/andreas-jonsson/virtualpc/emulator/processor"
)

type Device struct {
	peripheral.NullDevice

	Base    memory.Pointer
	RomName string
	Reader  io.Reader

	data []byte
	mem  *memory.Memory
}

func (m *Device) Install(p processor.Processor) error {
	if m.Reader == nil {
		return errors.New("no image")
	}

	var err error
	if m.data, err = io.ReadAll(m.Reader); err != nil {
		return err
	}
	if len(m.data) == 0 {
		return errors.New("empty image")
	}
	if m.RomName == "" {
		m.RomName = "ROM"
	}

	m.mem = p.GetMemory()
	m.mem.Protect(m.Base, m.Base+memory.Pointer(len(m.data)-1))
	m.mem.SetBytes(m.Base, m.data)
	return nil
}

func (m *Device) Name() string {
	return m.RomName
}

// Reset restores the image contents.
func (m *Device) Reset() {
	m.mem.SetBytes(m.Base, m.data)
}

func (m *Device) Size() int {
	return len(m.data)
}
