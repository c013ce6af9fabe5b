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

// Package dma implements the DMA page registers and the POST diagnostic
// port. The DMA controllers themselves are not emulated.
package dma

import (
	"log"

	"github.com/andreas-jonsson/virtualpc/emulator/peripheral"
	"github.com/andreas-jonsson/virtualpc/emulator/processor"
)

const postPort = 0x80

type Device struct {
	peripheral.NullDevice

	pages [0x10]byte
	post  []byte

	p   processor.Processor
	log *log.Logger
}

func (m *Device) Install(p processor.Processor) error {
	m.p = p
	m.log = p.GetLogger()
	return nil
}

func (m *Device) Name() string {
	return "DMA Page Registers"
}

func (m *Device) Reset() {
	m.pages = [0x10]byte{}
	m.post = m.post[:0]

	for _, r := range [][2]uint16{{0x00, 0x0F}, {0x80, 0x8F}, {0xC0, 0xDF}} {
		if err := m.p.InstallIODevice(m, r[0], r[1]); err != nil {
			m.log.Print(err)
		}
	}
}

// POSTCodes returns every code written to the diagnostic port since reset.
func (m *Device) POSTCodes() []byte {
	return append([]byte(nil), m.post...)
}

func (m *Device) In(port uint16) byte {
	if port > postPort && port <= 0x8F {
		return m.pages[port&0xF]
	}
	return 0xFF
}

func (m *Device) Out(port uint16, data byte) {
	switch {
	case port == postPort:
		m.post = append(m.post, data)
		m.log.Printf("POST: 0x%02X", data)
	case port > postPort && port <= 0x8F:
		m.pages[port&0xF] = data
	}
}
