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

// Package palette implements the VGA DAC color registers.
package palette

import (
	"image/color"
	"log"

	"github.com/andreas-jonsson/virtualpc/emulator/peripheral"
	"github.com/andreas-jonsson/virtualpc/emulator/processor"
)

const NumColors = 256

const (
	readIndexPort  = 0x3C7
	writeIndexPort = 0x3C8
	dataPort       = 0x3C9
)

type Device struct {
	peripheral.NullDevice

	colors [NumColors][3]byte

	readIndex, writeIndex byte
	readComp, writeComp   int
	reading               bool

	p   processor.Processor
	log *log.Logger
}

func (m *Device) Install(p processor.Processor) error {
	m.p = p
	m.log = p.GetLogger()
	return nil
}

func (m *Device) Name() string {
	return "VGA Palette"
}

func (m *Device) Reset() {
	m.colors = [NumColors][3]byte{}
	m.readIndex, m.writeIndex = 0, 0
	m.readComp, m.writeComp = 0, 0
	m.reading = false

	if err := m.p.InstallIODevice(m, readIndexPort, dataPort); err != nil {
		m.log.Print(err)
	}
}

// Color returns entry i scaled to 8 bits per component.
func (m *Device) Color(i byte) color.RGBA {
	c := m.colors[i]
	scale := func(v byte) byte {
		return v<<2 | v>>4
	}
	return color.RGBA{R: scale(c[0]), G: scale(c[1]), B: scale(c[2]), A: 0xFF}
}

func (m *Device) In(port uint16) byte {
	switch port {
	case readIndexPort:
		if m.reading {
			return 3
		}
		return 0
	case writeIndexPort:
		return m.writeIndex
	case dataPort:
		v := m.colors[m.readIndex][m.readComp]
		if m.readComp++; m.readComp == 3 {
			m.readComp = 0
			m.readIndex++
		}
		return v
	}
	return 0xFF
}

func (m *Device) Out(port uint16, data byte) {
	switch port {
	case readIndexPort:
		m.readIndex, m.readComp = data, 0
		m.reading = true
	case writeIndexPort:
		m.writeIndex, m.writeComp = data, 0
		m.reading = false
	case dataPort:
		m.colors[m.writeIndex][m.writeComp] = data & 0x3F
		if m.writeComp++; m.writeComp == 3 {
			m.writeComp = 0
			m.writeIndex++
		}
	}
}
