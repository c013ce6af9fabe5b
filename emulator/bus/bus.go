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

// Package bus routes port accesses from the processor to the single device
// that owns each port.
package bus

import (
	"errors"
	"io"
	"log"

	"github.com/andreas-jonsson/virtualpc/emulator/memory"
	"github.com/andreas-jonsson/virtualpc/emulator/processor"
)

const NumPorts = 0x10000

type Stats struct {
	RX, TX                 uint64
	UnmappedRX, UnmappedTX uint64
}

type Bus struct {
	ports [NumPorts]memory.IO
	stats Stats
	log   *log.Logger
}

func New(logger *log.Logger) *Bus {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Bus{log: logger}
}

// Install maps the listed ports to dev. A port that is already owned
// changes owner.
func (b *Bus) Install(dev memory.IO, ports ...uint16) error {
	if dev == nil {
		return errors.New("can not install nil device")
	}
	for _, port := range ports {
		b.ports[port] = dev
	}
	return nil
}

func (b *Bus) InstallRange(dev memory.IO, from, to uint16) error {
	if dev == nil {
		return errors.New("can not install nil device")
	}
	if from > to {
		return errors.New("invalid port range")
	}
	for port := int(from); port <= int(to); port++ {
		b.ports[port] = dev
	}
	return nil
}

func (b *Bus) Uninstall(dev memory.IO) {
	for port, d := range b.ports {
		if d == dev {
			b.ports[port] = nil
		}
	}
}

func (b *Bus) UninstallPorts(ports ...uint16) {
	for _, port := range ports {
		b.ports[port] = nil
	}
}

func (b *Bus) Owner(port uint16) memory.IO {
	return b.ports[port]
}

func (b *Bus) GetStats() Stats {
	return b.stats
}

func (b *Bus) unmapped(port uint16, write bool) {
	if write {
		b.stats.UnmappedTX++
	} else {
		b.stats.UnmappedRX++
	}
	b.log.Print(&processor.PortAccessFault{Port: port, Write: write})
}

func (b *Bus) in(port uint16) byte {
	if d := b.ports[port]; d != nil {
		return d.In(port)
	}
	b.unmapped(port, false)
	return 0xFF
}

func (b *Bus) out(port uint16, data byte) {
	if d := b.ports[port]; d != nil {
		d.Out(port, data)
		return
	}
	b.unmapped(port, true)
}

func (b *Bus) InByte(port uint16) byte {
	b.stats.RX++
	return b.in(port)
}

func (b *Bus) OutByte(port uint16, data byte) {
	b.stats.TX++
	b.out(port, data)
}

func (b *Bus) inWord(port uint16) uint16 {
	if d, ok := b.ports[port].(memory.WordIO); ok {
		return d.InWord(port)
	}
	return uint16(b.in(port)) | uint16(b.in(port+1))<<8
}

func (b *Bus) outWord(port uint16, data uint16) {
	if d, ok := b.ports[port].(memory.WordIO); ok {
		d.OutWord(port, data)
		return
	}
	b.out(port, byte(data))
	b.out(port+1, byte(data>>8))
}

func (b *Bus) InWord(port uint16) uint16 {
	b.stats.RX++
	return b.inWord(port)
}

func (b *Bus) OutWord(port uint16, data uint16) {
	b.stats.TX++
	b.outWord(port, data)
}

func (b *Bus) InDoubleWord(port uint16) uint32 {
	b.stats.RX++
	if d, ok := b.ports[port].(memory.DoubleWordIO); ok {
		return d.InDoubleWord(port)
	}
	return uint32(b.inWord(port)) | uint32(b.inWord(port+2))<<16
}

func (b *Bus) OutDoubleWord(port uint16, data uint32) {
	b.stats.TX++
	if d, ok := b.ports[port].(memory.DoubleWordIO); ok {
		d.OutDoubleWord(port, data)
		return
	}
	b.outWord(port, uint16(data))
	b.outWord(port+2, uint16(data>>16))
}
