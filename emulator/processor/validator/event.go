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

package validator

import (
	"github.com/andreas-jonsson/virtualpc/emulator/processor"
)

const DefaultQueueSize = 1024

type MemOp struct {
	Addr uint32
	Data byte
}

type RegsInfo struct {
	Regs  [14]uint32
	IP    uint16
	Flags uint16
}

func newRegsInfo(r *processor.Registers) RegsInfo {
	return RegsInfo{
		Regs:  r.GetValues(),
		IP:    r.IP,
		Flags: r.PackFlags(),
	}
}

// Event is the record of a single executed instruction.
type Event struct {
	Opcode, OpcodeExt byte
	Before, After     RegsInfo
	Reads, Writes     []MemOp
}
