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

package monitor

import (
	"fmt"

	"github.com/andreas-jonsson/virtualpc/emulator/processor"
	"github.com/jedib0t/go-pretty/v6/table"
)

// Summary renders processor statistics and final register state as a
// text table.
func Summary(p processor.Processor, post []byte) string {
	s := p.GetStats()
	r := p.GetRegisters()

	t := table.NewWriter()
	t.SetTitle(fmt.Sprintf("%s summary", p.GetModel()))
	t.AppendHeader(table.Row{"Counter", "Value"})
	t.AppendRows([]table.Row{
		{"Instructions", s.NumInstructions},
		{"Interrupts", s.NumInterrupts},
		{"Decode faults", s.NumDecodeFaults},
		{"IO reads", s.RX},
		{"IO writes", s.TX},
	})
	t.AppendSeparator()
	t.AppendRow(table.Row{"CS:IP", fmt.Sprintf("%04X:%04X", r.CS, r.IP)})
	t.AppendRow(table.Row{"SS:SP", fmt.Sprintf("%04X:%04X", r.SS, r.SP())})
	if len(post) > 0 {
		t.AppendRow(table.Row{"Last POST code", fmt.Sprintf("0x%02X", post[len(post)-1])})
	}
	return t.Render()
}
