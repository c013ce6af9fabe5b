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

// Package validator records a trace of every executed instruction. Two
// runs from the same initial state with the same input produce identical
// traces.
package validator

import (
	"io"
	"path/filepath"

	"github.com/andreas-jonsson/virtualpc/emulator/processor"
	"github.com/spf13/afero"
)

type Recorder struct {
	inScope bool
	current Event
	count   uint64

	outputChan chan Event
	quitChan   chan error
	closer     io.Closer
}

// NewRecorder starts a background writer for the encoder. A nil *Recorder
// is valid and records nothing.
func NewRecorder(enc EventEncoder, queueSize int) *Recorder {
	r := &Recorder{
		outputChan: make(chan Event, queueSize),
		quitChan:   make(chan error, 1),
	}

	go func() {
		var err error
		for ev := range r.outputChan {
			if err == nil {
				err = enc.Encode(ev)
			}
		}
		if cerr := enc.Close(); err == nil {
			err = cerr
		}
		r.quitChan <- err
	}()
	return r
}

// Create opens a trace file on fs. Files ending in .json get the JSON
// encoder, everything else the binary one.
func Create(fs afero.Fs, name string) (*Recorder, error) {
	fp, err := fs.Create(name)
	if err != nil {
		return nil, err
	}

	var enc EventEncoder = NewEncoder(fp)
	if filepath.Ext(name) == ".json" {
		enc = NewJSONEncoder(fp)
	}

	r := NewRecorder(enc, DefaultQueueSize)
	r.closer = fp
	return r, nil
}

func (r *Recorder) Begin(regs *processor.Registers) {
	if r == nil {
		return
	}
	r.inScope = true
	r.current = Event{Before: newRegsInfo(regs)}
}

func (r *Recorder) End(opcode, ext byte, regs *processor.Registers) {
	if r == nil || !r.inScope {
		return
	}
	r.inScope = false
	r.current.Opcode, r.current.OpcodeExt = opcode, ext
	r.current.After = newRegsInfo(regs)
	r.count++
	r.outputChan <- r.current
}

func (r *Recorder) Discard() {
	if r != nil {
		r.inScope = false
	}
}

func (r *Recorder) ReadByte(addr uint32, data byte) {
	if r == nil || !r.inScope {
		return
	}
	r.current.Reads = append(r.current.Reads, MemOp{addr, data})
}

func (r *Recorder) WriteByte(addr uint32, data byte) {
	if r == nil || !r.inScope {
		return
	}
	r.current.Writes = append(r.current.Writes, MemOp{addr, data})
}

func (r *Recorder) Count() uint64 {
	if r == nil {
		return 0
	}
	return r.count
}

// Close flushes all queued events and closes the output.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	close(r.outputChan)
	err := <-r.quitChan
	if r.closer != nil {
		if cerr := r.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
