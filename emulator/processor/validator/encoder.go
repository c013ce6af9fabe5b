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

package validator

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"encoding/json"
	"io"
)

type EventEncoder interface {
	Encode(Event) error
	Close() error
}

// Encoder writes events in a compact gzip compressed binary form.
type Encoder struct {
	writer *gzip.Writer
	buf    []byte
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{writer: gzip.NewWriter(w)}
}

func (enc *Encoder) Encode(event Event) error {
	b := enc.buf[:0]
	b = append(b, event.Opcode, event.OpcodeExt)

	infos := [2]RegsInfo{event.Before, event.After}
	for _, info := range infos {
		b = binary.BigEndian.AppendUint16(b, info.IP)
		b = binary.BigEndian.AppendUint16(b, info.Flags)
		for _, reg := range info.Regs {
			b = binary.BigEndian.AppendUint32(b, reg)
		}
	}

	ops := [2][]MemOp{event.Reads, event.Writes}
	for _, list := range ops {
		b = binary.BigEndian.AppendUint16(b, uint16(len(list)))
		for _, op := range list {
			b = binary.BigEndian.AppendUint32(b, op.Addr)
			b = append(b, op.Data)
		}
	}

	enc.buf = b
	_, err := enc.writer.Write(b)
	return err
}

func (enc *Encoder) Close() error {
	return enc.writer.Close()
}

// JSONEncoder writes one JSON object per event.
type JSONEncoder struct {
	writer *bufio.Writer
	enc    *json.Encoder
}

func NewJSONEncoder(w io.Writer) *JSONEncoder {
	bw := bufio.NewWriter(w)
	return &JSONEncoder{writer: bw, enc: json.NewEncoder(bw)}
}

func (enc *JSONEncoder) Encode(event Event) error {
	return enc.enc.Encode(event)
}

func (enc *JSONEncoder) Close() error {
	return enc.writer.Flush()
}
