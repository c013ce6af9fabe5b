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
	"encoding/json"
	"fmt"
	"io"
	"reflect"
)

// Mismatch is the first event where two traces diverge. A nil event
// means that trace ended early.
type Mismatch struct {
	Index int
	A, B  *Event
}

func (m *Mismatch) Error() string {
	switch {
	case m.A == nil:
		return fmt.Sprintf("first trace ended at event %d", m.Index)
	case m.B == nil:
		return fmt.Sprintf("second trace ended at event %d", m.Index)
	case m.A.Opcode != m.B.Opcode || m.A.Before.IP != m.B.Before.IP:
		return fmt.Sprintf("event %d: opcode 0x%X at IP 0x%X, expected opcode 0x%X at IP 0x%X", m.Index, m.A.Opcode, m.A.Before.IP, m.B.Opcode, m.B.Before.IP)
	}
	return fmt.Sprintf("event %d: opcode 0x%X at IP 0x%X has different results", m.Index, m.A.Opcode, m.A.Before.IP)
}

// Compare reads two JSON traces and returns the number of equal events
// before the first *Mismatch.
func Compare(a, b io.Reader) (int, error) {
	decA, decB := json.NewDecoder(a), json.NewDecoder(b)

	for n := 0; ; n++ {
		evA, err := decode(decA)
		if err != nil {
			return n, err
		}
		evB, err := decode(decB)
		if err != nil {
			return n, err
		}

		switch {
		case evA == nil && evB == nil:
			return n, nil
		case evA == nil || evB == nil || !reflect.DeepEqual(evA, evB):
			return n, &Mismatch{Index: n, A: evA, B: evB}
		}
	}
}

func decode(dec *json.Decoder) (*Event, error) {
	var ev Event
	if err := dec.Decode(&ev); err == io.EOF {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return &ev, nil
}
