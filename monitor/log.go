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
	"bytes"
	"strings"
	"sync"
)

const maxLogLines = 200

// LogBuffer keeps the latest complete lines written to it. It is safe
// for concurrent use and is meant as the output of the machine logger.
type LogBuffer struct {
	lock    sync.Mutex
	lines   []string
	partial bytes.Buffer
}

func (b *LogBuffer) Write(p []byte) (int, error) {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.partial.Write(p)
	for {
		line, err := b.partial.ReadString('\n')
		if err != nil {
			b.partial.Reset()
			b.partial.WriteString(line)
			break
		}
		b.lines = append(b.lines, strings.TrimRight(line, "\n"))
	}
	if n := len(b.lines); n > maxLogLines {
		b.lines = b.lines[n-maxLogLines:]
	}
	return len(p), nil
}

// Lines returns a copy of the buffered lines, oldest first.
func (b *LogBuffer) Lines() []string {
	b.lock.Lock()
	defer b.lock.Unlock()
	return append([]string(nil), b.lines...)
}
