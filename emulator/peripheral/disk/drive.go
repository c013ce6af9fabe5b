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

package disk

import (
	"errors"
	"fmt"
	"io"
	"os"
)

const SectorSize = 512

// Image is the backing storage of a drive. Any afero.File satisfies it.
type Image interface {
	io.ReaderAt
	io.WriterAt
	Stat() (os.FileInfo, error)
}

type DriveType int

const (
	DriveNone DriveType = iota
	DriveHardDisk
	DriveCDROM
)

func (t DriveType) String() string {
	switch t {
	case DriveHardDisk:
		return "hard disk"
	case DriveCDROM:
		return "CD-ROM"
	}
	return "none"
}

type State int

const (
	NotPresent State = iota
	Idle
	Busy
	DataTransfer
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Busy:
		return "busy"
	case DataTransfer:
		return "data transfer"
	case Error:
		return "error"
	}
	return "not present"
}

// Status register bits.
const (
	statusERR  = 0x01
	statusIDX  = 0x02
	statusCORR = 0x04
	statusDRQ  = 0x08
	statusDSC  = 0x10
	statusDF   = 0x20
	statusDRDY = 0x40
	statusBSY  = 0x80
)

// Error register bits.
const (
	errorAMNF = 0x01
	errorABRT = 0x04
	errorIDNF = 0x10
	errorUNC  = 0x40
)

const (
	cmdDeviceReset    = 0x08
	cmdRecalibrate    = 0x10
	cmdReadSectors    = 0x20
	cmdWriteSectors   = 0x30
	cmdSeek           = 0x70
	cmdDiagnostic     = 0x90
	cmdInitParameters = 0x91
	cmdIdentifyPacket = 0xA1
	cmdIdentify       = 0xEC
	cmdSetFeatures    = 0xEF
)

const indexPulseReads = 10

var (
	errNoImage     = errors.New("no image")
	errImageTooBig = errors.New("image is too large for 28-bit addressing")
)

type drive struct {
	kind  DriveType
	image Image
	size  int64

	cylinders, heads, sectors uint16
	logicalHeads, logicalSecs uint16

	state State
	busy, driveReady, writeFault, seekComplete,
	dataRequest, correctedData, indexPulse bool
	indexPulseCount int
	err             bool
	errorReg        byte

	command     byte
	flush       bool
	buffer      [SectorSize]byte
	remaining   int
	lba         int64
	sectorsLeft int
}

func newDrive(kind DriveType, image Image) (*drive, error) {
	if image == nil {
		return nil, errNoImage
	}
	fi, err := image.Stat()
	if err != nil {
		return nil, err
	}

	d := &drive{kind: kind, image: image, size: fi.Size()}
	if d.totalSectors() > 0x0FFFFFFF {
		return nil, errImageTooBig
	}

	if kind == DriveHardDisk {
		d.heads, d.sectors = 16, 63
		cylinders := d.totalSectors() / (16 * 63)
		if cylinders > 16383 {
			cylinders = 16383
		}
		d.cylinders = uint16(cylinders)
		d.logicalHeads, d.logicalSecs = d.heads, d.sectors
	}
	return d, nil
}

func (d *drive) totalSectors() int64 {
	return d.size / SectorSize
}

// reset puts the drive in the post reset condition.
func (d *drive) reset() {
	d.state = Idle
	d.busy, d.err, d.dataRequest, d.writeFault, d.flush = false, false, false, false, false
	d.driveReady, d.seekComplete = true, true
	d.errorReg = errorAMNF // Diagnostic code: no error.
	d.remaining, d.sectorsLeft = 0, 0
	d.logicalHeads, d.logicalSecs = d.heads, d.sectors
}

func (d *drive) status() byte {
	var s byte
	for _, f := range []struct {
		set bool
		bit byte
	}{
		{d.busy, statusBSY},
		{d.driveReady, statusDRDY},
		{d.writeFault, statusDF},
		{d.seekComplete, statusDSC},
		{d.dataRequest, statusDRQ},
		{d.correctedData, statusCORR},
		{d.indexPulse, statusIDX},
		{d.err, statusERR},
	} {
		if f.set {
			s |= f.bit
		}
	}
	return s
}

func (d *drive) countStatusRead() {
	if d.indexPulseCount++; d.indexPulseCount >= indexPulseReads {
		d.indexPulseCount = 0
		d.indexPulse = !d.indexPulse
	}
}

func (d *drive) setBusy() {
	d.state = Busy
	d.busy, d.dataRequest, d.err = true, false, false
	d.errorReg = 0
}

func (d *drive) setIdle() {
	d.state = Idle
	d.busy, d.dataRequest = false, false
	d.seekComplete = true
}

func (d *drive) setError(code byte) {
	d.state = Error
	d.busy, d.dataRequest = false, false
	d.err, d.errorReg = true, code
}

func (d *drive) startTransfer() {
	d.state = DataTransfer
	d.busy, d.dataRequest = false, true
	d.remaining = SectorSize
}

// chsToLBA converts an address in the current logical geometry. The
// second return value is false if the address does not exist.
func (d *drive) chsToLBA(cylinder, head, sector uint16) (int64, bool) {
	if sector == 0 || sector > d.logicalSecs || head >= d.logicalHeads {
		return 0, false
	}
	lba := (int64(cylinder)*int64(d.logicalHeads)+int64(head))*int64(d.logicalSecs) + int64(sector) - 1
	return lba, lba < d.totalSectors()
}

func (d *drive) lbaToCHS(lba int64) (cylinder, head, sector uint16) {
	spc := int64(d.logicalHeads) * int64(d.logicalSecs)
	if spc == 0 {
		return 0, 0, 0
	}
	cylinder = uint16(lba / spc)
	head = uint16((lba % spc) / int64(d.logicalSecs))
	sector = uint16(lba%int64(d.logicalSecs)) + 1
	return
}

func (d *drive) readSector() error {
	if d.lba < 0 || d.lba >= d.totalSectors() {
		return fmt.Errorf("sector %d out of range", d.lba)
	}
	_, err := d.image.ReadAt(d.buffer[:], d.lba*SectorSize)
	return err
}

func (d *drive) writeSector() error {
	if d.lba < 0 || d.lba >= d.totalSectors() {
		return fmt.Errorf("sector %d out of range", d.lba)
	}
	_, err := d.image.WriteAt(d.buffer[:], d.lba*SectorSize)
	return err
}

func putString(buf []byte, word int, s string, words int) {
	b := buf[word*2 : (word+words)*2]
	for i := range b {
		b[i] = ' '
	}
	copy(b, s)
	// ATA strings store two characters per word, first character in the high byte.
	for i := 0; i < len(b); i += 2 {
		b[i], b[i+1] = b[i+1], b[i]
	}
}

func putWord(buf []byte, word int, v uint16) {
	buf[word*2] = byte(v)
	buf[word*2+1] = byte(v >> 8)
}

func (d *drive) identify() {
	buf := d.buffer[:]
	for i := range buf {
		buf[i] = 0
	}

	putString(buf, 10, "VPC0000000000001", 10)
	putString(buf, 23, "1.0", 4)

	if d.kind == DriveCDROM {
		putWord(buf, 0, 0x85C0) // ATAPI, CD-ROM, removable, 12 byte packets
		putString(buf, 27, "VIRTUALPC ATAPI CD-ROM", 20)
		putWord(buf, 49, 0x0200)
		return
	}

	total := d.totalSectors()
	current := int64(d.logicalHeads) * int64(d.logicalSecs) * int64(d.cylinders)

	putWord(buf, 0, 0x0040) // Fixed disk
	putWord(buf, 1, d.cylinders)
	putWord(buf, 3, d.heads)
	putWord(buf, 6, d.sectors)
	putString(buf, 27, "VIRTUALPC ATA HARD DISK", 20)
	putWord(buf, 49, 0x0200) // LBA supported
	putWord(buf, 53, 0x0001)
	putWord(buf, 54, d.cylinders)
	putWord(buf, 55, d.logicalHeads)
	putWord(buf, 56, d.logicalSecs)
	putWord(buf, 57, uint16(current))
	putWord(buf, 58, uint16(current>>16))
	putWord(buf, 60, uint16(total))
	putWord(buf, 61, uint16(total>>16))
}
