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

// Package disk implements an ATA disk channel with a master and a slave
// drive slot. Commands are accepted on port writes and serviced between
// instructions by Update, where the host image is accessed.
package disk

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/andreas-jonsson/virtualpc/emulator/processor"
)

const (
	regData = iota
	regError
	regSectorCount
	regSectorNumber
	regCylinderLow
	regCylinderHigh
	regDriveHead
	regStatus
)

const (
	controlNIEN = 0x02
	controlSRST = 0x04

	driveHeadLBA = 0x40
)

const updateInterval = 100

type Device struct {
	CommandBase uint16
	ControlBase uint16
	IRQ         int

	// SharedPorts are control block ports owned by another device.
	SharedPorts []uint16

	drives   [2]*drive
	selected int

	features, sectorCount, sectorNumber,
	cylinderLow, cylinderHigh, driveHead,
	control byte

	line    int
	pending bool

	lock  sync.Mutex
	p     processor.Processor
	lines processor.InterruptLines
	log   *log.Logger
}

func (m *Device) Install(p processor.Processor) error {
	if m.CommandBase == 0 {
		return errors.New("no command block address")
	}
	m.p = p
	m.log = p.GetLogger()
	m.lines = p.GetInterruptLines()
	m.line = processor.NoLine
	return nil
}

func (m *Device) Name() string {
	return "ATA Disk Channel"
}

// Reset re-initializes the drives, requests an interrupt line and binds
// the ports. The master slot is selected afterwards.
func (m *Device) Reset() {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.resetDrives()
	m.control = 0

	m.line = processor.NoLine
	if m.lines != nil {
		m.line = m.lines.RequestLine(m, m.IRQ)
	}
	if m.line == processor.NoLine {
		m.log.Printf("%s (0x%X): %v, polling only", m.Name(), m.CommandBase, processor.ErrNoLine)
	}

	m.p.UninstallIODevice(m)
	if err := m.p.InstallIODevice(m, m.CommandBase, m.CommandBase+7); err != nil {
		m.log.Print(err)
	}
	if m.ControlBase == 0 {
		return
	}

	for _, port := range []uint16{m.ControlBase, m.ControlBase + 1} {
		if m.isShared(port) {
			continue
		}
		if err := m.p.InstallIODeviceAt(m, port); err != nil {
			m.log.Print(err)
		}
	}
}

func (m *Device) isShared(port uint16) bool {
	for _, p := range m.SharedPorts {
		if p == port {
			return true
		}
	}
	return false
}

func (m *Device) resetDrives() {
	for _, d := range m.drives {
		if d != nil {
			d.reset()
		}
	}
	m.selected = 0
	m.driveHead = 0
	m.writeSignature()
	m.clearLine()
}

// writeSignature loads the task file with the device signature of the
// selected drive.
func (m *Device) writeSignature() {
	m.sectorCount, m.sectorNumber = 1, 1
	m.cylinderLow, m.cylinderHigh = 0, 0
	if d := m.drive(); d != nil && d.kind == DriveCDROM {
		m.cylinderLow, m.cylinderHigh = 0x14, 0xEB
	}
}

func (m *Device) UpdateInterval() int {
	return updateInterval
}

func (m *Device) Update(int) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	for _, d := range m.drives {
		if d != nil && d.state == Busy {
			m.service(d)
		}
	}
	return nil
}

func (m *Device) Close() error {
	m.lock.Lock()
	defer m.lock.Unlock()

	var errs []error
	for n, d := range m.drives {
		if d == nil {
			continue
		}
		if c, ok := d.image.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		m.drives[n] = nil
	}
	return errors.Join(errs...)
}

// Insert attaches an image to a drive slot. Slot 0 is the master.
func (m *Device) Insert(slot int, kind DriveType, image Image) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if slot < 0 || slot > 1 {
		return fmt.Errorf("invalid drive slot: %d", slot)
	}
	if kind == DriveNone {
		return errors.New("invalid drive type")
	}
	if m.drives[slot] != nil {
		return errors.New("has disk")
	}

	d, err := newDrive(kind, image)
	if err != nil {
		return err
	}
	d.reset()
	m.drives[slot] = d
	return nil
}

func (m *Device) Eject(slot int) (Image, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if slot < 0 || slot > 1 || m.drives[slot] == nil {
		return nil, errors.New("no disk")
	}
	img := m.drives[slot].image
	m.drives[slot] = nil
	return img, nil
}

func (m *Device) IsAnyDrivePresent() bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.drives[0] != nil || m.drives[1] != nil
}

func (m *Device) IsSelectedDrivePresent() bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.drive() != nil
}

func (m *Device) SelectedDrive() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.selected
}

func (m *Device) DriveState(slot int) State {
	m.lock.Lock()
	defer m.lock.Unlock()

	if slot < 0 || slot > 1 || m.drives[slot] == nil {
		return NotPresent
	}
	return m.drives[slot].state
}

func (m *Device) DriveType(slot int) DriveType {
	m.lock.Lock()
	defer m.lock.Unlock()

	if slot < 0 || slot > 1 || m.drives[slot] == nil {
		return DriveNone
	}
	return m.drives[slot].kind
}

// Line returns the allocated interrupt line or processor.NoLine.
func (m *Device) Line() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.line
}

func (m *Device) drive() *drive {
	return m.drives[m.selected]
}

func (m *Device) empty() bool {
	return m.drives[0] == nil && m.drives[1] == nil
}

func (m *Device) interrupt() {
	if m.control&controlNIEN != 0 {
		return
	}
	m.pending = true
	if m.line != processor.NoLine {
		m.lines.Raise(m.line)
	}
}

func (m *Device) clearLine() {
	m.pending = false
	if m.line != processor.NoLine && m.lines != nil {
		m.lines.Clear(m.line)
	}
}

// address decodes the task file into a sector number.
func (m *Device) address(d *drive) (int64, bool) {
	if m.driveHead&driveHeadLBA != 0 {
		lba := int64(m.driveHead&0xF)<<24 | int64(m.cylinderHigh)<<16 | int64(m.cylinderLow)<<8 | int64(m.sectorNumber)
		return lba, lba < d.totalSectors()
	}
	cylinder := uint16(m.cylinderHigh)<<8 | uint16(m.cylinderLow)
	return d.chsToLBA(cylinder, uint16(m.driveHead&0xF), uint16(m.sectorNumber))
}

func (m *Device) setAddress(d *drive, lba int64) {
	if m.driveHead&driveHeadLBA != 0 {
		m.sectorNumber = byte(lba)
		m.cylinderLow = byte(lba >> 8)
		m.cylinderHigh = byte(lba >> 16)
		m.driveHead = m.driveHead&0xF0 | byte(lba>>24)&0xF
		return
	}
	c, h, s := d.lbaToCHS(lba)
	m.sectorNumber = byte(s)
	m.cylinderLow, m.cylinderHigh = byte(c), byte(c>>8)
	m.driveHead = m.driveHead&0xF0 | byte(h)&0xF
}

func (m *Device) command(cmd byte) {
	d := m.drive()
	if d == nil {
		m.log.Printf("%s: command 0x%X to absent drive %d", m.Name(), cmd, m.selected)
		return
	}
	if d.busy {
		m.log.Printf("%s: command 0x%X while busy", m.Name(), cmd)
		return
	}
	if d.state == Error && cmd != cmdDiagnostic && cmd != cmdDeviceReset {
		m.log.Printf("%s: command 0x%X ignored in error state", m.Name(), cmd)
		return
	}

	m.clearLine()
	d.command = cmd
	d.setBusy()

	switch cmd {
	case cmdReadSectors, cmdReadSectors + 1, cmdWriteSectors, cmdWriteSectors + 1:
		lba, ok := m.address(d)
		if !ok {
			d.setError(errorIDNF)
			m.interrupt()
			return
		}
		d.lba, d.flush = lba, false
		if d.sectorsLeft = int(m.sectorCount); d.sectorsLeft == 0 {
			d.sectorsLeft = 256
		}
	}
}

func (m *Device) abort(d *drive) {
	d.setError(errorABRT)
	m.interrupt()
}

// service runs the busy phase of the current command.
func (m *Device) service(d *drive) {
	hd := d.kind == DriveHardDisk

	switch cmd := d.command; {
	case cmd == cmdReadSectors || cmd == cmdReadSectors+1:
		if !hd {
			m.abort(d)
			return
		}
		if err := d.readSector(); err != nil {
			m.log.Printf("%s: %v", m.Name(), err)
			d.setError(errorUNC)
			m.interrupt()
			return
		}
		d.startTransfer()
		m.interrupt()
	case cmd == cmdWriteSectors || cmd == cmdWriteSectors+1:
		if !hd {
			m.abort(d)
			return
		}
		if !d.flush {
			// The first sector is requested without an interrupt.
			d.startTransfer()
			return
		}
		d.flush = false
		if err := d.writeSector(); err != nil {
			m.log.Printf("%s: %v", m.Name(), err)
			d.writeFault = true
			m.abort(d)
			return
		}
		if m.completeSector(d) {
			d.startTransfer()
		} else {
			d.setIdle()
		}
		m.interrupt()
	case cmd == cmdIdentify || cmd == cmdIdentifyPacket:
		if hd != (cmd == cmdIdentify) {
			m.writeSignature()
			m.abort(d)
			return
		}
		d.identify()
		d.sectorsLeft = 1
		d.startTransfer()
		m.interrupt()
	case cmd&0xF0 == cmdRecalibrate:
		if !hd {
			m.abort(d)
			return
		}
		m.cylinderLow, m.cylinderHigh = 0, 0
		d.setIdle()
		m.interrupt()
	case cmd&0xF0 == cmdSeek:
		if _, ok := m.address(d); !ok || !hd {
			d.setError(errorIDNF)
		} else {
			d.setIdle()
		}
		m.interrupt()
	case cmd == cmdDiagnostic:
		d.reset()
		m.writeSignature()
		d.setIdle()
		m.interrupt()
	case cmd == cmdInitParameters:
		if !hd || m.sectorCount == 0 {
			m.abort(d)
			return
		}
		d.logicalSecs = uint16(m.sectorCount)
		d.logicalHeads = uint16(m.driveHead&0xF) + 1
		d.setIdle()
		m.interrupt()
	case cmd == cmdSetFeatures:
		d.setIdle()
		m.interrupt()
	case cmd == cmdDeviceReset:
		d.reset()
		m.writeSignature()
	default:
		m.log.Printf("%s: unsupported command 0x%X", m.Name(), cmd)
		m.abort(d)
	}
}

// completeSector advances the transfer after a full sector and reports
// whether more sectors follow.
func (m *Device) completeSector(d *drive) bool {
	m.setAddress(d, d.lba)
	m.sectorCount--
	d.lba++
	d.sectorsLeft--
	return d.sectorsLeft > 0
}

func (m *Device) readData(n int) uint16 {
	d := m.drive()
	if d == nil || d.state != DataTransfer || d.command&0xF0 == cmdWriteSectors {
		return 0
	}

	if n > d.remaining {
		n = d.remaining
	}

	pos := SectorSize - d.remaining
	v := uint16(d.buffer[pos])
	if n == 2 {
		v |= uint16(d.buffer[pos+1]) << 8
	}

	if d.remaining -= n; d.remaining > 0 {
		return v
	}

	if d.command&0xF0 != cmdReadSectors {
		d.setIdle()
		return v
	}
	if m.completeSector(d) {
		d.state, d.busy, d.dataRequest = Busy, true, false
	} else {
		d.setIdle()
	}
	return v
}

func (m *Device) writeData(v uint16, n int) {
	d := m.drive()
	if d == nil || d.state != DataTransfer || d.command&0xF0 != cmdWriteSectors {
		return
	}

	if n > d.remaining {
		n = d.remaining
	}

	pos := SectorSize - d.remaining
	d.buffer[pos] = byte(v)
	if n == 2 {
		d.buffer[pos+1] = byte(v >> 8)
	}

	if d.remaining -= n; d.remaining <= 0 {
		d.flush = true
		d.state, d.busy, d.dataRequest = Busy, true, false
	}
}

func (m *Device) status(clear bool) byte {
	d := m.drive()
	if d == nil {
		return 0
	}
	if clear {
		m.clearLine()
	}
	d.countStatusRead()
	return d.status()
}

func (m *Device) in(port uint16) byte {
	if m.empty() || m.isShared(port) {
		return 0xFF
	}

	if m.ControlBase != 0 && (port == m.ControlBase || port == m.ControlBase+1) {
		if port == m.ControlBase {
			return m.status(false)
		}
		v := byte(0xC0) | (^m.driveHead&0xF)<<2
		if m.selected == 0 {
			return v | 0x02
		}
		return v | 0x01
	}

	switch port - m.CommandBase {
	case regData:
		return byte(m.readData(1))
	case regError:
		if d := m.drive(); d != nil {
			return d.errorReg
		}
		return 0
	case regSectorCount:
		return m.sectorCount
	case regSectorNumber:
		return m.sectorNumber
	case regCylinderLow:
		return m.cylinderLow
	case regCylinderHigh:
		return m.cylinderHigh
	case regDriveHead:
		return m.driveHead | 0xA0
	case regStatus:
		return m.status(true)
	}
	return 0xFF
}

func (m *Device) out(port uint16, data byte) {
	if m.isShared(port) {
		return
	}
	if m.ControlBase != 0 && (port == m.ControlBase || port == m.ControlBase+1) {
		if port != m.ControlBase {
			m.log.Print(&processor.PortAccessFault{Port: port, Write: true, Device: m.Name()})
			return
		}
		if data&controlSRST != 0 && m.control&controlSRST == 0 {
			m.resetDrives()
		}
		m.control = data
		return
	}

	switch port - m.CommandBase {
	case regData:
		m.writeData(uint16(data), 1)
	case regError:
		m.features = data
	case regSectorCount:
		m.sectorCount = data
	case regSectorNumber:
		m.sectorNumber = data
	case regCylinderLow:
		m.cylinderLow = data
	case regCylinderHigh:
		m.cylinderHigh = data
	case regDriveHead:
		m.driveHead = data & 0x5F
		m.selected = int(data>>4) & 1
	case regStatus:
		m.command(data)
	}
}

func (m *Device) In(port uint16) byte {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.in(port)
}

func (m *Device) Out(port uint16, data byte) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.out(port, data)
}

func (m *Device) inWord(port uint16) uint16 {
	if port == m.CommandBase+regData {
		if m.empty() {
			return 0xFFFF
		}
		return m.readData(2)
	}
	return uint16(m.in(port)) | uint16(m.in(port+1))<<8
}

func (m *Device) outWord(port uint16, data uint16) {
	if port == m.CommandBase+regData {
		m.writeData(data, 2)
		return
	}
	m.out(port, byte(data))
	m.out(port+1, byte(data>>8))
}

func (m *Device) InWord(port uint16) uint16 {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.inWord(port)
}

func (m *Device) OutWord(port uint16, data uint16) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.outWord(port, data)
}

// Double word accesses to the data port are two consecutive word transfers.
func (m *Device) InDoubleWord(port uint16) uint32 {
	m.lock.Lock()
	defer m.lock.Unlock()

	if port == m.CommandBase+regData {
		return uint32(m.inWord(port)) | uint32(m.inWord(port))<<16
	}
	return uint32(m.inWord(port)) | uint32(m.inWord(port+2))<<16
}

func (m *Device) OutDoubleWord(port uint16, data uint32) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if port == m.CommandBase+regData {
		m.outWord(port, uint16(data))
		m.outWord(port, uint16(data>>16))
		return
	}
	m.outWord(port, uint16(data))
	m.outWord(port+2, uint16(data>>16))
}
