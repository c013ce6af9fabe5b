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

package disk_test

import (
	"os"

	gomock "github.com/golang/mock/gomock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/afero"

	"github.com/andreas-jonsson/virtualpc/emulator/peripheral"
	"github.com/andreas-jonsson/virtualpc/emulator/peripheral/disk"
	"github.com/andreas-jonsson/virtualpc/emulator/peripheral/pic"
	"github.com/andreas-jonsson/virtualpc/emulator/processor"
	"github.com/andreas-jonsson/virtualpc/emulator/processor/cpu"
)

const (
	commandBase = 0x1F0
	controlBase = 0x3F6
	irq         = 14

	imageSize = 2 * 16 * 63 * disk.SectorSize
)

type testProcessor struct {
	*cpu.CPU
	lines processor.InterruptLines
}

func (p *testProcessor) GetInterruptLines() processor.InterruptLines {
	return p.lines
}

func openImage(fs afero.Fs, name string, size int) afero.File {
	Expect(afero.WriteFile(fs, name, make([]byte, size), 0644)).To(Succeed())
	fp, err := fs.OpenFile(name, os.O_RDWR, 0)
	Expect(err).NotTo(HaveOccurred())
	return fp
}

var _ = Describe("ATA disk channel", func() {
	var (
		mockCtrl  *gomock.Controller
		mockLines *MockInterruptLines
		fs        afero.Fs
		p         *testProcessor
		dev       *disk.Device
	)

	status := func() byte {
		return p.InByte(commandBase + 7)
	}

	selectLBA := func(lba uint32, count byte) {
		p.OutByte(commandBase+2, count)
		p.OutByte(commandBase+3, byte(lba))
		p.OutByte(commandBase+4, byte(lba>>8))
		p.OutByte(commandBase+5, byte(lba>>16))
		p.OutByte(commandBase+6, 0xE0|byte(lba>>24)&0xF)
	}

	readSector := func() []byte {
		buf := make([]byte, 0, disk.SectorSize)
		for n := 0; n < disk.SectorSize/2; n++ {
			v := p.InWord(commandBase)
			buf = append(buf, byte(v), byte(v>>8))
		}
		return buf
	}

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		mockLines = NewMockInterruptLines(mockCtrl)
		fs = afero.NewMemMapFs()

		c, errs := cpu.NewCPU(cpu.Config{Model: processor.Model80386})
		Expect(errs).To(BeEmpty())
		p = &testProcessor{CPU: c, lines: mockLines}

		dev = &disk.Device{
			CommandBase: commandBase,
			ControlBase: controlBase,
			IRQ:         irq,
			SharedPorts: []uint16{controlBase + 1},
		}
		Expect(dev.Install(p)).To(Succeed())

		mockLines.EXPECT().Clear(irq).AnyTimes()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	Context("without drives", func() {
		BeforeEach(func() {
			mockLines.EXPECT().RequestLine(dev, irq).Return(irq)
			dev.Reset()
		})

		It("should report no drives", func() {
			Expect(dev.IsAnyDrivePresent()).To(BeFalse())
			Expect(dev.IsSelectedDrivePresent()).To(BeFalse())
			Expect(dev.DriveState(0)).To(Equal(disk.NotPresent))
		})

		It("should float the bus", func() {
			Expect(status()).To(Equal(byte(0xFF)))
			Expect(status()).To(Equal(byte(0xFF)))
			Expect(p.InByte(controlBase)).To(Equal(byte(0xFF)))
			Expect(p.InWord(commandBase)).To(Equal(uint16(0xFFFF)))
		})

		It("should ignore commands", func() {
			p.OutByte(commandBase+7, 0xEC)
			Expect(dev.Update(100)).To(Succeed())
			Expect(status()).To(Equal(byte(0xFF)))
		})
	})

	Context("with a master hard disk", func() {
		var image afero.File

		BeforeEach(func() {
			image = openImage(fs, "hd.img", imageSize)
			Expect(dev.Insert(0, disk.DriveHardDisk, image)).To(Succeed())

			mockLines.EXPECT().RequestLine(dev, irq).Return(irq)
			dev.Reset()
		})

		It("should bind ports except the shared ones", func() {
			Expect(p.GetMappedIODevice(commandBase)).To(BeIdenticalTo(dev))
			Expect(p.GetMappedIODevice(commandBase + 7)).To(BeIdenticalTo(dev))
			Expect(p.GetMappedIODevice(controlBase)).To(BeIdenticalTo(dev))
			Expect(p.GetMappedIODevice(controlBase + 1)).To(BeNil())
			Expect(p.InWord(controlBase)).To(Equal(uint16(0xFF50)))
			Expect(dev.Line()).To(Equal(irq))
		})

		It("should be ready after reset", func() {
			Expect(dev.IsAnyDrivePresent()).To(BeTrue())
			Expect(dev.IsSelectedDrivePresent()).To(BeTrue())
			Expect(dev.DriveState(0)).To(Equal(disk.Idle))
			Expect(status()).To(Equal(byte(0x50)))
			Expect(p.InByte(commandBase + 1)).To(Equal(byte(0x01)))
		})

		It("should select the master after reset", func() {
			p.OutByte(commandBase+6, 0x10)
			Expect(dev.SelectedDrive()).To(Equal(1))
			Expect(dev.IsSelectedDrivePresent()).To(BeFalse())
			Expect(status()).To(Equal(byte(0)))

			mockLines.EXPECT().RequestLine(dev, irq).Return(irq)
			dev.Reset()
			Expect(dev.SelectedDrive()).To(Equal(0))
		})

		It("should not change drive state on selection", func() {
			p.OutByte(commandBase+7, 0xEC)
			p.OutByte(commandBase+6, 0x10)
			p.OutByte(commandBase+6, 0x00)
			Expect(dev.DriveState(0)).To(Equal(disk.Busy))
		})

		It("should identify the device", func() {
			p.OutByte(commandBase+7, 0xEC)
			Expect(dev.DriveState(0)).To(Equal(disk.Busy))
			Expect(status() & 0x80).To(Equal(byte(0x80)))

			mockLines.EXPECT().Raise(irq)
			Expect(dev.Update(100)).To(Succeed())
			Expect(dev.DriveState(0)).To(Equal(disk.DataTransfer))
			Expect(status()).To(Equal(byte(0x58)))

			data := readSector()
			Expect(data[0:2]).To(Equal([]byte{0x40, 0x00}))
			Expect(data[2:4]).To(Equal([]byte{2, 0}))
			Expect(data[6:8]).To(Equal([]byte{16, 0}))
			Expect(data[12:14]).To(Equal([]byte{63, 0}))
			Expect(data[120:124]).To(Equal([]byte{0xE0, 0x07, 0, 0}))
			Expect(string(data[54:58])).To(Equal("IVTR"))

			Expect(dev.DriveState(0)).To(Equal(disk.Idle))
			Expect(status()).To(Equal(byte(0x50)))
		})

		It("should end a mixed width read at the sector boundary", func() {
			p.OutByte(commandBase+7, 0xEC)
			mockLines.EXPECT().Raise(irq)
			Expect(dev.Update(100)).To(Succeed())

			Expect(p.InByte(commandBase)).To(Equal(byte(0x40)))
			for n := 0; n < disk.SectorSize/2-1; n++ {
				p.InWord(commandBase)
			}
			Expect(dev.DriveState(0)).To(Equal(disk.DataTransfer))

			// Only one byte is left for the final word.
			Expect(func() { p.InWord(commandBase) }).NotTo(Panic())
			Expect(dev.DriveState(0)).To(Equal(disk.Idle))
			Expect(p.InWord(commandBase)).To(Equal(uint16(0)))
		})

		It("should end a mixed width write at the sector boundary", func() {
			selectLBA(3, 1)
			p.OutByte(commandBase+7, 0x30)
			Expect(dev.Update(100)).To(Succeed())

			p.OutByte(commandBase, 0xAB)
			for n := 0; n < disk.SectorSize/2-1; n++ {
				p.OutWord(commandBase, 0x0101)
			}
			Expect(dev.DriveState(0)).To(Equal(disk.DataTransfer))

			Expect(func() { p.OutWord(commandBase, 0x0202) }).NotTo(Panic())
			Expect(dev.DriveState(0)).To(Equal(disk.Busy))

			mockLines.EXPECT().Raise(irq)
			Expect(dev.Update(100)).To(Succeed())
			Expect(dev.DriveState(0)).To(Equal(disk.Idle))

			data, err := afero.ReadFile(fs, "hd.img")
			Expect(err).NotTo(HaveOccurred())
			sector := data[3*disk.SectorSize : 4*disk.SectorSize]
			Expect(sector[0:3]).To(Equal([]byte{0xAB, 0x01, 0x01}))
			Expect(sector[disk.SectorSize-1]).To(Equal(byte(0x02)))
		})

		It("should read sectors using LBA", func() {
			pattern := make([]byte, disk.SectorSize)
			for n := range pattern {
				pattern[n] = byte(n * 3)
			}
			_, err := image.WriteAt(pattern, 5*disk.SectorSize)
			Expect(err).NotTo(HaveOccurred())

			selectLBA(5, 1)
			p.OutByte(commandBase+7, 0x20)

			mockLines.EXPECT().Raise(irq)
			Expect(dev.Update(100)).To(Succeed())
			Expect(readSector()).To(Equal(pattern))
			Expect(dev.DriveState(0)).To(Equal(disk.Idle))
			Expect(p.InByte(commandBase + 2)).To(Equal(byte(0)))
		})

		It("should read multiple sectors using CHS", func() {
			_, err := image.WriteAt([]byte{0xAA}, 63*disk.SectorSize)
			Expect(err).NotTo(HaveOccurred())

			p.OutByte(commandBase+2, 2)
			p.OutByte(commandBase+3, 63) // Last sector of head 0
			p.OutByte(commandBase+4, 0)
			p.OutByte(commandBase+5, 0)
			p.OutByte(commandBase+6, 0xA0)
			p.OutByte(commandBase+7, 0x20)

			mockLines.EXPECT().Raise(irq).Times(2)
			Expect(dev.Update(100)).To(Succeed())
			readSector()
			Expect(dev.DriveState(0)).To(Equal(disk.Busy))

			Expect(dev.Update(100)).To(Succeed())
			Expect(readSector()[0]).To(Equal(byte(0xAA)))
			Expect(dev.DriveState(0)).To(Equal(disk.Idle))

			// Head 1, sector 1 is the last one transferred.
			Expect(p.InByte(commandBase + 3)).To(Equal(byte(1)))
			Expect(p.InByte(commandBase+6) & 0xF).To(Equal(byte(1)))
		})

		It("should write sectors", func() {
			selectLBA(7, 2)
			p.OutByte(commandBase+7, 0x30)

			Expect(dev.Update(100)).To(Succeed())
			Expect(dev.DriveState(0)).To(Equal(disk.DataTransfer))

			for sector := 0; sector < 2; sector++ {
				for n := 0; n < disk.SectorSize/4; n++ {
					p.OutDoubleWord(commandBase, uint32(0x04030201)+uint32(sector))
				}
				Expect(dev.DriveState(0)).To(Equal(disk.Busy))

				mockLines.EXPECT().Raise(irq)
				Expect(dev.Update(100)).To(Succeed())
			}
			Expect(dev.DriveState(0)).To(Equal(disk.Idle))

			data, err := afero.ReadFile(fs, "hd.img")
			Expect(err).NotTo(HaveOccurred())
			Expect(data[7*disk.SectorSize : 7*disk.SectorSize+4]).To(Equal([]byte{1, 2, 3, 4}))
			Expect(data[8*disk.SectorSize : 8*disk.SectorSize+4]).To(Equal([]byte{2, 2, 3, 4}))
		})

		It("should fail on sectors outside the image", func() {
			selectLBA(imageSize/disk.SectorSize, 1)

			mockLines.EXPECT().Raise(irq)
			p.OutByte(commandBase+7, 0x20)
			Expect(dev.DriveState(0)).To(Equal(disk.Error))
			Expect(status() & 0x01).To(Equal(byte(0x01)))
			Expect(p.InByte(commandBase + 1)).To(Equal(byte(0x10)))
		})

		It("should abort unknown commands until acknowledged", func() {
			mockLines.EXPECT().Raise(irq).Times(2)

			p.OutByte(commandBase+7, 0x50)
			Expect(dev.Update(100)).To(Succeed())
			Expect(dev.DriveState(0)).To(Equal(disk.Error))
			Expect(status()).To(Equal(byte(0x51)))
			Expect(p.InByte(commandBase + 1)).To(Equal(byte(0x04)))

			p.OutByte(commandBase+7, 0xEC)
			Expect(dev.DriveState(0)).To(Equal(disk.Error))

			p.OutByte(commandBase+7, 0x90)
			Expect(dev.Update(100)).To(Succeed())
			Expect(dev.DriveState(0)).To(Equal(disk.Idle))
			Expect(p.InByte(commandBase + 1)).To(Equal(byte(0x01)))
		})

		It("should recover from errors on software reset", func() {
			mockLines.EXPECT().Raise(irq)
			p.OutByte(commandBase+7, 0x50)
			Expect(dev.Update(100)).To(Succeed())
			Expect(dev.DriveState(0)).To(Equal(disk.Error))

			p.OutByte(controlBase, 0x04)
			p.OutByte(controlBase, 0x00)
			Expect(dev.DriveState(0)).To(Equal(disk.Idle))
			Expect(status()).To(Equal(byte(0x50)))
		})

		It("should not interrupt when disabled", func() {
			p.OutByte(controlBase, 0x02)
			p.OutByte(commandBase+7, 0x10)
			Expect(dev.Update(100)).To(Succeed())
			Expect(dev.DriveState(0)).To(Equal(disk.Idle))
		})

		It("should toggle the index pulse", func() {
			for n := 0; n < 9; n++ {
				Expect(p.InByte(controlBase) & 0x02).To(BeZero())
			}
			Expect(p.InByte(controlBase) & 0x02).To(Equal(byte(0x02)))
		})

		It("should change the translation geometry", func() {
			mockLines.EXPECT().Raise(irq).Times(2)

			p.OutByte(commandBase+2, 32)
			p.OutByte(commandBase+6, 0xA0|7)
			p.OutByte(commandBase+7, 0x91)
			Expect(dev.Update(100)).To(Succeed())

			p.OutByte(commandBase+6, 0xA0)
			p.OutByte(commandBase+7, 0xEC)
			Expect(dev.Update(100)).To(Succeed())
			data := readSector()
			Expect(data[110:114]).To(Equal([]byte{8, 0, 32, 0}))
		})
	})

	Context("with a slave CD-ROM", func() {
		BeforeEach(func() {
			Expect(dev.Insert(0, disk.DriveHardDisk, openImage(fs, "hd.img", imageSize))).To(Succeed())
			Expect(dev.Insert(1, disk.DriveCDROM, openImage(fs, "cd.iso", 16*2048))).To(Succeed())

			mockLines.EXPECT().RequestLine(dev, irq).Return(irq)
			dev.Reset()
			p.OutByte(commandBase+6, 0x10)
		})

		It("should abort IDENTIFY DEVICE with the packet signature", func() {
			mockLines.EXPECT().Raise(irq)
			p.OutByte(commandBase+7, 0xEC)
			Expect(dev.Update(100)).To(Succeed())

			Expect(dev.DriveState(1)).To(Equal(disk.Error))
			Expect(p.InByte(commandBase + 4)).To(Equal(byte(0x14)))
			Expect(p.InByte(commandBase + 5)).To(Equal(byte(0xEB)))
		})

		It("should identify as a packet device", func() {
			mockLines.EXPECT().Raise(irq)
			p.OutByte(commandBase+7, 0xA1)
			Expect(dev.Update(100)).To(Succeed())

			data := readSector()
			Expect(data[0:2]).To(Equal([]byte{0xC0, 0x85}))
			Expect(dev.DriveState(1)).To(Equal(disk.Idle))
			Expect(dev.DriveState(0)).To(Equal(disk.Idle))
		})

		It("should eject the media", func() {
			img, err := dev.Eject(1)
			Expect(err).NotTo(HaveOccurred())
			Expect(img).NotTo(BeNil())
			Expect(dev.DriveType(1)).To(Equal(disk.DriveNone))
			Expect(status()).To(Equal(byte(0)))

			_, err = dev.Eject(1)
			Expect(err).To(HaveOccurred())
		})
	})

	Context("without a free interrupt line", func() {
		It("should keep working by polling", func() {
			Expect(dev.Insert(0, disk.DriveHardDisk, openImage(fs, "hd.img", imageSize))).To(Succeed())
			mockLines.EXPECT().RequestLine(dev, irq).Return(processor.NoLine)
			dev.Reset()

			Expect(dev.Line()).To(Equal(processor.NoLine))
			p.OutByte(commandBase+7, 0xEC)
			Expect(dev.Update(100)).To(Succeed())
			Expect(status() & 0x08).To(Equal(byte(0x08)))
		})
	})
})

var _ = Describe("ATA disk channel with an interrupt controller", func() {
	It("should clear the pending line on status reads only", func() {
		fs := afero.NewMemMapFs()
		ctrl := &pic.Device{}
		dev := &disk.Device{CommandBase: commandBase, ControlBase: controlBase, IRQ: irq}
		Expect(dev.Insert(0, disk.DriveHardDisk, openImage(fs, "hd.img", imageSize))).To(Succeed())

		p, errs := cpu.NewCPU(cpu.Config{
			Model:       processor.Model80386,
			Peripherals: []peripheral.Peripheral{ctrl, dev},
		})
		Expect(errs).To(BeEmpty())
		p.Reset()
		Expect(dev.Line()).To(Equal(irq))

		p.OutByte(commandBase+7, 0xEC)
		Expect(dev.Update(100)).To(Succeed())
		Expect(p.InByte(0xA0) & 0x40).To(Equal(byte(0x40)))

		p.InByte(controlBase)
		Expect(p.InByte(0xA0) & 0x40).To(Equal(byte(0x40)))

		p.InByte(commandBase + 7)
		Expect(p.InByte(0xA0) & 0x40).To(BeZero())
	})
})
