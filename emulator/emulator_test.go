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

package emulator

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/andreas-jonsson/virtualpc/emulator/peripheral"
	"github.com/andreas-jonsson/virtualpc/emulator/peripheral/disk"
	"github.com/andreas-jonsson/virtualpc/emulator/processor"
	"github.com/spf13/afero"
)

// newBIOS returns a 16 byte image that ends up at the reset vector.
func newBIOS(program ...byte) []byte {
	img := make([]byte, 16)
	for i := range img {
		img[i] = 0xF4 // HLT
	}
	copy(img, program)
	return img
}

func newFs(t *testing.T, bios []byte) afero.Fs {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "bios.bin", bios, 0644); err != nil {
		t.Fatal(err)
	}
	return fs
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.BIOS = "bios.bin"
	cfg.RAMSize = 0
	return cfg
}

func TestPOSTAndHalt(t *testing.T) {
	fs := newFs(t, newBIOS(
		0xB0, 0x42, // MOV AL,0x42
		0xE6, 0x80, // OUT 0x80,AL
	))

	m, err := New(testConfig(), fs, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	if err := m.Run(context.Background()); !errors.Is(err, processor.ErrCPUHalt) {
		t.Fatalf("Expected a halt but got: %v", err)
	}
	if codes := m.POST.POSTCodes(); !bytes.Equal(codes, []byte{0x42}) {
		t.Errorf("Got POST codes %X", codes)
	}
	if n := m.Stats().NumInstructions; n != 3 {
		t.Errorf("Got %d instructions but expected 3", n)
	}
}

func TestBIOSIsReadOnly(t *testing.T) {
	fs := newFs(t, newBIOS(
		0xB8, 0x00, 0xF0, // MOV AX,0xF000
		0x8E, 0xD8, // MOV DS,AX
		0xC6, 0x06, 0xF0, 0xFF, 0x00, // MOV BYTE [0xFFF0],0
	))

	m, err := New(testConfig(), fs, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	m.Run(context.Background())
	if v := m.Memory().ReadByte(0xFFFF0); v != 0xB8 {
		t.Errorf("BIOS was modified. (Got 0x%X)", v)
	}
}

func TestRunCancel(t *testing.T) {
	fs := newFs(t, newBIOS(0xEB, 0xFE)) // JMP $

	m, err := New(testConfig(), fs, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Run(ctx); err != context.Canceled {
		t.Errorf("Expected context.Canceled but got: %v", err)
	}
}

func TestMissingBIOS(t *testing.T) {
	if _, err := New(testConfig(), afero.NewMemMapFs(), nil); err == nil {
		t.Error("Expected an error without a BIOS image")
	}
}

func TestDriveImages(t *testing.T) {
	fs := newFs(t, newBIOS())
	if err := afero.WriteFile(fs, "hd.img", make([]byte, 16*63*disk.SectorSize), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := testConfig()
	cfg.Drives[PrimaryMaster] = DriveImage{Path: "hd.img", Kind: disk.DriveHardDisk}

	m, err := New(cfg, fs, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	if m.Primary.DriveType(0) != disk.DriveHardDisk || m.Secondary.IsAnyDrivePresent() {
		t.Error("Drive was inserted in the wrong slot")
	}

	p := m.Processor()
	if s := p.InByte(0x1F7); s != 0x50 {
		t.Errorf("Got primary status 0x%X but expected 0x50", s)
	}
	if s := p.InByte(0x177); s != 0xFF {
		t.Errorf("Got secondary status 0x%X but expected 0xFF", s)
	}
	if s := p.InByte(0x3F6); s != 0x50 {
		t.Errorf("Got alternate status 0x%X but expected 0x50", s)
	}
	if p.GetMappedIODevice(0x3F6) != m.Primary || p.GetMappedIODevice(0x3F7) != nil {
		t.Error("Only the drive address register should be left unbound")
	}

	cfg.Drives[PrimarySlave] = DriveImage{Path: "missing.img", Kind: disk.DriveHardDisk}
	if _, err := New(cfg, fs, nil); err == nil {
		t.Error("Expected an error for a missing image")
	}
}

func TestTraceIsDeterministic(t *testing.T) {
	fs := newFs(t, newBIOS(
		0xB9, 0x03, 0x00, // MOV CX,3
		0x31, 0xC0, // XOR AX,AX
		0x40,       // INC AX
		0xE2, 0xFD, // LOOP -3
	))

	for _, name := range []string{"a.json", "b.json"} {
		cfg := testConfig()
		cfg.Trace = name
		cfg.Seed = 7

		m, err := New(cfg, fs, nil)
		if err != nil {
			t.Fatal(err)
		}
		m.Run(context.Background())
		if err := m.Close(); err != nil {
			t.Fatal(err)
		}
	}

	a, _ := afero.ReadFile(fs, "a.json")
	b, _ := afero.ReadFile(fs, "b.json")
	if len(a) == 0 || !bytes.Equal(a, b) {
		t.Error("Traces differ")
	}
}

func TestDefaultConfigEnv(t *testing.T) {
	t.Setenv("VPC_BIOS_PATH", "/roms/test.bin")
	t.Setenv("VPC_RAM_SIZE", "2048")

	cfg := DefaultConfig()
	if cfg.BIOS != "/roms/test.bin" || cfg.RAMSize != 2048*1024 {
		t.Errorf("Environment was not applied: %+v", cfg)
	}
}

type attached struct {
	peripheral.NullDevice
	channel *disk.Device
	p       processor.Processor
}

func (a *attached) Install(p processor.Processor) error {
	a.p = p
	return nil
}

func TestAttach(t *testing.T) {
	dev := &attached{}

	cfg := testConfig()
	cfg.Attach = func(m *Machine) []peripheral.Peripheral {
		dev.channel = m.Primary
		return []peripheral.Peripheral{dev}
	}

	m, err := New(cfg, newFs(t, newBIOS()), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	if dev.channel != m.Primary || dev.p != m.Processor() {
		t.Error("Attached peripheral was not installed with the machine devices")
	}
}
