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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/andreas-jonsson/virtualpc/emulator"
	"github.com/andreas-jonsson/virtualpc/emulator/peripheral"
	"github.com/andreas-jonsson/virtualpc/emulator/peripheral/disk"
	"github.com/andreas-jonsson/virtualpc/emulator/processor"
	"github.com/andreas-jonsson/virtualpc/monitor"
	"github.com/andreas-jonsson/virtualpc/version"
	"github.com/gdamore/tcell"
	"github.com/pkg/profile"
	"github.com/spf13/afero"
	"github.com/tebeka/atexit"
	"golang.org/x/term"
)

var (
	genHd     string
	genHdSize = 10
)

var (
	ver, noMonitor, clearRAM bool
	cpuProfile, printStats   bool
	cpuModel, faultPolicy    string
	ramSize                  int
	drives                   [emulator.NumDriveSlots]string
	cdrom                    string
)

var cfg = emulator.DefaultConfig()

func init() {
	flag.BoolVar(&ver, "v", false, "Print version information")
	flag.BoolVar(&noMonitor, "no-monitor", false, "Disable the terminal monitor")
	flag.BoolVar(&printStats, "stats", false, "Print statistics on exit")
	flag.BoolVar(&cpuProfile, "profile", false, "Write a CPU profile of the host process")

	flag.StringVar(&genHd, "gen-hd", "", "Create a blank 10MB harddrive image")
	flag.IntVar(&genHdSize, "gen-hd-size", genHdSize, "Set size of the generated harddrive image in megabytes")

	flag.StringVar(&cfg.BIOS, "bios", cfg.BIOS, "Path to BIOS image")
	flag.IntVar(&ramSize, "ram", cfg.RAMSize/1024, "RAM size in KB")
	flag.BoolVar(&clearRAM, "clear-ram", false, "Start with zeroed memory")
	flag.Int64Var(&cfg.Seed, "seed", 0, "Seed for the initial memory contents")
	flag.StringVar(&cpuModel, "cpu", cfg.Model.String(), "CPU model (8086, 80186 or 80386)")
	flag.StringVar(&faultPolicy, "fault", "halt", "Invalid opcode policy (halt or interrupt)")
	flag.Float64Var(&cfg.LimitMIPS, "mips", 0, "Limit CPU speed")
	flag.StringVar(&cfg.Trace, "trace", "", "Write an instruction trace (.json or binary)")

	for i, name := range []string{"hda", "hdb", "hdc", "hdd"} {
		flag.StringVar(&drives[i], name, "", fmt.Sprintf("Harddrive image for drive slot %d", i))
	}
	flag.StringVar(&cdrom, "cdrom", "", "CD-ROM image (secondary master)")
}

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		atexit.Exit(1)
	}
	atexit.Exit(0)
}

func run() error {
	if ver {
		fmt.Printf("%s (%s)\n", version.Current.FullString(), version.Hash)
		return nil
	}

	fs := afero.NewOsFs()
	if genHd != "" {
		return genImage(fs, genHd, genHdSize)
	}

	if err := configure(); err != nil {
		return err
	}

	if cpuProfile {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	}

	var m *emulator.Machine
	if printStats {
		defer func() {
			if m != nil {
				fmt.Println(monitor.Summary(m.Processor(), m.POST.POSTCodes()))
			}
		}()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	var (
		mon    *monitor.Device
		screen tcell.Screen
	)

	logger := log.New(os.Stderr, "", log.LstdFlags)
	if !noMonitor && term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd())) {
		var err error
		if screen, err = tcell.NewScreen(); err != nil {
			return err
		}

		logs := &monitor.LogBuffer{}
		logger = log.New(logs, "", log.Ltime)

		cfg.Attach = func(m *emulator.Machine) []peripheral.Peripheral {
			mon = monitor.New(screen, logs, m.Keyboard, m.Primary, m.Secondary)
			return []peripheral.Peripheral{mon}
		}
	} else {
		printLogo()
	}

	var err error
	if m, err = emulator.New(cfg, fs, logger); err != nil {
		return err
	}
	atexit.Register(func() {
		if err := m.Close(); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	})

	if mon != nil {
		if err := mon.Start(); err != nil {
			return err
		}
		defer mon.Fini()

		go func() {
			select {
			case <-mon.Quit():
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	switch err := m.Run(ctx); {
	case errors.Is(err, context.Canceled):
	case errors.Is(err, processor.ErrCPUHalt):
		logger.Print("CPU halted with interrupts disabled")
	default:
		return err
	}
	return nil
}

func configure() error {
	var err error
	if cfg.Model, err = processor.ParseModel(cpuModel); err != nil {
		return err
	}

	switch strings.ToLower(faultPolicy) {
	case "halt":
		cfg.FaultPolicy = processor.FaultHalt
	case "interrupt":
		cfg.FaultPolicy = processor.FaultInterrupt
	default:
		return fmt.Errorf("unknown fault policy: %q", faultPolicy)
	}

	cfg.RAMSize = ramSize * 1024
	cfg.ClearRAM = clearRAM

	for i, name := range drives {
		if name != "" {
			cfg.Drives[i] = emulator.DriveImage{Path: name, Kind: disk.DriveHardDisk}
		}
	}
	if cdrom != "" {
		cfg.Drives[emulator.SecondaryMaster] = emulator.DriveImage{Path: cdrom, Kind: disk.DriveCDROM}
	}
	return nil
}

func genImage(fs afero.Fs, name string, size int) error {
	if size < 10 {
		size = 10
	} else if size > 500 {
		size = 500
	}

	hd, err := fs.Create(name)
	if err != nil {
		return err
	}
	defer hd.Close()

	var buffer [0x100000]byte
	for i := 0; i < size; i++ {
		if _, err = hd.Write(buffer[:]); err != nil {
			return err
		}
	}
	return nil
}

func printLogo() {
	fmt.Print(logo)
	fmt.Println("v" + version.Current.String())
	fmt.Print(" ───────═════ " + version.Copyright + " ══════───────\n\n")
}

var logo = `
██╗   ██╗██╗██████╗ ████████╗██╗   ██╗ █████╗ ██╗     ██████╗  ██████╗
██║   ██║██║██╔══██╗╚══██╔══╝██║   ██║██╔══██╗██║     ██╔══██╗██╔════╝
██║   ██║██║██████╔╝   ██║   ██║   ██║███████║██║     ██████╔╝██║
╚██╗ ██╔╝██║██╔══██╗   ██║   ██║   ██║██╔══██║██║     ██╔═══╝ ██║
 ╚████╔╝ ██║██║  ██║   ██║   ╚██████╔╝██║  ██║███████╗██║     ╚██████╗
  ╚═══╝  ╚═╝╚═╝  ╚═╝   ╚═╝    ╚═════╝ ╚═╝  ╚═╝╚══════╝╚═╝      ╚═════╝`
