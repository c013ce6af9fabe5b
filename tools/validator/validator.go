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
	"errors"
	"flag"
	"log"
	"os"

	"github.com/andreas-jonsson/virtualpc/emulator/processor/validator"
	"github.com/spf13/afero"
)

var (
	traceInput = "trace.json"
	refInput   = "reference.json"
)

func init() {
	flag.StringVar(&traceInput, "trace", traceInput, "JSON trace to check")
	flag.StringVar(&refInput, "reference", refInput, "Reference JSON trace")
}

func main() {
	flag.Parse()
	log.SetFlags(0)

	fs := afero.NewOsFs()

	traceFp, err := fs.Open(traceInput)
	if err != nil {
		log.Fatal(err)
	}
	defer traceFp.Close()

	refFp, err := fs.Open(refInput)
	if err != nil {
		log.Fatal(err)
	}
	defer refFp.Close()

	n, err := validator.Compare(traceFp, refFp)
	log.Print("Equal: ", n)

	var mismatch *validator.Mismatch
	if errors.As(err, &mismatch) {
		log.Print(mismatch)
		if mismatch.A != nil && mismatch.B != nil {
			log.Printf("got:      %+v", *mismatch.A)
			log.Printf("expected: %+v", *mismatch.B)
		}
		os.Exit(1)
	} else if err != nil {
		log.Fatal(err)
	}
}
