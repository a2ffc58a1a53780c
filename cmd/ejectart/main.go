package main

import (
	"fmt"
	"os"
	"runtime/pprof"

	"github.com/ejectart/ejectart/internal/ejectart"
)

func main() {
	ejectart.Debug = os.Getenv("DEBUG") != ""
	ejectart.UseLocks = os.Getenv("SKIP_LOCKS") == ""
	ejectart.RelativisticDoppler = os.Getenv("RELATIVISTIC_DOPPLER") != ""

	profile := os.Getenv("PROFILE") != ""
	if profile {
		f, err := os.Create("cpu.out")
		if err != nil {
			panic(err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			panic(err)
		}
		defer func() {
			pprof.StopCPUProfile()
			_ = f.Close()
		}()
	}

	cfgPath := "runs/config.json"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}
	outPath := "spectrum.out"
	if len(os.Args) > 2 {
		outPath = os.Args[2]
	}

	if err := ejectart.RunSimulation(cfgPath, outPath); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}
