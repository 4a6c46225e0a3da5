// Command kernelsim drives the coremap, address-space, process, and
// intersection packages through a fixed demo scenario, standing in for
// the menu-driven test harness a real kernel boots into. Wires
// github.com/google/pprof's profile reader as an optional post-run
// summary: pass -cpuprofile to capture a runtime/pprof CPU profile of
// the run, then kernelsim parses its own output back with
// google/pprof/profile and prints the hottest functions, the way a
// developer chasing a slow simulation run would.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"runtime/pprof"
	"sort"

	gprofile "github.com/google/pprof/profile"
	"golang.org/x/text/language"

	"kernelcore/coremap"
	"kernelcore/defs"
	"kernelcore/extern"
	"kernelcore/intersection"
	"kernelcore/proc"
	"kernelcore/vm"
)

func main() {
	cpuprofile := flag.String("cpuprofile", "", "write a CPU profile here and summarize it with google/pprof")
	frames := flag.Int("frames", 256, "number of page frames the simulated RAM arena holds")
	flag.Parse()

	var profFile *os.File
	if *cpuprofile != "" {
		var err error
		profFile, err = os.Create(*cpuprofile)
		if err != nil {
			log.Fatalf("kernelsim: creating cpu profile: %v", err)
		}
		if err := pprof.StartCPUProfile(profFile); err != nil {
			log.Fatalf("kernelsim: starting cpu profile: %v", err)
		}
		defer func() {
			pprof.StopCPUProfile()
			profFile.Close()
			summarizeProfile(*cpuprofile)
		}()
	}

	if err := runDemo(*frames); err != nil {
		log.Fatalf("kernelsim: %v", err)
	}
}

// runDemo wires the coremap, address space, and process lifecycle
// together: a boot process forks, the child exits with a
// distinguishing code, and the parent waits on it. It also drives the
// intersection monitor through a short arrival/departure sequence.
func runDemo(frameCount int) error {
	ram := extern.NewRAM(frameCount * defs.PageSize)
	cm := coremap.New(ram)
	cm.Bootstrap()

	as := vm.NewAddrSpace(cm)
	if err := as.DefineRegion(0x400000, 4*defs.PageSize, true, false, true); err != 0 {
		return fmt.Errorf("define_region(code): %v", err)
	}
	if err := as.DefineRegion(0x500000, 4*defs.PageSize, true, true, false); err != 0 {
		return fmt.Errorf("define_region(data): %v", err)
	}
	if err := as.PrepareLoad(); err != 0 {
		return fmt.Errorf("prepare_load: %v", err)
	}
	as.CompleteLoad()

	tbl := proc.NewTable()
	init := tbl.NewProc(as)
	sched := extern.GoScheduler{}

	done := make(chan struct{})
	childPid, err := init.Fork(tbl, sched, func(child *proc.Proc) {
		defer close(done)
		log.Printf("kernelsim: child pid=%d running", child.Pid())
		child.Exit(tbl, sched, 42)
	})
	if err != 0 {
		return fmt.Errorf("fork: %v", err)
	}

	pid, status, err := init.Waitpid(tbl, childPid, 0)
	if err != 0 {
		return fmt.Errorf("waitpid: %v", err)
	}
	<-done
	log.Printf("kernelsim: waitpid returned pid=%d status=%#x exitcode=%d",
		pid, status, defs.WexitStatus(status))

	runIntersectionDemo()
	return nil
}

func runIntersectionDemo() {
	printer := intersection.NewMessagePrinterLogger(os.Stdout, language.English)
	logger := intersection.NewRingLogger(printer, 32)
	mon := intersection.New(logger)

	arrivals := []intersection.Direction{
		intersection.North, intersection.North, intersection.South,
		intersection.East, intersection.North,
	}
	admitted := make(chan intersection.Direction, len(arrivals))
	for _, d := range arrivals {
		d := d
		go func() {
			mon.BeforeEntry(d, intersection.North)
			admitted <- d
		}()
	}
	for range arrivals {
		d := <-admitted
		mon.AfterExit(d, intersection.North)
	}

	log.Println("kernelsim: intersection event history (most recent first logged last):")
	for _, event := range logger.Recent() {
		log.Printf("  %s", event)
	}
}

// summarizeProfile reads back the CPU profile kernelsim just captured
// and prints the functions with the most cumulative samples, using
// google/pprof's profile.Parse rather than re-deriving that logic.
func summarizeProfile(path string) {
	f, err := os.Open(path)
	if err != nil {
		log.Printf("kernelsim: reopening profile: %v", err)
		return
	}
	defer f.Close()

	prof, err := gprofile.Parse(f)
	if err != nil {
		log.Printf("kernelsim: parsing profile: %v", err)
		return
	}

	type sample struct {
		name  string
		value int64
	}
	totals := map[string]int64{}
	for _, s := range prof.Sample {
		for _, loc := range s.Location {
			for _, line := range loc.Line {
				if line.Function == nil {
					continue
				}
				totals[line.Function.Name] += sumValues(s.Value)
			}
		}
	}
	samples := make([]sample, 0, len(totals))
	for name, v := range totals {
		samples = append(samples, sample{name, v})
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i].value > samples[j].value })

	fmt.Println("kernelsim: hottest functions in", path)
	for i, s := range samples {
		if i >= 10 {
			break
		}
		fmt.Printf("  %8d  %s\n", s.value, s.name)
	}
}

func sumValues(vs []int64) int64 {
	var total int64
	for _, v := range vs {
		total += v
	}
	return total
}
