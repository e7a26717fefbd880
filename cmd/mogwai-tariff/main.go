// Command mogwai-tariff builds, inspects, and queries Mogwai tariff files
// (§6): build assembles a tariff from period arguments and writes it out,
// dump lists a tariff's periods, lookup prints the period governing an
// instant.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/endlessm/mogwai/internal/logging"
	"github.com/endlessm/mogwai/pkg/tariff"
)

// Exit codes per §6: 0 ok, 1 invalid options, 2 lookup failed, 3 failed.
const (
	exitOK             = 0
	exitInvalidOptions = 1
	exitLookupFailed   = 2
	exitFailed         = 3
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	log := logging.NewDefault("mogwai-tariff", false)

	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: mogwai-tariff <build|dump|lookup> ...")
		return exitInvalidOptions
	}

	switch args[0] {
	case "build":
		return runBuild(args[1:])
	case "dump":
		return runDump(args[1:])
	case "lookup":
		return runLookup(args[1:])
	default:
		log.Error("unknown subcommand", "subcommand", args[0])
		return exitInvalidOptions
	}
}

// runBuild implements: build <out-file> <name> (<start> <end> <repeat-type>
// <repeat-period> <capacity-or-"unlimited>")...
func runBuild(args []string) int {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: mogwai-tariff build <out-file> <name> <start> <end> <repeat-type> <repeat-period> <capacity> [more periods...]")
		return exitInvalidOptions
	}

	outFile, name := args[0], args[1]
	periodArgs := args[2:]
	if len(periodArgs)%5 != 0 || len(periodArgs) == 0 {
		fmt.Fprintln(os.Stderr, "each period needs exactly 5 fields: start end repeat-type repeat-period capacity")
		return exitInvalidOptions
	}

	b := tariff.NewBuilder().SetName(name)

	for i := 0; i < len(periodArgs); i += 5 {
		p, err := parsePeriod(periodArgs[i : i+5])
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid period: %v\n", err)
			return exitInvalidOptions
		}
		b.AddPeriod(p)
	}

	t, err := b.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid tariff: %v\n", err)
		return exitFailed
	}

	f, err := os.Create(outFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "creating %s: %v\n", outFile, err)
		return exitFailed
	}
	defer f.Close()

	if _, err := t.WriteTo(f); err != nil {
		fmt.Fprintf(os.Stderr, "writing %s: %v\n", outFile, err)
		return exitFailed
	}

	return exitOK
}

func parsePeriod(fields []string) (*tariff.Period, error) {
	start, err := time.Parse(time.RFC3339, fields[0])
	if err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	end, err := time.Parse(time.RFC3339, fields[1])
	if err != nil {
		return nil, fmt.Errorf("end: %w", err)
	}

	repeatType, err := parseRepeatType(fields[2])
	if err != nil {
		return nil, err
	}

	repeatPeriod, err := strconv.ParseUint(fields[3], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("repeat-period: %w", err)
	}

	capacity, err := parseCapacity(fields[4])
	if err != nil {
		return nil, err
	}

	return tariff.NewPeriod(start, end, repeatType, uint32(repeatPeriod), capacity)
}

func parseRepeatType(s string) (tariff.RepeatType, error) {
	switch strings.ToLower(s) {
	case "none":
		return tariff.RepeatNone, nil
	case "hour":
		return tariff.RepeatHour, nil
	case "day":
		return tariff.RepeatDay, nil
	case "week":
		return tariff.RepeatWeek, nil
	case "month":
		return tariff.RepeatMonth, nil
	case "year":
		return tariff.RepeatYear, nil
	default:
		return 0, fmt.Errorf("repeat-type: unknown value %q", s)
	}
}

func parseCapacity(s string) (uint64, error) {
	if strings.EqualFold(s, "unlimited") {
		return tariff.Unlimited, nil
	}
	capacity, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("capacity: %w", err)
	}
	return capacity, nil
}

func runDump(args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: mogwai-tariff dump <file>")
		return exitInvalidOptions
	}

	t, err := loadTariffFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitFailed
	}

	fmt.Printf("tariff %q, %d period(s):\n", t.Name(), len(t.Periods()))
	for _, p := range t.Periods() {
		capacity := "unlimited"
		if p.CapacityLimit() != tariff.Unlimited {
			capacity = strconv.FormatUint(p.CapacityLimit(), 10)
		}
		fmt.Printf("  [%s, %s) repeat=%s/%d capacity=%s\n",
			p.Start().Format(time.RFC3339), p.End().Format(time.RFC3339),
			p.RepeatType(), p.RepeatPeriod(), capacity)
	}

	return exitOK
}

func runLookup(args []string) int {
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: mogwai-tariff lookup <file> <instant>")
		return exitInvalidOptions
	}

	t, err := loadTariffFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitFailed
	}

	when, err := time.Parse(time.RFC3339, args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid instant: %v\n", err)
		return exitInvalidOptions
	}

	p, ok := t.LookupPeriod(when)
	if !ok {
		fmt.Fprintln(os.Stderr, "lookup failed: no governing period at that instant")
		return exitLookupFailed
	}

	capacity := "unlimited"
	if p.CapacityLimit() != tariff.Unlimited {
		capacity = strconv.FormatUint(p.CapacityLimit(), 10)
	}
	occ, _ := p.Contains(when)
	fmt.Printf("governing period: [%s, %s) repeat=%s/%d capacity=%s\n",
		occ.Start.Format(time.RFC3339), occ.End.Format(time.RFC3339), p.RepeatType(), p.RepeatPeriod(), capacity)

	return exitOK
}

func loadTariffFile(path string) (*tariff.Tariff, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	t, err := tariff.Load(f)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return t, nil
}
