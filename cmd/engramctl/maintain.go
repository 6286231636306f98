// ABOUTME: The verify and doctor subcommands for closed store files
// ABOUTME: Both render a human report by default and the engine's JSON with -json

package main

import (
	"encoding/json"
	"flag"
	"fmt"

	"github.com/fatih/color"

	"github.com/engramdb/engram/internal/store"
)

func runVerify(args []string) error {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	common := registerCommon(fs)
	deep := fs.Bool("deep", false, "Also re-hash payloads and cross-check the indexes")
	asJSON := fs.Bool("json", false, "Print the report as JSON")
	fs.Parse(args)

	_, path, err := common.resolve()
	if err != nil {
		return err
	}

	report, err := store.Verify(path, *deep)
	if err != nil {
		return err
	}

	if *asJSON {
		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	} else {
		printVerification(report)
	}

	if report.OverallStatus == store.CheckFailed {
		return fmt.Errorf("verification failed")
	}
	return nil
}

func printVerification(report *store.VerificationReport) {
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)
	gray := color.New(color.FgHiBlack)

	fmt.Printf("Verifying %s\n", report.FilePath)
	for _, check := range report.Checks {
		switch check.Status {
		case store.CheckPassed:
			green.Print("  ✓ ")
		case store.CheckFailed:
			red.Print("  ✗ ")
		default:
			yellow.Print("  - ")
		}
		fmt.Print(check.Name)
		if check.Details != "" {
			gray.Printf("  %s", check.Details)
		}
		fmt.Println()
	}

	fmt.Println()
	switch report.OverallStatus {
	case store.CheckPassed:
		green.Print("✓ ")
		fmt.Println("Store is healthy")
	case store.CheckFailed:
		red.Print("✗ ")
		fmt.Println("Store has problems, run engramctl doctor")
	default:
		yellow.Print("- ")
		fmt.Println("Nothing to check")
	}
}

func runDoctor(args []string) error {
	fs := flag.NewFlagSet("doctor", flag.ExitOnError)
	common := registerCommon(fs)
	rebuildTime := fs.Bool("rebuild-time-index", false, "Force a time index rebuild")
	rebuildLex := fs.Bool("rebuild-lex-index", false, "Force a lexical index rebuild")
	rebuildVec := fs.Bool("rebuild-vec-index", false, "Force a vector index rebuild")
	vacuum := fs.Bool("vacuum", false, "Purge tombstones and compact the file")
	dryRun := fs.Bool("dry-run", false, "Print the repair plan without touching the store")
	quiet := fs.Bool("quiet", false, "Demote per-phase log lines to debug level")
	asJSON := fs.Bool("json", false, "Print the report as JSON")
	fs.Parse(args)

	_, path, err := common.resolve()
	if err != nil {
		return err
	}

	report, err := store.Doctor(path, store.DoctorOptions{
		RebuildTimeIndex: *rebuildTime,
		RebuildLexIndex:  *rebuildLex,
		RebuildVecIndex:  *rebuildVec,
		Vacuum:           *vacuum,
		DryRun:           *dryRun,
		Quiet:            *quiet,
	})
	if err != nil {
		return err
	}

	if *asJSON {
		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	} else {
		printDoctorReport(report)
	}

	if report.Status == store.DoctorFailed {
		return fmt.Errorf("doctor failed")
	}
	return nil
}

func printDoctorReport(report *store.DoctorReport) {
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)
	gray := color.New(color.FgHiBlack)

	fmt.Printf("Doctor report for %s\n", report.Plan.FilePath)

	if report.Status == store.DoctorPlanOnly {
		fmt.Println()
		for _, phase := range report.Plan.Phases {
			yellow.Print("  plan ")
			fmt.Print(phase.Name)
			gray.Printf("  %s\n", phase.Reason)
		}
		fmt.Println()
		fmt.Println("Dry run, nothing was modified")
		return
	}

	for _, phase := range report.Phases {
		switch phase.Status {
		case store.PhaseOK:
			green.Print("  ✓ ")
		case store.PhaseFailed:
			red.Print("  ✗ ")
		default:
			yellow.Print("  - ")
		}
		fmt.Print(phase.Name)
		if phase.Detail != "" {
			gray.Printf("  %s", phase.Detail)
		}
		gray.Printf("  %dms", phase.DurationMS)
		fmt.Println()
	}

	if len(report.Findings) > 0 {
		fmt.Println()
		for _, finding := range report.Findings {
			switch finding.Severity {
			case "error":
				red.Printf("  %s ", finding.Severity)
			case "warn":
				yellow.Printf("  %s ", finding.Severity)
			default:
				gray.Printf("  %s ", finding.Severity)
			}
			fmt.Print(finding.Message)
			if finding.Repaired {
				green.Print("  repaired")
			}
			fmt.Println()
		}
	}

	gray.Printf("\n%d frames checked, %d repairs, wal %s -> %s, %dms total\n",
		report.Metrics.FramesChecked,
		report.Metrics.RepairsApplied,
		humanBytes(report.Metrics.WalBytesBefore),
		humanBytes(report.Metrics.WalBytesAfter),
		report.Metrics.TotalDurationMS,
	)

	fmt.Println()
	switch report.Status {
	case store.DoctorClean:
		green.Print("✓ ")
		fmt.Println("Store is clean")
	case store.DoctorHealed:
		green.Print("✓ ")
		fmt.Println("Store repaired")
	case store.DoctorPartial:
		yellow.Print("- ")
		fmt.Println("Some repairs did not complete")
	case store.DoctorFailed:
		red.Print("✗ ")
		fmt.Println("Store could not be repaired")
	}

	if report.Verification != nil {
		fmt.Println()
		printVerification(report.Verification)
	}
}
