package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/helioslabs/skytest/pkg/config"
	"github.com/helioslabs/skytest/pkg/harness"
	"github.com/helioslabs/skytest/pkg/logger"
	"github.com/helioslabs/skytest/pkg/provider/aws"
)

// Exit codes: 0 pass, 1 run failure, 2 usage or configuration error
const (
	exitOK    = 0
	exitFail  = 1
	exitUsage = 2
)

// CLI handles command-line interface operations
type CLI struct {
	runCmd   *flag.FlagSet
	sweepCmd *flag.FlagSet
}

// NewCLI creates a new CLI handler
func NewCLI() *CLI {
	return &CLI{
		runCmd:   flag.NewFlagSet("run", flag.ExitOnError),
		sweepCmd: flag.NewFlagSet("sweep", flag.ExitOnError),
	}
}

// Run processes CLI arguments and executes the appropriate command
func (cli *CLI) Run(args []string) int {
	if len(args) == 0 {
		return cli.handleRun(nil)
	}

	switch args[0] {
	case "run":
		return cli.handleRun(args[1:])
	case "sweep":
		return cli.handleSweep(args[1:])
	case "help", "--help", "-h":
		cli.printHelp()
		return exitOK
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		cli.printHelp()
		return exitUsage
	}
}

// handleRun executes the full deploy-invoke-collect-cleanup cycle
func (cli *CLI) handleRun(args []string) int {
	opts := config.DefaultRunOptions()

	cli.runCmd.StringVar(&opts.StackName, "stack", opts.StackName, "deployment stack name (or SKYTEST_STACK)")
	cli.runCmd.StringVar(&opts.TestPackage, "pkg", opts.TestPackage, "Go package whose test binary is deployed")
	cli.runCmd.StringVar(&opts.PayloadPath, "payload", "", "JSON file passed to the invocation")
	cli.runCmd.StringVar(&opts.OutputDir, "out", opts.OutputDir, "directory for result.json and run.log")
	cli.runCmd.BoolVar(&opts.KeepResources, "keep", false, "skip cleanup, keep the function and logs")
	quiet := cli.runCmd.Bool("quiet", false, "suppress progress output")

	if err := cli.runCmd.Parse(args); err != nil {
		return exitUsage
	}
	if *quiet {
		logger.SetQuiet(true)
	}

	if err := opts.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		return exitUsage
	}

	prov, err := aws.GetCachedProvider(config.GetAWSProfile(), config.GetAWSRegion())
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		return exitFail
	}

	h := harness.New(prov, opts)
	result, err := h.Execute(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, styleFail.Render("RUN ERROR"), err)
		return exitFail
	}

	printVerdict(result)
	if !result.Passed {
		return exitFail
	}
	return exitOK
}

// handleSweep removes leftover functions from interrupted runs
func (cli *CLI) handleSweep(args []string) int {
	age := cli.sweepCmd.Duration("age", 1*time.Hour, "only sweep functions older than this")
	if err := cli.sweepCmd.Parse(args); err != nil {
		return exitUsage
	}

	prov, err := aws.GetCachedProvider(config.GetAWSProfile(), config.GetAWSRegion())
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		return exitFail
	}

	removed, err := harness.Sweep(context.Background(), prov, *age)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		return exitFail
	}

	fmt.Printf("Swept %d leftover function(s)\n", removed)
	return exitOK
}

func (cli *CLI) printHelp() {
	fmt.Println(`skytest - run a test binary inside a short-lived cloud function

Usage:
  skytest [run] [flags]   build, deploy, invoke, collect logs, clean up
  skytest sweep [flags]   delete leftovers from interrupted runs
  skytest help            show this help

Run flags:
  -stack name      deployment stack exposing ArtifactBucket/ExecutionRoleArn
  -pkg path        Go package whose test binary is deployed (default ./...)
  -payload file    JSON payload for the invocation
  -out dir         where result.json and run.log are written (default .)
  -keep            keep the function and log group after the run
  -quiet           suppress progress output

Environment:
  SKYTEST_STACK    default for -stack
  AWS_REGION       region (default us-east-1)
  AWS_PROFILE      credentials profile`)
}
