package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/helioslabs/skytest/pkg/models"
)

const fmtDurationUnit = time.Millisecond

var (
	stylePass = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	styleFail = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	styleMeta = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// printVerdict renders the run outcome for the CI job log
func printVerdict(result *models.RunResult) {
	verdict := stylePass.Render("PASS")
	if !result.Passed {
		verdict = styleFail.Render("FAIL")
	}

	fmt.Printf("%s  run=%s function=%s exit=%d duration=%s\n",
		verdict,
		result.Run.ID,
		result.Run.FunctionName,
		result.ExitCode,
		result.Duration.Round(fmtDurationUnit),
	)

	if result.ErrorMessage != "" {
		fmt.Println(styleFail.Render("error: ") + result.ErrorMessage)
	}
	if result.FunctionError != "" {
		fmt.Println(styleMeta.Render("function error kind: " + result.FunctionError))
	}
}
