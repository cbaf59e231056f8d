// Copyright (c) 2024-2026 D. Bohdan
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/alecthomas/repr"
	tsize "github.com/kopoli/go-terminal-size"
	"github.com/mitchellh/go-wordwrap"
)

const (
	defaultConfigPath = ".luacov-readme.yaml"
	defaultHelpWidth  = 80
	exitCodeError     = 1
	maxHelpWidth      = 100
	maxVerboseLevel   = 2
	programName       = "luacov-readme"
	version           = "0.3.0"
)

const description = "Copy the summary table from a LuaCov report into a README. " +
	"The README must already contain the line \"" + summaryMarker + "\" followed by a fenced markdown block; " +
	"the block is replaced with the current summary. " +
	"The report is read up to --attempts times in case it is still being written."

type attempt struct {
	Duration    time.Duration
	MaxAttempts int
	Number      int
	Summary     summary
	TotalTime   time.Duration
}

type interval struct {
	Start float64
	End   float64
}

type updateConfig struct {
	ReportPath  string
	ReadmePath  string
	Backoff     float64
	FixedDelay  interval
	MaxAttempts int
	RandomDelay interval
	Condition   string
	DryRun      bool
	Verbose     int
}

type cli struct {
	Version     kong.VersionFlag `short:"V" help:"print version number and exit"`
	Config      kong.ConfigFlag  `help:"load options from a YAML file (default: ${config_path})"`
	Report      string           `default:"luacov.report.out" short:"r" help:"coverage report to read the summary from"`
	Readme      string           `default:"README.md" short:"R" help:"documentation file to update"`
	Backoff     float64          `default:"0" short:"b" help:"base for exponential backoff (0 for no exponential backoff)"`
	Condition   string           `default:"True" short:"c" help:"success condition (Starlark expression)"`
	Delay       float64          `default:"2" short:"d" help:"constant delay between attempts (seconds)"`
	DryRun      bool             `help:"print the updated README instead of writing it"`
	Jitter      string           `default:"0,0" short:"j" help:"additional random delay (maximum seconds or 'min,max' seconds)"`
	MaxDelay    float64          `default:"3600" short:"m" help:"maximum total delay (seconds)"`
	MaxAttempts int              `default:"3" short:"n" name:"attempts" aliases:"tries" help:"maximum number of attempts to read the report"`
	Verbose     int              `short:"v" type:"counter" help:"increase verbosity"`
}

type elapsedTimeWriter struct {
	out       io.Writer
	startTime time.Time
}

func (w *elapsedTimeWriter) Write(bytes []byte) (int, error) {
	elapsed := time.Since(w.startTime)

	hours := int(elapsed.Hours())
	minutes := int(elapsed.Minutes()) % 60
	seconds := int(elapsed.Seconds()) % 60
	deciseconds := elapsed.Milliseconds() % 1000 / 100

	return fmt.Fprintf(w.out, "%s [%02d:%02d:%02d.%01d]: %s", programName, hours, minutes, seconds, deciseconds, string(bytes))
}

func newLogger(out io.Writer) *log.Logger {
	return log.New(&elapsedTimeWriter{out: out, startTime: time.Now()}, "", 0)
}

func parseInterval(s string) (interval, error) {
	var start, end float64

	if _, err := fmt.Sscanf(s, "%f,%f", &start, &end); err != nil {
		if _, err := fmt.Sscanf(s, "%f", &end); err != nil {
			return interval{}, fmt.Errorf("invalid interval format: %s", s)
		}
		start = 0
	}

	if start < 0 || end < 0 || start > end {
		return interval{}, fmt.Errorf("invalid interval values: start=%f, end=%f", start, end)
	}

	return interval{Start: start, End: end}, nil
}

func newUpdateConfig(cliConfig cli) (updateConfig, error) {
	if cliConfig.Verbose > maxVerboseLevel {
		return updateConfig{}, fmt.Errorf("up to %d verbose flags is allowed", maxVerboseLevel)
	}

	if cliConfig.MaxAttempts < 1 {
		return updateConfig{}, fmt.Errorf("number of attempts must be at least 1")
	}

	if cliConfig.Delay < 0 || cliConfig.MaxDelay < 0 {
		return updateConfig{}, fmt.Errorf("delays can't be negative")
	}

	jitterInterval, err := parseInterval(cliConfig.Jitter)
	if err != nil {
		return updateConfig{}, fmt.Errorf("invalid jitter: %w", err)
	}

	return updateConfig{
		ReportPath:  cliConfig.Report,
		ReadmePath:  cliConfig.Readme,
		Backoff:     cliConfig.Backoff,
		FixedDelay:  interval{Start: cliConfig.Delay, End: cliConfig.MaxDelay},
		MaxAttempts: cliConfig.MaxAttempts,
		RandomDelay: jitterInterval,
		Condition:   cliConfig.Condition,
		DryRun:      cliConfig.DryRun,
		Verbose:     cliConfig.Verbose,
	}, nil
}

func delayBeforeAttempt(attemptNum int, config updateConfig) time.Duration {
	if attemptNum == 1 {
		return 0
	}

	currFixed := config.FixedDelay.Start + math.Pow(config.Backoff, float64(attemptNum-1))
	if currFixed > config.FixedDelay.End {
		currFixed = config.FixedDelay.End
	}

	currRandom := config.RandomDelay.Start +
		rand.Float64()*(config.RandomDelay.End-config.RandomDelay.Start)

	return time.Duration((currFixed + currRandom) * float64(time.Second))
}

func formatDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}

// findSummary reads and parses the report until an attempt yields a summary
// that satisfies the condition.
func findSummary(config updateConfig, logger *log.Logger) (summary, error) {
	var lastErr error
	var startTime time.Time

	for attemptNum := 1; attemptNum <= config.MaxAttempts; attemptNum++ {
		delay := delayBeforeAttempt(attemptNum, config)
		if delay > 0 {
			if config.Verbose >= 1 {
				logger.Printf("waiting %s before attempt %d", formatDuration(delay), attemptNum)
			}
			time.Sleep(delay)
		}

		attemptStart := time.Now()
		if startTime.IsZero() {
			startTime = attemptStart
		}

		report, err := readFile(config.ReportPath)
		if err != nil {
			lastErr = err
			logger.Printf("attempt %d of %d failed: %v", attemptNum, config.MaxAttempts, err)
			continue
		}

		found, err := extractSummary(report)
		if err != nil {
			lastErr = fmt.Errorf("%w in %q", err, config.ReportPath)
			logger.Printf("attempt %d of %d failed: %v", attemptNum, config.MaxAttempts, lastErr)
			continue
		}

		if !found.HasTotal {
			logger.Printf("warning: no 'Total' line in the summary table on attempt %d", attemptNum)
		}

		attemptEnd := time.Now()
		attemptInfo := attempt{
			Duration:    attemptEnd.Sub(attemptStart),
			MaxAttempts: config.MaxAttempts,
			Number:      attemptNum,
			Summary:     found,
			TotalTime:   attemptEnd.Sub(startTime),
		}

		success, err := evaluateCondition(attemptInfo, config.Condition, logger)
		if err != nil {
			var exitErr *exitRequestError
			if errors.As(err, &exitErr) {
				return summary{}, exitErr
			}

			return summary{}, fmt.Errorf("condition evaluation failed: %w", err)
		}

		if success {
			if config.Verbose >= 1 {
				logger.Printf("found a summary with %d rows on attempt %d", found.Rows, attemptNum)
			}

			return found, nil
		}

		lastErr = errors.New("condition not met")
		logger.Printf("attempt %d of %d failed: %v", attemptNum, config.MaxAttempts, lastErr)
	}

	return summary{}, fmt.Errorf("maximum attempts reached (%d): %w", config.MaxAttempts, lastErr)
}

func update(config updateConfig, stdout io.Writer, logger *log.Logger) (int, error) {
	if config.Verbose >= 2 {
		logger.Printf("configuration:\n%s\n", repr.String(config, repr.Indent("\t")))
	}

	found, err := findSummary(config, logger)
	if err != nil {
		var exitErr *exitRequestError
		if errors.As(err, &exitErr) {
			return exitErr.Code, nil
		}

		return exitCodeError, err
	}

	doc, err := readFile(config.ReadmePath)
	if err != nil {
		return exitCodeError, err
	}

	updated, err := patchReadme(doc, found.Table)
	if err != nil {
		return exitCodeError, fmt.Errorf("failed to update %q: %w", config.ReadmePath, err)
	}

	if config.DryRun {
		fmt.Fprint(stdout, updated)
		return 0, nil
	}

	if updated == doc {
		fmt.Fprintf(stdout, "%s already has the current coverage summary.\n", config.ReadmePath)
		return 0, nil
	}

	if err := writeFile(config.ReadmePath, updated); err != nil {
		return exitCodeError, err
	}

	fmt.Fprintf(stdout, "Successfully updated %s with the coverage summary.\n", config.ReadmePath)

	return 0, nil
}

func helpWidth() int {
	size, err := tsize.GetSize()
	if err != nil || size.Width <= 0 {
		return defaultHelpWidth
	}

	if size.Width > maxHelpWidth {
		return maxHelpWidth
	}

	return size.Width
}

func newParser(cliConfig *cli, stdout, stderr io.Writer, exit func(int)) (*kong.Kong, error) {
	width := helpWidth()

	return kong.New(cliConfig,
		kong.Name(programName),
		kong.Description(wordwrap.WrapString(description, uint(width))),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{WrapUpperBound: width}),
		kong.Configuration(yamlConfigLoader, defaultConfigPath),
		kong.Vars{
			"config_path": defaultConfigPath,
			"version":     version,
		},
		kong.Writers(stdout, stderr),
		kong.Exit(exit),
	)
}

func run(args []string, stdout, stderr io.Writer) int {
	exitCode := -1
	exit := func(code int) {
		if exitCode < 0 {
			exitCode = code
		}
	}

	var cliConfig cli

	parser, err := newParser(&cliConfig, stdout, stderr, exit)
	if err != nil {
		fmt.Fprintf(stderr, "%s: failed to create command-line parser: %v\n", programName, err)
		return exitCodeError
	}

	_, err = parser.Parse(args)
	parser.FatalIfErrorf(err)

	// Help and version requests exit here.
	if exitCode >= 0 {
		return exitCode
	}

	config, err := newUpdateConfig(cliConfig)
	if err != nil {
		parser.Fatalf("%v", err)
		return exitCode
	}

	logger := newLogger(stderr)

	exitCode, err = update(config, stdout, logger)
	if err != nil {
		logger.Printf("%v", err)
	}

	return exitCode
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
