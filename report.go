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
	"io/fs"
	"os"
	"regexp"
	"strings"
)

const separatorMinWidth = 15

var (
	errNotFound         = errors.New("file not found")
	errIOFailure        = errors.New("I/O failure")
	errNoSummarySection = errors.New("summary section not found")
	errEmptySummary     = errors.New("summary table is empty")
)

var (
	summaryBannerRe = regexp.MustCompile(fmt.Sprintf(
		`(?m)^={%[1]d,}[ \t]*\r?\nSummary[ \t]*\r?\n={%[1]d,}[ \t]*\r?$`,
		separatorMinWidth,
	))
	sectionEndRe = regexp.MustCompile(`(?m)^={3,}`)
	totalLineRe  = regexp.MustCompile(`(?m)^[ \t]*Total(?:[ \t]|\r?$)`)
)

type fileError struct {
	Op   string
	Path string
	Kind error
	Err  error
}

type summary struct {
	Table    string
	HasTotal bool
	Rows     int
}

func (e *fileError) Error() string {
	return fmt.Sprintf("failed to %s %q: %v", e.Op, e.Path, e.Err)
}

func (e *fileError) Unwrap() error {
	return e.Err
}

func (e *fileError) Is(target error) bool {
	return target == e.Kind
}

func newFileError(op, path string, err error) *fileError {
	kind := errIOFailure
	if errors.Is(err, fs.ErrNotExist) {
		kind = errNotFound
	}

	return &fileError{Op: op, Path: path, Kind: kind, Err: err}
}

func readFile(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", newFileError("read", path, err)
	}

	return string(content), nil
}

// extractSummary returns the table between the "Summary" banner and the next
// line of "=" characters (or the end of the report).
// A table without a "Total" line is returned with HasTotal set to false.
func extractSummary(report string) (summary, error) {
	loc := summaryBannerRe.FindStringIndex(report)
	if loc == nil {
		return summary{}, errNoSummarySection
	}

	rest := strings.TrimLeft(report[loc[1]:], " \t\r\n")
	if end := sectionEndRe.FindStringIndex(rest); end != nil {
		rest = rest[:end[0]]
	}

	table := strings.TrimSpace(rest)
	if table == "" {
		return summary{}, errEmptySummary
	}

	return summary{
		Table:    table,
		HasTotal: totalLineRe.MatchString(table),
		Rows:     countRows(table),
	}, nil
}

func countRows(table string) int {
	rows := 0

	for _, line := range strings.Split(table, "\n") {
		if strings.TrimSpace(line) != "" {
			rows++
		}
	}

	return rows
}
