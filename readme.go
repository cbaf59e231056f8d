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
	"os"
	"regexp"
	"strings"
)

const (
	summaryMarker = "The latest summary is:"
	fence         = "```"
	fenceLanguage = "markdown"
)

var errMarkerNotFound = errors.New("summary marker not found")

var summaryBlockRe = func() *regexp.Regexp {
	block := `^` + regexp.QuoteMeta(summaryMarker) + `[ \t]*\r?\n\s*` +
		`^` + fence + fenceLanguage + `[ \t]*\r?\n` +
		`(?s:.*?)` +
		`^` + fence + `[ \t]*\r?$`

	return regexp.MustCompile(`(?m)` + block + `(?:\s*` + block + `)*`)
}()

func summaryBlock(table string) string {
	return summaryMarker + "\n\n" +
		fence + fenceLanguage + "\n" +
		strings.TrimSpace(table) + "\n" +
		fence
}

// patchReadme replaces the first run of summary blocks in doc with a single
// block holding table.
func patchReadme(doc, table string) (string, error) {
	loc := summaryBlockRe.FindStringIndex(doc)
	if loc == nil {
		return "", errMarkerNotFound
	}

	updated := doc[:loc[0]] + summaryBlock(table) + doc[loc[1]:]
	if !strings.HasSuffix(updated, "\n") {
		updated += "\n"
	}

	return updated, nil
}

func writeFile(path, content string) error {
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return &fileError{Op: "write", Path: path, Kind: errIOFailure, Err: err}
	}

	return nil
}
