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
	"log"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

const (
	starlarkVarLogger = "_logger"
)

type exitRequestError struct {
	Code int
}

func (e *exitRequestError) Error() string {
	return fmt.Sprintf("exit requested with code %d", e.Code)
}

func StarlarkExit(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var code starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &code); err != nil {
		return nil, err
	}

	if _, ok := code.(starlark.NoneType); ok {
		return starlark.None, &exitRequestError{Code: exitCodeError}
	}

	if codeInt, ok := code.(starlark.Int); ok {
		exitCode, ok := codeInt.Int64()
		if !ok {
			return nil, fmt.Errorf("exit code too large")
		}

		return starlark.None, &exitRequestError{Code: int(exitCode)}
	}

	return nil, fmt.Errorf("exit code wasn't 'int' or 'None'")
}

func StarlarkInspect(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var prefix starlark.String
	var value starlark.Value

	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "value", &value, "prefix?", &prefix); err != nil {
		return nil, err
	}

	prefixStr := ""
	if prefix.Len() > 0 {
		prefixStr = prefix.GoString()
	}

	if logger, ok := thread.Local(starlarkVarLogger).(*log.Logger); ok && logger != nil {
		logger.Printf("inspect: %s%v\n", prefixStr, value)
	}

	return value, nil
}

// evaluateCondition decides whether an attempt that produced a summary counts
// as a success.
func evaluateCondition(attemptInfo attempt, expr string, logger *log.Logger) (bool, error) {
	thread := &starlark.Thread{Name: "condition"}
	thread.SetLocal(starlarkVarLogger, logger)

	env := starlark.StringDict{
		"exit":    starlark.NewBuiltin("exit", StarlarkExit),
		"inspect": starlark.NewBuiltin("inspect", StarlarkInspect),

		"attempt":      starlark.MakeInt(attemptInfo.Number),
		"has_total":    starlark.Bool(attemptInfo.Summary.HasTotal),
		"max_attempts": starlark.MakeInt(attemptInfo.MaxAttempts),
		"rows":         starlark.MakeInt(attemptInfo.Summary.Rows),
		"summary":      starlark.String(attemptInfo.Summary.Table),
		"time":         starlark.Float(float64(attemptInfo.Duration) / float64(time.Second)),
		"total_time":   starlark.Float(float64(attemptInfo.TotalTime) / float64(time.Second)),
	}

	val, err := starlark.EvalOptions(syntax.LegacyFileOptions(), thread, "", expr, env)
	if err != nil {
		var exitErr *exitRequestError
		if errors.As(err, &exitErr) {
			return false, exitErr
		}

		return false, err
	}

	return bool(val.Truth()), nil
}
