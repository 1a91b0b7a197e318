// Package appcontext carries the scaffolding shared by the command-line
// tools: option declaration and parsing, the process logger (optionally
// teed to a -log file), a run timer, and orderly halt handling.
package appcontext

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
)

// HaltError carries a process return code up through the call stack for an
// orderly exit.
type HaltError struct {
	Code int
}

func (e HaltError) Error() string {
	return fmt.Sprintf("halt with return code %d", e.Code)
}

// ReturnCode extracts the process return code from an error chain: the
// HaltError's code if one is present, 0 for nil, -1 otherwise.
func ReturnCode(err error) int {
	if err == nil {
		return 0
	}
	var halt HaltError
	if errors.As(err, &halt) {
		return halt.Code
	}
	return -1
}

// ApplicationContext owns the process-wide resources of one tool run.
type ApplicationContext struct {
	ProgramName string
	Version     string
	Options     *OptionProcessor
	Logger      *log.Logger

	timer   *Timer
	logFile *os.File
}

// New parses args against the declared options and assembles the context.
// The help option prints usage and returns HaltError{0}; an option error
// prints a diagnostic and returns HaltError{-1}.
func New(programName, version string, options *OptionProcessor, args []string) (*ApplicationContext, error) {
	if err := options.Parse(args); err != nil {
		if errors.Is(err, ErrHelp) {
			fmt.Fprintf(os.Stdout, "%s (version: %s)\n\n", programName, version)
			options.PrintUsage(os.Stdout)
			return nil, HaltError{Code: 0}
		}

		fmt.Fprintf(os.Stderr, "!! %v\n", err)
		return nil, HaltError{Code: -1}
	}

	a := &ApplicationContext{
		ProgramName: programName,
		Version:     version,
		Options:     options,
		Logger:      log.New(os.Stderr, "", 0),
		timer:       NewTimer(),
	}

	if options.Check("-log") {
		path := options.Get("-log")
		file, err := os.Create(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "!! Error opening log file %q: %v\n", path, err)
			return nil, HaltError{Code: -1}
		}
		a.logFile = file
		a.Logger = log.New(io.MultiWriter(os.Stderr, file), "", 0)
	}

	a.Logger.Printf("Welcome to %s\n(version: %s)\n", programName, version)

	return a, nil
}

// TeeTo routes logger output to a file in addition to the console. It is a
// no-op when a -log tee is already in place.
func (a *ApplicationContext) TeeTo(path string) error {
	if a.logFile != nil {
		return nil
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	a.logFile = file
	a.Logger = log.New(io.MultiWriter(os.Stderr, file), "", 0)
	return nil
}

// Close releases the log tee, if any.
func (a *ApplicationContext) Close() error {
	if a.logFile != nil {
		return a.logFile.Close()
	}
	return nil
}

// Timer returns the run timer started at New.
func (a *ApplicationContext) Timer() *Timer {
	return a.timer
}

// Fail logs a "!!"-prefixed diagnostic and returns HaltError{-1}.
func (a *ApplicationContext) Fail(format string, args ...interface{}) error {
	a.Logger.Printf("!! "+format, args...)
	return HaltError{Code: -1}
}
