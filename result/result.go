// Package result defines the outcome of a snippet run and classifies it
// for display.
package result

import "strconv"

// Outcome is the result of one run request.
//
// A nil ExitCode marks a transport-level failure (timeout, network error,
// bad response) rather than a program exit. It renders like a non-zero exit
// but stays distinguishable through IsTransportFailure.
type Outcome struct {
	// ExitCode is the program's exit status, or nil when no program exit
	// was observed.
	ExitCode *int `json:"exit_code,omitempty"`

	// Stdout is the captured standard output.
	Stdout string `json:"output"`

	// StderrOrError is the captured standard error or a transport message.
	StderrOrError string `json:"error"`
}

// Exited returns the outcome of a program that ran and exited with code.
func Exited(code int, stdout, stderr string) Outcome {
	return Outcome{ExitCode: &code, Stdout: stdout, StderrOrError: stderr}
}

// TransportFailure returns an outcome for a run that never produced a
// program exit.
func TransportFailure(msg string) Outcome {
	return Outcome{StderrOrError: msg}
}

// IsTransportFailure reports whether no program exit was observed.
func (o Outcome) IsTransportFailure() bool {
	return o.ExitCode == nil
}

// Style tags a classification for rendering.
type Style string

// Styles.
const (
	StyleSuccess Style = "success"
	StyleError   Style = "error"
)

// Classification is the display judgment for an Outcome.
type Classification struct {
	OK          bool   `json:"ok"`
	DisplayText string `json:"displayText"`
	Style       Style  `json:"styleTag"`
}

// Classify maps an outcome to a classification.
// A run is OK only when it exited 0 and reported no error text.
func Classify(o Outcome) Classification {
	ok := o.ExitCode != nil && *o.ExitCode == 0 && o.StderrOrError == ""
	if ok {
		return Classification{OK: true, DisplayText: o.Stdout, Style: StyleSuccess}
	}
	return Classification{OK: false, DisplayText: o.StderrOrError, Style: StyleError}
}

// ExitCodeLine returns the exit status line shown under a failed result.
// It is empty for a zero exit.
func ExitCodeLine(o Outcome) string {
	if o.ExitCode == nil {
		return "Exit Code: none"
	}
	if *o.ExitCode == 0 {
		return ""
	}
	return "Exit Code: " + strconv.Itoa(*o.ExitCode)
}
