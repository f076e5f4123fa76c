package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/planperfect/planperfect/internal/api"
	"github.com/planperfect/planperfect/internal/session"
	"github.com/planperfect/planperfect/internal/ui"
	"github.com/spf13/viper"
)

// HandleFatalError handles unrecoverable errors that should terminate the application.
func HandleFatalError(userMsg string, technicalErr error) {
	PrintError(userMsg, technicalErr)
	os.Exit(1)
}

// PrintError prints an error message without exiting, allowing for recovery.
func PrintError(userMsg string, technicalErr error) {
	if viper.GetBool("verbose") && technicalErr != nil {
		// In verbose mode, print the detailed, underlying technical error.
		fmt.Fprintf(os.Stderr, "Error: %v\n", technicalErr)
	} else {
		// By default, print the clean, user-friendly message.
		fmt.Fprintln(os.Stderr, ui.StyleError.Render(userMsg))
	}
}

// LogError logs an error without printing to stderr if verbose mode is off.
func LogError(msg string, err error) {
	if viper.GetBool("verbose") {
		if err != nil {
			fmt.Fprintf(os.Stderr, "[DEBUG] %s: %v\n", msg, err)
		} else {
			fmt.Fprintf(os.Stderr, "[DEBUG] %s\n", msg)
		}
	}
}

// userMessage turns a command error into the line shown without --verbose.
// Backend user errors are shown verbatim; internal backend text never is.
func userMessage(err error) string {
	if errors.Is(err, session.ErrNotLoggedIn) {
		return "You are not signed in. Run: planperfect auth login"
	}
	if msg, ok := api.UserMessage(err); ok {
		return msg
	}
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		if apiErr.Kind == api.KindNetwork {
			return "Could not reach PlanPerfect. Check your connection and try again."
		}
		return "Something went wrong on our side. Please try again."
	}
	return err.Error()
}

// reportedError marks an error the user has already been shown through a
// toast, so Execute only sets the exit status.
type reportedError struct{ err error }

func (e reportedError) Error() string { return e.err.Error() }
func (e reportedError) Unwrap() error { return e.err }

// alreadyReported wraps err as reportedError. A nil err stays nil.
func alreadyReported(err error) error {
	if err == nil {
		return nil
	}
	return reportedError{err: err}
}

// isReported reports whether err was already shown.
func isReported(err error) bool {
	var r reportedError
	return errors.As(err, &r)
}
