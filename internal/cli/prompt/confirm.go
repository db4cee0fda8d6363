// Package prompt provides interactive terminal prompts for CLI commands.
package prompt

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
)

// ErrAborted is returned when the user presses Ctrl+C at a prompt.
var ErrAborted = errors.New("aborted")

// Confirm asks a yes/no question. An empty answer picks defaultYes.
func Confirm(label string, defaultYes bool) (bool, error) {
	hint := "y/N"
	if defaultYes {
		hint = "Y/n"
	}

	p := promptui.Prompt{
		Label:     fmt.Sprintf("%s [%s]", label, hint),
		IsConfirm: true,
	}

	result, err := p.Run()
	if err != nil {
		switch {
		case errors.Is(err, promptui.ErrInterrupt):
			return false, ErrAborted
		case errors.Is(err, promptui.ErrAbort):
			// promptui reports "n" as ErrAbort.
			return false, nil
		case result == "":
			return defaultYes, nil
		}
		return false, err
	}

	return isYes(result), nil
}

// ConfirmOverwrite decides whether path may be replaced. force skips the
// question; without a terminal on stdin there is nobody to ask, so the
// answer is no.
func ConfirmOverwrite(path string, force bool) (bool, error) {
	if force {
		return true, nil
	}
	if !Interactive() {
		return false, nil
	}
	return Confirm(fmt.Sprintf("%s already exists. Overwrite", path), false)
}

// Interactive reports whether stdin is a terminal.
func Interactive() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func isYes(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes":
		return true
	}
	return false
}
