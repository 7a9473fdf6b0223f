package main

import (
	"fmt"
	"os/exec"
	"runtime"

	"github.com/atotto/clipboard"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// clipboardWriteAll is a package-level variable to allow mocking in tests.
var clipboardWriteAll = clipboard.WriteAll

// openCommand builds the platform command that opens a link. Replaced in tests.
var openCommand = func(target string) *exec.Cmd {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", target)
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", target)
	default:
		return exec.Command("xdg-open", target)
	}
}

// copyOutcome is the notice shown after a copy attempt on ch.
func copyOutcome(ch ContactChannel, err error) (title, description string, severity Severity) {
	if err != nil {
		return "Copy failed", fmt.Sprintf("Could not copy %s.", ch.Label), SeverityDestructive
	}
	return ch.Label + " copied", ch.Label + " is on your clipboard.", SeverityDefault
}

// CopyChannel puts the channel's value on the clipboard and reports the
// result as a notice naming the channel.
func CopyChannel(ch ContactChannel, board *NoticeBoard, log *zap.Logger) Notice {
	err := clipboardWriteAll(ch.Value)
	if err != nil {
		log.Warn("copy failed", zap.String("channel", ch.Key), zap.Error(err))
	}
	return board.Push(copyOutcome(ch, err))
}

// OpenChannel hands the channel's deep link to the platform handler.
func OpenChannel(ch ContactChannel, board *NoticeBoard, log *zap.Logger) (Notice, error) {
	href, err := ch.Href()
	if err != nil {
		return Notice{}, err
	}
	if err := openCommand(href).Start(); err != nil {
		log.Warn("open failed", zap.String("channel", ch.Key), zap.Error(err))
		return board.Push("Open failed", fmt.Sprintf("Could not open %s.", ch.Label), SeverityDestructive),
			errors.Wrapf(err, "failed to open %s", href)
	}
	return board.Push("Opening "+ch.Label, href, SeverityDefault), nil
}
