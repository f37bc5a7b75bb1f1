package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/yllada/teleport-manager/common"
	"golang.org/x/term"
)

// ErrInvalidPIN is returned for a PIN longer than a pairing PIN can be.
var ErrInvalidPIN = fmt.Errorf("PIN must be at most %d characters", common.MaxPINLength)

// ValidatePIN trims pin and checks its length. An empty PIN is valid and
// means refresh with the saved device token.
func ValidatePIN(pin string) (string, error) {
	pin = strings.TrimSpace(pin)
	if len([]rune(pin)) > common.MaxPINLength {
		return "", ErrInvalidPIN
	}
	return pin, nil
}

// ReadPIN asks for a PIN on out and reads it from in. Input is not echoed
// when in is a terminal.
func ReadPIN(in *os.File, out io.Writer) (string, error) {
	fmt.Fprint(out, "PIN: ")

	var raw string
	if term.IsTerminal(int(in.Fd())) {
		b, err := term.ReadPassword(int(in.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("reading PIN: %w", err)
		}
		raw = string(b)
	} else {
		line, err := readLine(in)
		if err != nil {
			return "", fmt.Errorf("reading PIN: %w", err)
		}
		raw = line
	}

	pin, err := ValidatePIN(raw)
	if err != nil {
		return "", err
	}
	if pin == "" {
		return "", common.ErrPinRequired
	}
	return pin, nil
}

// Confirm asks a yes/no question. Anything but y or yes is a no.
func Confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	fmt.Fprintf(out, "%s [y/N]: ", question)
	line, err := readLine(in)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func readLine(in io.Reader) (string, error) {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
