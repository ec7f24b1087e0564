package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// confirm asks before a destructive command unless --yes was given.
func confirm(cmd *cobra.Command, warning string) error {
	if yes, _ := cmd.Flags().GetBool("yes"); yes {
		return nil
	}

	fmt.Fprintf(os.Stderr, "%s Continue? [y/N] ", warning)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("reading confirmation: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return nil
	default:
		return errors.New("aborted")
	}
}

// readPassphrase prompts on stderr and reads without echo. FF_PASSPHRASE
// takes precedence for unattended use.
func readPassphrase(prompt string) (string, error) {
	if p := os.Getenv("FF_PASSPHRASE"); p != "" {
		return p, nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("stdin is not a terminal; set FF_PASSPHRASE")
	}

	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(b), nil
}

func readNewPassphrase() (string, error) {
	p, err := readPassphrase("New passphrase: ")
	if err != nil {
		return "", err
	}
	if os.Getenv("FF_PASSPHRASE") != "" {
		return p, nil
	}

	again, err := readPassphrase("Repeat passphrase: ")
	if err != nil {
		return "", err
	}
	if p != again {
		return "", errors.New("passphrases do not match")
	}
	return p, nil
}
