package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"guidebook/internal/config"
	"guidebook/internal/store"
)

func main() {
	moderator := flag.Bool("moderator", false, "grant the moderator role")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: go run ./cmd/user-add [-moderator] <username>")
		os.Exit(2)
	}
	name := strings.TrimSpace(flag.Arg(0))
	if name == "" {
		fmt.Fprintln(os.Stderr, "username must not be empty")
		os.Exit(2)
	}

	password, err := promptPassword("Password: ")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	confirm, err := promptPassword("Confirm: ")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if password != confirm {
		fmt.Fprintln(os.Stderr, "passwords do not match")
		os.Exit(1)
	}

	cfg := config.Load()
	st, err := store.OpenWithOptions(cfg.DBPath, store.Options{
		LockTimeout:   cfg.LockTimeout,
		GeomTolerance: cfg.GeomTolerance,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer st.Close()

	id, err := st.CreateUser(context.Background(), name, password, *moderator)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "created user %q with profile document %d\n", name, id)
}

func promptPassword(prompt string) (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", errors.New("stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, prompt)
	pass, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimSpace(string(pass)), nil
}
