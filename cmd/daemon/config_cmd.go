// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ManuGH/vidrelay/internal/config"
	"github.com/ManuGH/vidrelay/internal/version"
)

func runConfigCLI(args []string) int {
	return configCLI(args, os.Stdout, os.Stderr)
}

func configCLI(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printConfigUsage(stderr)
		return 0
	}

	switch args[0] {
	case "validate":
		return runConfigValidate(args[1:], stdout, stderr)
	case "dump":
		return runConfigDump(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown subcommand: %s\n\n", args[0])
		printConfigUsage(stderr)
		return 2
	}
}

func printConfigUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  vidrelay config validate [--file|-f config.yaml]")
	fmt.Fprintln(w, "  vidrelay config dump [--file|-f config.yaml]")
}

func loadForCLI(name string, args []string, stderr io.Writer) (config.AppConfig, string, int) {
	fs := flag.NewFlagSet("vidrelay config "+name, flag.ContinueOnError)
	fs.SetOutput(stderr)

	var file string
	fs.StringVar(&file, "file", "", "path to YAML configuration file")
	fs.StringVar(&file, "f", "", "path to YAML configuration file (shorthand)")
	if err := fs.Parse(args); err != nil {
		return config.AppConfig{}, "", 2
	}

	path := strings.TrimSpace(file)
	cfg, err := config.NewLoader(path, version.Version).Load()
	if err != nil {
		label := path
		if label == "" {
			label = "environment"
		}
		fmt.Fprintf(stderr, "Configuration error in %s:\n  %v\n", label, err)
		return config.AppConfig{}, path, 1
	}
	return cfg, path, 0
}

func runConfigValidate(args []string, stdout, stderr io.Writer) int {
	_, path, code := loadForCLI("validate", args, stderr)
	if code != 0 {
		return code
	}
	if path == "" {
		path = "environment"
	}
	fmt.Fprintf(stdout, "%s is valid\n", path)
	return 0
}

// runConfigDump prints the effective configuration (defaults, file, env).
func runConfigDump(args []string, stdout, stderr io.Writer) int {
	cfg, _, code := loadForCLI("dump", args, stderr)
	if code != 0 {
		return code
	}

	enc := yaml.NewEncoder(stdout)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		fmt.Fprintf(stderr, "Failed to encode YAML: %v\n", err)
		return 1
	}
	_ = enc.Close()
	return 0
}
