// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

// Command samplegen writes sample activity files for the engine loader.
//
// Usage:
//
//	samplegen [-format csv|json] [-n 50] [-o path] [-users id:role,...] [-seed N]
//
// Without -o the file is written to stdout.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/tomtom215/insiderwatch/internal/config"
	"github.com/tomtom215/insiderwatch/internal/rules"
	"github.com/tomtom215/insiderwatch/internal/source"
)

func main() {
	format := flag.String("format", "csv", "output format: csv or json")
	count := flag.Int("n", 50, "number of events")
	output := flag.String("o", "", "output file (default: stdout)")
	usersFlag := flag.String("users", "", "roster as id:role,id:role (default: built-in roster)")
	seed := flag.Int64("seed", 0, "random seed, 0 uses the clock")
	flag.Parse()

	if err := run(*format, *count, *output, *usersFlag, *seed); err != nil {
		fmt.Fprintf(os.Stderr, "samplegen: %v\n", err)
		os.Exit(1)
	}
}

func run(format string, count int, output, usersFlag string, seed int64) error {
	users := config.DefaultUsers()
	if usersFlag != "" {
		parsed, err := config.ParseUsers(usersFlag)
		if err != nil {
			return fmt.Errorf("invalid -users: %w", err)
		}
		users = parsed
	}

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	bw := bufio.NewWriter(w)

	if err := write(bw, format, source.SampleConfig{
		Users: users,
		Rules: rules.Default(),
		Count: count,
		Rand:  source.NewRand(seed),
	}); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}

	if output != "" {
		fmt.Fprintf(os.Stderr, "wrote %d %s events to %s\n", count, format, output)
	}
	return nil
}

func write(w io.Writer, format string, cfg source.SampleConfig) error {
	switch format {
	case source.FormatCSV:
		return source.WriteSampleCSV(w, cfg)
	case source.FormatJSON:
		return source.WriteSampleJSON(w, cfg)
	default:
		return fmt.Errorf("unknown format %q, want csv or json", format)
	}
}
