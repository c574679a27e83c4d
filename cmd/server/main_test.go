package main

import (
	"flag"
	"testing"

	"github.com/himanishpuri/RehearsalDNA/internal/store"
)

func TestFlagsReadEnvironment(t *testing.T) {
	t.Setenv("REHEARSAL_THRESHOLD", "0.55")
	t.Setenv("REHEARSAL_STORE_FILE", ".takes.json")

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	registerFlags(fs)
	if err := fs.Parse(nil); err != nil {
		t.Fatal(err)
	}
	if threshold != 0.55 {
		t.Errorf("Expected threshold 0.55, got %v", threshold)
	}
	if storeFile != ".takes.json" {
		t.Errorf("Expected store file .takes.json, got %q", storeFile)
	}
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("REHEARSAL_THRESHOLD", "0.55")

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	registerFlags(fs)
	if err := fs.Parse([]string{"-threshold", "0.8", "-store", "custom.json"}); err != nil {
		t.Fatal(err)
	}
	if threshold != 0.8 || storeFile != "custom.json" {
		t.Errorf("Expected flags to win, got threshold=%v store=%q", threshold, storeFile)
	}
}

func TestFlagDefaults(t *testing.T) {
	t.Setenv("REHEARSAL_THRESHOLD", "")
	t.Setenv("REHEARSAL_STORE_FILE", "")

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	registerFlags(fs)
	if err := fs.Parse(nil); err != nil {
		t.Fatal(err)
	}
	if threshold != 0.70 || storeFile != store.DefaultFileName {
		t.Errorf("Unexpected defaults: threshold=%v store=%q", threshold, storeFile)
	}
}
