// Package bamerr defines the error kinds used across the sort/merge engine,
// built on top of github.com/grailbio/base/errors so callers can test for a
// specific failure kind with errors.Is / the Kind field rather than string
// matching.
package bamerr

import "github.com/grailbio/base/errors"

const (
	// CannotOpen reports a failure to open an input or create an output file.
	CannotOpen = errors.NotExist
	// Invalid covers header mismatches, bad region strings, and other
	// validation failures such as an empty input list.
	Invalid = errors.Invalid
	// Exists reports a pre-existing output path without -f.
	Exists = errors.Exists
)

// CannotOpenError reports a failure to open path for the given reason.
func CannotOpenError(path string, cause error) error {
	return errors.E(CannotOpen, "open", path, cause)
}

// HeaderMismatchError reports a reference-dictionary conflict found while
// reconciling headers across inputs.
func HeaderMismatchError(name, wantName, file string) error {
	return errors.E(Invalid, "header mismatch in", file, ": expected", wantName, "got", name)
}

// InvalidRegionError reports a region string that failed to parse.
func InvalidRegionError(region string) error {
	return errors.E(Invalid, "invalid region", region)
}

// OutputExistsError reports a pre-create check failure.
func OutputExistsError(path string) error {
	return errors.E(Exists, path, "already exists; use -f to overwrite")
}
