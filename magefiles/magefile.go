//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Default target to run when none is specified.
var Default = Build

const binary = "bin/extbuild"

// Build compiles the extbuild command into bin/.
func Build() error {
	mg.Deps(Vet)
	return sh.RunV("go", "build", "-o", binary, "./cmd/extbuild")
}

// Vet runs go vet on every package.
func Vet() error {
	return sh.RunV("go", "vet", "./...")
}

// Test runs the test suite.
func Test() error {
	return sh.RunV("go", "test", "./...")
}

// Flags prints the flags the host toolchain accepts.
func Flags() error {
	mg.Deps(Build)
	return sh.RunV(binary, "flags")
}

// Clean removes build output.
func Clean() error {
	return sh.Rm("bin")
}
