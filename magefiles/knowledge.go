// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Embed ingests every document under dir into the configured knowledge
// collection.
func Embed(dir string) error {
	mg.Deps(Build)
	return sh.RunV("./bin/aiwrite", "knowledge", "embed-folder", dir)
}
