// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Serve builds the binary and runs the HTTP API with the local config.
func Serve() error {
	mg.Deps(Build)
	return sh.RunV("./bin/aiwrite", "serve")
}

// MCP builds the binary and runs the MCP server on stdio.
func MCP() error {
	mg.Deps(Build)
	return sh.RunV("./bin/aiwrite", "mcp")
}
