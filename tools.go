//go:build tools
// +build tools

// Package direct_chat pins the tools run by go generate (mockgen) so their
// versions are tracked in go.mod.
package direct_chat

import (
	_ "go.uber.org/mock/mockgen"
)
