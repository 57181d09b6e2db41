package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRootCommandRegistersExpectedSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"workers", "batches", "mailbox", "approve", "dashboard"} {
		assert.True(t, names[want], "expected %q subcommand to be registered", want)
	}
}

func TestWorkersSubcommandsRegistered(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range workersCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["list"])
	assert.True(t, names["resolve"])
	assert.True(t, names["spawn"])
}

func TestBatchesSubcommandsRegistered(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range batchesCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"create", "list", "show", "complete-check"} {
		assert.True(t, names[want], "expected %q subcommand to be registered", want)
	}
}
