package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRootCmdRegistersSubcommands(t *testing.T) {
	root := NewRootCmd()

	names := make(map[string]bool)
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}

	assert.True(t, names["serve"])
	assert.True(t, names["catalogue"])
	assert.True(t, names["session"])
}

func TestSessionCommandRegistersBootstrapAndGrant(t *testing.T) {
	root := NewRootCmd()

	sessionCmd, _, err := root.Find([]string{"session"})
	assert.NoError(t, err)

	names := make(map[string]bool)
	for _, c := range sessionCmd.Commands() {
		names[c.Name()] = true
	}

	assert.True(t, names["bootstrap"])
	assert.True(t, names["grant"])
}
