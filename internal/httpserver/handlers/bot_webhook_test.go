package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCommand(t *testing.T) {
	cmd, arg, ok := parseCommand("/approve 12")
	assert.True(t, ok)
	assert.Equal(t, "approve", cmd)
	assert.Equal(t, "12", arg)

	cmd, arg, ok = parseCommand("/start")
	assert.True(t, ok)
	assert.Equal(t, "start", cmd)
	assert.Empty(t, arg)

	// group chats append the bot name
	cmd, _, ok = parseCommand("/Reject@subtrack_bot 4")
	assert.True(t, ok)
	assert.Equal(t, "reject", cmd)

	_, _, ok = parseCommand("just a reply")
	assert.False(t, ok)

	_, _, ok = parseCommand("/")
	assert.False(t, ok)
}

func TestParseYesNo(t *testing.T) {
	for _, s := range []string{"yes", "Y", " keep ", "renew"} {
		accept, ok := parseYesNo(s)
		assert.True(t, ok, s)
		assert.True(t, accept, s)
	}
	for _, s := range []string{"no", "N", "cancel", "STOP"} {
		accept, ok := parseYesNo(s)
		assert.True(t, ok, s)
		assert.False(t, accept, s)
	}
	_, ok := parseYesNo("maybe")
	assert.False(t, ok)
}
