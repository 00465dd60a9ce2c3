package app

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/vkernel/pkg/session"
)

func TestSignAndParseSessionTokenRoundTrips(t *testing.T) {
	token, err := signSessionToken("secret", "deadbeef", []session.Capability{session.SessionLifecycle, session.TimeRead})
	require.NoError(t, err)

	pubkeyHex, entitlements, err := parseSessionToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", pubkeyHex)
	assert.ElementsMatch(t, []string{"session_lifecycle", "time_read"}, entitlements)
}

func TestParseSessionTokenRejectsWrongSecret(t *testing.T) {
	token, err := signSessionToken("secret", "deadbeef", nil)
	require.NoError(t, err)

	_, _, err = parseSessionToken("not-the-secret", token)
	require.Error(t, err)
}

func TestMergeCapabilitiesDeduplicates(t *testing.T) {
	merged := mergeCapabilities(
		[]string{"session_lifecycle", "time_read"},
		[]session.Capability{session.TimeRead, session.SharedMemory},
	)

	names := make([]string, len(merged))
	for i, c := range merged {
		names[i] = c.String()
	}
	assert.ElementsMatch(t, []string{"session_lifecycle", "time_read", "shared_memory"}, names)
}

func TestDecodePubkeyHexRejectsWrongLength(t *testing.T) {
	_, err := decodePubkeyHex("abcd")
	require.Error(t, err)
}

func TestParseCapabilityNamesRejectsUnknown(t *testing.T) {
	_, err := parseCapabilityNames([]string{"not_a_capability"})
	require.Error(t, err)
}

func TestCatalogueCommandListsHostcalls(t *testing.T) {
	root := NewRootCmd()
	root.SetArgs([]string{"catalogue"})

	var out strings.Builder
	root.SetOut(&out)

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "vkernel::session::create")
	assert.Contains(t, out.String(), "core::async::yield_now")
}
