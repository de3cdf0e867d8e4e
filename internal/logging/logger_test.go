package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSecretsAreRedacted(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, false)

	log.Info("authenticated",
		"bot", "alpha",
		"bearer_token", "ey-super-secret",
		"session_seed", "deadbeef",
		"signature", "cafe",
	)

	out := buf.String()
	require.Contains(t, out, "alpha")
	require.NotContains(t, out, "ey-super-secret")
	require.NotContains(t, out, "deadbeef")
	require.NotContains(t, out, "cafe")
	require.Contains(t, out, "[redacted]")
}

func TestWithAttrsRedacted(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, false).With("api_token", "hunter2")

	log.Info("request sent")
	out := buf.String()
	require.NotContains(t, out, "hunter2")
	require.Contains(t, out, "[redacted]")
}

func TestVerboseEnablesDebug(t *testing.T) {
	var quiet, loud bytes.Buffer

	New(&quiet, false).Debug("detail")
	New(&loud, true).Debug("detail")

	require.Empty(t, quiet.String())
	require.Contains(t, loud.String(), "detail")
}

func TestPlainAttrsSurvive(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, false).Info("balances fetched", "bot", "alpha", "count", 3)

	out := buf.String()
	require.True(t, strings.Contains(out, "bot=alpha"))
	require.True(t, strings.Contains(out, "count=3"))
}
