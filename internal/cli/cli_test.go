package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ashureev/launchpad/internal/identity"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true
	root := RootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestMigrateCallProfile(t *testing.T) {
	db := filepath.Join(t.TempDir(), "launchpad.db")

	out, err := run(t, "migrate", "--database", db)
	require.NoError(t, err)
	assert.Contains(t, out, "database ready")
	assert.Contains(t, out, "levels")

	out, err = run(t, "call", "save_idea", "--database", db, "--user", "u1",
		"--args", `{"title": "Launchpad", "problem": "founders stall", "target_audience": "first-time founders"}`)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "✓ ok"), out)
	assert.Contains(t, out, `"success": true`)

	out, err = run(t, "call", "reopen_stage", "--database", db, "--user", "u1", "--args", `{"stage": "nope"}`)
	require.NoError(t, err, "tool failures are printed, not returned")
	assert.True(t, strings.HasPrefix(out, "✗ "), out)

	out, err = run(t, "profile", "u1", "--database", db)
	require.NoError(t, err)
	assert.Contains(t, out, "u1")
	assert.Contains(t, out, "level")
	assert.Contains(t, out, "achievements")
}

func TestCall_Validation(t *testing.T) {
	db := filepath.Join(t.TempDir(), "launchpad.db")

	_, err := run(t, "call", "save_idea", "--database", db)
	assert.ErrorContains(t, err, "--user is required")

	_, err = run(t, "call", "save_idea", "--database", db, "--user", "u1", "--args", "{not json")
	assert.ErrorContains(t, err, "valid JSON")

	_, err = run(t, "call")
	assert.Error(t, err)
}

func TestTools(t *testing.T) {
	out, err := run(t, "tools")
	require.NoError(t, err)
	for _, name := range []string{"save_idea", "evaluate_ice", "create_project_with_stage", "suggest_lesson"} {
		assert.Contains(t, out, name)
	}

	out, err = run(t, "tools", "--json")
	require.NoError(t, err)
	var schemas []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &schemas))
	assert.Len(t, schemas, 7)
}

func TestToken(t *testing.T) {
	out, err := run(t, "token", "u1", "--secret", "s3cret", "--name", "Ada", "--tz", "Europe/Paris")
	require.NoError(t, err)

	acct, err := identity.NewVerifier("s3cret").Verify(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "u1", acct.ID)
	assert.Equal(t, "Ada", acct.DisplayName)
	assert.Equal(t, "Europe/Paris", acct.Timezone)

	_, err = run(t, "token", "u1", "--secret", "")
	assert.ErrorContains(t, err, "JWT_SECRET")
}
