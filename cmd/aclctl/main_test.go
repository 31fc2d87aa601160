package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/entityacl/pkg/acl"
	"github.com/dmitrymomot/entityacl/pkg/config"
	"github.com/dmitrymomot/entityacl/pkg/permission"
	"github.com/dmitrymomot/entityacl/pkg/seed"
)

const seedFile = `
roles:
  - id: editors
    members: [alice]
owners:
  - entity_type: folder
    entity_id: projects
    user: alice
grants:
  - entity_type: task
    role: editors
    permissions: read|update
bans:
  - entity_type: folder
    user: bob
`

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	var coder interface{ ExitCode() int }
	require.True(t, errors.As(err, &coder), "error %v has no exit code", err)
	return coder.ExitCode()
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRun_Usage(t *testing.T) {
	for _, args := range [][]string{nil, {"help"}, {"--help"}} {
		stdout, _, err := runCLI(t, args...)
		require.NoError(t, err)
		assert.Contains(t, stdout, "Usage: aclctl <command>")
		assert.Contains(t, stdout, "migrate")
	}

	_, stderr, err := runCLI(t, "grant")
	require.Error(t, err)
	assert.Equal(t, exitUsage, exitCode(t, err))
	assert.Contains(t, stderr, "Commands:")
}

func TestRun_CommandHelp(t *testing.T) {
	stdout, _, err := runCLI(t, "seed", "--help")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Usage: aclctl seed [flags] <file>")
	assert.Contains(t, stdout, "--dry-run")
	assert.Contains(t, stdout, "--env-file")
}

func TestRun_BadFlag(t *testing.T) {
	_, _, err := runCLI(t, "check", "--no-such-flag")
	require.Error(t, err)
	assert.Equal(t, exitUsage, exitCode(t, err))
}

func TestMigrate_Arguments(t *testing.T) {
	_, _, err := runCLI(t, "migrate", "extra")
	require.Error(t, err)
	assert.Equal(t, exitUsage, exitCode(t, err))
}

func TestSeed_DryRun(t *testing.T) {
	path := writeFile(t, "seed.yaml", seedFile)

	stdout, _, err := runCLI(t, "seed", "--dry-run", path)
	require.NoError(t, err)
	assert.Equal(t, "ok: 1 roles, 1 grants, 1 owners, 1 bans\n", stdout)
}

func TestSeed_Errors(t *testing.T) {
	_, _, err := runCLI(t, "seed", "--dry-run")
	assert.Equal(t, exitUsage, exitCode(t, err))

	_, _, err = runCLI(t, "seed", "--dry-run", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := writeFile(t, "bad.yaml", "grants:\n  - entity_type: folder\n    permissions: read\n")
	_, _, err = runCLI(t, "seed", "--dry-run", bad)
	assert.ErrorIs(t, err, seed.ErrInvalidDocument)

	_, _, err = runCLI(t, "seed", "--dry-run", "--env-file", filepath.Join(t.TempDir(), ".env"), bad)
	assert.ErrorIs(t, err, config.ErrEnvFile)
}

func TestEntityTypes(t *testing.T) {
	doc, err := seed.Parse(bytes.NewBufferString(seedFile))
	require.NoError(t, err)
	assert.Equal(t, []acl.EntityType{"folder", "task"}, entityTypes(doc))
}

func TestParseCheckArgs(t *testing.T) {
	t.Parallel()

	req, err := parseCheckArgs([]string{"u1, u2,,", "read|update", "folder", "f1"})
	require.NoError(t, err)
	assert.Equal(t, checkRequest{
		users:      []string{"u1", "u2"},
		mask:       permission.ReadUpdate,
		entityType: "folder",
		entityID:   "f1",
	}, req)

	req, err = parseCheckArgs([]string{"u1", "16", "folder"})
	require.NoError(t, err)
	assert.Equal(t, permission.Read, req.mask)
	assert.Equal(t, acl.Global, req.entityID)

	invalid := map[string][]string{
		"too few":      {"u1", "read"},
		"too many":     {"u1", "read", "folder", "f1", "x"},
		"no users":     {",", "read", "folder"},
		"unknown flag": {"u1", "fly", "folder"},
		"none":         {"u1", "none", "folder"},
		"empty type":   {"u1", "read", ""},
	}
	for name, args := range invalid {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := parseCheckArgs(args)
			require.Error(t, err)
			assert.Equal(t, exitUsage, exitCode(t, err))
		})
	}
}

func TestReport(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	a := &app{stdout: &out}
	req := checkRequest{mask: permission.Read, entityType: "folder", entityID: "f1"}

	err := report(a, req, []acl.CheckResult{{ID: "u1", Value: true}})
	require.NoError(t, err)
	assert.Equal(t, "u1\tread\tfolder/f1\tallowed\n", out.String())

	out.Reset()
	req.entityID = acl.Global
	err = report(a, req, []acl.CheckResult{{ID: "u1", Value: true}, {ID: "u2"}})
	require.Error(t, err)
	assert.Equal(t, exitDenied, exitCode(t, err))
	assert.Equal(t, "u1\tread\tfolder\tallowed\nu2\tread\tfolder\tdenied\n", out.String())
}
