package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jwttoken "lockmint/internal/jwt_token"
	"lockmint/internal/merkle"
	"lockmint/pkg/domain"
)

var (
	alice = domain.MustParseAddress("0x1111111111111111111111111111111111111111")
	bob   = domain.MustParseAddress("0x2222222222222222222222222222222222222222")
	carol = domain.MustParseAddress("0x3333333333333333333333333333333333333333")
)

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func writeAllowlist(t *testing.T) string {
	return writeFile(t, "allowlist.yaml", `addresses:
  - "`+alice.String()+`"
  - "`+bob.String()+`"
  - "`+carol.String()+`"
`)
}

func expectedTree(t *testing.T) *merkle.Tree {
	tree, err := merkle.NewAddressTree([]domain.Address{alice, bob, carol})
	require.NoError(t, err)
	return tree
}

func TestRootCommand_Help(t *testing.T) {
	out, err := executeCommand(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "Merkle membership roots")
}

func TestRoot_PrintsTreeRoot(t *testing.T) {
	out, err := executeCommand(t, "root", writeAllowlist(t))
	require.NoError(t, err)
	assert.Equal(t, expectedTree(t).Root().String(), strings.TrimSpace(out))
}

func TestRoot_AcceptsJSONList(t *testing.T) {
	path := writeFile(t, "allowlist.json", `["`+alice.String()+`","`+bob.String()+`","`+carol.String()+`"]`)
	out, err := executeCommand(t, "root", "--json", path)
	require.NoError(t, err)

	var resp map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, expectedTree(t).Root().String(), resp["root"])
}

func TestRoot_RejectsBadEntries(t *testing.T) {
	_, err := executeCommand(t, "root", writeFile(t, "bad.yaml", `addresses: ["0x1234"]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "allowlist entry 0")

	_, err = executeCommand(t, "root", writeFile(t, "empty.yaml", `addresses: []`))
	assert.ErrorContains(t, err, "no addresses")

	_, err = executeCommand(t, "root", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read allowlist")
}

func TestProof_RoundTripsThroughVerify(t *testing.T) {
	path := writeAllowlist(t)
	out, err := executeCommand(t, "proof", path, carol.String())
	require.NoError(t, err)

	args := []string{"verify", expectedTree(t).Root().String(), carol.String()}
	for _, line := range strings.Fields(out) {
		args = append(args, "--proof", line)
	}
	out, err = executeCommand(t, args...)
	require.NoError(t, err)
	assert.Equal(t, "OK", strings.TrimSpace(out))

	args[2] = alice.String()
	out, err = executeCommand(t, args...)
	assert.ErrorIs(t, err, errProofRejected)
	assert.Equal(t, "REJECTED", strings.TrimSpace(out))
}

func TestProof_UnknownAddress(t *testing.T) {
	outsider := domain.MustParseAddress("0x4444444444444444444444444444444444444444")
	_, err := executeCommand(t, "proof", writeAllowlist(t), outsider.String())
	assert.ErrorIs(t, err, merkle.ErrLeafNotFound)
}

func TestLeaf(t *testing.T) {
	out, err := executeCommand(t, "leaf", alice.String())
	require.NoError(t, err)
	assert.Equal(t, merkle.Leaf(alice).String(), strings.TrimSpace(out))
}

func TestToken_IssuesValidToken(t *testing.T) {
	out, err := executeCommand(t, "token", alice.String(), "--key", "k", "--ttl", "10m")
	require.NoError(t, err)

	claims, err := jwttoken.NewJWTService("k", "lockmint", "lockmint-api").ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	account, err := claims.Account()
	require.NoError(t, err)
	assert.Equal(t, alice, account)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), claims.ExpiresAt.Time, time.Minute)
}

func TestToken_RequiresKey(t *testing.T) {
	t.Setenv("JWT_SIGNING_KEY", "")
	_, err := executeCommand(t, "token", alice.String())
	assert.ErrorContains(t, err, "signing key required")
}
