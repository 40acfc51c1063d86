package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"alphaforge/internal/alpha"
	"alphaforge/internal/config"
	"alphaforge/internal/ledger"
	"alphaforge/internal/logging"
	"alphaforge/internal/simulation"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// setup installs a default configuration writing its ledger into a temp dir.
func setup(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	cfg = config.DefaultConfig()
	cfg.Ledger.Path = filepath.Join(dir, "ledger.json")
	logger = zap.NewNop()
	logs = logging.NewRegistry(logger, cfg.Logging)

	t.Cleanup(func() {
		username, password, credentialsPath = "", "", ""
		varyOut, runOut, fetchOut = "", "", ""
		ledgerJSON = false
		submitMinSharpe, submitMinFitness = -1, -1
	})
	return dir
}

func testCommand() (*cobra.Command, *bytes.Buffer) {
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	return cmd, &out
}

func writeRecords(t *testing.T, dir string, codes ...string) string {
	t.Helper()
	sources := alpha.Sources(alpha.Render(alpha.NewRecord(alpha.DefaultSettings(), ""), codes))
	data, err := alpha.EncodeSources(sources)
	require.NoError(t, err)
	path := filepath.Join(dir, "records.json")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestVaryCmd_WritesVariants(t *testing.T) {
	dir := setup(t)
	cfg.Variation.Vocabularies = []string{"group_keys", "group_operators"}
	in := writeRecords(t, dir, "group_rank(close, sector)")
	varyOut = filepath.Join(dir, "variants.json")

	cmd, _ := testCommand()
	require.NoError(t, runVary(cmd, []string{in}))

	data, err := os.ReadFile(varyOut)
	require.NoError(t, err)
	variants, err := alpha.DecodeSources(data)
	require.NoError(t, err)
	require.Len(t, variants, 4*6-1)

	var codes []string
	for _, v := range variants {
		codes = append(codes, v.Code())
	}
	assert.Contains(t, codes, "group_zscore(close, market)")
	assert.NotContains(t, codes, "group_rank(close, sector)")
}

func TestVaryCmd_RawTextToStdout(t *testing.T) {
	dir := setup(t)
	cfg.Variation.Vocabularies = []string{"group_keys"}
	in := filepath.Join(dir, "raw.json")
	raw, err := json.Marshal([]string{`{'type': 'REGULAR', 'regular': 'rank(close, 5)'}`})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(in, raw, 0644))

	cmd, out := testCommand()
	require.NoError(t, runVary(cmd, []string{in}))

	variants, err := alpha.DecodeSources(out.Bytes())
	require.NoError(t, err)
	require.Len(t, variants, 5)
	assert.Equal(t, "rank(close, 2)", variants[0].Code())
	assert.IsType(t, alpha.Raw{}, variants[0])
}

func TestVaryCmd_UnknownVocabulary(t *testing.T) {
	dir := setup(t)
	cfg.Variation.Vocabularies = []string{"nope"}
	in := writeRecords(t, dir, "rank(close)")

	cmd, _ := testCommand()
	assert.ErrorContains(t, runVary(cmd, []string{in}), "nope")
}

// brainStub answers just enough of the service for a clean simulation run.
type brainStub struct {
	mu      sync.Mutex
	created int
}

func (b *brainStub) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /authentication", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "user", user)
		assert.Equal(t, "secret", pass)
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("POST /simulations", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.created++
		n := b.created
		b.mu.Unlock()
		w.Header().Set("Location", fmt.Sprintf("/simulations/sim-%d", n))
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("GET /simulations/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		fmt.Fprintf(w, `{"id": %q, "status": "COMPLETE", "alpha": "A-%s"}`, id, id)
	})
	mux.HandleFunc("GET /alphas/{id}", func(w http.ResponseWriter, r *http.Request) {
		result := "PASS"
		if r.PathValue("id") == "A-sim-2" {
			result = "FAIL"
		}
		fmt.Fprintf(w, `{"id": %q, "is": {"sharpe": 1.3, "checks": [{"name": "LOW_SHARPE", "result": %q}]}}`,
			r.PathValue("id"), result)
	})
	return mux
}

func TestSimulateCmd_EndToEnd(t *testing.T) {
	dir := setup(t)
	stub := &brainStub{}
	srv := httptest.NewServer(stub.handler(t))
	defer srv.Close()

	cfg.Brain.BaseURL = srv.URL
	username, password = "user", "secret"
	in := writeRecords(t, dir, "rank(close)", "rank(open)")

	cmd, out := testCommand()
	require.NoError(t, runSimulate(cmd, []string{in}))

	assert.Equal(t, 2, stub.created)
	assert.Contains(t, out.String(), simulation.Succeeded.String())
	assert.Contains(t, out.String(), simulation.FailedChecks.String())
	assert.Contains(t, out.String(), "succeeded 1  failed checks 1")

	entries, err := ledger.NewFileLedger(cfg.Ledger.Path, nil).Entries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "A-sim-1", entries[0].AlphaID)
	assert.Equal(t, "SUCCEEDED", entries[0].Outcome)
	assert.Equal(t, "FAILED_CHECKS", entries[1].Outcome)
	assert.Equal(t, entries[0].RunID, entries[1].RunID)
}

func TestSimulateCmd_SignInRejected(t *testing.T) {
	dir := setup(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	cfg.Brain.BaseURL = srv.URL
	username, password = "user", "wrong"
	in := writeRecords(t, dir, "rank(close)")

	cmd, _ := testCommand()
	err := runSimulate(cmd, []string{in})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestLedgerCmd(t *testing.T) {
	setup(t)
	lg := ledger.NewFileLedger(cfg.Ledger.Path, nil)
	require.NoError(t, lg.Append(ledger.NewEntry("A1", "SUCCEEDED", "run-1", nil)))
	require.NoError(t, lg.Append(ledger.NewEntry("A2", "SKIPPED", "run-1", nil)))

	cmd, out := testCommand()
	require.NoError(t, runLedger(cmd, nil))
	assert.Contains(t, out.String(), "Outcome log (2 entries)")
	assert.Contains(t, out.String(), "SKIPPED")

	ledgerJSON = true
	cmd, out = testCommand()
	require.NoError(t, runLedger(cmd, nil))
	var entries []ledger.Entry
	require.NoError(t, json.Unmarshal(out.Bytes(), &entries))
	assert.Len(t, entries, 2)
}

func TestResolveCredentials(t *testing.T) {
	dir := setup(t)

	username, password = "flag-user", "flag-pass"
	creds, err := resolveCredentials()
	require.NoError(t, err)
	assert.Equal(t, "flag-user", creds.Username)

	username, password = "", ""
	path := filepath.Join(dir, "credential.txt")
	require.NoError(t, os.WriteFile(path, []byte(`[{"username": "file-user", "password": "file-pass"}]`), 0600))
	cfg.Brain.CredentialsFile = path
	creds, err = resolveCredentials()
	require.NoError(t, err)
	assert.Equal(t, "file-user", creds.Username)

	cfg.Brain.Username, cfg.Brain.Password = "cfg-user", "cfg-pass"
	creds, err = resolveCredentials()
	require.NoError(t, err)
	assert.Equal(t, "cfg-user", creds.Username)
}

func TestSubmitThresholds(t *testing.T) {
	setup(t)
	cfg.Submit.Thresholds.MinReturn = 0.2

	th := submitThresholds()
	assert.Equal(t, alpha.Thresholds{MinSharpe: 1.25, MinFitness: 1.0}, th)

	submitMinSharpe = 2
	assert.Equal(t, 2.0, submitThresholds().MinSharpe)
}

func TestTable(t *testing.T) {
	tbl := newTable("Title", "A", "Longer header")
	tbl.addRow("1", "x")
	tbl.addRow("22")

	lines := strings.Split(strings.TrimRight(tbl.String(), "\n"), "\n")
	require.Len(t, lines, 5)
	assert.Contains(t, lines[0], "Title")
	assert.Contains(t, lines[1], "Longer header")
	assert.Contains(t, lines[4], "22")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
