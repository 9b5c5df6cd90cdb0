//go:build integration

package test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestDaemonStartStop starts the scheduler daemon, probes its endpoints and
// stops it with SIGINT.
func TestDaemonStartStop(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "revkeep.yaml")
	createTestConfig(t, configFile, tmpDir, `
prune:
  schedule: "@every 1h"
  frequency: every_time
policies:
  article:
    minimum_revisions_to_keep: 2
telemetry:
  metrics:
    enabled: true
    listen_address: "127.0.0.1:19464"
`)

	binaryPath := buildRevkeepBinary(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, binaryPath, "run", "--config", configFile)
	cmd.Dir = tmpDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		t.Fatalf("failed to start daemon: %v", err)
	}
	defer func() {
		if cmd.Process != nil {
			cmd.Process.Kill()
		}
	}()

	if !waitForHealthy("http://127.0.0.1:19464/health", 10*time.Second) {
		t.Fatalf("daemon failed to start\nStdout: %s\nStderr: %s", stdout.String(), stderr.String())
	}

	resp, err := http.Get("http://127.0.0.1:19464/ready")
	if err != nil {
		t.Fatalf("readiness check failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected /ready status 200, got %d", resp.StatusCode)
	}

	resp, err = http.Get("http://127.0.0.1:19464/metrics")
	if err != nil {
		t.Fatalf("metrics request failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !bytes.Contains(body, []byte("revkeep_policies_configured 1")) {
		t.Errorf("metrics should report the seeded policy, got:\n%s", body)
	}

	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		t.Errorf("failed to send SIGINT: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			var exitErr *exec.ExitError
			if !errors.As(err, &exitErr) || exitErr.ExitCode() != 130 {
				t.Errorf("unexpected shutdown error: %v\nStdout: %s\nStderr: %s", err, stdout.String(), stderr.String())
			}
		}
	case <-time.After(5 * time.Second):
		t.Error("daemon did not shut down within 5 seconds")
	}
}

// TestPrunePipeline imports content, previews the candidates and prunes them.
func TestPrunePipeline(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "revkeep.yaml")
	createTestConfig(t, configFile, tmpDir, `
policies:
  article:
    minimum_revisions_to_keep: 2
`)
	contentFile := filepath.Join(tmpDir, "content.yaml")
	createTestContent(t, contentFile, 1, 6)

	binaryPath := buildRevkeepBinary(t)
	run := func(args ...string) ([]byte, error) {
		cmd := exec.Command(binaryPath, append([]string{"--config", configFile}, args...)...)
		cmd.Dir = tmpDir
		var stdout bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = io.Discard
		err := cmd.Run()
		return stdout.Bytes(), err
	}

	t.Log("Step 1: Importing content...")
	if output, err := run("import", contentFile); err != nil {
		t.Fatalf("import failed: %v\nOutput: %s", err, output)
	}

	t.Log("Step 2: Listing candidates...")
	output, err := run("candidates", "article", "-o", "json")
	if err != nil {
		t.Fatalf("candidates failed: %v\nOutput: %s", err, output)
	}
	var report struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(output, &report); err != nil {
		t.Fatalf("failed to parse JSON output: %v\nOutput: %s", err, output)
	}
	if report.Total != 4 {
		t.Errorf("expected 4 candidates, got %d", report.Total)
	}

	t.Log("Step 3: Pruning...")
	output, err = run("prune", "article", "--yes")
	if err != nil {
		t.Fatalf("prune failed: %v\nOutput: %s", err, output)
	}
	if !bytes.Contains(output, []byte("Deleted 4 of 4 revisions")) {
		t.Errorf("unexpected prune output: %s", output)
	}

	t.Log("Step 4: Checking the last run...")
	output, err = run("last-execute", "-o", "json")
	if err != nil {
		t.Fatalf("last-execute failed: %v\nOutput: %s", err, output)
	}
	if bytes.Contains(output, []byte("never")) {
		t.Errorf("last execute should be set after a prune: %s", output)
	}
}

// TestExitCodes checks the documented exit codes.
func TestExitCodes(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "revkeep.yaml")
	createTestConfig(t, configFile, tmpDir, `
prune:
  frequency: never
`)

	binaryPath := buildRevkeepBinary(t)

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"version", []string{"version"}, 0},
		{"scheduled run not due", []string{"prune", "--scheduled"}, 0},
		{"unknown frequency", []string{"frequency", "sometimes"}, 2},
		{"missing policy", []string{"candidates", "article"}, 1},
		{"bad output format", []string{"policy", "list", "-o", "xml"}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := exec.Command(binaryPath, append([]string{"--config", configFile}, tt.args...)...)
			output, err := cmd.CombinedOutput()

			code := 0
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				code = exitErr.ExitCode()
			} else if err != nil {
				t.Fatalf("failed to run revkeep: %v", err)
			}
			if code != tt.want {
				t.Errorf("exit code = %d, want %d\nOutput: %s", code, tt.want, output)
			}
		})
	}
}

// TestValidate checks config validation with run --validate.
func TestValidate(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	tmpDir := t.TempDir()
	binaryPath := buildRevkeepBinary(t)

	t.Run("valid config", func(t *testing.T) {
		configFile := filepath.Join(tmpDir, "valid.yaml")
		createTestConfig(t, configFile, tmpDir, `
policies:
  page:
    minimum_revisions_to_keep: 3
    minimum_age_to_delete: {amount: 2, unit: months}
`)
		cmd := exec.Command(binaryPath, "run", "--config", configFile, "--validate")
		output, err := cmd.CombinedOutput()
		if err != nil {
			t.Errorf("--validate should succeed with valid config: %v\nOutput: %s", err, output)
		}
	})

	t.Run("invalid config", func(t *testing.T) {
		configFile := filepath.Join(tmpDir, "invalid.yaml")
		createTestConfig(t, configFile, tmpDir, `
prune:
  chunk_size: -5
`)
		cmd := exec.Command(binaryPath, "run", "--config", configFile, "--validate")
		output, err := cmd.CombinedOutput()
		if err == nil {
			t.Errorf("--validate should fail with invalid config\nOutput: %s", output)
		}
	})
}

// Helper functions

// buildRevkeepBinary builds the revkeep binary for testing
func buildRevkeepBinary(t *testing.T) string {
	t.Helper()

	// Commands run in temporary directories, so the path must be absolute.
	binaryPath, err := filepath.Abs("../bin/revkeep")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(binaryPath); err == nil {
		return binaryPath
	}

	t.Log("Building revkeep binary...")
	cmd := exec.Command("go", "build", "-o", binaryPath, "../cmd/revkeep")
	output, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("failed to build revkeep: %v\nOutput: %s", err, output)
	}
	return binaryPath
}

// waitForHealthy waits for a health endpoint to return 200
func waitForHealthy(url string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	client := &http.Client{Timeout: 1 * time.Second}

	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil && resp.StatusCode == http.StatusOK {
			resp.Body.Close()
			return true
		}
		if resp != nil {
			resp.Body.Close()
		}
		time.Sleep(100 * time.Millisecond)
	}
	return false
}

// createTestConfig writes a config whose databases live in dir, followed
// by extra.
func createTestConfig(t *testing.T, path, dir, extra string) {
	t.Helper()

	content := fmt.Sprintf(`
store:
  backend: sqlite
  sqlite:
    path: %q
state:
  backend: sqlite
  path: %q
telemetry:
  logging:
    level: warn
`, filepath.Join(dir, "content.db"), filepath.Join(dir, "state.db"))

	// Sections repeated in extra replace the defaults above.
	if strings.Contains(extra, "telemetry:") {
		content = strings.Replace(content, "telemetry:\n  logging:\n    level: warn\n", "", 1)
	}
	content += extra

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create config file: %v", err)
	}
}

// createTestContent writes an import file with one article record holding
// revisions 1..n.
func createTestContent(t *testing.T, path string, recordID int64, n int) {
	t.Helper()

	var b strings.Builder
	fmt.Fprintf(&b, "records:\n  - id: %d\n    type: article\n    title: Test\n    revisions:\n", recordID)
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "      - id: %d\n        timestamp: %s\n", i, start.AddDate(0, i, 0).Format(time.RFC3339))
	}

	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatalf("failed to create content file: %v", err)
	}
}
