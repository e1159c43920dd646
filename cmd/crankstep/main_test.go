package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/torosent/crankstep/internal/config"
	"github.com/torosent/crankstep/internal/exampleapp"
	"github.com/torosent/crankstep/internal/output"
	"github.com/torosent/crankstep/internal/profile"
	"github.com/torosent/crankstep/internal/vuser"
)

func appServer(t *testing.T, ssoStatus int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<html><head data-requesttoken="tok"></head></html>`)
	})
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		if ssoStatus != 0 {
			w.WriteHeader(ssoStatus)
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func profileDir(t *testing.T, baseURL string) string {
	t.Helper()
	dir := t.TempDir()
	doc := `{
  "hosts": {"my-app-server": "` + baseURL + `", "my-sso-server": "` + baseURL + `/"},
  "environment": "test"
}`
	if err := os.WriteFile(filepath.Join(dir, "ExampleProfile.json"), []byte(doc), 0o600); err != nil {
		t.Fatalf("write profile: %v", err)
	}
	return dir
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return executeWithInput(t, nil, args...)
}

func executeWithInput(t *testing.T, stdin io.Reader, args ...string) (string, string, error) {
	t.Helper()
	reg := vuser.NewRegistry()
	if err := exampleapp.Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(reg, &stdout, &stderr)
	if stdin != nil {
		cmd.SetIn(stdin)
	}
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func tryArgs(dir string, extra ...string) []string {
	args := []string{
		"try",
		"--profile-dir", dir,
		"--host", "ExampleProfile",
		"-u", exampleapp.Type1Name,
		"--no-think",
		"--data", "username=appuser1,password=secret",
	}
	return append(args, extra...)
}

func TestTryRunsEveryTask(t *testing.T) {
	srv := appServer(t, 0)

	stdout, stderr, err := execute(t, tryArgs(profileDir(t, srv.URL))...)
	if err != nil {
		t.Fatalf("try: %v\nstderr:\n%s", err, stderr)
	}

	for _, want := range []string{"TC0_01 Login", "TC1_03 Close View", "TC2_05 Close View", "Total Steps:       9", "Failed:            0"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("stdout missing %q:\n%s", want, stdout)
		}
	}
	if !strings.Contains(stderr, "begin step") || !strings.Contains(stderr, "leaving step") {
		t.Errorf("expected step log lines on stderr, got:\n%s", stderr)
	}
}

func TestTrySelectedTaskJSON(t *testing.T) {
	srv := appServer(t, 0)

	stdout, _, err := execute(t, tryArgs(profileDir(t, srv.URL), "--task", "test_case_1", "--json-output", "--threshold", "steps:count == 4")...)
	if err != nil {
		t.Fatalf("try: %v", err)
	}

	var report output.Report
	if err := json.Unmarshal([]byte(stdout), &report); err != nil {
		t.Fatalf("decode report: %v\n%s", err, stdout)
	}
	if len(report.Events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(report.Events))
	}
	if report.Events[0].Name != "TC0_01 Login" || report.Events[3].Name != "TC1_03 Close View" {
		t.Errorf("unexpected event order: %+v", report.Events)
	}
	if len(report.Thresholds) != 1 || !report.Thresholds[0].Pass {
		t.Errorf("expected passing threshold, got %+v", report.Thresholds)
	}
}

func TestTryThresholdFailure(t *testing.T) {
	srv := appServer(t, 0)

	stdout, _, err := execute(t, tryArgs(profileDir(t, srv.URL), "--threshold", "steps:count < 1")...)
	if !errors.Is(err, errThresholds) {
		t.Fatalf("expected threshold error, got %v", err)
	}
	if !strings.Contains(stdout, "1 of 1 thresholds failed") {
		t.Errorf("expected threshold summary:\n%s", stdout)
	}
}

func TestTryStepFailure(t *testing.T) {
	srv := appServer(t, http.StatusForbidden)

	stdout, stderr, err := execute(t, tryArgs(profileDir(t, srv.URL))...)
	if err == nil || !strings.Contains(err.Error(), "1 steps failed") {
		t.Fatalf("expected step failure error, got %v", err)
	}
	if !strings.Contains(stdout, "HTTP error response") {
		t.Errorf("expected error breakdown in report:\n%s", stdout)
	}
	if !strings.Contains(stderr, "failed step") {
		t.Errorf("expected failed step log line:\n%s", stderr)
	}
}

func TestTryDataFile(t *testing.T) {
	srv := appServer(t, 0)
	dir := profileDir(t, srv.URL)
	data := filepath.Join(t.TempDir(), "accounts.csv")
	if err := os.WriteFile(data, []byte("username,password\nfromfile,pw\nsecond,pw2\n"), 0o600); err != nil {
		t.Fatalf("write data: %v", err)
	}

	_, stderr, err := execute(t, "try", "--profile-dir", dir, "--host", "ExampleProfile", "-u", exampleapp.Type2Name, "--no-think", "--data-file", data, "--task", "test_case_1")
	if err != nil {
		t.Fatalf("try: %v\nstderr:\n%s", err, stderr)
	}
}

func TestTryPromptedPassword(t *testing.T) {
	var gotUser, gotPassword string
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<html><head data-requesttoken="tok"></head></html>`)
	})
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		gotUser, gotPassword = r.PostForm.Get("user"), r.PostForm.Get("password")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	_, stderr, err := executeWithInput(t, strings.NewReader("s3cret\n"),
		"try", "--profile-dir", profileDir(t, srv.URL), "--host", "ExampleProfile", "-u", exampleapp.Type1Name,
		"--no-think", "--task", "test_case_1", "--data", "username=appuser1,password=ignored", "--prompt", "password")
	if err != nil {
		t.Fatalf("try: %v\nstderr:\n%s", err, stderr)
	}
	if gotUser != "appuser1" || gotPassword != "s3cret" {
		t.Errorf("login form user=%q password=%q, want appuser1/s3cret", gotUser, gotPassword)
	}
	if !strings.Contains(stderr, "Enter password: ") {
		t.Errorf("expected prompt on stderr:\n%s", stderr)
	}
	if strings.Contains(stderr, "s3cret") {
		t.Errorf("prompted value leaked to stderr:\n%s", stderr)
	}
}

func TestPromptValues(t *testing.T) {
	var out bytes.Buffer
	got, err := promptValues(strings.NewReader("alice\r\nhunter2"), &out, []string{"username", " ", "password"})
	if err != nil {
		t.Fatalf("promptValues: %v", err)
	}
	if got["username"] != "alice" || got["password"] != "hunter2" || len(got) != 2 {
		t.Errorf("promptValues = %v", got)
	}
	if out.String() != "Enter username: Enter password: " {
		t.Errorf("prompts = %q", out.String())
	}

	if _, err := promptValues(strings.NewReader(""), io.Discard, []string{"password"}); err == nil || !strings.Contains(err.Error(), "read password") {
		t.Errorf("expected read error on empty input, got %v", err)
	}
}

func TestTryErrors(t *testing.T) {
	dir := profileDir(t, "http://app.example.com")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing user", []string{"try", "--profile-dir", dir, "--host", "ExampleProfile"}, "--user is required"},
		{"unknown user", []string{"try", "--profile-dir", dir, "--host", "ExampleProfile", "-u", "Nobody"}, "unknown user type"},
		{"missing host", []string{"try", "--profile-dir", dir, "-u", exampleapp.Type1Name}, "--host is required"},
		{"bad threshold", []string{"try", "--profile-dir", dir, "--host", "ExampleProfile", "-u", exampleapp.Type1Name, "--threshold", "latency:p99 < 1"}, "unsupported metric"},
		{"bad log level", []string{"try", "--log-level", "loud", "--host", "ExampleProfile", "-u", exampleapp.Type1Name}, "log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestTryMissingProfile(t *testing.T) {
	_, _, err := execute(t, "try", "--profile-dir", t.TempDir(), "--host", "Nowhere", "-u", exampleapp.Type1Name)
	if !errors.Is(err, profile.ErrNotFound) {
		t.Fatalf("expected profile.ErrNotFound, got %v", err)
	}
	var perr *profile.Error
	if !errors.As(err, &perr) || perr.Name != "Nowhere" {
		t.Fatalf("expected *profile.Error for Nowhere, got %v", err)
	}
}

func TestProfileShow(t *testing.T) {
	dir := profileDir(t, "http://app.example.com")

	stdout, _, err := execute(t, "profile", "show", "ExampleProfile", "--profile-dir", dir)
	if err != nil {
		t.Fatalf("profile show: %v", err)
	}

	var doc profileDoc
	if err := yaml.Unmarshal([]byte(stdout), &doc); err != nil {
		t.Fatalf("decode yaml: %v\n%s", err, stdout)
	}
	if doc.Name != "ExampleProfile" {
		t.Errorf("name = %q", doc.Name)
	}
	if doc.Hosts["my-sso-server"] != "http://app.example.com" {
		t.Errorf("expected trailing slash to be trimmed, got %q", doc.Hosts["my-sso-server"])
	}
	if doc.Settings["environment"] != "test" {
		t.Errorf("settings = %v", doc.Settings)
	}
}

func TestScenarioShowDefault(t *testing.T) {
	stdout, _, err := execute(t, "scenario", "show", "--yaml")
	if err != nil {
		t.Fatalf("scenario show: %v", err)
	}

	var doc struct {
		Users []scenarioEntryDoc `yaml:"users"`
	}
	if err := yaml.Unmarshal([]byte(stdout), &doc); err != nil {
		t.Fatalf("decode yaml: %v\n%s", err, stdout)
	}
	if len(doc.Users) != 2 {
		t.Fatalf("expected 2 users, got %+v", doc.Users)
	}
	if doc.Users[0].Type != exampleapp.Type1Name || doc.Users[0].Weight != 3 || doc.Users[0].Share != 0.75 {
		t.Errorf("unexpected first entry: %+v", doc.Users[0])
	}
	if doc.Users[1].Pacing != "between(3s, 8s)" {
		t.Errorf("unexpected pacing: %q", doc.Users[1].Pacing)
	}
}

func TestScenarioShowFromConfig(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "scenario.yaml")
	doc := `users:
  - type: ExampleAppType2User
    weight: 1
    pacing:
      kind: constant
      value: 1s
  - type: ExampleAppType1User
    weight: 1
`
	if err := os.WriteFile(cfgPath, []byte(doc), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	stdout, _, err := execute(t, "scenario", "show", "--config", cfgPath)
	if err != nil {
		t.Fatalf("scenario show: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got:\n%s", stdout)
	}
	if !strings.HasPrefix(lines[0], exampleapp.Type2Name) || !strings.Contains(lines[0], "constant(1s)") {
		t.Errorf("unexpected first line %q", lines[0])
	}
	if !strings.Contains(lines[1], "between(2s, 5s)") {
		t.Errorf("expected type pacing for entry without pacing, got %q", lines[1])
	}
}

func TestScenarioShowUnknownType(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "scenario.yaml")
	if err := os.WriteFile(cfgPath, []byte("users:\n  - type: Ghost\n    weight: 1\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, _, err := execute(t, "scenario", "show", "--config", cfgPath)
	if err == nil || !strings.Contains(err.Error(), "Ghost") {
		t.Fatalf("expected unknown type error, got %v", err)
	}
}

func TestTestDataMerge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	if err := os.WriteFile(path, []byte(`[{"username":"file","password":"filepw"}]`), 0o600); err != nil {
		t.Fatalf("write data: %v", err)
	}
	cfg := config.Defaults()
	cfg.DataFile = path
	cfg.TestData = map[string]string{"password": "flag"}

	rec, err := testData(context.Background(), cfg)
	if err != nil {
		t.Fatalf("testData: %v", err)
	}
	if rec.Get("username") != "file" || rec.Get("password") != "flag" {
		t.Fatalf("unexpected record %v", rec)
	}

	rec, err = testData(context.Background(), config.Defaults())
	if err != nil || rec != nil {
		t.Fatalf("expected no record, got %v (%v)", rec, err)
	}
}

func TestConfiguredPacing(t *testing.T) {
	users := []config.UserConfig{
		{Type: exampleapp.Type1Name, Weight: 1},
	}
	sampler, err := configuredPacing(users, exampleapp.Type1Name)
	if err != nil {
		t.Fatalf("configuredPacing: %v", err)
	}
	if sampler != nil {
		t.Fatalf("zero pacing config should keep the type's pacing, got %v", sampler)
	}

	users[0].Pacing = config.PacingConfig{Kind: config.PacingConstant, Value: time.Second}
	sampler, err = configuredPacing(users, exampleapp.Type1Name)
	if err != nil || sampler == nil {
		t.Fatalf("expected sampler, got %v (%v)", sampler, err)
	}

	sampler, err = configuredPacing(users, exampleapp.Type2Name)
	if err != nil || sampler != nil {
		t.Fatalf("undeclared type should keep its pacing, got %v (%v)", sampler, err)
	}
}
