package feeder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestCSVFeederRoundRobin(t *testing.T) {
	path := writeFile(t, "accounts.csv", `username,password,folder
appuser1,secret1,/home/appuser1
appuser2,secret2,/home/appuser2`)

	f, err := NewCSVFeeder(path)
	if err != nil {
		t.Fatalf("NewCSVFeeder() error = %v", err)
	}
	defer f.Close()

	if f.Len() != 2 {
		t.Errorf("Len() = %d, want 2", f.Len())
	}

	ctx := context.Background()
	want := []string{"appuser1", "appuser2", "appuser1"}
	for i, user := range want {
		rec, err := f.Next(ctx)
		if err != nil {
			t.Fatalf("Next() #%d error = %v", i, err)
		}
		if rec["username"] != user {
			t.Errorf("Next() #%d username = %q, want %q", i, rec["username"], user)
		}
	}
}

func TestJSONFeederArrayAndObject(t *testing.T) {
	arr := writeFile(t, "accounts.json", `[
		{"username": "appuser1", "password": "pw", "quota": 10},
		{"username": "appuser2", "password": "pw", "tags": ["a", "b"]}
	]`)
	f, err := NewJSONFeeder(arr)
	if err != nil {
		t.Fatalf("NewJSONFeeder(array) error = %v", err)
	}
	first, _ := f.Next(context.Background())
	if first["quota"] != "10" {
		t.Errorf("quota = %q, want 10", first["quota"])
	}
	second, _ := f.Next(context.Background())
	if second["tags"] != `["a","b"]` {
		t.Errorf("tags = %q, want JSON encoded list", second["tags"])
	}

	obj := writeFile(t, "one.json", `{"username": "solo", "password": "pw"}`)
	single, err := NewJSONFeeder(obj)
	if err != nil {
		t.Fatalf("NewJSONFeeder(object) error = %v", err)
	}
	if single.Len() != 1 {
		t.Errorf("Len() = %d, want 1", single.Len())
	}
}

func TestNextReturnsCopies(t *testing.T) {
	f := Static(Record{"username": "appuser1"})

	rec, err := f.Next(context.Background())
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	rec["username"] = "mutated"

	again, _ := f.Next(context.Background())
	if again["username"] != "appuser1" {
		t.Errorf("dataset changed through returned record: %v", again)
	}
}

func TestStaticEmpty(t *testing.T) {
	if _, err := Static().Next(context.Background()); !errors.Is(err, ErrEmpty) {
		t.Errorf("Next() error = %v, want ErrEmpty", err)
	}
}

func TestFeederConcurrentAccess(t *testing.T) {
	var rows []string
	rows = append(rows, "id,value")
	for i := 1; i <= 100; i++ {
		rows = append(rows, fmt.Sprintf("%d,value-%d", i, i))
	}
	f, err := NewCSVFeeder(writeFile(t, "concurrent.csv", strings.Join(rows, "\n")))
	if err != nil {
		t.Fatalf("NewCSVFeeder() error = %v", err)
	}

	const workers = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[string]bool)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := f.Next(context.Background())
			if err != nil {
				t.Errorf("Next() error = %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if seen[rec["id"]] {
				t.Errorf("duplicate record %s", rec["id"])
			}
			seen[rec["id"]] = true
		}()
	}
	wg.Wait()

	if len(seen) != workers {
		t.Errorf("got %d distinct records, want %d", len(seen), workers)
	}
}

func TestOpenAndFirst(t *testing.T) {
	csvPath := writeFile(t, "data.CSV", "username,password\nfirst,pw\nsecond,pw")
	rec, err := First(context.Background(), csvPath)
	if err != nil {
		t.Fatalf("First() error = %v", err)
	}
	if rec["username"] != "first" {
		t.Errorf("First() = %v", rec)
	}

	if _, err := Open("data.txt"); err == nil {
		t.Error("Open(.txt) expected error")
	}
}

func TestFeederErrors(t *testing.T) {
	if _, err := NewCSVFeeder("/nonexistent/path/file.csv"); err == nil {
		t.Error("NewCSVFeeder(missing) error = nil")
	}
	if _, err := NewCSVFeeder(writeFile(t, "empty.csv", "")); err == nil {
		t.Error("NewCSVFeeder(empty) error = nil")
	}
	if _, err := NewCSVFeeder(writeFile(t, "header.csv", "a,b")); err == nil {
		t.Error("NewCSVFeeder(header only) error = nil")
	}
	if _, err := NewCSVFeeder(writeFile(t, "ragged.csv", "a,b\n1")); err == nil {
		t.Error("NewCSVFeeder(ragged) error = nil")
	}
	if _, err := NewJSONFeeder(writeFile(t, "bad.json", `{invalid json`)); err == nil {
		t.Error("NewJSONFeeder(invalid) error = nil")
	}
	if _, err := NewJSONFeeder(writeFile(t, "none.json", `[]`)); err == nil {
		t.Error("NewJSONFeeder(empty array) error = nil")
	}
}

func TestFeederContextCancellation(t *testing.T) {
	f := Static(Record{"id": "1"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := f.Next(ctx); err != context.Canceled {
		t.Errorf("Next() with cancelled context error = %v, want context.Canceled", err)
	}
}

func TestRecordHelpers(t *testing.T) {
	var nilRec Record
	if nilRec.Clone() != nil {
		t.Error("Clone(nil) != nil")
	}
	r := Record{"b": "2", "a": "1"}
	if got := strings.Join(r.Keys(), ","); got != "a,b" {
		t.Errorf("Keys() = %q", got)
	}
	if r.Get("missing") != "" {
		t.Error("Get(missing) not empty")
	}
}

func TestSubstitutePlaceholders(t *testing.T) {
	tests := []struct {
		name     string
		template string
		record   Record
		want     string
	}{
		{"folder path", "/apps/files/?dir=/{{username}}", Record{"username": "appuser1"}, "/apps/files/?dir=/appuser1"},
		{"several", "{{user}}:{{password}}", Record{"user": "u", "password": "p"}, "u:p"},
		{"missing field kept", "/users/{{missing}}", Record{"user": "u"}, "/users/{{missing}}"},
		{"no placeholders", "/static", Record{"user": "u"}, "/static"},
		{"nil record", "/users/{{user}}", nil, "/users/{{user}}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SubstitutePlaceholders(tt.template, tt.record); got != tt.want {
				t.Errorf("SubstitutePlaceholders() = %q, want %q", got, tt.want)
			}
		})
	}
}
