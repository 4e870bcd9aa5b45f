package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeGo(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLintFindsMissingAndDuplicateMarkers(t *testing.T) {
	dir := t.TempDir()
	writeGo(t, dir, "a.go", "package q\n\nconst QGood = `--sql 11111111-2222-4333-8444-555555555555\nselect 1;\n`\n\nconst QMissing = `select 2;`\n")
	writeGo(t, dir, "b.go", "package q\n\nconst QCopy = `--sql 11111111-2222-4333-8444-555555555555\nselect 3;\n`\n\nconst Label = \"not sql at all\"\n")

	violations, err := lint([]string{dir})
	if err != nil {
		t.Fatalf("lint: %v", err)
	}
	if len(violations) != 2 {
		t.Fatalf("violations = %v, want 2", violations)
	}
	if violations[0].name != "QMissing" || !strings.Contains(violations[0].message, "missing") {
		t.Fatalf("first violation = %v", violations[0])
	}
	if violations[1].name != "QCopy" || !strings.Contains(violations[1].message, "QGood") {
		t.Fatalf("second violation = %v", violations[1])
	}
}

func TestLintRepositoryQueries(t *testing.T) {
	violations, err := lint([]string{filepath.Join("..", "..", "sqlinline")})
	if err != nil {
		t.Fatalf("lint: %v", err)
	}
	if len(violations) != 0 {
		t.Fatalf("sqlinline has marker problems: %v", violations)
	}
}
