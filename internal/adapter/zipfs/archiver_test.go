package zipfs

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/Strob0t/CommandForge/internal/domain"
)

func entryNames(t *testing.T, path string) []string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	defer zr.Close()

	var names []string
	for _, f := range zr.File {
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestArchiveAndRetrieve(t *testing.T) {
	a, err := NewArchiver(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	workTree := t.TempDir()
	writeTree(t, workTree, map[string]string{
		"main.go":           "package main\n",
		"pkg/util.go":       "package pkg\n",
		".git/HEAD":         "ref: refs/heads/main\n",
		"node_modules/a.js": "module.exports = {}\n",
	})

	ctx := context.Background()
	path, err := a.Archive(ctx, "cmd-1", workTree)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}

	got, err := a.Retrieve(ctx, "cmd-1")
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if got != path {
		t.Errorf("retrieve path = %q, want %q", got, path)
	}

	names := entryNames(t, path)
	want := []string{"main.go", "pkg/util.go"}
	if len(names) != len(want) {
		t.Fatalf("entries = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("entry[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestArchiveReplacesPrevious(t *testing.T) {
	a, err := NewArchiver(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	first := t.TempDir()
	writeTree(t, first, map[string]string{"old.go": "package old\n"})
	if _, err := a.Archive(ctx, "cmd-1", first); err != nil {
		t.Fatal(err)
	}

	second := t.TempDir()
	writeTree(t, second, map[string]string{"new.go": "package new\n"})
	path, err := a.Archive(ctx, "cmd-1", second)
	if err != nil {
		t.Fatal(err)
	}

	names := entryNames(t, path)
	if len(names) != 1 || names[0] != "new.go" {
		t.Errorf("entries after replace = %v, want [new.go]", names)
	}
}

func TestRetrieveMissing(t *testing.T) {
	a, err := NewArchiver(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	_, err = a.Retrieve(context.Background(), "cmd-none")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestDiscard(t *testing.T) {
	a, err := NewArchiver(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	workTree := t.TempDir()
	writeTree(t, workTree, map[string]string{"a.go": "package a\n"})
	if _, err := a.Archive(ctx, "cmd-1", workTree); err != nil {
		t.Fatal(err)
	}

	if err := a.Discard(ctx, "cmd-1"); err != nil {
		t.Fatalf("discard: %v", err)
	}
	if _, err := a.Retrieve(ctx, "cmd-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected not found after discard, got %v", err)
	}

	// Discarding a missing artifact is not an error.
	if err := a.Discard(ctx, "cmd-1"); err != nil {
		t.Errorf("second discard: %v", err)
	}
}
