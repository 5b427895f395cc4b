package grf

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeTestArchive(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.grf")
	files := map[string][]byte{
		"data/test.txt":                  []byte("Hello, GRF!"),
		"data/model/tree.rsm":            append([]byte("GRSM"), make([]byte, 64)...),
		"data/subfolder/nested/file.txt": bytes.Repeat([]byte("nested "), 50),
	}
	if err := Create(path, files); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return path
}

func TestOpenAndList(t *testing.T) {
	archive, err := Open(writeTestArchive(t))
	if err != nil {
		t.Fatalf("failed to open GRF: %v", err)
	}
	defer archive.Close()

	files := archive.List()
	want := []string{"data/model/tree.rsm", "data/subfolder/nested/file.txt", "data/test.txt"}
	if len(files) != len(want) {
		t.Fatalf("List() = %v, want %v", files, want)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("List()[%d] = %q, want %q", i, files[i], want[i])
		}
	}
}

func TestContains(t *testing.T) {
	archive, err := Open(writeTestArchive(t))
	if err != nil {
		t.Fatalf("failed to open GRF: %v", err)
	}
	defer archive.Close()

	tests := []struct {
		path string
		want bool
	}{
		{"data/test.txt", true},
		{"DATA\\TEST.TXT", true},
		{"nonexistent/file/path.txt", false},
	}
	for _, tt := range tests {
		if got := archive.Contains(tt.path); got != tt.want {
			t.Errorf("Contains(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestRead(t *testing.T) {
	archive, err := Open(writeTestArchive(t))
	if err != nil {
		t.Fatalf("failed to open GRF: %v", err)
	}
	defer archive.Close()

	data, err := archive.Read("data/test.txt")
	if err != nil {
		t.Fatalf("failed to read file: %v", err)
	}
	if string(data) != "Hello, GRF!" {
		t.Errorf("content = %q", data)
	}

	nested, err := archive.Read("data/subfolder/nested/file.txt")
	if err != nil {
		t.Fatalf("failed to read nested file: %v", err)
	}
	if len(nested) != 350 {
		t.Errorf("nested size = %d, want 350", len(nested))
	}

	if _, err := archive.Read("missing.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing entry error = %v, want ErrNotFound", err)
	}
}

func TestOpen_InvalidMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.grf")
	if err := os.WriteFile(path, make([]byte, 64), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); !errors.Is(err, ErrInvalidMagic) {
		t.Errorf("got %v, want ErrInvalidMagic", err)
	}
}

func TestSplitPath(t *testing.T) {
	tests := []struct {
		in      string
		archive string
		inner   string
		ok      bool
	}{
		{"data.grf#data/model/tree.rsm", "data.grf", "data/model/tree.rsm", true},
		{"/abs/DATA.GRF#a.rsm", "/abs/DATA.GRF", "a.rsm", true},
		{"model.rsm", "", "", false},
		{"data.grf#", "", "", false},
		{"cache.gvc#x", "", "", false},
	}
	for _, tt := range tests {
		archive, inner, ok := SplitPath(tt.in)
		if archive != tt.archive || inner != tt.inner || ok != tt.ok {
			t.Errorf("SplitPath(%q) = %q, %q, %v", tt.in, archive, inner, ok)
		}
	}
}

func TestReadPath(t *testing.T) {
	path := writeTestArchive(t)
	data, err := ReadPath(path + "#data/model/tree.rsm")
	if err != nil {
		t.Fatalf("ReadPath: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("GRSM")) {
		t.Errorf("unexpected content %q", data[:4])
	}
}
