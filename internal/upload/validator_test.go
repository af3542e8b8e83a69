package upload

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/neel92654/PDF-QA-Bot/internal/domain"
)

func newTestValidator(t *testing.T, maxBytes int64) *Validator {
	t.Helper()
	v, err := New(Config{
		Dir:               t.TempDir(),
		MaxBytes:          maxBytes,
		AllowedExtensions: []string{"pdf", "docx", "txt", "md"},
	}, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return v
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names
}

func TestValidate_AdmitsValidPDF(t *testing.T) {
	v := newTestValidator(t, 1<<20)

	content := append([]byte("%PDF-1.4 test pdf content\n"), bytes.Repeat([]byte("x"), 2048)...)
	staged, err := v.Validate(bytes.NewReader(content), "doc.pdf", "application/pdf")
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if staged.Size() != int64(len(content)) {
		t.Errorf("Size = %d, want %d", staged.Size(), len(content))
	}
	got, err := os.ReadFile(staged.Path())
	if err != nil {
		t.Fatalf("reading staged file: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("staged content differs from input")
	}
	if filepath.Dir(staged.Path()) != v.Dir() {
		t.Errorf("staged file %q outside upload root %q", staged.Path(), v.Dir())
	}

	staged.Release()
	if names := dirEntries(t, v.Dir()); len(names) != 0 {
		t.Errorf("upload root not empty after Release: %v", names)
	}
}

func TestValidate_RejectsContentMismatch(t *testing.T) {
	v := newTestValidator(t, 1<<20)

	// Declared and named as PDF, but the bytes are not.
	_, err := v.Validate(strings.NewReader("hello"), "doc.pdf", "application/pdf")
	if !domain.HasCode(err, domain.CodeContentMismatch) {
		t.Fatalf("Validate() error = %v, want ContentMismatch", err)
	}
	if names := dirEntries(t, v.Dir()); len(names) != 0 {
		t.Errorf("upload root not empty after rejection: %v", names)
	}
}

func TestValidate_RejectsDeclaredTypeSpoof(t *testing.T) {
	v := newTestValidator(t, 1<<20)

	// Correct magic bytes but a declared type that contradicts the extension.
	_, err := v.Validate(strings.NewReader("%PDF-1.4 ..."), "doc.pdf", "text/plain")
	if !domain.HasCode(err, domain.CodeContentMismatch) {
		t.Fatalf("Validate() error = %v, want ContentMismatch", err)
	}
}

func TestValidate_RejectsUnsupportedExtension(t *testing.T) {
	v := newTestValidator(t, 1<<20)

	_, err := v.Validate(strings.NewReader("#!/bin/sh"), "run.sh", "text/plain")
	if !domain.HasCode(err, domain.CodeUnsupportedType) {
		t.Fatalf("Validate() error = %v, want UnsupportedType", err)
	}
}

func TestValidate_ExtensionIsCaseInsensitive(t *testing.T) {
	v := newTestValidator(t, 1<<20)

	staged, err := v.Validate(strings.NewReader("%PDF-1.7 x"), "REPORT.PDF", "application/pdf")
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	staged.Release()
}

func TestValidate_RejectsEmptyFile(t *testing.T) {
	v := newTestValidator(t, 1<<20)

	_, err := v.Validate(strings.NewReader(""), "doc.pdf", "application/pdf")
	if !domain.HasCode(err, domain.CodeEmpty) {
		t.Fatalf("Validate() error = %v, want Empty", err)
	}
}

func TestValidate_RejectsTooLargeAndRemovesPartial(t *testing.T) {
	v := newTestValidator(t, 1024)

	content := append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("x"), 4096)...)
	_, err := v.Validate(bytes.NewReader(content), "big.pdf", "application/pdf")
	if !domain.HasCode(err, domain.CodeTooLarge) {
		t.Fatalf("Validate() error = %v, want TooLarge", err)
	}
	if names := dirEntries(t, v.Dir()); len(names) != 0 {
		t.Errorf("partial file left on disk: %v", names)
	}
}

func TestValidate_RejectsPathTraversal(t *testing.T) {
	v := newTestValidator(t, 1<<20)

	for _, name := range []string{
		"../../etc/passwd.pdf",
		"..\\boot.pdf",
		"dir/inner.pdf",
		"trick..pdf",
		"",
	} {
		_, err := v.Validate(strings.NewReader("%PDF-1.4"), name, "application/pdf")
		if !domain.HasCode(err, domain.CodeInvalidPath) {
			t.Errorf("Validate(%q) error = %v, want InvalidPath", name, err)
		}
	}
	if names := dirEntries(t, v.Dir()); len(names) != 0 {
		t.Errorf("upload root not empty after traversal attempts: %v", names)
	}
}

func TestValidate_AdmitsTextAndMarkdown(t *testing.T) {
	v := newTestValidator(t, 1<<20)

	for _, tt := range []struct {
		name, declared, content string
	}{
		{"notes.txt", "text/plain", "plain notes"},
		{"readme.md", "text/markdown", "# heading\n\nbody"},
		{"readme.md", "", "declared type is optional"},
	} {
		staged, err := v.Validate(strings.NewReader(tt.content), tt.name, tt.declared)
		if err != nil {
			t.Errorf("Validate(%q, %q) error = %v", tt.name, tt.declared, err)
			continue
		}
		staged.Release()
	}
}

func TestValidate_RejectsBinaryPassedAsText(t *testing.T) {
	v := newTestValidator(t, 1<<20)

	_, err := v.Validate(bytes.NewReader([]byte{0x7f, 'E', 'L', 'F', 0x00, 0x01}), "notes.txt", "text/plain")
	if !domain.HasCode(err, domain.CodeContentMismatch) {
		t.Fatalf("Validate() error = %v, want ContentMismatch", err)
	}
}

func TestValidate_CollisionFreeStaging(t *testing.T) {
	v := newTestValidator(t, 1<<20)

	a, err := v.Validate(strings.NewReader("%PDF-1.4 a"), "same.pdf", "application/pdf")
	if err != nil {
		t.Fatalf("first Validate() error = %v", err)
	}
	defer a.Release()
	b, err := v.Validate(strings.NewReader("%PDF-1.4 b"), "same.pdf", "application/pdf")
	if err != nil {
		t.Fatalf("second Validate() error = %v", err)
	}
	defer b.Release()

	if a.Path() == b.Path() {
		t.Fatalf("two uploads staged at the same path %q", a.Path())
	}
}
