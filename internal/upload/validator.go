// Package upload validates incoming file streams before anything is
// forwarded downstream. A stream is admitted only after passing the size
// bound, extension allow-list, magic-byte sniffing, non-empty, and path
// containment checks; everything else is rejected with a typed reason and
// no artifact left on disk.
package upload

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/neel92654/PDF-QA-Bot/internal/domain"
)

// sniffLen is how many leading bytes are inspected for a magic signature.
const sniffLen = 512

// fileType describes one admissible file type: its magic signature and the
// declared content types considered consistent with it.
type fileType struct {
	magic       []byte
	text        bool
	declaredOK  []string
	displayName string
}

// types keyed by lower-case extension without the dot.
var fileTypes = map[string]fileType{
	"pdf": {
		magic:       []byte("%PDF-"),
		declaredOK:  []string{"application/pdf"},
		displayName: "PDF",
	},
	"docx": {
		// DOCX is a ZIP container.
		magic:       []byte{0x50, 0x4b, 0x03, 0x04},
		declaredOK:  []string{"application/vnd.openxmlformats-officedocument.wordprocessingml.document", "application/zip"},
		displayName: "DOCX",
	},
	"txt": {
		text:        true,
		declaredOK:  []string{"text/plain"},
		displayName: "text",
	},
	"md": {
		text:        true,
		declaredOK:  []string{"text/markdown", "text/plain"},
		displayName: "Markdown",
	},
}

// Config is the upload policy.
type Config struct {
	// Dir is the staging root. Every admitted file lands inside it.
	Dir string
	// MaxBytes bounds the stream size.
	MaxBytes int64
	// AllowedExtensions restricts which of the known types are admitted.
	AllowedExtensions []string
}

// Validator checks streams against the policy and stages admitted files.
type Validator struct {
	dir      string
	maxBytes int64
	allowed  map[string]bool
	logger   *slog.Logger
}

// New creates a validator rooted at cfg.Dir, creating the directory if
// needed.
func New(cfg Config, logger *slog.Logger) (*Validator, error) {
	dir, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve upload dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}

	allowed := make(map[string]bool, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		ext = strings.ToLower(strings.TrimPrefix(ext, "."))
		if _, known := fileTypes[ext]; !known {
			return nil, fmt.Errorf("no magic signature registered for extension %q", ext)
		}
		allowed[ext] = true
	}

	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{
		dir:      dir,
		maxBytes: cfg.MaxBytes,
		allowed:  allowed,
		logger:   logger,
	}, nil
}

// Dir returns the absolute staging root.
func (v *Validator) Dir() string {
	return v.dir
}

// MaxBytes returns the configured size bound, or zero when unbounded.
func (v *Validator) MaxBytes() int64 {
	return v.maxBytes
}

// StagedFile is an admitted upload sitting in the staging root. The caller
// owns it and must call Release exactly once on every outcome.
type StagedFile struct {
	path   string
	name   string
	size   int64
	logger *slog.Logger
}

// Name returns the sanitized client-declared filename.
func (f *StagedFile) Name() string { return f.name }

// Size returns the staged size in bytes.
func (f *StagedFile) Size() int64 { return f.size }

// Path returns the on-disk staging path.
func (f *StagedFile) Path() string { return f.path }

// Open opens the staged file for reading.
func (f *StagedFile) Open() (*os.File, error) {
	return os.Open(f.path)
}

// Release removes the staged file. Failures are logged, never propagated:
// cleanup must not block or fail the response.
func (f *StagedFile) Release() {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		f.logger.Warn("failed to remove staged upload",
			slog.String("path", f.path),
			slog.String("error", err.Error()),
		)
	}
}

// Validate runs the admission checks against the stream and, on success,
// stages it under the upload root. Checks short-circuit in order: path
// sanity, extension allow-list, content sniffing, non-empty, then the size
// bound enforced while staging. Any rejection removes whatever was written.
func (v *Validator) Validate(r io.Reader, filename, declaredType string) (*StagedFile, error) {
	// Path containment first: a traversal segment is rejected before any
	// byte touches the disk.
	if filename == "" {
		return nil, domain.ErrInvalidPath("missing filename")
	}
	if strings.ContainsAny(filename, "/\\") || strings.Contains(filename, "..") {
		return nil, domain.ErrInvalidPath("filename must not contain path segments")
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	ft, known := fileTypes[ext]
	if !known || !v.allowed[ext] {
		return nil, domain.ErrUnsupportedType(fmt.Sprintf("file type %q is not supported", ext))
	}

	// Sniff the leading bytes before anything is written.
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, domain.ErrServer("failed to read upload stream").WithDetails(err.Error())
	}
	head = head[:n]

	if n == 0 {
		return nil, domain.ErrEmpty("uploaded file is empty")
	}
	if err := checkContent(head, n == sniffLen, ft, declaredType); err != nil {
		return nil, err
	}

	dest := filepath.Join(v.dir, stagedName(filename))
	if !pathContained(v.dir, dest) {
		return nil, domain.ErrInvalidPath("upload path escapes the staging root")
	}

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return nil, domain.ErrServer("failed to stage upload").WithDetails(err.Error())
	}

	size, err := v.copyBounded(out, head, r)
	if cerr := out.Close(); err == nil && cerr != nil {
		err = domain.ErrServer("failed to stage upload").WithDetails(cerr.Error())
	}
	if err != nil {
		// Partial writes never survive a rejection.
		if rmErr := os.Remove(dest); rmErr != nil {
			v.logger.Warn("failed to remove partial upload",
				slog.String("path", dest),
				slog.String("error", rmErr.Error()),
			)
		}
		return nil, err
	}

	return &StagedFile{path: dest, name: filename, size: size, logger: v.logger}, nil
}

// copyBounded writes the sniffed head plus the rest of the stream, failing
// as soon as the size bound is crossed.
func (v *Validator) copyBounded(out io.Writer, head []byte, r io.Reader) (int64, error) {
	if v.maxBytes > 0 && int64(len(head)) > v.maxBytes {
		return 0, domain.ErrTooLarge(fmt.Sprintf("file exceeds the %d byte limit", v.maxBytes))
	}
	if _, err := out.Write(head); err != nil {
		return 0, domain.ErrServer("failed to stage upload").WithDetails(err.Error())
	}

	rest := r
	if v.maxBytes > 0 {
		rest = io.LimitReader(r, v.maxBytes-int64(len(head))+1)
	}
	n, err := io.Copy(out, rest)
	if err != nil {
		return 0, domain.ErrServer("failed to stage upload").WithDetails(err.Error())
	}
	size := int64(len(head)) + n
	if v.maxBytes > 0 && size > v.maxBytes {
		return 0, domain.ErrTooLarge(fmt.Sprintf("file exceeds the %d byte limit", v.maxBytes))
	}
	return size, nil
}

// checkContent verifies the magic signature and that the declared
// content-type is consistent with the extension. Sniffing is authoritative:
// a correct extension with mismatched leading bytes is rejected, which
// defeats extension-only spoofing.
func checkContent(head []byte, truncated bool, ft fileType, declaredType string) error {
	if ft.text {
		if !looksLikeText(head, truncated) {
			return domain.ErrContentMismatch("file content is not text")
		}
	} else if !bytes.HasPrefix(head, ft.magic) {
		return domain.ErrContentMismatch(fmt.Sprintf("file content does not match the %s signature", ft.displayName))
	}

	if declaredType == "" {
		return nil
	}
	mediaType, _, err := mime.ParseMediaType(declaredType)
	if err != nil {
		return domain.ErrContentMismatch("malformed content type")
	}
	// Octet-stream declares nothing; the sniff above already decided.
	if mediaType == "application/octet-stream" {
		return nil
	}
	for _, ok := range ft.declaredOK {
		if mediaType == ok {
			return nil
		}
	}
	return domain.ErrContentMismatch(fmt.Sprintf("declared content type %q does not match the file extension", mediaType))
}

// looksLikeText rejects byte streams that cannot plausibly be a text or
// Markdown document: invalid UTF-8 or embedded NUL bytes. When the sniff
// window was filled, a multi-byte rune may be split at its end, so up to
// utf8.UTFMax-1 trailing bytes are tolerated.
func looksLikeText(head []byte, truncated bool) bool {
	if bytes.IndexByte(head, 0) >= 0 {
		return false
	}
	if utf8.Valid(head) {
		return true
	}
	if !truncated {
		return false
	}
	for i := 0; i < utf8.UTFMax-1 && len(head) > 0; i++ {
		head = head[:len(head)-1]
		if utf8.Valid(head) {
			return true
		}
	}
	return false
}

// stagedName builds a collision-free staging filename: uuid entropy plus
// the sanitized client name, mirroring how the downstream names uploads.
func stagedName(filename string) string {
	return fmt.Sprintf("%s_%s", strings.ReplaceAll(uuid.NewString(), "-", ""), filepath.Base(filename))
}

// pathContained reports whether dest resolves inside root.
func pathContained(root, dest string) bool {
	rel, err := filepath.Rel(root, dest)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
