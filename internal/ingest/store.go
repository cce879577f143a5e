package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	_ "golang.org/x/image/webp"

	"github.com/joseph-ayodele/certificate-verifier/constants"
	"github.com/joseph-ayodele/certificate-verifier/internal/common"
)

const maxNameLen = 100

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FSStore keeps uploads on the local filesystem.
type FSStore struct {
	dir     string
	maxSize int64
	logger  *slog.Logger
	now     func() time.Time
}

func NewFSStore(dir string, maxSize int64, logger *slog.Logger) *FSStore {
	if logger == nil {
		logger = slog.Default()
	}
	if maxSize <= 0 {
		maxSize = constants.MaxFileSizeDefault
	}
	return &FSStore{dir: dir, maxSize: maxSize, logger: logger, now: time.Now}
}

// Dir returns the upload directory.
func (s *FSStore) Dir() string { return s.dir }

// SanitizeFilename reduces name to a safe base name.
func SanitizeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" {
		base = ""
	}
	base = strings.Trim(unsafeNameChars.ReplaceAllString(base, "_"), "._")
	if len(base) > maxNameLen {
		ext := filepath.Ext(base)
		base = base[:maxNameLen-len(ext)] + ext
	}
	if base == "" {
		return "upload"
	}
	return base
}

func (s *FSStore) Save(ctx context.Context, name string, r io.Reader) (Stored, error) {
	ext := constants.NormalizeExt(filepath.Ext(name))
	if !constants.IsAllowedExt(ext) {
		s.logger.Warn("ingest.rejected", "filename", name, "reason", "extension")
		return Stored{}, common.UnsupportedFormatError(ext)
	}
	if err := ctx.Err(); err != nil {
		return Stored{}, err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return Stored{}, common.WrapError(err, "create upload dir")
	}

	dest := filepath.Join(s.dir, uuid.NewString()+"_"+SanitizeFilename(name))
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return Stored{}, common.WrapError(err, "create upload file")
	}

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(f, h), io.LimitReader(r, s.maxSize+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(dest)
		return Stored{}, common.WrapError(err, "write upload")
	}
	if n > s.maxSize {
		_ = os.Remove(dest)
		s.logger.Warn("ingest.rejected", "filename", name, "reason", "size", "max_bytes", s.maxSize)
		return Stored{}, common.NewAppError(common.CodeValidation,
			fmt.Sprintf("file exceeds the %d byte limit", s.maxSize), common.ErrValidation)
	}
	if n == 0 {
		_ = os.Remove(dest)
		return Stored{}, common.NewAppError(common.CodeValidation, "file is empty", common.ErrValidation)
	}

	out := Stored{
		Path:             dest,
		OriginalFilename: name,
		Ext:              ext,
		FileType:         constants.MapExtToFormat(ext),
		HashHex:          hex.EncodeToString(h.Sum(nil)),
		Size:             n,
		StoredAt:         s.now().UTC(),
	}

	if out.FileType == constants.IMAGE {
		if err := s.normalizeImage(&out); err != nil {
			_ = os.Remove(dest)
			return Stored{}, err
		}
	}

	s.logger.Info("ingest.stored",
		"filename", name, "path", out.Path, "bytes", n, "hash", out.HashHex, "reencoded", out.Reencoded)
	return out, nil
}

func (s *FSStore) SaveFile(ctx context.Context, path string) (Stored, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Stored{}, common.NotFoundErrorf("file %s not found", path)
		}
		return Stored{}, common.WrapError(err, "open")
	}
	defer f.Close()
	return s.Save(ctx, filepath.Base(path), f)
}

// HashFile returns the hex sha256 of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// normalizeImage proves the upload decodes and rewrites pixel formats that
// tesseract handles poorly as 8-bit PNG.
func (s *FSStore) normalizeImage(st *Stored) error {
	img, err := imaging.Open(st.Path, imaging.AutoOrientation(true))
	if err != nil {
		s.logger.Warn("ingest.rejected", "filename", st.OriginalFilename, "reason", "decode", "error", err)
		return common.NewAppError(common.CodeUnsupportedFormat, "file is not a readable image",
			errors.Join(common.ErrUnsupportedFormat, err))
	}
	if !needsReencode(img) {
		return nil
	}

	png := strings.TrimSuffix(st.Path, filepath.Ext(st.Path)) + ".png"
	if png == st.Path {
		png = strings.TrimSuffix(st.Path, ".png") + "_rgb.png"
	}
	if err := imaging.Save(imaging.Clone(img), png); err != nil {
		return common.WrapError(err, "re-encode image")
	}
	_ = os.Remove(st.Path)
	st.Path = png
	st.Ext = "png"
	st.Reencoded = true
	return nil
}

func needsReencode(img image.Image) bool {
	switch img.(type) {
	case *image.Paletted, *image.CMYK, *image.RGBA64, *image.NRGBA64, *image.Gray16:
		return true
	default:
		return false
	}
}
