// Package uploads stores post images in the static asset directory.
// Files are keyed by their sanitized original name; a later upload with the
// same name replaces the earlier file on disk.
package uploads

import (
	"errors"
	"io"
	"io/fs"
	"mime/multipart"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/user/blogpress-go/apperror"
)

// ImageSubdir is the directory under the static root that holds uploads.
// It is served publicly as /static/img/<filename>.
const ImageSubdir = "img"

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

var windowsDeviceNames = map[string]struct{}{
	"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
	"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {}, "COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
	"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {}, "LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
}

// SanitizeFilename reduces a client supplied filename to a flat ASCII name
// that is safe to join onto the asset directory. The result may be empty.
//
//	SanitizeFilename("My cool movie.mov")  == "My_cool_movie.mov"
//	SanitizeFilename("../../etc/passwd")   == "etc_passwd"
func SanitizeFilename(name string) string {
	// Decompose accented characters so "é" keeps its base letter, then drop non-ASCII.
	decomposed := norm.NFKD.String(name)
	var b strings.Builder
	for _, r := range decomposed {
		if r < 0x80 {
			b.WriteRune(r)
		}
	}
	ascii := b.String()

	// Path separators become whitespace and whitespace runs become a single underscore.
	ascii = strings.NewReplacer("/", " ", `\`, " ").Replace(ascii)
	joined := strings.Join(strings.Fields(ascii), "_")
	cleaned := strings.Trim(unsafeChars.ReplaceAllString(joined, ""), "._")

	if cleaned != "" {
		if _, reserved := windowsDeviceNames[strings.ToUpper(strings.SplitN(cleaned, ".", 2)[0])]; reserved {
			cleaned = "_" + cleaned
		}
	}
	return cleaned
}

// Handler saves and removes image files under <staticDir>/img.
type Handler struct {
	dir string
}

// NewHandler returns a Handler rooted at staticDir.
func NewHandler(staticDir string) *Handler {
	return &Handler{dir: filepath.Join(staticDir, ImageSubdir)}
}

// Dir is the directory uploads are written to.
func (h *Handler) Dir() string {
	return h.dir
}

// EnsureDir creates the asset directory if it does not exist.
func (h *Handler) EnsureDir() error {
	if err := os.MkdirAll(h.dir, 0o755); err != nil {
		return apperror.NewStorageError("failed to create asset directory", err)
	}
	return nil
}

// Accept persists an uploaded file and returns its stored name. A nil header
// or an empty filename means no file was sent and yields (nil, nil).
func (h *Handler) Accept(header *multipart.FileHeader) (*string, error) {
	if header == nil || header.Filename == "" {
		return nil, nil
	}

	name := SanitizeFilename(header.Filename)
	if name == "" {
		return nil, apperror.NewValidationError("image file name is not usable", nil)
	}

	src, err := header.Open()
	if err != nil {
		return nil, apperror.NewBadRequestError("failed to read uploaded file", err)
	}
	defer src.Close()

	if err := h.save(name, src); err != nil {
		return nil, err
	}
	return &name, nil
}

func (h *Handler) save(name string, src io.Reader) error {
	// os.Create truncates an existing file: the last upload under a name wins.
	dst, err := os.Create(filepath.Join(h.dir, name))
	if err != nil {
		return apperror.NewStorageError("failed to create image file", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return apperror.NewStorageError("failed to write image file", err)
	}
	if err := dst.Close(); err != nil {
		return apperror.NewStorageError("failed to write image file", err)
	}
	return nil
}

// Remove deletes the named file. A file that is already gone is not an error.
func (h *Handler) Remove(name string) error {
	if name == "" {
		return nil
	}
	err := os.Remove(filepath.Join(h.dir, filepath.Base(name)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return apperror.NewStorageError("failed to remove image file", err)
	}
	return nil
}
