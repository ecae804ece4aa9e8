package upload

import (
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// CoversDir is the media subdirectory for book covers.
const CoversDir = "book_covers"

var (
	ErrNotImage = errors.New("upload is not an image")
	ErrTooLarge = errors.New("upload is too large")
)

// Store writes uploaded files below a media root and returns paths relative to it.
type Store struct {
	root    string
	maxSize int64
	log     *zap.Logger
}

func NewStore(root string, maxSize int64, log *zap.Logger) *Store {
	return &Store{
		root:    root,
		maxSize: maxSize,
		log:     log.Named("upload"),
	}
}

// Root is the directory served under /media/.
func (s *Store) Root() string {
	return s.root
}

// SaveCover stores an image under book_covers/ with a random name, keeping
// the original extension.
func (s *Store) SaveCover(fh *multipart.FileHeader) (string, error) {
	if s.maxSize > 0 && fh.Size > s.maxSize {
		return "", ErrTooLarge
	}
	src, err := fh.Open()
	if err != nil {
		return "", errors.Wrap(err, "open upload")
	}
	defer src.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(src, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", ErrNotImage
	}
	if !strings.HasPrefix(http.DetectContentType(head[:n]), "image/") {
		return "", ErrNotImage
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return "", errors.Wrap(err, "rewind upload")
	}

	dir := filepath.Join(s.root, CoversDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "media dir")
	}
	name := uuid.NewString() + strings.ToLower(filepath.Ext(fh.Filename))
	dst, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", errors.Wrap(err, "create cover")
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", errors.Wrap(err, "write cover")
	}
	rel := path.Join(CoversDir, name)
	s.log.Debug("cover saved", zap.String("path", rel), zap.Int64("size", fh.Size))
	return rel, nil
}

// RemoveCover deletes a cover previously returned by SaveCover. Paths outside
// the covers directory are refused; a file that is already gone is not an error.
func (s *Store) RemoveCover(rel string) error {
	clean := path.Clean(rel)
	if path.Dir(clean) != CoversDir {
		return errors.Errorf("cover path %q outside %s", rel, CoversDir)
	}
	if err := os.Remove(filepath.Join(s.root, filepath.FromSlash(clean))); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrap(err, "remove cover")
	}
	s.log.Debug("cover removed", zap.String("path", clean))
	return nil
}
