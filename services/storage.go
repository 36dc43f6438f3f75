package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidKey       = errors.New("invalid storage key")
	ErrObjectTooLarge   = errors.New("object exceeds maximum size")
	ErrEmptyObject      = errors.New("object is empty")
	ErrSignatureInvalid = errors.New("invalid or expired signature")
)

// tempDirName holds in-flight uploads. Keys may not start with it.
const tempDirName = ".tmp"

// FileStorage keeps uploaded objects on local disk and hands out HMAC-signed,
// expiring download URLs for them.
type FileStorage struct {
	rootDir string
	tempDir string
	baseURL string
	secret  []byte
	ttl     time.Duration
	now     func() time.Time
}

func NewFileStorage(baseDir, publicBaseURL, signingSecret string, ttl time.Duration) (*FileStorage, error) {
	if baseDir == "" {
		baseDir = "./storage"
	}
	rootDir := baseDir
	tempDir := filepath.Join(baseDir, tempDirName)

	for _, dir := range []string{rootDir, tempDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}

	return &FileStorage{
		rootDir: rootDir,
		tempDir: tempDir,
		baseURL: strings.TrimRight(publicBaseURL, "/"),
		secret:  []byte(signingSecret),
		ttl:     ttl,
		now:     time.Now,
	}, nil
}

// DocumentKey is the storage key for a document's bytes.
func DocumentKey(ownerID, documentID string) string {
	return path.Join("documents", ownerID, documentID+".pdf")
}

// Put streams r into key through a temp file and an atomic rename. At most
// maxBytes are accepted.
func (s *FileStorage) Put(ctx context.Context, key string, r io.Reader, maxBytes int64) (int64, error) {
	target, err := s.path(key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, fmt.Errorf("create object dir: %w", err)
	}

	tempPath := filepath.Join(s.tempDir, uuid.NewString()+".tmp")
	tempFile, err := os.Create(tempPath)
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}

	written, err := io.Copy(tempFile, &ctxReader{ctx: ctx, r: io.LimitReader(r, maxBytes+1)})
	closeErr := tempFile.Close()
	switch {
	case err != nil:
		err = fmt.Errorf("write object: %w", err)
	case closeErr != nil:
		err = fmt.Errorf("close temp file: %w", closeErr)
	case written > maxBytes:
		err = ErrObjectTooLarge
	case written == 0:
		err = ErrEmptyObject
	}
	if err != nil {
		os.Remove(tempPath)
		return 0, err
	}

	if err := os.Rename(tempPath, target); err != nil {
		os.Remove(tempPath)
		return 0, fmt.Errorf("move object into place: %w", err)
	}
	return written, nil
}

func (s *FileStorage) Open(key string) (*os.File, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

// Delete removes key. A missing object is not an error.
func (s *FileStorage) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// SignedURL returns a download URL for key valid for the configured TTL.
func (s *FileStorage) SignedURL(key string) (string, error) {
	if _, err := s.path(key); err != nil {
		return "", err
	}
	expires := strconv.FormatInt(s.now().Add(s.ttl).Unix(), 10)

	q := url.Values{}
	q.Set("expires", expires)
	q.Set("signature", s.sign(key, expires))
	return s.baseURL + "/files/" + key + "?" + q.Encode(), nil
}

// Verify checks a signature produced by SignedURL.
func (s *FileStorage) Verify(key, expires, signature string) error {
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil || s.now().Unix() > exp {
		return ErrSignatureInvalid
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return ErrSignatureInvalid
	}
	want, _ := hex.DecodeString(s.sign(key, expires))
	if !hmac.Equal(got, want) {
		return ErrSignatureInvalid
	}
	return nil
}

func (s *FileStorage) sign(key, expires string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(key + "\n" + expires))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *FileStorage) path(key string) (string, error) {
	key = strings.TrimPrefix(key, "/")
	if key == "" || strings.Contains(key, "\\") {
		return "", ErrInvalidKey
	}
	clean := path.Clean(key)
	if clean != key || clean == "." || strings.HasPrefix(clean, "../") || clean == ".." ||
		clean == tempDirName || strings.HasPrefix(clean, tempDirName+"/") {
		return "", ErrInvalidKey
	}
	return filepath.Join(s.rootDir, filepath.FromSlash(clean)), nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
