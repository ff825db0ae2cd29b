// Package blob fetches stored objects by path. Resources point at objects via
// their storage_path column; the download handler streams them to clients.
package blob

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/aws/smithy-go"

	"github.com/yannicklang1/eu-complience-hub-sub009/internal/pathutil"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/xerrors"
)

// DefaultContentType is used when a backend does not know the object's type.
const DefaultContentType = "application/octet-stream"

var (
	ErrNotFound    = errors.New("blob: object not found")
	ErrInvalidPath = errors.New("blob: invalid object path")
)

// Object is an open stored object. The caller must close Body.
type Object struct {
	Body        io.ReadCloser
	ContentType string
	// Size is -1 when unknown.
	Size int64
}

type Store interface {
	Fetch(ctx context.Context, path string) (*Object, error)
}

// CleanPath validates an object path with pathutil.CleanObjectPath and
// returns it trimmed of surrounding space.
func CleanPath(p string) (string, error) {
	clean, ok := pathutil.CleanObjectPath(p)
	if !ok {
		return "", xerrors.Wrapf(ErrInvalidPath, "path %q", strings.TrimSpace(p))
	}
	return clean, nil
}

// ErrorCode returns a short provider error code for logs: the AWS API code when
// there is one, otherwise a coarse class of the failure.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() != "" {
		return apiErr.ErrorCode()
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, os.ErrNotExist):
		return "NotFound"
	case errors.Is(err, ErrInvalidPath):
		return "InvalidPath"
	case errors.Is(err, context.DeadlineExceeded):
		return "Timeout"
	case errors.Is(err, context.Canceled):
		return "Canceled"
	case errors.Is(err, os.ErrPermission):
		return "AccessDenied"
	}
	return "Unknown"
}
