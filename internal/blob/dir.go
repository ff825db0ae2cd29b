package blob

import (
	"context"
	"mime"
	"os"
	"path/filepath"

	"github.com/yannicklang1/eu-complience-hub-sub009/internal/xerrors"
)

// DirStore serves objects from a local directory. Opens go through os.Root so
// symlinks cannot escape the directory.
type DirStore struct {
	root string
}

func NewDir(root string) (*DirStore, error) {
	if root == "" {
		return nil, xerrors.New("blob dir is required")
	}
	fi, err := os.Stat(root)
	if err != nil {
		return nil, xerrors.Wrapf(err, "stat blob dir %s", root)
	}
	if !fi.IsDir() {
		return nil, xerrors.Newf("blob dir %s is not a directory", root)
	}
	return &DirStore{root: root}, nil
}

func (d *DirStore) Fetch(ctx context.Context, path string) (*Object, error) {
	p, err := CleanPath(path)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, xerrors.Wrap(err, "fetch blob")
	}

	f, err := os.OpenInRoot(d.root, filepath.FromSlash(p))
	if err != nil {
		return nil, xerrors.Wrapf(err, "open blob %s", p)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, xerrors.Wrapf(err, "stat blob %s", p)
	}
	if fi.IsDir() {
		f.Close()
		return nil, xerrors.Wrapf(ErrNotFound, "blob %s is a directory", p)
	}

	ct := mime.TypeByExtension(filepath.Ext(p))
	if ct == "" {
		ct = DefaultContentType
	}
	return &Object{Body: f, ContentType: ct, Size: fi.Size()}, nil
}
