// Package assets checks a frontend build directory before it is handed to the bucket deployment.
package assets

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrAssetPathNotFound = errors.New("asset path does not exist")
	ErrNotDirectory      = errors.New("asset path is not a directory")
	ErrNoAssets          = errors.New("asset path contains no files")
	ErrMissingRootObject = errors.New("asset path is missing the root object")
	// Without the error page every client-side route ends in the CloudFront 404.
	ErrMissingErrorPage = errors.New("asset path is missing the error page")
)

type Summary struct {
	Path          string
	Files         int
	Bytes         int64
	HasRootObject bool
	HasErrorPage  bool
}

// Inspect walks dir and fails if it cannot be deployed as a single page application rooted at
// rootObject whose 404s are rewritten to errorPagePath, e.g. "/index.html".
func Inspect(dir, rootObject, errorPagePath string) (Summary, error) {
	summary := Summary{Path: dir}
	errorPage := strings.TrimPrefix(errorPagePath, "/")

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return summary, errors.Wrap(ErrAssetPathNotFound, dir)
		}
		return summary, errors.Wrapf(err, "stat %s", dir)
	}
	if !info.IsDir() {
		return summary, errors.Wrap(ErrNotDirectory, dir)
	}

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		summary.Files++
		summary.Bytes += fi.Size()
		rel, _ := filepath.Rel(dir, path)
		switch filepath.ToSlash(rel) {
		case rootObject:
			summary.HasRootObject = true
			if errorPage == rootObject {
				summary.HasErrorPage = true
			}
		case errorPage:
			summary.HasErrorPage = true
		}
		return nil
	})
	if err != nil {
		return summary, errors.Wrapf(err, "walking %s", dir)
	}

	if summary.Files == 0 {
		return summary, errors.Wrap(ErrNoAssets, dir)
	}
	if !summary.HasRootObject {
		return summary, errors.Wrap(ErrMissingRootObject, rootObject)
	}
	if errorPage != "" && !summary.HasErrorPage {
		return summary, errors.Wrap(ErrMissingErrorPage, errorPagePath)
	}
	return summary, nil
}
