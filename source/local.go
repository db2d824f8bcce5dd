package source

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/microsoft/PackageUploader-sub002/errkind"
)

// resolveLocal accepts a path or a glob that matches exactly one file.
func (r *Resolver) resolveLocal(location string) (*File, error) {
	path := location
	if strings.ContainsAny(location, "*?[{") {
		matched, err := r.glob(location)
		if err != nil {
			return nil, err
		}
		path = matched
	}

	absPath, err := r.pathModifier.AbsPath(path) // resolves ~/ and expands envs
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	exists, err := r.pathChecker.IsPathExists(absPath)
	if err != nil {
		return nil, fmt.Errorf("check %s: %w", absPath, err)
	}
	if !exists {
		return nil, errkind.NotFoundError("resolve package", "package file", fmt.Errorf("%s does not exist", absPath))
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, errkind.ConfigError("%s is a directory, not a package file", absPath)
	}

	r.logger.Debugf("Package file: %s", absPath)
	return &File{Path: absPath, Name: filepath.Base(absPath), Size: info.Size()}, nil
}

func (r *Resolver) glob(location string) (string, error) {
	base, pattern := doublestar.SplitPattern(filepath.ToSlash(location))
	absBase, err := r.pathModifier.AbsPath(base)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", base, err)
	}

	matches, err := doublestar.Glob(os.DirFS(absBase), pattern)
	if err != nil {
		return "", errkind.ConfigError("invalid package path pattern %q: %s", location, err)
	}

	var files []string
	for _, match := range matches {
		path := filepath.Join(absBase, match)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			files = append(files, path)
		}
	}

	switch len(files) {
	case 0:
		return "", errkind.NotFoundError("resolve package", "package file", fmt.Errorf("no file matches %s", location))
	case 1:
		return files[0], nil
	default:
		return "", errkind.ConfigError("%s matches %d files, it must match exactly one: %s", location, len(files), strings.Join(files, ", "))
	}
}
