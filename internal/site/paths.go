package site

import (
	"path/filepath"

	"github.com/conneroisu/sitekit/internal/config"
	siteerrors "github.com/conneroisu/sitekit/internal/errors"
)

// ResourceClass names a directory of static resources mirrored into dist.
type ResourceClass string

const (
	ResourceImages ResourceClass = "images"
	ResourceVendor ResourceClass = "vendor"
	ResourceFonts  ResourceClass = "fonts"
	ResourceFiles  ResourceClass = "files"
	// ResourcePublic is copied to the root of dist.
	ResourcePublic ResourceClass = "public"
)

// ResourceClasses lists the app resource classes in copy order.
func ResourceClasses() []ResourceClass {
	return []ResourceClass{ResourceImages, ResourceVendor, ResourceFonts, ResourceFiles}
}

// resourceDirs maps a class to its directory name under app and under dist.
var resourceDirs = map[ResourceClass][2]string{
	ResourceImages: {"img", "img"},
	ResourceVendor: {"vendor", "vendor"},
	ResourceFonts:  {"fonts", "fonts"},
	ResourceFiles:  {"files", "files"},
}

// Paths holds the resolved project directories.
type Paths struct {
	Root   string
	App    string
	Dist   string
	Public string
}

// ResolvePaths anchors the configured directories at the project root.
func ResolvePaths(p config.PathsConfig) Paths {
	root := p.Root
	if root == "" {
		root = "."
	}
	return Paths{
		Root:   root,
		App:    anchor(root, p.App),
		Dist:   anchor(root, p.Dist),
		Public: anchor(root, p.Public),
	}
}

func anchor(root, dir string) string {
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}
	return filepath.Join(root, dir)
}

// Resource returns the source and destination directories of class.
func (p Paths) Resource(class ResourceClass) (string, string, error) {
	if class == ResourcePublic {
		return p.Public, p.Dist, nil
	}
	dirs, ok := resourceDirs[class]
	if !ok {
		return "", "", siteerrors.ErrUnknownResource(string(class))
	}
	return filepath.Join(p.App, dirs[0]), filepath.Join(p.Dist, dirs[1]), nil
}

// Images is the dist directory the optimize stage works on.
func (p Paths) Images() string {
	return filepath.Join(p.Dist, resourceDirs[ResourceImages][1])
}
