package site

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/conneroisu/sitekit/internal/assets"
	siteerrors "github.com/conneroisu/sitekit/internal/errors"
	"github.com/conneroisu/sitekit/internal/include"
	"github.com/conneroisu/sitekit/internal/pipeline"
	"github.com/conneroisu/sitekit/internal/rewrite"
)

// IncludePlugin expands the @@include directives of each page.
func IncludePlugin(resolver *include.Resolver) Plugin {
	return Plugin{
		Name: "file-include",
		Hook: HookTransformHTML,
		Run: func(ctx context.Context, pc *Context) error {
			res, err := resolver.ResolveString(ctx, pc.Page.HTML, pc.Page.Entry)
			if err != nil {
				return err
			}
			pc.Page.HTML = res.Output
			pc.Page.Included = append(pc.Page.Included, res.Included...)
			pc.Page.Diagnostics = append(pc.Page.Diagnostics, res.Diagnostics...)
			return nil
		},
	}
}

// AliasPlugin rewrites @alias prefixes in asset references.
func AliasPlugin(aliases map[string]string) Plugin {
	return Plugin{
		Name: "html-alias",
		Hook: HookTransformHTML,
		Run: func(_ context.Context, pc *Context) error {
			pc.Page.HTML = rewrite.RewriteAliases(pc.Page.HTML, aliases)
			return nil
		},
	}
}

// CopyResourcesPlugin mirrors the source directory of class into dist. A
// missing source directory makes the stage a no-op.
func CopyResourcesPlugin(class ResourceClass) (Plugin, error) {
	if _, ok := resourceDirs[class]; !ok && class != ResourcePublic {
		return Plugin{}, siteerrors.ErrUnknownResource(string(class))
	}

	copier := assets.NewCopier()
	return Plugin{
		Name:  "copy-" + string(class),
		Hook:  HookCloseBundle,
		Apply: ApplyBuild,
		Run: func(ctx context.Context, pc *Context) error {
			src, dest, err := pc.Paths.Resource(class)
			if err != nil {
				return err
			}

			items, err := assets.Collect(src, dest)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				pc.Logger.Debug(ctx, "nothing to copy", "class", string(class), "source", src)
				return nil
			}

			summary := pipeline.Run(ctx, items, copier.Copy, pc.PipelineOptions("copy "+string(class)))
			pc.Record("copy "+string(class), summary)
			pc.Logger.Info(ctx, "resources copied",
				"class", string(class), "files", summary.Succeeded, "failed", summary.Failed)
			return nil
		},
	}, nil
}

// FixFontPathsPlugin points root-relative font URLs in dist/css at ../fonts.
func FixFontPathsPlugin() Plugin {
	return Plugin{
		Name:  "fix-font-paths",
		Hook:  HookCloseBundle,
		Apply: ApplyBuild,
		Run: func(ctx context.Context, pc *Context) error {
			files, err := filesWithExt(filepath.Join(pc.Paths.Dist, "css"), ".css")
			if err != nil {
				return err
			}
			return rewriteFiles(ctx, pc, "fix font paths", files, func(css string) (string, error) {
				return rewrite.FixFontPaths(css), nil
			})
		},
	}
}

// ProcessHTMLPlugin collapses script and stylesheet references in the
// emitted pages onto the bundle entry points.
func ProcessHTMLPlugin() Plugin {
	return Plugin{
		Name:  "process-html",
		Hook:  HookCloseBundle,
		Apply: ApplyBuild,
		Run: func(ctx context.Context, pc *Context) error {
			files, err := filesWithExt(pc.Paths.Dist, ".html")
			if err != nil {
				return err
			}
			return rewriteFiles(ctx, pc, "process html", files, rewrite.ProcessHTML)
		},
	}
}

// FixAssetPathsPlugin strips leading ./ from src and href values.
func FixAssetPathsPlugin() Plugin {
	return Plugin{
		Name:  "fix-assets-paths",
		Hook:  HookCloseBundle,
		Apply: ApplyBuild,
		Run: func(ctx context.Context, pc *Context) error {
			files, err := filesWithExt(pc.Paths.Dist, ".html")
			if err != nil {
				return err
			}
			return rewriteFiles(ctx, pc, "fix asset paths", files, func(doc string) (string, error) {
				return rewrite.StripDotSlash(doc), nil
			})
		},
	}
}

// RenameJSPlugin renames hashed bundle outputs such as js/app-3f2a.js to
// js/app.js, the name the processed pages reference.
func RenameJSPlugin() Plugin {
	return Plugin{
		Name:  "rename-js",
		Hook:  HookCloseBundle,
		Apply: ApplyBuild,
		Run: func(ctx context.Context, pc *Context) error {
			dir := filepath.Join(pc.Paths.Dist, "js")
			files, err := filesWithExt(dir, ".js")
			if err != nil {
				return err
			}

			target := filepath.Join(dir, "app.js")
			for _, file := range files {
				name := filepath.Base(file)
				if !strings.HasPrefix(name, "app") || name == "app.js" {
					continue
				}
				if err := os.Rename(file, target); err != nil {
					return fmt.Errorf("renaming %s: %w", file, err)
				}
				pc.Logger.Debug(ctx, "bundle renamed", "from", name, "to", "app.js")
			}
			return nil
		},
	}
}

// OptimizeImagesPlugin recompresses the images in dist/img when
// optimization is enabled for the build.
func OptimizeImagesPlugin() Plugin {
	return Plugin{
		Name:  "image-optimization",
		Hook:  HookCloseBundle,
		Apply: ApplyBuild,
		Run: func(ctx context.Context, pc *Context) error {
			if !pc.Config.OptimizeImages() {
				return nil
			}

			items, err := assets.CollectImages(pc.Paths.Images())
			if err != nil {
				return err
			}
			if len(items) == 0 {
				return nil
			}

			optimizer := assets.NewOptimizerFromSettings(optimizerSettings(pc), pc.Logger)
			summary := pipeline.Run(ctx, items, optimizer.Optimize, pc.PipelineOptions("optimize images"))
			pc.Record("optimize images", summary)
			pc.Logger.Info(ctx, "images optimized",
				"files", summary.Total, "saved", summary.SavedBytes, "failed", summary.Failed)
			return nil
		},
	}
}

func optimizerSettings(pc *Context) assets.Settings {
	o := pc.Config.Optimize
	return assets.Settings{
		JPEGQuality:   o.JPEGQuality,
		PNGQualityMin: o.PNGQualityMin,
		PNGQualityMax: o.PNGQualityMax,
		GIFLevel:      o.GIFLevel,
		External:      o.External,
	}
}

// DefaultPlugins returns the built-in stages in execution order.
func DefaultPlugins(resolver *include.Resolver, aliases map[string]string) []Plugin {
	plugins := []Plugin{
		IncludePlugin(resolver),
		AliasPlugin(aliases),
	}
	for _, class := range append(ResourceClasses(), ResourcePublic) {
		p, _ := CopyResourcesPlugin(class)
		plugins = append(plugins, p)
	}
	return append(plugins,
		FixFontPathsPlugin(),
		ProcessHTMLPlugin(),
		FixAssetPathsPlugin(),
		RenameJSPlugin(),
		OptimizeImagesPlugin(),
	)
}

// rewriteFiles applies fn to every file through the pipeline, writing back
// only the files whose content changed.
func rewriteFiles(ctx context.Context, pc *Context, stage string, files []string, fn func(string) (string, error)) error {
	if len(files) == 0 {
		return nil
	}

	op := func(ctx context.Context, path string) pipeline.Result {
		res := pipeline.Result{Item: path}

		data, err := os.ReadFile(path)
		if err != nil {
			res.Err = siteerrors.ErrItemFailed(path, err)
			return res
		}
		res.OriginalSize = int64(len(data))

		out, err := fn(string(data))
		if err != nil {
			res.Err = siteerrors.ErrItemFailed(path, err)
			return res
		}
		res.NewSize = int64(len(out))

		if out == string(data) {
			res.Skipped = true
			return res
		}
		if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
			res.Err = siteerrors.ErrItemFailed(path, err)
			return res
		}
		res.Success = true
		return res
	}

	summary := pipeline.Run(ctx, files, op, pc.PipelineOptions(stage))
	pc.Record(stage, summary)
	return nil
}

// filesWithExt lists the regular files directly inside dir with extension
// ext, sorted. A missing dir yields none.
func filesWithExt(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.Type().IsRegular() && strings.EqualFold(filepath.Ext(entry.Name()), ext) {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
