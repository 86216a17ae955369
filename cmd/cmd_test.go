package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/sitekit/internal/config"
	"github.com/conneroisu/sitekit/internal/logging"
	"github.com/conneroisu/sitekit/internal/server"
	"github.com/conneroisu/sitekit/internal/site"
	"github.com/conneroisu/sitekit/internal/testutils"
	"github.com/conneroisu/sitekit/internal/version"
)

// newSite writes a small project and a config file pointing at it.
func newSite(t *testing.T, extra string) (dir, configFile string) {
	t.Helper()
	dir = testutils.CreateTempProject(t)
	testutils.WriteFiles(t, dir, map[string]string{
		"app/index.html":    "<html><body>@@include('nav.html', {\"active\": \"home\"})<img src=\"@img/logo.png\"></body></html>",
		"app/html/nav.html": "<nav class=\"@@active\">menu</nav>",
		"app/img/logo.png":  "not really a png",
		"public/robots.txt": "User-agent: *",
	})

	configFile = testutils.WriteFile(t, dir, DefaultConfigFile,
		"paths:\n  root: "+dir+"\n"+extra)
	return dir, configFile
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer

	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(&stdout)
	root.SetErr(&stderr)

	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestBuildCommand(t *testing.T) {
	dir, cfgFile := newSite(t, "")

	stdout, _, err := execute(t, "build", "--config", cfgFile, "--quiet")
	require.NoError(t, err)

	index := testutils.ReadFile(t, dir, "dist/index.html")
	assert.Contains(t, index, `<nav class="home">menu</nav>`)
	assert.Contains(t, index, `src="img/logo.png"`)
	assert.FileExists(t, filepath.Join(dir, "dist", "img", "logo.png"))
	assert.FileExists(t, filepath.Join(dir, "dist", "robots.txt"))
	assert.Contains(t, stdout, "build finished")
}

func TestBuildCommandFlags(t *testing.T) {
	testCases := []struct {
		name   string
		args   []string
		copied bool
		dist   string
	}{
		{"development mode skips resources", []string{"--mode", "development"}, false, "dist"},
		{"short mode flag", []string{"-m", "development"}, false, "dist"},
		{"production copies resources", []string{"--mode", "production"}, true, "dist"},
		{"custom output directory", []string{"--dist", "public_html"}, true, "public_html"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dir, cfgFile := newSite(t, "")

			args := append([]string{"build", "--config", cfgFile, "-q"}, tc.args...)
			_, _, err := execute(t, args...)
			require.NoError(t, err)

			assert.FileExists(t, filepath.Join(dir, tc.dist, "index.html"))
			_, statErr := os.Stat(filepath.Join(dir, tc.dist, "img", "logo.png"))
			assert.Equal(t, tc.copied, statErr == nil)
		})
	}
}

func TestBuildCommandModeFromEnvironment(t *testing.T) {
	dir, cfgFile := newSite(t, "")
	t.Setenv("SITEKIT_BUILD_MODE", "development")

	_, _, err := execute(t, "build", "--config", cfgFile, "-q")
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, "dist", "index.html"))
	assert.NoFileExists(t, filepath.Join(dir, "dist", "robots.txt"))
}

func TestBuildCommandErrors(t *testing.T) {
	_, cfgFile := newSite(t, "")

	testCases := []struct {
		name     string
		args     []string
		contains string
	}{
		{"unknown mode", []string{"build", "--config", cfgFile, "--mode", "staging"}, "build.mode"},
		{"bad parallelism", []string{"build", "--config", cfgFile, "-j", "0"}, "parallelism"},
		{"missing explicit config", []string{"build", "--config", filepath.Join(t.TempDir(), "none.yml")}, "reading config file"},
		{"unexpected argument", []string{"build", "--config", cfgFile, "extra"}, "unknown command"},
		{"bad log level", []string{"build", "--config", cfgFile, "--log-level", "loud"}, "log.level"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := execute(t, tc.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.contains)
		})
	}
}

func TestBuildCommandReportsPageFailures(t *testing.T) {
	dir, cfgFile := newSite(t, "")
	testutils.WriteFile(t, dir, "app/loop.html", "@@include('loop.html')")
	testutils.WriteFile(t, dir, "app/html/loop.html", "@@include('loop.html')")

	stdout, _, err := execute(t, "build", "--config", cfgFile, "-q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loop.html")
	assert.FileExists(t, filepath.Join(dir, "dist", "index.html"))
	assert.Contains(t, stdout, "build finished")
}

func TestConfigFileFromEnvironment(t *testing.T) {
	_, cfgFile := newSite(t, "server:\n  port: 4321\n")
	t.Setenv(configFileEnv, cfgFile)

	stdout, _, err := execute(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, stdout, "# from "+cfgFile)
	assert.Contains(t, stdout, "port: 4321")
}

func TestConfigShow(t *testing.T) {
	_, cfgFile := newSite(t, "build:\n  mode: production-min\n")

	stdout, _, err := execute(t, "config", "show", "--config", cfgFile)
	require.NoError(t, err)

	var shown config.Config
	require.NoError(t, yaml.Unmarshal([]byte(stdout), &shown))
	assert.Equal(t, config.ModeProductionMin, shown.Build.Mode)
	assert.True(t, shown.Optimize.Enabled)
	assert.Equal(t, 30*time.Second, shown.Build.ItemTimeout)
	assert.Equal(t, "img", shown.Aliases.HTML["@img"])
}

func TestConfigInit(t *testing.T) {
	target := filepath.Join(t.TempDir(), "site.yml")

	stdout, _, err := execute(t, "config", "init", "--output", target)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Wrote "+target)

	_, _, err = execute(t, "config", "init", "--output", target)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, _, err = execute(t, "config", "init", "--output", target, "--force")
	require.NoError(t, err)

	v := viper.New()
	v.SetConfigFile(target)
	require.NoError(t, v.ReadInConfig())
	loaded, err := config.LoadFrom(v)
	require.NoError(t, err)

	defaults := config.Default()
	assert.Equal(t, defaults.Build, loaded.Build)
	assert.Equal(t, defaults.Optimize, loaded.Optimize)
	assert.Equal(t, defaults.Server.Port, loaded.Server.Port)
	assert.Equal(t, defaults.Aliases.HTML, loaded.Aliases.HTML)
}

func TestConfigValidate(t *testing.T) {
	_, good := newSite(t, "")
	stdout, _, err := execute(t, "config", "validate", "--config", good)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Configuration is valid")

	_, bad := newSite(t, "optimize:\n  jpeg_quality: 150\nserver:\n  port: 70000\n")
	stdout, _, err = execute(t, "config", "validate", "--config", bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 error(s)")
	assert.Contains(t, stdout, "optimize.jpeg_quality")
	assert.Contains(t, stdout, "server.port")
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "sitekit "))

	stdout, _, err = execute(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, version.Get().Version+"\n", stdout)

	stdout, _, err = execute(t, "version", "--format", "json")
	require.NoError(t, err)
	var info version.Info
	require.NoError(t, json.Unmarshal([]byte(stdout), &info))
	assert.Equal(t, version.Get().GoVersion, info.GoVersion)

	_, _, err = execute(t, "version", "--format", "xml")
	assert.Error(t, err)
}

func TestVersionIgnoresBrokenConfig(t *testing.T) {
	_, _, err := execute(t, "version", "--config", filepath.Join(t.TempDir(), "missing.yml"))
	assert.NoError(t, err)
}

func TestWatchSiteRebuildsOnChange(t *testing.T) {
	dir, _ := newSite(t, "")
	cfg := testutils.CreateTestConfig(dir)
	cfg.Build.Mode = config.ModeDevelopment
	builder := site.NewBuilder(cfg)

	_, err := builder.Build(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	rebuilt := make(chan struct{}, 4)
	done := make(chan error, 1)
	go func() {
		done <- watchSite(ctx, builder, logging.NewNopLogger(), func(context.Context) {
			select {
			case rebuilt <- struct{}{}:
			default:
			}
		})
	}()

	// Give the watcher time to register its directories.
	time.Sleep(200 * time.Millisecond)
	testutils.WriteFile(t, dir, "app/html/nav.html", "<nav>changed @@active</nav>")

	select {
	case <-rebuilt:
	case <-time.After(5 * time.Second):
		t.Fatal("no rebuild after a partial changed")
	}
	assert.Contains(t, testutils.ReadFile(t, dir, "dist/index.html"), "<nav>changed home</nav>")

	cancel()
	require.NoError(t, <-done)
}

func TestWatchSiteNeedsSources(t *testing.T) {
	cfg := testutils.CreateTestConfig(t.TempDir())
	builder := site.NewBuilder(cfg)

	err := watchSite(context.Background(), builder, logging.NewNopLogger(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to watch")
}

func TestServeStopsWhenWatchFails(t *testing.T) {
	dir, _ := newSite(t, "")
	cfg := testutils.CreateTestConfig(dir)
	cfg.Server.Host = "127.0.0.1"
	srv := server.New(cfg, nil, filepath.Join(dir, "dist"))

	boom := errors.New("watch failed")
	err := serve(context.Background(), cfg, logging.NewNopLogger(), srv, func(context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestServeShutsDownWithContext(t *testing.T) {
	dir, _ := newSite(t, "")
	cfg := testutils.CreateTestConfig(dir)
	cfg.Server.Host = "127.0.0.1"
	srv := server.New(cfg, nil, filepath.Join(dir, "dist"))

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	err := serve(ctx, cfg, logging.NewNopLogger(), srv, func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})
	assert.NoError(t, err)
}
