// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package buildconfig resolves webbuild configuration from the project file
// and the environment.
package buildconfig

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/webbuild/internal/config"
	"golang.org/x/webbuild/internal/derrors"
	"golang.org/x/webbuild/internal/log"
	"gopkg.in/yaml.v3"
)

// ProjectFile is the name of the optional project file in the project root.
const ProjectFile = "webbuild.yaml"

// GetEnv looks up the given key from the environment, returning its value if
// it exists, and otherwise returning the given fallback value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// GetEnvInt looks up the given key from the environment and expects an integer,
// returning the integer value if it exists, and otherwise returning the given
// fallback value.
func GetEnvInt(key string, fallback int) (int, error) {
	if s, ok := os.LookupEnv(key); ok {
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, derrors.Configurationf("bad value %q for %s", s, key)
		}
		return v, nil
	}
	return fallback, nil
}

// GetEnvBool looks up the given key from the environment and expects a
// boolean as accepted by strconv.ParseBool.
func GetEnvBool(key string, fallback bool) (bool, error) {
	if s, ok := os.LookupEnv(key); ok {
		v, err := strconv.ParseBool(s)
		if err != nil {
			return false, derrors.Configurationf("bad value %q for %s", s, key)
		}
		return v, nil
	}
	return fallback, nil
}

// Defaults returns the configuration used when neither the project file nor
// the environment says otherwise.
func Defaults(dir string) *config.Config {
	return &config.Config{
		Dir:          dir,
		EntryPoint:   "./src/main.ts",
		SourceRoot:   "src",
		OutDir:       "dist",
		PublicPath:   "",
		Clean:        true,
		Template:     "src/index.html",
		HTMLFilename: "index.html",
		Aliases: map[string]string{
			"@":           "src",
			"@components": "src/components",
			"@images":     "src/assets/images",
		},
		DevServer: config.DevServer{
			Port: 3000,
			Open: true,
		},
		Tools: config.Tools{
			Sass:      []string{"sass", "--no-source-map"},
			TypeCheck: []string{"tsc", "--noEmit", "--pretty", "false"},
			Lint:      []string{"eslint", "--ext", ".js,.ts,.vue", "src"},
		},
	}
}

// projectFile mirrors the fields of webbuild.yaml. Zero values leave the
// default in place.
type projectFile struct {
	Entry        string            `yaml:"entry"`
	SourceRoot   string            `yaml:"sourceRoot"`
	OutDir       string            `yaml:"outDir"`
	PublicPath   *string           `yaml:"publicPath"`
	Clean        *bool             `yaml:"clean"`
	Template     string            `yaml:"template"`
	HTMLFilename string            `yaml:"htmlFilename"`
	Alias        map[string]string `yaml:"alias"`
	DevServer    struct {
		Port int   `yaml:"port"`
		Open *bool `yaml:"open"`
	} `yaml:"devServer"`
	Tools struct {
		Sass              []string `yaml:"sass"`
		ComponentCompiler []string `yaml:"componentCompiler"`
		TypeCheck         []string `yaml:"typeCheck"`
		Lint              []string `yaml:"lint"`
	} `yaml:"tools"`
	StrictChecks *bool `yaml:"strictChecks"`
	Publish      struct {
		Bucket    string `yaml:"bucket"`
		Prefix    string `yaml:"prefix"`
		RedisAddr string `yaml:"redisAddr"`
	} `yaml:"publish"`
}

// Init resolves all configuration values for the project rooted at dir. It
// must be called before any configuration values are used.
//
// Values come from Defaults, then webbuild.yaml if it exists, then the
// environment, then each of overrides in order. The result is validated only
// after the overrides run, so an override can replace a bad environment value.
func Init(ctx context.Context, dir string, overrides ...func(*config.Config) error) (_ *config.Config, err error) {
	defer derrors.Wrap(&err, "buildconfig.Init(ctx, %q)", dir)

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	cfg := Defaults(abs)

	data, err := os.ReadFile(filepath.Join(abs, ProjectFile))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Debugf(ctx, "no %s in %s; using defaults", ProjectFile, abs)
	case err != nil:
		return nil, err
	default:
		if err := processProjectFile(ctx, cfg, data); err != nil {
			return nil, err
		}
	}
	if err := processEnv(cfg); err != nil {
		return nil, err
	}
	for _, o := range overrides {
		if err := o(cfg); err != nil {
			return nil, err
		}
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	log.SetLevel(cfg.LogLevel)
	return cfg, nil
}

func processProjectFile(ctx context.Context, cfg *config.Config, data []byte) error {
	var pf projectFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&pf); err != nil && err != io.EOF {
		return derrors.Configurationf("%s: %v", ProjectFile, err)
	}
	override(ctx, "entry", &cfg.EntryPoint, pf.Entry)
	override(ctx, "sourceRoot", &cfg.SourceRoot, pf.SourceRoot)
	override(ctx, "outDir", &cfg.OutDir, pf.OutDir)
	if pf.PublicPath != nil {
		cfg.PublicPath = *pf.PublicPath
	}
	if pf.Clean != nil {
		cfg.Clean = *pf.Clean
	}
	override(ctx, "template", &cfg.Template, pf.Template)
	override(ctx, "htmlFilename", &cfg.HTMLFilename, pf.HTMLFilename)
	if pf.Alias != nil {
		// The project file replaces the alias table rather than merging into
		// it, so that a project can drop a default alias.
		cfg.Aliases = pf.Alias
	}
	override(ctx, "devServer.port", &cfg.DevServer.Port, pf.DevServer.Port)
	if pf.DevServer.Open != nil {
		cfg.DevServer.Open = *pf.DevServer.Open
	}
	overrideCommand(&cfg.Tools.Sass, pf.Tools.Sass)
	overrideCommand(&cfg.Tools.ComponentCompiler, pf.Tools.ComponentCompiler)
	overrideCommand(&cfg.Tools.TypeCheck, pf.Tools.TypeCheck)
	overrideCommand(&cfg.Tools.Lint, pf.Tools.Lint)
	if pf.StrictChecks != nil {
		cfg.StrictChecks = *pf.StrictChecks
	}
	override(ctx, "publish.bucket", &cfg.Publish.Bucket, pf.Publish.Bucket)
	override(ctx, "publish.prefix", &cfg.Publish.Prefix, pf.Publish.Prefix)
	override(ctx, "publish.redisAddr", &cfg.Publish.RedisAddr, pf.Publish.RedisAddr)
	return nil
}

func override[T comparable](ctx context.Context, name string, field *T, val T) {
	var zero T
	if val != zero {
		*field = val
		log.Debugf(ctx, "%s: setting %s to %v", ProjectFile, name, val)
	}
}

func overrideCommand(field *[]string, val []string) {
	if len(val) > 0 {
		*field = val
	}
}

// processEnv records NODE_ENV unchecked; Validate rejects an unknown mode.
func processEnv(cfg *config.Config) (err error) {
	cfg.Mode = config.Mode(strings.TrimSpace(os.Getenv("NODE_ENV")))
	if cfg.DevServer.Port, err = GetEnvInt("WEBBUILD_PORT", cfg.DevServer.Port); err != nil {
		return err
	}
	if cfg.DevServer.Open, err = GetEnvBool("WEBBUILD_OPEN", cfg.DevServer.Open); err != nil {
		return err
	}
	if cfg.StrictChecks, err = GetEnvBool("WEBBUILD_STRICT_CHECKS", cfg.StrictChecks); err != nil {
		return err
	}
	cfg.OutDir = GetEnv("WEBBUILD_OUT_DIR", cfg.OutDir)
	cfg.LogLevel = GetEnv("WEBBUILD_LOG_LEVEL", cfg.LogLevel)
	cfg.LogProject = GetEnv("WEBBUILD_LOG_PROJECT", cfg.LogProject)
	cfg.Publish.Bucket = GetEnv("WEBBUILD_PUBLISH_BUCKET", cfg.Publish.Bucket)
	cfg.Publish.Prefix = GetEnv("WEBBUILD_PUBLISH_PREFIX", cfg.Publish.Prefix)
	cfg.Publish.RedisAddr = GetEnv("WEBBUILD_REDIS_ADDR", cfg.Publish.RedisAddr)
	return nil
}

// Validate reports a configuration error for values that no build could use.
// It does not touch the filesystem; plan.Resolve checks alias targets.
func Validate(cfg *config.Config) error {
	if _, err := config.ParseMode(string(cfg.Mode)); err != nil {
		return err
	}
	if strings.TrimSpace(cfg.EntryPoint) == "" {
		return derrors.Configurationf("entry point is empty")
	}
	if cfg.OutDir == "" {
		return derrors.Configurationf("output directory is empty")
	}
	if cfg.DevServer.Port <= 0 || cfg.DevServer.Port > 65535 {
		return derrors.Configurationf("dev server port %d out of range", cfg.DevServer.Port)
	}
	for prefix, target := range cfg.Aliases {
		if prefix == "" || target == "" {
			return derrors.Configurationf("alias %q -> %q: empty prefix or target", prefix, target)
		}
	}
	return nil
}
