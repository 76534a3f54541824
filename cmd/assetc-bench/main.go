// Command assetc-bench is a development harness for the Asset
// Compilation Core: it drives one end-to-end compile (and, for scenes,
// the matching export) of a single source file through compiler.Registry
// and reports what ran, with an optional watch mode that recompiles on
// every source-file change.
//
// Grounded on the teacher's testbed/game.go + main.go pairing (a small
// standalone program wiring one concrete use of the engine's public
// surface), generalized from "boot a window" to "run one compile."
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/forgelabs/assetforge/compiler"
	"github.com/forgelabs/assetforge/config"
	"github.com/forgelabs/assetforge/core"
	"github.com/forgelabs/assetforge/jobs"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a TOML compiler config (optional)")
		sourcePath = flag.String("source", "", "source asset to compile")
		outDir     = flag.String("out", ".", "root directory for compiled output")
		platform   = flag.String("platform", string(config.PlatformLinux), "target platform")
		exportExt  = flag.String("export", "", "if set, also export the compiled scene to this container extension (e.g. glb)")
		watch      = flag.Bool("watch", false, "recompile whenever source changes")
	)
	flag.Parse()

	if *sourcePath == "" {
		core.LogFatal("assetc-bench: -source is required")
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			core.LogFatal("assetc-bench: %v", err)
		}
		cfg = loaded
	}

	registry := compiler.NewDefaultRegistry()
	platforms := []config.Platform{config.Platform(*platform)}

	if err := runOnce(registry, cfg, *sourcePath, *outDir, platforms, *exportExt); err != nil {
		core.LogFatal("assetc-bench: %v", err)
	}

	if !*watch {
		return
	}

	if err := watchAndRecompile(registry, cfg, *sourcePath, *outDir, platforms, *exportExt); err != nil {
		core.LogFatal("assetc-bench: watch: %v", err)
	}
}

// runOnce compiles sourcePath once, and exports the result when exportExt
// is non-empty (scene sources only — SPEC_FULL.md §4.11).
func runOnce(registry *compiler.Registry, cfg config.CompilerConfig, sourcePath, outDir string, platforms []config.Platform, exportExt string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create out dir: %w", err)
	}

	sched := jobs.NewScheduler(cfg.Workers)
	flags := compiler.Flags{GenerateMips: cfg.Texture.GenerateMipsByDefault}

	var compileResult compiler.CompileResult
	if _, err := registry.Compile(sched, sourcePath, outDir, platforms, flags, func(r compiler.CompileResult) {
		compileResult = r
	}); err != nil {
		return fmt.Errorf("compile %s: %w", sourcePath, err)
	}
	if err := sched.Run(); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	if !compileResult.Compiled {
		return fmt.Errorf("compile of %s did not succeed", sourcePath)
	}
	core.LogInfo("assetc-bench: compiled %s -> %s", sourcePath, compileResult.MetadataPath)

	if exportExt == "" {
		return nil
	}
	return exportCompiled(registry, sourcePath, compileResult.MetadataPath, exportExt)
}

// exportCompiled runs Export as its own scheduler pass: Export needs the
// Compile job's output metadata path, so it can only start once Compile
// has fully settled. It reuses registry (not a fresh one) so the
// sceneGUID -> metadataPath memo sceneCompilerPlugin filled in during
// Compile is available for any nested-scene reference this export walks
// into.
func exportCompiled(registry *compiler.Registry, sourcePath, metadataPath, exportExt string) error {
	exportSched := jobs.NewScheduler(1)
	var result compiler.ExportResult
	if _, err := registry.Export(exportSched, filepath.Ext(sourcePath), metadataPath, exportExt, func(r compiler.ExportResult) {
		result = r
	}); err != nil {
		return fmt.Errorf("export %s: %w", sourcePath, err)
	}
	if err := exportSched.Run(); err != nil {
		return fmt.Errorf("export run: %w", err)
	}
	if !result.Exported {
		return fmt.Errorf("export of %s did not succeed", sourcePath)
	}
	core.LogInfo("assetc-bench: exported %s -> %d bytes of .%s", sourcePath, len(result.Blob), strings.TrimPrefix(exportExt, "."))
	return nil
}

// watchAndRecompile recompiles sourcePath every time it changes on disk,
// using fsnotify the way the teacher's AssetManager watches the assets
// directory — but scoped to harness convenience, never the core's own
// Compile path (SPEC_FULL.md §11; hot-reload of compiled assets is an
// explicit Non-goal).
func watchAndRecompile(registry *compiler.Registry, cfg config.CompilerConfig, sourcePath, outDir string, platforms []config.Platform, exportExt string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(sourcePath)); err != nil {
		return err
	}

	core.LogInfo("assetc-bench: watching %s for changes", sourcePath)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(sourcePath) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			core.LogInfo("assetc-bench: %s changed, recompiling", sourcePath)
			if err := runOnce(registry, cfg, sourcePath, outDir, platforms, exportExt); err != nil {
				core.LogError("assetc-bench: recompile failed: %v", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			core.LogError("assetc-bench: watch error: %v", err)
		}
	}
}
