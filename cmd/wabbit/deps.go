package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"wabbit/compiler-go/pkg/driver"
)

func runDeps(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 1
	}
	switch args[0] {
	case "install":
		return depsInstall(nil, false)
	case "update":
		return depsInstall(args[1:], true)
	default:
		fmt.Fprintf(os.Stderr, "wabbit deps: unknown subcommand %q\n", args[0])
		return 1
	}
}

// depsInstall resolves manifest dependencies into the project cache and
// pins them in wabbit.lock. With refresh set, named dependencies (or all
// of them) are re-resolved even when already locked.
func depsInstall(only []string, refresh bool) int {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	manifestPath, err := driver.FindManifest(cwd)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	manifest, err := driver.LoadManifest(manifestPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	projectDir := filepath.Dir(manifestPath)
	cacheDir := filepath.Join(projectDir, ".wabbit")
	lockPath := filepath.Join(projectDir, driver.LockfileName)

	lock, err := driver.LoadLockfile(lockPath)
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		lock = driver.NewLockfile(manifest.Name, cliToolVersion)
	}

	selected := make(map[string]bool, len(only))
	for _, name := range only {
		if _, ok := manifest.Dependencies[name]; !ok {
			fmt.Fprintf(os.Stderr, "wabbit deps: manifest has no dependency %q\n", name)
			return 1
		}
		selected[name] = true
	}

	names := make([]string, 0, len(manifest.Dependencies))
	for name := range manifest.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)

	gits := newGitFetcher(cacheDir)
	registry := newRegistryFetcher(cacheDir)

	failed := false
	for _, name := range names {
		if len(selected) > 0 && !selected[name] {
			continue
		}
		if !refresh {
			if _, ok := lock.Find(name); ok {
				slog.Debug("already locked", "dependency", name)
				continue
			}
		}
		spec := manifest.Dependencies[name]
		pkg, err := resolveDependency(name, spec, projectDir, cacheDir, gits, registry)
		if err != nil {
			fmt.Fprintf(os.Stderr, "wabbit deps: %s: %v\n", name, err)
			failed = true
			continue
		}
		lock.Upsert(pkg)
		fmt.Fprintf(os.Stdout, "locked %s %s\n", pkg.Name, pkg.Version)
	}
	if failed {
		return 1
	}
	if err := driver.WriteLockfile(lock, lockPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func resolveDependency(name string, spec *driver.DependencySpec, projectDir, cacheDir string, gits *gitFetcher, registry *registryFetcher) (*driver.LockedPackage, error) {
	switch {
	case spec == nil:
		return nil, fmt.Errorf("missing specification")
	case spec.Path != "":
		return fetchPathDependency(name, spec, projectDir, cacheDir)
	case spec.Git != "":
		pkg, _, err := gits.Fetch(name, spec)
		return pkg, err
	default:
		pkg, _, err := registry.Fetch(name, spec.Version)
		return pkg, err
	}
}
