package driver

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeManifest(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, ManifestName)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

func TestLoadManifestBasic(t *testing.T) {
	path := writeManifest(t, `
name: mandel
version: "0.2.0"
authors:
  - Grace
targets:
  app: src/mandel.wb
  bench:
    main: src/bench.wb
dependencies:
  mathlib: "~> 1.0"
  plotting:
    git: https://example.com/plotting.git
    tag: v2.1.0
  local_fixtures:
    path: ../fixtures
`)

	manifest, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest returned error: %v", err)
	}
	if manifest.Name != "mandel" {
		t.Fatalf("Name = %q, want mandel", manifest.Name)
	}
	if manifest.Version != "0.2.0" {
		t.Fatalf("Version = %q, want 0.2.0", manifest.Version)
	}
	if len(manifest.Authors) != 1 || manifest.Authors[0] != "Grace" {
		t.Fatalf("Authors unexpected: %#v", manifest.Authors)
	}
	if got := strings.Join(manifest.TargetOrder, ","); got != "app,bench" {
		t.Fatalf("TargetOrder = %q, want app,bench", got)
	}

	app, ok := manifest.FindTarget("app")
	if !ok || app.Main != "src/mandel.wb" {
		t.Fatalf("app target not parsed: %#v", app)
	}
	bench, ok := manifest.FindTarget("bench")
	if !ok || bench.Main != "src/bench.wb" {
		t.Fatalf("bench target not parsed: %#v", bench)
	}

	mathlib := manifest.Dependencies["mathlib"]
	if mathlib == nil || mathlib.Version != "~> 1.0" {
		t.Fatalf("mathlib dependency not parsed: %#v", mathlib)
	}
	plotting := manifest.Dependencies["plotting"]
	if plotting == nil || plotting.Git == "" || plotting.Tag != "v2.1.0" {
		t.Fatalf("plotting dependency not captured: %#v", plotting)
	}
	fixtures := manifest.Dependencies["local_fixtures"]
	if fixtures == nil || fixtures.Path != "../fixtures" {
		t.Fatalf("path override missing: %#v", fixtures)
	}
}

func TestLoadManifestDefaultTarget(t *testing.T) {
	path := writeManifest(t, `
name: scripts
targets:
  first: a.wb
  second: b.wb
`)
	manifest, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest returned error: %v", err)
	}
	target, err := manifest.DefaultTarget()
	if err != nil {
		t.Fatalf("DefaultTarget returned error: %v", err)
	}
	if target.Name != "first" {
		t.Fatalf("DefaultTarget = %q, want first", target.Name)
	}
	if got := manifest.MainPath(target); got != filepath.Join(filepath.Dir(path), "a.wb") {
		t.Fatalf("MainPath = %q", got)
	}
}

func TestLoadManifestValidation(t *testing.T) {
	cases := []struct {
		name     string
		contents string
		fragment string
	}{
		{
			name:     "missing name",
			contents: "targets:\n  app: a.wb\n",
			fragment: "name must be provided",
		},
		{
			name:     "wrong extension",
			contents: "name: x\ntargets:\n  app: a.txt\n",
			fragment: "not a .wb file",
		},
		{
			name:     "dependency without source",
			contents: "name: x\ntargets:\n  app: a.wb\ndependencies:\n  broken: {}\n",
			fragment: "must specify version, git, or path",
		},
		{
			name:     "rev without git",
			contents: "name: x\ntargets:\n  app: a.wb\ndependencies:\n  broken:\n    version: \"1.0\"\n    rev: abc\n",
			fragment: "require a git source",
		},
		{
			name:     "bad version constraint",
			contents: "name: x\ntargets:\n  app: a.wb\ndependencies:\n  broken: \"not-a-version\"\n",
			fragment: "invalid version constraint",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeManifest(t, tc.contents)
			_, err := LoadManifest(path)
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if !strings.Contains(err.Error(), tc.fragment) {
				t.Fatalf("error = %v, want fragment %q", err, tc.fragment)
			}
		})
	}
}

func TestLoadManifestRejectsUnknownKeys(t *testing.T) {
	path := writeManifest(t, "name: x\nbogus: true\ntargets:\n  app: a.wb\n")
	if _, err := LoadManifest(path); err == nil {
		t.Fatal("expected unknown key error")
	}
}

func TestLockfileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, LockfileName)

	lock := NewLockfile("mandel", "wabbit 0.1")
	lock.Upsert(&LockedPackage{
		Name:     "plotting",
		Version:  "v2.1.0",
		Source:   "git+https://example.com/plotting.git@abc123",
		Checksum: "deadbeef",
	})
	lock.Upsert(&LockedPackage{Name: "mathlib", Version: "1.0.4", Source: "path:../mathlib"})
	if err := WriteLockfile(lock, path); err != nil {
		t.Fatalf("WriteLockfile returned error: %v", err)
	}

	loaded, err := LoadLockfile(path)
	if err != nil {
		t.Fatalf("LoadLockfile returned error: %v", err)
	}
	if loaded.Root != "mandel" {
		t.Fatalf("Root = %q, want mandel", loaded.Root)
	}
	if len(loaded.Packages) != 2 {
		t.Fatalf("got %d packages, want 2", len(loaded.Packages))
	}
	// entries come back sorted by name
	if loaded.Packages[0].Name != "mathlib" || loaded.Packages[1].Name != "plotting" {
		t.Fatalf("packages out of order: %#v", loaded.Packages)
	}
	plotting, ok := loaded.Find("plotting")
	if !ok || plotting.Checksum != "deadbeef" {
		t.Fatalf("Find(plotting) = %#v, %v", plotting, ok)
	}
}

func TestLockfileUpsertReplaces(t *testing.T) {
	lock := NewLockfile("x", "wabbit")
	lock.Upsert(&LockedPackage{Name: "dep", Version: "1.0.0"})
	lock.Upsert(&LockedPackage{Name: "dep", Version: "1.1.0"})
	if len(lock.Packages) != 1 {
		t.Fatalf("got %d packages, want 1", len(lock.Packages))
	}
	if lock.Packages[0].Version != "1.1.0" {
		t.Fatalf("Version = %q, want 1.1.0", lock.Packages[0].Version)
	}
}
