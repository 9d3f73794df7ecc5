package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"wabbit/compiler-go/pkg/driver"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	oldWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(oldWD)
	})
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir %s: %v", dir, err)
	}
}

func TestVersionCommand(t *testing.T) {
	if code := run([]string{"version"}); code != 0 {
		t.Fatalf("version exit = %d, want 0", code)
	}
}

func TestNoArgsPrintsUsage(t *testing.T) {
	if code := run(nil); code != 1 {
		t.Fatalf("empty args exit = %d, want 1", code)
	}
}

func TestCheckCommand(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.wb")
	writeFile(t, good, "print 1 + 2;\n")
	if code := run([]string{"check", good}); code != 0 {
		t.Fatalf("check exit = %d, want 0", code)
	}

	bad := filepath.Join(dir, "bad.wb")
	writeFile(t, bad, "print 1 + 2.5;\n")
	if code := run([]string{"check", bad}); code != 1 {
		t.Fatalf("check of bad program exit = %d, want 1", code)
	}
}

func TestRunCommandExecutesProgram(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "loop.wb")
	writeFile(t, path, `
var n int = 0;
while n < 3 {
    print n;
    n = n + 1;
}
`)
	if code := run([]string{"run", path}); code != 0 {
		t.Fatalf("run exit = %d, want 0", code)
	}
}

func TestFmtCommand(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "prog.wb")
	writeFile(t, source, "var   n   int=2   ;\nprint n+1;\n")

	if code := run([]string{"fmt", source}); code != 0 {
		t.Fatalf("fmt exit = %d, want 0", code)
	}
	if code := run([]string{"fmt", filepath.Join(dir, "missing.wb")}); code != 1 {
		t.Fatalf("fmt of missing file exit = %d, want 1", code)
	}
}

func TestLLVMCommandWritesFile(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "prog.wb")
	writeFile(t, source, "print 42;\n")
	out := filepath.Join(dir, "prog.ll")

	if code := run([]string{"llvm", "-o", out, source}); code != 0 {
		t.Fatalf("llvm exit = %d, want 0", code)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !strings.Contains(string(data), "define i32 @main()") {
		t.Fatalf("output missing main definition:\n%s", data)
	}
}

func TestWasmCommandWritesBinary(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "prog.wb")
	writeFile(t, source, "print 42;\n")
	out := filepath.Join(dir, "prog.wasm")

	if code := run([]string{"wasm", "-o", out, source}); code != 0 {
		t.Fatalf("wasm exit = %d, want 0", code)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("\x00asm")) {
		t.Fatalf("output missing wasm magic: % x", data[:8])
	}
}

func TestBuildCommandWritesGoSource(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "prog.wb")
	writeFile(t, source, "print 42;\n")
	out := filepath.Join(dir, "generated")

	if code := run([]string{"build", "-o", out, source}); code != 0 {
		t.Fatalf("build exit = %d, want 0", code)
	}
	data, err := os.ReadFile(filepath.Join(out, "main.go"))
	if err != nil {
		t.Fatalf("read generated main.go: %v", err)
	}
	if !strings.Contains(string(data), "package main") {
		t.Fatalf("generated source missing package clause:\n%s", data)
	}
}

func TestRunUsesManifestTarget(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, driver.ManifestName), "name: demo\ntargets:\n  app: src/main.wb\n")
	writeFile(t, filepath.Join(dir, "src", "main.wb"), "print 7;\n")
	chdir(t, dir)

	if code := run([]string{"run"}); code != 0 {
		t.Fatalf("run exit = %d, want 0", code)
	}
	if code := run([]string{"run", "app"}); code != 0 {
		t.Fatalf("run app exit = %d, want 0", code)
	}
	if code := run([]string{"run", "missing"}); code != 1 {
		t.Fatalf("run missing exit = %d, want 1", code)
	}
}

func TestDepsInstallPathDependency(t *testing.T) {
	root := t.TempDir()
	appDir := filepath.Join(root, "app")
	depDir := filepath.Join(root, "dep")
	writeFile(t, filepath.Join(appDir, driver.ManifestName), `
name: app
targets:
  app: main.wb
dependencies:
  helpers:
    path: ../dep
`)
	writeFile(t, filepath.Join(appDir, "main.wb"), "print 1;\n")
	writeFile(t, filepath.Join(depDir, "helpers.wb"), "func one() int { return 1; }\n")
	chdir(t, appDir)

	if code := run([]string{"deps", "install"}); code != 0 {
		t.Fatalf("deps install exit = %d, want 0", code)
	}

	lock, err := driver.LoadLockfile(filepath.Join(appDir, driver.LockfileName))
	if err != nil {
		t.Fatalf("LoadLockfile: %v", err)
	}
	pkg, ok := lock.Find("helpers")
	if !ok {
		t.Fatalf("helpers not locked: %#v", lock.Packages)
	}
	if pkg.Source != "path:../dep" || pkg.Checksum == "" {
		t.Fatalf("locked entry unexpected: %#v", pkg)
	}
	if _, err := os.Stat(filepath.Join(appDir, ".wabbit", "pkg", "src", "helpers", "local", "helpers.wb")); err != nil {
		t.Fatalf("cached copy missing: %v", err)
	}
}

func TestDepsUpdateUnknownDependency(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, driver.ManifestName), "name: demo\ntargets:\n  app: main.wb\n")
	chdir(t, dir)
	if code := run([]string{"deps", "update", "nope"}); code != 1 {
		t.Fatalf("deps update exit = %d, want 1", code)
	}
}
