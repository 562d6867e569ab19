package envprobe

import (
	"context"
	"os/exec"
	"strings"
	"testing"
)

func TestCollectOnNonGitDir(t *testing.T) {
	dir := t.TempDir()
	info := Collect(context.Background(), dir)
	if info.OS == "" || info.Arch == "" {
		t.Fatal("expected OS/Arch to be populated")
	}
	if !strings.Contains(info.GitStatus, "unknown") {
		t.Fatalf("expected unknown git status outside a repo, got %q", info.GitStatus)
	}
}

func TestCollectCleanRepo(t *testing.T) {
	dir := t.TempDir()
	run(t, dir, "init")
	run(t, dir, "config", "user.email", "a@b.com")
	run(t, dir, "config", "user.name", "test")
	info := Collect(context.Background(), dir)
	if info.GitStatus != "Clean (no changes)" {
		t.Fatalf("expected clean status, got %q", info.GitStatus)
	}
}

func TestToContextStringIncludesFields(t *testing.T) {
	info := Info{OS: "linux", Arch: "amd64", GitBranch: "main", GitStatus: "Clean (no changes)", Workdir: "/tmp/x"}
	s := info.ToContextString()
	if !strings.Contains(s, "linux/amd64") || !strings.Contains(s, "main") {
		t.Fatalf("unexpected context string: %q", s)
	}
}

func run(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if err := cmd.Run(); err != nil {
		t.Skipf("git unavailable in test environment: %v", err)
	}
}
