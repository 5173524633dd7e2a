package uthread

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "uthread.toml")
	if err := os.WriteFile(p, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoadConfig(t *testing.T) {
	p := writeConfig(t, `
stack_size = 65536
allocator = "mmap"
guard_page = true
max_stack_bytes = 1048576
debug = true
`)
	cfg, err := LoadConfig(p)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	want := Config{
		StackSize:     65536,
		Allocator:     AllocatorMmap,
		GuardPage:     true,
		MaxStackBytes: 1 << 20,
		Debug:         true,
	}
	if *cfg != want {
		t.Errorf("config = %+v, want %+v", *cfg, want)
	}
}

func TestLoadConfigKeepsDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "debug = true\n"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.StackSize != DefaultStackSize || cfg.Allocator != AllocatorHeap {
		t.Errorf("defaults lost: %+v", *cfg)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown key", "stack_sise = 8192\n"},
		{"bad toml", "stack_size = \n"},
		{"stack too small", "stack_size = 16\n"},
		{"unknown allocator", "allocator = \"slab\"\n"},
		{"guard without mmap", "guard_page = true\n"},
		{"negative budget", "max_stack_bytes = -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, tt.body)); err == nil {
				t.Errorf("LoadConfig(%q) should fail", tt.body)
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "none.toml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("LoadConfig on missing file = %v, want os.ErrNotExist", err)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("UTHREAD_STACK_SIZE", "8192")
	t.Setenv("UTHREAD_ALLOCATOR", "mmap")
	t.Setenv("UTHREAD_DEBUG", "true")

	cfg := DefaultConfig()
	if err := ApplyEnv(cfg); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.StackSize != 8192 || cfg.Allocator != AllocatorMmap || !cfg.Debug {
		t.Errorf("config = %+v", *cfg)
	}
}

func TestApplyEnvInvalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"UTHREAD_STACK_SIZE", "big"},
		{"UTHREAD_STACK_SIZE", "100"},
		{"UTHREAD_DEBUG", "maybe"},
		{"UTHREAD_ALLOCATOR", "slab"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if err := ApplyEnv(DefaultConfig()); err == nil {
				t.Errorf("ApplyEnv with %s=%s should fail", tt.key, tt.value)
			}
		})
	}
}
