package uthread

import (
	"bytes"
	"fmt"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

const (
	AllocatorHeap = "heap"
	AllocatorMmap = "mmap"
)

// DefaultStackSize is the stack size of each logical thread.
const DefaultStackSize = 256 * 1024

// MinStackSize is the smallest stack a Config accepts.
const MinStackSize = 4096

// Config controls how a Scheduler allocates stacks and logs.
type Config struct {
	StackSize     int    `toml:"stack_size"`
	Allocator     string `toml:"allocator"`
	GuardPage     bool   `toml:"guard_page"`
	MaxStackBytes int64  `toml:"max_stack_bytes"` // 0 means no budget
	Debug         bool   `toml:"debug"`
}

func DefaultConfig() *Config {
	return &Config{
		StackSize: DefaultStackSize,
		Allocator: AllocatorHeap,
	}
}

func validateConfig(cfg *Config) error {
	if cfg.StackSize < MinStackSize {
		return fmt.Errorf("stack_size: %d below minimum %d", cfg.StackSize, MinStackSize)
	}
	switch cfg.Allocator {
	case AllocatorHeap, AllocatorMmap:
	default:
		return fmt.Errorf("allocator: %q is not one of %q, %q", cfg.Allocator, AllocatorHeap, AllocatorMmap)
	}
	if cfg.GuardPage && cfg.Allocator != AllocatorMmap {
		return fmt.Errorf("guard_page: requires the %q allocator", AllocatorMmap)
	}
	if cfg.MaxStackBytes < 0 {
		return fmt.Errorf("max_stack_bytes: %d is negative", cfg.MaxStackBytes)
	}
	return nil
}

// LoadConfig reads a TOML config file. Keys absent from the file keep their
// DefaultConfig values; unknown keys are rejected.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", filename, err)
	}

	cfg := DefaultConfig()
	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", filename, err)
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("validate config %s: %w", filename, err)
	}
	return cfg, nil
}

// ApplyEnv overrides cfg from UTHREAD_STACK_SIZE, UTHREAD_ALLOCATOR and
// UTHREAD_DEBUG. Unparsable values are reported, not ignored.
func ApplyEnv(cfg *Config) error {
	if v := os.Getenv("UTHREAD_STACK_SIZE"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return fmt.Errorf("UTHREAD_STACK_SIZE: %w", err)
		}
		cfg.StackSize = int(n)
	}
	if v := os.Getenv("UTHREAD_ALLOCATOR"); v != "" {
		cfg.Allocator = v
	}
	if v := os.Getenv("UTHREAD_DEBUG"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("UTHREAD_DEBUG: %w", err)
		}
		cfg.Debug = b
	}
	return validateConfig(cfg)
}
