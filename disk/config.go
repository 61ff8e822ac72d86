package disk

import (
	"fmt"
	"os"

	"github.com/kraken-disk/diskcore/core"

	"gopkg.in/yaml.v2"
)

// Dispatch selects how a torrent's finalized piece writes reach disk.
type Dispatch string

const (
	// DispatchInline performs every piece write synchronously on the event
	// loop goroutine, the simplest and default mode.
	DispatchInline Dispatch = "inline"
	// DispatchWorkerPool offloads piece writes to a fixed pool of
	// NumWriteWorkers goroutines, freeing the event loop to keep draining
	// commands for other torrents while a large write is in flight. Commit
	// bookkeeping still happens back on the event loop goroutine once the
	// write completes, preserving the single-writer invariant over entry
	// and registry state.
	DispatchWorkerPool Dispatch = "worker_pool"
)

// Config defines disk task tunables, following the yaml-tagged
// Config/applyDefaults shape used throughout the pack's storage and
// scheduler configuration.
type Config struct {
	// CommandBufferSize sizes the disk task's command inbox. Zero gives an
	// unbuffered channel (each send waits for the event loop to receive
	// it); a positive value gives a buffered inbox of that capacity, whose
	// senders wait once it is full.
	CommandBufferSize int `yaml:"command_buffer_size"`

	// AlertBufferSize sizes each per-torrent and the global alert channel.
	AlertBufferSize int `yaml:"alert_buffer_size"`

	// BlockSize is the configured block granularity peers are expected to
	// write in. WriteBlock rejects any non-final block whose offset isn't
	// a multiple of this value.
	BlockSize int64 `yaml:"block_size"`

	// WriteDispatch selects inline or worker-pool piece-write dispatch.
	WriteDispatch Dispatch `yaml:"write_dispatch"`

	// NumWriteWorkers sizes the write-worker pool. Only meaningful when
	// WriteDispatch is DispatchWorkerPool.
	NumWriteWorkers int `yaml:"num_write_workers"`

	// WriteQueueDepth sizes the buffered channel feeding the write-worker
	// pool. Only meaningful when WriteDispatch is DispatchWorkerPool.
	WriteQueueDepth int `yaml:"write_queue_depth"`
}

func (c Config) applyDefaults() Config {
	if c.AlertBufferSize == 0 {
		c.AlertBufferSize = 64
	}
	if c.BlockSize == 0 {
		c.BlockSize = core.BlockSize
	}
	if c.WriteDispatch == "" {
		c.WriteDispatch = DispatchInline
	}
	if c.WriteDispatch == DispatchWorkerPool {
		if c.NumWriteWorkers == 0 {
			c.NumWriteWorkers = 4
		}
		if c.WriteQueueDepth == 0 {
			c.WriteQueueDepth = c.NumWriteWorkers * 2
		}
	}
	return c
}

// LoadConfig reads and parses a yaml-encoded Config from path, the same
// config-loading entry point agentstorage's own Config consumers use.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	return c.applyDefaults(), nil
}
