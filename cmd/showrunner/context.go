package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"showrunner/internal/config"
	"showrunner/internal/daemonrun"
	"showrunner/internal/ipc"
	"showrunner/internal/store"
)

// commandContext carries the lazily loaded configuration and flag values
// shared by every subcommand.
type commandContext struct {
	socketFlag *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(socketFlag, configFlag *string) *commandContext {
	return &commandContext{socketFlag: socketFlag, configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		path := ""
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// configValue returns the loaded configuration or nil when loading failed.
func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) socketPath() string {
	if c.socketFlag != nil {
		if trimmed := strings.TrimSpace(*c.socketFlag); trimmed != "" {
			return trimmed
		}
	}
	path := c.defaultSocketPath()
	if c.socketFlag != nil {
		*c.socketFlag = path
	}
	return path
}

func (c *commandContext) defaultSocketPath() string {
	if cfg, err := c.ensureConfig(); err == nil && cfg != nil {
		return daemonrun.SocketPath(cfg)
	}
	if dir, err := config.ExpandPath("~/.local/share/showrunner/logs"); err == nil {
		return filepath.Join(dir, "showrunner.sock")
	}
	return filepath.Join(os.TempDir(), "showrunner.sock")
}

func (c *commandContext) withClient(fn func(*ipc.Client) error) error {
	client, err := c.dialClient()
	if err != nil {
		return err
	}
	defer client.Close()
	return fn(client)
}

// withStore runs fn with an IPC client when the daemon answers on the
// control socket, or with direct job-store access otherwise. Exactly one
// of the two arguments is non-nil.
func (c *commandContext) withStore(fn func(*ipc.Client, *store.Store) error) error {
	if client, err := c.dialClient(); err == nil {
		defer client.Close()
		return fn(client, nil)
	}
	st, err := c.openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(nil, st)
}

func (c *commandContext) openStore() (*store.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open job store: %w", err)
	}
	return st, nil
}

func (c *commandContext) dialClient() (*ipc.Client, error) {
	socket := c.socketPath()
	client, err := ipc.Dial(socket)
	if err != nil {
		return nil, wrapDialError(socket, err)
	}
	return client, nil
}

func wrapDialError(socket string, err error) error {
	switch {
	case errors.Is(err, os.ErrNotExist), errors.Is(err, syscall.ENOENT):
		return fmt.Errorf("connect to daemon: socket %s not found; start the daemon with `showrunner start`", socket)
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("connect to daemon: socket %s refused the connection; verify the daemon is running or start it with `showrunner start`", socket)
	}
	return fmt.Errorf("connect to daemon: %w", err)
}

// shouldSkipConfig reports whether a command opted out of configuration
// loading via the skipConfigLoad annotation on itself or an ancestor.
func shouldSkipConfig(cmd *cobra.Command) bool {
	for current := cmd; current != nil; current = current.Parent() {
		if current.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
