package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const maxConfigFileSize = 1 << 20

func userConfigDir(home string) string {
	return filepath.Join(home, ".config", "bookmarkd")
}

// validateConfigPath rejects paths that resolve outside the allowed
// config directories. It runs before the file is known to exist.
func validateConfigPath(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", path, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("resolving home directory: %w", err)
	}
	for _, dir := range []string{userConfigDir(home), "/etc/bookmarkd"} {
		if abs == dir || strings.HasPrefix(abs, dir+string(filepath.Separator)) {
			return nil
		}
	}
	return errors.New("config file must be in ~/.config/bookmarkd/ or /etc/bookmarkd/")
}

// readConfigFile returns nil content when path does not exist. Mode and
// size are checked on the open descriptor.
func readConfigFile(path string) ([]byte, error) {
	if err := validateConfigPath(path); err != nil {
		return nil, fmt.Errorf("config path validation failed: %w", err)
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if err := checkConfigFile(info); err != nil {
		return nil, fmt.Errorf("config file validation failed: %w", err)
	}
	return io.ReadAll(io.LimitReader(f, maxConfigFileSize))
}

func checkConfigFile(info os.FileInfo) error {
	if perm := info.Mode().Perm(); runtime.GOOS != "windows" && perm != 0o600 && perm != 0o400 {
		return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}
