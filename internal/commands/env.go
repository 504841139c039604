package commands

import (
	"errors"
	"fmt"
	"os"

	"cifra/internal/cli"
	"cifra/internal/config"
	"cifra/internal/log"
)

var errNoKey = errors.New("no key configured: set KEY_HEX or pass --key-file")

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

// loadRuntime loads the configuration, applies flag overrides and builds
// the decryption stack. Logs go to stderr so stdout stays machine-readable.
func loadRuntime(keyFile string) (*cli.Runtime, error) {
	cli.LoadEnvFile()
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if keyFile != "" {
		cfg.KeyHex, cfg.KeyFile = "", keyFile
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cli.SetupLogger(cfg)
	return cli.NewRuntime(cfg, logger.WithComponent(log.ComponentApp))
}

// loadKeyedRuntime is loadRuntime with the session key set.
func loadKeyedRuntime(keyFile string) (*cli.Runtime, error) {
	rt, err := loadRuntime(keyFile)
	if err != nil {
		return nil, err
	}
	loaded, err := rt.LoadKey()
	if err != nil {
		return nil, err
	}
	if !loaded {
		return nil, errNoKey
	}
	return rt, nil
}
