package registry

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"umid/pkg/sentinel"
)

// AllowAll accepts every user ID. Deployments without an identity system of
// record run with this adapter; orphan cleanup needs an enumerable registry
// and is unavailable behind it.
type AllowAll struct{}

func (AllowAll) Exists(context.Context, string) (bool, error) {
	return true, nil
}

func (AllowAll) ListIDs(context.Context) ([]string, error) {
	return nil, fmt.Errorf("identity registry cannot enumerate users: %w", sentinel.ErrUnavailable)
}

// LoadSeedFile builds an InMemory registry from a newline-separated list of
// user IDs. Blank lines and #-comments are skipped.
func LoadSeedFile(path string) (*InMemory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open registry seed file: %w", err)
	}
	defer f.Close()

	reg := NewInMemory()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		reg.Add(line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read registry seed file: %w", err)
	}
	return reg, nil
}
