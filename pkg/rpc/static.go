package rpc

import (
	"context"
	"fmt"
	"os"

	"github.com/sanyaade-teachings/ganeti/pkg/types"
	"gopkg.in/yaml.v3"
)

// FileInfo returns an InfoFunc that reads the node's live data from a
// YAML file on every call, so edits show up without a restart
func FileInfo(path string) InfoFunc {
	return func(ctx context.Context) (*types.NodeRuntime, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var rt types.NodeRuntime
		if err := yaml.Unmarshal(data, &rt); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return &rt, nil
	}
}
