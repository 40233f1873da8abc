package main

import (
	"sync"

	"github.com/sanyaade-teachings/ganeti/pkg/daemon"
)

// watchDataFile calls changed whenever path changes. Data
// files are usually replaced rather than edited, so the watch is
// re-armed after every replacement.
func watchDataFile(path string, changed func()) (*daemon.FileWatcher, error) {
	var (
		mu sync.Mutex
		w  *daemon.FileWatcher
	)
	fw, err := daemon.NewFileWatcher(path, func(modified bool) error {
		if !modified {
			mu.Lock()
			cur := w
			mu.Unlock()
			if cur != nil {
				if err := cur.Enable(); err != nil {
					return err
				}
			}
		}
		changed()
		return nil
	})
	if err != nil {
		return nil, err
	}

	mu.Lock()
	w = fw
	mu.Unlock()
	return fw, nil
}
