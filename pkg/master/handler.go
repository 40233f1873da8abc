package master

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sanyaade-teachings/ganeti/pkg/events"
	"github.com/sanyaade-teachings/ganeti/pkg/jqueue"
	"github.com/sanyaade-teachings/ganeti/pkg/log"
	"github.com/sanyaade-teachings/ganeti/pkg/luxi"
	"github.com/sanyaade-teachings/ganeti/pkg/query"
	"github.com/sanyaade-teachings/ganeti/pkg/types"
)

// Handle implements luxi.Handler
func (m *Master) Handle(ctx context.Context, op luxi.Op) (interface{}, error) {
	switch op := op.(type) {
	case luxi.Query:
		cfg, err := m.store.Snapshot()
		if err != nil {
			return nil, err
		}
		return m.executor.Query(ctx, cfg, m.cfg.LiveData, query.Query{Kind: op.What, Fields: op.Fields, Filter: op.Filter})

	case luxi.QueryFields:
		return m.executor.QueryFields(op.What, op.Fields)

	case luxi.QueryNodes:
		return m.oldStyleQuery(ctx, types.ItemTypeNode, op.Names, op.Fields)
	case luxi.QueryGroups:
		return m.oldStyleQuery(ctx, types.ItemTypeGroup, op.Names, op.Fields)
	case luxi.QueryInstances:
		return m.oldStyleQuery(ctx, types.ItemTypeInstance, op.Names, op.Fields)

	case luxi.QueryJobs:
		return m.queue.Query(op.JobIDs, op.Fields)

	case luxi.QueryExports:
		return m.queryExports(ctx, op.Nodes)

	case luxi.QueryConfigValues:
		return m.queryConfigValues(op.Fields)

	case luxi.QueryClusterInfo:
		return m.queryClusterInfo()

	case luxi.QueryTags:
		return m.queryTags(op.Kind, op.Name)

	case luxi.SubmitJob:
		return m.queue.Submit(op.Ops)

	case luxi.SubmitManyJobs:
		results := m.queue.SubmitMany(op.Jobs)
		out := make([][]interface{}, len(results))
		for i, r := range results {
			if r.Err != nil {
				out[i] = []interface{}{false, r.Err.Error()}
			} else {
				out[i] = []interface{}{true, r.JobID}
			}
		}
		return out, nil

	case luxi.WaitForJobChange:
		return m.waitForJobChange(ctx, op)

	case luxi.CancelJob:
		ok, msg := m.queue.Cancel(op.JobID)
		return []interface{}{ok, msg}, nil

	case luxi.ArchiveJob:
		return m.queue.Archive(op.JobID)

	case luxi.AutoArchiveJobs:
		age := time.Duration(op.Age) * time.Second
		if op.Age < 0 {
			age = -1
		}
		archived, left, err := m.queue.AutoArchive(age, time.Duration(op.Timeout)*time.Second)
		if err != nil {
			return nil, err
		}
		return []int{archived, left}, nil

	case luxi.SetDrainFlag:
		if err := m.updateCluster(func(c *types.Cluster) { c.DrainFlag = op.Flag }); err != nil {
			return nil, err
		}
		m.queue.SetDrained(op.Flag)
		return true, nil

	case luxi.SetWatcherPause:
		return m.setWatcherPause(op.Until)
	}

	return nil, fmt.Errorf("unsupported operation %s", op.Method())
}

func (m *Master) waitForJobChange(ctx context.Context, op luxi.WaitForJobChange) (interface{}, error) {
	timeout := time.Duration(op.Timeout) * time.Second
	if timeout <= 0 || timeout > m.cfg.WaitTimeout {
		timeout = m.cfg.WaitTimeout
	}

	change, err := m.queue.WaitForChange(ctx, op.JobID, op.Fields, op.PrevJobInfo, op.PrevLogSerial, timeout)
	if errors.Is(err, jqueue.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if change.Unchanged {
		return luxi.JobUnchanged, nil
	}
	logEntries := change.Log
	if logEntries == nil {
		logEntries = []types.LogEntry{}
	}
	return []interface{}{change.Info, logEntries}, nil
}

// maxWatcherPause is the latest pause end accepted, 9999-12-31T23:59:59Z
const maxWatcherPause = 253402300799

func (m *Master) setWatcherPause(until *float64) (interface{}, error) {
	var pause *time.Time
	if until != nil {
		if math.IsNaN(*until) || math.Abs(*until) > maxWatcherPause {
			return nil, fmt.Errorf("watcher pause timestamp %v out of range", *until)
		}
		sec, frac := math.Modf(*until)
		t := time.Unix(int64(sec), int64(frac*1e9))
		if t.After(time.Now()) {
			pause = &t
		}
	}
	if err := m.updateCluster(func(c *types.Cluster) { c.WatcherPause = pause }); err != nil {
		return nil, err
	}

	m.broker.Publish(&events.Event{Type: events.EventWatcherPause, Message: fmt.Sprint(until)})
	logger := log.WithComponent("master")
	if pause == nil {
		logger.Info().Msg("Watcher unpaused")
		return nil, nil
	}
	logger.Info().Time("until", *pause).Msg("Watcher paused")
	return *until, nil
}
