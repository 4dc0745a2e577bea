package main

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/procureflow/internal/app"
	"github.com/odyssey-erp/procureflow/internal/sheets"
)

func TestSnapshotCacheMemoryWarnsRefreshIsLocal(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	snapshots, closeFn, err := snapshotCache(context.Background(), &app.Config{SheetsCache: "memory", SheetsCacheTTL: time.Minute}, logger)
	require.NoError(t, err)
	defer closeFn()
	require.IsType(t, &sheets.MemoryCache{}, snapshots)
	require.Contains(t, buf.String(), "refresh tasks only warm the worker cache")
}

func TestSnapshotCacheRedisIsShared(t *testing.T) {
	mr := miniredis.RunT(t)
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	snapshots, closeFn, err := snapshotCache(context.Background(), &app.Config{
		SheetsCache:    "redis",
		SheetsCacheTTL: time.Minute,
		RedisAddr:      mr.Addr(),
	}, logger)
	require.NoError(t, err)
	defer closeFn()
	require.IsType(t, &sheets.RedisCache{}, snapshots)
	require.NotContains(t, buf.String(), "process local")
}
