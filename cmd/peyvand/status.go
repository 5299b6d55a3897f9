package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/4xmen/peyvand/internal/models"
	"github.com/4xmen/peyvand/internal/store"
	"github.com/4xmen/peyvand/internal/store/backend"
	"github.com/4xmen/peyvand/pkg/config"
)

type appStatus struct {
	GeneratedAt       time.Time
	Environment       string
	Port              string
	ConfiguredBackend string
	Backend           string
	DatabasePath      string
	Users             int64
	Messages          int64
	UnreadMessages    int64
	CallLogs          int64
	Friendships       int64
	PendingRequests   int64
	PushSubscriptions int64
	LatestMessageAt   string
	DBSize            int64
	DBWALSize         int64
	DBSHMSize         int64
	MetricsReady      bool
	StoreWarning      string
	StorageWarnings   []string
}

type statusOptions struct {
	JSON bool
}

func parseStatusArgs(args []string) (statusOptions, error) {
	opts := statusOptions{}
	for _, arg := range args {
		switch arg {
		case "--json", "-j":
			opts.JSON = true
		default:
			return opts, fmt.Errorf("unknown status flag: %s", arg)
		}
	}
	return opts, nil
}

func runStatus(cfg *config.Config, out io.Writer, args []string) error {
	opts, err := parseStatusArgs(args)
	if err != nil {
		return err
	}

	ctx := context.Background()
	st := backend.Open(ctx, cfg, zap.NewNop())
	defer st.Close(ctx)

	status := collectStatus(ctx, cfg, st)
	if opts.JSON {
		return printStatusJSON(out, status)
	}
	printStatus(out, status)
	return nil
}

// configuredBackend names the backend cfg asks for, in the order
// backend.Open tries them.
func configuredBackend(cfg *config.Config) string {
	switch {
	case cfg.DatabaseURL != "":
		return "postgres"
	case cfg.DatabasePath != "":
		return "sqlite"
	case cfg.MongoURL != "":
		return "mongo"
	}
	return "memory"
}

func collectStatus(ctx context.Context, cfg *config.Config, st store.Store) appStatus {
	status := appStatus{
		GeneratedAt:       time.Now(),
		Environment:       cfg.Environment,
		Port:              cfg.Port,
		ConfiguredBackend: configuredBackend(cfg),
		Backend:           st.Backend(),
		DatabasePath:      cfg.DatabasePath,
	}

	if status.Backend == "sqlite" {
		if size, err := fileSize(cfg.DatabasePath); err == nil {
			status.DBSize = size
		} else {
			status.StorageWarnings = append(status.StorageWarnings, fmt.Sprintf("database file: %v", err))
		}
		if size, err := fileSize(cfg.DatabasePath + "-wal"); err == nil {
			status.DBWALSize = size
		}
		if size, err := fileSize(cfg.DatabasePath + "-shm"); err == nil {
			status.DBSHMSize = size
		}
	}

	if status.Backend != status.ConfiguredBackend {
		status.StoreWarning = fmt.Sprintf("%s store unavailable", status.ConfiguredBackend)
		return status
	}

	counts := []struct {
		dst    *int64
		coll   string
		filter store.Filter
	}{
		{&status.Users, store.Users, store.Match{}},
		{&status.Messages, store.Messages, store.Match{}},
		{&status.UnreadMessages, store.Messages, store.Where(store.Eq("read", false))},
		{&status.CallLogs, store.Messages, store.Where(store.Eq("type", models.MessageTypeCallLog))},
		{&status.Friendships, store.Friends, store.Where(store.Eq("status", models.FriendAccepted))},
		{&status.PendingRequests, store.Friends, store.Where(store.Eq("status", models.FriendPending))},
		{&status.PushSubscriptions, store.PushSubscriptions, store.Where(store.Eq("revoked_at", nil))},
	}
	for _, c := range counts {
		n, err := countDocuments(ctx, st.Collection(c.coll), c.filter)
		if err != nil {
			status.StoreWarning = fmt.Sprintf("could not read store stats: %v", err)
			return status
		}
		*c.dst = n
	}

	latest, err := st.Collection(store.Messages).Find(ctx, store.Match{}).
		Sort("timestamp", store.Descending).
		ToList(ctx, 1)
	if err != nil {
		status.StoreWarning = fmt.Sprintf("could not read store stats: %v", err)
		return status
	}
	if len(latest) > 0 {
		status.LatestMessageAt = latest[0].String("timestamp")
	}

	status.MetricsReady = true
	return status
}

func countDocuments(ctx context.Context, c store.Collection, filter store.Filter) (int64, error) {
	cur := c.Find(ctx, filter)
	defer cur.Close(ctx)

	var n int64
	for cur.Next(ctx) {
		n++
	}
	return n, cur.Err()
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%s is a directory", path)
	}
	return info.Size(), nil
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func formatTimestamp(value string) string {
	if value == "" {
		return "n/a"
	}
	return value
}

func printStatus(out io.Writer, status appStatus) {
	fmt.Fprintln(out, "Peyvand Status")
	fmt.Fprintf(out, "Generated at: %s\n", status.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(out, "Environment : %s\n", status.Environment)
	fmt.Fprintf(out, "Port        : %s\n", status.Port)
	fmt.Fprintf(out, "Backend     : %s\n", status.ConfiguredBackend)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Data")
	if status.MetricsReady {
		fmt.Fprintf(out, "  Users              : %d\n", status.Users)
		fmt.Fprintf(out, "  Messages           : %d\n", status.Messages)
		fmt.Fprintf(out, "  Unread messages    : %d\n", status.UnreadMessages)
		fmt.Fprintf(out, "  Call logs          : %d\n", status.CallLogs)
		fmt.Fprintf(out, "  Friendships        : %d\n", status.Friendships)
		fmt.Fprintf(out, "  Pending requests   : %d\n", status.PendingRequests)
		fmt.Fprintf(out, "  Push subscriptions : %d\n", status.PushSubscriptions)
		fmt.Fprintf(out, "  Latest message at  : %s\n", formatTimestamp(status.LatestMessageAt))
	} else {
		fmt.Fprintln(out, "  Store metrics      : n/a")
	}

	if status.Backend == "sqlite" {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Storage")
		fmt.Fprintf(out, "  Database      : %s\n", status.DatabasePath)
		fmt.Fprintf(out, "  DB file       : %s\n", formatBytes(status.DBSize))
		fmt.Fprintf(out, "  DB WAL file   : %s\n", formatBytes(status.DBWALSize))
		fmt.Fprintf(out, "  DB SHM file   : %s\n", formatBytes(status.DBSHMSize))
		fmt.Fprintf(out, "  DB footprint  : %s\n", formatBytes(status.DBSize+status.DBWALSize+status.DBSHMSize))
	}

	if status.StoreWarning != "" {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "Warning: %s\n", status.StoreWarning)
	}

	if len(status.StorageWarnings) > 0 {
		fmt.Fprintln(out)
		for _, warning := range status.StorageWarnings {
			fmt.Fprintf(out, "Warning: %s\n", warning)
		}
	}
}

func printStatusJSON(out io.Writer, status appStatus) error {
	payload := map[string]any{
		"generated_at":       status.GeneratedAt.Format(time.RFC3339),
		"environment":        status.Environment,
		"port":               status.Port,
		"configured_backend": status.ConfiguredBackend,
		"backend":            status.Backend,
		"metrics_ready":      status.MetricsReady,
		"metrics": map[string]any{
			"users":              status.Users,
			"messages":           status.Messages,
			"unread_messages":    status.UnreadMessages,
			"call_logs":          status.CallLogs,
			"friendships":        status.Friendships,
			"pending_requests":   status.PendingRequests,
			"push_subscriptions": status.PushSubscriptions,
			"latest_message_at":  formatTimestamp(status.LatestMessageAt),
		},
		"warnings": map[string]any{
			"store":   status.StoreWarning,
			"storage": status.StorageWarnings,
		},
	}
	if status.Backend == "sqlite" {
		payload["storage"] = map[string]any{
			"database_path":      status.DatabasePath,
			"db_file_bytes":      status.DBSize,
			"db_wal_bytes":       status.DBWALSize,
			"db_shm_bytes":       status.DBSHMSize,
			"db_footprint_bytes": status.DBSize + status.DBWALSize + status.DBSHMSize,
			"db_footprint_hum":   formatBytes(status.DBSize + status.DBWALSize + status.DBSHMSize),
		}
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(payload)
}
