package app

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"nft-alerts/internal/config"
	"nft-alerts/internal/market"
	"nft-alerts/internal/state"
	"nft-alerts/internal/storage"
)

func newTestApp() *App {
	cfg := &config.Config{Chain: "mainnet"}
	cfg.State.Driver = "memory"
	return NewApp(cfg, zerolog.Nop())
}

func alertsAt(n int) []storage.AlertRecord {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]storage.AlertRecord, n)
	for i := range out {
		out[i] = storage.AlertRecord{
			ID:        int64(i + 1),
			Chain:     "mainnet",
			Stream:    "floor",
			EventID:   "e" + string(rune('a'+i%26)),
			Price:     decimal.NewFromInt(int64(i + 1)),
			Channel:   "main",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
	}
	return out
}

func TestDownsampleAlertsKeepsEnds(t *testing.T) {
	alerts := alertsAt(100)
	got := downsampleAlerts(alerts, 10)
	if len(got) != 10 {
		t.Fatalf("expected 10 points, got %d", len(got))
	}
	if got[0].ID != 1 || got[9].ID != 100 {
		t.Fatalf("first and last alerts should survive, got %d and %d", got[0].ID, got[9].ID)
	}
	if same := downsampleAlerts(alerts[:5], 10); len(same) != 5 {
		t.Fatalf("short input should be returned as is, got %d", len(same))
	}
	if one := downsampleAlerts(alerts, 1); len(one) != 1 || one[0].ID != 100 {
		t.Fatalf("single point should be the newest alert, got %+v", one)
	}
}

func TestWriteAlertTable(t *testing.T) {
	var buf bytes.Buffer
	if err := writeAlertTable(&buf, nil); err != nil {
		t.Fatalf("writeAlertTable failed: %v", err)
	}
	if !strings.Contains(buf.String(), "no alerts found") {
		t.Fatalf("empty history should say so, got %q", buf.String())
	}

	buf.Reset()
	alerts := alertsAt(1)
	alerts[0].EventID = "line\nbreak"
	if err := writeAlertTable(&buf, alerts); err != nil {
		t.Fatalf("writeAlertTable failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "line break") {
		t.Fatalf("event id should be flattened to one line, got %q", out)
	}
	if !strings.Contains(out, "2024-01-01T00:00:00Z") {
		t.Fatalf("timestamp missing from %q", out)
	}
}

func TestWriteStateTable(t *testing.T) {
	ctx := context.Background()
	states := state.NewStore(state.NewMemoryBackend(), "mainnet")
	if err := states.SetCursor(ctx, market.StreamSales, "sale-9"); err != nil {
		t.Fatalf("SetCursor failed: %v", err)
	}
	if err := states.ArmCooldown(ctx, market.StreamFloor, time.Minute); err != nil {
		t.Fatalf("ArmCooldown failed: %v", err)
	}
	if err := states.SetLastValue(ctx, market.StreamFloor, decimal.RequireFromString("1.25")); err != nil {
		t.Fatalf("SetLastValue failed: %v", err)
	}

	var buf bytes.Buffer
	if err := writeStateTable(ctx, &buf, states); err != nil {
		t.Fatalf("writeStateTable failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"sale-9", "active", "1.25", "listings"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
}

func TestWriteAlertsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "alerts.csv")
	if err := writeAlertsCSV(path, alertsAt(3)); err != nil {
		t.Fatalf("writeAlertsCSV failed: %v", err)
	}
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected header plus 3 rows, got %d", len(rows))
	}
	if rows[1][4] != "1.0000" {
		t.Fatalf("price should be fixed to 4 places, got %q", rows[1][4])
	}
}

func TestNewNotifierRequiresChannel(t *testing.T) {
	a := newTestApp()
	if _, err := a.newNotifier(); err == nil {
		t.Fatal("no enabled channel should be an error")
	}
	a.Config.Alerting.Discord.Enabled = true
	a.Config.Alerting.Discord.BotToken = "token"
	if _, err := a.newNotifier(); err != nil {
		t.Fatalf("discord notifier should build: %v", err)
	}
}

func TestOpenStateDrivers(t *testing.T) {
	a := newTestApp()
	backend, closer, err := a.openState(nil)
	if err != nil || backend == nil {
		t.Fatalf("memory driver should open: %v", err)
	}
	closer()

	a.Config.State.Driver = "postgres"
	if _, _, err := a.openState(nil); err == nil {
		t.Fatal("postgres driver without a database should fail")
	}

	a.Config.State.Driver = "etcd"
	if _, _, err := a.openState(nil); err == nil {
		t.Fatal("unknown driver should fail")
	}
}

func TestCommandsValidateInput(t *testing.T) {
	a := newTestApp()
	ctx := context.Background()

	if err := a.Reset(ctx, "volume"); err == nil {
		t.Fatal("unknown stream should be rejected")
	}
	if err := a.Cursors(ctx); err == nil {
		t.Fatal("memory driver has nothing to inspect")
	}
	if err := a.SimulateAlert(ctx, "floor"); err == nil {
		t.Fatal("stream without a channel should be rejected")
	}
	if err := a.Prune(ctx, PruneOptions{}); err == nil {
		t.Fatal("missing cutoff should be rejected")
	}
	if err := a.Prune(ctx, PruneOptions{Before: time.Now().Add(time.Hour)}); err == nil {
		t.Fatal("future cutoff should be rejected")
	}
	if err := a.Export(ctx, ExportOptions{Stream: "floor"}); err == nil {
		t.Fatal("export without an output should be rejected")
	}
	if err := a.Export(ctx, ExportOptions{Stream: "volume", CSVPath: "x.csv"}); err == nil {
		t.Fatal("export of unknown stream should be rejected")
	}
	if err := a.Show(ctx, ShowOptions{Limit: 5}); err == nil {
		t.Fatal("show without a database should fail")
	}
}

type fakeStateLister struct {
	prefix  string
	entries []storage.StateEntry
}

func (f *fakeStateLister) ListState(_ context.Context, prefix string) ([]storage.StateEntry, error) {
	f.prefix = prefix
	return f.entries, nil
}

func TestWriteRawState(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	past, future := now.Add(-time.Minute), now.Add(time.Minute)
	lister := &fakeStateLister{entries: []storage.StateEntry{
		{Key: "nftalerts:mainnet:bid:cooldown", Value: "true", ExpiresAt: &past},
		{Key: "nftalerts:mainnet:floor:cooldown", Value: "true", ExpiresAt: &future},
		{Key: "nftalerts:mainnet:sales:cursor", Value: "sale-1"},
	}}

	var buf bytes.Buffer
	if err := writeRawState(context.Background(), &buf, lister, state.KeyPrefix("mainnet"), now); err != nil {
		t.Fatalf("writeRawState failed: %v", err)
	}
	if lister.prefix != "nftalerts:mainnet:" {
		t.Fatalf("rows should be listed by chain prefix, got %q", lister.prefix)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header plus 3 rows, got %q", buf.String())
	}
	if !strings.Contains(lines[1], "(expired)") {
		t.Fatalf("past expiry should be flagged, got %q", lines[1])
	}
	if strings.Contains(lines[2], "(expired)") || !strings.Contains(lines[2], "2024-01-01T12:01:00Z") {
		t.Fatalf("live cooldown row unexpected: %q", lines[2])
	}
	if !strings.Contains(lines[3], "never") {
		t.Fatalf("cursor row should never expire, got %q", lines[3])
	}

	buf.Reset()
	if err := writeRawState(context.Background(), &buf, &fakeStateLister{}, "p", now); err != nil {
		t.Fatalf("writeRawState failed: %v", err)
	}
	if !strings.Contains(buf.String(), "no state rows") {
		t.Fatalf("empty table should say so, got %q", buf.String())
	}
}
