package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rl1809/inventory-sync/internal/config"
	"github.com/rl1809/inventory-sync/internal/core/domain"
	"github.com/rl1809/inventory-sync/internal/core/service"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "inventory-sync", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()

	for _, name := range []string{"serve", "feed", "advise"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	feedCmd, _, err := cmd.Find([]string{"feed"})
	require.NoError(t, err)
	assert.NotNil(t, feedCmd.Flags().Lookup("from"))
	assert.NotNil(t, feedCmd.Flags().Lookup("page-size"))

	adviseCmd, _, err := cmd.Find([]string{"advise"})
	require.NoError(t, err)
	assert.NotNil(t, adviseCmd.Flags().Lookup("threshold"))
}

func TestInvalidFormat(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"advise", "--format", "xml"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()
	assert.ErrorContains(t, err, "invalid format")
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(WrapExitError(ExitCommandError, "bad config", errors.New("boom"))))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
}

func newMemoryApp(t *testing.T) *App {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.Backend = "memory"

	app, err := NewApp(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })
	return app
}

func seed(t *testing.T, inv *service.InventoryService, adjustments int) {
	t.Helper()
	ctx := context.Background()
	art, err := inv.Create(ctx, "Widget", 10)
	require.NoError(t, err)

	version := art.Version
	for i := 0; i < adjustments; i++ {
		res, err := inv.Adjust(ctx, service.AdjustRequest{Sku: art.Sku, Delta: -1, ExpectedVersion: version, OperationID: uuid.New()})
		require.NoError(t, err)
		version = res.Article.Version
	}
}

func TestRunFeed_JSONLines(t *testing.T) {
	app := newMemoryApp(t)
	seed(t, app.Inventory, 5)

	var out bytes.Buffer
	err := runFeed(context.Background(), app.Inventory, &FeedOptions{
		RootOptions: &RootOptions{Format: "json"},
		From:        1,
		PageSize:    2,
	}, &out)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	var first domain.ChangeLogEntry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, int64(2), first.Position)
}

func TestRunFeed_TextWithLimit(t *testing.T) {
	app := newMemoryApp(t)
	seed(t, app.Inventory, 3)

	var out bytes.Buffer
	err := runFeed(context.Background(), app.Inventory, &FeedOptions{
		RootOptions: &RootOptions{Format: "text"},
		Limit:       2,
	}, &out)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "1\t"))
}

func TestRunAdvise(t *testing.T) {
	app := newMemoryApp(t)
	seed(t, app.Inventory, 2)

	var out bytes.Buffer
	require.NoError(t, runAdvise(context.Background(), app.Inventory, service.NewAdvisor(15), "text", &out))
	assert.Contains(t, out.String(), "restock sku 1")

	out.Reset()
	require.NoError(t, runAdvise(context.Background(), app.Inventory, service.NewAdvisor(5), "text", &out))
	assert.Contains(t, out.String(), "no article below threshold 5")

	out.Reset()
	require.NoError(t, runAdvise(context.Background(), app.Inventory, service.NewAdvisor(15), "json", &out))
	var recs []service.Recommendation
	require.NoError(t, json.Unmarshal(out.Bytes(), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, 2, recs[0].RecentOperations)
}

func TestNewApp_Publisher(t *testing.T) {
	app := newMemoryApp(t)
	pub := app.Publisher()
	require.NotNil(t, pub)
	assert.NoError(t, pub.Close())
}
