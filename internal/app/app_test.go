package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	grpcapi "github.com/arkilian/segavg/internal/api/grpc"
	httpapi "github.com/arkilian/segavg/internal/api/http"
	"github.com/arkilian/segavg/internal/config"
	"github.com/arkilian/segavg/internal/fixture"
	"github.com/arkilian/segavg/internal/storage"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Workers = 4
	cfg.HTTP.Addr = "127.0.0.1:0"
	cfg.GRPC.Addr = "127.0.0.1:0"
	return cfg
}

func dataset() fixture.Dataset {
	return fixture.Random(7, fixture.Sizes{Customers: 200, MaxOrders: 4, MaxLines: 5})
}

func startApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	a, err := New(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.Stop(ctx)
	})
	return a
}

func TestApp_ServesHTTPAndGRPC(t *testing.T) {
	cfg := testConfig(t)
	d := dataset()
	require.NoError(t, d.Write(cfg.DataDir))

	a := startApp(t, cfg)
	require.NotEmpty(t, a.HTTPAddr())
	require.NotEmpty(t, a.GRPCAddr())

	count, sum, known := d.Expected("AUTOMOBILE", cfg.ScaleFactor)
	require.True(t, known)
	require.NotZero(t, count)
	want := sum / count

	resp, err := http.Get(fmt.Sprintf("http://%s/v1/segments/AUTOMOBILE/average", a.HTTPAddr()))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body httpapi.AverageResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, want, body.ScaledAverage)
	assert.Equal(t, count, body.Count)

	conn, err := grpc.NewClient(a.GRPCAddr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	client := grpcapi.NewClient(conn)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got, err := client.Average(ctx, "AUTOMOBILE")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = client.Average(ctx, "MACHINERY")
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestApp_ExposesMetrics(t *testing.T) {
	cfg := testConfig(t)
	cfg.GRPC.Enabled = false
	require.NoError(t, dataset().Write(cfg.DataDir))

	a := startApp(t, cfg)
	assert.Empty(t, a.GRPCAddr())

	resp, err := http.Get(fmt.Sprintf("http://%s/v1/segments/BUILDING/average", a.HTTPAddr()))
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(fmt.Sprintf("http://%s/metrics", a.HTTPAddr()))
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(raw)
	assert.True(t, strings.Contains(text, "segavg_ingest_records_total"), "missing ingest counter")
	assert.True(t, strings.Contains(text, "segavg_query_total"), "missing query counter")
}

func TestApp_StagesFromLocalStorage(t *testing.T) {
	src := t.TempDir()
	d := dataset()
	require.NoError(t, d.Write(src))

	remote := t.TempDir()
	store, err := storage.NewLocalStorage(remote)
	require.NoError(t, err)
	_, err = storage.Publish(context.Background(), store, "tpch", src)
	require.NoError(t, err)

	cfg := testConfig(t)
	cfg.GRPC.Enabled = false
	cfg.Storage = config.StorageConfig{Type: config.StorageLocal, Path: remote, Prefix: "tpch"}

	a := startApp(t, cfg)

	count, sum, known := d.Expected("HOUSEHOLD", cfg.ScaleFactor)
	require.True(t, known)
	require.NotZero(t, count)

	res, err := a.Engine().AverageQuantityForSegment("HOUSEHOLD")
	require.NoError(t, err)
	v, ok := res.Value()
	require.True(t, ok)
	assert.Equal(t, sum/count, v)
	assert.Equal(t, filepath.Join(cfg.DataDir, "customer.tbl"), a.Engine().Paths().Customer)
}

func TestApp_StartFailsWithoutTables(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(cfg, nil)
	require.NoError(t, err)
	assert.Error(t, a.Start(context.Background()))
}

func TestApp_StartTwice(t *testing.T) {
	cfg := testConfig(t)
	cfg.GRPC.Enabled = false
	require.NoError(t, dataset().Write(cfg.DataDir))

	a := startApp(t, cfg)
	assert.Error(t, a.Start(context.Background()))
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Workers = -1
	_, err := New(cfg, nil)
	assert.Error(t, err)
}

func TestNewObjectStorage(t *testing.T) {
	store, err := NewObjectStorage(context.Background(), config.StorageConfig{Type: config.StorageNone})
	require.NoError(t, err)
	assert.Nil(t, store)

	store, err = NewObjectStorage(context.Background(), config.StorageConfig{Type: config.StorageLocal, Path: t.TempDir()})
	require.NoError(t, err)
	assert.NotNil(t, store)

	_, err = NewObjectStorage(context.Background(), config.StorageConfig{Type: "ftp"})
	assert.Error(t, err)
}
