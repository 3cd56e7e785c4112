package persistence

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestOpen_Drivers(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	cases := []struct {
		name string
		opts Options
	}{
		{"memory", Options{Driver: DriverMemory}},
		{"memory cached", Options{Driver: DriverMemory, CacheSize: 8}},
		{"sqlite", Options{Driver: DriverSQLite, DSN: filepath.Join(t.TempDir(), "opsflow.db")}},
		{"redis addr", Options{Driver: DriverRedis, DSN: mr.Addr(), Prefix: "open:"}},
		{"redis url", Options{Driver: DriverRedis, DSN: "redis://" + mr.Addr() + "/0"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := Open(ctx, tc.opts)
			require.NoError(t, err)
			t.Cleanup(func() {
				require.NoError(t, p.Close())
			})

			wf := sampleWorkflow("")
			require.NoError(t, p.Workflows.SaveWorkflow(ctx, wf))
			got, err := p.Workflows.GetWorkflow(ctx, wf.ID)
			require.NoError(t, err)
			require.Equal(t, wf.Nodes, got.Nodes)
		})
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Options{Driver: "cassandra"})
	require.Error(t, err)
}
