// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package directory

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ManuGH/cylinderd/internal/domain/cylinder/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const sampleCustomers = `customers:
  - id: CUST-1
    name: Acme Welding
    kind: business
  - id: CUST-2
    name: J. Doe
    kind: individual
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestFileDirectory_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "customers.yaml")
	writeFile(t, path, sampleCustomers)

	d, err := OpenFileDirectory(path)
	require.NoError(t, err)
	defer func() { _ = d.Close() }()

	list, err := d.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, model.CustomerIndividual, list[1].Kind)
}

func TestFileDirectory_MissingFileIsEmpty(t *testing.T) {
	d, err := OpenFileDirectory(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)

	list, err := d.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestFileDirectory_RejectsBadFiles(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"unknown-field.yaml": "customers:\n  - id: C1\n    phone: 123\n",
		"duplicate.yaml":     "customers:\n  - id: C1\n  - id: C1\n",
		"sentinel.yaml":      "customers:\n  - id: FACTORY\n",
		"broken.yaml":        "customers: [\n",
	}
	for name, content := range cases {
		path := filepath.Join(dir, name)
		writeFile(t, path, content)
		_, err := OpenFileDirectory(path)
		assert.Error(t, err, name)
	}
}

func TestFileDirectory_PutPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "customers.yaml")
	ctx := context.Background()

	d, err := OpenFileDirectory(path)
	require.NoError(t, err)
	require.NoError(t, d.Put(ctx, model.Customer{ID: "CUST-9", Name: "Nine"}))
	require.NoError(t, d.Put(ctx, model.Customer{ID: "CUST-1", Name: "One"}))
	require.NoError(t, d.Put(ctx, model.Customer{ID: "CUST-9", Name: "Nine Ltd"}))

	reopened, err := OpenFileDirectory(path)
	require.NoError(t, err)
	list, err := reopened.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "CUST-1", list[0].ID)
	assert.Equal(t, "Nine Ltd", list[1].Name)
}

func TestFileDirectory_WatchReloads(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	path := filepath.Join(t.TempDir(), "customers.yaml")
	writeFile(t, path, sampleCustomers)

	d, err := OpenFileDirectory(path)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, d.Watch(ctx))

	writeFile(t, path, sampleCustomers+"  - id: CUST-3\n    name: Three\n")
	require.Eventually(t, func() bool {
		_, err := d.Get(context.Background(), "CUST-3")
		return err == nil
	}, 5*time.Second, 50*time.Millisecond)

	// A broken edit keeps the previous set.
	writeFile(t, path, "customers: [\n")
	time.Sleep(reloadDebounce + 300*time.Millisecond)
	_, err = d.Get(context.Background(), "CUST-3")
	assert.NoError(t, err)

	require.NoError(t, d.Close())
}
