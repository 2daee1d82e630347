package fleet

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rileyhilliard/dutctl/internal/dut"
	"github.com/rileyhilliard/dutctl/internal/dut/duttest"
	"github.com/rileyhilliard/dutctl/internal/errors"
	"github.com/rileyhilliard/dutctl/internal/logger"
	"github.com/rileyhilliard/dutctl/internal/registry"
	sshtest "github.com/rileyhilliard/dutctl/pkg/sshutil/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, md *sshtest.MockDialer) (*Manager, *registry.Store) {
	t.Helper()
	store, err := registry.Open(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return &Manager{
		Store:    store,
		Resolver: dut.NewResolver(duttest.Dialer(md), logger.Noop()),
		Timeout:  200 * time.Millisecond,
		Log:      logger.Noop(),
	}, store
}

// seedFleet registers three DUTs: eve is still where we left it, nami's
// address now hosts atlas, and kled is gone.
func seedFleet(t *testing.T, store *registry.Store, md *sshtest.MockDialer) {
	t.Helper()
	require.NoError(t, store.Set("eve_SN1", dut.Descriptor{Host: "10.0.0.1", Port: 22}))
	require.NoError(t, store.Set("nami_SN2", dut.Descriptor{Host: "10.0.0.2", Port: 22}))
	require.NoError(t, store.Set("kled_SN3", dut.Descriptor{Host: "10.0.0.3", Port: 22}))

	duttest.Add(md, "10.0.0.1", duttest.Device{Model: "eve", Serial: "SN1", HWID: "EVE"})
	duttest.Add(md, "10.0.0.2", duttest.Device{Model: "atlas", Serial: "SN9", HWID: "ATLAS"})
	md.SetDelay("10.0.0.3", time.Minute)
}

func TestReconcile_Status(t *testing.T) {
	md := sshtest.NewMockDialer()
	m, store := newTestManager(t, md)
	seedFleet(t, store, md)

	reports, err := m.Reconcile(context.Background(), ModeStatus)
	require.NoError(t, err)
	require.Len(t, reports, 3)

	assert.Equal(t, "eve_SN1", reports[0].ID)
	assert.Equal(t, Online, reports[0].Status)

	assert.Equal(t, "kled_SN3", reports[1].ID)
	assert.Equal(t, Offline, reports[1].Status)
	assert.Equal(t, "timed out", reports[1].Reason)

	assert.Equal(t, "nami_SN2", reports[2].ID)
	assert.Equal(t, AddressReused, reports[2].Status)
	assert.Equal(t, "atlas_SN9", reports[2].Found)
	assert.False(t, reports[2].Removed)

	ids, err := store.IDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"eve_SN1", "kled_SN3", "nami_SN2"}, ids, "status mode never mutates")
}

func TestReconcile_Update(t *testing.T) {
	md := sshtest.NewMockDialer()
	m, store := newTestManager(t, md)
	seedFleet(t, store, md)

	reports, err := m.Reconcile(context.Background(), ModeUpdate)
	require.NoError(t, err)
	assert.Equal(t, []string{"nami_SN2"}, Removed(reports))

	ids, err := store.IDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"eve_SN1", "kled_SN3"}, ids, "offline entries survive")
}

func TestReconcile_OnlyQueriesID(t *testing.T) {
	md := sshtest.NewMockDialer()
	m, store := newTestManager(t, md)
	seedFleet(t, store, md)

	_, err := m.Reconcile(context.Background(), ModeStatus)
	require.NoError(t, err)

	cmd, _ := dut.QueryCommand(dut.AttrDutID)
	client, err := md.DialHost(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, []string{cmd}, client.(*sshtest.MockClient).Commands())
}

func TestReconcile_BoundedByTimeout(t *testing.T) {
	md := sshtest.NewMockDialer()
	m, store := newTestManager(t, md)
	for i, h := range []string{"10.0.1.1", "10.0.1.2", "10.0.1.3", "10.0.1.4"} {
		require.NoError(t, store.Set("gone_"+string(rune('a'+i)), dut.Descriptor{Host: h, Port: 22}))
		md.SetDelay(h, time.Minute)
	}

	start := time.Now()
	reports, err := m.Reconcile(context.Background(), ModeStatus)
	require.NoError(t, err)
	assert.Len(t, reports, 4)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestReconcile_RegistryError(t *testing.T) {
	var store *registry.Store
	m := &Manager{Store: store, Resolver: dut.NewResolver(duttest.Dialer(sshtest.NewMockDialer()), nil)}

	_, err := m.Reconcile(context.Background(), ModeStatus)
	assert.True(t, errors.IsCode(err, errors.ErrRegistry))
}

func TestAdd_RoundTrip(t *testing.T) {
	md := sshtest.NewMockDialer()
	m, store := newTestManager(t, md)
	duttest.Add(md, "192.168.0.7", duttest.Device{Model: "eve", Serial: "SN1", HWID: "EVE"})

	d, err := dut.ParseDescriptor("192.168.0.7:22", dut.Descriptor{IdentityFile: "/keys/testing_rsa"})
	require.NoError(t, err)

	id, err := m.Add(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, "eve_SN1", id)

	entries, err := store.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].ID)
	assert.Equal(t, d, entries[0].Descriptor)
}

func TestAdd_Unreachable(t *testing.T) {
	md := sshtest.NewMockDialer()
	m, store := newTestManager(t, md)

	_, err := m.Add(context.Background(), dut.Descriptor{Host: "10.9.9.9", Port: 22})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConnectivity))
	assert.Contains(t, err.Error(), "10.9.9.9:22")

	entries, err := store.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStatusText(t *testing.T) {
	assert.Equal(t, "Online", Online.String())
	assert.Equal(t, "Offline", Offline.String())
	assert.Equal(t, "AddressReused", AddressReused.String())

	b, err := AddressReused.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "AddressReused", string(b))
}
