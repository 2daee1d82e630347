package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rileyhilliard/dutctl/internal/dut"
	"github.com/rileyhilliard/dutctl/internal/dut/duttest"
	"github.com/rileyhilliard/dutctl/internal/errors"
	"github.com/rileyhilliard/dutctl/internal/fleet"
	"github.com/rileyhilliard/dutctl/internal/logger"
	"github.com/rileyhilliard/dutctl/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var eve = duttest.Device{Model: "eve", Serial: "NXAB12", HWID: "EVE D2A-A2A"}

func TestListEmpty(t *testing.T) {
	h := newHarness(t)

	out, _, err := h.run(t, "", "dut", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No DUTs registered")

	out, _, err = h.run(t, "", "dut", "list", "--format", "json")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)
}

func TestListAdd(t *testing.T) {
	h := newHarness(t)
	duttest.Add(h.dialer, "192.168.7.2", eve)

	out, errOut, err := h.run(t, "", "dut", "list", "--add", "192.168.7.2")
	require.NoError(t, err)

	assert.Contains(t, errOut, "Checking DutInfo of 192.168.7.2:22...")
	assert.Equal(t, "Added: eve_NXAB12 {\"host\":\"192.168.7.2\",\"port\":22}\n", out)
	assert.Equal(t, []string{"eve_NXAB12"}, h.registered(t))
}

func TestListAddUnreachable(t *testing.T) {
	h := newHarness(t)

	_, _, err := h.run(t, "", "dut", "list", "--add", "192.168.7.9")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConnectivity), "got %s", errors.CodeOf(err))
	assert.Empty(t, h.registered(t))
}

func TestListShowsEntries(t *testing.T) {
	h := newHarness(t)
	h.register(t, "eve_NXAB12", "192.168.7.2")
	h.register(t, "kled_QQ4", "192.168.7.3")

	out, _, err := h.run(t, "", "dut", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "eve_NXAB12")
	assert.Contains(t, out, "192.168.7.3:22")

	out, _, err = h.run(t, "", "dut", "list", "--ids")
	require.NoError(t, err)
	assert.Equal(t, "eve_NXAB12\nkled_QQ4\n", out)

	out, _, err = h.run(t, "", "dut", "list", "--format", "json")
	require.NoError(t, err)
	var entries []registry.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "eve_NXAB12", entries[0].ID)
	assert.Equal(t, "192.168.7.2", entries[0].Descriptor.Host)
}

func TestListRemove(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "equals form", args: []string{"--remove=eve_NXAB12"}},
		{name: "separate value", args: []string{"--remove", "eve_NXAB12"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.register(t, "eve_NXAB12", "192.168.7.2")
			h.register(t, "kled_QQ4", "192.168.7.3")

			out, _, err := h.run(t, "", append([]string{"dut", "list"}, tt.args...)...)
			require.NoError(t, err)
			assert.Equal(t, "Removed: eve_NXAB12\n", out)
			assert.Equal(t, []string{"kled_QQ4"}, h.registered(t))
		})
	}
}

func TestListRemoveUnknown(t *testing.T) {
	h := newHarness(t)
	h.register(t, "eve_NXAB12", "192.168.7.2")

	out, stderr, err := h.run(t, "", "dut", "list", "--remove", "kled_QQ4")
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Contains(t, stderr, "kled_QQ4 wasn't registered")
	assert.Equal(t, []string{"eve_NXAB12"}, h.registered(t))
}

func TestListRemovePicks(t *testing.T) {
	h := newHarness(t)
	h.register(t, "eve_NXAB12", "192.168.7.2")
	h.register(t, "kled_QQ4", "192.168.7.3")

	_, _, err := h.run(t, "", "dut", "list", "--remove")
	require.Error(t, err, "no terminal, so no prompt")
	assert.True(t, errors.IsCode(err, errors.ErrConfig))

	var offered []string
	interactive = func() bool { return true }
	selectDUT = func(title string, ids []string) (string, error) {
		offered = ids
		return "kled_QQ4", nil
	}

	out, _, err := h.run(t, "", "dut", "list", "--remove")
	require.NoError(t, err)
	assert.Equal(t, []string{"eve_NXAB12", "kled_QQ4"}, offered)
	assert.Equal(t, "Removed: kled_QQ4\n", out)
	assert.Equal(t, []string{"eve_NXAB12"}, h.registered(t))
}

func TestListClear(t *testing.T) {
	h := newHarness(t)
	h.register(t, "eve_NXAB12", "192.168.7.2")
	h.register(t, "kled_QQ4", "192.168.7.3")

	_, _, err := h.run(t, "", "dut", "list", "--clear")
	require.Error(t, err, "refuses without --yes off a terminal")
	assert.Len(t, h.registered(t), 2)

	interactive = func() bool { return true }
	confirm = func(string) (bool, error) { return false, nil }
	_, _, err = h.run(t, "", "dut", "list", "--clear")
	require.NoError(t, err)
	assert.Len(t, h.registered(t), 2, "declined")

	out, _, err := h.run(t, "", "dut", "list", "--clear", "--yes")
	require.NoError(t, err)
	assert.Equal(t, "Cleared 2 DUTs\n", out)
	assert.Empty(t, h.registered(t))
}

type statusRow struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Found   string `json:"found"`
	Removed bool   `json:"removed"`
}

// fleetFixture registers three DUTs: one where it should be, one gone
// and one whose address another DUT took.
func fleetFixture(t *testing.T) *harness {
	h := newHarness(t)
	h.register(t, "eve_NXAB12", "10.0.0.1")
	h.register(t, "kled_QQ4", "10.0.0.2")
	h.register(t, "nami_ZZ9", "10.0.0.3")
	duttest.Add(h.dialer, "10.0.0.1", eve)
	duttest.Add(h.dialer, "10.0.0.3", duttest.Device{Model: "atlas", Serial: "AT1"})
	return h
}

func TestListStatus(t *testing.T) {
	h := fleetFixture(t)

	out, errOut, err := h.run(t, "", "dut", "list", "--status", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, errOut, "Checking status of 3 DUTs. It will take a minute...")

	var rows []statusRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 3)
	assert.Equal(t, statusRow{ID: "eve_NXAB12", Status: "Online", Found: "eve_NXAB12"}, rows[0])
	assert.Equal(t, "Offline", rows[1].Status)
	assert.Equal(t, statusRow{ID: "nami_ZZ9", Status: "AddressReused", Found: "atlas_AT1"}, rows[2])

	assert.Len(t, h.registered(t), 3, "status never changes the registry")
}

func TestListUpdate(t *testing.T) {
	h := fleetFixture(t)

	out, _, err := h.run(t, "", "dut", "list", "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "AddressReused")
	assert.Contains(t, out, "now atlas_AT1")
	assert.Contains(t, out, "\nFollowing DUTs are removed: nami_ZZ9\n")

	assert.Equal(t, []string{"eve_NXAB12", "kled_QQ4"}, h.registered(t), "offline entries are kept")
}

// cancelOnRemove cancels the run once the first entry is removed.
type cancelOnRemove struct {
	*registry.Store
	cancel context.CancelFunc
}

func (s cancelOnRemove) Remove(id string) (bool, error) {
	defer s.cancel()
	return s.Store.Remove(id)
}

func TestListUpdateInterruptedReportsRemovals(t *testing.T) {
	h := fleetFixture(t)
	store, err := registry.Open(h.registryPath)
	require.NoError(t, err)
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var stdout, stderr bytes.Buffer
	a := &app{log: logger.Noop(), stdout: &stdout, stderr: &stderr}
	mgr := &fleet.Manager{
		Store:    cancelOnRemove{Store: store, cancel: cancel},
		Resolver: dut.NewResolver(duttest.Dialer(h.dialer), logger.Noop()),
		Timeout:  time.Second,
		Log:      logger.Noop(),
	}

	err = reconcile(ctx, a, store, mgr, fleet.ModeUpdate, FormatTable)
	require.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, stderr.String(), "Already removed: nami_ZZ9")
	assert.NotContains(t, stdout.String(), "Following DUTs are removed")
	assert.Equal(t, []string{"eve_NXAB12", "kled_QQ4"}, h.registered(t))
}

func TestListFlagErrors(t *testing.T) {
	h := newHarness(t)

	_, _, err := h.run(t, "", "dut", "list", "--ids", "--status")
	assert.Error(t, err)

	_, _, err = h.run(t, "", "dut", "list", "--format", "xml")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))

	_, _, err = h.run(t, "", "dut", "list", "stray")
	assert.Error(t, err)
}
