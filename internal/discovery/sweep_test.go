package discovery

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/rileyhilliard/dutctl/internal/logger"
	"github.com/stretchr/testify/assert"
)

func TestSweeper_Filter(t *testing.T) {
	alive := map[string]bool{"10.0.0.1": true, "10.0.0.3": true}
	s := NewSweeper(time.Second, 4, logger.Noop())
	s.ping = func(ctx context.Context, ip string, timeout time.Duration) (bool, error) {
		return alive[ip], nil
	}

	got := s.Filter(context.Background(), []string{"10.0.0.1", "10.0.0.2", "fe80::1%eth0", "10.0.0.3", "dut-host"})
	assert.Equal(t, []string{"10.0.0.1", "fe80::1%eth0", "10.0.0.3", "dut-host"}, got)
}

func TestSweeper_NoPermissionKeepsEverything(t *testing.T) {
	log := logger.NewBufferLogger()
	s := NewSweeper(time.Second, 4, log)
	s.ping = func(ctx context.Context, ip string, timeout time.Duration) (bool, error) {
		return false, stderrors.New("socket: permission denied")
	}

	in := []string{"10.0.0.1", "10.0.0.2"}
	assert.Equal(t, in, s.Filter(context.Background(), in))
	assert.True(t, log.HasLevel(logger.LevelWarn))
}
