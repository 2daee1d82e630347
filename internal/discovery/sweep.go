package discovery

import (
	"context"
	"net"
	"runtime"
	"strings"
	"time"

	probing "github.com/prometheus-community/pro-bing"
	"github.com/rileyhilliard/dutctl/internal/logger"
	"golang.org/x/sync/errgroup"
)

// pingFunc reports whether ip answered an echo request within timeout.
type pingFunc func(ctx context.Context, ip string, timeout time.Duration) (bool, error)

// Sweeper drops IPv4 candidates that don't answer ICMP. IPv6 and
// hostname candidates pass through untouched.
type Sweeper struct {
	Timeout     time.Duration
	Concurrency int
	Log         logger.Logger

	ping pingFunc
}

// NewSweeper creates a Sweeper using unprivileged ICMP where the OS allows.
func NewSweeper(timeout time.Duration, concurrency int, log logger.Logger) *Sweeper {
	if log == nil {
		log = logger.Noop()
	}
	if concurrency <= 0 {
		concurrency = 64
	}
	return &Sweeper{Timeout: timeout, Concurrency: concurrency, Log: log, ping: pingHost}
}

// Filter returns the candidates worth probing over SSH, in input order.
// If no ping could be sent at all (typically missing ICMP permission) the
// sweep is skipped and every candidate is kept.
func (s *Sweeper) Filter(ctx context.Context, candidates []string) []string {
	keep := make([]bool, len(candidates))
	failed := make([]bool, len(candidates))
	var v4 int

	g := new(errgroup.Group)
	g.SetLimit(s.Concurrency)
	for i, c := range candidates {
		ip := net.ParseIP(c)
		if ip == nil || ip.To4() == nil || strings.Contains(c, ":") {
			keep[i] = true
			continue
		}
		v4++
		g.Go(func() error {
			alive, err := s.ping(ctx, c, s.Timeout)
			if err != nil {
				failed[i] = true
				s.Log.Debug("ping %s: %v", c, err)
			}
			keep[i] = alive
			return nil
		})
	}
	_ = g.Wait()

	var nFailed int
	for _, f := range failed {
		if f {
			nFailed++
		}
	}
	if v4 > 0 && nFailed == v4 {
		s.Log.Warn("ping sweep unavailable (no ICMP permission?), probing all %d candidates", len(candidates))
		return candidates
	}

	out := make([]string, 0, len(candidates))
	for i, c := range candidates {
		if keep[i] {
			out = append(out, c)
		}
	}
	s.Log.Debug("ping sweep kept %d of %d candidates", len(out), len(candidates))
	return out
}

func pingHost(ctx context.Context, ip string, timeout time.Duration) (bool, error) {
	pinger, err := probing.NewPinger(ip)
	if err != nil {
		return false, err
	}
	pinger.Count = 1
	pinger.Timeout = timeout
	pinger.SetPrivileged(runtime.GOOS == "windows")

	done := make(chan error, 1)
	go func() { done <- pinger.Run() }()

	select {
	case err := <-done:
		if err != nil {
			return false, err
		}
	case <-ctx.Done():
		pinger.Stop()
		<-done
		return false, nil
	}
	return pinger.Statistics().PacketsRecv > 0, nil
}
