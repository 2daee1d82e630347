package discovery

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/rileyhilliard/dutctl/internal/errors"
	"github.com/rileyhilliard/dutctl/internal/exec"
	"github.com/rileyhilliard/dutctl/internal/logger"
	"github.com/rileyhilliard/dutctl/internal/util"
)

// DefaultRouteFile is the Linux kernel routing table.
const DefaultRouteFile = "/proc/net/route"

// rtfUp is RTF_UP in /proc/net/route flags.
const rtfUp = 0x1

// ReadList reads one candidate per line. Blank lines are skipped and
// repeats dropped.
func ReadList(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig, "Can't read the target list", "")
	}
	return util.Dedupe(lines), nil
}

// OpenList reads the target list at path, or stdin when path is "-".
func OpenList(path string, stdin io.Reader) ([]string, error) {
	if path == "-" {
		return ReadList(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Can't open target list %s", path),
			"Pass a file with one host per line, or - for stdin")
	}
	defer f.Close()
	return ReadList(f)
}

// Interface is a local interface chosen for a scan.
type Interface struct {
	Name string
	// Addr is the interface's own IPv4 address and subnet mask.
	Addr *net.IPNet
}

// Scanner enumerates local scan candidates.
type Scanner struct {
	// RouteFile is read to find the default route's interface.
	RouteFile string
	// MaxHosts caps the IPv4 subnet size.
	MaxHosts int
	// Neighbours returns `ip -6 neigh show dev IFACE` output.
	Neighbours func(ctx context.Context, iface string) ([]byte, error)
	// Addrs returns an interface's addresses.
	Addrs func(iface string) ([]net.Addr, error)
	// Interfaces lists local interfaces for the fallback pick.
	Interfaces func() ([]net.Interface, error)

	Log logger.Logger
}

// NewScanner creates a Scanner reading the live system.
func NewScanner(maxHosts int, log logger.Logger) *Scanner {
	if log == nil {
		log = logger.Noop()
	}
	return &Scanner{
		RouteFile:  DefaultRouteFile,
		MaxHosts:   maxHosts,
		Neighbours: ipNeighbours,
		Addrs:      interfaceAddrs,
		Interfaces: net.Interfaces,
		Log:        log,
	}
}

// Candidates picks the interface (name, else the default route's, else the
// first up non-loopback one with IPv4), then lists every other address in
// its IPv4 subnet plus its IPv6 link-local neighbours.
func (s *Scanner) Candidates(ctx context.Context, name string) ([]string, Interface, error) {
	iface, err := s.SelectInterface(name)
	if err != nil {
		return nil, Interface{}, err
	}

	hosts, truncated, err := ExpandSubnet(iface.Addr, s.MaxHosts)
	if err != nil {
		return nil, iface, err
	}
	if truncated {
		s.Log.Warn("%s has more than %d hosts, scanning only the first %d. Raise discovery.max_subnet_hosts or pass a --target-list",
			iface.Addr, s.MaxHosts, s.MaxHosts)
	}

	if s.Neighbours != nil {
		out, err := s.Neighbours(ctx, iface.Name)
		if err != nil {
			s.Log.Debug("ip -6 neigh on %s: %v", iface.Name, err)
		} else {
			hosts = append(hosts, ParseNeighbours(out, iface.Name)...)
		}
	}

	return util.Dedupe(hosts), iface, nil
}

// SelectInterface resolves the scan interface and its IPv4 network.
func (s *Scanner) SelectInterface(name string) (Interface, error) {
	if name == "" {
		name = defaultRouteInterface(s.RouteFile)
	}
	if name == "" {
		name = s.firstUsableInterface()
	}
	if name == "" {
		return Interface{}, errors.New(errors.ErrConfig,
			"Couldn't pick a network interface to scan",
			"Name one with --interface")
	}

	addrs, err := s.Addrs(name)
	if err != nil {
		return Interface{}, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Can't read addresses of interface %s", name),
			"Check the name with: ip -br addr")
	}
	for _, a := range addrs {
		if ipnet, ok := a.(*net.IPNet); ok && ipnet.IP.To4() != nil {
			return Interface{Name: name, Addr: &net.IPNet{IP: ipnet.IP.To4(), Mask: ipnet.Mask}}, nil
		}
	}
	return Interface{}, errors.New(errors.ErrConfig,
		fmt.Sprintf("Interface %s has no IPv4 address", name),
		"Pick another with --interface, or pass a --target-list")
}

func (s *Scanner) firstUsableInterface() string {
	if s.Interfaces == nil {
		return ""
	}
	ifaces, err := s.Interfaces()
	if err != nil {
		return ""
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := s.Addrs(iface.Name)
		if err != nil {
			continue
		}
		for _, a := range addrs {
			if ipnet, ok := a.(*net.IPNet); ok && ipnet.IP.To4() != nil {
				return iface.Name
			}
		}
	}
	return ""
}

// defaultRouteInterface returns the interface of the first up default
// route in a /proc/net/route style file, or "".
// Format: Iface Destination Gateway Flags RefCnt Use Metric Mask ...
func defaultRouteInterface(path string) string {
	content, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Scan() // header
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 {
			continue
		}
		if fields[1] != "00000000" {
			continue
		}
		flags, err := strconv.ParseUint(fields[3], 16, 32)
		if err != nil || flags&rtfUp == 0 {
			continue
		}
		return fields[0]
	}
	return ""
}

// ExpandSubnet lists the host addresses of n, skipping the network and
// broadcast addresses and n.IP itself. At most maxHosts addresses are
// returned, lowest first; truncated reports whether any were left out.
func ExpandSubnet(n *net.IPNet, maxHosts int) (hosts []string, truncated bool, err error) {
	base := n.IP.Mask(n.Mask).To4()
	if base == nil {
		return nil, false, errors.New(errors.ErrConfig,
			fmt.Sprintf("%s isn't an IPv4 network", n), "")
	}
	ones, bits := n.Mask.Size()
	hostBits := bits - ones

	total := uint64(1) << hostBits
	first, last := uint64(1), total-2
	// /31 and /32 carry no network/broadcast pair.
	if hostBits <= 1 {
		first, last = 0, total-1
	}

	start := binary.BigEndian.Uint32(base)
	for i := first; i <= last; i++ {
		ip := make(net.IP, 4)
		binary.BigEndian.PutUint32(ip, start+uint32(i))
		if ip.Equal(n.IP) {
			continue
		}
		if maxHosts > 0 && len(hosts) == maxHosts {
			return hosts, true, nil
		}
		hosts = append(hosts, ip.String())
	}
	return hosts, false, nil
}

// ParseNeighbours extracts link-local IPv6 neighbours from
// `ip -6 neigh show dev IFACE` output, zoned to iface.
// Format: fe80::1 lladdr aa:bb:cc:dd:ee:ff router REACHABLE
func ParseNeighbours(out []byte, iface string) []string {
	var hosts []string
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		state := fields[len(fields)-1]
		if state == "FAILED" || state == "INCOMPLETE" {
			continue
		}
		ip := net.ParseIP(fields[0])
		if ip == nil || ip.To4() != nil || !ip.IsLinkLocalUnicast() {
			continue
		}
		hosts = append(hosts, ip.String()+"%"+iface)
	}
	return hosts
}

func ipNeighbours(ctx context.Context, iface string) ([]byte, error) {
	return exec.Output(ctx, "ip", "-6", "neigh", "show", "dev", iface)
}

func interfaceAddrs(name string) ([]net.Addr, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil, err
	}
	return iface.Addrs()
}
