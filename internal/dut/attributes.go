package dut

import (
	"sort"
)

// Canonical attribute names.
const (
	AttrTimestamp = "timestamp"
	AttrDutID     = "dut_id"
	AttrHWID      = "hwid"
	AttrRelease   = "release"
	AttrModel     = "model"
	AttrSerial    = "serial"
	AttrMAC       = "mac"
)

// CanonicalAttributes are resolved for every discovered DUT.
var CanonicalAttributes = []string{
	AttrTimestamp,
	AttrDutID,
	AttrHWID,
	AttrRelease,
	AttrModel,
	AttrSerial,
	AttrMAC,
}

// Attributes maps attribute names to values. Membership is the contract;
// order is not.
type Attributes map[string]string

// ID returns the dut_id attribute.
func (a Attributes) ID() string {
	return a[AttrDutID]
}

// Keys returns the attribute names, sorted.
func (a Attributes) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// lsbValue reads one key out of /etc/lsb-release.
func lsbValue(key string) string {
	return "sed -n 's/^" + key + "=//p' /etc/lsb-release"
}

// arcProp reads one property out of the ARC image's build.prop.
func arcProp(key string) string {
	return "sed -n 's/^" + key + "=//p' /usr/share/arc/properties/build.prop"
}

// queries holds one remote command per attribute. timestamp is local and
// has no entry.
var queries = map[string]string{
	AttrDutID:     `echo "$(cros_config / name)_$(vpd -g serial_number)"`,
	AttrHWID:      "crossystem hwid",
	AttrRelease:   lsbValue("CHROMEOS_RELEASE_BUILDER_PATH"),
	AttrModel:     "cros_config / name",
	AttrSerial:    "vpd -g serial_number",
	AttrMAC:       `cat /sys/class/net/"$(ip route show default | awk '{print $5; exit}')"/address`,
	"board":       lsbValue("CHROMEOS_RELEASE_BOARD"),
	"version":     lsbValue("CHROMEOS_RELEASE_VERSION"),
	"arc_version": lsbValue("CHROMEOS_ARC_VERSION"),
	"arc_device":  arcProp("ro.product.device"),
	"arc_image":   arcProp("ro.build.type"),
	"arch":        "uname -m",
	"kernel":      "uname -r",
	"uptime":      "cut -d' ' -f1 /proc/uptime",
}

// KnownAttributes lists every attribute the resolver can query, sorted.
func KnownAttributes() []string {
	names := []string{AttrTimestamp}
	for name := range queries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsKnownAttribute reports whether name can be resolved.
func IsKnownAttribute(name string) bool {
	if name == AttrTimestamp {
		return true
	}
	_, ok := queries[name]
	return ok
}

// QueryCommand returns the remote command that resolves name.
func QueryCommand(name string) (string, bool) {
	cmd, ok := queries[name]
	return cmd, ok
}
