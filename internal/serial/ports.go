package serial

import (
	"fmt"
	"strconv"
	"strings"

	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/muurk/farmlink/internal/logging"
)

// USBFilter matches a USB serial adapter by vendor and product ID
type USBFilter struct {
	VID uint16 `yaml:"vid"`
	PID uint16 `yaml:"pid"`
}

func (f USBFilter) String() string {
	return fmt.Sprintf("%04X:%04X", f.VID, f.PID)
}

// MarshalYAML writes the IDs in hex, the way they appear in lsusb and
// device manager. Decoding needs no counterpart: YAML reads 0x2E8A as an int.
func (f USBFilter) MarshalYAML() (interface{}, error) {
	hexInt := func(v uint16) *yaml.Node {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: fmt.Sprintf("0x%04X", v)}
	}
	key := func(k string) *yaml.Node {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}
	}
	return &yaml.Node{
		Kind:    yaml.MappingNode,
		Content: []*yaml.Node{key("vid"), hexInt(f.VID), key("pid"), hexInt(f.PID)},
	}, nil
}

// DefaultFilters are the boards the robot firmware ships on: a Raspberry Pi
// RP2040 and a SparkFun RP2040 carrier.
var DefaultFilters = []USBFilter{
	{VID: 0x2E8A, PID: 0x0005},
	{VID: 0x1B4F, PID: 0x0046},
}

// PortInfo describes a serial port found on the system
type PortInfo struct {
	Name         string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
	Product      string
	Match        bool // VID/PID matched one of the filters
}

// enumerate is swapped out in tests
var enumerate = enumerator.GetDetailedPortsList

// ListPorts returns every serial port on the system, marking those that
// match filters
func ListPorts(filters []USBFilter) ([]PortInfo, error) {
	details, err := enumerate()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		if d == nil {
			continue
		}
		info := PortInfo{
			Name:         d.Name,
			IsUSB:        d.IsUSB,
			VID:          strings.ToUpper(d.VID),
			PID:          strings.ToUpper(d.PID),
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		}
		info.Match = d.IsUSB && matches(info.VID, info.PID, filters)
		ports = append(ports, info)
	}

	logging.Debug("Enumerated serial ports", zap.Int("count", len(ports)))
	return ports, nil
}

// FindPorts returns only the ports matching filters
func FindPorts(filters []USBFilter) ([]PortInfo, error) {
	all, err := ListPorts(filters)
	if err != nil {
		return nil, err
	}
	var found []PortInfo
	for _, p := range all {
		if p.Match {
			found = append(found, p)
		}
	}
	return found, nil
}

// AutoDetect returns the first port matching filters
func AutoDetect(filters []USBFilter) (string, error) {
	found, err := FindPorts(filters)
	if err != nil {
		return "", err
	}
	if len(found) == 0 {
		names := make([]string, len(filters))
		for i, f := range filters {
			names[i] = f.String()
		}
		return "", fmt.Errorf("no robot found (looked for USB IDs %s)", strings.Join(names, ", "))
	}
	if len(found) > 1 {
		logging.Warn("Several robots found, using the first",
			zap.String("port", found[0].Name),
			zap.Int("count", len(found)),
		)
	}
	return found[0].Name, nil
}

func matches(vid, pid string, filters []USBFilter) bool {
	v, err := strconv.ParseUint(vid, 16, 16)
	if err != nil {
		return false
	}
	p, err := strconv.ParseUint(pid, 16, 16)
	if err != nil {
		return false
	}
	for _, f := range filters {
		if uint16(v) == f.VID && uint16(p) == f.PID {
			return true
		}
	}
	return false
}
