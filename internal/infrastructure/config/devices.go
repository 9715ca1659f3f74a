package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DeviceConfig describes one remote device and its points.
// Each device lives in its own YAML file under devices_dir.
type DeviceConfig struct {
	// Topic is the device's hierarchical path, e.g.
	// "devices/Campus/Building1/AHU1". Points live one segment below it.
	Topic string `yaml:"topic"`

	// Driver holds the connection descriptor used to reach the remote.
	Driver DriverConfig `yaml:"driver"`

	// PollingInterval is the device-level default interval in seconds.
	// Zero means the agent default applies.
	PollingInterval float64 `yaml:"polling_interval"`

	// StaleTimeout is the device-level default stale timeout in seconds.
	// Zero means stale_multiplier x interval applies.
	StaleTimeout float64 `yaml:"stale_timeout"`

	// AllowDuplicateRemotes opts this device out of remote deduplication.
	// Nil inherits the agent-level setting.
	AllowDuplicateRemotes *bool `yaml:"allow_duplicate_remotes"`

	// PublishAll enables the periodic all-publish for this device.
	// Nil inherits the agent-level setting. PublishDepthFirstAll is a legacy
	// alias accepted for compatibility with older device files.
	PublishAll           *bool `yaml:"publish_all_depth"`
	PublishDepthFirstAll *bool `yaml:"publish_depth_first_all"`

	// AllPublishInterval overrides the all-publish period in seconds.
	AllPublishInterval float64 `yaml:"all_publish_interval"`

	Points []PointConfig `yaml:"points"`
}

// DriverConfig is the connection descriptor for a remote.
// Params are driver-specific (host, port, unit id, ...) and form the
// structural-equality key used for remote deduplication.
type DriverConfig struct {
	Type   string            `yaml:"type"`
	Params map[string]string `yaml:"params"`
}

// PointConfig describes one point on a device.
type PointConfig struct {
	// Name is the point's final topic segment.
	Name string `yaml:"name"`

	// Address is the driver-level address of the point. Defaults to Name.
	Address string `yaml:"address"`

	// PollingInterval overrides the device interval, in seconds.
	PollingInterval float64 `yaml:"polling_interval"`

	// StaleTimeout overrides the stale timeout, in seconds.
	StaleTimeout float64 `yaml:"stale_timeout"`

	// Writable marks the point as a settable value.
	Writable bool `yaml:"writable"`

	// Default is the value a revert restores, if the driver honours it.
	Default any `yaml:"default"`

	// Units is informational metadata.
	Units string `yaml:"units"`

	// Active points are polled; inactive points stay resolvable but are
	// skipped by the scheduler. Nil means active.
	Active *bool `yaml:"active"`
}

// AllPublishEnabled resolves the all-publish flag for this device, honouring
// the legacy publish_depth_first_all alias. The newer key wins if both are set.
func (d *DeviceConfig) AllPublishEnabled(agentDefault bool) bool {
	if d.PublishAll != nil {
		return *d.PublishAll
	}
	if d.PublishDepthFirstAll != nil {
		return *d.PublishDepthFirstAll
	}
	return agentDefault
}

// DuplicatesAllowed resolves the duplicate-remote opt-out for this device.
func (d *DeviceConfig) DuplicatesAllowed(agentDefault bool) bool {
	if d.AllowDuplicateRemotes != nil {
		return *d.AllowDuplicateRemotes
	}
	return agentDefault
}

// Validate checks a device definition for structural problems.
func (d *DeviceConfig) Validate() error {
	var errs []string

	if d.Topic == "" {
		errs = append(errs, "topic is required")
	}
	if strings.Contains(d.Topic, "//") || strings.HasSuffix(d.Topic, "/") {
		errs = append(errs, "topic must not contain empty segments")
	}
	if d.Driver.Type == "" {
		errs = append(errs, "driver.type is required")
	}
	if len(d.Points) == 0 {
		errs = append(errs, "at least one point is required")
	}
	seen := make(map[string]struct{}, len(d.Points))
	for _, p := range d.Points {
		if p.Name == "" {
			errs = append(errs, "point name is required")
			continue
		}
		if strings.Contains(p.Name, "/") {
			errs = append(errs, fmt.Sprintf("point %q: name must be a single segment", p.Name))
		}
		if _, dup := seen[p.Name]; dup {
			errs = append(errs, fmt.Sprintf("point %q: duplicate name", p.Name))
		}
		seen[p.Name] = struct{}{}
	}

	if len(errs) > 0 {
		return fmt.Errorf("device %q: %s", d.Topic, strings.Join(errs, "; "))
	}
	return nil
}

// LoadDevices reads every *.yaml / *.yml file in dir as a DeviceConfig.
// Files are processed in lexical order so load errors are deterministic.
func LoadDevices(dir string) ([]DeviceConfig, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading devices dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext == ".yaml" || ext == ".yml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	devices := make([]DeviceConfig, 0, len(names))
	topics := make(map[string]string, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading device file %s: %w", path, err)
		}
		var dev DeviceConfig
		if err := yaml.Unmarshal(data, &dev); err != nil {
			return nil, fmt.Errorf("parsing device file %s: %w", path, err)
		}
		if err := dev.Validate(); err != nil {
			return nil, fmt.Errorf("device file %s: %w", path, err)
		}
		if prev, ok := topics[dev.Topic]; ok {
			return nil, fmt.Errorf("device file %s: topic %q already defined in %s", path, dev.Topic, prev)
		}
		topics[dev.Topic] = name
		devices = append(devices, dev)
	}

	return devices, nil
}
