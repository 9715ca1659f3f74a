package remote

import (
	"fmt"

	"github.com/fieldpoint/fieldpoint-core/internal/infrastructure/config"
	"github.com/fieldpoint/fieldpoint-core/internal/point"
)

// Groups is the partition of configured points into remote groups.
//
// Like the point registry, it is built once per configuration and replaced
// atomically on reload; in-flight poll tasks complete against the grouping
// they started with.
type Groups struct {
	all     []*Group
	byPoint map[string]*Group
}

// BuildGroups partitions the registry's devices into remote groups.
//
// Devices whose descriptors compare structurally equal share a group unless
// either opted out via allow_duplicate_remotes, in which case the opted-out
// device forms its own group keyed by descriptor plus device topic.
func BuildGroups(reg *point.Registry, drivers map[string]Driver, breakerCfg config.BreakerConfig) (*Groups, error) {
	gs := &Groups{
		byPoint: make(map[string]*Group),
	}
	byKey := make(map[string]*Group)

	for _, dev := range reg.Devices() {
		driver, ok := drivers[dev.Driver.Type]
		if !ok {
			return nil, fmt.Errorf("%w: %q (device %s)", ErrUnknownDriver, dev.Driver.Type, dev.Topic)
		}

		key := DescriptorKey(dev.Driver)
		if dev.AllowDuplicateRemotes {
			key = key + "!" + dev.Topic
		}

		group, ok := byKey[key]
		if !ok {
			group = NewGroup(key, dev.Driver, driver, breakerCfg)
			byKey[key] = group
			gs.all = append(gs.all, group)
		}

		group.Points = append(group.Points, dev.Points...)
		for _, p := range dev.Points {
			gs.byPoint[p.Topic] = group
		}
	}

	return gs, nil
}

// All returns every group.
func (g *Groups) All() []*Group {
	return g.all
}

// ForPoint returns the group owning the given point topic, or nil.
func (g *Groups) ForPoint(topic string) *Group {
	return g.byPoint[point.EquipmentID(topic)]
}

// Len returns the number of groups.
func (g *Groups) Len() int {
	return len(g.all)
}
