package remote

import (
	"sort"
	"strings"

	"github.com/fieldpoint/fieldpoint-core/internal/infrastructure/config"
)

// DescriptorKey canonicalises a connection descriptor into a stable string.
// Two descriptors compare structurally equal iff their keys are equal, which
// is the partition criterion for remote deduplication. Params are emitted in
// sorted order so map iteration order never leaks into the key.
func DescriptorKey(desc config.DriverConfig) string {
	if len(desc.Params) == 0 {
		return desc.Type
	}

	keys := make([]string, 0, len(desc.Params))
	for k := range desc.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(desc.Type)
	for _, k := range keys {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(desc.Params[k])
	}
	return b.String()
}
