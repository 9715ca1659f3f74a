package mqtt

// System topic layout. Point data is published directly on the device
// topic hierarchy ("devices/..."), so only service-level topics live under
// the fieldpoint prefix.
const (
	systemPrefix = "fieldpoint/system"
)

// Topics builds the service-level topic paths.
type Topics struct{}

// SystemStatus is the retained online/offline status topic, also used as
// the Last Will target.
func (Topics) SystemStatus() string {
	return systemPrefix + "/status"
}
