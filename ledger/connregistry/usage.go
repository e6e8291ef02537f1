package connregistry

// Usage restricts which programs should accept a given connector.

// In Go, "plugins" are linked at build time: a connector registers itself via
// init(), and is enabled in a binary by importing the connector package
// (often as a blank import).
type Usage uint8

const (
	// UsageCLI indicates the connector should be available in CLI programs
	// (e.g. xdao-caspub).
	UsageCLI Usage = 1 << iota
	// UsageDaemon indicates the connector should be available in long-running
	// daemons (e.g. xdao-ledgerd).
	UsageDaemon
)

func (u Usage) allows(want Usage) bool { return u&want != 0 }
