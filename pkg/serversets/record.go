package serversets

// ZKRecord is the content of one member znode.
type ZKRecord interface {
	Marshal() ([]byte, error)
	// Endpoint returns the endpoint as host:port string
	Endpoint() string
	// IsAlive returns true if the member should be discovered.
	IsAlive() bool
}

// ZKFmt decides where the members of a service live and how they are encoded.
type ZKFmt interface {
	Create(host string, port int) ZKRecord
	Unmarshal([]byte) (ZKRecord, error)
	// Path returns the directory of the members.
	Path() string
	// Prefix returns the name prefix of the member znodes.
	Prefix() string
}
