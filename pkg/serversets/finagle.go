package serversets

import (
	"encoding/json"
	"net"
	"strconv"
)

var (
	// BaseDirectory is the namespace every service directory lives in.
	// This path must begin with '/'
	BaseDirectory = "/aurora"

	// MemberPrefix is prefix for the sequential ephemeral member nodes.
	// member_ is used by Finagle server sets.
	MemberPrefix = "member_"
)

// BaseZnodePath allows for a custom directory structure.
// Default is `BaseDirectory + "/" + role + "/" + environment + "/" + service`.
var BaseZnodePath = func(role, environment, service string) string {
	return BaseDirectory + "/" + role + "/" + environment + "/" + service
}

// FinagleFmt provides Finagle style path/data formats.
type FinagleFmt struct {
	role        string
	environment string
	service     string
}

func NewFinagleFmt(role, environment, service string) FinagleFmt {
	return FinagleFmt{
		role:        role,
		environment: environment,
		service:     service,
	}
}

// Create creates an alive endpoint record from host and port.
func (FinagleFmt) Create(host string, port int) ZKRecord {
	return &FinagleRecord{
		ServiceEndpoint:     endpoint{host, port},
		AdditionalEndpoints: make(map[string]endpoint),
		Shard:               0,
		Status:              StatusAlive,
	}
}

// Unmarshal decodes a record from JSON.
func (FinagleFmt) Unmarshal(data []byte) (ZKRecord, error) {
	f := &FinagleRecord{}
	err := json.Unmarshal(data, f)
	return f, err
}

func (f FinagleFmt) Path() string {
	return BaseZnodePath(f.role, f.environment, f.service)
}

func (f FinagleFmt) Prefix() string {
	return MemberPrefix
}

// FinagleRecord is structure of the data in each member znode.
// It mimics finagle serverset structure.
type FinagleRecord struct {
	ServiceEndpoint     endpoint            `json:"serviceEndpoint"`
	AdditionalEndpoints map[string]endpoint `json:"additionalEndpoints"`
	Shard               int64               `json:"shard"`
	Status              string              `json:"status"`
}

type endpoint struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Marshal encodes the record as JSON.
func (f *FinagleRecord) Marshal() ([]byte, error) {
	return json.Marshal(f)
}

// Endpoint returns host:port.
func (f *FinagleRecord) Endpoint() string {
	return net.JoinHostPort(f.ServiceEndpoint.Host, strconv.Itoa(f.ServiceEndpoint.Port))
}

func (f *FinagleRecord) IsAlive() bool {
	return f.Status == StatusAlive
}

// Member statuses of a Finagle server set. Only alive members are discovered.
const (
	StatusDead     = "DEAD"
	StatusStarting = "STARTING"
	StatusAlive    = "ALIVE"
	StatusStopping = "STOPPING"
	StatusStopped  = "STOPPED"
	StatusWarning  = "WARNING"
	StatusUnknown  = "UNKNOWN"
)
