package rig

import (
	"fmt"
	"net"
	"sort"
	"sync"
	"time"
)

// Model numbers handled without the native library
const (
	ModelDummy     = 1
	ModelNetRigctl = 2
)

// Parity of a serial line
type Parity string

const (
	ParityNone  Parity = "none"
	ParityEven  Parity = "even"
	ParityOdd   Parity = "odd"
	ParityMark  Parity = "mark"
	ParitySpace Parity = "space"
)

// Handshake is the serial flow control
type Handshake string

const (
	HandshakeNone     Handshake = "none"
	HandshakeHardware Handshake = "hardware"
	HandshakeSoftware Handshake = "software"
)

// ConnectionConfig is consumed once per connect attempt and not modified
// afterwards
type ConnectionConfig struct {
	Model      int
	Port       string
	BaudRate   int
	DataBits   int
	Parity     Parity
	StopBits   int
	Handshake  Handshake
	CIVAddress int

	RefreshInterval time.Duration
	CallTimeout     time.Duration
	FullPoll        bool
	AutoConnect     bool
	AutoPowerOn     bool
}

// IsNetwork reports whether the port is a host:port address
func (c ConnectionConfig) IsNetwork() bool {
	if c.Model == ModelNetRigctl {
		return true
	}
	_, port, err := net.SplitHostPort(c.Port)
	return err == nil && port != ""
}

// PortType is the kind of channel a backend talks over
type PortType int

const (
	PortNone PortType = iota
	PortSerial
	PortNetwork
)

// Factory builds an unopened Rig for a configuration
type Factory func(cfg ConnectionConfig) Rig

// Model describes one supported device model
type Model struct {
	ID           int      `json:"id"`
	Manufacturer string   `json:"manufacturer"`
	Name         string   `json:"name"`
	Port         PortType `json:"port"`
	New          Factory  `json:"-"`
}

var (
	registryMu sync.RWMutex
	registry   = make(map[int]Model)

	// nativeModel resolves models served by the native library. It is nil
	// unless the binary is built with the hamlib tag.
	nativeModel func(id int) (Model, bool)
)

// Register adds a model to the registry, replacing any earlier entry
func Register(m Model) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[m.ID] = m
}

// LookupModel finds the backend for a model number
func LookupModel(id int) (Model, bool) {
	registryMu.RLock()
	m, ok := registry[id]
	registryMu.RUnlock()
	if ok {
		return m, true
	}
	if nativeModel != nil {
		return nativeModel(id)
	}
	return Model{}, false
}

// Models lists the registered models ordered by number
func Models() []Model {
	registryMu.RLock()
	defer registryMu.RUnlock()

	models := make([]Model, 0, len(registry))
	for _, m := range registry {
		models = append(models, m)
	}
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	return models
}

func unknownModelError(id int) error {
	reason := fmt.Sprintf("model %d is not recognized", id)
	if nativeModel == nil && id > ModelNetRigctl {
		reason = fmt.Sprintf("model %d needs native hamlib support (build with -tags hamlib)", id)
	}
	return &ConnectionError{Kind: InvalidModel, Reason: reason}
}

func init() {
	Register(Model{
		ID:           ModelDummy,
		Manufacturer: "Hamlib",
		Name:         "Dummy",
		Port:         PortNone,
		New:          func(cfg ConnectionConfig) Rig { return NewDummy() },
	})
	Register(Model{
		ID:           ModelNetRigctl,
		Manufacturer: "Hamlib",
		Name:         "NET rigctl",
		Port:         PortNetwork,
		New:          func(cfg ConnectionConfig) Rig { return NewNetRigctl(cfg.Port) },
	})
}
