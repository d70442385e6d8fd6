package registry

import (
	"strings"
	"time"
)

// CurrentStatus is the actual state of an integration.
type CurrentStatus string

const (
	StatusStopped CurrentStatus = "stopped"
	StatusStarted CurrentStatus = "started"
)

func ParseCurrentStatus(v string) CurrentStatus {
	switch CurrentStatus(strings.ToLower(strings.TrimSpace(v))) {
	case StatusStarted:
		return StatusStarted
	default:
		return StatusStopped
	}
}

// RequestedStatus is the state an administrator asked for.
type RequestedStatus string

const (
	RequestNone     RequestedStatus = ""
	RequestStarting RequestedStatus = "starting"
	RequestStopping RequestedStatus = "stopping"
)

func ParseRequestedStatus(v string) RequestedStatus {
	switch RequestedStatus(strings.ToLower(strings.TrimSpace(v))) {
	case RequestStarting:
		return RequestStarting
	case RequestStopping:
		return RequestStopping
	default:
		return RequestNone
	}
}

// Migration-source markers stored on instances that were not created by an administrator.
const (
	SourceAdmin         = ""
	SourceEnvMigration  = "env_migration"
	SourceAutostart     = "autostart"
	autostartInstanceID = "autostart:"
)

// ConnectorInstance is the persisted desired state of one integration.
type ConnectorInstance struct {
	ID              string
	FactoryKey      string
	CurrentStatus   CurrentStatus
	RequestedStatus RequestedStatus
	Configuration   []byte
	CatalogID       string
	Source          string
	UpdatedAt       time.Time
}

// CatalogConnector describes a connector type in the catalog.
type CatalogConnector struct {
	ID           string
	FactoryKey   string
	Title        string
	Slug         string
	Description  string
	Icon         string
	ConfigSchema []ConfigField
}

// ConfigField describes one key of a connector's typed configuration.
type ConfigField struct {
	Key         string `json:"key"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Secret      bool   `json:"secret"`
	Description string `json:"description,omitempty"`
}
