// Package client provides the log stream and REST clients for a maubot
// management API. Types mirror the server wire format without depending on
// the server.
package client

import (
	"encoding/json"
	"time"

	"maunium.net/go/mautrix/id"
)

// BasePath is the management API prefix shared by REST and the log stream.
const BasePath = "/_matrix/maubot/v1"

// Close codes the log endpoint uses to explain why it hung up.
const (
	CloseInvalidToken   = 4000 // access token invalid or not provided
	CloseServiceRestart = 1012 // server is restarting
)

// LogRecord is one normalized log entry. Records are not mutated after
// delivery; the subscriber owns them.
type LogRecord struct {
	ID       int       `json:"id,omitempty"`
	Name     string    `json:"name"`
	NameLink string    `json:"nameLink,omitempty"`
	Time     time.Time `json:"time"`
	Level    string    `json:"levelname,omitempty"`
	Message  string    `json:"msg,omitempty"`
	Module   string    `json:"module,omitempty"`
	FuncName string    `json:"funcName,omitempty"`
	Line     int       `json:"lineno,omitempty"`
	Path     string    `json:"pathname,omitempty"`

	// Extra holds every field the normalizer does not know about.
	Extra map[string]json.RawMessage `json:"-"`
}

// Status is a snapshot of the log stream connection flags.
// Authenticated implies Connected.
type Status struct {
	Connected     bool
	Authenticated bool
}

// --- REST entities ---

// Instance is a plugin instance bound to a client.
type Instance struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Enabled     bool      `json:"enabled"`
	Started     bool      `json:"started"`
	PrimaryUser id.UserID `json:"primary_user"`
	Config      string    `json:"config,omitempty"`
	Database    bool      `json:"database,omitempty"`
}

// Client is a Matrix account the server runs bots as.
type Client struct {
	ID          id.UserID           `json:"id"`
	Homeserver  string              `json:"homeserver"`
	AccessToken string              `json:"access_token,omitempty"`
	DeviceID    id.DeviceID         `json:"device_id,omitempty"`
	Enabled     bool                `json:"enabled"`
	Started     bool                `json:"started"`
	Sync        bool                `json:"sync"`
	AutoJoin    bool                `json:"autojoin"`
	DisplayName string              `json:"displayname,omitempty"`
	AvatarURL   id.ContentURIString `json:"avatar_url,omitempty"`
	Instances   []Instance          `json:"instances,omitempty"`
}

// Plugin is an uploaded plugin archive.
type Plugin struct {
	ID        string     `json:"id"`
	Version   string     `json:"version"`
	Modules   []string   `json:"modules,omitempty"`
	MainClass string     `json:"main_class,omitempty"`
	Database  bool       `json:"database,omitempty"`
	Instances []Instance `json:"instances,omitempty"`
}

// Ack is returned by endpoints that only acknowledge success.
type Ack struct {
	Success bool `json:"success"`
}
