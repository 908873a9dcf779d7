package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Kind is the connection type tag.
type Kind string

const (
	KindSSH    Kind = "ssh"
	KindRDP    Kind = "rdp"
	KindCustom Kind = "custom"
)

// Kinds lists every supported connection type in display order.
var Kinds = []Kind{KindSSH, KindRDP, KindCustom}

// ErrInvalidConnection is wrapped by every construction or validation failure.
var ErrInvalidConnection = errors.New("invalid connection")

// ParseKind accepts a type name case-insensitively.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: unknown type %q", ErrInvalidConnection, s)
}

// Target is the type-specific half of a connection. Only SSH, RDP and Custom implement it.
type Target interface {
	Kind() Kind
	validate() error
}

// SSH connects with the ssh client. Password holds a ciphertext token, never plaintext.
type SSH struct {
	Address    string
	PrivateKey string
	Password   string
}

func (SSH) Kind() Kind { return KindSSH }

func (t SSH) validate() error {
	if t.Address == "" {
		return fmt.Errorf("%w: ssh address required", ErrInvalidConnection)
	}
	if t.PrivateKey != "" && t.Password != "" {
		return fmt.Errorf("%w: ssh takes a private key or a password, not both", ErrInvalidConnection)
	}
	return nil
}

// RDP connects with mstsc or xfreerdp. Password holds a ciphertext token.
type RDP struct {
	Address  string
	Username string
	Password string
}

func (RDP) Kind() Kind { return KindRDP }

func (t RDP) validate() error {
	if t.Address == "" {
		return fmt.Errorf("%w: rdp address required", ErrInvalidConnection)
	}
	return nil
}

// Custom runs Command through the platform shell.
type Custom struct {
	Command string
}

func (Custom) Kind() Kind { return KindCustom }

func (Custom) validate() error { return nil }

// Connection is one stored profile: a display name plus its target.
type Connection struct {
	Name   string
	Target Target
}

// NewSSH builds an ssh connection. password must already be encrypted.
func NewSSH(name, address, privateKey, password string) (Connection, error) {
	return build(name, SSH{
		Address:    strings.TrimSpace(address),
		PrivateKey: strings.TrimSpace(privateKey),
		Password:   password,
	})
}

// NewRDP builds an rdp connection. password must already be encrypted.
func NewRDP(name, address, username, password string) (Connection, error) {
	return build(name, RDP{
		Address:  strings.TrimSpace(address),
		Username: strings.TrimSpace(username),
		Password: password,
	})
}

// NewCustom builds a custom command connection.
func NewCustom(name, command string) (Connection, error) {
	return build(name, Custom{Command: strings.TrimSpace(command)})
}

func build(name string, t Target) (Connection, error) {
	c := Connection{Name: strings.TrimSpace(name), Target: t}
	if err := c.Validate(); err != nil {
		return Connection{}, err
	}
	return c, nil
}

// Kind returns the connection type, or "" when no target is set.
func (c Connection) Kind() Kind {
	if c.Target == nil {
		return ""
	}
	return c.Target.Kind()
}

// Validate checks the name and the per-type field rules.
func (c Connection) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: name required", ErrInvalidConnection)
	}
	if c.Target == nil {
		return fmt.Errorf("%w: %s: type required", ErrInvalidConnection, c.Name)
	}
	if err := c.Target.validate(); err != nil {
		return fmt.Errorf("%s: %w", c.Name, err)
	}
	return nil
}

// Label is the list rendering, e.g. "web (ssh)".
func (c Connection) Label() string {
	return fmt.Sprintf("%s (%s)", c.Name, c.Kind())
}

// PasswordToken returns the stored ciphertext, if the target carries one.
func (c Connection) PasswordToken() string {
	switch t := c.Target.(type) {
	case SSH:
		return t.Password
	case RDP:
		return t.Password
	}
	return ""
}

// Address returns the remote address for ssh and rdp, "" for custom.
func (c Connection) Address() string {
	switch t := c.Target.(type) {
	case SSH:
		return t.Address
	case RDP:
		return t.Address
	}
	return ""
}

// record is the on-disk shape, one flat object per connection.
type record struct {
	Name       string `json:"name"`
	Type       Kind   `json:"type"`
	Address    string `json:"address,omitempty"`
	PrivateKey string `json:"private_key,omitempty"`
	Password   string `json:"password,omitempty"`
	Username   string `json:"username,omitempty"`
	Command    string `json:"command,omitempty"`
}

// MarshalJSON writes the flat record form.
func (c Connection) MarshalJSON() ([]byte, error) {
	r := record{Name: c.Name, Type: c.Kind()}
	switch t := c.Target.(type) {
	case SSH:
		r.Address, r.PrivateKey, r.Password = t.Address, t.PrivateKey, t.Password
	case RDP:
		r.Address, r.Username, r.Password = t.Address, t.Username, t.Password
	case Custom:
		r.Command = t.Command
	default:
		return nil, fmt.Errorf("%w: %s: type required", ErrInvalidConnection, c.Name)
	}
	return json.Marshal(r)
}

// UnmarshalJSON reads the flat record form and validates it.
func (c *Connection) UnmarshalJSON(data []byte) error {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	kind, err := ParseKind(string(r.Type))
	if err != nil {
		return fmt.Errorf("%s: %w", r.Name, err)
	}
	var out Connection
	out.Name = r.Name
	switch kind {
	case KindSSH:
		out.Target = SSH{Address: r.Address, PrivateKey: r.PrivateKey, Password: r.Password}
	case KindRDP:
		out.Target = RDP{Address: r.Address, Username: r.Username, Password: r.Password}
	case KindCustom:
		out.Target = Custom{Command: r.Command}
	}
	if err := out.Validate(); err != nil {
		return err
	}
	*c = out
	return nil
}
