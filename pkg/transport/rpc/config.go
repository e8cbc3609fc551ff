package rpc

import (
	"errors"
	"time"
)

const defaultConnectTimeout = 5 * time.Second

// Config holds the tls material and dial settings of one ring endpoint.
type Config struct {
	// ServerCA defines the set of root certificate authorities
	// that servers use if required to verify a client certificate.
	ServerCAs        []string `json:"server_cas" mapstructure:"server_cas"`
	ServerKey        string   `json:"server_key" mapstructure:"server_key"`
	ServerCert       string   `json:"server_cert" mapstructure:"server_cert"`
	ServerSkipVerify bool     `json:"server_skip_verify" mapstructure:"server_skip_verify"`

	// ClientCAs defines the set of root certificate authorities
	// that clients use when verifying server certificates.
	ClientCAs        []string `json:"client_cas" mapstructure:"client_cas"`
	ClientCert       string   `json:"client_cert" mapstructure:"client_cert"`
	ClientKey        string   `json:"client_key" mapstructure:"client_key"`
	ClientSkipVerify bool     `json:"client_skip_verify" mapstructure:"client_skip_verify"`

	// ConnectTimeout bounds every dial to a neighbor. Zero uses the default.
	ConnectTimeout time.Duration `json:"connect_timeout" mapstructure:"connect_timeout"`
}

func (c *Config) Validate() error {
	if err := validatePair("server", c.ServerKey, c.ServerCert, c.ServerSkipVerify, c.ServerCAs); err != nil {
		return err
	}
	if err := validatePair("client", c.ClientKey, c.ClientCert, c.ClientSkipVerify, c.ClientCAs); err != nil {
		return err
	}
	if c.ConnectTimeout < 0 {
		return errors.New("negative connect timeout")
	}
	return nil
}

func (c *Config) dialTimeout() time.Duration {
	if c.ConnectTimeout == 0 {
		return defaultConnectTimeout
	}
	return c.ConnectTimeout
}

// validatePair checks one side of the tls setup: key and certificate come
// together, and verification needs at least one CA.
func validatePair(side, key, cert string, skipVerify bool, cas []string) error {
	if (key == "") != (cert == "") {
		return errors.New("incomplete " + side + " certificate configuration")
	}
	if key != "" && !skipVerify && len(cas) == 0 {
		return errors.New("no " + side + " CAs configured")
	}
	return nil
}
