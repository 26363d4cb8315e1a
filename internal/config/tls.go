package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
)

// CreatePostgresTLSConfig returns the TLS config for the database connection,
// or nil when no CA certificate is configured (plain / sslmode=disable).
func (c *Config) CreatePostgresTLSConfig() (*tls.Config, error) {
	if c.DBCACert == "" {
		return nil, nil
	}
	rootCertPool := x509.NewCertPool()
	if ok := rootCertPool.AppendCertsFromPEM([]byte(c.DBCACert)); !ok {
		return nil, fmt.Errorf("failed to parse Postgres CA certificate")
	}
	return &tls.Config{
		RootCAs:    rootCertPool,
		ServerName: c.DBHost,
	}, nil
}

// CreateKafkaTLSConfig returns the TLS config for the Kafka dialer, or nil
// when no CA certificate is configured.
func (c *Config) CreateKafkaTLSConfig() (*tls.Config, error) {
	if c.KafkaCACert == "" {
		return nil, nil
	}

	rootCertPool := x509.NewCertPool()
	if ok := rootCertPool.AppendCertsFromPEM([]byte(c.KafkaCACert)); !ok {
		return nil, fmt.Errorf("failed to parse Kafka CA certificate")
	}

	// Extract host without port for TLS ServerName
	var serverName string
	if len(c.KafkaBrokers) > 0 {
		host, _, err := net.SplitHostPort(c.KafkaBrokers[0])
		if err != nil {
			// no port in the broker address, use it as-is
			serverName = c.KafkaBrokers[0]
		} else {
			serverName = host
		}
	}

	tlsCfg := &tls.Config{
		RootCAs:    rootCertPool,
		ServerName: serverName, // must match SAN in certificate
		MinVersion: tls.VersionTLS12,
	}

	if c.KafkaCert != "" && c.KafkaKey != "" {
		cert, err := tls.X509KeyPair([]byte(c.KafkaCert), []byte(c.KafkaKey))
		if err != nil {
			return nil, fmt.Errorf("failed to load Kafka client certificate: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}

	return tlsCfg, nil
}
