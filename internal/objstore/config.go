package objstore

import (
	"fmt"
	"net/url"
	"strings"
)

// Provider identifies the object storage backend.
type Provider string

const (
	ProviderMinIO  Provider = "minio"
	ProviderMemory Provider = "memory"
)

// Addressing styles control how the bucket appears in request URLs.
// Virtual-hosted style puts the bucket in the hostname, path style in the
// request path; auto lets the client decide per endpoint.
const (
	AddressingAuto    = "auto"
	AddressingVirtual = "virtual"
	AddressingPath    = "path"
)

// Config holds all settings needed to connect to an object storage backend.
type Config struct {
	// Provider is the storage backend (e.g. ProviderMinIO).
	Provider Provider

	// Endpoint is the host:port of the storage server, without scheme.
	// Example: "localhost:9000" for local MinIO.
	Endpoint string

	// AccessKey is the access key ID (MinIO / S3 style).
	AccessKey string

	// SecretKey is the secret access key.
	SecretKey string

	// UseSSL controls whether TLS is used for the connection.
	UseSSL bool

	// Region is used by region-aware backends (e.g. AWS S3).
	// Leave empty for MinIO.
	Region string

	// Bucket is the bucket all operations are scoped to.
	Bucket string

	// AddressingStyle is one of AddressingAuto, AddressingVirtual,
	// AddressingPath. Empty means AddressingAuto.
	AddressingStyle string
}

// DefaultConfig returns a sensible local-dev config for MinIO.
func DefaultConfig(endpoint, accessKey, secretKey, bucket string) *Config {
	return &Config{
		Provider:  ProviderMinIO,
		Endpoint:  endpoint,
		AccessKey: accessKey,
		SecretKey: secretKey,
		Bucket:    bucket,
		UseSSL:    false,
	}
}

// ParseEndpoint splits an endpoint URL as it arrives from the environment
// ("https://s3.amazonaws.com", "http://localhost:9000") into the bare
// host:port and a TLS flag. A scheme-less value is accepted and assumed
// to be TLS.
func ParseEndpoint(raw string) (host string, secure bool, err error) {
	if raw == "" {
		return "", false, fmt.Errorf("empty endpoint URL")
	}
	if !strings.Contains(raw, "://") {
		return raw, true, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("invalid endpoint URL %q: %w", raw, err)
	}

	switch u.Scheme {
	case "https":
		secure = true
	case "http":
		secure = false
	default:
		return "", false, fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}

	if u.Host == "" {
		return "", false, fmt.Errorf("endpoint URL %q has no host", raw)
	}
	return u.Host, secure, nil
}
