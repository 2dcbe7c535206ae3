package shared

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Helper functions for environment variable handling
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func GetEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func GetEnvUint32OrDefault(key string, defaultValue uint32) uint32 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseUint(value, 10, 32); err == nil {
			return uint32(intValue)
		}
	}
	return defaultValue
}

// ServerConfig is the host configuration. Every field comes from the
// environment (a .env file is honored when present).
type ServerConfig struct {
	// ListenAddr is the TCP listen address for raw TLS connections.
	ListenAddr string
	// WSListenAddr serves the WebSocket transport; empty disables it.
	WSListenAddr string
	// VsockPort serves the vsock transport for enclave-style deployments;
	// zero disables it.
	VsockPort uint32
	// CertFile / KeyFile are PEM paths. When CertFile is empty a
	// self-signed development certificate is generated instead.
	CertFile string
	KeyFile  string
	// CertCommonName names the generated development certificate.
	CertCommonName string
}

// LoadServerConfig reads the server configuration from the environment,
// loading a .env file first if one exists.
func LoadServerConfig() *ServerConfig {
	_ = godotenv.Load()

	return &ServerConfig{
		ListenAddr:     GetEnvOrDefault("LISTEN_ADDR", ":4433"),
		WSListenAddr:   GetEnvOrDefault("WS_LISTEN_ADDR", ""),
		VsockPort:      GetEnvUint32OrDefault("VSOCK_PORT", 0),
		CertFile:       GetEnvOrDefault("CERT_FILE", ""),
		KeyFile:        GetEnvOrDefault("KEY_FILE", ""),
		CertCommonName: GetEnvOrDefault("CERT_COMMON_NAME", "localhost"),
	}
}
