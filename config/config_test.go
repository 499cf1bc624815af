package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const minimal = `
http:
  addr: ":8084"
grpc:
  addr: ":9094"
postgres:
  dsn: "postgres://u:p@localhost/db"
`

func TestLoadFile_FillsDefaults(t *testing.T) {
	req := require.New(t)

	cfg, err := LoadFile(writeConfig(t, minimal))

	req.NoError(err)
	req.Equal(AuthModeToken, cfg.Auth.Mode)
	req.Equal("chat-service", cfg.Logging.Service)
	req.Equal("std", cfg.Logging.Backend)
	req.Equal(15*time.Second, cfg.WS.PingEvery)
	req.Equal(10*time.Second, cfg.WS.InitTimeout)
	req.Equal(4000, cfg.WS.MaxMessageLen)
	req.Equal(1024, cfg.WS.OutboxLimit)
	req.EqualValues(64<<10, cfg.WS.ReadLimit)
	req.Equal(5, cfg.Postgres.ConnectAttempts)
	req.Equal(500*time.Millisecond, cfg.Postgres.ConnectBackoff)
}

func TestLoadFile_EnvOverridesYAML(t *testing.T) {
	req := require.New(t)
	t.Setenv("CHAT_POSTGRES_DSN", "postgres://env@db/chat")
	t.Setenv("CHAT_WS_PING_EVERY", "3s")
	t.Setenv("CHAT_HTTP_ADDR", ":9999")

	cfg, err := LoadFile(writeConfig(t, minimal))

	req.NoError(err)
	req.Equal("postgres://env@db/chat", cfg.Postgres.DSN)
	req.Equal(3*time.Second, cfg.WS.PingEvery)
	req.Equal(":9999", cfg.HTTP.Addr)
	// не тронутое окружением остаётся из yaml
	req.Equal(":9094", cfg.GRPC.Addr)
}

func TestLoadFile_Validation(t *testing.T) {
	cases := map[string]string{
		"missing dsn": `
http: {addr: ":1"}
grpc: {addr: ":2"}
`,
		"jwt without key": minimal + `
auth:
  mode: jwt
`,
		"unknown auth mode": minimal + `
auth:
  mode: ldap
`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFile(writeConfig(t, body))
			require.Error(t, err)
		})
	}
}

func TestLoadConfig_UsesConfigPath(t *testing.T) {
	req := require.New(t)
	t.Setenv("CONFIG_PATH", writeConfig(t, minimal))

	cfg, err := LoadConfig()

	req.NoError(err)
	req.Equal(":8084", cfg.HTTP.Addr)
}
