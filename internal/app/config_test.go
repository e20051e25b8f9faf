package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/aviabot/internal/flights"
	"github.com/m3rciful/aviabot/internal/results"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const minimal = `
telegram:
  token: "123:abc"
travelpayouts:
  token: "tp-token"
`

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, minimal))
	require.NoError(t, err)

	assert.Equal(t, "longpoll", cfg.Telegram.RunMode)
	assert.Equal(t, flights.DefaultPageSize, cfg.Search.PageSize)
	assert.Equal(t, flights.DefaultMaxPages, cfg.Search.MaxPages)
	assert.Equal(t, flights.DefaultNearestLimit, cfg.Search.NearestLimit)
	assert.Equal(t, results.DefaultBudget, cfg.Search.MessageBudget)
	assert.Equal(t, "Asia/Tashkent", cfg.Search.Timezone)
	assert.Equal(t, "Asia/Tashkent", cfg.Search.Location().String())
	assert.Equal(t, SessionsMemory, cfg.Sessions.Backend)
	assert.Equal(t, 10*time.Second, cfg.Travelpayouts.Timeout)
	assert.Empty(t, cfg.Database.Driver)
	assert.Same(t, &cfg.Config, cfg.CoreConfig())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("SEARCH_MAX_PAGES", "7")
	t.Setenv("TRAVELPAYOUTS_TOKEN", "from-env")

	cfg, err := LoadConfig(writeConfig(t, minimal+`
search:
  page_size: 50
  timezone: UTC
  message_budget: 3000
sessions:
  backend: Redis
  redis:
    addr: "localhost:6379"
status:
  listen: ":9090"
`))
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Search.PageSize)
	assert.Equal(t, 7, cfg.Search.MaxPages)
	assert.Equal(t, 3000, cfg.Search.MessageBudget)
	assert.Equal(t, time.UTC, cfg.Search.Location())
	assert.Equal(t, "from-env", cfg.Travelpayouts.Token)
	assert.Equal(t, SessionsRedis, cfg.Sessions.Backend)
	assert.Equal(t, "aviabot:session:", cfg.Sessions.Redis.Prefix)
	assert.Equal(t, 24*time.Hour, cfg.Sessions.Redis.TTL)
	assert.Equal(t, ":9090", cfg.Status.Listen)
}

func TestLoadConfigErrors(t *testing.T) {
	cases := map[string]string{
		"missing travelpayouts token": "telegram:\n  token: \"123:abc\"\n",
		"bad timezone":                minimal + "search:\n  timezone: Mars/Olympus\n",
		"budget over telegram limit":  minimal + "search:\n  message_budget: 5000\n",
		"redis without addr":          minimal + "sessions:\n  backend: redis\n",
		"unknown backend":             minimal + "sessions:\n  backend: etcd\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
