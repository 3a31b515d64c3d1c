package internal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("BADGER_FILEPATH", t.TempDir())
	t.Setenv("JWT_SECRET", "a-long-enough-test-secret")
	t.Setenv("BUFFER_SIZE", "256")
	t.Setenv("CONNECTION_BUFFER_SIZE", "32")
	t.Setenv("NUMBER_OF_WORKERS", "2")
	t.Setenv("RESTART_INTERVAL", "1s")
}

func TestLoadConfig_Defaults(t *testing.T) {
	req := require.New(t)
	setRequiredEnv(t)

	config, err := LoadConfig()

	req.NoError(err)
	req.Equal(8080, config.Port)
	req.Equal(3, config.AttemptsAllowed)
	req.Equal(time.Second, config.PollInterval)
	req.Equal(168*time.Hour, config.JobRetention)
	req.Equal([]string{"*"}, config.Origins())
	req.Empty(config.SMTPHost)
}

func TestLoadConfig_Missing_Required(t *testing.T) {
	req := require.New(t)
	setRequiredEnv(t)
	t.Setenv("JWT_SECRET", "")

	_, err := LoadConfig()

	req.Error(err)
}

func TestConfig_Validate(t *testing.T) {
	req := require.New(t)
	valid := Config{
		JWTSecret: "a-long-enough-test-secret", BufferSize: 1, ConnectionBufferSize: 1,
		NumberOfWorkers: 1, PollInterval: time.Second, ReminderTimezone: "UTC",
	}
	req.NoError(valid.Validate())

	noWorkers := valid
	noWorkers.NumberOfWorkers = 0
	req.Error(noWorkers.Validate())

	shortSecret := valid
	shortSecret.JWTSecret = "short"
	req.Error(shortSecret.Validate())

	badZone := valid
	badZone.ReminderTimezone = "Mars/Olympus"
	req.Error(badZone.Validate())
}

func TestConfig_Origins(t *testing.T) {
	req := require.New(t)
	config := Config{AllowedOrigins: "https://app.example.com, http://localhost:5173 ,"}

	req.Equal([]string{"https://app.example.com", "http://localhost:5173"}, config.Origins())
}
