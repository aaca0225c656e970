package main

import (
	"bytes"
	"flag"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// resetFlags resets the global flag.CommandLine to avoid "flag redefined" panic
func resetFlags() {
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ExitOnError)
}

// resetEnv clears env vars used by parseConfig
func resetEnv() {
	os.Clearenv()
}

func TestParseFlags_Default(t *testing.T) {
	resetFlags()
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	os.Args = []string{"cmd"}
	assert.Equal(t, "config.env", parseFlags())
}

func TestParseFlags_Custom(t *testing.T) {
	resetFlags()
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	os.Args = []string{"cmd", "-c", "myconfig.env"}
	assert.Equal(t, "myconfig.env", parseFlags())
}

func TestPrintBuildInfo_Output(t *testing.T) {
	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	buildVersion = "v1.0.0"
	buildCommit = "abcd1234"
	buildDate = "2025-09-26"

	printBuildInfo()

	w.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)
	output := buf.String()
	os.Stdout = oldStdout

	assert.Contains(t, output, "Version: v1.0.0")
	assert.Contains(t, output, "Commit: abcd1234")
	assert.Contains(t, output, "Build: 2025-09-26")
}

func TestParseConfig_Defaults(t *testing.T) {
	resetEnv()

	appHost, appPort, logLevel,
		mongoURI, mongoDB,
		dbMaxAttempts, dbBaseDelay, dbMaxDelay,
		redisAddr, redisDB, redisPassword,
		kafkaAddr, kafkaTopic,
		jwtSecret, jwtExp,
		err := parseConfig("nonexistent.env")

	assert.NoError(t, err)

	// Application
	assert.Equal(t, "localhost", appHost)
	assert.Equal(t, "5000", appPort)
	assert.Equal(t, "info", logLevel)

	// MongoDB
	assert.Equal(t, "mongodb://127.0.0.1:27017/logimax", mongoURI)
	assert.Equal(t, "logimax", mongoDB)
	assert.Equal(t, 5, dbMaxAttempts)
	assert.Equal(t, 5*time.Second, dbBaseDelay)
	assert.Equal(t, 30*time.Second, dbMaxDelay)

	// Redis and Kafka are disabled by default
	assert.Empty(t, redisAddr)
	assert.Equal(t, 0, redisDB)
	assert.Empty(t, redisPassword)
	assert.Empty(t, kafkaAddr)
	assert.Equal(t, "logimax.auth-events", kafkaTopic)

	// JWT
	assert.Equal(t, "your-secret-key", jwtSecret)
	assert.Equal(t, 24*time.Hour, jwtExp)
}

func TestParseConfig_Overrides(t *testing.T) {
	resetEnv()
	os.Setenv("APP_PORT", "8081")
	os.Setenv("DB_CONNECT_MAX_ATTEMPTS", "3")
	os.Setenv("DB_CONNECT_BASE_DELAY_MS", "100")
	os.Setenv("JWT_EXP_SECOND", "60")
	defer resetEnv()

	_, appPort, _, _, _, dbMaxAttempts, dbBaseDelay, _, _, _, _, _, _, _, jwtExp, err := parseConfig("nonexistent.env")

	assert.NoError(t, err)
	assert.Equal(t, "8081", appPort)
	assert.Equal(t, 3, dbMaxAttempts)
	assert.Equal(t, 100*time.Millisecond, dbBaseDelay)
	assert.Equal(t, time.Minute, jwtExp)
}

func TestParseConfig_InvalidNumber(t *testing.T) {
	resetEnv()
	os.Setenv("DB_CONNECT_MAX_ATTEMPTS", "not-a-number")
	defer resetEnv()

	_, _, _, _, _, _, _, _, _, _, _, _, _, _, _, err := parseConfig("nonexistent.env")
	assert.Error(t, err)
}

func TestFindAvailableListener_FallsBackToNextPort(t *testing.T) {
	// Occupy a port, then ask for it.
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NoError(t, err)
	defer occupied.Close()

	_, port, err := net.SplitHostPort(occupied.Addr().String())
	assert.NoError(t, err)

	ln, boundPort, err := findAvailableListener("127.0.0.1", port)
	assert.NoError(t, err)
	defer ln.Close()

	assert.NotEqual(t, port, boundPort)
}

func TestFindAvailableListener_InvalidPort(t *testing.T) {
	_, _, err := findAvailableListener("127.0.0.1", "not-a-port")
	assert.Error(t, err)
}
