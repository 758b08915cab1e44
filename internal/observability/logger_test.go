// internal/observability/logger_test.go
package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"syscall"
	"testing"

	"github.com/FLUSEC-25-26/flusec-cloud/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// -- Test Helper Functions --

// pipeBuffer collects what was written to the captured stdout pipe. The pipe
// is drained on access instead of in a background goroutine so that
// assertions see every byte already written even with GOMAXPROCS=1, where a
// reader goroutine may never be scheduled between a write and an assertion.
type pipeBuffer struct {
	fd  int
	buf bytes.Buffer
}

func (b *pipeBuffer) drain() {
	tmp := make([]byte, 4096)
	for {
		n, _ := syscall.Read(b.fd, tmp) // non-blocking; EAGAIN or EOF ends the loop
		if n <= 0 {
			return
		}
		b.buf.Write(tmp[:n])
	}
}

func (b *pipeBuffer) String() string { b.drain(); return b.buf.String() }
func (b *pipeBuffer) Bytes() []byte  { b.drain(); return b.buf.Bytes() }

// captureOutput is a helper function to capture stdout for the duration of a test.
// It returns a function to be called with defer to restore the original stdout.
func captureOutput(t *testing.T) (*pipeBuffer, func()) {
	t.Helper()
	var fds [2]int
	require.NoError(t, syscall.Pipe(fds[:]))
	require.NoError(t, syscall.SetNonblock(fds[0], true))

	originalStdout := os.Stdout
	w := os.NewFile(uintptr(fds[1]), "captured-stdout")
	os.Stdout = w

	buf := &pipeBuffer{fd: fds[0]}
	cleanup := func() {
		os.Stdout = originalStdout
		w.Close()
		buf.drain()
		syscall.Close(fds[0])
	}
	return buf, cleanup
}

// -- Test Cases --

func TestInitializeLogger(t *testing.T) {

	t.Run("should initialize console logger with colors", func(t *testing.T) {
		ResetForTest()
		buf, cleanup := captureOutput(t)
		defer cleanup()

		cfg := config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "ConsoleTest",
			Colors: config.ColorConfig{
				Info: "green",
			},
		}
		InitializeLogger(cfg)
		logger := GetLogger()
		logger.Info("Console output check.")
		Sync() // -- ensure the log is flushed --

		output := buf.String()
		assert.Contains(t, output, "INFO", "Output should contain the log level")
		assert.Contains(t, output, "Console output check.", "Output should contain the message")
		assert.Contains(t, output, colorGreen, "Info level should be colorized green")
		assert.Contains(t, output, colorReset, "Output should contain the reset color code")
	})

	t.Run("should initialize json logger", func(t *testing.T) {
		ResetForTest()
		buf, cleanup := captureOutput(t)
		defer cleanup()

		cfg := config.LoggerConfig{
			Level:       "info",
			Format:      "json",
			ServiceName: "JSONTest",
		}
		InitializeLogger(cfg)
		logger := GetLogger()
		logger.Warn("Structured output check.", zap.String("key", "value"))
		Sync()

		// -- the output should be a valid JSON object --
		var logEntry map[string]interface{}
		err := json.Unmarshal(buf.Bytes(), &logEntry)
		require.NoError(t, err, "Log output should be valid JSON")

		assert.Equal(t, "warn", logEntry["level"])
		assert.Equal(t, "JSONTest", logEntry["logger"])
		assert.Equal(t, "Structured output check.", logEntry["msg"])
		assert.Equal(t, "value", logEntry["key"])
	})

	t.Run("should write to a log file if configured", func(t *testing.T) {
		ResetForTest()
		// -- create a temporary file for the log output --
		tmpFile, err := os.CreateTemp("", "logger-test-*.log")
		require.NoError(t, err)
		defer os.Remove(tmpFile.Name())

		cfg := config.LoggerConfig{
			Level:   "debug",
			Format:  "json",
			LogFile: tmpFile.Name(),
			MaxSize: 1, // 1 MB
		}
		InitializeLogger(cfg)
		logger := GetLogger()
		logger.Error("This should go to the file.")
		Sync()

		content, err := os.ReadFile(tmpFile.Name())
		require.NoError(t, err)
		assert.Contains(t, string(content), "This should go to the file.", "Log file should contain the message")
	})

	t.Run("should only initialize once", func(t *testing.T) {
		ResetForTest()
		buf, cleanup := captureOutput(t)
		defer cleanup()

		// -- first initialization --
		cfg1 := config.LoggerConfig{Level: "info", ServiceName: "First"}
		InitializeLogger(cfg1)
		logger1 := GetLogger()

		// -- second, should be ignored --
		cfg2 := config.LoggerConfig{Level: "debug", ServiceName: "Second"}
		InitializeLogger(cfg2)
		logger2 := GetLogger()

		// -- check that the logger is the same instance with the first config --
		assert.Equal(t, logger1, logger2)
		logger2.Info("test")
		Sync()

		// The service name should be "First", not "Second"
		assert.True(t, strings.Contains(buf.String(), "First"))
		assert.False(t, strings.Contains(buf.String(), "Second"))
	})
}

func TestGetLogger(t *testing.T) {
	t.Run("should return a fallback logger if not initialized", func(t *testing.T) {
		ResetForTest()
		// -- we do not call InitializeLogger() here --
		logger := GetLogger()
		require.NotNil(t, logger)
	})

	t.Run("should return the global logger after initialization", func(t *testing.T) {
		ResetForTest()
		cfg := config.LoggerConfig{Level: "info", ServiceName: "GlobalTest"}
		InitializeLogger(cfg)

		logger := GetLogger()
		// The pointer to the logger instance should be the same as the one stored.
		assert.Equal(t, globalLogger.Load(), logger)
	})
}

func TestResetForTest(t *testing.T) {
	ResetForTest()
	InitializeLogger(config.LoggerConfig{Level: "info", ServiceName: "BeforeReset"})
	require.NotNil(t, globalLogger.Load())

	ResetForTest()
	assert.Nil(t, globalLogger.Load())

	// A fresh initialization must take effect after a reset.
	buf, cleanup := captureOutput(t)
	defer cleanup()
	InitializeLogger(config.LoggerConfig{Level: "info", ServiceName: "AfterReset"})
	GetLogger().Info("reinitialized")
	Sync()
	assert.Contains(t, buf.String(), "AfterReset")
}
