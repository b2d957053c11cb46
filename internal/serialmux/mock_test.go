package serialmux

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestableSerialPort_ReadWriteReset(t *testing.T) {
	t.Parallel()

	port := NewTestableSerialPort()
	port.AddReadData([]byte("OK\n"))

	buf := make([]byte, 8)
	n, err := port.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "OK\n", string(buf[:n]))

	_, err = port.Write([]byte("<0,0,0,0,0,0>"))
	require.NoError(t, err)
	assert.Equal(t, 1, port.WriteCalls)

	require.NoError(t, port.SetReadTimeout(time.Second))
	assert.Equal(t, time.Second, port.ReadTimeout)

	port.Reset()
	assert.Empty(t, port.GetWrittenData())
	assert.Zero(t, port.WriteCalls)
}

func TestMockSerialPortFactory(t *testing.T) {
	t.Parallel()

	port := NewTestableSerialPort()
	factory := NewMockSerialPortFactory(port)

	got, err := factory.Open("/dev/ttyACM0", DefaultSerialPortMode())
	require.NoError(t, err)
	assert.Same(t, port, got.(*TestableSerialPort))

	call := factory.LastCall()
	require.NotNil(t, call)
	assert.Equal(t, "/dev/ttyACM0", call.Path)
	assert.Equal(t, 115200, call.Mode.BaudRate)

	factory.Error = errors.New("no device")
	_, err = factory.Open("/dev/ttyACM1", nil)
	assert.Error(t, err)

	factory.Reset()
	assert.Nil(t, factory.LastCall())
}
