package adc

import (
	"errors"
	"testing"

	"github.com/hotfire/controller/internal/hal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadDecodesRawValue(t *testing.T) {
	spi := hal.NewMockHAL().MockSPI()
	spi.QueueRawADC(8, 512)
	d := NewDriver(spi, []int{8})

	raw, err := d.Read(0, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, 512, raw)
}

func TestReadBuildsCorrectCommandFrame(t *testing.T) {
	spi := hal.NewMockHAL().MockSPI()
	spi.QueueRawADC(8, 1)
	d := NewDriver(spi, []int{8})

	_, err := d.Read(0, 0, 5)
	require.NoError(t, err)

	require.Len(t, spi.TransferLog, 1)
	assert.Equal(t, []byte{0x01, 0x80 | byte(5<<4), 0x00}, spi.TransferLog[0].TX)
	assert.Equal(t, 8, spi.TransferLog[0].ChipSelect)
}

func TestReadWrapsTransportErrorAsSensorFail(t *testing.T) {
	spi := hal.NewMockHAL().MockSPI()
	spi.QueueError(8, errors.New("spi bus timeout"))
	d := NewDriver(spi, []int{8})

	_, err := d.Read(7, 0, 0)
	require.Error(t, err)

	var sensorFail *SensorFailError
	require.True(t, errors.As(err, &sensorFail))
	assert.Equal(t, 7, sensorFail.SensorID)
}

func TestReadRejectsOutOfRangeADCIndex(t *testing.T) {
	spi := hal.NewMockHAL().MockSPI()
	d := NewDriver(spi, []int{8})

	_, err := d.Read(0, 3, 0)
	require.Error(t, err)
}

func TestReadRejectsOutOfRangeChannel(t *testing.T) {
	spi := hal.NewMockHAL().MockSPI()
	d := NewDriver(spi, []int{8})

	_, err := d.Read(0, 0, 8)
	require.Error(t, err)
}
