package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/domain"
)

func TestEncodeWAVHeader(t *testing.T) {
	pcm := []byte{1, 0, 2, 0, 3, 0, 4, 0}
	wav, err := EncodeWAV(pcm, 16000)
	require.NoError(t, err)
	require.Len(t, wav, wavHeaderSize+len(pcm))

	assert.Equal(t, "RIFF", string(wav[0:4]))
	assert.Equal(t, "WAVE", string(wav[8:12]))
	assert.Equal(t, "data", string(wav[36:40]))
	assert.Equal(t, uint32(36+len(pcm)), binary.LittleEndian.Uint32(wav[4:8]))
	assert.Equal(t, uint32(16000), binary.LittleEndian.Uint32(wav[24:28]))
	assert.Equal(t, uint32(32000), binary.LittleEndian.Uint32(wav[28:32]))
	assert.Equal(t, uint32(len(pcm)), binary.LittleEndian.Uint32(wav[40:44]))
	assert.Equal(t, pcm, wav[44:])
}

func TestEncodeWAVDropsHalfSample(t *testing.T) {
	wav, err := EncodeWAV([]byte{1, 0, 9}, 8000)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(wav[40:44]))

	_, err = EncodeWAV([]byte{1, 0}, 0)
	require.Error(t, err)
}

func TestPCMDuration(t *testing.T) {
	assert.Equal(t, time.Second, PCMDuration(32000, 16000))
	assert.Equal(t, time.Duration(0), PCMDuration(100, 0))
}

func TestStopWithoutStartFails(t *testing.T) {
	svc := NewService(&MockDevice{}, 16000, nil)
	_, err := svc.StopRecording(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNoActiveRecording)
}

func TestSecondStartIsRejected(t *testing.T) {
	dev := &MockDevice{PCM: bytes.Repeat([]byte{1, 0}, 100)}
	svc := NewService(dev, 16000, nil)
	ctx := context.Background()

	require.NoError(t, svc.StartRecording(ctx))
	err := svc.StartRecording(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRecordingActive)
	assert.Equal(t, 1, dev.Opened())
	assert.Equal(t, 1, dev.Held())

	_, err = svc.StopRecording(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, dev.Held())
}

func TestRecordingProducesWAVArtifact(t *testing.T) {
	pcm := bytes.Repeat([]byte{0x10, 0x00}, 1600)
	dev := &MockDevice{PCM: pcm}
	svc := NewService(dev, 16000, nil)
	ctx := context.Background()

	require.NoError(t, svc.StartRecording(ctx))
	assert.True(t, svc.IsRecording())
	c := dev.LastConstraints()
	assert.True(t, c.EchoCancellation)
	assert.True(t, c.NoiseSuppression)
	assert.Equal(t, 16000, c.SampleRate)

	art, err := svc.StopRecording(ctx)
	require.NoError(t, err)
	assert.False(t, svc.IsRecording())
	assert.Equal(t, ArtifactFileName, art.FileName)
	assert.Equal(t, ArtifactMIMEType, art.MIMEType)
	assert.Equal(t, wavHeaderSize+len(pcm), art.Size())
	assert.Equal(t, 100*time.Millisecond, art.Duration)
	assert.Equal(t, 0, dev.Held())
}

func TestEmptyCaptureYieldsZeroSizeArtifact(t *testing.T) {
	dev := &MockDevice{}
	svc := NewService(dev, 16000, nil)
	ctx := context.Background()

	require.NoError(t, svc.StartRecording(ctx))
	art, err := svc.StopRecording(ctx)
	require.NoError(t, err)
	assert.Zero(t, art.Size())
	assert.Equal(t, 0, dev.Held())
}

func TestStartFailures(t *testing.T) {
	ctx := context.Background()

	svc := NewService(&MockDevice{Unavailable: true}, 16000, nil)
	err := svc.StartRecording(ctx)
	assert.ErrorIs(t, err, domain.ErrUnsupported)
	assert.False(t, svc.IsRecording())

	denied := &MockDevice{OpenErr: domain.NewError(domain.KindPermission, "", errors.New("denied"))}
	svc = NewService(denied, 16000, nil)
	err = svc.StartRecording(ctx)
	assert.ErrorIs(t, err, domain.ErrPermission)
	assert.False(t, svc.IsRecording())
	assert.Equal(t, 0, denied.Held())
}

func TestAbandonReleasesMicrophone(t *testing.T) {
	dev := &MockDevice{PCM: []byte{1, 0}}
	svc := NewService(dev, 16000, nil)

	svc.Abandon()
	require.NoError(t, svc.StartRecording(context.Background()))
	svc.Abandon()
	assert.False(t, svc.IsRecording())
	assert.Equal(t, 0, dev.Held())

	_, err := svc.StopRecording(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoActiveRecording)
}

func TestCommandDeviceMissingBinaryIsUnsupported(t *testing.T) {
	dev, err := NewCommandDevice("voiceshop-no-such-recorder -r {rate}")
	require.NoError(t, err)
	assert.False(t, dev.Available())

	_, err = dev.Open(context.Background(), Constraints{SampleRate: 16000})
	assert.ErrorIs(t, err, domain.ErrUnsupported)

	_, err = NewCommandDevice("   ")
	require.Error(t, err)
}

func TestSaveArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), ArtifactFileName)
	require.Error(t, SaveArtifact(path, Artifact{}))

	wav, err := EncodeWAV([]byte{1, 0}, 16000)
	require.NoError(t, err)
	require.NoError(t, SaveArtifact(path, Artifact{Data: wav}))
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, wav, got)
}

// fakeRecorder writes a shell script standing in for arecord.
func fakeRecorder(t *testing.T, body string) *CommandDevice {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("recorder scripts need a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "fake-arecord")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	dev, err := NewCommandDevice(path + " -r {rate}")
	require.NoError(t, err)
	dev.StartGrace = 2 * time.Second
	return dev
}

func TestCommandDeviceDeniedMicrophoneFailsAtStart(t *testing.T) {
	dev := fakeRecorder(t, `echo "audio open error: Permission denied" >&2; exit 1`)
	svc := NewService(dev, 16000, nil)

	err := svc.StartRecording(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPermission)
	assert.Contains(t, err.Error(), "Permission denied")
	assert.False(t, svc.IsRecording())
}

func TestCommandDeviceEarlyExitIsUnsupported(t *testing.T) {
	dev := fakeRecorder(t, `echo "no soundcards found" >&2; exit 1`)

	_, err := dev.Open(context.Background(), Constraints{SampleRate: 16000})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnsupported)
	assert.Contains(t, err.Error(), "no soundcards found")
}

func TestCommandDeviceRecordsStdout(t *testing.T) {
	dev := fakeRecorder(t, `printf 'abcd'; exec sleep 30`)
	svc := NewService(dev, 16000, nil)

	require.NoError(t, svc.StartRecording(context.Background()))
	assert.True(t, svc.IsRecording())

	art, err := svc.StopRecording(context.Background())
	require.NoError(t, err)
	require.Equal(t, wavHeaderSize+4, art.Size())
	assert.Equal(t, []byte("abcd"), art.Data[wavHeaderSize:])
}

func TestCommandDeviceSilentRecorderStartsAfterGrace(t *testing.T) {
	dev := fakeRecorder(t, `exec sleep 30`)
	dev.StartGrace = 20 * time.Millisecond

	stream, err := dev.Open(context.Background(), Constraints{SampleRate: 16000})
	require.NoError(t, err)
	assert.NoError(t, stream.Release())
}
