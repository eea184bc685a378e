package audio

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"
)

// deviceAcquireTimeout bounds how long Start waits for malgo to hand back a
// usable capture device, per spec §5 ("Audio device acquisition has a 2s
// timeout").
const deviceAcquireTimeout = 2 * time.Second

// MalgoSource captures from the default (or named) input device using
// malgo, the same capture library the teacher's cmd/agent/main.go drives.
// Unlike the teacher's duplex (capture+playback) device, scribe only ever
// captures, so the device here is capture-only.
type MalgoSource struct {
	// DeviceName selects a specific input device by name. Empty uses the
	// host's default input device.
	DeviceName string
}

// NewMalgoSource constructs a Source bound to the default or named input
// device.
func NewMalgoSource(deviceName string) *MalgoSource {
	return &MalgoSource{DeviceName: deviceName}
}

func (s *MalgoSource) Start(ctx context.Context) (*Handle, error) {
	acquireCtx, cancel := context.WithTimeout(ctx, deviceAcquireTimeout)
	defer cancel()

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: init malgo context: %v", ErrDeviceUnavailable, err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = Channels
	deviceConfig.SampleRate = SampleRate
	deviceConfig.Alsa.NoMMap = 1

	handle := &Handle{}
	out := make(chan Frame, channelCapacity)
	handle.Frames = out

	q := newFrameQueue(channelCapacity, &handle.dropped)
	pumpCtx, pumpCancel := context.WithCancel(context.Background())

	var carry []int16
	var samplesSeen uint64
	captureRate := SampleRate

	onSamples := func(pOutput, pInput []byte, frameCount uint32) {
		if pInput == nil {
			return
		}
		samples := bytesToInt16(pInput)
		if captureRate != SampleRate {
			samples = resampleMono16(samples, captureRate, SampleRate)
		}
		carry = append(carry, samples...)
		for len(carry) >= FrameSamples {
			frameSamples := make([]int16, FrameSamples)
			copy(frameSamples, carry[:FrameSamples])
			carry = carry[FrameSamples:]

			ts := samplesSeen * 1000 / uint64(SampleRate)
			samplesSeen += uint64(FrameSamples)

			q.push(Frame{
				Samples:     frameSamples,
				SampleRate:  SampleRate,
				Channels:    Channels,
				TimestampMS: ts,
			})
		}
	}

	// onStop fires whenever the device stops. Unless Stop was requested
	// through the handle, that means the device was lost: record the error
	// and close the queue so Frames closes.
	var userStopped atomic.Bool
	onStop := func() {
		if userStopped.Load() {
			return
		}
		handle.setErr(fmt.Errorf("audio: capture device stopped unexpectedly"))
		q.close()
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onSamples,
		Stop: onStop,
	})
	if err != nil {
		// The device refused our preferred 16kHz capture rate. Reopen it at
		// its own preferred rate (SampleRate: 0 asks malgo/miniaudio to pick
		// one) and resample every captured buffer down to 16kHz in
		// onSamples instead, per spec.md §4.1.
		deviceConfig.SampleRate = 0
		device, err = malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{
			Data: onSamples,
			Stop: onStop,
		})
		if err != nil {
			mctx.Uninit()
			pumpCancel()
			return nil, fmt.Errorf("%w: init device: %v", ErrDeviceUnavailable, err)
		}
		captureRate = int(device.SampleRate())
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		mctx.Uninit()
		pumpCancel()
		return nil, fmt.Errorf("%w: start device: %v", ErrDeviceUnavailable, err)
	}

	select {
	case <-acquireCtx.Done():
		device.Uninit()
		mctx.Uninit()
		pumpCancel()
		return nil, fmt.Errorf("%w: timed out acquiring device", ErrDeviceUnavailable)
	default:
	}

	go pump(pumpCtx, q, out)

	stopped := false
	handle.stop = func() {
		if stopped {
			return
		}
		stopped = true
		userStopped.Store(true)
		_ = device.Stop()
		device.Uninit()
		mctx.Uninit()
		q.close()
		pumpCancel()
	}

	return handle, nil
}

func bytesToInt16(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(b[2*i]) | int16(b[2*i+1])<<8
	}
	return out
}
