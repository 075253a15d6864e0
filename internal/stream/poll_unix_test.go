//go:build linux || darwin

package stream

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledcat/internal/common"
)

func TestFDPollerPipe(t *testing.T) {
	g := NewWithT(t)

	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	p := NewFDPoller(int(r.Fd()))

	ready, err := p.Ready(time.Millisecond)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(ready).To(BeFalse(), "empty pipe is not readable")

	_, err = w.Write([]byte{1})
	require.NoError(t, err)

	ready, err = p.Ready(10 * time.Millisecond)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(ready).To(BeTrue())
}

func TestFDPollerOutOfRange(t *testing.T) {
	for _, fd := range []int{-1, maxSelectFD, 1 << 20} {
		ready, err := NewFDPoller(fd).Ready(time.Millisecond)
		assert.Error(t, err, "fd %d", fd)
		assert.False(t, ready)
	}
}

func TestReaderHighDescriptorIsIOError(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{1, 2, 3, 4}), WithPoller(NewFDPoller(1<<20)))

	_, err := r.ReadFrame(context.Background(), make([]byte, 4))
	assert.ErrorIs(t, err, common.ErrIO)
}

func TestStdinReaderCancelledWhileIdle(t *testing.T) {
	g := NewWithT(t)

	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	// Deliver half a frame, then go quiet.
	_, err = w.Write([]byte{1, 2})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	reader := NewStdinReader(r)

	type outcome struct {
		res Result
		err error
	}
	done := make(chan outcome, 1)
	buf := make([]byte, 4)
	go func() {
		res, err := reader.ReadFrame(ctx, buf)
		done <- outcome{res, err}
	}()

	// The reader is spinning on the idle pipe; cancellation must end it promptly.
	g.Consistently(done, 20*time.Millisecond).ShouldNot(Receive())
	cancel()

	var got outcome
	g.Eventually(done, time.Second, time.Millisecond).Should(Receive(&got))
	g.Expect(got.err).NotTo(HaveOccurred())
	g.Expect(got.res.Status).To(Equal(StatusCancelled))
	g.Expect(got.res.N).To(Equal(2))
	g.Expect(buf[:2]).To(Equal([]byte{1, 2}))
}

func TestStdinReaderEndOfStream(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()

	_, err = w.Write([]byte{9, 8, 7})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	res, err := NewStdinReader(r).ReadFrame(context.Background(), make([]byte, 4))
	require.NoError(t, err)
	require.Equal(t, Result{N: 3, Status: StatusEndOfStream}, res)
}
