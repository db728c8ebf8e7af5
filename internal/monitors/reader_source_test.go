package monitors

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaderSource_ReadsAllLinesInOrder(t *testing.T) {
	defer verifyNoLeaks(t)

	input := "status=200 pool=blue\r\n\nstatus=500 pool=green\nstatus=200"
	rec := &lineRecorder{}
	src := NewReaderSource("test", strings.NewReader(input), rec, quietLogger())

	require.NoError(t, src.Start(context.Background()))
	select {
	case <-src.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("reader source did not finish")
	}

	assert.Equal(t, []string{"status=200 pool=blue", "", "status=500 pool=green", "status=200"}, rec.Lines())
	assert.NoError(t, src.Err())
	assert.False(t, src.IsHealthy())
	assert.Equal(t, int64(4), src.Status().LinesRead)
	assert.NoError(t, src.Stop())
}

func TestReaderSource_OversizedLineKeepsReading(t *testing.T) {
	defer verifyNoLeaks(t)

	input := "status=200 pool=blue\n" + strings.Repeat("a", 2*MaxLineBytes) + "\nstatus=200 pool=green\n"
	rec := &lineRecorder{}
	src := NewReaderSource("test", strings.NewReader(input), rec, quietLogger())

	require.NoError(t, src.Start(context.Background()))
	select {
	case <-src.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("reader source did not finish")
	}

	assert.Equal(t, []string{"status=200 pool=blue", "status=200 pool=green"}, rec.Lines())
	assert.NoError(t, src.Err())
	status := src.Status()
	assert.Equal(t, int64(2), status.LinesRead)
	assert.Equal(t, int64(1), status.Errors)
	assert.NoError(t, src.Stop())
}

func TestReaderSource_StartTwice(t *testing.T) {
	src := NewReaderSource("test", strings.NewReader(""), &lineRecorder{}, quietLogger())
	require.NoError(t, src.Start(context.Background()))
	assert.Error(t, src.Start(context.Background()))
	<-src.Done()
	require.NoError(t, src.Stop())
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestReaderSource_ReadError(t *testing.T) {
	src := NewReaderSource("test", failingReader{}, &lineRecorder{}, quietLogger())
	require.NoError(t, src.Start(context.Background()))
	<-src.Done()

	assert.EqualError(t, src.Err(), "broken pipe")
	assert.Equal(t, int64(1), src.Status().Errors)
}

func TestReaderSource_StopWhileBlocked(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	rec := &lineRecorder{}
	src := NewReaderSource("pipe", pr, rec, quietLogger())
	src.stopTimeout = 50 * time.Millisecond
	require.NoError(t, src.Start(context.Background()))

	_, err := pw.Write([]byte("status=200 pool=blue\n"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(rec.Lines()) == 1 }, time.Second, 5*time.Millisecond)

	start := time.Now()
	require.NoError(t, src.Stop())
	assert.Less(t, time.Since(start), time.Second)

	// unblock the pending read so the goroutine can observe cancellation
	pw.Close()
	<-src.Done()
	assert.Len(t, rec.Lines(), 1)
}
