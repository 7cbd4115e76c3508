package delivery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChannel records calls and fails for the recipients listed in failFor.
type fakeChannel struct {
	openErr   error
	failFor   map[string]error
	sent      []string
	attempted []string
	opened    int
	closed    int
}

func (f *fakeChannel) Open(context.Context) error { f.opened++; return f.openErr }
func (f *fakeChannel) Close() error               { f.closed++; return nil }

func (f *fakeChannel) Send(_ context.Context, recipient, _, _ string) error {
	f.attempted = append(f.attempted, recipient)
	if err, ok := f.failFor[recipient]; ok {
		return err
	}
	f.sent = append(f.sent, recipient)
	return nil
}

func newTestDispatcher(delay time.Duration) (*Dispatcher, *[]time.Duration) {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	d := NewDispatcher(delay, log.WithField("component", "test"))

	var slept []time.Duration
	d.sleep = func(dur time.Duration) { slept = append(slept, dur) }
	return d, &slept
}

func TestSendAll_TalliesAndContinuesPastFailure(t *testing.T) {
	d, _ := newTestDispatcher(time.Second)
	ch := &fakeChannel{failFor: map[string]error{"r2": errors.New("boom")}}

	ok, failed, err := d.SendAll(context.Background(), ch, "shot.png", "caption", []string{"r1", "r2", "r3"})
	require.NoError(t, err)

	assert.Equal(t, 2, ok)
	assert.Equal(t, 1, failed)
	assert.Equal(t, []string{"r1", "r2", "r3"}, ch.attempted, "failure must not abort the batch")
	assert.Equal(t, []string{"r1", "r3"}, ch.sent)
}

func TestSendAll_InsertsExactlyNMinusOneDelays(t *testing.T) {
	d, slept := newTestDispatcher(2 * time.Second)
	ch := &fakeChannel{}

	_, _, err := d.SendAll(context.Background(), ch, "shot.png", "c", []string{"a", "b", "c"})
	require.NoError(t, err)

	require.Len(t, *slept, 2, "delay after every send except the last")
	for _, dur := range *slept {
		assert.Equal(t, 2*time.Second, dur)
	}
}

func TestSendAll_SingleRecipientNoDelay(t *testing.T) {
	d, slept := newTestDispatcher(2 * time.Second)

	ok, failed, err := d.SendAll(context.Background(), &fakeChannel{}, "shot.png", "c", []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, 1, ok)
	assert.Equal(t, 0, failed)
	assert.Empty(t, *slept)
}

func TestSendAll_AllFailuresStillAttemptEveryone(t *testing.T) {
	d, _ := newTestDispatcher(0)
	ch := &fakeChannel{failFor: map[string]error{
		"a": errors.New("x"), "b": errors.New("y"), "c": errors.New("z"),
	}}

	ok, failed, err := d.SendAll(context.Background(), ch, "shot.png", "c", []string{"a", "b", "c"})
	require.NoError(t, err, "partial (even total) delivery failure is not a dispatch error")
	assert.Equal(t, 0, ok)
	assert.Equal(t, 3, failed)
	assert.Len(t, ch.attempted, 3)
}

func TestSendAll_OpenFailurePropagates(t *testing.T) {
	d, _ := newTestDispatcher(0)
	ch := &fakeChannel{openErr: errors.New("browser did not start")}

	ok, failed, err := d.SendAll(context.Background(), ch, "shot.png", "c", []string{"a", "b"})
	require.Error(t, err, "channel infrastructure failure aborts the pass")
	assert.Equal(t, 0, ok)
	assert.Equal(t, 0, failed)
	assert.Empty(t, ch.attempted)
	assert.Equal(t, 0, ch.closed, "a channel that never opened is not closed")
}

func TestSendAll_ClosesChannelAfterPass(t *testing.T) {
	d, _ := newTestDispatcher(0)
	ch := &fakeChannel{}

	_, _, err := d.SendAll(context.Background(), ch, "shot.png", "c", []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, 1, ch.opened)
	assert.Equal(t, 1, ch.closed)
}

func TestSendAll_NoRecipients(t *testing.T) {
	d, _ := newTestDispatcher(0)
	ch := &fakeChannel{}

	ok, failed, err := d.SendAll(context.Background(), ch, "shot.png", "c", nil)
	require.NoError(t, err)
	assert.Zero(t, ok)
	assert.Zero(t, failed)
	assert.Equal(t, 0, ch.opened, "nothing to deliver, channel untouched")
}

func TestOutcomeFailed(t *testing.T) {
	assert.False(t, Outcome{Recipient: "r"}.Failed())
	assert.True(t, Outcome{Recipient: "r", Err: errors.New("no")}.Failed())
}
