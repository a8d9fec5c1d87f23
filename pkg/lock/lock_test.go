package lock

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLockExcludesSecondHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gate.lock")
	l := NewFile(path)

	unlock, err := l.Lock(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	_, err = NewFile(path).Lock(ctx)
	require.Error(t, err)

	unlock()

	unlock2, err := NewFile(path).Lock(context.Background())
	require.NoError(t, err)
	unlock2()
}

func TestRedisLockAcquireAndRelease(t *testing.T) {
	db, mock := redismock.NewClientMock()
	l := NewRedis(db, "signal:gate", 5*time.Second)
	l.token = func() string { return "tok-1" }

	mock.ExpectSetNX("signal:gate", "tok-1", 5*time.Second).SetVal(true)
	mock.ExpectEval(releaseScript, []string{"signal:gate"}, "tok-1").SetVal(int64(1))

	unlock, err := l.Lock(context.Background())
	require.NoError(t, err)
	unlock()

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLockRetriesUntilFree(t *testing.T) {
	db, mock := redismock.NewClientMock()
	l := NewRedis(db, "signal:gate", time.Second)
	l.token = func() string { return "tok-2" }

	mock.ExpectSetNX("signal:gate", "tok-2", time.Second).SetVal(false)
	mock.ExpectSetNX("signal:gate", "tok-2", time.Second).SetVal(true)
	mock.ExpectEval(releaseScript, []string{"signal:gate"}, "tok-2").SetVal(int64(1))

	unlock, err := l.Lock(context.Background())
	require.NoError(t, err)
	unlock()

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLockGivesUpOnContext(t *testing.T) {
	db, mock := redismock.NewClientMock()
	l := NewRedis(db, "signal:gate", time.Second)
	l.token = func() string { return "tok-3" }

	mock.ExpectSetNX("signal:gate", "tok-3", time.Second).SetVal(false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := l.Lock(ctx)
	assert.Error(t, err)
}

func TestRedisLockRenew(t *testing.T) {
	db, mock := redismock.NewClientMock()
	l := NewRedis(db, "signal:gate", 30*time.Second)

	mock.ExpectEval(renewScript, []string{"signal:gate"}, "tok-4", int64(30000)).SetVal(int64(1))
	mock.ExpectEval(renewScript, []string{"signal:gate"}, "tok-4", int64(30000)).SetVal(int64(0))

	ok, err := l.renew("tok-4")
	require.NoError(t, err)
	assert.True(t, ok)

	// ключ перехвачен другим владельцем
	ok, err = l.renew("tok-4")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLockKeepsAliveWhileHeld(t *testing.T) {
	db, mock := redismock.NewClientMock()
	l := NewRedis(db, "signal:gate", time.Second)
	l.renewEvery = 20 * time.Millisecond
	l.token = func() string { return "tok-5" }

	mock.ExpectSetNX("signal:gate", "tok-5", time.Second).SetVal(true)
	// после потери ключа продление прекращается
	mock.ExpectEval(renewScript, []string{"signal:gate"}, "tok-5", int64(1000)).SetVal(int64(0))
	mock.ExpectEval(releaseScript, []string{"signal:gate"}, "tok-5").SetVal(int64(0))

	unlock, err := l.Lock(context.Background())
	require.NoError(t, err)
	time.Sleep(150 * time.Millisecond)
	unlock()

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithWaitBoundsAcquisition(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gate.lock")
	unlock, err := NewFile(path).Lock(context.Background())
	require.NoError(t, err)
	defer unlock()

	l := WithWait(NewFile(path), 100*time.Millisecond)
	start := time.Now()
	_, err = l.Lock(context.Background())
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestWithWaitZeroIsPassThrough(t *testing.T) {
	assert.Equal(t, Locker(Nop{}), WithWait(Nop{}, 0))
}
