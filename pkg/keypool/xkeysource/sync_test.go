package xkeysource

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// stopSyncer 停止 Syncer 并等待正在执行的同步结束
func stopSyncer(t *testing.T, s *Syncer) {
	t.Helper()
	select {
	case <-s.Stop().Done():
	case <-time.After(5 * time.Second):
		t.Fatal("timed out stopping syncer")
	}
}

func TestNewSyncer_Validation(t *testing.T) {
	pool := newPool(t)

	_, err := NewSyncer("@every 1m", nil, []Source{Static("a")})
	assert.ErrorIs(t, err, ErrNilPool)

	_, err = NewSyncer("@every 1m", pool, nil)
	assert.ErrorIs(t, err, ErrNilSource)

	_, err = NewSyncer("@every 1m", pool, []Source{nil})
	assert.ErrorIs(t, err, ErrNilSource)

	_, err = NewSyncer("not a schedule", pool, []Source{Static("a")})
	assert.ErrorIs(t, err, ErrInvalidSchedule)

	// 默认解析器不支持秒字段
	_, err = NewSyncer("*/5 * * * * *", pool, []Source{Static("a")})
	assert.ErrorIs(t, err, ErrInvalidSchedule)

	s, err := NewSyncer("*/5 * * * * *", pool, []Source{Static("a")}, WithSeconds(), WithLocation(time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "*/5 * * * * *", s.Spec())
	stopSyncer(t, s)
}

func TestSyncer_SyncNow(t *testing.T) {
	pool := newPool(t)
	onLoad, loads := captureLoads()

	s, err := NewSyncer("@every 1h", pool, []Source{Static("a", "b")}, WithOnLoad(onLoad))
	require.NoError(t, err)
	t.Cleanup(func() { stopSyncer(t, s) })

	added, err := s.SyncNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, added)
	assert.Equal(t, 2, waitLoad(t, loads).added)

	added, err = s.SyncNow(context.Background())
	require.NoError(t, err)
	assert.Zero(t, added)

	//nolint:staticcheck // 测试 nil context
	_, err = s.SyncNow(nil)
	assert.ErrorIs(t, err, ErrNilContext)
}

func TestSyncer_Scheduled(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := NewMockSource(ctrl)
	src.EXPECT().Name().Return("mock").AnyTimes()
	gomock.InOrder(
		src.EXPECT().Keys(gomock.Any()).Return(nil, errors.New("not ready")),
		src.EXPECT().Keys(gomock.Any()).Return([]string{"k1", "k2"}, nil).MinTimes(1),
	)

	pool := newPool(t)
	onLoad, loads := captureLoads()
	s, err := NewSyncer("@every 1s", pool, []Source{src}, WithOnLoad(onLoad))
	require.NoError(t, err)
	s.Start()
	s.Start()

	first := waitLoad(t, loads)
	assert.ErrorIs(t, first.err, ErrLoadFailed)

	second := waitLoad(t, loads)
	require.NoError(t, second.err)
	assert.Equal(t, 2, second.added)
	assert.Equal(t, 2, pool.Len())

	stopSyncer(t, s)
}
