package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thongnm19089/share-fb/internal/models"
)

var testStart = time.Date(2024, 5, 10, 13, 0, 0, 0, time.UTC)

func record(url string, likes int64) models.PostRecord {
	return models.NewPostRecord("t1", url, models.PostFields{Likes: likes})
}

// runRegistrySuite 所有后端共用的行为测试
func runRegistrySuite(t *testing.T, r Registry, clk *testclock.Clock) {
	ctx := context.Background()

	t.Run("新任务处于执行中且进度为0", func(t *testing.T) {
		job, err := r.Create(ctx, "t1")
		require.NoError(t, err)
		assert.NotEmpty(t, job.ID)
		assert.Equal(t, models.JobRunning, job.Status)
		assert.Equal(t, 0, job.Progress)
		assert.Empty(t, job.Results)

		got, err := r.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, "t1", got.TargetID)
	})

	t.Run("未知任务返回ErrJobNotFound", func(t *testing.T) {
		_, err := r.Get(ctx, "missing")
		assert.True(t, errors.Is(err, models.ErrJobNotFound))
		assert.True(t, errors.Is(r.SetProgress(ctx, "missing", 10), models.ErrJobNotFound))
	})

	t.Run("进度单调不减并限制在0到100", func(t *testing.T) {
		job, err := r.Create(ctx, "t1")
		require.NoError(t, err)

		steps := []struct {
			set  int
			want int
		}{
			{set: 30, want: 30},
			{set: 20, want: 30},
			{set: 150, want: 100},
			{set: -5, want: 100},
		}
		for _, s := range steps {
			require.NoError(t, r.SetProgress(ctx, job.ID, s.set))
			got, err := r.Get(ctx, job.ID)
			require.NoError(t, err)
			assert.Equal(t, s.want, got.Progress, "设置 %d", s.set)
		}
	})

	t.Run("完成后结果替换为排序结果且不再变化", func(t *testing.T) {
		job, err := r.Create(ctx, "t1")
		require.NoError(t, err)
		require.NoError(t, r.AppendResult(ctx, job.ID, record("https://fb.test/a", 1)))
		require.NoError(t, r.AppendResult(ctx, job.ID, record("https://fb.test/b", 9)))

		ranked := []models.PostRecord{record("https://fb.test/b", 9), record("https://fb.test/a", 1)}
		require.NoError(t, r.Complete(ctx, job.ID, ranked))

		// 终止后的修改被忽略
		require.NoError(t, r.AppendResult(ctx, job.ID, record("https://fb.test/c", 5)))
		require.NoError(t, r.Fail(ctx, job.ID, models.JobError, "late"))

		got, err := r.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, models.JobCompleted, got.Status)
		assert.Equal(t, 100, got.Progress)
		assert.Empty(t, got.Error)
		require.Len(t, got.Results, 2)
		assert.Equal(t, "https://fb.test/b", got.Results[0].URL)
	})

	t.Run("失败保留已追加的结果", func(t *testing.T) {
		job, err := r.Create(ctx, "t1")
		require.NoError(t, err)
		require.NoError(t, r.SetProgress(ctx, job.ID, 40))
		require.NoError(t, r.AppendResult(ctx, job.ID, record("https://fb.test/a", 1)))
		require.NoError(t, r.Fail(ctx, job.ID, models.JobError, "需要登录"))

		got, err := r.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, models.JobError, got.Status)
		assert.Equal(t, "需要登录", got.Error)
		assert.Equal(t, 40, got.Progress)
		assert.Len(t, got.Results, 1)
	})

	t.Run("取消状态被保留, 其他状态按错误处理", func(t *testing.T) {
		a, err := r.Create(ctx, "t1")
		require.NoError(t, err)
		require.NoError(t, r.Fail(ctx, a.ID, models.JobCancelled, "cancelled"))
		b, err := r.Create(ctx, "t1")
		require.NoError(t, err)
		require.NoError(t, r.Fail(ctx, b.ID, models.JobRunning, "x"))

		ga, _ := r.Get(ctx, a.ID)
		gb, _ := r.Get(ctx, b.ID)
		assert.Equal(t, models.JobCancelled, ga.Status)
		assert.Equal(t, models.JobError, gb.Status)
	})

	t.Run("读取返回副本", func(t *testing.T) {
		job, err := r.Create(ctx, "t1")
		require.NoError(t, err)
		require.NoError(t, r.AppendResult(ctx, job.ID, record("https://fb.test/a", 1)))

		got, _ := r.Get(ctx, job.ID)
		got.Results[0].URL = "changed"
		again, _ := r.Get(ctx, job.ID)
		assert.Equal(t, "https://fb.test/a", again.Results[0].URL)
	})

	t.Run("并发追加不丢失结果", func(t *testing.T) {
		job, err := r.Create(ctx, "t1")
		require.NoError(t, err)

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				assert.NoError(t, r.AppendResult(ctx, job.ID, record(fmt.Sprintf("https://fb.test/%d", i), int64(i))))
				assert.NoError(t, r.SetProgress(ctx, job.ID, i*10))
			}(i)
		}
		wg.Wait()

		got, err := r.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Len(t, got.Results, 8)
		assert.Equal(t, 70, got.Progress)
	})

	t.Run("清理只删除早于截止时间的终止任务", func(t *testing.T) {
		done, err := r.Create(ctx, "prune")
		require.NoError(t, err)
		require.NoError(t, r.Complete(ctx, done.ID, nil))
		running, err := r.Create(ctx, "prune")
		require.NoError(t, err)

		clk.Advance(2 * time.Hour)
		_, err = r.Prune(ctx, clk.Now().Add(-time.Hour))
		require.NoError(t, err)

		_, err = r.Get(ctx, done.ID)
		assert.True(t, errors.Is(err, models.ErrJobNotFound))
		_, err = r.Get(ctx, running.ID)
		assert.NoError(t, err)
	})
}

func TestMemoryRegistry(t *testing.T) {
	clk := testclock.NewClock(testStart)
	runRegistrySuite(t, NewMemoryRegistry(clk), clk)
}

func TestRedisRegistry(t *testing.T) {
	addr := os.Getenv("HOTPOST_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("未设置 HOTPOST_TEST_REDIS_ADDR")
	}
	r, err := NewRedisRegistry(Config{Backend: "redis", RedisAddr: addr, RedisDB: 15, TTL: time.Hour})
	require.NoError(t, err)
	defer r.Close()
	require.NoError(t, r.Client().FlushDB(context.Background()).Err())

	clk := testclock.NewClock(testStart)
	r.clock = clk
	runRegistrySuite(t, r, clk)
}

func TestOpen(t *testing.T) {
	r, err := Open(Config{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryRegistry{}, r)

	_, err = Open(Config{Backend: "etcd"})
	assert.Error(t, err)
}
