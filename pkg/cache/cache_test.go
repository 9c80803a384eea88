package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

// ── 基础读写 ──

func TestCache_SetGet(t *testing.T) {
	c := New(10, time.Minute)

	c.Set("k1", "v1", time.Minute)

	v, ok := c.Get("k1")
	if !ok {
		t.Fatal("Get 应命中")
	}
	if v.(string) != "v1" {
		t.Errorf("期望 v1，实际 %v", v)
	}
}

func TestCache_GetMissing(t *testing.T) {
	c := New(10, time.Minute)

	if _, ok := c.Get("absent"); ok {
		t.Error("不存在的键不应命中")
	}

	stats := c.Stats()
	if stats.Misses != 1 {
		t.Errorf("期望 Misses=1，实际 %d", stats.Misses)
	}
}

func TestCache_Delete(t *testing.T) {
	c := New(10, time.Minute)

	c.Set("k1", "v1", time.Minute)
	c.Delete("k1")

	if _, ok := c.Get("k1"); ok {
		t.Error("删除后不应命中")
	}

	// 删除不存在的键不应出错
	c.Delete("absent")
}

// ── TTL 过期 ──

func TestCache_ZeroTTLExpiresImmediately(t *testing.T) {
	c := New(10, time.Minute)

	c.Set("k1", "v1", 0)

	if _, ok := c.Get("k1"); ok {
		t.Error("ttl=0 的条目写入后应立即视为过期")
	}

	stats := c.Stats()
	if stats.Misses != 1 {
		t.Errorf("过期条目应计为未命中，期望 Misses=1，实际 %d", stats.Misses)
	}
	if stats.Size != 0 {
		t.Errorf("过期条目应被淘汰，期望 Size=0，实际 %d", stats.Size)
	}
}

func TestCache_ExpiredEntryEvictedOnGet(t *testing.T) {
	c := New(10, time.Minute)
	base := time.Now()
	c.now = func() time.Time { return base }

	c.Set("k1", "v1", 30*time.Second)

	// 时钟前进越过过期时刻
	c.now = func() time.Time { return base.Add(31 * time.Second) }

	if _, ok := c.Get("k1"); ok {
		t.Error("过期条目不应被返回")
	}

	stats := c.Stats()
	if stats.Evictions != 1 {
		t.Errorf("期望 Evictions=1，实际 %d", stats.Evictions)
	}
}

// ── LRU 淘汰 ──

func TestCache_LRUEvictsLeastRecentlyAccessed(t *testing.T) {
	c := New(3, time.Minute)

	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Minute)
	c.Set("c", 3, time.Minute)

	// 访问 a 使其成为最近使用；b 变为最久未访问
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a 应命中")
	}

	// 插入第 4 个条目，应淘汰 b 而非 a 或 c
	c.Set("d", 4, time.Minute)

	if _, ok := c.Get("b"); ok {
		t.Error("最久未访问的 b 应被淘汰")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("最近访问的 a 不应被淘汰")
	}
	if _, ok := c.Get("d"); !ok {
		t.Error("新插入的 d 应存在")
	}
}

func TestCache_CapacityOverflowEviction(t *testing.T) {
	const capacity = 1000
	c := New(capacity, time.Minute)

	for i := 0; i < capacity; i++ {
		c.Set(fmt.Sprintf("key-%d", i), i, time.Minute)
	}

	// 第 1001 个条目应淘汰最久未访问的 key-0
	c.Set("key-overflow", -1, time.Minute)

	if _, ok := c.Get("key-0"); ok {
		t.Error("超容量插入应淘汰最久未访问的 key-0")
	}
	if _, ok := c.Get("key-999"); !ok {
		t.Error("key-999 不应被淘汰")
	}

	stats := c.Stats()
	if stats.Size != capacity {
		t.Errorf("期望 Size=%d，实际 %d", capacity, stats.Size)
	}
	if stats.Evictions != 1 {
		t.Errorf("期望 Evictions=1，实际 %d", stats.Evictions)
	}
}

func TestCache_UpdateExistingDoesNotEvict(t *testing.T) {
	c := New(2, time.Minute)

	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Minute)
	c.Set("a", 10, time.Minute) // 覆盖写，不应触发淘汰

	if _, ok := c.Get("b"); !ok {
		t.Error("覆盖已有键不应淘汰其他条目")
	}
	v, _ := c.Get("a")
	if v.(int) != 10 {
		t.Errorf("期望覆盖后值为 10，实际 %v", v)
	}
}

// ── 统计 ──

func TestCache_Stats(t *testing.T) {
	c := New(10, time.Minute)

	c.Set("k1", "v1", time.Minute)
	c.Get("k1")     // hit
	c.Get("absent") // miss

	stats := c.Stats()
	if stats.Hits != 1 {
		t.Errorf("期望 Hits=1，实际 %d", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("期望 Misses=1，实际 %d", stats.Misses)
	}
	if stats.Size != 1 {
		t.Errorf("期望 Size=1，实际 %d", stats.Size)
	}
}

// ── 并发安全 ──

func TestCache_ConcurrentAccess(t *testing.T) {
	c := New(100, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("key-%d", j%50)
				c.Set(key, n*1000+j, time.Minute)
				c.Get(key)
				if j%10 == 0 {
					c.Delete(key)
				}
			}
		}(i)
	}
	wg.Wait()

	// 并发后统计应自洽：容量不超限
	stats := c.Stats()
	if stats.Size > 100 {
		t.Errorf("Size 不应超过容量 100，实际 %d", stats.Size)
	}
}
