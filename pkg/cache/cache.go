package cache

import (
	"container/list"
	"sync"
	"time"
)

// Cache 进程内 LRU + TTL 缓存
// 容量满时淘汰最久未访问的条目；过期条目在 Get 时按未命中处理并立即淘汰
// 所有方法并发安全
type Cache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration // 默认 TTL（Set 未指定时使用）

	entries map[string]*list.Element
	order   *list.List // 头部为最近访问

	hits      uint64
	misses    uint64
	evictions uint64

	now func() time.Time // 可注入时钟，便于测试
}

// entry 单个缓存条目
type entry struct {
	key       string
	value     interface{}
	expiresAt time.Time
}

// Stats 缓存统计快照
type Stats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
	Size      int    `json:"size"`
}

const defaultCapacity = 1000

// New 创建指定容量的缓存实例
// capacity <= 0 时使用默认容量 1000
func New(capacity int, defaultTTL time.Duration) *Cache {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Cache{
		capacity: capacity,
		ttl:      defaultTTL,
		entries:  make(map[string]*list.Element, capacity),
		order:    list.New(),
		now:      time.Now,
	}
}

// Get 查询缓存
// 过期条目计为未命中并淘汰，绝不返回过期值
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}

	ent := el.Value.(*entry)
	if !c.now().Before(ent.expiresAt) {
		// 已过期：淘汰并按未命中处理
		c.removeLocked(el)
		c.misses++
		c.evictions++
		return nil, false
	}

	c.order.MoveToFront(el)
	c.hits++
	return ent.value, true
}

// Set 写入缓存
// ttl 原样生效：ttl = 0 的条目写入即过期，下一次 Get 必然未命中
// 超出容量时淘汰最久未访问条目
func (c *Cache) Set(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(ttl)

	if el, ok := c.entries[key]; ok {
		ent := el.Value.(*entry)
		ent.value = value
		ent.expiresAt = expiresAt
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&entry{key: key, value: value, expiresAt: expiresAt})
	c.entries[key] = el

	if c.order.Len() > c.capacity {
		// 淘汰链表尾部（最久未访问）
		oldest := c.order.Back()
		if oldest != nil {
			c.removeLocked(oldest)
			c.evictions++
		}
	}
}

// SetDefault 以默认 TTL 写入缓存
func (c *Cache) SetDefault(key string, value interface{}) {
	c.Set(key, value, c.ttl)
}

// Delete 删除指定键，键不存在时为空操作
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.removeLocked(el)
	}
}

// Stats 返回当前统计快照
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Size:      c.order.Len(),
	}
}

// removeLocked 从索引和链表中移除条目（需持有锁）
func (c *Cache) removeLocked(el *list.Element) {
	ent := el.Value.(*entry)
	delete(c.entries, ent.key)
	c.order.Remove(el)
}
