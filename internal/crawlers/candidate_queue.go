package crawlers

import (
	"sync"

	"github.com/thongnm19089/share-fb/internal/models"
)

// CandidateQueue 按发现顺序保存候选帖子, 同一URL只保留一次
type CandidateQueue struct {
	mu    sync.Mutex
	items []models.Candidate
	index map[string]int
	seen  map[string]bool
}

// NewCandidateQueue 创建空队列
func NewCandidateQueue() *CandidateQueue {
	return &CandidateQueue{
		index: make(map[string]int),
		seen:  make(map[string]bool),
	}
}

// Push 追加候选, URL已出现过时返回 false
func (q *CandidateQueue) Push(c models.Candidate) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.seen[c.URL] {
		return false
	}
	q.seen[c.URL] = true
	c.Order = len(q.items)
	q.index[c.URL] = len(q.items)
	q.items = append(q.items, c)
	return true
}

// MarkSeen 标记URL已处理但不加入队列(例如过期链接)
func (q *CandidateQueue) MarkSeen(url string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seen[url] = true
}

// Seen URL是否出现过
func (q *CandidateQueue) Seen(url string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.seen[url]
}

// Get 读取已入队的候选
func (q *CandidateQueue) Get(url string) (models.Candidate, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	i, ok := q.index[url]
	if !ok {
		return models.Candidate{}, false
	}
	return q.items[i], true
}

// Update 更新已入队候选的标签和时间
func (q *CandidateQueue) Update(c models.Candidate) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if i, ok := q.index[c.URL]; ok {
		c.Order = q.items[i].Order
		q.items[i] = c
	}
}

// Remove 移出队列, URL仍视为已出现
func (q *CandidateQueue) Remove(url string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	i, ok := q.index[url]
	if !ok {
		return
	}
	q.items = append(q.items[:i], q.items[i+1:]...)
	delete(q.index, url)
	for j := i; j < len(q.items); j++ {
		q.index[q.items[j].URL] = j
	}
}

// Len 队列长度
func (q *CandidateQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Items 按发现顺序返回候选副本, Order 从0连续编号
func (q *CandidateQueue) Items() []models.Candidate {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]models.Candidate, len(q.items))
	for i, c := range q.items {
		c.Order = i
		out[i] = c
	}
	return out
}
