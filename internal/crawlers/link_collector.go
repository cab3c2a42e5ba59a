package crawlers

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/juju/clock"

	"github.com/thongnm19089/share-fb/internal/browser"
	"github.com/thongnm19089/share-fb/internal/models"
	"github.com/thongnm19089/share-fb/internal/normalize"
	"github.com/thongnm19089/share-fb/internal/utils"
)

// StepFunc 每完成一步滚动后回调, step 从1开始
type StepFunc func(step, maxSteps int)

// StopReason 收集结束原因
type StopReason string

const (
	StopMaxScrolls StopReason = "max_scrolls"
	StopPlateau    StopReason = "plateau"
	StopStale      StopReason = "stale_streak"
	StopScanFailed StopReason = "scan_failed"
)

// LinkCollector 在动态信息流中滚动并收集候选帖子链接
type LinkCollector struct {
	settings models.CrawlSettings
	clock    clock.Clock
}

// NewLinkCollector 创建收集器
func NewLinkCollector(settings models.CrawlSettings, clk clock.Clock) *LinkCollector {
	if clk == nil {
		clk = clock.WallClock
	}
	return &LinkCollector{settings: settings, clock: clk}
}

// Collect 滚动信息流, 返回按发现顺序去重后的候选及结束原因
//
// 每一步: 滚动 → 等待 → 扫描 a[href]. 以下任一条件满足即停止:
// 达到最大滚动次数, 连续若干步没有新链接, 连续若干个过期链接.
// 扫描失败只截断循环, 已收集的候选照常返回; 只有会话丢失和取消会返回错误.
// 收集器不保存单次收集的状态, 可被多个任务并发使用.
func (lc *LinkCollector) Collect(ctx context.Context, session browser.Session, feedURL string, onStep StepFunc) ([]models.Candidate, StopReason, error) {
	base, err := url.Parse(feedURL)
	if err != nil {
		return nil, "", fmt.Errorf("信息流地址无效: %w", err)
	}

	queue := NewCandidateQueue()
	s := lc.settings
	plateau, stale := 0, 0
	stop := StopMaxScrolls

	for step := 1; step <= s.MaxScrolls; step++ {
		if err := ctx.Err(); err != nil {
			return queue.Items(), "", err
		}

		if err := session.ScrollBy(ctx, s.ScrollAmount); err != nil {
			if fatal(ctx, err) {
				return queue.Items(), "", err
			}
			utils.Warnf("滚动失败, 停止收集: %v", err)
			stop = StopScanFailed
			break
		}
		if err := sleep(ctx, lc.clock, s.ScrollPause); err != nil {
			return queue.Items(), "", err
		}

		anchors, err := session.Locate(ctx, "a[href]")
		if err != nil {
			if fatal(ctx, err) {
				return queue.Items(), "", err
			}
			utils.Warnf("扫描链接失败, 停止收集: %v", err)
			stop = StopScanFailed
			break
		}

		added, staleStop := 0, false
		for _, a := range anchors {
			href, ok, err := a.Attribute("href")
			if err != nil {
				if errors.Is(err, browser.ErrSessionLost) {
					return queue.Items(), "", err
				}
				continue
			}
			if !ok || !IsPostLink(href) {
				continue
			}
			link, ok := NormalizeLink(base, href)
			if !ok {
				continue
			}

			label := anchorLabel(a, s.LabelMaxRunes)
			var tr normalize.TimeResult
			if label != "" {
				tr = normalize.NormalizeTime(label, lc.clock.Now())
			}

			if queue.Seen(link) {
				// 同一帖子的另一个锚点可能带有时间标签
				existing, queued := queue.Get(link)
				if !queued || existing.PostedAt != nil || !tr.HasInstant {
					continue
				}
				if !tr.Recent {
					queue.Remove(link)
					if stale++; stale >= s.StaleStreak {
						staleStop = true
						break
					}
					continue
				}
				stale = 0
				at := tr.At
				existing.Label, existing.PostedAt = label, &at
				queue.Update(existing)
				continue
			}

			if tr.HasInstant && !tr.Recent {
				queue.MarkSeen(link)
				if stale++; stale >= s.StaleStreak {
					staleStop = true
					break
				}
				continue
			}

			c := models.Candidate{URL: link, Label: label}
			if tr.HasInstant {
				stale = 0
				at := tr.At
				c.PostedAt = &at
			}
			if queue.Push(c) {
				added++
			}
		}

		if onStep != nil {
			onStep(step, s.MaxScrolls)
		}
		utils.Debugf("滚动第%d步: 新增%d个链接, 共%d个", step, added, queue.Len())

		if staleStop {
			stop = StopStale
			break
		}
		if added == 0 {
			if plateau++; plateau >= s.PlateauSteps {
				stop = StopPlateau
				break
			}
		} else {
			plateau = 0
		}
	}

	items := queue.Items()
	utils.Infof("🔗 链接收集完成: %d 个候选 (结束原因: %s)", len(items), stop)
	return items, stop, nil
}

// anchorLabel 锚点的短标签: 优先文本, 其次 aria-label, 超过长度上限视为无标签
func anchorLabel(a browser.Element, maxRunes int) string {
	short := func(s string) bool {
		return s != "" && utf8.RuneCountInString(s) <= maxRunes
	}
	if text, err := a.Text(); err == nil {
		if text = strings.TrimSpace(text); short(text) {
			return text
		}
	}
	if aria, ok, err := a.Attribute("aria-label"); err == nil && ok {
		if aria = strings.TrimSpace(aria); short(aria) {
			return aria
		}
	}
	return ""
}

// fatal 会话丢失或上下文结束时不能继续
func fatal(ctx context.Context, err error) bool {
	return errors.Is(err, browser.ErrSessionLost) || ctx.Err() != nil
}

// sleep 按时钟等待, 可被取消
func sleep(ctx context.Context, clk clock.Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-clk.After(d):
		return nil
	}
}
