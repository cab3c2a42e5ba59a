// Package crawlers 实现热门帖子的发现与详情提取
//
// # 核心组件
//
// ## LinkCollector
//
// 在信息流页面中反复 滚动 → 等待 → 扫描 a[href], 按发现顺序收集帖子链接.
// 链接旁的短标签(文本或 aria-label)经时间规范化后决定是否保留:
//   - 最近窗口内: 保留并记录发布时间, 过期计数清零
//   - 有时间但已过期: 丢弃, 过期计数+1
//   - 无标签或无法解析: 保留, 不带时间
//
// 以下任一条件满足即停止: 达到 crawl.max_scrolls, 连续 crawl.plateau_steps
// 步没有新链接, 连续 crawl.stale_streak 个过期链接.
//
//	lc := NewLinkCollector(settings, clock.WallClock)
//	candidates, stop, err := lc.Collect(ctx, session, feedURL, onStep)
//
// ## DetailExtractor
//
// 打开单个候选, 在详情弹窗(没有弹窗时为整个文档)内按策略链提取字段.
// 每个字段是一组有序的 Strategy, 第一个成功的结果生效:
//
//   - 发布时间: 机器时间戳 → 短标签 → 全文时间短语
//   - 正文: 预览消息容器 → 最长的 dir=auto 文本
//   - 点赞/评论/分享: aria-label → 结构提示 → 全文模式
//
// 无法确定发布时间的候选返回 (nil, nil).
//
//	de := NewDetailExtractor(settings, clock.WallClock)
//	detail, err := de.Extract(ctx, session, candidate, time.Now())
//
// # 错误处理
//
// 元素和选择器错误在策略内部忽略. 只有 browser.ErrSessionLost 和上下文取消
// 会中断收集或提取.
package crawlers
