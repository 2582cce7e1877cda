package net

import (
	"context"
	"io"
	"net/http"
	"time"
)

// ==================== 重试客户端 (通用组件) ====================

// RequestFactory 每次尝试重新构建请求
// body 是一次性的，重试时必须拿到一个全新的 *http.Request
type RequestFactory func() (*http.Request, error)

// DefaultBackoffSchedule 固定退避表，按尝试次数取值
// 不是指数翻倍，是写死的 [500ms, 1s, 2s]，改动会破坏行为兼容
var DefaultBackoffSchedule = []time.Duration{
	500 * time.Millisecond,
	1000 * time.Millisecond,
	2000 * time.Millisecond,
}

// RetryOptions 重试参数
type RetryOptions struct {
	// MaxRetries 首次请求之外的最大重试次数，0 使用默认 3
	MaxRetries int

	// Schedule 退避表，按失败次数索引；越界时取末位
	Schedule []time.Duration

	// Sleep 休眠函数，测试时注入记录器
	Sleep func(time.Duration)
}

func (o *RetryOptions) normalize() {
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if len(o.Schedule) == 0 {
		o.Schedule = DefaultBackoffSchedule
	}
	if o.Sleep == nil {
		o.Sleep = time.Sleep
	}
}

// ShouldRetry 可重试判定：429 或 5xx
// 其他 4xx 是调用方自己的问题，重试纯属浪费配额
func ShouldRetry(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || statusCode >= 500
}

// FetchWithRetry 发送请求并按固定退避表重试
// 语义约定：
//   - 网络异常 / 429 / 5xx 才重试，其余 4xx 第一次就原样返回
//   - 重试耗尽但拿到过响应时，返回最后一个非 OK 响应供调用方检查
//   - 每次尝试都抛异常 (从未拿到响应) 时，返回最后一个错误
func FetchWithRetry(ctx context.Context, client *http.Client, factory RequestFactory, opts *RetryOptions) (*http.Response, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if opts == nil {
		opts = &RetryOptions{}
	}
	opts.normalize()

	var lastResp *http.Response
	var lastErr error

	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		// 上下文取消优先于一切重试
		if err := ctx.Err(); err != nil {
			if lastResp != nil {
				return lastResp, nil
			}
			return nil, err
		}

		req, err := factory()
		if err != nil {
			return nil, err
		}
		req = req.WithContext(ctx)

		resp, err := client.Do(req)
		if err != nil {
			// 网络层失败，记下来继续
			lastErr = err
		} else {
			if !ShouldRetry(resp.StatusCode) {
				// 2xx 正常返回；非重试类 4xx 也直接交回调用方
				// 之前留存的可重试响应体必须收口，否则连接泄漏
				if lastResp != nil {
					drainAndClose(lastResp)
				}
				return resp, nil
			}
			// 可重试状态：丢弃上一个挂着的响应体，保留当前这个
			if lastResp != nil {
				drainAndClose(lastResp)
			}
			lastResp = resp
		}

		if attempt < opts.MaxRetries {
			opts.Sleep(backoffFor(opts.Schedule, attempt))
		}
	}

	// 重试耗尽：优先把最后的响应交出去，其次才是异常
	if lastResp != nil {
		return lastResp, nil
	}
	return nil, lastErr
}

// backoffFor 按尝试序号取退避时长，越界取末位
func backoffFor(schedule []time.Duration, attempt int) time.Duration {
	if attempt < len(schedule) {
		return schedule[attempt]
	}
	return schedule[len(schedule)-1]
}

// drainAndClose 读完并关闭响应体，保证连接可以复用
func drainAndClose(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
