package net

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// ==================== 测试辅助 ====================

// sleepRecorder 记录每次退避时长，避免测试真的睡眠
type sleepRecorder struct {
	slept []time.Duration
}

func (r *sleepRecorder) Sleep(d time.Duration) {
	r.slept = append(r.slept, d)
}

// bodyTracker 包装响应体，统计 Close 调用
type bodyTracker struct {
	io.ReadCloser
	closed *int32
}

func (b *bodyTracker) Close() error {
	atomic.AddInt32(b.closed, 1)
	return b.ReadCloser.Close()
}

// trackingTransport 给每个响应体套上 bodyTracker
type trackingTransport struct {
	base   http.RoundTripper
	issued int32
	closed int32
}

func (t *trackingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if resp != nil {
		atomic.AddInt32(&t.issued, 1)
		resp.Body = &bodyTracker{ReadCloser: resp.Body, closed: &t.closed}
	}
	return resp, err
}

func getFactory(url string) RequestFactory {
	return func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, url, nil)
	}
}

// ==================== 单元测试 ====================

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{200, false},
		{201, false},
		{400, false},
		{401, false},
		{404, false},
		{429, true},
		{500, true},
		{502, true},
		{503, true},
	}

	for _, tt := range tests {
		if got := ShouldRetry(tt.status); got != tt.want {
			t.Errorf("ShouldRetry(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestFetchWithRetry_EventualSuccess(t *testing.T) {
	// 前两次 503，第三次 200，应该总共打 3 次
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	rec := &sleepRecorder{}
	resp, err := FetchWithRetry(context.Background(), server.Client(), getFactory(server.URL), &RetryOptions{
		Sleep: rec.Sleep,
	})
	if err != nil {
		t.Fatalf("FetchWithRetry 失败: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if calls != 3 {
		t.Errorf("调用次数 = %d, want 3", calls)
	}

	// 退避要严格按固定表推进：500ms, 1s
	want := []time.Duration{500 * time.Millisecond, 1000 * time.Millisecond}
	if len(rec.slept) != len(want) {
		t.Fatalf("退避次数 = %d, want %d", len(rec.slept), len(want))
	}
	for i := range want {
		if rec.slept[i] != want[i] {
			t.Errorf("第 %d 次退避 = %v, want %v", i+1, rec.slept[i], want[i])
		}
	}
}

func TestFetchWithRetry_NonRetryableReturnsImmediately(t *testing.T) {
	// 401 不是可重试状态，第一次就该原样返回
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	rec := &sleepRecorder{}
	resp, err := FetchWithRetry(context.Background(), server.Client(), getFactory(server.URL), &RetryOptions{
		Sleep: rec.Sleep,
	})
	if err != nil {
		t.Fatalf("FetchWithRetry 失败: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
	if calls != 1 {
		t.Errorf("调用次数 = %d, want 1", calls)
	}
	if len(rec.slept) != 0 {
		t.Errorf("不可重试状态不该退避，实际退避了 %d 次", len(rec.slept))
	}
}

func TestFetchWithRetry_ExhaustedReturnsLastResponse(t *testing.T) {
	// 一直 500：重试耗尽后要把最后一个响应交回来，而不是报错
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	rec := &sleepRecorder{}
	resp, err := FetchWithRetry(context.Background(), server.Client(), getFactory(server.URL), &RetryOptions{
		Sleep: rec.Sleep,
	})
	if err != nil {
		t.Fatalf("重试耗尽应返回响应而非错误: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
	// 默认 MaxRetries=3：首发 + 3 次重试
	if calls != 4 {
		t.Errorf("调用次数 = %d, want 4", calls)
	}
	// 退避表 [500ms, 1s, 2s] 全部用到
	want := []time.Duration{500 * time.Millisecond, 1000 * time.Millisecond, 2000 * time.Millisecond}
	if len(rec.slept) != len(want) {
		t.Fatalf("退避次数 = %d, want %d", len(rec.slept), len(want))
	}
	for i := range want {
		if rec.slept[i] != want[i] {
			t.Errorf("第 %d 次退避 = %v, want %v", i+1, rec.slept[i], want[i])
		}
	}
}

func TestFetchWithRetry_RetainedBodyClosedOnSuccess(t *testing.T) {
	// 503 后恢复 200：留存的 503 响应体必须被关掉，只有成功响应留给调用方
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("overloaded"))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	transport := &trackingTransport{base: server.Client().Transport}
	client := &http.Client{Transport: transport}

	rec := &sleepRecorder{}
	resp, err := FetchWithRetry(context.Background(), client, getFactory(server.URL), &RetryOptions{
		Sleep: rec.Sleep,
	})
	if err != nil {
		t.Fatalf("FetchWithRetry 失败: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	// 两个响应体都要归还：503 在内部收口，200 由调用方 Close
	if transport.issued != 2 {
		t.Fatalf("发出的响应数 = %d, want 2", transport.issued)
	}
	if transport.closed != transport.issued {
		t.Errorf("关闭的响应体 = %d, want %d (留存的 503 体泄漏了)", transport.closed, transport.issued)
	}
}

func TestFetchWithRetry_NetworkErrorRethrown(t *testing.T) {
	// 地址不可达：每次都抛网络异常，耗尽后返回最后一个错误
	rec := &sleepRecorder{}
	_, err := FetchWithRetry(context.Background(), &http.Client{Timeout: 100 * time.Millisecond},
		getFactory("http://127.0.0.1:1/unreachable"), &RetryOptions{Sleep: rec.Sleep})
	if err == nil {
		t.Fatal("期待网络错误，实际为 nil")
	}
	if len(rec.slept) != 3 {
		t.Errorf("退避次数 = %d, want 3", len(rec.slept))
	}
}

func TestFetchWithRetry_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := FetchWithRetry(ctx, http.DefaultClient, getFactory("http://127.0.0.1:1/"), nil)
	if err == nil {
		t.Fatal("已取消的 context 应直接报错")
	}
}

func TestBackoffFor_OutOfRangeUsesLast(t *testing.T) {
	schedule := []time.Duration{500 * time.Millisecond, time.Second, 2 * time.Second}

	if d := backoffFor(schedule, 0); d != 500*time.Millisecond {
		t.Errorf("attempt 0 = %v, want 500ms", d)
	}
	if d := backoffFor(schedule, 5); d != 2*time.Second {
		t.Errorf("越界取末位 = %v, want 2s", d)
	}
}
