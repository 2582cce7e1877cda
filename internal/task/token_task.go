package task

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/Souid83/Gestion-Stock-sub001/internal/model"
	"github.com/Souid83/Gestion-Stock-sub001/internal/repository"
	"github.com/Souid83/Gestion-Stock-sub001/internal/service"

	"github.com/robfig/cron/v3"
)

type TokenTask struct {
	AccountRepo repository.AccountRepository
	TokenRepo   repository.TokenRepository
	AuthService *service.AuthService
	Cron        *cron.Cron

	// 控制并发刷新的数量，防止把平台限流打满
	concurrencyLimit int
	sleepTime        time.Duration

	// 提前多久续期，留出批量任务的执行窗口
	refreshHorizon time.Duration
}

func NewTokenTask(accountRepo repository.AccountRepository, tokenRepo repository.TokenRepository, authService *service.AuthService) *TokenTask {
	return &TokenTask{
		AccountRepo:      accountRepo,
		TokenRepo:        tokenRepo,
		AuthService:      authService,
		Cron:             cron.New(cron.WithSeconds()), // 支持秒级控制
		concurrencyLimit: 50,                           // 稍微调低并发，给其他业务让路
		sleepTime:        50 * time.Millisecond,        // 每个协程启动间隔，平滑波峰
		refreshHorizon:   90 * time.Minute,
	}
}

// Start 启动定时任务
func (t *TokenTask) Start() {
	// 首次执行
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		log.Println("[Task] 服务启动，正在执行首次 Token 检查...")
		t.refreshJob(ctx)
	}()

	// 定时策略
	_, err := t.Cron.AddFunc("0 0/40 * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		t.refreshJob(ctx)
	})

	if err != nil {
		log.Fatalf("无法启动 Token 定时任务: %v", err)
	}

	t.Cron.Start()
	log.Println("Token 保活任务已启动 (每40分钟检查一次)")
}

// 自动刷新逻辑
func (t *TokenTask) refreshJob(ctx context.Context) {
	tokens, err := t.TokenRepo.ListExpiring(ctx, t.refreshHorizon)
	if err != nil {
		log.Printf("[Cron] Token 过期状态查询失败: %v", err)
		return
	}

	// 1. 定义信号量通道，容量即为并发上限
	sem := make(chan struct{}, t.concurrencyLimit)
	var wg sync.WaitGroup

	log.Printf("[Cron] 开始处理 %d 个账号的 Token 刷新，并发上限: %d", len(tokens), t.concurrencyLimit)

	for _, token := range tokens {
		// 检查上下文是否已取消（超时处理）
		select {
		case <-ctx.Done():
			log.Println("[Cron] 任务超时停止")
			return
		default:
		}

		// 2. 获取信号量（如果已满则阻塞在此，起到限流作用）
		sem <- struct{}{}
		wg.Add(1)

		// 3. 平滑波峰
		time.Sleep(t.sleepTime)

		go func(tok model.OAuthToken) {
			defer wg.Done()
			defer func() { <-sem }() // 任务结束释放信号量

			account, err := t.AccountRepo.GetByID(ctx, tok.AccountID)
			if err != nil || account == nil || !account.IsActive {
				return
			}

			// 刷新失败返回 (nil, nil)，只记日志不中断其他协程
			if refreshed, _ := t.AuthService.RefreshAccessToken(ctx, account); refreshed == nil {
				log.Printf("[Cron] 账号 [%d] 刷新失败", account.ID)
			}
		}(token)
	}

	// 4. 等待所有 Goroutine 完成
	wg.Wait()
	log.Println("[Cron] 本轮 Token 刷新任务完成")
}
