package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Souid83/Gestion-Stock-sub001/internal/model"
	"github.com/Souid83/Gestion-Stock-sub001/internal/repository"
	"github.com/Souid83/Gestion-Stock-sub001/pkg/ebay"
	"github.com/Souid83/Gestion-Stock-sub001/pkg/secret"
)

// ==================== 测试辅助 ====================

func setupMigrationTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("连接测试数据库失败: %v", err)
	}

	db.AutoMigrate(&model.MarketplaceAccount{}, &model.ProviderCredential{}, &model.OAuthToken{}, &model.SyncLog{})
	return db
}

// migrationTestEnv 一套完整的迁移测试环境
type migrationTestEnv struct {
	db      *gorm.DB
	account *model.MarketplaceAccount
	token   *model.OAuthToken
	service *MigrationService
}

// newMigrationTestEnv 建库 + 种一个带凭证和 Token 的账号
// server 为空时业务地址留给调用方自己设
func newMigrationTestEnv(t *testing.T, server *httptest.Server, cfg *MigrationConfig) *migrationTestEnv {
	db := setupMigrationTestDB(t)
	key := migrationTestKey()

	secretCipher, secretIV, err := secret.Encrypt("test_client_secret", key)
	if err != nil {
		t.Fatalf("加密 client_secret 失败: %v", err)
	}
	account := &model.MarketplaceAccount{
		Provider:              model.ProviderEbay,
		Environment:           ebay.EnvSandbox,
		ExternalAccountID:     "seller_001",
		ShopName:              "TestShop",
		ClientID:              "test_client_id",
		ClientSecretEncrypted: secretCipher,
		ClientSecretIV:        secretIV,
		IsActive:              true,
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("创建测试账号失败: %v", err)
	}

	refreshCipher, refreshIV, err := secret.Encrypt("test_refresh_token", key)
	if err != nil {
		t.Fatalf("加密 refresh_token 失败: %v", err)
	}
	token := &model.OAuthToken{
		AccountID:             account.ID,
		AccessToken:           "old_access_token",
		RefreshTokenEncrypted: refreshCipher,
		EncryptionIV:          refreshIV,
		TokenType:             "Bearer",
		ExpiresAt:             time.Now().Add(2 * time.Hour),
	}
	if err := db.Create(token).Error; err != nil {
		t.Fatalf("创建测试 Token 失败: %v", err)
	}

	accounts := repository.NewAccountRepository(db)
	tokens := repository.NewTokenRepository(db)
	syncLogs := repository.NewSyncLogRepository(db)
	credentials := repository.NewCredentialRepository(db)

	auth := NewAuthService(accounts, tokens, credentials, key, "https://example.com/callback")
	svc := NewMigrationService(accounts, tokens, syncLogs, auth, cfg)

	if server != nil {
		svc.APIBase = server.URL
		svc.HTTP = server.Client()
		auth.HTTP = server.Client()
		auth.Endpoints = &ebay.Endpoints{
			AuthURL:    server.URL + "/oauth2/authorize",
			TokenURL:   server.URL + "/identity/v1/oauth2/token",
			APIBaseURL: server.URL,
		}
	}

	return &migrationTestEnv{db: db, account: account, token: token, service: svc}
}

func migrationTestKey() []byte {
	return []byte("0123456789abcdef0123456789abcdef")
}

// itemizedBody 构造逐条明细的成功响应体
func itemizedBody(ids ...string) []byte {
	items := make([]map[string]interface{}, 0, len(ids))
	for _, id := range ids {
		items = append(items, map[string]interface{}{
			"listingId":  id,
			"sku":        "SKU-" + id,
			"offerId":    "OFFER-" + id,
			"statusCode": 200,
		})
	}
	body, _ := json.Marshal(map[string]interface{}{"responses": items})
	return body
}

func localeErrorBody() []byte {
	return []byte(`{"errors":[{"errorId":25709,"domain":"API_INVENTORY","message":"Invalid value for header Accept-Language."}]}`)
}

// ==================== 切批与去重 ====================

func TestPartitionBatches(t *testing.T) {
	ids := make([]string, 120)
	for i := range ids {
		ids[i] = fmt.Sprintf("L%03d", i)
	}

	batches := partitionBatches(ids, 50)
	if len(batches) != 3 {
		t.Fatalf("批次数 = %d, want 3", len(batches))
	}
	if len(batches[0]) != 50 || len(batches[1]) != 50 || len(batches[2]) != 20 {
		t.Errorf("批次大小 = [%d %d %d], want [50 50 20]", len(batches[0]), len(batches[1]), len(batches[2]))
	}
	// 顺序必须保持
	if batches[0][0] != "L000" || batches[2][19] != "L119" {
		t.Error("切批后顺序被打乱")
	}
}

func TestDedupe(t *testing.T) {
	out := dedupe([]string{"a", "b", "a", "", "c", "b"})
	want := []string{"a", "b", "c"}
	if len(out) != len(want) {
		t.Fatalf("去重结果 = %v, want %v", out, want)
	}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("去重结果 = %v, want %v (顺序要保持首次出现)", out, want)
		}
	}
}

// ==================== dry_run ====================

func TestMigrationService_DryRun(t *testing.T) {
	// dry_run 不许打任何网络请求
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	env := newMigrationTestEnv(t, server, nil)

	ids := make([]string, 120)
	for i := range ids {
		ids[i] = fmt.Sprintf("L%03d", i)
	}

	summary, err := env.service.Run(context.Background(), &MigrationInput{
		AccountID:  env.account.ID,
		ListingIDs: ids,
		DryRun:     true,
		BatchSize:  50,
	})
	if err != nil {
		t.Fatalf("dry_run 失败: %v", err)
	}

	if !summary.DryRun {
		t.Error("summary.DryRun 应为 true")
	}
	if summary.Total != 120 {
		t.Errorf("total = %d, want 120", summary.Total)
	}
	if summary.PlannedBatches != 3 {
		t.Errorf("planned_batches = %d, want 3", summary.PlannedBatches)
	}
	if len(summary.SampleBatch) != 50 {
		t.Errorf("sample_batch 大小 = %d, want 50", len(summary.SampleBatch))
	}
	if calls != 0 {
		t.Errorf("dry_run 打了 %d 次网络请求，应为 0", calls)
	}

	// dry_run 也不落审计日志
	var logCount int64
	env.db.Model(&model.SyncLog{}).Count(&logCount)
	if logCount != 0 {
		t.Errorf("dry_run 落了 %d 条审计日志，应为 0", logCount)
	}
}

// ==================== 前置检查 ====================

func TestMigrationService_Preconditions(t *testing.T) {
	env := newMigrationTestEnv(t, nil, nil)

	// 账号不存在
	_, err := env.service.Run(context.Background(), &MigrationInput{AccountID: 9999, ListingIDs: []string{"L1"}})
	if err != ErrAccountNotFound {
		t.Errorf("未知账号应报 ErrAccountNotFound，实际: %v", err)
	}

	// 空 ID 列表
	_, err = env.service.Run(context.Background(), &MigrationInput{AccountID: env.account.ID, ListingIDs: nil})
	if err != ErrNoListingIDs {
		t.Errorf("空列表应报 ErrNoListingIDs，实际: %v", err)
	}

	// Token 占位值视同缺失
	env.db.Model(&model.OAuthToken{}).Where("id = ?", env.token.ID).
		Update("access_token", model.AccessTokenPlaceholder)
	_, err = env.service.Run(context.Background(), &MigrationInput{AccountID: env.account.ID, ListingIDs: []string{"L1"}})
	if err != ErrTokenMissing {
		t.Errorf("占位 Token 应报 ErrTokenMissing，实际: %v", err)
	}
}

// ==================== 逐条明细分类 ====================

func TestMigrationService_ItemizedResults(t *testing.T) {
	// L2 带错误对象，其余成功
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := `{"responses":[
			{"listingId":"L1","sku":"SKU-L1","offerId":"OFFER-L1","statusCode":200},
			{"listingId":"L2","statusCode":500,"errors":[{"errorId":2003,"message":"internal error"}]},
			{"listingID":"L3","sku":"SKU-L3","statusCode":200}
		]}`
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(body))
	}))
	defer server.Close()

	env := newMigrationTestEnv(t, server, nil)

	summary, err := env.service.Run(context.Background(), &MigrationInput{
		AccountID:  env.account.ID,
		ListingIDs: []string{"L1", "L2", "L3"},
	})
	if err != nil {
		t.Fatalf("迁移失败: %v", err)
	}

	if summary.Migrated != 2 || summary.Failed != 1 {
		t.Errorf("migrated/failed = %d/%d, want 2/1", summary.Migrated, summary.Failed)
	}

	byID := make(map[string]MigrationResult)
	for _, r := range summary.Results {
		byID[r.ListingID] = r
	}
	if byID["L1"].Status != MigrateStatusSuccess || byID["L1"].SKU != "SKU-L1" {
		t.Errorf("L1 = %+v, want SUCCESS + SKU-L1", byID["L1"])
	}
	if byID["L2"].Status != MigrateStatusFailed || len(byID["L2"].Errors) == 0 {
		t.Errorf("L2 = %+v, want FAILED 且带错误对象", byID["L2"])
	}
	// listingID 大写变体也要认
	if byID["L3"].Status != MigrateStatusSuccess {
		t.Errorf("L3 = %+v, want SUCCESS (listingID 变体)", byID["L3"])
	}

	// 部分成功 -> 审计口径 retry
	var entry model.SyncLog
	if err := env.db.First(&entry).Error; err != nil {
		t.Fatalf("审计日志缺失: %v", err)
	}
	if entry.Outcome != model.OutcomeRetry {
		t.Errorf("outcome = %s, want retry", entry.Outcome)
	}
	if entry.Operation != model.OperationInventoryMigrate {
		t.Errorf("operation = %s, want inventory_migrate", entry.Operation)
	}
}

// ==================== 无明细响应 ====================

func TestMigrationService_UnitemizedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	// 默认策略：乐观标成功
	env := newMigrationTestEnv(t, server, nil)
	summary, err := env.service.Run(context.Background(), &MigrationInput{
		AccountID:  env.account.ID,
		ListingIDs: []string{"L1", "L2"},
	})
	if err != nil {
		t.Fatalf("迁移失败: %v", err)
	}
	if summary.Migrated != 2 || summary.Failed != 0 {
		t.Errorf("默认策略 migrated/failed = %d/%d, want 2/0", summary.Migrated, summary.Failed)
	}

	// 保守策略：整批失败
	conservative := &MigrationConfig{AssumeSuccessOnUnitemized: false, LocaleFallbacks: []string{"en-US", "fr-FR"}}
	env2 := newMigrationTestEnv(t, server, conservative)
	summary2, err := env2.service.Run(context.Background(), &MigrationInput{
		AccountID:  env2.account.ID,
		ListingIDs: []string{"L1", "L2"},
	})
	if err != nil {
		t.Fatalf("迁移失败: %v", err)
	}
	if summary2.Migrated != 0 || summary2.Failed != 2 {
		t.Errorf("保守策略 migrated/failed = %d/%d, want 0/2", summary2.Migrated, summary2.Failed)
	}
}

// ==================== 401 刷新重试 ====================

func TestMigrationService_TokenRefreshRetry(t *testing.T) {
	var migrateCalls, refreshCalls int
	var bearers []string

	mux := http.NewServeMux()
	mux.HandleFunc(ebay.BulkMigratePath, func(w http.ResponseWriter, r *http.Request) {
		migrateCalls++
		auth := r.Header.Get("Authorization")
		bearers = append(bearers, auth)
		if auth != "Bearer new_access_token" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"errors":[{"errorId":1001,"message":"Invalid access token"}]}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write(itemizedBody("L1"))
	})
	mux.HandleFunc("/identity/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls++
		// eBay 要求 Basic 认证 + refresh_token grant
		user, pass, ok := r.BasicAuth()
		if !ok || user != "test_client_id" || pass != "test_client_secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		r.ParseForm()
		if r.PostForm.Get("grant_type") != "refresh_token" || r.PostForm.Get("refresh_token") != "test_refresh_token" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"new_access_token","expires_in":7200,"token_type":"Bearer"}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	env := newMigrationTestEnv(t, server, nil)

	summary, err := env.service.Run(context.Background(), &MigrationInput{
		AccountID:  env.account.ID,
		ListingIDs: []string{"L1"},
	})
	if err != nil {
		t.Fatalf("迁移失败: %v", err)
	}

	// 恰好一次刷新，同批恰好重发一次
	if refreshCalls != 1 {
		t.Errorf("刷新次数 = %d, want 1", refreshCalls)
	}
	if migrateCalls != 2 {
		t.Errorf("迁移调用次数 = %d, want 2", migrateCalls)
	}
	if len(bearers) == 2 && bearers[1] != "Bearer new_access_token" {
		t.Errorf("重发未携带新 Token: %s", bearers[1])
	}
	if summary.Migrated != 1 {
		t.Errorf("migrated = %d, want 1", summary.Migrated)
	}

	// 新 Token 要字段级覆写进库
	var stored model.OAuthToken
	env.db.First(&stored, env.token.ID)
	if stored.AccessToken != "new_access_token" {
		t.Errorf("库中 access_token = %s, want new_access_token", stored.AccessToken)
	}
	if stored.RefreshTokenEncrypted != env.token.RefreshTokenEncrypted {
		t.Error("refresh_token 不该被改动")
	}
}

func TestMigrationService_MidRunTokenExpiry(t *testing.T) {
	// 120 个 ID 分 3 批，第二批开始旧 Token 失效：
	// 刷新恰好一次，新 Token 要带到第三批，整轮照常跑完
	var migrateCalls, refreshCalls int
	var bearers []string
	var batchSizes []int

	mux := http.NewServeMux()
	mux.HandleFunc(ebay.BulkMigratePath, func(w http.ResponseWriter, r *http.Request) {
		migrateCalls++
		var req ebay.BulkMigrateReq
		json.NewDecoder(r.Body).Decode(&req)
		bearers = append(bearers, r.Header.Get("Authorization"))
		batchSizes = append(batchSizes, len(req.ListingIDs))

		if migrateCalls >= 2 && r.Header.Get("Authorization") != "Bearer new_access_token" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"errors":[{"errorId":1001,"message":"Invalid access token"}]}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write(itemizedBody(req.ListingIDs...))
	})
	mux.HandleFunc("/identity/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls++
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"new_access_token","expires_in":7200,"token_type":"Bearer"}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	env := newMigrationTestEnv(t, server, nil)

	ids := make([]string, 120)
	for i := range ids {
		ids[i] = fmt.Sprintf("L%03d", i)
	}

	summary, err := env.service.Run(context.Background(), &MigrationInput{
		AccountID:  env.account.ID,
		ListingIDs: ids,
		BatchSize:  50,
	})
	if err != nil {
		t.Fatalf("迁移失败: %v", err)
	}

	if summary.BatchesProcessed != 3 {
		t.Errorf("batches_processed = %d, want 3", summary.BatchesProcessed)
	}
	if summary.Migrated != 120 || summary.Failed != 0 {
		t.Errorf("migrated/failed = %d/%d, want 120/0", summary.Migrated, summary.Failed)
	}
	if refreshCalls != 1 {
		t.Errorf("刷新次数 = %d, want 1", refreshCalls)
	}

	// 第一批老 Token，第二批 401 后同批重发，第三批直接用新 Token 不再刷新
	if migrateCalls != 4 {
		t.Fatalf("迁移调用次数 = %d, want 4 (批1 + 批2失败 + 批2重发 + 批3)", migrateCalls)
	}
	if bearers[0] != "Bearer old_access_token" {
		t.Errorf("第一批 Token = %s, want old_access_token", bearers[0])
	}
	if bearers[2] != "Bearer new_access_token" || bearers[3] != "Bearer new_access_token" {
		t.Errorf("新 Token 未带到后续批次: %v", bearers[1:])
	}
	wantSizes := []int{50, 50, 50, 20}
	for i, n := range wantSizes {
		if batchSizes[i] != n {
			t.Errorf("第 %d 次调用批大小 = %d, want %d", i+1, batchSizes[i], n)
		}
	}
}

func TestMigrationService_RefreshFailureFailsBatchOnly(t *testing.T) {
	// 刷新失败：本批 token_expired，运行不中断
	mux := http.NewServeMux()
	mux.HandleFunc(ebay.BulkMigratePath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("/identity/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	env := newMigrationTestEnv(t, server, nil)

	summary, err := env.service.Run(context.Background(), &MigrationInput{
		AccountID:  env.account.ID,
		ListingIDs: []string{"L1", "L2"},
	})
	if err != nil {
		t.Fatalf("运行不该整体报错: %v", err)
	}
	if summary.Failed != 2 {
		t.Errorf("failed = %d, want 2", summary.Failed)
	}
	for _, r := range summary.Results {
		if len(r.Errors) == 0 || r.Errors[0].Message != "token_expired" {
			t.Errorf("结果 %s 应标 token_expired: %+v", r.ListingID, r.Errors)
		}
	}
}

// ==================== 25709 locale 回退 ====================

func TestMigrationService_LocaleFallback(t *testing.T) {
	var locales []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		locale := r.Header.Get("Accept-Language")
		locales = append(locales, locale)
		// en-US 仍报 25709，fr-FR 才放行
		if locale != "fr-FR" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write(localeErrorBody())
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write(itemizedBody("L1"))
	}))
	defer server.Close()

	env := newMigrationTestEnv(t, server, nil)

	summary, err := env.service.Run(context.Background(), &MigrationInput{
		AccountID:  env.account.ID,
		ListingIDs: []string{"L1"},
	})
	if err != nil {
		t.Fatalf("迁移失败: %v", err)
	}

	// 无头 -> en-US -> fr-FR，总共 3 次，封顶
	want := []string{"", "en-US", "fr-FR"}
	if len(locales) != len(want) {
		t.Fatalf("调用序列 = %v, want %v", locales, want)
	}
	for i := range want {
		if locales[i] != want[i] {
			t.Errorf("第 %d 次 Accept-Language = %q, want %q", i+1, locales[i], want[i])
		}
	}
	if summary.Migrated != 1 {
		t.Errorf("migrated = %d, want 1", summary.Migrated)
	}
}

func TestMigrationService_LocaleFallbackExhausted(t *testing.T) {
	// 回退序列用完仍 25709：整批失败，不再加打
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		w.Write(localeErrorBody())
	}))
	defer server.Close()

	env := newMigrationTestEnv(t, server, nil)

	summary, err := env.service.Run(context.Background(), &MigrationInput{
		AccountID:  env.account.ID,
		ListingIDs: []string{"L1"},
	})
	if err != nil {
		t.Fatalf("运行不该整体报错: %v", err)
	}
	if calls != 3 {
		t.Errorf("调用次数 = %d, want 3 (首发 + 两次回退)", calls)
	}
	if summary.Failed != 1 {
		t.Errorf("failed = %d, want 1", summary.Failed)
	}
	if len(summary.Results) == 1 && len(summary.Results[0].Errors) > 0 {
		if summary.Results[0].Errors[0].ErrorID != ebay.ErrIDMissingLocale {
			t.Errorf("失败结果应携带 25709 错误对象: %+v", summary.Results[0].Errors)
		}
	}
}

// ==================== 多批端到端 ====================

func TestMigrationService_MultiBatch(t *testing.T) {
	var batchSizes []int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ebay.BulkMigrateReq
		json.NewDecoder(r.Body).Decode(&req)
		batchSizes = append(batchSizes, len(req.ListingIDs))

		w.WriteHeader(http.StatusOK)
		w.Write(itemizedBody(req.ListingIDs...))
	}))
	defer server.Close()

	env := newMigrationTestEnv(t, server, nil)

	ids := make([]string, 120)
	for i := range ids {
		ids[i] = fmt.Sprintf("L%03d", i)
	}

	summary, err := env.service.Run(context.Background(), &MigrationInput{
		AccountID:  env.account.ID,
		ListingIDs: ids,
		BatchSize:  50,
	})
	if err != nil {
		t.Fatalf("迁移失败: %v", err)
	}

	if summary.BatchesProcessed != 3 {
		t.Errorf("batches_processed = %d, want 3", summary.BatchesProcessed)
	}
	if len(batchSizes) != 3 || batchSizes[0] != 50 || batchSizes[1] != 50 || batchSizes[2] != 20 {
		t.Errorf("批次大小 = %v, want [50 50 20]", batchSizes)
	}
	if summary.Migrated != 120 || summary.Failed != 0 {
		t.Errorf("migrated/failed = %d/%d, want 120/0", summary.Migrated, summary.Failed)
	}

	// 全成 -> 审计口径 ok，metadata 带 run_id
	var entry model.SyncLog
	if err := env.db.First(&entry).Error; err != nil {
		t.Fatalf("审计日志缺失: %v", err)
	}
	if entry.Outcome != model.OutcomeOK {
		t.Errorf("outcome = %s, want ok", entry.Outcome)
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(entry.Metadata, &meta); err != nil {
		t.Fatalf("metadata 解析失败: %v", err)
	}
	if meta["run_id"] == "" || meta["run_id"] == nil {
		t.Error("metadata 缺少 run_id")
	}
}

func TestMigrationService_MaxBatchesCap(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req ebay.BulkMigrateReq
		json.NewDecoder(r.Body).Decode(&req)
		w.WriteHeader(http.StatusOK)
		w.Write(itemizedBody(req.ListingIDs...))
	}))
	defer server.Close()

	env := newMigrationTestEnv(t, server, nil)

	ids := make([]string, 120)
	for i := range ids {
		ids[i] = fmt.Sprintf("L%03d", i)
	}

	summary, err := env.service.Run(context.Background(), &MigrationInput{
		AccountID:  env.account.ID,
		ListingIDs: ids,
		BatchSize:  50,
		MaxBatches: 1,
	})
	if err != nil {
		t.Fatalf("迁移失败: %v", err)
	}
	if calls != 1 || summary.BatchesProcessed != 1 {
		t.Errorf("calls/batches = %d/%d, want 1/1", calls, summary.BatchesProcessed)
	}
	if summary.Migrated != 50 {
		t.Errorf("migrated = %d, want 50", summary.Migrated)
	}
}

// ==================== 批大小钳制 ====================

func TestMigrationService_BatchSizeClamped(t *testing.T) {
	var batchSizes []int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ebay.BulkMigrateReq
		json.NewDecoder(r.Body).Decode(&req)
		batchSizes = append(batchSizes, len(req.ListingIDs))
		w.WriteHeader(http.StatusOK)
		w.Write(itemizedBody(req.ListingIDs...))
	}))
	defer server.Close()

	env := newMigrationTestEnv(t, server, nil)

	ids := make([]string, 60)
	for i := range ids {
		ids[i] = fmt.Sprintf("L%03d", i)
	}

	// 200 超过官方上限 50，必须被钳回
	_, err := env.service.Run(context.Background(), &MigrationInput{
		AccountID:  env.account.ID,
		ListingIDs: ids,
		BatchSize:  200,
	})
	if err != nil {
		t.Fatalf("迁移失败: %v", err)
	}
	for _, size := range batchSizes {
		if size > ebay.BulkMigrateMaxListings {
			t.Errorf("单批大小 %d 超过上限 %d", size, ebay.BulkMigrateMaxListings)
		}
	}
}
