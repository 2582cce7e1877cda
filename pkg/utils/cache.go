package utils

import (
	"sync"
	"time"
)

// stateTTL OAuth state 的有效期，足够完成一次授权跳转往返
const stateTTL = 10 * time.Minute

// 进程内 state 缓存，sync.Map 保证并发安全
var stateCache sync.Map

// stateEntry 内部结构，值带过期时间
type stateEntry struct {
	value      string
	expiration int64
}

// SetCache 暂存授权 state
// key: state 随机串
// value: environment:account_id
func SetCache(key string, value string) {
	stateCache.Store(key, stateEntry{
		value:      value,
		expiration: time.Now().Add(stateTTL).Unix(),
	})
}

// GetCache 取出 state 并校验是否过期
// 过期走懒删除，不起后台协程
func GetCache(key string) (string, bool) {
	val, ok := stateCache.Load(key)
	if !ok {
		return "", false
	}

	entry := val.(stateEntry)

	if time.Now().Unix() > entry.expiration {
		stateCache.Delete(key)
		return "", false
	}

	return entry.value, true
}

// DeleteCache 删除 state，用完即焚防重放
func DeleteCache(key string) {
	stateCache.Delete(key)
}
