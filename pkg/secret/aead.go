// Package secret 是字段级加密的唯一边界
// refresh_token、client_secret 等长期机密只允许以密文落库，
// 算法和密钥管理的升级都收敛在这个包里，不渗透进业务层
package secret

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// KeySize AES-256 密钥长度
const KeySize = 32

var (
	ErrBadKeySize    = errors.New("secret: key must be 32 bytes")
	ErrBadCiphertext = errors.New("secret: ciphertext is malformed or tampered")
)

// KeyFromBase64 从配置里解出密钥 (base64 标准编码，解出必须 32 字节)
func KeyFromBase64(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("secret: decode key: %v", err)
	}
	if len(key) != KeySize {
		return nil, ErrBadKeySize
	}
	return key, nil
}

// Encrypt AEAD 加密 (AES-256-GCM)
// 每次加密生成随机 IV，同一明文两次加密的密文必然不同
// 返回值均为 base64，直接入库
func Encrypt(plaintext string, key []byte) (ciphertext, iv string, err error) {
	if len(key) != KeySize {
		return "", "", ErrBadKeySize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", "", err
	}

	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed),
		base64.StdEncoding.EncodeToString(nonce),
		nil
}

// Decrypt AEAD 解密，密文或 IV 被篡改时报 ErrBadCiphertext
func Decrypt(ciphertext, iv string, key []byte) (string, error) {
	if len(key) != KeySize {
		return "", ErrBadKeySize
	}

	sealed, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrBadCiphertext
	}
	nonce, err := base64.StdEncoding.DecodeString(iv)
	if err != nil {
		return "", ErrBadCiphertext
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	if len(nonce) != gcm.NonceSize() {
		return "", ErrBadCiphertext
	}

	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrBadCiphertext
	}
	return string(plain), nil
}
