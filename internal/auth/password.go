package auth

import (
	"errors"
	"os"
	"path/filepath"

	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 12

// ErrPasswordTooShort 主密码少于 6 个字符
var ErrPasswordTooShort = errors.New("password must be at least 6 characters")

// HasPassword 是否已设置主密码（存在哈希文件）
func (g *Guard) HasPassword() (bool, error) {
	_, err := os.Stat(g.HashPath)
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}

// SetPassword 设置主密码（写入 bcrypt 哈希）
func (g *Guard) SetPassword(password string) error {
	if len(password) < 6 {
		return ErrPasswordTooShort
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), g.cost())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(g.HashPath), 0700); err != nil {
		return err
	}
	return os.WriteFile(g.HashPath, hash, 0600)
}

// VerifyPassword 验证主密码，没有哈希文件时视为不匹配
func (g *Guard) VerifyPassword(password string) (bool, error) {
	data, err := os.ReadFile(g.HashPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	err = bcrypt.CompareHashAndPassword(data, []byte(password))
	return err == nil, nil
}

func (g *Guard) cost() int {
	if g.Cost != 0 {
		return g.Cost
	}
	return bcryptCost
}
