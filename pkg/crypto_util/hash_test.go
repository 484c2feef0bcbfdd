package crypto_util

import (
	"encoding/hex"
	"testing"
)

func TestKeccak256(t *testing.T) {
	// keccak256("") 的已知值
	want := "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"
	if got := hex.EncodeToString(Keccak256()); got != want {
		t.Errorf("Keccak256 不匹配: 得到 %s, 期望 %s", got, want)
	}

	// 多段输入与拼接后输入一致
	a := hex.EncodeToString(Keccak256([]byte("hello "), []byte("world")))
	b := hex.EncodeToString(Keccak256([]byte("hello world")))
	if a != b {
		t.Errorf("分段哈希不一致: %s != %s", a, b)
	}
}

func TestFingerprint(t *testing.T) {
	input := []byte(`{"transactions":[]}`)

	fp := Fingerprint(input)
	if len(fp) != 64 {
		t.Errorf("Blake3 指纹长度不匹配: 得到 %d, 期望 64", len(fp))
	}
	if fp != Fingerprint(input) {
		t.Errorf("同一输入的指纹不一致")
	}
	if fp == Fingerprint([]byte(`{"transactions":[{}]}`)) {
		t.Errorf("不同输入得到相同指纹")
	}
	if short := ShortFingerprint(input); short != fp[:16] {
		t.Errorf("短指纹不匹配: %s", short)
	}
}
