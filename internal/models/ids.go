package models

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"strconv"
	"time"
)

// NewID returns a random 16-character hex identifier.
func NewID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// NewCode builds a human-readable code such as LDT20240115093045-4821.
// Prefixes in use: LDT for loads, MTC for matches, DRV for drivers.
func NewCode(prefix string) string {
	var b [4]byte
	_, _ = rand.Read(b[:])
	n := 1000 + binary.BigEndian.Uint32(b[:])%9000
	return prefix + time.Now().UTC().Format("20060102150405") + "-" + strconv.Itoa(int(n))
}
