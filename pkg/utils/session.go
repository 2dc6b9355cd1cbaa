package utils

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// MD5Hash generates MD5 hash of input string
func MD5Hash(input string) string {
	hash := md5.Sum([]byte(input))
	return hex.EncodeToString(hash[:])
}

// ContentHash identifies a chunk by its source and normalised text.
func ContentHash(source, content string) string {
	return MD5Hash(source + "\x00" + strings.Join(strings.Fields(content), " "))
}
