package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"path"
	"strings"
	"time"
)

const filenameAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// GenerateBlobPathname builds a unique storage pathname like
// "images/1719856000123-x4k2p9.jpg" from the upload kind and the original
// file name's extension.
func GenerateBlobPathname(kind, originalName string) string {
	ext := strings.TrimPrefix(path.Ext(originalName), ".")
	if ext == "" {
		ext = "bin"
	}

	suffix := make([]byte, 6)
	for i := range suffix {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(filenameAlphabet))))
		suffix[i] = filenameAlphabet[n.Int64()]
	}

	return fmt.Sprintf("%ss/%d-%s.%s", kind, time.Now().UnixMilli(), suffix, ext)
}

// GenerateUnsubscribeToken returns an opaque token for newsletter
// unsubscribe links.
func GenerateUnsubscribeToken() string {
	token := make([]byte, 32)
	_, _ = rand.Read(token)
	return fmt.Sprintf("%x", token)
}
