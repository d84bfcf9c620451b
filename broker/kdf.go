package broker

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
)

// KDF labels binding derived keys to their purpose. The broker derives its
// keys with the same labels; changing them breaks protocol version 2.
const (
	encryptionKeyLabel = "broker-encryption-key"
	macKeyLabel        = "broker-mac-key"
	kdfContext         = "secure-conversation"
)

// deriveKey derives length bytes of key material from key using the NIST
// SP 800-108 key derivation function in counter mode with HMAC-SHA256 as the
// PRF. The fixed input data is label || 0x00 || context || [L]_4, with the
// counter and output length encoded big-endian per the recommendation.
func deriveKey(key []byte, label, context string, length int) []byte {
	prf := hmac.New(sha256.New, key)

	var lenBits [4]byte
	binary.BigEndian.PutUint32(lenBits[:], uint32(length*8))

	out := make([]byte, 0, length)
	var counter [4]byte
	for i := uint32(1); len(out) < length; i++ {
		binary.BigEndian.PutUint32(counter[:], i)

		prf.Reset()
		prf.Write(counter[:])
		prf.Write([]byte(label))
		prf.Write([]byte{0x00})
		prf.Write([]byte(context))
		prf.Write(lenBits[:])
		out = append(out, prf.Sum(nil)...)
	}
	return out[:length]
}
