package encryption

import (
	"fmt"

	"pinvault/internal/config"
	"pinvault/internal/pv"
)

// NewCodecFromConfig creates a Codec based on the configured cipher.
func NewCodecFromConfig(cfg config.EncryptionConfig) (pv.Codec, error) {
	switch cfg.Cipher {
	case "aes-cbc", "":
		return NewCBCCodec(), nil
	case "xchacha20poly1305":
		return NewXChaChaCodec(), nil
	case "test":
		return NewTestCodec(), nil
	default:
		return nil, fmt.Errorf("unknown cipher: %q", cfg.Cipher)
	}
}
