// Package envelope wraps the raw event log written by recorder.Dump and
// read by replay.Start with optional at-rest compression, encryption, and
// integrity checking. It never looks inside the log: the bytes it handles
// are the fully-encoded pkg/wire record stream, treated as an opaque blob.
package envelope

import "errors"

// Options configures Seal/Open. The zero value disables every feature and
// Seal/Open become the identity function.
type Options struct {
	Compression CompressionType
	Encryption  *EncryptionOptions
	Integrity   *IntegrityOptions
}

// EncryptionOptions enables AES-GCM encryption of the sealed payload.
type EncryptionOptions struct {
	// Key must be 16, 24, or 32 bytes, selecting AES-128/192/256.
	Key []byte
}

// IntegrityOptions appends an HMAC-SHA256 trailer computed over the
// sealed (compressed and/or encrypted) payload.
type IntegrityOptions struct {
	Key []byte
}

// Seal compresses, then encrypts, then appends an integrity trailer to
// data, skipping whichever steps opts doesn't enable.
func Seal(data []byte, opts Options) ([]byte, error) {
	compressed, err := CompressData(data, opts.Compression)
	if err != nil {
		return nil, err
	}

	sealed := compressed
	if opts.Encryption != nil {
		sealed, err = EncryptData(compressed, opts.Encryption.Key)
		if err != nil {
			return nil, err
		}
	}

	if opts.Integrity != nil {
		mac := CalculateHMAC(sealed, opts.Integrity.Key)
		sealed = append(sealed, mac...)
	}

	return sealed, nil
}

// Open reverses Seal: it verifies the integrity trailer (if opts requires
// one), decrypts, and decompresses, returning the original bytes passed to
// Seal.
func Open(data []byte, opts Options) ([]byte, error) {
	sealed := data

	if opts.Integrity != nil {
		if len(sealed) < hmacSize {
			return nil, errors.New("envelope: data too short for integrity trailer")
		}
		body, mac := sealed[:len(sealed)-hmacSize], sealed[len(sealed)-hmacSize:]
		if !VerifyHMAC(body, opts.Integrity.Key, mac) {
			return nil, errors.New("envelope: integrity check failed: data may have been tampered with")
		}
		sealed = body
	}

	plain := sealed
	if opts.Encryption != nil {
		var err error
		plain, err = DecryptData(sealed, opts.Encryption.Key)
		if err != nil {
			return nil, err
		}
	}

	return DecompressData(plain, opts.Compression)
}
