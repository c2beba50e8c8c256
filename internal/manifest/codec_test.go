package manifest

import (
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "restore-chain/internal/errors"
)

func testManifest(t *testing.T) *Manifest {
	t.Helper()
	m, err := FromChain(testChain(t), WithID("0f8e5a9e-1111-4c1e-9a55-000000000001"))
	require.NoError(t, err)
	return m
}

func TestCodec_RoundTrip(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	t.Setenv("TEST_MANIFEST_KEY", hex.EncodeToString(key))

	keyFile := filepath.Join(t.TempDir(), "manifest.key")
	require.NoError(t, SaveKeyToFile(key, keyFile))

	encryptions := map[string]EncryptionConfig{
		"plain":      {},
		"env":        {Enabled: true, KeySource: "env", KeyEnvVar: "TEST_MANIFEST_KEY"},
		"file":       {Enabled: true, KeySource: "file", KeyPath: keyFile},
		"passphrase": {Enabled: true, KeySource: "passphrase", Passphrase: "correct horse"},
	}
	algorithms := []CompressionType{CompressionNone, CompressionGzip, CompressionLZ4, CompressionZstd}
	formats := []Format{FormatJSON, FormatYAML}

	original := testManifest(t)

	for name, encryption := range encryptions {
		for _, algorithm := range algorithms {
			for _, format := range formats {
				t.Run(name+"/"+string(algorithm)+"/"+string(format), func(t *testing.T) {
					codec, err := NewCodec(Config{
						Format:      format,
						Compression: CompressionConfig{Algorithm: algorithm},
						Encryption:  encryption,
					})
					require.NoError(t, err)

					data, err := codec.Encode(original)
					require.NoError(t, err)

					var env Envelope
					require.NoError(t, json.Unmarshal(data, &env))
					assert.Equal(t, format, env.Format)
					assert.Equal(t, algorithm, env.Compression)
					assert.Equal(t, original.ID, env.ID)
					if encryption.Enabled {
						assert.Equal(t, "AES-256-GCM", env.Encryption)
						assert.NotContains(t, string(env.Payload), "Sales")
					}

					decoded, err := codec.Decode(data)
					require.NoError(t, err)
					assert.Equal(t, original.ID, decoded.ID)
					assert.Equal(t, original.Database, decoded.Database)
					assert.True(t, original.CreatedAt.Equal(decoded.CreatedAt))
					assert.Equal(t, original.Paths(), decoded.Paths())
					require.Len(t, decoded.Steps, len(original.Steps))
					for i := range original.Steps {
						assert.True(t, original.Steps[i].LastLSN.Equal(decoded.Steps[i].LastLSN))
						assert.Equal(t, original.Steps[i].Type, decoded.Steps[i].Type)
					}
				})
			}
		}
	}
}

func TestCodec_ParsesCompressionCase(t *testing.T) {
	codec, err := NewCodec(Config{Compression: CompressionConfig{Algorithm: "ZSTD", Level: 9}})
	require.NoError(t, err)

	data, err := codec.Encode(testManifest(t))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"compression":"zstd"`)
}

func TestCodec_DetectsTampering(t *testing.T) {
	codec, err := NewCodec(Config{})
	require.NoError(t, err)

	data, err := codec.Encode(testManifest(t))
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	env.Payload = []byte(strings.Replace(string(env.Payload), "Sales", "Sa1es", 1))
	tampered, err := json.Marshal(env)
	require.NoError(t, err)

	_, err = codec.Decode(tampered)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum")
}

func TestCodec_ChecksumCoversDocument(t *testing.T) {
	m := testManifest(t)
	plain, err := NewCodec(Config{})
	require.NoError(t, err)
	sealed, err := NewCodec(Config{
		Compression: CompressionConfig{Algorithm: CompressionGzip},
		Encryption:  EncryptionConfig{Enabled: true, KeySource: "passphrase", Passphrase: "s3cret"},
	})
	require.NoError(t, err)

	checksum := func(c *Codec) string {
		data, err := c.Encode(m)
		require.NoError(t, err)
		var env Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		return env.Checksum
	}
	assert.Equal(t, checksum(plain), checksum(sealed))
}

func TestCodec_EncryptedWithoutKey(t *testing.T) {
	sealed, err := NewCodec(Config{Encryption: EncryptionConfig{Enabled: true, KeySource: "passphrase", Passphrase: "s3cret"}})
	require.NoError(t, err)
	data, err := sealed.Encode(testManifest(t))
	require.NoError(t, err)

	plain, err := NewCodec(Config{})
	require.NoError(t, err)
	_, err = plain.Decode(data)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.GetErrorType(err))

	wrong, err := NewCodec(Config{Encryption: EncryptionConfig{Enabled: true, KeySource: "passphrase", Passphrase: "guess"}})
	require.NoError(t, err)
	_, err = wrong.Decode(data)
	assert.Error(t, err)
}

func TestCodec_RejectsInvalidInput(t *testing.T) {
	codec, err := NewCodec(Config{})
	require.NoError(t, err)

	_, err = codec.Encode(&Manifest{ID: "x"})
	assert.Error(t, err)

	_, err = codec.Decode([]byte("not json"))
	assert.Error(t, err)

	_, err = codec.Decode([]byte(`{"version": 99}`))
	assert.Error(t, err)

	_, err = NewCodec(Config{Format: "xml"})
	assert.Error(t, err)
}

func TestEncryptionKeys(t *testing.T) {
	assert.Error(t, ValidateKey(make([]byte, 16)))
	assert.Error(t, ValidateKey(make([]byte, 32)))

	ones := make([]byte, 32)
	for i := range ones {
		ones[i] = 0xFF
	}
	assert.Error(t, ValidateKey(ones))

	key, err := GenerateKey()
	require.NoError(t, err)
	assert.NoError(t, ValidateKey(key))

	raw := filepath.Join(t.TempDir(), "raw.key")
	require.NoError(t, os.WriteFile(raw, key, 0600))
	loaded, err := LoadKeyFromFile(raw)
	require.NoError(t, err)
	assert.Equal(t, key, loaded)

	_, err = LoadKeyFromEnv("TEST_MANIFEST_KEY_UNSET")
	assert.Error(t, err)

	salt := []byte("0123456789abcdef")
	assert.Equal(t, DeriveKey("pw", salt), DeriveKey("pw", salt))
	assert.NotEqual(t, DeriveKey("pw", salt), DeriveKey("pw2", salt))
	assert.Len(t, DeriveKey("pw", salt), 32)
}

func TestEncryptor_KeyFunc(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	enc := NewEncryptor(EncryptionConfig{Enabled: true, KeySource: "env", KeyEnvVar: "UNUSED"})
	enc.keyFunc = func() ([]byte, error) { return key, nil }

	sealed, err := enc.Encrypt([]byte("restore plan"))
	require.NoError(t, err)
	opened, err := enc.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "restore plan", string(opened))

	_, err = enc.Decrypt(sealed[:4])
	assert.Error(t, err)
}

func TestCompressionManager(t *testing.T) {
	cm := NewCompressionManager()
	data := []byte(strings.Repeat(`\\nas\sql\Sales\log.trn `, 200))

	for _, algorithm := range []CompressionType{CompressionGzip, CompressionLZ4, CompressionZstd} {
		t.Run(string(algorithm), func(t *testing.T) {
			for _, level := range []int{-5, 1, 9, 50} {
				compressed, err := cm.Compress(data, algorithm, level)
				require.NoError(t, err)
				assert.Less(t, len(compressed), len(data))

				restored, err := cm.Decompress(compressed, algorithm)
				require.NoError(t, err)
				assert.Equal(t, data, restored)
			}
		})
	}

	_, err := cm.Compress(data, "brotli", 0)
	assert.Error(t, err)

	_, err = ParseCompressionType("brotli")
	assert.Error(t, err)
	parsed, err := ParseCompressionType(" LZ4 ")
	require.NoError(t, err)
	assert.Equal(t, CompressionLZ4, parsed)
}
