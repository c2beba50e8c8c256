package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"restore-chain/internal/errors"
)

const envelopeVersion = 1

// Envelope is the stored form of a manifest. The header fields describe how
// Payload was produced so a reader needs no out of band settings except the
// key. Checksum covers the serialized document before compression and
// encryption, so it is checked after both are reversed.
type Envelope struct {
	Version     int             `json:"version"`
	ID          string          `json:"id"`
	Format      Format          `json:"format"`
	Compression CompressionType `json:"compression"`
	Encryption  string          `json:"encryption"`
	Checksum    string          `json:"checksum"`
	Payload     []byte          `json:"payload"`
}

// Codec serializes manifests, then compresses and encrypts the result
type Codec struct {
	format      Format
	compression CompressionConfig
	compressors *CompressionManager
	encryptor   *Encryptor
}

// NewCodec creates a codec from the manifest configuration
func NewCodec(config Config) (*Codec, error) {
	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, errors.NewAppError(errors.ErrorTypeValidation, "invalid manifest configuration", err)
	}

	algorithm, _ := ParseCompressionType(string(config.Compression.Algorithm))
	compression := config.Compression
	compression.Algorithm = algorithm

	return &Codec{
		format:      config.Format,
		compression: compression,
		compressors: NewCompressionManager(),
		encryptor:   NewEncryptor(config.Encryption),
	}, nil
}

// Marshal renders m in format without compression or encryption
func Marshal(m *Manifest, format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		return yaml.Marshal(m)
	case FormatJSON, "":
		return json.MarshalIndent(m, "", "  ")
	default:
		return nil, fmt.Errorf("unsupported manifest format: %s", format)
	}
}

// Unmarshal parses a manifest document
func Unmarshal(data []byte, format Format) (*Manifest, error) {
	var m Manifest
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &m)
	case FormatJSON, "":
		err = json.Unmarshal(data, &m)
	default:
		return nil, fmt.Errorf("unsupported manifest format: %s", format)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Encode produces the stored bytes of m
func (c *Codec) Encode(m *Manifest) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, errors.NewAppError(errors.ErrorTypeValidation, "invalid manifest", err)
	}

	doc, err := Marshal(m, c.format)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrorTypeStorage, "failed to serialize manifest", err)
	}

	payload, err := c.compressors.Compress(doc, c.compression.Algorithm, c.compression.Level)
	if err != nil {
		return nil, err
	}
	payload, err = c.encryptor.Encrypt(payload)
	if err != nil {
		return nil, err
	}

	return json.Marshal(Envelope{
		Version:     envelopeVersion,
		ID:          m.ID,
		Format:      c.format,
		Compression: c.compression.Algorithm,
		Encryption:  c.encryptor.Algorithm(),
		Checksum:    Checksum(doc),
		Payload:     payload,
	})
}

// Decode reverses Encode using the settings recorded in the envelope
func (c *Codec) Decode(data []byte) (*Manifest, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.NewAppError(errors.ErrorTypeStorage, "failed to parse manifest envelope", err)
	}
	if env.Version != envelopeVersion {
		return nil, errors.NewAppError(errors.ErrorTypeStorage, fmt.Sprintf("unsupported manifest envelope version %d", env.Version), nil)
	}

	payload := env.Payload
	if env.Encryption != "NONE" && env.Encryption != "" {
		if !c.encryptor.Enabled() {
			return nil, errors.NewAppError(errors.ErrorTypeValidation, "manifest is encrypted but encryption is not configured", nil).
				WithContext("manifest_id", env.ID)
		}
		var err error
		if payload, err = c.encryptor.Decrypt(payload); err != nil {
			return nil, err
		}
	}

	doc, err := c.compressors.Decompress(payload, env.Compression)
	if err != nil {
		return nil, err
	}

	if Checksum(doc) != env.Checksum {
		return nil, errors.NewAppError(errors.ErrorTypeStorage, "manifest checksum verification failed", nil).
			WithContext("manifest_id", env.ID)
	}

	m, err := Unmarshal(doc, env.Format)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrorTypeStorage, "failed to parse manifest", err)
	}
	return m, nil
}

// Checksum returns the hex SHA-256 of data
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
