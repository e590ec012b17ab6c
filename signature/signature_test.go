package signature

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	t.Run("success - minimum size", func(t *testing.T) {
		secret, err := Generate(MinSecretBytes)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(secret.String(), SecretPrefix))
		assert.Equal(t, MinSecretBytes, len(secret.Bytes()))
	})

	t.Run("success - maximum size", func(t *testing.T) {
		secret, err := Generate(MaxSecretBytes)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(secret.String(), SecretPrefix))
		assert.Equal(t, MaxSecretBytes, len(secret.Bytes()))
	})

	t.Run("error - too small", func(t *testing.T) {
		_, err := Generate(MinSecretBytes - 1)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "secret size must be between")
	})

	t.Run("error - too large", func(t *testing.T) {
		_, err := Generate(MaxSecretBytes + 1)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "secret size must be between")
	})

	t.Run("randomness - generates different secrets", func(t *testing.T) {
		secret1, err1 := Generate(32)
		secret2, err2 := Generate(32)
		require.NoError(t, err1)
		require.NoError(t, err2)
		assert.NotEqual(t, secret1.String(), secret2.String())
	})
}

func TestParseSecret(t *testing.T) {
	t.Run("success - round trip", func(t *testing.T) {
		original, err := Generate(32)
		require.NoError(t, err)

		parsed, err := ParseSecret(original.String())
		require.NoError(t, err)
		assert.Equal(t, original.String(), parsed.String())
		assert.Equal(t, original.Bytes(), parsed.Bytes())
	})

	t.Run("error - missing prefix", func(t *testing.T) {
		_, err := ParseSecret("dGVzdHNlY3JldA==")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must start with")
	})

	t.Run("error - invalid base64", func(t *testing.T) {
		_, err := ParseSecret(SecretPrefix + "not-valid-base64!!!")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "decoding base64")
	})

	t.Run("error - secret too small", func(t *testing.T) {
		_, err := ParseSecret(SecretPrefix + "dGVzdA==") // 4 bytes
		require.Error(t, err)
		assert.Contains(t, err.Error(), "secret size must be between")
	})
}

func TestSign(t *testing.T) {
	secret, err := Generate(32)
	require.NoError(t, err)

	msgID := "msg_test123"
	timestamp := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	payload := []byte(`{"id":"evt_1","type":"order.created","data":{"total":42}}`)

	t.Run("success - creates versioned signature", func(t *testing.T) {
		sig, err := Sign(secret, msgID, timestamp, payload)
		require.NoError(t, err)
		assert.Equal(t, Version, sig.Version)
		assert.NotEmpty(t, sig.Value)
	})

	t.Run("deterministic - same inputs same signature", func(t *testing.T) {
		sig1, err := Sign(secret, msgID, timestamp, payload)
		require.NoError(t, err)
		sig2, err := Sign(secret, msgID, timestamp, payload)
		require.NoError(t, err)
		assert.Equal(t, sig1.Value, sig2.Value)
	})

	t.Run("signature depends on every input", func(t *testing.T) {
		base, err := Sign(secret, msgID, timestamp, payload)
		require.NoError(t, err)

		otherID, err := Sign(secret, "msg_other", timestamp, payload)
		require.NoError(t, err)
		assert.NotEqual(t, base.Value, otherID.Value)

		otherTime, err := Sign(secret, msgID, timestamp.Add(time.Second), payload)
		require.NoError(t, err)
		assert.NotEqual(t, base.Value, otherTime.Value)

		otherPayload, err := Sign(secret, msgID, timestamp, []byte(`{"id":"evt_2"}`))
		require.NoError(t, err)
		assert.NotEqual(t, base.Value, otherPayload.Value)
	})

	t.Run("error - message ID contains dot", func(t *testing.T) {
		_, err := Sign(secret, "msg.with.dots", timestamp, payload)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must not contain")
	})
}

func TestVerify(t *testing.T) {
	secret, err := Generate(32)
	require.NoError(t, err)

	msgID := "msg_verify"
	timestamp := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	payload := []byte(`{"id":"evt_1","type":"order.created"}`)

	t.Run("success - valid signature", func(t *testing.T) {
		sig, err := Sign(secret, msgID, timestamp, payload)
		require.NoError(t, err)

		valid, err := Verify(secret, msgID, timestamp, payload, sig)
		require.NoError(t, err)
		assert.True(t, valid)
	})

	t.Run("rejects tampered payload", func(t *testing.T) {
		sig, err := Sign(secret, msgID, timestamp, payload)
		require.NoError(t, err)

		tampered := []byte(`{"id":"evt_1","type":"order.deleted"}`)
		valid, err := Verify(secret, msgID, timestamp, tampered, sig)
		require.NoError(t, err)
		assert.False(t, valid)
	})

	t.Run("rejects wrong secret", func(t *testing.T) {
		sig, err := Sign(secret, msgID, timestamp, payload)
		require.NoError(t, err)

		other, err := Generate(32)
		require.NoError(t, err)

		valid, err := Verify(other, msgID, timestamp, payload, sig)
		require.NoError(t, err)
		assert.False(t, valid)
	})

	t.Run("error - unsupported version", func(t *testing.T) {
		sig, err := Sign(secret, msgID, timestamp, payload)
		require.NoError(t, err)
		sig.Version = "v9"

		_, err = Verify(secret, msgID, timestamp, payload, sig)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported signature version")
	})
}

func TestVerifyAny(t *testing.T) {
	oldSecret, err := Generate(32)
	require.NoError(t, err)
	newSecret, err := Generate(32)
	require.NoError(t, err)

	msgID := "msg_rotation"
	timestamp := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	payload := []byte(`{"id":"evt_1"}`)

	t.Run("success - signed with old secret during rotation", func(t *testing.T) {
		sig, err := Sign(oldSecret, msgID, timestamp, payload)
		require.NoError(t, err)

		valid, err := VerifyAny([]Secret{newSecret, oldSecret}, msgID, timestamp, payload, []Signature{sig})
		require.NoError(t, err)
		assert.True(t, valid)
	})

	t.Run("success - any of multiple header signatures", func(t *testing.T) {
		oldSig, err := Sign(oldSecret, msgID, timestamp, payload)
		require.NoError(t, err)
		newSig, err := Sign(newSecret, msgID, timestamp, payload)
		require.NoError(t, err)

		valid, err := VerifyAny([]Secret{newSecret}, msgID, timestamp, payload, []Signature{oldSig, newSig})
		require.NoError(t, err)
		assert.True(t, valid)
	})

	t.Run("fails when no combination matches", func(t *testing.T) {
		sig, err := Sign(oldSecret, msgID, timestamp, payload)
		require.NoError(t, err)

		valid, err := VerifyAny([]Secret{newSecret}, msgID, timestamp, payload, []Signature{sig})
		require.NoError(t, err)
		assert.False(t, valid)
	})

	t.Run("error - no secrets", func(t *testing.T) {
		sig, err := Sign(oldSecret, msgID, timestamp, payload)
		require.NoError(t, err)

		_, err = VerifyAny(nil, msgID, timestamp, payload, []Signature{sig})
		require.Error(t, err)
	})
}

func TestParseHeader(t *testing.T) {
	t.Run("success - single signature", func(t *testing.T) {
		sigs, err := ParseHeader("v1,c2lnbmF0dXJl")
		require.NoError(t, err)
		require.Len(t, sigs, 1)
		assert.Equal(t, "v1", sigs[0].Version)
		assert.Equal(t, "c2lnbmF0dXJl", sigs[0].Value)
	})

	t.Run("success - multiple space-delimited signatures", func(t *testing.T) {
		sigs, err := ParseHeader("v1,first v1,second")
		require.NoError(t, err)
		require.Len(t, sigs, 2)
		assert.Equal(t, "first", sigs[0].Value)
		assert.Equal(t, "second", sigs[1].Value)
	})

	t.Run("error - empty header", func(t *testing.T) {
		_, err := ParseHeader("")
		require.Error(t, err)
	})

	t.Run("error - missing version separator", func(t *testing.T) {
		_, err := ParseHeader("justonepart")
		require.Error(t, err)
	})
}

func TestBuildHeader(t *testing.T) {
	t.Run("round trips through ParseHeader", func(t *testing.T) {
		in := []Signature{
			{Version: "v1", Value: "first"},
			{Version: "v1", Value: "second"},
		}

		header := BuildHeader(in)
		assert.Equal(t, "v1,first v1,second", header)

		out, err := ParseHeader(header)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	})
}
