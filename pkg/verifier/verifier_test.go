package verifier_test

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0x-stone/zspa/pkg/domain"
	"github.com/0x-stone/zspa/pkg/verifier"
)

var signerKey = func() *secp256k1.PrivateKey {
	b, _ := hex.DecodeString("4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")
	return secp256k1.PrivKeyFromBytes(b)
}()

// sign produces an Ethereum-style r||s||v personal-message signature.
func sign(t *testing.T, key *secp256k1.PrivateKey, text string) string {
	t.Helper()
	compact := ecdsa.SignCompact(key, verifier.PersonalMessageHash(text), false)
	sig := make([]byte, 65)
	copy(sig, compact[1:])
	sig[64] = compact[0]
	return "0x" + hex.EncodeToString(sig)
}

type stubAttestations struct {
	mu       sync.Mutex
	calls    int
	failures []error
	att      *domain.Attestation
}

func (s *stubAttestations) GetSignature(_ context.Context, _ string) (*domain.Attestation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.failures) > 0 {
		err := s.failures[0]
		s.failures = s.failures[1:]
		return nil, err
	}
	if s.att == nil {
		return nil, domain.ErrAttestationNotFound
	}
	copied := *s.att
	return &copied, nil
}

func receipt() domain.InferenceReceipt {
	return domain.InferenceReceipt{ChatID: "chat-1", RequestHash: "aa", ResponseHash: "bb", OriginNode: "answer_question"}
}

func validAttestation(t *testing.T) *domain.Attestation {
	return &domain.Attestation{
		Text:           "aa:bb",
		Signature:      sign(t, signerKey, "aa:bb"),
		SigningAddress: verifier.Address(signerKey.PubKey()),
		SigningAlgo:    "ecdsa",
	}
}

func TestAddress_KnownKey(t *testing.T) {
	// Well-known test vector for this private key.
	assert.Equal(t, "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23", verifier.Address(signerKey.PubKey()))
}

func TestPersonalMessageHash_Length(t *testing.T) {
	assert.Len(t, verifier.PersonalMessageHash(""), 32)
	assert.NotEqual(t, verifier.PersonalMessageHash("a"), verifier.PersonalMessageHash("b"))
}

func TestRecoverAddress(t *testing.T) {
	sig := sign(t, signerKey, "hello")
	addr, err := verifier.RecoverAddress("hello", sig)
	require.NoError(t, err)
	assert.Equal(t, verifier.Address(signerKey.PubKey()), addr)

	t.Run("Zero Based Recovery Id", func(t *testing.T) {
		raw, _ := hex.DecodeString(strings.TrimPrefix(sig, "0x"))
		raw[64] -= 27
		got, err := verifier.RecoverAddress("hello", hex.EncodeToString(raw))
		require.NoError(t, err)
		assert.Equal(t, addr, got)
	})

	t.Run("Different Text Recovers Different Address", func(t *testing.T) {
		got, err := verifier.RecoverAddress("tampered", sig)
		if err == nil {
			assert.NotEqual(t, addr, got)
		}
	})

	t.Run("Malformed", func(t *testing.T) {
		_, err := verifier.RecoverAddress("hello", "0x1234")
		assert.ErrorIs(t, err, verifier.ErrMalformedSignature)
		_, err = verifier.RecoverAddress("hello", "not-hex")
		assert.ErrorIs(t, err, verifier.ErrMalformedSignature)
	})
}

func TestVerify_Valid(t *testing.T) {
	svc := &stubAttestations{att: validAttestation(t)}
	var reported *domain.Proof
	v := verifier.New(svc, verifier.WithBackoff(0), verifier.WithHooks(domain.LifecycleHooks{
		OnVerification: func(_ context.Context, p *domain.Proof) { reported = p },
	}))

	proof := v.Verify(context.Background(), receipt())
	assert.True(t, proof.Verified)
	assert.True(t, proof.TextMatches)
	assert.True(t, proof.SignatureValid)
	assert.Equal(t, "answer_question", proof.Node)
	assert.Equal(t, domain.ProofType, proof.Type)
	assert.Empty(t, proof.Error)
	require.NotNil(t, reported)
	assert.True(t, reported.Verified)
}

func TestVerify_IsIdempotent(t *testing.T) {
	svc := &stubAttestations{att: validAttestation(t)}
	v := verifier.New(svc, verifier.WithBackoff(0))

	first := v.Verify(context.Background(), receipt())
	second := v.Verify(context.Background(), receipt())
	assert.Equal(t, first, second)
}

func TestVerify_HashMismatch(t *testing.T) {
	att := validAttestation(t)
	att.Text = "aa:cc"
	att.Signature = sign(t, signerKey, "aa:cc")
	v := verifier.New(&stubAttestations{att: att}, verifier.WithBackoff(0))

	proof := v.Verify(context.Background(), receipt())
	assert.False(t, proof.TextMatches)
	assert.True(t, proof.SignatureValid)
	assert.False(t, proof.Verified)
}

func TestVerify_WrongSigner(t *testing.T) {
	other, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	att := validAttestation(t)
	att.Signature = sign(t, other, "aa:bb")
	v := verifier.New(&stubAttestations{att: att}, verifier.WithBackoff(0))

	proof := v.Verify(context.Background(), receipt())
	assert.True(t, proof.TextMatches)
	assert.False(t, proof.SignatureValid)
	assert.False(t, proof.Verified)
	assert.NotEqual(t, att.SigningAddress, proof.RecoveredAddress)
}

func TestVerify_AddressCaseInsensitive(t *testing.T) {
	att := validAttestation(t)
	att.SigningAddress = strings.ToLower(att.SigningAddress)
	v := verifier.New(&stubAttestations{att: att}, verifier.WithBackoff(0))
	assert.True(t, v.Verify(context.Background(), receipt()).Verified)
}

func TestVerify_RetriesUntilPublished(t *testing.T) {
	svc := &stubAttestations{
		failures: []error{domain.ErrAttestationNotFound, errors.New("connection reset")},
		att:      validAttestation(t),
	}
	v := verifier.New(svc, verifier.WithBackoff(time.Millisecond))

	proof := v.Verify(context.Background(), receipt())
	assert.True(t, proof.Verified)
	assert.Equal(t, 3, svc.calls)
}

func TestVerify_GivesUpAfterMaxAttempts(t *testing.T) {
	svc := &stubAttestations{}
	v := verifier.New(svc, verifier.WithBackoff(time.Millisecond))

	proof := v.Verify(context.Background(), receipt())
	assert.False(t, proof.Verified)
	assert.NotEmpty(t, proof.Error)
	assert.Equal(t, verifier.DefaultMaxAttempts, svc.calls)
}

func TestVerify_StatusErrorIsTerminal(t *testing.T) {
	svc := &stubAttestations{failures: []error{&domain.AttestationFetchError{StatusCode: 500, Err: errors.New("boom")}}}
	v := verifier.New(svc, verifier.WithBackoff(time.Millisecond))

	proof := v.Verify(context.Background(), receipt())
	assert.False(t, proof.Verified)
	assert.Contains(t, proof.Error, "status 500")
	assert.Equal(t, 1, svc.calls)
}

func TestVerify_MissingChatID(t *testing.T) {
	svc := &stubAttestations{att: validAttestation(t)}
	v := verifier.New(svc)

	proof := v.Verify(context.Background(), domain.InferenceReceipt{OriginNode: "x"})
	assert.False(t, proof.Verified)
	assert.Equal(t, 0, svc.calls)
}

func TestVerify_CancelledDuringBackoff(t *testing.T) {
	svc := &stubAttestations{}
	v := verifier.New(svc, verifier.WithBackoff(time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	proof := v.Verify(ctx, receipt())
	assert.False(t, proof.Verified)
	assert.Equal(t, 1, svc.calls)
}

func TestFork_ProducesToolMessage(t *testing.T) {
	v := verifier.New(&stubAttestations{att: validAttestation(t)}, verifier.WithBackoff(0))

	msgs, err := v.Fork()(context.Background(), receipt())
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	m := msgs[0]
	assert.Equal(t, domain.RoleTool, m.Role)
	assert.Equal(t, domain.ToolVerificationProof, m.Name)
	assert.Equal(t, "verify_chat-1", m.ToolCallID)

	var proof domain.Proof
	require.NoError(t, json.Unmarshal([]byte(m.Content), &proof))
	assert.True(t, proof.Verified)

	_, err = v.Fork()(context.Background(), "wrong")
	assert.Error(t, err)
}
