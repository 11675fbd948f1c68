package service

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/protocol/webauthncbor"
	"github.com/go-webauthn/webauthn/protocol/webauthncose"
)

// MockAuthenticator plays the client side of a WebAuthn ceremony. It holds a
// real P-256 key and produces attestation and assertion responses that pass
// full verification, with a controllable signature counter. Tests use it to
// exercise ceremonies end to end without a browser.
type MockAuthenticator struct {
	// CredentialID identifies the credential this authenticator holds.
	CredentialID []byte

	// AAGUID identifies the authenticator model.
	AAGUID []byte

	// SignCount is the signature counter. Assert increments it first, like
	// real hardware; set it back to simulate a cloned authenticator.
	SignCount uint32

	key      *ecdsa.PrivateKey
	rpIDHash []byte
}

// NewMockAuthenticator creates an authenticator scoped to a relying party.
func NewMockAuthenticator(rpID string) (*MockAuthenticator, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate authenticator key: %w", err)
	}

	credID := make([]byte, 32)
	if _, err := rand.Read(credID); err != nil {
		return nil, err
	}
	aaguid := make([]byte, 16)
	if _, err := rand.Read(aaguid); err != nil {
		return nil, err
	}

	rpIDHash := sha256.Sum256([]byte(rpID))

	return &MockAuthenticator{
		CredentialID: credID,
		AAGUID:       aaguid,
		key:          key,
		rpIDHash:     rpIDHash[:],
	}, nil
}

// Attest produces a registration response for the given challenge using the
// "none" attestation format. Both the parsed form and the raw wire form are
// populated, so the result can also be marshaled and replayed through an
// HTTP endpoint.
func (m *MockAuthenticator) Attest(challenge []byte, origin string) (*protocol.ParsedCredentialCreationData, error) {
	coseKey, err := m.cosePublicKey()
	if err != nil {
		return nil, err
	}

	authData, err := m.authenticatorData(true)
	if err != nil {
		return nil, err
	}
	clientDataJSON := m.clientData(challenge, origin, "webauthn.create")

	attObjBytes, err := webauthncbor.Marshal(map[string]interface{}{
		"authData": authData,
		"fmt":      "none",
		"attStmt":  map[string]interface{}{},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal attestation object: %w", err)
	}

	credIDEncoded := base64.RawURLEncoding.EncodeToString(m.CredentialID)

	return &protocol.ParsedCredentialCreationData{
		ParsedPublicKeyCredential: protocol.ParsedPublicKeyCredential{
			ParsedCredential: protocol.ParsedCredential{
				ID:   credIDEncoded,
				Type: "public-key",
			},
			RawID:                  m.CredentialID,
			ClientExtensionResults: protocol.AuthenticationExtensionsClientOutputs{},
		},
		Response: protocol.ParsedAttestationResponse{
			CollectedClientData: protocol.CollectedClientData{
				Type:      "webauthn.create",
				Challenge: base64.RawURLEncoding.EncodeToString(challenge),
				Origin:    origin,
			},
			AttestationObject: protocol.AttestationObject{
				Format:       "none",
				AttStatement: map[string]interface{}{},
				AuthData: protocol.AuthenticatorData{
					RPIDHash: m.rpIDHash,
					Flags:    m.flags(true),
					Counter:  m.SignCount,
					AttData: protocol.AttestedCredentialData{
						AAGUID:              m.AAGUID,
						CredentialID:        m.CredentialID,
						CredentialPublicKey: coseKey,
					},
				},
			},
			Transports: []protocol.AuthenticatorTransport{protocol.Internal},
		},
		Raw: protocol.CredentialCreationResponse{
			PublicKeyCredential: protocol.PublicKeyCredential{
				Credential: protocol.Credential{
					ID:   credIDEncoded,
					Type: "public-key",
				},
				RawID:                  m.CredentialID,
				ClientExtensionResults: protocol.AuthenticationExtensionsClientOutputs{},
			},
			AttestationResponse: protocol.AuthenticatorAttestationResponse{
				AuthenticatorResponse: protocol.AuthenticatorResponse{
					ClientDataJSON: clientDataJSON,
				},
				AttestationObject: attObjBytes,
				Transports:        []string{"internal"},
			},
		},
	}, nil
}

// Assert produces an authentication response, bumping the signature counter
// first.
func (m *MockAuthenticator) Assert(challenge, userHandle []byte, origin string) (*protocol.ParsedCredentialAssertionData, error) {
	m.SignCount++

	authData, err := m.authenticatorData(false)
	if err != nil {
		return nil, err
	}
	clientDataJSON := m.clientData(challenge, origin, "webauthn.get")
	clientDataHash := sha256.Sum256(clientDataJSON)

	signature, err := m.sign(append(authData, clientDataHash[:]...))
	if err != nil {
		return nil, err
	}

	credIDEncoded := base64.RawURLEncoding.EncodeToString(m.CredentialID)

	return &protocol.ParsedCredentialAssertionData{
		ParsedPublicKeyCredential: protocol.ParsedPublicKeyCredential{
			ParsedCredential: protocol.ParsedCredential{
				ID:   credIDEncoded,
				Type: "public-key",
			},
			RawID:                  m.CredentialID,
			ClientExtensionResults: protocol.AuthenticationExtensionsClientOutputs{},
		},
		Response: protocol.ParsedAssertionResponse{
			CollectedClientData: protocol.CollectedClientData{
				Type:      "webauthn.get",
				Challenge: base64.RawURLEncoding.EncodeToString(challenge),
				Origin:    origin,
			},
			AuthenticatorData: protocol.AuthenticatorData{
				RPIDHash: m.rpIDHash,
				Flags:    m.flags(false),
				Counter:  m.SignCount,
			},
			Signature:  signature,
			UserHandle: userHandle,
		},
		Raw: protocol.CredentialAssertionResponse{
			PublicKeyCredential: protocol.PublicKeyCredential{
				Credential: protocol.Credential{
					ID:   credIDEncoded,
					Type: "public-key",
				},
				RawID:                  m.CredentialID,
				ClientExtensionResults: protocol.AuthenticationExtensionsClientOutputs{},
			},
			AssertionResponse: protocol.AuthenticatorAssertionResponse{
				AuthenticatorResponse: protocol.AuthenticatorResponse{
					ClientDataJSON: clientDataJSON,
				},
				AuthenticatorData: authData,
				Signature:         signature,
				UserHandle:        userHandle,
			},
		},
	}, nil
}

func (m *MockAuthenticator) flags(attested bool) protocol.AuthenticatorFlags {
	flags := byte(0x01 | 0x04) // UP and UV
	if attested {
		flags |= 0x40 // AT
	}
	return protocol.AuthenticatorFlags(flags)
}

func (m *MockAuthenticator) cosePublicKey() ([]byte, error) {
	pub := m.key.Public().(*ecdsa.PublicKey)
	return webauthncbor.Marshal(map[int]interface{}{
		1:  2, // kty EC2
		3:  int(webauthncose.AlgES256),
		-1: 1, // crv P-256
		-2: pub.X.Bytes(),
		-3: pub.Y.Bytes(),
	})
}

// authenticatorData builds the raw authenticator data: rpIdHash, flags and
// counter, plus the attested credential data during registration.
func (m *MockAuthenticator) authenticatorData(attested bool) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(m.rpIDHash)
	buf.WriteByte(byte(m.flags(attested)))

	counter := make([]byte, 4)
	binary.BigEndian.PutUint32(counter, m.SignCount)
	buf.Write(counter)

	if attested {
		buf.Write(m.AAGUID)

		credIDLen := make([]byte, 2)
		binary.BigEndian.PutUint16(credIDLen, uint16(len(m.CredentialID)))
		buf.Write(credIDLen)
		buf.Write(m.CredentialID)

		coseKey, err := m.cosePublicKey()
		if err != nil {
			return nil, err
		}
		buf.Write(coseKey)
	}

	return buf.Bytes(), nil
}

func (m *MockAuthenticator) clientData(challenge []byte, origin, ceremonyType string) []byte {
	encoded, _ := json.Marshal(struct {
		Type      string `json:"type"`
		Challenge string `json:"challenge"`
		Origin    string `json:"origin"`
	}{
		Type:      ceremonyType,
		Challenge: base64.RawURLEncoding.EncodeToString(challenge),
		Origin:    origin,
	})
	return encoded
}

func (m *MockAuthenticator) sign(data []byte) ([]byte, error) {
	hash := sha256.Sum256(data)
	r, s, err := ecdsa.Sign(rand.Reader, m.key, hash[:])
	if err != nil {
		return nil, fmt.Errorf("failed to sign assertion: %w", err)
	}
	return derSignature(r, s), nil
}

// derSignature encodes r and s as the ASN.1 DER sequence assertion
// signatures carry on the wire.
func derSignature(r, s *big.Int) []byte {
	rBytes := r.Bytes()
	sBytes := s.Bytes()
	if len(rBytes) > 0 && rBytes[0] >= 0x80 {
		rBytes = append([]byte{0x00}, rBytes...)
	}
	if len(sBytes) > 0 && sBytes[0] >= 0x80 {
		sBytes = append([]byte{0x00}, sBytes...)
	}

	seqLen := 2 + len(rBytes) + 2 + len(sBytes)
	sig := make([]byte, 0, 2+seqLen)
	sig = append(sig, 0x30, byte(seqLen))
	sig = append(sig, 0x02, byte(len(rBytes)))
	sig = append(sig, rBytes...)
	sig = append(sig, 0x02, byte(len(sBytes)))
	sig = append(sig, sBytes...)
	return sig
}
