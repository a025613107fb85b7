package zklogin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sprinkle-app/sprinkle-go/pkg/util"
)

// Proof is the zero-knowledge proof binding the OAuth identity, the
// ephemeral public key and the salt. Beyond the structural checks on
// receipt, it is an opaque blob: stored, sealed and embedded in signatures
// but never interpreted.
type Proof struct {
	ProofPoints      ProofPoints      `json:"proofPoints" validate:"required"`
	IssBase64Details IssBase64Details `json:"issBase64Details" validate:"required"`
	HeaderBase64     string           `json:"headerBase64" validate:"required"`
}

type ProofPoints struct {
	A []string   `json:"a" validate:"required,min=1"`
	B [][]string `json:"b" validate:"required,min=1"`
	C []string   `json:"c" validate:"required,min=1"`
}

type IssBase64Details struct {
	Value     string `json:"value" validate:"required"`
	IndexMod4 int    `json:"indexMod4"`
}

type proofRequest struct {
	JWT                        string `json:"jwt"`
	ExtendedEphemeralPublicKey string `json:"extendedEphemeralPublicKey"`
	MaxEpoch                   string `json:"maxEpoch"`
	JWTRandomness              string `json:"jwtRandomness"`
	Salt                       string `json:"salt"`
	KeyClaimName               string `json:"keyClaimName"`
}

// ProverClient calls the external proving service. Proof generation is a
// one-shot negotiation tied to ephemeral material that is already fixed, so
// a failed call is never retried within the same login attempt.
type ProverClient struct {
	url           string
	authorization string
	httpClient    *http.Client
}

func NewProverClient(url, authorization string) *ProverClient {
	return &ProverClient{
		url:           url,
		authorization: authorization,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// RequestProof issues exactly one request to the prover. Any transport error
// or non-2xx status surfaces as ErrProverUnavailable.
func (p *ProverClient) RequestProof(ctx context.Context, jwt, extendedEphemeralPublicKey string, maxEpoch uint64, randomness, salt string) (*Proof, error) {
	timer := prometheus.NewTimer(proverLatency)
	defer timer.ObserveDuration()
	proverRequests.Inc()

	body, err := json.Marshal(proofRequest{
		JWT:                        jwt,
		ExtendedEphemeralPublicKey: extendedEphemeralPublicKey,
		MaxEpoch:                   fmt.Sprintf("%d", maxEpoch),
		JWTRandomness:              randomness,
		Salt:                       salt,
		KeyClaimName:               "sub",
	})
	if err != nil {
		return nil, fmt.Errorf("unable to encode proof request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("unable to create proof request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.authorization)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrProverUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to read response: %s", ErrProverUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", ErrProverUnavailable, resp.StatusCode)
	}

	proof, err := util.AnyToStruct[Proof](respBody)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed proof: %s", ErrProverUnavailable, err)
	}
	return proof, nil
}
