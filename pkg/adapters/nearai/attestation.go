package nearai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/0x-stone/zspa/pkg/domain"
)

// GetSignature fetches the signed statement for a chat. A 404 means the
// statement is not published yet and maps to domain.ErrAttestationNotFound.
func (c *Client) GetSignature(ctx context.Context, chatID string) (*domain.Attestation, error) {
	ctx, cancel := context.WithTimeout(ctx, c.signatureTimeout)
	defer cancel()

	q := url.Values{}
	q.Set("model", c.model)
	q.Set("signing_algo", signingAlgo)
	endpoint := c.baseURL + "/signature/" + url.PathEscape(chatID) + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, domain.ErrAttestationNotFound
	default:
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &domain.AttestationFetchError{
			ChatID:     chatID,
			StatusCode: resp.StatusCode,
			Attempts:   1,
			Err:        fmt.Errorf("%s", text),
		}
	}

	var att domain.Attestation
	if err := json.NewDecoder(resp.Body).Decode(&att); err != nil {
		return nil, fmt.Errorf("failed to decode signature: %w", err)
	}
	if att.SigningAlgo == "" {
		att.SigningAlgo = signingAlgo
	}
	return &att, nil
}
