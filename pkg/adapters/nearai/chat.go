package nearai

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/0x-stone/zspa/pkg/ports"
)

type chatRequest struct {
	Messages    []ports.ChatMessage `json:"messages"`
	Stream      bool                `json:"stream"`
	Model       string              `json:"model"`
	Temperature float64             `json:"temperature"`
}

type streamChunk struct {
	ID      string `json:"id"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Complete streams a chat completion. RequestHash covers the exact body sent
// and ResponseHash every byte received, so both match what the backend signs.
func (c *Client) Complete(ctx context.Context, messages []ports.ChatMessage) (ports.Completion, error) {
	body, err := json.Marshal(chatRequest{
		Messages:    messages,
		Stream:      true,
		Model:       c.model,
		Temperature: c.temperature,
	})
	if err != nil {
		return ports.Completion{}, fmt.Errorf("failed to marshal request: %w", err)
	}
	reqSum := sha256.Sum256(body)

	ctx, cancel := context.WithTimeout(ctx, c.chatTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return ports.Completion{}, fmt.Errorf("failed to create request: %w", err)
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ports.Completion{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return ports.Completion{}, fmt.Errorf("chat completion failed [%d]: %s", resp.StatusCode, strings.TrimSpace(string(text)))
	}

	hasher := sha256.New()
	stream := io.TeeReader(resp.Body, hasher)
	reader := bufio.NewReader(stream)

	var content strings.Builder
	var chatID string
	for {
		line, err := reader.ReadString('\n')
		if data, ok := strings.CutPrefix(strings.TrimSpace(line), "data: "); ok && data != "[DONE]" {
			var chunk streamChunk
			if json.Unmarshal([]byte(data), &chunk) == nil {
				if chatID == "" {
					chatID = chunk.ID
				}
				if len(chunk.Choices) > 0 {
					content.WriteString(chunk.Choices[0].Delta.Content)
				}
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return ports.Completion{}, fmt.Errorf("failed to read stream: %w", err)
		}
	}

	return ports.Completion{
		Content:      content.String(),
		ChatID:       chatID,
		RequestHash:  hex.EncodeToString(reqSum[:]),
		ResponseHash: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}
