package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/trustmesh/agentmarket/internal/types"
)

// HTTPProvider implements Provider against a REST mirror-node API (the
// out-of-scope external collaborator named in spec §1). No third-party HTTP
// client library appears anywhere in the corpus — gin-gonic is server-side
// only — so this, like the producer's mesh client and the consumer, uses the
// stdlib net/http client directly rather than an ecosystem dependency.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewHTTPProvider builds a provider against baseURL, sending apiKey as a
// bearer token on every request when non-empty.
func NewHTTPProvider(baseURL, apiKey string) *HTTPProvider {
	return &HTTPProvider{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *HTTPProvider) do(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := p.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &Error{Kind: Internal, Message: err.Error()}
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return &Error{Kind: Unavailable, Message: err.Error()}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &Error{Kind: Internal, Message: fmt.Sprintf("decoding mirror response: %v", err)}
		}
		return nil
	case http.StatusNotFound:
		return &Error{Kind: NotFound, Message: "account not found on mirror node"}
	case http.StatusTooManyRequests:
		retryAfter := time.Duration(0)
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := strconv.Atoi(v); err == nil {
				retryAfter = time.Duration(secs) * time.Second
			}
		}
		return &Error{Kind: RateLimited, RetryAfter: retryAfter, Message: "mirror node rate limit exceeded"}
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return &Error{Kind: Invalid, Message: "mirror node rejected the request"}
	default:
		return &Error{Kind: Unavailable, Message: fmt.Sprintf("mirror node returned status %d", resp.StatusCode)}
	}
}

func (p *HTTPProvider) AccountInfo(ctx context.Context, id types.AccountId) (AccountInfo, error) {
	var body struct {
		Account   string `json:"account"`
		CreatedAt int64  `json:"created_timestamp_ms"`
	}
	if err := p.do(ctx, "/api/v1/accounts/"+string(id), nil, &body); err != nil {
		return AccountInfo{}, err
	}
	return AccountInfo{
		Account:   types.AccountId(body.Account),
		CreatedAt: time.UnixMilli(body.CreatedAt),
	}, nil
}

func (p *HTTPProvider) Transactions(ctx context.Context, id types.AccountId, limit int) ([]Transaction, error) {
	var body struct {
		Transactions []struct {
			TimestampMs  int64  `json:"timestamp_ms"`
			Counterparty string `json:"counterparty"`
			Amount       int64  `json:"amount"`
		} `json:"transactions"`
	}
	query := url.Values{"limit": {strconv.Itoa(limit)}}
	if err := p.do(ctx, "/api/v1/accounts/"+string(id)+"/transactions", query, &body); err != nil {
		return nil, err
	}
	out := make([]Transaction, 0, len(body.Transactions))
	for _, t := range body.Transactions {
		out = append(out, Transaction{
			Timestamp:    time.UnixMilli(t.TimestampMs),
			Counterparty: t.Counterparty,
			Amount:       t.Amount,
		})
	}
	return out, nil
}

func (p *HTTPProvider) TokenBalances(ctx context.Context, id types.AccountId) ([]TokenBalance, error) {
	var body struct {
		Balances []struct {
			TokenID string `json:"token_id"`
			Balance uint64 `json:"balance"`
		} `json:"balances"`
	}
	if err := p.do(ctx, "/api/v1/accounts/"+string(id)+"/tokens", nil, &body); err != nil {
		return nil, err
	}
	out := make([]TokenBalance, 0, len(body.Balances))
	for _, b := range body.Balances {
		out = append(out, TokenBalance{TokenID: b.TokenID, Balance: b.Balance})
	}
	return out, nil
}

func (p *HTTPProvider) TopicMessages(ctx context.Context, id types.AccountId, topicFilter []string) ([]TopicMessage, error) {
	var body struct {
		Messages []struct {
			TopicID     string `json:"topic_id"`
			TimestampMs int64  `json:"timestamp_ms"`
		} `json:"messages"`
	}
	query := url.Values{}
	if len(topicFilter) > 0 {
		query.Set("topics", strings.Join(topicFilter, ","))
	}
	if err := p.do(ctx, "/api/v1/accounts/"+string(id)+"/topic-messages", query, &body); err != nil {
		return nil, err
	}
	out := make([]TopicMessage, 0, len(body.Messages))
	for _, m := range body.Messages {
		out = append(out, TopicMessage{TopicID: m.TopicID, Timestamp: time.UnixMilli(m.TimestampMs)})
	}
	return out, nil
}
