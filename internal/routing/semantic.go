package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
)

// SimilarityClient scores a query against candidate endpoint ids. It is the
// engine's only network-bound collaborator; absence or error is a normal,
// non-fatal outcome.
type SimilarityClient interface {
	Similarity(ctx context.Context, query string, candidateIDs []string) (map[string]float64, error)
	Healthy(ctx context.Context) error
}

// HTTPSimilarityClient talks to the embedding microservice over plain JSON.
type HTTPSimilarityClient struct {
	baseURL string
	client  *http.Client
	logger  *logrus.Logger
}

// NewHTTPSimilarityClient builds a client with the given request timeout.
func NewHTTPSimilarityClient(baseURL string, timeout time.Duration, logger *logrus.Logger) *HTTPSimilarityClient {
	return &HTTPSimilarityClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type similarityRequest struct {
	Query      string   `json:"query"`
	Candidates []string `json:"candidates"`
}

type similarityResponse struct {
	Scores map[string]float64 `json:"scores"`
}

// Similarity posts the query and candidate ids and returns per-id scores.
func (c *HTTPSimilarityClient) Similarity(ctx context.Context, query string, candidateIDs []string) (map[string]float64, error) {
	body, err := json.Marshal(similarityRequest{Query: query, Candidates: candidateIDs})
	if err != nil {
		return nil, fmt.Errorf("encode similarity request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/similarity", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build similarity request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("similarity call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("similarity service returned %d", resp.StatusCode)
	}

	var parsed similarityResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode similarity response: %w", err)
	}
	return parsed.Scores, nil
}

// Healthy probes the similarity service.
func (c *HTTPSimilarityClient) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("similarity service health returned %d", resp.StatusCode)
	}
	return nil
}

// SemanticEnhancer blends keyword scores with semantic similarity when the
// backing service is reachable, and degrades silently to a no-op when it is
// not. It is enhancement-only: it never vetoes a candidate.
type SemanticEnhancer struct {
	client  SimilarityClient
	blend   float64 // keyword share of the blended score
	timeout time.Duration
	cache   *lru.Cache[string, map[string]float64]
	logger  *logrus.Logger
}

// NewSemanticEnhancer wires a similarity client with the configured blend
// weight (keyword share), per-call timeout, and score-cache size.
func NewSemanticEnhancer(client SimilarityClient, blendWeight float64, timeout time.Duration, cacheSize int, logger *logrus.Logger) (*SemanticEnhancer, error) {
	if blendWeight <= 0 || blendWeight > 1 {
		return nil, fmt.Errorf("semantic blend weight %v outside (0,1]", blendWeight)
	}
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	cache, err := lru.New[string, map[string]float64](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create similarity cache: %w", err)
	}
	return &SemanticEnhancer{
		client:  client,
		blend:   blendWeight,
		timeout: timeout,
		cache:   cache,
		logger:  logger,
	}, nil
}

// Enhance re-scores candidates by blending keyword and semantic scores and
// re-ranks on the blended value; a lower-ranked candidate is promoted only if
// its blended score is strictly higher. The bool reports availability: false
// means the caller proceeds with keyword-only scores.
func (s *SemanticEnhancer) Enhance(ctx context.Context, query string, candidates CandidateList) (CandidateList, bool) {
	if len(candidates) == 0 {
		return candidates, true
	}

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}
	key := query + "|" + strings.Join(ids, ",")

	scores, ok := s.cache.Get(key)
	if !ok {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		var err error
		scores, err = s.client.Similarity(callCtx, query, ids)
		if err != nil {
			s.logger.WithError(err).Debug("Semantic enhancement unavailable, using keyword-only scores")
			return candidates, false
		}
		s.cache.Add(key, scores)
	}

	blended := make(CandidateList, len(candidates))
	copy(blended, candidates)
	for i := range blended {
		sim := clamp01(scores[blended[i].ID])
		blended[i].BlendedScore = s.blend*blended[i].NormScore + (1-s.blend)*sim
	}
	sort.SliceStable(blended, func(i, j int) bool {
		return blended[i].BlendedScore > blended[j].BlendedScore
	})
	return blended, true
}
