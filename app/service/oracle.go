package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"credential-engagement-backend/app/model"
	"credential-engagement-backend/config"
	"credential-engagement-backend/utils"
)

// ClaimedMetadata adalah data yang diklaim user untuk sebuah sertifikat.
type ClaimedMetadata struct {
	Title         string     `json:"title"`
	Issuer        string     `json:"issuer"`
	IssueDate     *time.Time `json:"issueDate,omitempty"`
	CredentialID  string     `json:"credentialId,omitempty"`
	CredentialURL string     `json:"credentialUrl,omitempty"`
}

// ClaimedFromCertificate mengambil metadata klaim dari sertifikat.
func ClaimedFromCertificate(c *model.Certificate) ClaimedMetadata {
	return ClaimedMetadata{
		Title:         c.Title,
		Issuer:        c.Issuer,
		IssueDate:     c.IssueDate,
		CredentialID:  c.CredentialID,
		CredentialURL: c.CredentialURL,
	}
}

// ScoringOracle adalah layanan eksternal penilai keaslian sertifikat.
type ScoringOracle interface {
	// Score menilai teks hasil ekstraksi terhadap klaim (confidence 0-100).
	Score(ctx context.Context, text string, claimed ClaimedMetadata) (OracleAssessment, error)

	// CheckIntegrity memeriksa apakah gambar bukti diedit. (nil, nil) jika tidak didukung.
	CheckIntegrity(ctx context.Context, evidenceURL string) (*IntegritySignal, error)
}

// OracleClient memanggil oracle lewat HTTP JSON:
//   POST {url}/score     {text, claimed}        -> {confidence, editsDetected, issues}
//   POST {url}/extract   {url, fileType}        -> {text}
//   POST {url}/integrity {url}                  -> {tampered, confidence}
type OracleClient struct {
	baseURL     string
	apiKey      string
	timeout     time.Duration
	maxAttempts int
	percent     bool
	httpClient  *http.Client
	log         *utils.Logger
}

// NewOracleClient membuat client oracle. Client ini juga bisa dipakai sebagai TextExtractor.
func NewOracleClient(cfg config.OracleConfig, httpClient *http.Client, log *utils.Logger) *OracleClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if log == nil {
		log = utils.NewNopLogger()
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &OracleClient{
		baseURL:     strings.TrimRight(cfg.URL, "/"),
		apiKey:      cfg.APIKey,
		timeout:     timeout,
		maxAttempts: attempts,
		percent:     cfg.ConfidenceScale == config.ConfidenceScalePercent,
		httpClient:  httpClient,
		log:         log.With("component", "oracle"),
	}
}

// errPermanent menandai error yang tidak perlu di-retry (4xx).
type errPermanent struct {
	status int
	body   string
}

func (e *errPermanent) Error() string {
	return fmt.Sprintf("oracle status %d: %s", e.status, e.body)
}

// post mengirim request JSON dengan timeout per percobaan dan retry terbatas
// untuk error jaringan / 5xx.
func (c *OracleClient) post(ctx context.Context, path string, in, out interface{}) error {
	if c.baseURL == "" {
		return errors.New("oracle url tidak dikonfigurasi")
	}
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		lastErr = c.doOnce(ctx, path, payload, out)
		if lastErr == nil {
			return nil
		}
		var perm *errPermanent
		if errors.As(lastErr, &perm) || ctx.Err() != nil {
			return lastErr
		}
		c.log.Warn("oracle call failed", "path", path, "attempt", attempt, "error", lastErr)
	}
	return lastErr
}

func (c *OracleClient) doOnce(ctx context.Context, path string, payload []byte, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return &errPermanent{status: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("oracle status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode oracle response: %w", err)
	}
	return nil
}

// normalizeConfidence mengubah confidence oracle ke 0-100 sesuai skala deployment.
// Skala tidak ditebak dari nilainya: 1 pada skala percent tetap 1.
func normalizeConfidence(v float64, percent bool) int {
	if !percent {
		v *= 100
	}
	return clampScore(int(math.Round(v)))
}

func (c *OracleClient) Score(ctx context.Context, text string, claimed ClaimedMetadata) (OracleAssessment, error) {
	var resp struct {
		Confidence    float64  `json:"confidence"`
		EditsDetected bool     `json:"editsDetected"`
		Issues        []string `json:"issues"`
	}
	in := map[string]interface{}{"text": text, "claimed": claimed}
	if err := c.post(ctx, "/score", in, &resp); err != nil {
		return OracleAssessment{}, utils.NewError(utils.KindOracleUnavailable, "oracle scoring gagal", err)
	}
	return OracleAssessment{
		Confidence:    normalizeConfidence(resp.Confidence, c.percent),
		EditsDetected: resp.EditsDetected,
		Issues:        resp.Issues,
	}, nil
}

func (c *OracleClient) CheckIntegrity(ctx context.Context, evidenceURL string) (*IntegritySignal, error) {
	var resp struct {
		Supported  *bool   `json:"supported"`
		Tampered   bool    `json:"tampered"`
		Confidence float64 `json:"confidence"`
	}
	if err := c.post(ctx, "/integrity", map[string]string{"url": evidenceURL}, &resp); err != nil {
		var perm *errPermanent
		if errors.As(err, &perm) && perm.status == http.StatusNotFound {
			return nil, nil
		}
		return nil, utils.NewError(utils.KindOracleUnavailable, "integrity check gagal", err)
	}
	if resp.Supported != nil && !*resp.Supported {
		return nil, nil
	}
	return &IntegritySignal{Tampered: resp.Tampered, Confidence: normalizeConfidence(resp.Confidence, c.percent)}, nil
}

// Extract mengambil teks dari bukti lewat endpoint /extract.
// 422 dari oracle berarti bukti tidak bisa dibaca.
func (c *OracleClient) Extract(ctx context.Context, ref EvidenceRef) (string, error) {
	var resp struct {
		Text string `json:"text"`
	}
	in := map[string]string{"url": ref.URL, "fileType": string(ref.FileType)}
	if err := c.post(ctx, "/extract", in, &resp); err != nil {
		var perm *errPermanent
		if errors.As(err, &perm) && perm.status == http.StatusUnprocessableEntity {
			return "", ErrEvidenceUnreadable
		}
		return "", fmt.Errorf("oracle extract: %w", err)
	}
	if strings.TrimSpace(resp.Text) == "" {
		return "", ErrEvidenceUnreadable
	}
	return resp.Text, nil
}
