package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"credential-engagement-backend/app/model"
	"credential-engagement-backend/config"
	"credential-engagement-backend/utils"
)

// =========================
// Issuer registry
// =========================

func TestIssuerRegistryLookup(t *testing.T) {
	repo := &fakeIssuerRepo{issuers: []model.TrustedIssuer{
		{Name: "Coursera", Domain: "coursera.org", CredentialIDPattern: `^[A-Z0-9]{12}$`},
		{Name: "Dicoding"},
	}}
	reg := NewIssuerRegistry(repo)

	cases := []struct {
		name         string
		claimed      ClaimedMetadata
		wantPerform  bool
		wantVerified bool
		wantIssue    string
	}{
		{"no issuer", ClaimedMetadata{}, false, false, ""},
		{"unknown issuer", ClaimedMetadata{Issuer: "Acme Academy"}, false, false, IssueIssuerUnverifiable},
		{"nothing checkable", ClaimedMetadata{Issuer: "Dicoding", CredentialURL: "https://dicoding.com/x"}, false, false, IssueIssuerUnverifiable},
		{"domain and id match", ClaimedMetadata{Issuer: " coursera ", CredentialURL: "https://www.coursera.org/verify/ABCDEF123456", CredentialID: "ABCDEF123456"}, true, true, ""},
		{"domain mismatch", ClaimedMetadata{Issuer: "Coursera", CredentialURL: "https://coursera.org.evil.io/verify"}, true, false, IssueCredentialURLMismatch},
		{"id mismatch", ClaimedMetadata{Issuer: "Coursera", CredentialID: "abc"}, true, false, IssueCredentialIDMismatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := reg.Lookup(context.Background(), tc.claimed)
			if err != nil {
				t.Fatalf("lookup: %v", err)
			}
			if got.Performed != tc.wantPerform || got.Verified != tc.wantVerified {
				t.Fatalf("check: %+v", got)
			}
			if tc.wantIssue == "" && len(got.Issues) != 0 {
				t.Fatalf("unexpected issues: %v", got.Issues)
			}
			if tc.wantIssue != "" && (len(got.Issues) == 0 || got.Issues[0] != tc.wantIssue) {
				t.Fatalf("issues: want %s got %v", tc.wantIssue, got.Issues)
			}
		})
	}
}

// =========================
// Oracle HTTP client
// =========================

func newTestOracle(t *testing.T, h http.HandlerFunc) *OracleClient {
	return newScaledTestOracle(t, config.ConfidenceScaleFraction, h)
}

func newScaledTestOracle(t *testing.T, scale string, h http.HandlerFunc) *OracleClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewOracleClient(config.OracleConfig{
		URL:             srv.URL,
		APIKey:          "secret",
		Timeout:         2 * time.Second,
		MaxAttempts:     3,
		ConfidenceScale: scale,
	}, srv.Client(), utils.NewNopLogger())
}

func TestOracleScoreRetriesServerErrors(t *testing.T) {
	var calls int32
	client := newTestOracle(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/score" || r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("unexpected request %s auth=%q", r.URL.Path, r.Header.Get("Authorization"))
		}
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"confidence": 0.874, "editsDetected": true, "issues": []string{"font_mismatch"}})
	})

	got, err := client.Score(context.Background(), "teks", ClaimedMetadata{Title: "Go"})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Fatalf("calls: want=2 got=%d", n)
	}
	if got.Confidence != 87 || !got.EditsDetected || len(got.Issues) != 1 {
		t.Fatalf("assessment: %+v", got)
	}
}

func TestOracleScoreClientErrorNotRetried(t *testing.T) {
	var calls int32
	client := newTestOracle(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad request", http.StatusBadRequest)
	})

	_, err := client.Score(context.Background(), "teks", ClaimedMetadata{})
	if !utils.IsKind(err, utils.KindOracleUnavailable) {
		t.Fatalf("want oracle_unavailable got=%v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("4xx must not be retried, calls=%d", n)
	}
}

func TestOracleExtractUnreadable(t *testing.T) {
	client := newTestOracle(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	})
	_, err := client.Extract(context.Background(), EvidenceRef{URL: "https://x.io/a.pdf", FileType: model.EvidencePDF})
	if !errors.Is(err, ErrEvidenceUnreadable) {
		t.Fatalf("want ErrEvidenceUnreadable got=%v", err)
	}
}

func TestOracleIntegrityUnsupported(t *testing.T) {
	client := newTestOracle(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"supported":false}`))
	})
	sig, err := client.CheckIntegrity(context.Background(), "https://x.io/a.png")
	if err != nil || sig != nil {
		t.Fatalf("want (nil, nil) got=(%v, %v)", sig, err)
	}
}

func TestNormalizeConfidence(t *testing.T) {
	t.Run("fraction", func(t *testing.T) {
		cases := map[float64]int{0: 0, 0.01: 1, 0.5: 50, 0.874: 87, 1: 100, 1.4: 100, -0.2: 0}
		for in, want := range cases {
			if got := normalizeConfidence(in, false); got != want {
				t.Errorf("normalizeConfidence(%v, fraction) = %d, want %d", in, got, want)
			}
		}
	})
	t.Run("percent", func(t *testing.T) {
		cases := map[float64]int{0: 0, 0.5: 1, 1: 1, 42: 42, 99.6: 100, 180: 100, -3: 0}
		for in, want := range cases {
			if got := normalizeConfidence(in, true); got != want {
				t.Errorf("normalizeConfidence(%v, percent) = %d, want %d", in, got, want)
			}
		}
	})
}

func TestPercentOracleLowConfidenceNeverAutoVerifies(t *testing.T) {
	client := newScaledTestOracle(t, config.ConfidenceScalePercent, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"confidence":1}`))
	})

	assessment, err := client.Score(context.Background(), "Certificate of Completion", ClaimedMetadata{})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if assessment.Confidence != 1 {
		t.Fatalf("confidence: want=1 got=%d", assessment.Confidence)
	}
	got := ComputeConfidence(ScoreInput{Oracle: assessment})
	if got.Score != 1 || got.Decision != model.StatusPending {
		t.Fatalf("want score=1 decision=pending got score=%d decision=%s", got.Score, got.Decision)
	}
}

// =========================
// Chain extractor
// =========================

type stubExtractor struct {
	text  string
	err   error
	calls int
}

func (s *stubExtractor) Extract(context.Context, EvidenceRef) (string, error) {
	s.calls++
	return s.text, s.err
}

func TestChainExtractor(t *testing.T) {
	ref := EvidenceRef{URL: "https://x.io/a.png", FileType: model.EvidenceImage}

	t.Run("skips unsupported and technical errors", func(t *testing.T) {
		unsupported := &stubExtractor{err: ErrUnsupportedEvidence}
		broken := &stubExtractor{err: errors.New("dial tcp: timeout")}
		ok := &stubExtractor{text: "hello"}
		got, err := NewChainExtractor(nil, unsupported, nil, broken, ok).Extract(context.Background(), ref)
		if err != nil || got != "hello" {
			t.Fatalf("got=%q err=%v", got, err)
		}
	})

	t.Run("unreadable stops the chain", func(t *testing.T) {
		first := &stubExtractor{err: ErrEvidenceUnreadable}
		second := &stubExtractor{text: "never"}
		_, err := NewChainExtractor(nil, first, second).Extract(context.Background(), ref)
		if !utils.IsKind(err, utils.KindEvidenceUnreadable) || second.calls != 0 {
			t.Fatalf("err=%v second.calls=%d", err, second.calls)
		}
	})

	t.Run("all failed is unreadable", func(t *testing.T) {
		_, err := NewChainExtractor(nil, &stubExtractor{err: errors.New("boom")}).Extract(context.Background(), ref)
		if !utils.IsKind(err, utils.KindEvidenceUnreadable) {
			t.Fatalf("err=%v", err)
		}
	})

	t.Run("empty url", func(t *testing.T) {
		_, err := NewChainExtractor(nil, &stubExtractor{text: "x"}).Extract(context.Background(), EvidenceRef{})
		if !errors.Is(err, ErrEvidenceUnreadable) {
			t.Fatalf("err=%v", err)
		}
	})
}

func TestCollapseWhitespace(t *testing.T) {
	if got := collapseWhitespace("  Certificate\n\tof   Completion \n"); got != "Certificate of Completion" {
		t.Fatalf("got=%q", got)
	}
}
