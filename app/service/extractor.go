package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"credential-engagement-backend/app/model"
	"credential-engagement-backend/utils"

	vision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"
)

// EvidenceRef menunjuk bukti sertifikat yang akan dibaca.
type EvidenceRef struct {
	URL      string
	FileType model.EvidenceType
}

// EvidenceFromCertificate memilih bukti file; bila tidak ada, URL kredensial.
func EvidenceFromCertificate(c *model.Certificate) EvidenceRef {
	if c.EvidenceURL != "" {
		return EvidenceRef{URL: c.EvidenceURL, FileType: c.EvidenceFileType}
	}
	return EvidenceRef{URL: c.CredentialURL, FileType: model.EvidenceURL}
}

var (
	// ErrEvidenceUnreadable: ekstraksi tidak menghasilkan teks yang bisa dipakai.
	ErrEvidenceUnreadable = utils.NewError(utils.KindEvidenceUnreadable, "bukti sertifikat tidak dapat dibaca", nil)

	// ErrUnsupportedEvidence: extractor ini tidak menangani tipe bukti tersebut (coba extractor berikutnya).
	ErrUnsupportedEvidence = errors.New("tipe bukti tidak didukung extractor")
)

// TextExtractor mengambil teks dari bukti sertifikat.
type TextExtractor interface {
	Extract(ctx context.Context, ref EvidenceRef) (string, error)
}

// =========================
// Google Cloud Vision (OCR gambar)
// =========================

// VisionExtractor menjalankan DOCUMENT_TEXT_DETECTION untuk bukti bertipe image.
type VisionExtractor struct {
	client  *vision.ImageAnnotatorClient
	timeout time.Duration
}

// NewVisionExtractor membuat OCR extractor berbasis Cloud Vision.
// credentialsFile kosong => Application Default Credentials.
func NewVisionExtractor(ctx context.Context, credentialsFile string) (*VisionExtractor, error) {
	var opts []option.ClientOption
	if strings.TrimSpace(credentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}
	return &VisionExtractor{client: client, timeout: 60 * time.Second}, nil
}

func (e *VisionExtractor) Close() error {
	if e == nil || e.client == nil {
		return nil
	}
	return e.client.Close()
}

func (e *VisionExtractor) Extract(ctx context.Context, ref EvidenceRef) (string, error) {
	if ref.FileType != model.EvidenceImage {
		return "", ErrUnsupportedEvidence
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req := &visionpb.AnnotateImageRequest{
		Image: &visionpb.Image{Source: &visionpb.ImageSource{ImageUri: ref.URL}},
		Features: []*visionpb.Feature{
			{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
		},
	}
	resp, err := e.client.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{req},
	})
	if err != nil {
		return "", fmt.Errorf("vision BatchAnnotateImages: %w", err)
	}
	if resp == nil || len(resp.Responses) == 0 || resp.Responses[0] == nil {
		return "", ErrEvidenceUnreadable
	}

	r0 := resp.Responses[0]
	if r0.Error != nil && r0.Error.Message != "" {
		return "", fmt.Errorf("vision annotate error: %s", r0.Error.Message)
	}
	if r0.FullTextAnnotation == nil {
		return "", ErrEvidenceUnreadable
	}
	text := collapseWhitespace(r0.FullTextAnnotation.Text)
	if text == "" {
		return "", ErrEvidenceUnreadable
	}
	return text, nil
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// =========================
// Chain: coba extractor satu per satu
// =========================

type chainExtractor struct {
	extractors []TextExtractor
	log        *utils.Logger
}

// NewChainExtractor mencoba setiap extractor berurutan. Extractor yang mengembalikan
// ErrUnsupportedEvidence atau error teknis dilewati; ErrEvidenceUnreadable langsung dikembalikan.
func NewChainExtractor(log *utils.Logger, extractors ...TextExtractor) TextExtractor {
	if log == nil {
		log = utils.NewNopLogger()
	}
	var list []TextExtractor
	for _, e := range extractors {
		if e != nil {
			list = append(list, e)
		}
	}
	return &chainExtractor{extractors: list, log: log}
}

func (c *chainExtractor) Extract(ctx context.Context, ref EvidenceRef) (string, error) {
	if strings.TrimSpace(ref.URL) == "" {
		return "", ErrEvidenceUnreadable
	}

	var lastErr error
	for i, e := range c.extractors {
		text, err := e.Extract(ctx, ref)
		switch {
		case err == nil:
			return text, nil
		case errors.Is(err, ErrUnsupportedEvidence):
			continue
		case utils.IsKind(err, utils.KindEvidenceUnreadable):
			return "", err
		default:
			c.log.Warn("extractor failed, trying next", "index", i, "fileType", ref.FileType, "error", err)
			lastErr = err
		}
	}
	if lastErr != nil {
		return "", utils.NewError(utils.KindEvidenceUnreadable, "bukti sertifikat tidak dapat dibaca", lastErr)
	}
	return "", ErrEvidenceUnreadable
}
