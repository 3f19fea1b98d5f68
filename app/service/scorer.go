package service

import (
	"credential-engagement-backend/app/model"
)

// Issue code yang bisa muncul di VerificationDetails.Issues.
const (
	IssueEditsDetected        = "edits_detected"
	IssueImageTampered        = "image_tampered"
	IssueIssuerMismatch       = "issuer_mismatch"
	IssueIssuerUnverifiable   = "issuer_unverifiable"
	IssueOracleUnavailable    = "oracle_unavailable"
	IssueIntegrityUnavailable = "integrity_unavailable"
)

const (
	issuerVerifiedBonus = 15
	issuerFailedPenalty = 20
	verifiedThreshold   = 75
	rejectedThreshold   = 40
	autoVerifyThreshold = 85
)

// OracleAssessment adalah jawaban scoring oracle untuk teks hasil ekstraksi.
type OracleAssessment struct {
	Confidence    int
	EditsDetected bool
	Issues        []string
}

// IntegritySignal adalah sinyal opsional pemeriksaan keaslian gambar.
type IntegritySignal struct {
	Tampered   bool
	Confidence int
}

// IssuerCheck adalah hasil cross-check ke database penerbit.
// Performed=false berarti tidak ada yang bisa dicek (tidak mempengaruhi skor).
type IssuerCheck struct {
	Performed bool
	Verified  bool
	Issues    []string
}

type ScoreInput struct {
	Oracle    OracleAssessment
	Integrity *IntegritySignal
	Issuer    IssuerCheck
}

// ScoreResult adalah skor komposit + keputusan sementara.
type ScoreResult struct {
	Score          int                      `json:"score"`
	Decision       model.VerificationStatus `json:"decision"`
	IssuerVerified bool                     `json:"issuerVerified"`
	EditsDetected  bool                     `json:"editsDetected"`
	Issues         []string                 `json:"issues"`
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// ComputeConfidence menggabungkan confidence oracle, sinyal integritas dan hasil
// cross-check penerbit menjadi satu skor (0-100) dan satu decision bucket.
//
// Urutan keputusan:
//  1. edits terdeteksi => flagged (berapa pun skornya)
//  2. penerbit terverifikasi (skor +15) dan skor >= 75 => verified
//  3. penerbit gagal (skor -20) dan skor <= 40 => rejected
//  4. skor > 85 => auto_verified
//  5. selain itu => pending
func ComputeConfidence(in ScoreInput) ScoreResult {
	res := ScoreResult{
		Score:         clampScore(in.Oracle.Confidence),
		EditsDetected: in.Oracle.EditsDetected,
		Issues:        appendUnique(nil, in.Oracle.Issues...),
	}
	if res.EditsDetected {
		res.Issues = appendUnique(res.Issues, IssueEditsDetected)
	}

	if in.Integrity != nil && in.Integrity.Tampered {
		res.EditsDetected = true
		res.Issues = appendUnique(res.Issues, IssueImageTampered)
	}

	res.Issues = appendUnique(res.Issues, in.Issuer.Issues...)

	escalation := model.VerificationStatus("")
	if in.Issuer.Performed {
		if in.Issuer.Verified {
			res.IssuerVerified = true
			res.Score = clampScore(res.Score + issuerVerifiedBonus)
			if res.Score >= verifiedThreshold {
				escalation = model.StatusVerified
			}
		} else {
			res.Score = clampScore(res.Score - issuerFailedPenalty)
			res.Issues = appendUnique(res.Issues, IssueIssuerMismatch)
			if res.Score <= rejectedThreshold {
				escalation = model.StatusRejected
			}
		}
	}

	switch {
	case res.EditsDetected:
		res.Decision = model.StatusFlagged
	case escalation != "":
		res.Decision = escalation
	case res.Score > autoVerifyThreshold:
		res.Decision = model.StatusAutoVerified
	default:
		res.Decision = model.StatusPending
	}
	return res
}

// appendUnique menambahkan nilai non-kosong yang belum ada di dst.
func appendUnique(dst []string, values ...string) []string {
	if dst == nil {
		dst = []string{}
	}
	for _, v := range values {
		if v == "" {
			continue
		}
		dup := false
		for _, existing := range dst {
			if existing == v {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, v)
		}
	}
	return dst
}
