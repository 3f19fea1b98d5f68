package service

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"credential-engagement-backend/app/repository"
)

const (
	IssueCredentialURLMismatch = "credential_url_domain_mismatch"
	IssueCredentialIDMismatch  = "credential_id_mismatch"
)

// IssuerRegistry melakukan cross-check klaim sertifikat ke daftar penerbit terpercaya.
type IssuerRegistry interface {
	Lookup(ctx context.Context, claimed ClaimedMetadata) (IssuerCheck, error)
}

type issuerRegistry struct {
	repo repository.IssuerRepository
}

func NewIssuerRegistry(repo repository.IssuerRepository) IssuerRegistry {
	return &issuerRegistry{repo: repo}
}

// Lookup: penerbit harus terdaftar dan minimal satu field (domain URL kredensial
// atau pola credential id) bisa dicek. Semua field yang dicek harus cocok.
func (r *issuerRegistry) Lookup(ctx context.Context, claimed ClaimedMetadata) (IssuerCheck, error) {
	if strings.TrimSpace(claimed.Issuer) == "" {
		return IssuerCheck{}, nil
	}

	issuer, err := r.repo.FindByName(ctx, claimed.Issuer)
	if err != nil {
		return IssuerCheck{}, err
	}
	if issuer == nil {
		return IssuerCheck{Issues: []string{IssueIssuerUnverifiable}}, nil
	}

	check := IssuerCheck{Verified: true}

	// 1. domain URL kredensial
	if issuer.Domain != "" && claimed.CredentialURL != "" {
		check.Performed = true
		if !hostMatchesDomain(claimed.CredentialURL, issuer.Domain) {
			check.Verified = false
			check.Issues = append(check.Issues, IssueCredentialURLMismatch)
		}
	}

	// 2. pola credential id
	if issuer.CredentialIDPattern != "" && claimed.CredentialID != "" {
		if re, err := regexp.Compile(issuer.CredentialIDPattern); err == nil {
			check.Performed = true
			if !re.MatchString(strings.TrimSpace(claimed.CredentialID)) {
				check.Verified = false
				check.Issues = append(check.Issues, IssueCredentialIDMismatch)
			}
		}
	}

	if !check.Performed {
		return IssuerCheck{Issues: []string{IssueIssuerUnverifiable}}, nil
	}
	return check, nil
}

func hostMatchesDomain(rawURL, domain string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	domain = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(domain), "."))
	return host == domain || strings.HasSuffix(host, "."+domain)
}
