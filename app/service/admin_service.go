package service

import (
	"net/http"
	"regexp"
	"strings"
	"time"

	"credential-engagement-backend/app/model"
	"credential-engagement-backend/app/repository"
	"credential-engagement-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AdminService menangani operasi khusus admin: user, penyesuaian poin, review manual, penerbit.
// Route group-nya wajib dipasang di belakang middleware.RequireAdmin.
type AdminService interface {
	CreateUser(ctx *gin.Context)
	GetUserDetail(ctx *gin.Context)
	IssueToken(ctx *gin.Context)
	AdjustPoints(ctx *gin.Context)
	ReviewCertificate(ctx *gin.Context)
	ListIssuers(ctx *gin.Context)
	UpsertIssuer(ctx *gin.Context)
}

type adminService struct {
	userRepo     repository.UserRepository
	issuerRepo   repository.IssuerRepository
	ledger       GamificationService
	verification VerificationService
	jwtSecret    []byte
	tokenTTL     time.Duration
}

func NewAdminService(
	userRepo repository.UserRepository,
	issuerRepo repository.IssuerRepository,
	ledger GamificationService,
	verification VerificationService,
	jwtSecret []byte,
) AdminService {
	return &adminService{
		userRepo:     userRepo,
		issuerRepo:   issuerRepo,
		ledger:       ledger,
		verification: verification,
		jwtSecret:    jwtSecret,
		tokenTTL:     24 * time.Hour,
	}
}

func parseIDParam(ctx *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(ctx.Param(name))
	if err != nil {
		ctx.JSON(http.StatusBadRequest,
			utils.BuildResponseFailed("ID tidak valid", err.Error(), nil))
		return uuid.Nil, false
	}
	return id, true
}

// CreateUser membuat user baru (learner / admin).
func (s *adminService) CreateUser(ctx *gin.Context) {
	var input struct {
		Username string `json:"username" binding:"required"`
		FullName string `json:"fullName" binding:"required"`
		Role     string `json:"role"`
	}
	if err := ctx.ShouldBindJSON(&input); err != nil {
		ctx.JSON(http.StatusBadRequest,
			utils.BuildResponseFailed("Input tidak valid", err.Error(), nil))
		return
	}

	role := strings.ToLower(strings.TrimSpace(input.Role))
	if role == "" {
		role = utils.RoleLearner
	}
	if role != utils.RoleLearner && role != utils.RoleAdmin {
		ctx.JSON(http.StatusBadRequest,
			utils.BuildResponseFailed("Role harus learner atau admin", "invalid_role", nil))
		return
	}

	user := model.User{
		Username: strings.TrimSpace(input.Username),
		FullName: input.FullName,
		Role:     role,
		IsActive: true,
		Level:    1,
	}
	if err := s.userRepo.Create(ctx.Request.Context(), &user); err != nil {
		ctx.JSON(http.StatusInternalServerError,
			utils.BuildResponseFailed("Gagal membuat user", err.Error(), nil))
		return
	}

	ctx.JSON(http.StatusCreated, utils.BuildResponseSuccess("User berhasil dibuat", user))
}

// GetUserDetail mengambil user + badge.
func (s *adminService) GetUserDetail(ctx *gin.Context) {
	id, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}
	user, err := s.userRepo.FindByID(ctx.Request.Context(), id)
	if err != nil {
		utils.AbortWithError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, utils.BuildResponseSuccess("Detail user", user))
}

// IssueToken membuat JWT untuk user (dipakai tooling internal / integrasi).
func (s *adminService) IssueToken(ctx *gin.Context) {
	id, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}
	user, err := s.userRepo.FindByID(ctx.Request.Context(), id)
	if err != nil {
		utils.AbortWithError(ctx, err)
		return
	}
	if !user.IsActive {
		ctx.JSON(http.StatusForbidden,
			utils.BuildResponseFailed("User tidak aktif", "inactive_user", nil))
		return
	}

	token, err := utils.GenerateToken(s.jwtSecret, user.ID, user.Role, s.tokenTTL)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError,
			utils.BuildResponseFailed("Gagal membuat token", err.Error(), nil))
		return
	}
	ctx.JSON(http.StatusOK, utils.BuildResponseSuccess("Token berhasil dibuat", gin.H{
		"token":     token,
		"expiresIn": int(s.tokenTTL.Seconds()),
	}))
}

// AdjustPoints: koreksi poin (boleh negatif), dicatat sebagai achievement admin_adjustment.
func (s *adminService) AdjustPoints(ctx *gin.Context) {
	id, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}

	var input struct {
		Delta  int    `json:"delta" binding:"required"`
		Reason string `json:"reason" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&input); err != nil {
		ctx.JSON(http.StatusBadRequest,
			utils.BuildResponseFailed("Input tidak valid", err.Error(), nil))
		return
	}

	adminID, _ := getUUIDFromContext(ctx, "userID")
	res, err := s.ledger.AdjustPoints(ctx.Request.Context(), id, input.Delta, input.Reason, adminID)
	if err != nil {
		utils.AbortWithError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, utils.BuildResponseSuccess("Poin berhasil disesuaikan", res))
}

// ReviewCertificate: keputusan manual verified / rejected.
func (s *adminService) ReviewCertificate(ctx *gin.Context) {
	id, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}

	var input struct {
		Decision model.VerificationStatus `json:"decision" binding:"required"`
		Note     string                   `json:"note"`
	}
	if err := ctx.ShouldBindJSON(&input); err != nil {
		ctx.JSON(http.StatusBadRequest,
			utils.BuildResponseFailed("Input tidak valid", err.Error(), nil))
		return
	}

	adminID, _ := getUUIDFromContext(ctx, "userID")
	out, err := s.verification.Review(ctx.Request.Context(), adminID, id, input.Decision, input.Note)
	if err != nil {
		utils.AbortWithError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, utils.BuildResponseSuccess("Review sertifikat tersimpan", out))
}

func (s *adminService) ListIssuers(ctx *gin.Context) {
	issuers, err := s.issuerRepo.FindAll(ctx.Request.Context())
	if err != nil {
		ctx.JSON(http.StatusInternalServerError,
			utils.BuildResponseFailed("Gagal mengambil daftar penerbit", err.Error(), nil))
		return
	}
	ctx.JSON(http.StatusOK, utils.BuildResponseSuccess("Daftar penerbit terpercaya", issuers))
}

func (s *adminService) UpsertIssuer(ctx *gin.Context) {
	var input struct {
		Name                string `json:"name" binding:"required"`
		Domain              string `json:"domain"`
		CredentialIDPattern string `json:"credentialIdPattern"`
	}
	if err := ctx.ShouldBindJSON(&input); err != nil {
		ctx.JSON(http.StatusBadRequest,
			utils.BuildResponseFailed("Input tidak valid", err.Error(), nil))
		return
	}
	if input.CredentialIDPattern != "" {
		if _, err := regexp.Compile(input.CredentialIDPattern); err != nil {
			ctx.JSON(http.StatusBadRequest,
				utils.BuildResponseFailed("Pola credential id tidak valid", err.Error(), nil))
			return
		}
	}

	issuer := model.TrustedIssuer{
		Name:                strings.TrimSpace(input.Name),
		Domain:              strings.ToLower(strings.TrimSpace(input.Domain)),
		CredentialIDPattern: input.CredentialIDPattern,
	}
	if err := s.issuerRepo.Upsert(ctx.Request.Context(), &issuer); err != nil {
		ctx.JSON(http.StatusInternalServerError,
			utils.BuildResponseFailed("Gagal menyimpan penerbit", err.Error(), nil))
		return
	}
	ctx.JSON(http.StatusOK, utils.BuildResponseSuccess("Penerbit tersimpan", issuer))
}
