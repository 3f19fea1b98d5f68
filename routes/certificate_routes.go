package routes

import (
	"net/http"

	"credential-engagement-backend/app/service"
	"credential-engagement-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CertificateHandler menangani sertifikat milik user dan verifikasinya.
type CertificateHandler struct {
	certificates service.CertificateService
	verification service.VerificationService
}

func NewCertificateHandler(certificates service.CertificateService, verification service.VerificationService) *CertificateHandler {
	return &CertificateHandler{certificates: certificates, verification: verification}
}

// SetupCertificateRoutes mendaftarkan /api/v1/certificates. mw biasanya AuthMiddleware + ActivityTracker.
func (h *CertificateHandler) SetupCertificateRoutes(r *gin.Engine, mw ...gin.HandlerFunc) {
	g := r.Group("/api/v1/certificates")
	g.Use(mw...)
	{
		g.POST("", h.Create)
		g.GET("", h.List)
		g.GET("/:id", h.Get)
		g.PUT("/:id/skills", h.UpdateSkills)
		g.PUT("/:id/evidence", h.ReplaceEvidence)
		g.POST("/:id/verify", h.Verify)
		g.GET("/:id/history", h.History)
		g.DELETE("/:id", h.Delete)
	}
}

// Create menyimpan klaim sertifikat baru (status pending).
// ?verify=true langsung menjalankan verifikasi otomatis setelah disimpan.
func (h *CertificateHandler) Create(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	// 1. Binding input
	var input service.CertificateInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		ctx.JSON(http.StatusBadRequest,
			utils.BuildResponseFailed("Input tidak valid", err.Error(), nil))
		return
	}

	// 2. Simpan + award
	created, err := h.certificates.Create(ctx.Request.Context(), userID, input)
	if err != nil {
		utils.AbortWithError(ctx, err)
		return
	}

	// 3. Verifikasi langsung (opsional)
	if ctx.Query("verify") != "true" {
		ctx.JSON(http.StatusCreated, utils.BuildResponseSuccess("Sertifikat berhasil dibuat", created))
		return
	}
	outcome, err := h.verification.Verify(ctx.Request.Context(), userID, created.Certificate.ID)
	if err != nil {
		// sertifikat tetap tersimpan (pending); kirim error verifikasinya
		ctx.JSON(utils.StatusOf(err), utils.BuildResponseFailed(utils.MessageOf(err), string(utils.KindOf(err)), created))
		return
	}
	ctx.JSON(http.StatusCreated, utils.BuildResponseSuccess("Sertifikat dibuat dan diverifikasi", gin.H{
		"certificate":  created.Certificate,
		"awards":       created.Awards,
		"verification": outcome,
	}))
}

func (h *CertificateHandler) List(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	certs, err := h.certificates.List(ctx.Request.Context(), userID)
	if err != nil {
		utils.AbortWithError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, utils.BuildResponseSuccess("Daftar sertifikat", certs))
}

func (h *CertificateHandler) Get(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	cert, err := h.certificates.Get(ctx.Request.Context(), userID, id)
	if err != nil {
		utils.AbortWithError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, utils.BuildResponseSuccess("Detail sertifikat", cert))
}

func (h *CertificateHandler) UpdateSkills(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var input struct {
		SkillIDs []uuid.UUID `json:"skillIds"`
	}
	if err := ctx.ShouldBindJSON(&input); err != nil {
		ctx.JSON(http.StatusBadRequest,
			utils.BuildResponseFailed("Input tidak valid", err.Error(), nil))
		return
	}
	cert, err := h.certificates.UpdateSkills(ctx.Request.Context(), userID, id, input.SkillIDs)
	if err != nil {
		utils.AbortWithError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, utils.BuildResponseSuccess("Skill sertifikat diperbarui", cert))
}

// ReplaceEvidence mengganti bukti; status verifikasi kembali ke pending.
func (h *CertificateHandler) ReplaceEvidence(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var input service.EvidenceInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		ctx.JSON(http.StatusBadRequest,
			utils.BuildResponseFailed("Input tidak valid", err.Error(), nil))
		return
	}
	cert, err := h.certificates.ReplaceEvidence(ctx.Request.Context(), userID, id, input)
	if err != nil {
		utils.AbortWithError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, utils.BuildResponseSuccess("Bukti sertifikat diganti", cert))
}

// Verify menjalankan verifikasi otomatis dan mengembalikan keputusan.
func (h *CertificateHandler) Verify(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	out, err := h.verification.Verify(ctx.Request.Context(), userID, id)
	if err != nil {
		utils.AbortWithError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, utils.BuildResponseSuccess("Verifikasi selesai", out))
}

func (h *CertificateHandler) History(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	history, err := h.verification.History(ctx.Request.Context(), userID, id, isAdmin(ctx))
	if err != nil {
		utils.AbortWithError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, utils.BuildResponseSuccess("Riwayat verifikasi", history))
}

func (h *CertificateHandler) Delete(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	if err := h.certificates.Delete(ctx.Request.Context(), userID, id); err != nil {
		utils.AbortWithError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, utils.BuildResponseSuccess("Sertifikat dihapus", nil))
}
