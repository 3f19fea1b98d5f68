package utils

import "github.com/gin-gonic/gin"

// APIResponse adalah format standar JSON yang akan diterima Frontend.
// Contoh sukses  : { "status": true,  "message": "Sertifikat dibuat", "data": { ... } }
// Contoh gagal   : { "status": false, "message": "Bukti tidak terbaca", "errors": "evidence_unreadable" }
type APIResponse struct {
	Status  bool        `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Errors  interface{} `json:"errors,omitempty"`
}

// BuildResponseSuccess digunakan saat request berhasil (HTTP 200/201).
func BuildResponseSuccess(message string, data interface{}) APIResponse {
	return APIResponse{
		Status:  true,
		Message: message,
		Data:    data,
	}
}

// BuildResponseFailed digunakan saat terjadi error (HTTP 400, 401, 500, dll).
// err biasanya berupa kode error (string), data opsional.
func BuildResponseFailed(message string, err interface{}, data interface{}) APIResponse {
	return APIResponse{
		Status:  false,
		Message: message,
		Errors:  err,
		Data:    data,
	}
}

// AbortWithError menulis respons gagal berdasarkan Kind dari err (lihat StatusOf).
func AbortWithError(ctx *gin.Context, err error) {
	ctx.AbortWithStatusJSON(StatusOf(err),
		BuildResponseFailed(MessageOf(err), string(KindOf(err)), nil))
}
