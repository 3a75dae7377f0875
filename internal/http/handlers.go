package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"disc-assess/internal/llm"
	"disc-assess/internal/service"
)

// Mensajes mostrados al usuario final.
const (
	msgInvalidRequest   = "requisição inválida"
	msgUnauthorized     = "não autorizado"
	msgNotFound         = "não encontrado"
	msgInternal         = "erro interno, tente novamente mais tarde"
	msgConnectivity     = "serviço de análise indisponível, verifique sua conexão e tente novamente"
	msgEmailUnavailable = "não foi possível enviar o e-mail, tente novamente mais tarde"
	msgTooManyCodes     = "muitas solicitações de código, aguarde alguns minutos"
)

// rateLimitMessage es el texto para 429 del proveedor LLM.
func rateLimitMessage(seconds int) string {
	return fmt.Sprintf("limite de requisições atingido, tente novamente em %d segundos", seconds)
}

// writeError traduce errores de servicio a status HTTP y deja todo en el log.
func writeError(c *gin.Context, logger *zap.Logger, op string, err error) {
	fields := []zap.Field{zap.String("op", op), zap.Error(err)}

	if secs, ok := service.RetryAfterSeconds(err); ok {
		logger.Warn("request rate limited", append(fields, zap.Int("retry_after_seconds", secs))...)
		c.Header("Retry-After", strconv.Itoa(secs))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": rateLimitMessage(secs), "retry_after": secs})
		return
	}

	status, msg := http.StatusInternalServerError, msgInternal
	switch {
	case errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrWeakPassword),
		errors.Is(err, service.ErrInvalidRole),
		errors.Is(err, service.ErrInvalidKind),
		errors.Is(err, service.ErrInvalidAnswer),
		errors.Is(err, service.ErrNoAnswers),
		errors.Is(err, service.ErrLoginCodeMissing),
		errors.Is(err, service.ErrLoginCodeExpired),
		errors.Is(err, service.ErrLoginCodeInvalid):
		status, msg = http.StatusBadRequest, userMessage(err)
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrJWTInvalid),
		errors.Is(err, service.ErrJWTExpired):
		status, msg = http.StatusUnauthorized, userMessage(err)
	case errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrAssessmentNotFound),
		errors.Is(err, service.ErrResultNotFound):
		status, msg = http.StatusNotFound, userMessage(err)
	case errors.Is(err, service.ErrUserExists),
		errors.Is(err, service.ErrAssessmentCompleted):
		status, msg = http.StatusConflict, userMessage(err)
	case errors.Is(err, service.ErrTooManyRequests):
		status, msg = http.StatusTooManyRequests, msgTooManyCodes
	case errors.Is(err, service.ErrEmailSendFailure):
		status, msg = http.StatusServiceUnavailable, msgEmailUnavailable
	case errors.Is(err, llm.ErrUnavailable), errors.Is(err, service.ErrQueueClosed):
		status, msg = http.StatusServiceUnavailable, msgConnectivity
	}

	fields = append(fields, zap.Int("status", status))
	switch {
	case status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable:
		logger.Error("request failed", fields...)
	case status == http.StatusServiceUnavailable || status == http.StatusTooManyRequests:
		logger.Warn("request rejected", fields...)
	default:
		logger.Info("request rejected", fields...)
	}
	c.JSON(status, gin.H{"error": msg})
}

var userMessages = map[error]string{
	service.ErrInvalidEmail:        "e-mail inválido",
	service.ErrWeakPassword:        "a senha deve ter pelo menos 8 caracteres",
	service.ErrInvalidRole:         "perfil de acesso inválido",
	service.ErrInvalidKind:         "tipo de avaliação inválido",
	service.ErrInvalidAnswer:       "resposta inválida",
	service.ErrNoAnswers:           "responda ao menos uma pergunta antes de concluir",
	service.ErrLoginCodeMissing:    "solicite um código de acesso primeiro",
	service.ErrLoginCodeExpired:    "código de acesso expirado",
	service.ErrLoginCodeInvalid:    "código de acesso inválido",
	service.ErrInvalidCredentials:  "e-mail ou senha incorretos",
	service.ErrJWTInvalid:          "sessão inválida",
	service.ErrJWTExpired:          "sessão expirada",
	service.ErrUserNotFound:        "usuário não encontrado",
	service.ErrAssessmentNotFound:  "avaliação não encontrada",
	service.ErrResultNotFound:      "resultado não encontrado",
	service.ErrUserExists:          "já existe uma conta com este e-mail",
	service.ErrAssessmentCompleted: "avaliação já concluída",
}

func userMessage(err error) string {
	for target, msg := range userMessages {
		if errors.Is(err, target) {
			return msg
		}
	}
	return msgInvalidRequest
}

func badRequest(c *gin.Context, logger *zap.Logger, op string, err error) {
	logger.Warn("invalid "+op+" request", zap.Error(err))
	c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidRequest})
}

// viewerFrom arma el Viewer a partir de los claims del access token.
func viewerFrom(c *gin.Context) (service.Viewer, bool) {
	claims, ok := GetAuthClaims(c)
	if !ok || claims.UserID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": msgUnauthorized})
		return service.Viewer{}, false
	}
	return service.Viewer{UserID: claims.UserID, Admin: claims.IsAdmin()}, true
}

// pageParams lee ?page y ?page_size; valores invalidos quedan en 0 y el servicio aplica defaults.
func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.Query("page"))
	size, _ := strconv.Atoi(c.Query("page_size"))
	return page, size
}
