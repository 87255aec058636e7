package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"reflect"
	"strings"

	"orders-service/internal/api/responses"
	"orders-service/internal/core/dashboard"
	"orders-service/internal/core/formula"
	"orders-service/internal/core/ingest"
	"orders-service/internal/domain"
	"orders-service/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// OrdersHandler lida com as requisições do painel de pedidos.
type OrdersHandler struct {
	service  dashboard.Service
	validate *validator.Validate
	logger   *zap.Logger
}

// NewOrdersHandler cria um novo handler de pedidos.
func NewOrdersHandler(service dashboard.Service, logger *zap.Logger) *OrdersHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	v := validator.New()
	// mensagens de validação com o nome do campo JSON
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &OrdersHandler{service: service, validate: v, logger: logger}
}

// RegisterRoutes registra as rotas no grupo. importLimits são aplicados só ao upload.
func (h *OrdersHandler) RegisterRoutes(rg *gin.RouterGroup, importLimits ...gin.HandlerFunc) {
	upload := append(append([]gin.HandlerFunc{}, importLimits...), h.HandleImport)
	rg.POST("/imports", upload...)
	rg.POST("/imports/:sessionId/commit", h.HandleCommit)
	rg.DELETE("/imports/:sessionId", h.HandleDiscard)

	rg.GET("/orders", h.HandleOrders)
	rg.GET("/orders/consolidated", h.HandleConsolidated)
	rg.GET("/columns", h.HandleColumns)

	rg.GET("/calculations", h.HandleListCalculations)
	rg.POST("/calculations", h.HandleSaveCalculation)
	rg.DELETE("/calculations/:id", h.HandleDeleteCalculation)
}

// HandleImport lê as planilhas enviadas e as prepara em uma sessão de importação.
func (h *OrdersHandler) HandleImport(c *gin.Context) {
	kind := domain.SourceKind(strings.ToLower(strings.TrimSpace(c.PostForm("kind"))))
	if !kind.Valid() {
		responses.Error(c, http.StatusBadRequest, "Tipo de planilha inválido (use pedidos, logistica ou custos)")
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		responses.Error(c, http.StatusBadRequest, "Requisição multipart inválida")
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		headers = form.File["files[]"]
	}
	if len(headers) == 0 {
		responses.Error(c, http.StatusBadRequest, "Nenhum arquivo (.csv, .xls, .xlsx) enviado")
		return
	}

	files, closeAll, err := openAll(headers)
	defer closeAll()
	if err != nil {
		responses.Error(c, http.StatusInternalServerError, "Não foi possível abrir os arquivos enviados", err.Error())
		return
	}

	view, err := h.service.Stage(c.Request.Context(), c.PostForm("sessionId"), kind, files)
	if err != nil {
		h.fail(c, err, "Erro ao processar os arquivos")
		return
	}
	responses.Success(c, view, fmt.Sprintf("%d linha(s) preparada(s) para importação", view.StagedRows))
}

func openAll(headers []*multipart.FileHeader) ([]ingest.File, func(), error) {
	var opened []multipart.File
	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}
	files := make([]ingest.File, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, closeAll, fmt.Errorf("%s: %w", fh.Filename, err)
		}
		opened = append(opened, f)
		files = append(files, ingest.File{Name: fh.Filename, Body: f})
	}
	return files, closeAll, nil
}

// HandleCommit grava as linhas da sessão.
func (h *OrdersHandler) HandleCommit(c *gin.Context) {
	view, err := h.service.Commit(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		h.fail(c, err, "Erro ao confirmar a importação")
		return
	}
	responses.Success(c, view, "Importação confirmada")
}

// HandleDiscard descarta a sessão sem gravar.
func (h *OrdersHandler) HandleDiscard(c *gin.Context) {
	if err := h.service.Discard(c.Param("sessionId")); err != nil {
		h.fail(c, err, "Erro ao descartar a importação")
		return
	}
	responses.Success(c, nil, "Importação descartada")
}

// HandleOrders devolve a tabela atual; com sessionId inclui as linhas ainda não gravadas.
func (h *OrdersHandler) HandleOrders(c *gin.Context) {
	view, err := h.service.View(c.Request.Context(), c.Query("sessionId"))
	if err != nil {
		h.fail(c, err, "Erro ao montar a tabela de pedidos")
		return
	}
	responses.Success(c, view, "")
}

// HandleConsolidated devolve os pedidos gravados no último commit.
func (h *OrdersHandler) HandleConsolidated(c *gin.Context) {
	records, err := h.service.Consolidated(c.Request.Context())
	if err != nil {
		h.fail(c, err, "Erro ao carregar os pedidos consolidados")
		return
	}
	responses.Success(c, records, "")
}

func (h *OrdersHandler) HandleColumns(c *gin.Context) {
	cols, err := h.service.Columns(c.Request.Context())
	if err != nil {
		h.fail(c, err, "Erro ao carregar as colunas")
		return
	}
	responses.Success(c, cols, "")
}

func (h *OrdersHandler) HandleListCalculations(c *gin.Context) {
	calcs, err := h.service.Calculations(c.Request.Context())
	if err != nil {
		h.fail(c, err, "Erro ao carregar os cálculos")
		return
	}
	responses.Success(c, calcs, "")
}

// HandleSaveCalculation valida a estrutura e a fórmula antes de gravar.
func (h *OrdersHandler) HandleSaveCalculation(c *gin.Context) {
	var calc domain.CustomCalculation
	if err := c.ShouldBindJSON(&calc); err != nil {
		responses.Error(c, http.StatusBadRequest, "Requisição inválida", err.Error())
		return
	}
	// o id é gerado pelo serviço quando vem vazio
	if err := h.validate.StructExcept(calc, "ID"); err != nil {
		responses.Error(c, http.StatusBadRequest, "Cálculo inválido", validationMessages(err)...)
		return
	}
	if _, err := formula.Compile(calc.Formula); err != nil {
		responses.Error(c, http.StatusBadRequest, "Fórmula inválida", err.Error())
		return
	}

	saved, err := h.service.SaveCalculation(c.Request.Context(), calc)
	if err != nil {
		h.fail(c, err, "Erro ao salvar o cálculo")
		return
	}
	responses.Success(c, saved, "Cálculo salvo")
}

func (h *OrdersHandler) HandleDeleteCalculation(c *gin.Context) {
	if err := h.service.DeleteCalculation(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err, "Erro ao remover o cálculo")
		return
	}
	responses.Success(c, nil, "Cálculo removido")
}

// fail traduz erros conhecidos em status HTTP; o resto vira 500.
func (h *OrdersHandler) fail(c *gin.Context, err error, message string) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		h.logger.Error(message, zap.String("path", c.Request.URL.Path), zap.Error(err))
	}
	responses.Error(c, code, message, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, dashboard.ErrSessionNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ingest.ErrUnsupportedFormat), errors.Is(err, dashboard.ErrNoRows):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func validationMessages(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, fmt.Sprintf("%s: regra %q não atendida", fe.Namespace(), fe.Tag()))
	}
	return out
}
