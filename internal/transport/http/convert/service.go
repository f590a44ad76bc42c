package convert

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	blobstore "imgconv-server-go/internal/domain/blob/store"
	domainconvert "imgconv-server-go/internal/domain/convert"
	"imgconv-server-go/internal/domain/stats"
	"imgconv-server-go/internal/platform/config"
	"imgconv-server-go/internal/platform/errors"
	"imgconv-server-go/internal/platform/observability"
	httptransport "imgconv-server-go/internal/transport/http"
	"imgconv-server-go/internal/utils"
)

// multipart 表单在内存中保留的上限，超出部分落盘
const formMemory = 32 << 20

// Service 转换服务的HTTP传输层实现
type Service struct {
	logger    *utils.Logger
	config    *config.Config
	converter *domainconvert.Converter
	store     blobstore.Store
	stats     *stats.Collector
}

// NewService 创建新的转换服务实例
func NewService(
	cfg *config.Config,
	logger *utils.Logger,
	converter *domainconvert.Converter,
	store blobstore.Store,
	collector *stats.Collector,
) (*Service, error) {
	if cfg == nil {
		return nil, errors.New(errors.KindConfig, "convert.new", "config is required")
	}
	if logger == nil {
		return nil, errors.New(errors.KindConfig, "convert.new", "logger is required")
	}
	if converter == nil {
		return nil, errors.New(errors.KindConfig, "convert.new", "converter is required")
	}
	if store == nil {
		return nil, errors.New(errors.KindConfig, "convert.new", "blob store is required")
	}
	return &Service{
		logger:    logger,
		config:    cfg,
		converter: converter,
		store:     store,
		stats:     collector,
	}, nil
}

// Register 注册转换相关的HTTP路由
func (s *Service) Register(_ context.Context, router *gin.RouterGroup) error {
	router.POST("/convert", s.handleConvert)
	router.GET("/download/:id", s.handleDownload)
	router.POST("/preview", s.handlePreview)
	router.GET("/formats", s.handleFormats)
	router.GET("/stats", s.handleStats)
	router.GET("/system", s.handleSystem)

	s.logger.InfoTag("HTTP", "转换服务路由注册完成")
	return nil
}

// handleConvert 处理转换请求
// @Summary 转换图像
// @Tags Convert
// @Accept multipart/form-data
// @Produce json
// @Success 200 {object} Response
// @Router /convert [post]
func (s *Service) handleConvert(c *gin.Context) {
	s.limitBody(c, int64(max(s.config.Security.MaxFiles, 1)))

	req, err := s.parseRequest(c)
	if err != nil {
		s.respondParseError(c, err)
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		s.respondParseError(c, err)
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		headers = form.File["file"]
	}
	if len(headers) == 0 {
		httptransport.RespondError(c, http.StatusBadRequest, "no files uploaded", nil)
		return
	}
	if limit := s.config.Security.MaxFiles; limit > 0 && len(headers) > limit {
		httptransport.RespondError(c, http.StatusBadRequest,
			fmt.Sprintf("too many files: %d (max %d)", len(headers), limit), nil)
		return
	}

	items := make([]domainconvert.Item, 0, len(headers))
	for _, fh := range headers {
		data, err := s.readUpload(fh)
		if err != nil {
			s.respondParseError(c, err)
			return
		}
		items = append(items, domainconvert.Item{Name: fh.Filename, Data: data})
	}

	s.logger.InfoTag("转换", "request: %d file(s), %s", len(items), req)
	report := s.converter.ConvertMany(c.Request.Context(), items, req)

	resp, err := s.storeReport(c.Request.Context(), report)
	if err != nil {
		s.logger.ErrorTag("存储", "保存转换结果失败: %v", err)
		httptransport.RespondKindError(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, resp, "")
}

// handleDownload 下载转换结果
// @Summary 下载转换结果
// @Tags Convert
// @Param id path string true "download id"
// @Router /download/{id} [get]
func (s *Service) handleDownload(c *gin.Context) {
	id := c.Param("id")
	blob, err := s.store.Get(c.Request.Context(), id)
	if stderrors.Is(err, blobstore.ErrNotFound) {
		httptransport.RespondError(c, http.StatusNotFound, "result not found or expired", gin.H{"id": id})
		return
	}
	if err != nil {
		s.logger.ErrorTag("存储", "读取结果 %s 失败: %v", id, err)
		httptransport.RespondKindError(c, err)
		return
	}

	c.Header("Content-Disposition", contentDisposition(blob.Name))
	c.Data(http.StatusOK, blob.MIME, blob.Data)

	if s.config.Convert.DeleteAfterDownload {
		if err := s.store.Delete(c.Request.Context(), id); err != nil {
			s.logger.WarnTag("存储", "删除已下载结果 %s 失败: %v", id, err)
		}
	}
}

// handlePreview 生成预览缩略图
// @Summary 预览图像
// @Tags Convert
// @Accept multipart/form-data
// @Produce image/png
// @Router /preview [post]
func (s *Service) handlePreview(c *gin.Context) {
	s.limitBody(c, 1)

	fh, err := c.FormFile("file")
	if err != nil {
		s.respondParseError(c, err)
		return
	}
	data, err := s.readUpload(fh)
	if err != nil {
		s.respondParseError(c, err)
		return
	}

	out, err := s.converter.Preview(c.Request.Context(), data)
	if err != nil {
		s.logger.WarnTag("转换", "preview %s failed: %v", fh.Filename, err)
		httptransport.RespondKindError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", out)
}

// FormatInfo 描述一个可选的目标格式
type FormatInfo struct {
	Name    string   `json:"name"`
	Ext     string   `json:"ext"`
	MIME    string   `json:"mime"`
	Aliases []string `json:"aliases,omitempty"`
}

// handleFormats 列出目标格式
// @Summary 列出目标格式
// @Tags Meta
// @Produce json
// @Router /formats [get]
func (s *Service) handleFormats(c *gin.Context) {
	formats := domainconvert.Formats()
	out := make([]FormatInfo, 0, len(formats))
	for _, f := range formats {
		t := domainconvert.ParseTarget(f.String())
		info := FormatInfo{Name: f.String(), Ext: t.Ext(), MIME: t.MIME()}
		switch f {
		case domainconvert.FormatJPEG:
			info.Aliases = []string{"jpg"}
		case domainconvert.FormatTIFF:
			info.Aliases = []string{"tif"}
		}
		out = append(out, info)
	}
	httptransport.RespondSuccess(c, http.StatusOK, out, "")
}

// handleStats 返回转换统计与存储占用
// @Summary 转换统计
// @Tags Meta
// @Produce json
// @Router /stats [get]
func (s *Service) handleStats(c *gin.Context) {
	storeStats, err := s.store.Stats(c.Request.Context())
	if err != nil {
		s.logger.WarnTag("统计", "读取存储统计失败: %v", err)
	}
	data := gin.H{"store": storeStats}
	if s.stats != nil {
		data["conversions"] = s.stats.Snapshot()
	}
	if observability.Enabled() {
		data["metrics"] = observability.Snapshot()
	}
	httptransport.RespondSuccess(c, http.StatusOK, data, "")
}

func (s *Service) limitBody(c *gin.Context, files int64) {
	if s.config.Security.MaxFileSize <= 0 {
		return
	}
	// 为表单字段和 multipart 边界留出余量
	limit := s.config.Security.MaxFileSize*files + 1<<20
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
}

func (s *Service) readUpload(fh *multipart.FileHeader) ([]byte, error) {
	if limit := s.config.Security.MaxFileSize; limit > 0 && fh.Size > limit {
		return nil, errors.Newf(errors.KindTransport, "convert.upload",
			"file %s too large: %d bytes (max %d bytes)", fh.Filename, fh.Size, limit)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, errors.Wrap(errors.KindTransport, "convert.upload", "cannot open upload "+fh.Filename, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.Wrap(errors.KindTransport, "convert.upload", "cannot read upload "+fh.Filename, err)
	}
	return data, nil
}

func (s *Service) parseRequest(c *gin.Context) (domainconvert.Request, error) {
	if err := c.Request.ParseMultipartForm(formMemory); err != nil && !stderrors.Is(err, http.ErrNotMultipart) {
		return domainconvert.Request{}, err
	}

	format := strings.TrimSpace(c.PostForm("format"))
	if format == "" {
		return domainconvert.Request{}, errors.New(errors.KindTransport, "convert.parse", "format is required")
	}
	req := domainconvert.NewRequest(format)
	req.Orient = s.config.Convert.AutoOrient

	var err error
	if req.Width, err = formInt(c, "width"); err != nil {
		return req, err
	}
	if req.Height, err = formInt(c, "height"); err != nil {
		return req, err
	}
	if req.Brightness, err = formFactor(c, "brightness"); err != nil {
		return req, err
	}
	if req.Contrast, err = formFactor(c, "contrast"); err != nil {
		return req, err
	}
	if req.Saturation, err = formFactor(c, "saturation"); err != nil {
		return req, err
	}
	if v := c.PostForm("orient"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return req, errors.Newf(errors.KindTransport, "convert.parse", "invalid orient: %q", v)
		}
		req.Orient = b
	}
	return req, nil
}

func formInt(c *gin.Context, key string) (int, error) {
	v := strings.TrimSpace(c.PostForm(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.Newf(errors.KindTransport, "convert.parse", "invalid %s: %q", key, v)
	}
	return n, nil
}

func formFactor(c *gin.Context, key string) (float64, error) {
	v := strings.TrimSpace(c.PostForm(key))
	if v == "" {
		return 1.0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return 0, errors.Newf(errors.KindTransport, "convert.parse", "invalid %s: %q", key, v)
	}
	return f, nil
}

func (s *Service) respondParseError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if stderrors.As(err, &tooLarge) {
		httptransport.RespondError(c, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit), nil)
		return
	}
	if errors.KindOf(err) == errors.KindUnknown {
		err = errors.Wrap(errors.KindTransport, "convert.parse", "invalid multipart request", err)
	}
	httptransport.RespondKindError(c, err)
}

func contentDisposition(name string) string {
	safe := strings.Map(func(r rune) rune {
		if r == '"' || r == '\\' || r < 0x20 {
			return '_'
		}
		return r
	}, name)
	return fmt.Sprintf(`attachment; filename="%s"`, safe)
}
