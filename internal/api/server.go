// Package api 爬取任务的HTTP接口
//
//	POST   /api/crawl       {"target_id": "..."} 启动任务
//	GET    /api/crawl/{id}  查询任务状态
//	DELETE /api/crawl/{id}  取消任务
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/thongnm19089/share-fb/internal/models"
	"github.com/thongnm19089/share-fb/internal/utils"
)

const crawlEndpoint = "/api/crawl"

// CrawlService 接口背后的任务执行方
type CrawlService interface {
	Credential(name string) (models.Credential, error)
	StartCrawl(ctx context.Context, targetID string, cred models.Credential) (string, error)
	GetStatus(ctx context.Context, jobID string) (models.CrawlJob, error)
	Cancel(ctx context.Context, jobID string) error
}

// Server HTTP服务
type Server struct {
	svc    CrawlService
	router *chi.Mux
}

// NewServer 创建服务并注册路由
func NewServer(svc CrawlService) *Server {
	s := &Server{svc: svc, router: chi.NewRouter()}
	s.router.Use(middleware.Recoverer)
	s.router.Use(accessLog)

	s.router.Post(crawlEndpoint, s.handleStart)
	s.router.Get(crawlEndpoint+"/{id}", s.handleStatus)
	s.router.Delete(crawlEndpoint+"/{id}", s.handleCancel)

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "接口不存在: "+r.URL.Path)
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "不支持的请求方法: "+r.Method)
	})
	return s
}

// Handler 路由处理器
func (s *Server) Handler() http.Handler {
	return s.router
}

// accessLog 以调试级别记录每个请求
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		utils.Logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("HTTP请求")
	})
}

// Run 监听并服务, ctx 结束时优雅关闭
func (s *Server) Run(ctx context.Context, listen string) error {
	srv := &http.Server{
		Addr:              listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		utils.Infof("🌐 HTTP服务已启动: %s", listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		utils.Info("HTTP服务已关闭")
		return nil
	}
}

type startRequest struct {
	TargetID   string `json:"target_id"`
	Credential string `json:"credential,omitempty"`
}

type startResponse struct {
	JobID  string           `json:"job_id"`
	Status models.JobStatus `json:"status"`
}

// statusResponse 任务状态; 失败时附带 error, 已得到的结果仍然返回
type statusResponse struct {
	JobID    string              `json:"job_id"`
	TargetID string              `json:"target_id"`
	Status   models.JobStatus    `json:"status"`
	Progress int                 `json:"progress"`
	Results  []models.PostRecord `json:"results"`
	Error    string              `json:"error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "请求体不是有效的JSON")
		return
	}
	if req.TargetID == "" {
		writeError(w, http.StatusBadRequest, "缺少 target_id")
		return
	}

	cred, err := s.svc.Credential(req.Credential)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	jobID, err := s.svc.StartCrawl(r.Context(), req.TargetID, cred)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, startResponse{JobID: jobID, Status: models.JobRunning})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	job, err := s.svc.GetStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	resp := statusResponse{
		JobID:    job.ID,
		TargetID: job.TargetID,
		Status:   job.Status,
		Progress: job.Progress,
		Results:  job.Results,
		Error:    job.Error,
	}
	if resp.Results == nil {
		resp.Results = []models.PostRecord{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.svc.Cancel(r.Context(), id); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": id})
}

// statusFor 哨兵错误到HTTP状态码
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrJobNotFound), errors.Is(err, models.ErrTargetNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrNoLiveCredential):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		utils.Warnf("写入响应失败: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
