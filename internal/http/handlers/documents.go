package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"server/internal/convert"
	"server/internal/domain"
	zipbundle "server/pkg/zip"
)

// UploadDocument accepts a PDF/DOCX, stores the original and dispatches one
// background conversion unit. The response is an immediate processing
// acknowledgment; clients poll for the outcome.
func (a *App) UploadDocument(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", localize(r, "缺少上传文件", "missing file field"))
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	kind, ok := domain.ParseFileKind(ext)
	if !ok {
		a.error(w, http.StatusBadRequest, "unsupported_format",
			localize(r, "不支持的文件格式，仅支持 PDF 和 DOCX", "unsupported file format, only PDF and DOCX are allowed"))
		return
	}

	// Strategy validation happens before any file I/O so a bad name never
	// leaves artifacts behind.
	converterName := r.FormValue("converter")
	if converterName == "" {
		converterName = a.Cfg.DefaultConverter
	}
	strategy, err := convert.ParseStrategy(converterName)
	if errors.Is(err, convert.ErrUnsupportedStrategy) {
		a.error(w, http.StatusBadRequest, "unsupported_converter",
			localize(r, "不支持的转换器", "unsupported converter")+": "+converterName)
		return
	}

	content, err := io.ReadAll(io.LimitReader(file, a.Cfg.MaxUploadBytes+1))
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to read upload")
		return
	}
	if int64(len(content)) > a.Cfg.MaxUploadBytes {
		a.Log.Warn().Err(domain.ErrFileTooLarge).Str("filename", header.Filename).Int64("limit", a.Cfg.MaxUploadBytes).Msg("upload rejected")
		a.error(w, http.StatusBadRequest, "file_too_large",
			fmt.Sprintf(localize(r, "文件大小超出限制，最大允许 %d MB", "file too large, limit is %d MB"), a.Cfg.MaxUploadBytes>>20))
		return
	}

	docID := uuid.NewString()
	uploadDir := filepath.Join(a.Cfg.UploadDir, docID)
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to store upload")
		return
	}
	filePath := filepath.Join(uploadDir, "original"+ext)
	if err := os.WriteFile(filePath, content, 0o644); err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to store upload")
		return
	}

	a.Log.Info().Str("doc_id", docID).Str("filename", header.Filename).Int("bytes", len(content)).Str("strategy", string(strategy)).Msg("document uploaded")

	// The unit outlives the request; it reports through the jobstore, not
	// through this response.
	go a.Proc.Run(context.Background(), docID, filePath, kind, strategy)

	a.json(w, http.StatusAccepted, map[string]any{
		"doc_id":    docID,
		"filename":  header.Filename,
		"status":    domain.StatusProcessing,
		"message":   localize(r, "文档正在处理中", "document is being processed"),
		"file_size": len(content),
	})
}

// ListDocuments derives every document's status from filesystem presence,
// newest upload first.
func (a *App) ListDocuments(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(a.Cfg.UploadDir)
	if err != nil {
		a.json(w, http.StatusOK, map[string]any{"documents": []domain.DocumentInfo{}})
		return
	}

	documents := make([]domain.DocumentInfo, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		docID := entry.Name()

		originals, _ := filepath.Glob(filepath.Join(a.Cfg.UploadDir, docID, "original.*"))
		if len(originals) == 0 {
			continue
		}
		stat, err := os.Stat(originals[0])
		if err != nil {
			continue
		}

		documents = append(documents, domain.DocumentInfo{
			DocID:      docID,
			Filename:   filepath.Base(originals[0]),
			Status:     a.Store.Status(docID),
			UploadTime: stat.ModTime(),
			FileSize:   stat.Size(),
		})
	}

	sort.Slice(documents, func(i, j int) bool {
		return documents[i].UploadTime.After(documents[j].UploadTime)
	})

	a.json(w, http.StatusOK, map[string]any{"documents": documents})
}

// GetDocument returns the converted markdown and the ordered figure list.
// A failed job surfaces its persisted error; a still-processing job is a 404.
func (a *App) GetDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")

	if record, err := a.Store.ReadFailure(docID); err == nil {
		a.error(w, http.StatusInternalServerError, "processing_failed",
			localize(r, "文档处理失败", "document processing failed")+": "+record.Error)
		return
	}

	content, err := a.Store.ReadMarkdown(docID)
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidDocID) {
		a.error(w, http.StatusNotFound, "not_found",
			localize(r, "文档不存在或正在处理中", "document does not exist or is still processing"))
		return
	}
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to read document")
		return
	}

	a.json(w, http.StatusOK, map[string]any{
		"doc_id":  docID,
		"content": string(content),
		"images":  a.Store.ListImages(docID),
		"status":  domain.StatusReady,
	})
}

var htmlRenderer = goldmark.New(goldmark.WithExtensions(extension.GFM))

// GetDocumentHTML renders the stored markdown to HTML for frontend preview.
func (a *App) GetDocumentHTML(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")

	content, err := a.Store.ReadMarkdown(docID)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found",
			localize(r, "文档不存在或正在处理中", "document does not exist or is still processing"))
		return
	}

	var buf bytes.Buffer
	if err := htmlRenderer.Convert(content, &buf); err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to render document")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// GetDocumentImage serves one extracted figure as PNG. The markdown links
// carry the .png extension, so accept the name with or without it.
func (a *App) GetDocumentImage(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	name := strings.TrimSuffix(chi.URLParam(r, "imageName"), ".png")

	path, err := a.Store.ImagePath(docID, name)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", localize(r, "图像不存在", "image not found"))
		return
	}
	if _, err := os.Stat(path); err != nil {
		a.error(w, http.StatusNotFound, "not_found", localize(r, "图像不存在", "image not found"))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	http.ServeFile(w, r, path)
}

// DownloadDocument bundles the markdown plus every figure into one zip.
func (a *App) DownloadDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")

	content, err := a.Store.ReadMarkdown(docID)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found",
			localize(r, "文档不存在或正在处理中", "document does not exist or is still processing"))
		return
	}

	entries := []zipbundle.Entry{{Name: docID + ".md", Data: content}}
	for _, name := range a.Store.ListImages(docID) {
		path, err := a.Store.ImagePath(docID, name)
		if err != nil {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			a.Log.Warn().Err(err).Str("doc_id", docID).Str("image", name).Msg("skipping unreadable image in bundle")
			continue
		}
		entries = append(entries, zipbundle.Entry{Name: filepath.Join("images", name+".png"), Data: data})
	}

	archive, err := zipbundle.Archive(entries)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to build bundle")
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+docID+`.zip"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

// DeleteDocument removes the original upload and every derived artifact.
func (a *App) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	if _, err := uuid.Parse(docID); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", localize(r, "无效的文档ID", "invalid document id"))
		return
	}

	if err := os.RemoveAll(filepath.Join(a.Cfg.UploadDir, docID)); err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to delete upload")
		return
	}
	if err := a.Store.Delete(docID); err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to delete artifacts")
		return
	}

	a.Log.Info().Str("doc_id", docID).Msg("document deleted")
	a.json(w, http.StatusOK, map[string]string{
		"message": localize(r, "文档已删除", "document deleted"),
		"doc_id":  docID,
	})
}
