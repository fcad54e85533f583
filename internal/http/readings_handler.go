package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"roadsense-data/internal/domain"
	"roadsense-data/internal/service"

	"go.uber.org/zap"
)

const maxBodyBytes = 4 << 20

// ReadingsHandler /processed_agent_data 的 CRUDL 处理器
type ReadingsHandler struct {
	svc    service.IngestService
	logger *zap.Logger
}

func NewReadingsHandler(svc service.IngestService, logger *zap.Logger) *ReadingsHandler {
	return &ReadingsHandler{svc: svc, logger: logger}
}

// ServeHTTP 按路径尾段分发：
//
//	/processed_agent_data/              POST=批量入库  GET=列表
//	/processed_agent_data/{id}          GET / PUT / DELETE
//	/processed_agent_data/latest/{uid}  GET（Redis 最新读数）
func (h *ReadingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/processed_agent_data")
	rest = strings.Trim(rest, "/")

	switch {
	case rest == "":
		switch r.Method {
		case http.MethodPost:
			h.create(w, r)
		case http.MethodGet:
			h.list(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case strings.HasPrefix(rest, "latest/"):
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.latest(w, r, strings.TrimPrefix(rest, "latest/"))
	default:
		h.byID(w, r, rest)
	}
}

func (h *ReadingsHandler) byID(w http.ResponseWriter, r *http.Request, idStr string) {
	id, err := parseID(idStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid record id %q", idStr))
		return
	}
	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPut:
		h.update(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *ReadingsHandler) create(w http.ResponseWriter, r *http.Request) {
	var records []domain.ProcessedRecord
	if err := readBodyJSON(r, maxBodyBytes, &records); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(records) == 0 {
		writeError(w, http.StatusBadRequest, "request body must be a non-empty array")
		return
	}

	stored, err := h.svc.Ingest(r.Context(), records)
	if err != nil {
		if len(stored) > 0 {
			// 每行独立事务：失败前已提交的行保持提交，明确报出来
			ids := make([]string, 0, len(stored))
			for _, rec := range stored {
				ids = append(ids, strconv.FormatInt(rec.ID, 10))
			}
			h.logger.Error("batch ingest failed after partial commit",
				zap.Strings("committed_ids", ids), zap.Error(err))
			writeError(w, http.StatusInternalServerError,
				fmt.Sprintf("%v (records with ids [%s] were already committed)",
					err, strings.Join(ids, ", ")))
			return
		}
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, stored)
}

func (h *ReadingsHandler) list(w http.ResponseWriter, r *http.Request) {
	records, err := h.svc.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *ReadingsHandler) get(w http.ResponseWriter, r *http.Request, id int64) {
	rec, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *ReadingsHandler) update(w http.ResponseWriter, r *http.Request, id int64) {
	var record domain.ProcessedRecord
	if err := readBodyJSON(r, maxBodyBytes, &record); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rec, err := h.svc.Update(r.Context(), id, record)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *ReadingsHandler) delete(w http.ResponseWriter, r *http.Request, id int64) {
	rec, err := h.svc.Delete(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *ReadingsHandler) latest(w http.ResponseWriter, r *http.Request, uidStr string) {
	userID, err := parseID(uidStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid user id %q", uidStr))
		return
	}
	rec, err := h.svc.Latest(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
