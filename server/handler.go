package server

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/nbti/nbadmin/dic"
	"github.com/nbti/nbadmin/rdb"
	"github.com/nbti/nbadmin/serializer"
)

const (
	screenTable     = "ACESSO_TELA"
	screenPermTable = "ACESSO_TELA_PERMISSAO"
	screenKey       = "GUIDACESSO_TELA"
	screenChildren  = "ACESSOS"
)

func (s *Server) user(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(s.options.UserHeader))
}

// resourceTable 路径中的 resource 必须与表声明的一致
func (s *Server) resourceTable(r *http.Request) (*dic.TableMetadata, error) {
	vars := mux.Vars(r)
	t, err := s.engine.Dictionary().Get(vars["table"])
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(t.Resource, vars["resource"]) {
		return nil, &dic.TableNotFoundError{Table: vars["resource"] + "." + vars["table"]}
	}
	return t, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.DB().Ping(r.Context()); err != nil {
		s.writeJSON(w, http.StatusServiceUnavailable, &ErrorResponse{Code: http.StatusServiceUnavailable, Error: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDictionary(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.Dictionary())
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	t, err := s.resourceTable(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rows, err := s.engine.Query(r.Context(), &rdb.QuerySpec{
		Table:  t.Name,
		Params: rdb.ParamsFromQuery(r.URL.Query()),
		UserID: s.user(r),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, serializer.Rows(t, rows))
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	t, err := s.resourceTable(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	records, err := rdb.DecodeRecords(r.Body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ids, err := s.engine.Save(r.Context(), t.Name, records)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{t.PrimaryKeyKey(): ids})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	t, err := s.resourceTable(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.engine.RemoveByID(r.Context(), t.Name, mux.Vars(r)["id"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleFetchMany(w http.ResponseWriter, r *http.Request) {
	results, err := s.engine.FetchMany(r.Context(), mux.Vars(r)["list"], rdb.ParamsFromQuery(r.URL.Query()), s.user(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make(map[string]any, len(results))
	for _, res := range results {
		out[res.Key] = serializer.Rows(res.Table, res.Rows)
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleApplyNested(w http.ResponseWriter, r *http.Request) {
	payload, err := rdb.ParsePayload(r.Body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.engine.ApplyNested(r.Context(), payload, rdb.ParamsFromQuery(r.URL.Query()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleApplyPermissions(w http.ResponseWriter, r *http.Request) {
	payload, err := rdb.ParsePayload(r.Body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.engine.ApplyPermissions(r.Context(), payload, rdb.ParamsFromQuery(r.URL.Query()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// handleScreens 每个界面附带其权限项
func (s *Server) handleScreens(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	d := s.engine.Dictionary()
	screens, err := d.Get(screenTable)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	perms, err := d.Get(screenPermTable)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	rows, err := s.engine.Query(ctx, &rdb.QuerySpec{
		Table:  screens.Name,
		Params: rdb.ParamsFromQuery(r.URL.Query()),
		UserID: s.user(r),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := serializer.Rows(screens, rows)
	for i, row := range rows {
		children, err := s.engine.Query(ctx, &rdb.QuerySpec{
			Table:  perms.Name,
			Params: rdb.Params{{Key: screenKey, Value: row[screenKey]}},
			UserID: s.user(r),
		})
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		out[i][screenChildren] = serializer.Rows(perms, children)
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGroupPermissions(w http.ResponseWriter, r *http.Request) {
	if s.acesso == nil {
		s.writeJSON(w, http.StatusNotFound, &ErrorResponse{Code: http.StatusNotFound, Error: "access service disabled"})
		return
	}
	result, err := s.acesso.GroupPermissions(r.Context(), mux.Vars(r)["guid"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleUserAccess(w http.ResponseWriter, r *http.Request) {
	if s.acesso == nil {
		s.writeJSON(w, http.StatusNotFound, &ErrorResponse{Code: http.StatusNotFound, Error: "access service disabled"})
		return
	}
	result, err := s.acesso.UserAccessList(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}
