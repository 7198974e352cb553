package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"supplies-portal/internal/middleware"
	"supplies-portal/internal/platform/logger"
	"supplies-portal/internal/services"
	"supplies-portal/internal/tabular"
	"supplies-portal/internal/web"

	"github.com/go-chi/chi/v5"
)

const (
	// blankGridRows are appended to the editable grid for new entries
	blankGridRows = 3
	maxGridRows   = 5000
	maxGridCols   = 200
)

// Portal bundles the dependencies of the worksheet and forecast handlers.
type Portal struct {
	Service *services.PortalService
	CSRF    *middleware.CSRFProtection
	Log     logger.Logger
}

// WorksheetResponse is a worksheet as returned by the API
type WorksheetResponse struct {
	Name   string        `json:"name"`
	Header []string      `json:"header"`
	Rows   []tabular.Row `json:"rows"`
}

// SaveWorksheetRequest replaces every data row of a worksheet
type SaveWorksheetRequest struct {
	Rows []tabular.Row `json:"rows"`
}

type worksheetView struct {
	Name   string
	Header []string
	Rows   [][]string
}

// HandleListWorksheets lists the worksheets the portal can open
func HandleListWorksheets(p *Portal) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names, err := p.Service.Worksheets(r.Context())
		if err != nil {
			respondServiceError(w, r, p.Log, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{"worksheets": names})
	}
}

// HandleGetWorksheet returns one worksheet's header and rows
func HandleGetWorksheet(p *Portal) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		table, err := p.Service.LoadWorksheet(r.Context(), worksheetParam(r))
		if err != nil {
			respondServiceError(w, r, p.Log, err)
			return
		}

		rows := table.Rows
		if rows == nil {
			rows = []tabular.Row{}
		}
		respondJSON(w, http.StatusOK, WorksheetResponse{Name: table.Name, Header: table.Header, Rows: rows})
	}
}

// HandleSaveWorksheet overwrites a worksheet with the rows in the body
func HandleSaveWorksheet(p *Portal) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SaveWorksheetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondErrorWithRequest(w, r, http.StatusBadRequest, "Invalid request body")
			return
		}
		if len(req.Rows) > maxGridRows {
			respondErrorWithRequest(w, r, http.StatusRequestEntityTooLarge, "Too many rows")
			return
		}

		name := worksheetParam(r)
		if err := p.Service.SaveWorksheet(r.Context(), actorFrom(r), name, req.Rows); err != nil {
			respondServiceError(w, r, p.Log, err)
			return
		}

		respondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": "Worksheet saved",
			"rows":    len(req.Rows),
		})
	}
}

// HandleWorksheetPage renders the editable grid
func HandleWorksheetPage(p *Portal) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := worksheetParam(r)
		page := p.page(r, name, name)
		if r.URL.Query().Get("saved") == "1" {
			page.Flash = "Changes saved."
		}

		table, err := p.Service.LoadWorksheet(r.Context(), name)
		if err != nil {
			status, message, _ := errorStatus(err)
			if status >= http.StatusInternalServerError {
				p.Log.Error("failed to load worksheet", logger.Fields{"worksheet": name, "err": err})
			}
			page.Error = message
			page.Data = worksheetView{Name: name}
			renderPage(w, status, "worksheet.html", page, p.Log)
			return
		}

		page.Data = gridView(table)
		renderPage(w, http.StatusOK, "worksheet.html", page, p.Log)
	}
}

// HandleSaveWorksheetForm saves the editable grid form
func HandleSaveWorksheetForm(p *Portal) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := worksheetParam(r)

		rows, err := gridRows(r)
		if err != nil {
			respondErrorWithRequest(w, r, http.StatusBadRequest, err.Error())
			return
		}

		if err := p.Service.SaveWorksheet(r.Context(), actorFrom(r), name, rows); err != nil {
			status, message, _ := errorStatus(err)
			if status >= http.StatusInternalServerError {
				p.Log.Error("failed to save worksheet", logger.Fields{"worksheet": name, "err": err})
			}
			page := p.page(r, name, name)
			page.Error = "Save failed: " + message
			page.Data = worksheetView{Name: name}
			if table, err := p.Service.LoadWorksheet(r.Context(), name); err == nil {
				page.Data = gridView(table)
			}
			renderPage(w, status, "worksheet.html", page, p.Log)
			return
		}

		http.Redirect(w, r, "/worksheets/"+url.PathEscape(name)+"?saved=1", http.StatusSeeOther)
	}
}

// page builds the shared layout data for a signed-in user
func (p *Portal) page(r *http.Request, title, active string) *web.Page {
	page := &web.Page{
		Title:       title,
		Active:      active,
		Nonce:       middleware.CSPNonce(r.Context()),
		CSRFToken:   p.CSRF.GenerateToken(),
		LogoutToken: p.CSRF.GenerateToken(),
	}
	if userCtx := middleware.GetUserContext(r); userCtx != nil {
		page.User = userCtx.DisplayName
		if page.User == "" {
			page.User = userCtx.Username
		}
	}
	if names, err := p.Service.Worksheets(r.Context()); err == nil {
		page.Worksheets = names
	}
	return page
}

func gridView(table *tabular.Table) worksheetView {
	values := tabular.Project(table.Header, table.Rows)
	for i := 0; i < blankGridRows && len(table.Header) > 0; i++ {
		values = append(values, make([]string, len(table.Header)))
	}
	return worksheetView{Name: table.Name, Header: table.Header, Rows: values}
}

// gridRows decodes the editable grid form. Rows marked for deletion and
// rows left entirely blank are dropped.
func gridRows(r *http.Request) ([]tabular.Row, error) {
	if err := r.ParseForm(); err != nil {
		return nil, errors.New("invalid form data")
	}

	nRows, err := strconv.Atoi(r.FormValue("rows"))
	if err != nil || nRows < 0 || nRows > maxGridRows+blankGridRows {
		return nil, errors.New("invalid row count")
	}
	nCols, err := strconv.Atoi(r.FormValue("cols"))
	if err != nil || nCols < 0 || nCols > maxGridCols {
		return nil, errors.New("invalid column count")
	}

	columns := make([]string, nCols)
	for c := range columns {
		columns[c] = r.FormValue(fmt.Sprintf("col-%d", c))
	}

	rows := make([]tabular.Row, 0, nRows)
	for i := 0; i < nRows; i++ {
		if r.FormValue(fmt.Sprintf("delete-%d", i)) != "" {
			continue
		}
		row := make(tabular.Row, nCols)
		blank := true
		for c, col := range columns {
			if col == "" {
				continue
			}
			value := r.FormValue(fmt.Sprintf("cell-%d-%d", i, c))
			if strings.TrimSpace(value) != "" {
				blank = false
			}
			row[col] = value
		}
		if !blank {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func worksheetParam(r *http.Request) string {
	name := chi.URLParam(r, "name")
	if unescaped, err := url.PathUnescape(name); err == nil {
		return unescaped
	}
	return name
}

func actorFrom(r *http.Request) services.Actor {
	return services.Actor{
		Username:  middleware.GetUsername(r.Context()),
		IPAddress: middleware.ClientIP(r),
		UserAgent: r.UserAgent(),
	}
}
