package user

import (
	"net/http"

	"github.com/benchtrack/benchtrack/internal/rest"
)

type ProfileDTO struct {
	Id      int    `json:"id"`
	Login   string `json:"login"`
	Name    string `json:"name"`
	IsAdmin bool   `json:"admin"`
	Tenure  string `json:"yearsOfExperience"`
	Skills  string `json:"skills"`
}

type Handler struct {
	directory Directory
}

func NewHandler(directory Directory) *Handler {
	return &Handler{directory: directory}
}

// CurrentUser godoc
// @Summary Get the current user
// @Tags User
// @Produce json
// @Success 200 {object} ProfileDTO
// @Failure 403 {object} rest.ErrorResponse "No session"
// @Router /api/user/current [get]
func (h *Handler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	caller, err := CurrentCaller(r.Context())
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	profile, err := h.directory.GetProfile(r.Context(), caller.Id)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, ProfileToDTO(profile))
}

func ProfileToDTO(p Profile) ProfileDTO {
	return ProfileDTO{
		Id:      p.Id,
		Login:   p.Login,
		Name:    p.Name(),
		IsAdmin: p.IsAdmin,
		Tenure:  p.Tenure.StringFixed(1),
		Skills:  p.Skills,
	}
}
