package people

import (
	"errors"
	"net/http"
	"people-store/core"
	"people-store/people"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type (
	PersonRequest struct {
		Name          string   `json:"name"`
		Age           *int     `json:"age,omitempty"`
		FavoriteFoods []string `json:"favoriteFoods"`
	}

	BatchCreateRequest []PersonRequest

	ErrorResponse struct {
		Error string `json:"error"`
	}
)

func (body PersonRequest) person() core.Person {
	return core.Person{Name: body.Name, Age: body.Age, FavoriteFoods: body.FavoriteFoods}
}

// Routes mounts every repository operation. Lookups that find nothing
// answer 404.
func Routes(repo *people.Repository) chi.Router {
	r := chi.NewRouter()
	r.Post("/", HandleCreate(repo))
	r.Post("/batch", HandleCreateMany(repo))
	r.Get("/", HandleFindByName(repo))
	r.Delete("/", HandleRemoveMany(repo))
	r.Get("/query-chain", HandleQueryChain(repo))
	r.Get("/by-food/{food}", HandleFindOneByFood(repo))
	r.Put("/by-name/{name}/age", HandleFindAndUpdate(repo))
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", HandleGet(repo))
		r.Delete("/", HandleRemove(repo))
		r.Post("/favorite-foods", HandleEditThenSave(repo))
	})
	return r
}

func renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"
	if errors.Is(err, core.ErrValidation) {
		status = http.StatusBadRequest
		msg = err.Error()
	} else if errors.Is(err, core.ErrNotFound) {
		status = http.StatusNotFound
		msg = "not found"
	}
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: msg})
}

func renderPerson(w http.ResponseWriter, r *http.Request, person *core.Person, err error) {
	if err != nil {
		renderError(w, r, err)
		return
	}
	if person == nil {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, ErrorResponse{Error: "not found"})
		return
	}
	render.JSON(w, r, person)
}

func renderPeople(w http.ResponseWriter, r *http.Request, found []core.Person, err error) {
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, found)
}

func badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, ErrorResponse{Error: msg})
}

func HandleCreate(repo *people.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := &PersonRequest{}
		if err := render.DecodeJSON(r.Body, data); err != nil {
			badRequest(w, r, "invalid request body")
			return
		}
		saved, err := repo.CreatePerson(r.Context(), data.Name, data.Age, data.FavoriteFoods)
		if err != nil {
			renderError(w, r, err)
			return
		}
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, saved)
	}
}

func HandleCreateMany(repo *people.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := &BatchCreateRequest{}
		if err := render.DecodeJSON(r.Body, data); err != nil {
			badRequest(w, r, "invalid request body")
			return
		}
		specs := make([]core.Person, 0, len(*data))
		for _, p := range *data {
			specs = append(specs, p.person())
		}
		saved, err := repo.CreatePeople(r.Context(), specs)
		if err != nil {
			renderError(w, r, err)
			return
		}
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, saved)
	}
}

func HandleFindByName(repo *people.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("name")
		if name == "" {
			badRequest(w, r, "name query parameter is required")
			return
		}
		found, err := repo.FindPeopleByName(r.Context(), name)
		renderPeople(w, r, found, err)
	}
}

func HandleFindOneByFood(repo *people.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		found, err := repo.FindOneByFood(r.Context(), chi.URLParam(r, "food"))
		renderPerson(w, r, found, err)
	}
}

func HandleGet(repo *people.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		found, err := repo.FindPersonByID(r.Context(), chi.URLParam(r, "id"))
		renderPerson(w, r, found, err)
	}
}

func HandleEditThenSave(repo *people.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		updated, err := repo.FindEditThenSave(r.Context(), chi.URLParam(r, "id"))
		renderPerson(w, r, updated, err)
	}
}

func HandleFindAndUpdate(repo *people.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		updated, err := repo.FindAndUpdate(r.Context(), chi.URLParam(r, "name"))
		renderPerson(w, r, updated, err)
	}
}

func HandleRemove(repo *people.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		removed, err := repo.RemoveByID(r.Context(), chi.URLParam(r, "id"))
		renderPerson(w, r, removed, err)
	}
}

// HandleRemoveMany deletes everyone with ?name=, or with the repository's
// configured name when the parameter is absent.
func HandleRemoveMany(repo *people.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			res *core.DeleteResult
			err error
		)
		if name := r.URL.Query().Get("name"); name != "" {
			res, err = repo.RemoveManyByName(r.Context(), name)
		} else {
			res, err = repo.RemoveManyPeople(r.Context())
		}
		if err != nil {
			renderError(w, r, err)
			return
		}
		render.JSON(w, r, res)
	}
}

// HandleQueryChain accepts optional ?food= and ?limit= overrides.
func HandleQueryChain(repo *people.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("food") == "" && q.Get("limit") == "" {
			found, err := repo.QueryChain(r.Context())
			renderPeople(w, r, found, err)
			return
		}

		food := q.Get("food")
		if food == "" {
			food = people.DefaultChainFood
		}
		limit := people.DefaultChainLimit
		if raw := q.Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				badRequest(w, r, "limit must be a non-negative integer")
				return
			}
			limit = n
		}
		found, err := repo.QueryChainFor(r.Context(), food, limit)
		renderPeople(w, r, found, err)
	}
}
