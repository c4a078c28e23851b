// Package httpapi exposes the cart, order, workflow, and identity surfaces
// over HTTP. It is a thin translation layer: request decoding, error-to-status
// mapping, and JSON responses. All behavior lives in the services it wraps.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/shoplane/fulfillment/internal/ordersvc"
	"github.com/shoplane/fulfillment/pkg/api"
)

// HeaderUserID identifies the acting user on cart and order endpoints.
const HeaderUserID = "X-User-ID"

// Server holds the handler dependencies.
type Server struct {
	engine    api.Engine
	carts     *ordersvc.CartService
	orders    *ordersvc.OrderService
	directory api.Directory
	logger    *slog.Logger
}

// NewServer wires the handler set. Any of carts/orders may be nil when the
// deployment exposes only the workflow surface.
func NewServer(engine api.Engine, carts *ordersvc.CartService, orders *ordersvc.OrderService, directory api.Directory, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine:    engine,
		carts:     carts,
		orders:    orders,
		directory: directory,
		logger:    logger,
	}
}

// Router builds the chi router for the full API surface.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		if s.carts != nil {
			r.Route("/cart", func(r chi.Router) {
				r.Get("/", s.getCart)
				r.Delete("/", s.clearCart)
				r.Post("/items", s.addCartItem)
				r.Delete("/items/{id}", s.removeCartItem)
			})
		}
		if s.orders != nil {
			r.Route("/orders", func(r chi.Router) {
				r.Post("/", s.createOrder)
				r.Get("/{id}", s.getOrder)
			})
		}

		r.Route("/workflow", func(r chi.Router) {
			r.Route("/tasks", func(r chi.Router) {
				r.Get("/", s.listTasks)
				r.Get("/{id}", s.getTask)
				r.Get("/{id}/variables", s.taskVariables)
				r.Post("/{id}/claim", s.claimTask)
				r.Post("/{id}/unclaim", s.unclaimTask)
				r.Post("/{id}/complete", s.completeTask)
			})

			r.Route("/process-instances", func(r chi.Router) {
				r.Get("/", s.listInstances)
				r.Get("/{id}", s.getInstance)
				r.Get("/{id}/status", s.instanceStatus)
				r.Get("/{id}/variables", s.instanceVariables)
			})

			if s.directory != nil {
				r.Route("/identity", func(r chi.Router) {
					r.Get("/users", s.listUsers)
					r.Get("/users/{id}", s.getUser)
					r.Get("/users/{id}/groups", s.groupsForUser)
					r.Get("/groups", s.listGroups)
					r.Get("/groups/{id}", s.getGroup)
					r.Get("/groups/{id}/users", s.usersInGroup)
				})
			}
		})
	})

	return r
}

// --- cart ---

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	cart, err := s.carts.Get(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cart)
}

func (s *Server) addCartItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	var req ordersvc.AddItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ProductID == "" || req.Quantity <= 0 {
		http.Error(w, "productId and a positive quantity are required", http.StatusBadRequest)
		return
	}
	item, err := s.carts.Add(r.Context(), userID, req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, item)
}

func (s *Server) removeCartItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	itemID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid item id", http.StatusBadRequest)
		return
	}
	if err := s.carts.Remove(r.Context(), userID, itemID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) clearCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	if err := s.carts.Clear(r.Context(), userID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- orders ---

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	order, err := s.orders.CreateOrder(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, order)
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid order id", http.StatusBadRequest)
		return
	}
	order, err := s.orders.GetOrder(r.Context(), orderID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, order)
}

// --- tasks ---

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := api.TaskFilter{
		InstanceID:     q.Get("processInstanceId"),
		Assignee:       q.Get("assignee"),
		CandidateGroup: q.Get("candidateGroup"),
	}
	tasks, err := s.engine.ListTasks(r.Context(), filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.engine.GetTask(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, task)
}

func (s *Server) taskVariables(w http.ResponseWriter, r *http.Request) {
	vars, err := s.engine.TaskVariables(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, vars)
}

func (s *Server) claimTask(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		userID = r.Header.Get(HeaderUserID)
	}
	if userID == "" {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}
	if err := s.engine.ClaimTask(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) unclaimTask(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.UnclaimTask(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type completeTaskRequest struct {
	Variables api.VariableBag `json:"variables"`
}

func (s *Server) completeTask(w http.ResponseWriter, r *http.Request) {
	var req completeTaskRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}
	if err := s.engine.CompleteTask(r.Context(), chi.URLParam(r, "id"), req.Variables); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- instances ---

func (s *Server) listInstances(w http.ResponseWriter, r *http.Request) {
	opts := api.InstanceListOptions{
		ProcessKey: r.URL.Query().Get("processKey"),
		Status:     api.InstanceStatus(r.URL.Query().Get("status")),
	}
	instances, err := s.engine.ListInstances(r.Context(), opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, instances)
}

func (s *Server) getInstance(w http.ResponseWriter, r *http.Request) {
	inst, err := s.engine.GetInstance(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, inst)
}

func (s *Server) instanceStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.engine.InstanceStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *Server) instanceVariables(w http.ResponseWriter, r *http.Request) {
	vars, err := s.engine.InstanceVariables(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, vars)
}

// --- identity ---

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.directory.ListUsers()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, users)
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.directory.GetUser(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, user)
}

func (s *Server) groupsForUser(w http.ResponseWriter, r *http.Request) {
	groups, err := s.directory.GroupsForUser(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, groups)
}

func (s *Server) listGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.directory.ListGroups()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, groups)
}

func (s *Server) getGroup(w http.ResponseWriter, r *http.Request) {
	group, err := s.directory.GetGroup(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, group)
}

func (s *Server) usersInGroup(w http.ResponseWriter, r *http.Request) {
	users, err := s.directory.UsersInGroup(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, users)
}

// --- helpers ---

func (s *Server) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get(HeaderUserID)
	if userID == "" {
		http.Error(w, HeaderUserID+" header is required", http.StatusBadRequest)
		return "", false
	}
	return userID, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("write response", "error", err)
	}
}

// writeError maps service errors to HTTP statuses. Unknown errors are 500s
// and logged; expected ones surface their message.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, api.ErrTaskNotFound),
		errors.Is(err, api.ErrInstanceNotFound),
		errors.Is(err, api.ErrDefinitionNotFound),
		errors.Is(err, api.ErrUserNotFound),
		errors.Is(err, api.ErrGroupNotFound),
		errors.Is(err, ordersvc.ErrCartItemNotFound),
		errors.Is(err, ordersvc.ErrOrderNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, api.ErrConflict), errors.Is(err, api.ErrDuplicateStart):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ordersvc.ErrEmptyCart),
		errors.Is(err, api.ErrMissingVariable),
		errors.Is(err, api.ErrTypeMismatch):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		s.logger.Error("request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
